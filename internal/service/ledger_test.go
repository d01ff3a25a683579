package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yuqie6/xpforge/internal/repository"
	"github.com/yuqie6/xpforge/internal/rules"
	"github.com/yuqie6/xpforge/internal/schema"
)

// conflictOps 每次更新都报告版本冲突
type conflictOps struct {
	repository.LedgerOps
	appended int
}

func (o *conflictOps) LockProfile(userID, workspaceID string) (*schema.GamificationProfile, error) {
	return schema.NewGamificationProfile(userID, workspaceID), nil
}

func (o *conflictOps) UpdateProfile(p *schema.GamificationProfile, expectedVersion int64) (bool, error) {
	return false, nil
}

func (o *conflictOps) AppendTransaction(t *schema.XpTransaction) error {
	o.appended++
	return nil
}

type countingStore struct {
	ops   repository.LedgerOps
	calls int
}

func (s *countingStore) RunInTx(ctx context.Context, fn func(ops repository.LedgerOps) error) error {
	s.calls++
	return fn(s.ops)
}

type staticRoles struct {
	role schema.Role
	err  error
}

func (r staticRoles) DetectRole(ctx context.Context, userID string) (schema.Role, error) {
	return r.role, r.err
}

func TestAwardRetriesThenReportsConflict(t *testing.T) {
	ops := &conflictOps{}
	store := &countingStore{ops: ops}
	ledger := NewLedgerService(store, rules.Default(), nil, nil, nil, Settings{LedgerMaxRetries: 3})

	_, err := ledger.Award(context.Background(), AwardRequest{UserID: "u1", WorkspaceID: "w1", CustomAmount: 10})
	if !errors.Is(err, ErrConcurrencyConflict) {
		t.Fatalf("err=%v, want ErrConcurrencyConflict", err)
	}
	if store.calls != 3 {
		t.Fatalf("attempts=%d, want 3", store.calls)
	}
	if ops.appended != 0 {
		t.Fatalf("conflicting attempts must not append transactions")
	}
}

func TestAwardRoleFailureFallsBackToBaseXP(t *testing.T) {
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	store := &countingStore{ops: &okOps{}}
	ledger := NewLedgerService(store, rules.Default(), nil, staticRoles{err: errors.New("org down")}, nil,
		Settings{Now: func() time.Time { return now }})

	snap, err := ledger.Award(context.Background(), AwardRequest{UserID: "u1", WorkspaceID: "w1", Action: rules.ActionPeerSupport})
	if err != nil {
		t.Fatalf("Award error: %v", err)
	}
	if snap.Applied != 30 {
		t.Fatalf("applied=%d, want base 30", snap.Applied)
	}
}

func TestCustomAmountIgnoresMultiplier(t *testing.T) {
	store := &countingStore{ops: &okOps{}}
	ledger := NewLedgerService(store, rules.Default(), nil, staticRoles{role: schema.RoleIC}, nil, Settings{})

	snap, err := ledger.Award(context.Background(), AwardRequest{UserID: "u1", WorkspaceID: "w1", Action: rules.ActionPeerSupport, CustomAmount: 100})
	if err != nil {
		t.Fatalf("Award error: %v", err)
	}
	if snap.Applied != 100 {
		t.Fatalf("applied=%d, want 100", snap.Applied)
	}

	if _, err := ledger.Award(context.Background(), AwardRequest{UserID: "u1", WorkspaceID: "w1", CustomAmount: -5}); !errors.Is(err, ErrValidation) {
		t.Fatalf("negative custom amount err=%v", err)
	}
}

// okOps 内存档案，更新总是成功
type okOps struct {
	repository.LedgerOps
	profile *schema.GamificationProfile
}

func (o *okOps) LockProfile(userID, workspaceID string) (*schema.GamificationProfile, error) {
	if o.profile == nil {
		o.profile = schema.NewGamificationProfile(userID, workspaceID)
	}
	cp := *o.profile
	return &cp, nil
}

func (o *okOps) UpdateProfile(p *schema.GamificationProfile, expectedVersion int64) (bool, error) {
	p.Version = expectedVersion + 1
	cp := *p
	o.profile = &cp
	return true, nil
}

func (o *okOps) AppendTransaction(t *schema.XpTransaction) error { return nil }
