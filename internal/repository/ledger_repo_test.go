package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yuqie6/xpforge/internal/schema"
	"github.com/yuqie6/xpforge/internal/testutil"
)

func TestLedgerLockProfileCreatesOnce(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewLedgerRepository(db)
	ctx := context.Background()

	var firstID uint
	for i := 0; i < 2; i++ {
		err := repo.RunInTx(ctx, func(ops LedgerOps) error {
			p, err := ops.LockProfile("u1", "w1")
			if err != nil {
				return err
			}
			if p.Level != 1 || p.TotalXP != 0 || !p.Active {
				t.Fatalf("fresh profile=%+v", p)
			}
			if firstID == 0 {
				firstID = p.ID
			} else if p.ID != firstID {
				t.Fatalf("profile id changed: %d != %d", p.ID, firstID)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("RunInTx error: %v", err)
		}
	}

	var n int64
	db.Model(&schema.GamificationProfile{}).Count(&n)
	if n != 1 {
		t.Fatalf("profiles=%d, want 1", n)
	}
}

func TestLedgerUpdateProfileVersionCheck(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewLedgerRepository(db)
	ctx := context.Background()

	err := repo.RunInTx(ctx, func(ops LedgerOps) error {
		p, err := ops.LockProfile("u1", "w1")
		if err != nil {
			return err
		}
		p.ApplyDelta(150)
		ok, err := ops.UpdateProfile(p, p.Version)
		if err != nil || !ok {
			t.Fatalf("first update ok=%v err=%v", ok, err)
		}
		// 旧版本号再次更新应失败
		ok, err = ops.UpdateProfile(p, 0)
		if err != nil {
			return err
		}
		if ok {
			t.Fatalf("stale version update should fail")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunInTx error: %v", err)
	}

	got, _ := NewProfileRepository(db).Get(ctx, "u1", "w1")
	if got.TotalXP != 150 || got.Level != 2 || got.Version != 1 {
		t.Fatalf("profile=%+v", got)
	}
}

func TestLedgerRollbackIsAllOrNothing(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewLedgerRepository(db)
	ctx := context.Background()
	boom := errors.New("boom")

	err := repo.RunInTx(ctx, func(ops LedgerOps) error {
		p, err := ops.LockProfile("u1", "w1")
		if err != nil {
			return err
		}
		p.ApplyDelta(100)
		if _, err := ops.UpdateProfile(p, p.Version); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v, want boom", err)
	}

	got, _ := NewProfileRepository(db).Get(ctx, "u1", "w1")
	if got != nil {
		t.Fatalf("profile should be rolled back, got %+v", got)
	}
}

func TestLedgerReserveCooldown(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewLedgerRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

	reserve := func(at time.Time) bool {
		var ok bool
		err := repo.RunInTx(ctx, func(ops LedgerOps) error {
			var err error
			ok, err = ops.ReserveCooldown("u1", "peer_support", at.UnixMilli(), at.Add(2*time.Hour).UnixMilli())
			return err
		})
		if err != nil {
			t.Fatalf("ReserveCooldown error: %v", err)
		}
		return ok
	}

	if !reserve(now) {
		t.Fatalf("first reservation should succeed")
	}
	if reserve(now.Add(time.Hour)) {
		t.Fatalf("reservation inside cooldown should fail")
	}
	if !reserve(now.Add(2 * time.Hour)) {
		t.Fatalf("reservation after expiry should succeed")
	}
}

func TestLedgerReserveWeeklyCap(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewLedgerRepository(db)
	ctx := context.Background()

	results := make([]bool, 0, 4)
	for i := 0; i < 4; i++ {
		err := repo.RunInTx(ctx, func(ops LedgerOps) error {
			ok, err := ops.ReserveWeeklyCap("u1", "one_on_one", "2026-10-12", 3)
			results = append(results, ok)
			return err
		})
		if err != nil {
			t.Fatalf("ReserveWeeklyCap error: %v", err)
		}
	}
	want := []bool{true, true, true, false}
	for i := range want {
		if results[i] != want[i] {
			t.Fatalf("results=%v, want %v", results, want)
		}
	}

	// 新的一周重新计数
	err := repo.RunInTx(ctx, func(ops LedgerOps) error {
		ok, err := ops.ReserveWeeklyCap("u1", "one_on_one", "2026-10-19", 3)
		if !ok {
			t.Fatalf("next week should be allowed")
		}
		return err
	})
	if err != nil {
		t.Fatalf("ReserveWeeklyCap error: %v", err)
	}
}

func TestLedgerFindProfileForUpdateDoesNotCreate(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewLedgerRepository(db)
	ctx := context.Background()

	err := repo.RunInTx(ctx, func(ops LedgerOps) error {
		p, err := ops.FindProfileForUpdate("ghost", "w1")
		if err != nil {
			return err
		}
		if p != nil {
			t.Fatalf("absent profile should be nil, got %+v", p)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunInTx error: %v", err)
	}

	var n int64
	db.Model(&schema.GamificationProfile{}).Count(&n)
	if n != 0 {
		t.Fatalf("profiles=%d, want 0", n)
	}
}
