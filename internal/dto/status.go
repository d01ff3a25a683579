package dto

// StatusDTO xpctl status 的输出
type StatusDTO struct {
	App       AppStatusDTO       `json:"app"`
	Storage   StorageStatusDTO   `json:"storage"`
	Rules     RulesStatusDTO     `json:"rules"`
	RoleCache RoleCacheStatusDTO `json:"role_cache"`
	Ledger    LedgerStatusDTO    `json:"ledger"`
	Events    EventsStatusDTO    `json:"events"`
}

type AppStatusDTO struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	StartedAt string `json:"started_at"`
	UptimeSec int64  `json:"uptime_sec"`
	SafeMode  bool   `json:"safe_mode"`
	Timezone  string `json:"timezone"`
}

type StorageStatusDTO struct {
	Driver         string `json:"driver"`
	DBPath         string `json:"db_path,omitempty"`
	DSN            string `json:"dsn,omitempty"` // 已脱敏
	SchemaVersion  int    `json:"schema_version"`
	SafeModeReason string `json:"safe_mode_reason,omitempty"`
}

type RulesStatusDTO struct {
	Count       int    `json:"count"`
	CatalogPath string `json:"catalog_path,omitempty"`
	Watch       bool   `json:"watch"`
	Badges      int    `json:"badges"`
}

type RoleCacheStatusDTO struct {
	Backend  string `json:"backend"` // "memory" | "redis"
	TTLHours int    `json:"ttl_hours"`
	Addr     string `json:"addr,omitempty"`
}

type LedgerStatusDTO struct {
	Profiles           int64  `json:"profiles"`
	ActiveProfiles     int64  `json:"active_profiles"`
	Transactions       int64  `json:"transactions"`
	Transactions24h    int64  `json:"transactions_24h"`
	PendingSubmissions int64  `json:"pending_submissions"`
	Badges             int64  `json:"badges"`
	Error              string `json:"error,omitempty"`
}

type EventsStatusDTO struct {
	Subscribers int `json:"subscribers"`
}
