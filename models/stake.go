package models

type StakeDelegation struct {
	StakeAddress   string  `json:"stake_address"`
	DelegatedDRep  *string `json:"delegated_drep,omitempty"`
	DelegatedPool  *string `json:"delegated_pool,omitempty"`
	TotalBalance   *string `json:"total_balance,omitempty"`
	UTXOBalance    *string `json:"utxo_balance,omitempty"`
	RewardsBalance *string `json:"rewards_available,omitempty"`
	Status         *string `json:"status,omitempty"`
}

type StakePool struct {
	PoolID      string  `json:"pool_id"`
	HexID       *string `json:"hex,omitempty"`
	Ticker      *string `json:"ticker,omitempty"`
	Name        *string `json:"name,omitempty"`
	ActiveStake *string `json:"active_stake,omitempty"`
	Status      *string `json:"status,omitempty"`
}

type StakePoolPage struct {
	Pools   []StakePool `json:"pools"`
	HasMore bool        `json:"has_more"`
}

type CommitteeMember struct {
	HotCredential   *string `json:"cc_hot_id,omitempty"`
	ColdCredential  string  `json:"cc_cold_id"`
	HotHex          *string `json:"cc_hot_hex,omitempty"`
	ColdHex         *string `json:"cc_cold_hex,omitempty"`
	Status          *string `json:"status,omitempty"`
	ExpirationEpoch *uint32 `json:"expiration_epoch,omitempty"`
}

// CacheStats reports process-wide cache counters.
type CacheStats struct {
	Enabled bool    `json:"enabled"`
	Entries int     `json:"entries"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// IndexerSyncStatus describes how far behind the chain indexer is.
type IndexerSyncStatus struct {
	BlockNumber int64  `json:"block_number"`
	Slot        int64  `json:"slot"`
	BlockTime   int64  `json:"block_time"`
	Epoch       int64  `json:"epoch"`
	LagSeconds  int64  `json:"lag_seconds"`
	Health      string `json:"health"`
}

// DatabasePoolStats is the connection pool state of the indexer database.
type DatabasePoolStats struct {
	MaxOpenConnections int   `json:"max_open_connections"`
	OpenConnections    int   `json:"open_connections"`
	InUse              int   `json:"in_use"`
	Idle               int   `json:"idle"`
	WaitCount          int64 `json:"wait_count"`
	WaitDurationMs     int64 `json:"wait_duration_ms"`
}

type HealthReport struct {
	Status     string             `json:"status"`
	Healthy    bool               `json:"healthy"`
	DataSource string             `json:"data_source"`
	Timestamp  int64              `json:"timestamp"`
	Cache      CacheStats         `json:"cache"`
	Indexer    *IndexerSyncStatus `json:"indexer,omitempty"`
	Database   *DatabasePoolStats `json:"database,omitempty"`
}
