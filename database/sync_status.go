package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fenilmodi00/govdash-backend/models"
)

// Indexer health levels derived from the age of the latest block.
const (
	IndexerActive  = "Active"
	IndexerStale   = "Stale"
	IndexerStopped = "Stopped"

	activeThreshold = 300 * time.Second
	staleThreshold  = 3600 * time.Second
)

var latestBlockQueries = []string{
	`SELECT number, slot, block_time, epoch FROM block ORDER BY number DESC LIMIT 1`,
	`SELECT block_number, slot, block_time, epoch FROM block ORDER BY block_number DESC LIMIT 1`,
}

// NormalizeUnixSeconds accepts block times stored either in seconds or in
// milliseconds.
func NormalizeUnixSeconds(t int64) int64 {
	if t > 1_000_000_000_000 {
		return t / 1000
	}
	return t
}

// IndexerHealth classifies a block lag.
func IndexerHealth(lag time.Duration) string {
	switch {
	case lag < activeThreshold:
		return IndexerActive
	case lag < staleThreshold:
		return IndexerStale
	default:
		return IndexerStopped
	}
}

// GetIndexerSyncStatus reads the indexer tip and rates its freshness
// against now. An empty block table reports Stopped.
func GetIndexerSyncStatus(ctx context.Context, db *sql.DB, now time.Time) (*models.IndexerSyncStatus, error) {
	var number, slot, blockTime, epoch sql.NullInt64
	found, err := QueryRowFirst(ctx, db, latestBlockQueries,
		[]interface{}{&number, &slot, &blockTime, &epoch})
	if err != nil {
		return nil, fmt.Errorf("failed to read indexer tip: %w", err)
	}

	status := &models.IndexerSyncStatus{Health: IndexerStopped}
	if !found || !blockTime.Valid {
		return status, nil
	}

	status.BlockNumber = number.Int64
	status.Slot = slot.Int64
	status.Epoch = epoch.Int64
	status.BlockTime = NormalizeUnixSeconds(blockTime.Int64)
	status.LagSeconds = now.Unix() - status.BlockTime
	if status.LagSeconds < 0 {
		status.LagSeconds = 0
	}
	status.Health = IndexerHealth(time.Duration(status.LagSeconds) * time.Second)
	return status, nil
}
