// Package store keeps a write-once history of finished jobs. Each record is
// appended when a job reaches Done or Canceled; the engine never reads it
// back, it only backs reporting.
package store

import (
	"context"

	"github.com/seantiz/qdevice/internal/model"
)

// HistoryStats holds aggregate statistics over the job history.
type HistoryStats struct {
	Total         int            `json:"total"`
	CountByStatus map[string]int `json:"count_by_status"`
	CountByFormat map[string]int `json:"count_by_format"`
	Failed        int            `json:"failed"`
	TotalShots    uint64         `json:"total_shots"`
	AvgDurationMS float64        `json:"avg_duration_ms"`
}

// Store defines the persistence operations of the job history.
type Store interface {
	Record(ctx context.Context, rec model.JobRecord) error
	GetRecord(ctx context.Context, jobID int64) (*model.JobRecord, error)
	ListHistory(ctx context.Context, limit, offset int) ([]*model.JobRecord, int, error)
	GetHistoryStats(ctx context.Context) (*HistoryStats, error)
	Close() error
}
