package domain

import "time"

// CycleStatus is the closed enum of orchestrator run outcomes.
type CycleStatus string

const (
	CycleRunning   CycleStatus = "RUNNING"
	CycleCompleted CycleStatus = "COMPLETED"
	CyclePartial   CycleStatus = "PARTIAL"
	CycleFailed    CycleStatus = "FAILED"
)

// CycleRecord is one row per orchestrator run, carrying summary counts for
// the admin surface and for audit.
type CycleRecord struct {
	ID                uint `gorm:"primaryKey;autoIncrement"`
	StartedAt         time.Time
	FinishedAt        time.Time
	Status            CycleStatus
	MarketsFetched    int
	MarketsTradable   int
	BetsApproved      int
	BetsExecuted      int
	BetsFailed        int
	PerCategoryCounts string // JSON-encoded map[string]int, kept flat to avoid a join table for a summary field
}
