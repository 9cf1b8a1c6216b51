package models

import "time"

// RecordStatus is derived from the counters; records never move backwards from
// Completed because the counters are monotonically non-decreasing.
type RecordStatus string

const (
	StatusCreated     RecordStatus = "created"
	StatusDispatching RecordStatus = "dispatching"
	StatusCompleted   RecordStatus = "completed"
)

// DeliveryRecord is the ledger entry for one broadcast. Total is fixed at
// creation; only the two counters change afterwards.
type DeliveryRecord struct {
	ID           string    `json:"id" db:"id"`
	Title        string    `json:"title" db:"title"`
	Body         string    `json:"body" db:"body"`
	TargetType   string    `json:"target_type" db:"target_type"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	Total        int       `json:"total" db:"total"`
	SuccessCount int       `json:"success_count" db:"success_count"`
	FailureCount int       `json:"failure_count" db:"failure_count"`
}

// Status reports where the record is in its lifecycle.
func (r DeliveryRecord) Status() RecordStatus {
	settled := r.SuccessCount + r.FailureCount
	switch {
	case settled >= r.Total:
		return StatusCompleted
	case settled == 0:
		return StatusCreated
	default:
		return StatusDispatching
	}
}
