// Package jobs runs the background scans: nightly expiry warnings over
// stock lots and overdue flags over unpaid invoices.
package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskExpiryScan flags lots expiring inside the warning window.
	TaskExpiryScan = "inventory:expiry-scan"
	// TaskOverdueScan flags invoices unpaid past the grace period.
	TaskOverdueScan = "billing:overdue-scan"
)

// ExpiryScanPayload parameterises the expiry scan.
type ExpiryScanPayload struct {
	// Window is how far ahead to look, e.g. "2160h" for 90 days.
	Window time.Duration `json:"window"`
}

// NewExpiryScanTask constructs an Asynq task.
func NewExpiryScanTask(payload ExpiryScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskExpiryScan, data), nil
}

// OverdueScanPayload parameterises the overdue scan.
type OverdueScanPayload struct {
	// Grace is how long after the invoice date payment is not yet
	// considered overdue.
	Grace time.Duration `json:"grace"`
}

// NewOverdueScanTask constructs an Asynq task.
func NewOverdueScanTask(payload OverdueScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOverdueScan, data), nil
}
