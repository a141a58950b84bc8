package core

import "context"

// Job types handled by the background worker.
const (
	JobExportPDF     = "export:pdf"
	JobExportCleanup = "export:cleanup"
	JobReviewSweep   = "review:sweep"
	JobHealthCheck   = "queue:healthcheck"
)

// JobQueue is any service that can enqueue background jobs on a durable queue.
// Payloads are JSON-encoded by the implementation.
type JobQueue interface {
	Enqueue(ctx context.Context, jobType string, payload interface{}) error
}

// ExportPDFPayload asks the worker to assemble a student's logbook PDF.
type ExportPDFPayload struct {
	StudentID string `json:"student_id"`
	SessionID string `json:"session_id"`
}
