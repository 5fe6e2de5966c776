package mirror

import (
	"fmt"
	"time"
)

// AuthError indicates the mirror store rejected our credentials (401/403,
// invalid key, or a Postgres authentication failure). It is fatal for a run.
type AuthError struct {
	Status  int
	Message string
}

func (e AuthError) Error() string {
	msg := "mirror authentication failed"
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// WriteError indicates a single write or read against a mirror table failed
type WriteError struct {
	Table      string
	Status     int
	Message    string
	RetryAfter time.Duration // set when the store asked us to back off
}

func (e WriteError) Error() string {
	msg := fmt.Sprintf("mirror request on %s failed", e.Table)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// BatchError records one failed chunk of an UpsertBatch call.
// Index is the zero-based chunk number; Size is the number of rows it held.
type BatchError struct {
	Index   int    `json:"index"`
	Size    int    `json:"size"`
	Message string `json:"message"`
}

func (e BatchError) Error() string {
	return fmt.Sprintf("batch %d (%d rows): %s", e.Index, e.Size, e.Message)
}
