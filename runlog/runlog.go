// Package runlog persists per-question run records for audit and debugging.
// Runs themselves hold no state across questions; this is the only place
// traces and results outlive a run.
package runlog

import (
	"context"
	"time"

	"github.com/sweetpotato0/askdata/qa"
)

// Record is one completed (or failed) question evaluation.
type Record struct {
	Question  string          `json:"question" bson:"question"`
	Route     string          `json:"route" bson:"route"`
	Result    qa.Result       `json:"result" bson:"result"`
	Trace     []qa.TraceEntry `json:"trace,omitempty" bson:"trace,omitempty"`
	CreatedAt time.Time       `json:"created_at" bson:"created_at"`
}

// NewRecord builds a record from a completed run and its result.
func NewRecord(run *qa.RunState, result qa.Result) Record {
	return Record{
		Question:  run.Question,
		Route:     string(run.Route),
		Result:    result,
		Trace:     run.Trace,
		CreatedAt: time.Now(),
	}
}

// Store persists run records. Append must be safe for concurrent use; batch
// processing appends from multiple workers.
type Store interface {
	// Append adds one record.
	Append(ctx context.Context, rec Record) error

	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]Record, error)

	// Close releases any underlying connection.
	Close() error
}
