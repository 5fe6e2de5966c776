package syncservice

import (
	"fmt"
	"time"

	"github.com/erauner12/odoosync/internal/mirror"
	"github.com/erauner12/odoosync/internal/syncx"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// State is a SyncRun lifecycle state
type State string

const (
	StateNotStarted     State = "not_started"
	StateAuthenticating State = "authenticating"
	StateReading        State = "reading"
	StateWriting        State = "writing"
	StateDone           State = "done"
	StateFailed         State = "failed"
)

// transitions lists the legal edges. Failed is reachable from every active
// state, but only fatal errors (authentication, cancellation) take it.
var transitions = map[State][]State{
	StateNotStarted:     {StateAuthenticating},
	StateAuthenticating: {StateReading, StateFailed},
	StateReading:        {StateWriting, StateFailed},
	StateWriting:        {StateDone, StateFailed},
}

// SyncRun scopes one read-transform-write pass over one collection.
// It is never persisted; only its Summary leaves the process.
type SyncRun struct {
	ID            uuid.UUID
	Collection    string
	Table         string
	StartedAtMs   int64
	State         State
	Read          int
	Written       int
	Dropped       int
	FailedBatches []mirror.BatchError
	Err           error

	started time.Time
	logger  zerolog.Logger
}

func newRun(c Collection) *SyncRun {
	id := uuid.New()
	return &SyncRun{
		ID:            id,
		Collection:    c.Name,
		Table:         c.Table,
		StartedAtMs:   syncx.NowMs(),
		State:         StateNotStarted,
		FailedBatches: []mirror.BatchError{},
		started:       time.Now(),
		logger: log.With().
			Str("collection", c.Name).
			Str("run_id", id.String()).
			Logger(),
	}
}

// transition moves the run to the next state, rejecting illegal edges
func (r *SyncRun) transition(to State) error {
	for _, allowed := range transitions[r.State] {
		if allowed == to {
			r.logger.Debug().Str("from", string(r.State)).Str("to", string(to)).Msg("sync run state change")
			r.State = to
			return nil
		}
	}
	return fmt.Errorf("illegal sync run transition %s -> %s", r.State, to)
}

// fail records a fatal error and moves to Failed
func (r *SyncRun) fail(err error) {
	r.Err = err
	if terr := r.transition(StateFailed); terr != nil {
		r.logger.Error().Err(terr).Msg("sync run already terminal")
	}
}

// Summary is the printable outcome of a SyncRun
type Summary struct {
	RunID         string              `json:"run_id"`
	Collection    string              `json:"collection"`
	Table         string              `json:"table"`
	State         State               `json:"state"`
	Read          int                 `json:"read"`
	Written       int                 `json:"written"`
	Dropped       int                 `json:"dropped"`
	FailedBatches []mirror.BatchError `json:"failed_batches"`
	Error         string              `json:"error,omitempty"`
	StartedAt     string              `json:"started_at"`
	DurationMs    int64               `json:"duration_ms"`
}

// Summary snapshots the run
func (r *SyncRun) Summary() Summary {
	s := Summary{
		RunID:         r.ID.String(),
		Collection:    r.Collection,
		Table:         r.Table,
		State:         r.State,
		Read:          r.Read,
		Written:       r.Written,
		Dropped:       r.Dropped,
		FailedBatches: r.FailedBatches,
		StartedAt:     syncx.RFC3339(r.StartedAtMs),
		DurationMs:    time.Since(r.started).Milliseconds(),
	}
	if r.Err != nil {
		s.Error = r.Err.Error()
	}
	return s
}

// Failed reports whether the run ended without reaching Done
func (s Summary) Failed() bool {
	return s.State == StateFailed
}
