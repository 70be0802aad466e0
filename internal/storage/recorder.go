package storage

import (
	"context"
	"sync"

	"github.com/axeq/takeoverme/internal/probe"
	"github.com/axeq/takeoverme/internal/takeover"
)

// Recorder persists every outcome of a run as it completes
type Recorder struct {
	store *SQLiteStorage
	runID string

	mu       sync.Mutex
	errors   int
	firstErr error
}

// NewRecorder creates a takeover.Observer writing to store under runID
func NewRecorder(store *SQLiteStorage, runID string) *Recorder {
	return &Recorder{store: store, runID: runID}
}

// Observe stores the outcome and, for findings, the finding itself
func (r *Recorder) Observe(o takeover.Outcome) {
	ctx := context.Background()

	rec := ObservationRecord{
		Subdomain: o.Subdomain,
		State:     string(o.State()),
		Attempts:  o.Probe.Attempts,
	}
	if o.Probe.Kind == probe.StatusCode && o.Probe.Status > 0 {
		rec.StatusCode = o.Probe.Status
		rec.Scheme = o.Probe.Scheme
	}
	if o.CNAME != nil {
		rec.CNAMEKind = o.CNAME.Kind.String()
		rec.CNAME = o.CNAME.Target
		rec.Error = o.CNAME.Message
	}
	if o.Err != nil {
		rec.Error = o.Err.Error()
	}
	r.track(r.store.SaveObservation(ctx, r.runID, rec))

	if f := o.Finding; f != nil {
		r.track(r.store.SaveFinding(ctx, FindingRecord{
			RunID:       r.runID,
			Subdomain:   f.Subdomain,
			CNAME:       f.CNAME,
			Fingerprint: f.Fingerprint,
			FoundAt:     f.Timestamp,
		}))
	}
}

func (r *Recorder) track(err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors++
	if r.firstErr == nil {
		r.firstErr = err
	}
}

// Err returns the number of failed writes and the first error seen
func (r *Recorder) Err() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errors, r.firstErr
}
