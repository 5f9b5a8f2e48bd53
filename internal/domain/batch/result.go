// Package batch holds the per-record outcome of an upsert batch.
package batch

// Outcome tags how a single record was written.
type Outcome string

// Upsert outcomes.
const (
	OutcomeUpdated  Outcome = "updated"
	OutcomeInserted Outcome = "inserted"
	OutcomeFailed   Outcome = "failed"
)

// Result is the outcome of one record in an upsert batch. ID is the
// upstream message_id; ObjectID is the derived store id (empty when the
// record failed validation before one could be derived).
type Result struct {
	id       string
	objectID string
	outcome  Outcome
	err      error
}

// NewUpdated records an in-place overwrite of an existing object.
func NewUpdated(id, objectID string) Result {
	return Result{id: id, objectID: objectID, outcome: OutcomeUpdated}
}

// NewInserted records the insert fallback after a not-found update.
func NewInserted(id, objectID string) Result {
	return Result{id: id, objectID: objectID, outcome: OutcomeInserted}
}

// NewFailed records a record that was not stored, with the reason.
func NewFailed(id, objectID string, err error) Result {
	return Result{id: id, objectID: objectID, outcome: OutcomeFailed, err: err}
}

// ID returns the upstream message id.
func (r Result) ID() string { return r.id }

// ObjectID returns the derived store id.
func (r Result) ObjectID() string { return r.objectID }

// Outcome returns the tag.
func (r Result) Outcome() Outcome { return r.outcome }

// Err returns the failure reason, nil unless Outcome is OutcomeFailed.
func (r Result) Err() error { return r.err }

// Stored reports whether the record reached the store.
func (r Result) Stored() bool { return r.outcome == OutcomeUpdated || r.outcome == OutcomeInserted }

// CountStored returns how many results reached the store.
func CountStored(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Stored() {
			n++
		}
	}
	return n
}
