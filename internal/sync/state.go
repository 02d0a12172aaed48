package sync

import (
	"time"

	"github.com/goliatone/go-pagesync/pkg/interfaces"
)

// State is the per-entry position in the sync state machine.
type State string

const (
	StateFetched       State = "fetched"
	StateUnchanged     State = "unchanged"
	StateChanged       State = "changed"
	StatePublished     State = "published"
	StateHashUpdated   State = "hash_updated"
	StateFetchFailed   State = "fetch_failed"
	StatePublishFailed State = "publish_failed"
	StateInvalid       State = "invalid"
)

// EntryReport describes what happened to a single manifest entry.
type EntryReport struct {
	Key      string
	Slug     string
	Source   string
	State    State
	Action   interfaces.PublishAction
	PageID   int
	Link     string
	Hash     string
	Err      error
	Duration time.Duration
}

// Result summarises a run. Entries follow processing order; entries not
// reached before cancellation are absent.
type Result struct {
	RunID     string
	DryRun    bool
	Created   int
	Updated   int
	Unchanged int
	Skipped   int
	Failed    int
	Entries   []EntryReport
	Started   time.Time
	Finished  time.Time
}

// Duration returns the wall time of the run.
func (r *Result) Duration() time.Duration {
	if r == nil || r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

// Published returns the number of entries created or updated.
func (r *Result) Published() int {
	if r == nil {
		return 0
	}
	return r.Created + r.Updated
}

func (r *Result) record(report EntryReport) {
	switch report.State {
	case StateUnchanged:
		r.Unchanged++
	case StateInvalid:
		r.Skipped++
	case StateFetchFailed, StatePublishFailed:
		r.Failed++
	case StateHashUpdated, StatePublished:
		switch report.Action {
		case interfaces.PublishActionCreated:
			r.Created++
		case interfaces.PublishActionUpdated:
			r.Updated++
		case interfaces.PublishActionDryRun:
			if report.PageID > 0 {
				r.Updated++
			} else {
				r.Created++
			}
		}
	}
	r.Entries = append(r.Entries, report)
}
