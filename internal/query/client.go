// Package query drives asynchronous query execution against an external
// query-execution service: submit a query, poll the job to a terminal state,
// then page through the results.
package query

import "context"

// State is a query job's lifecycle state as reported by the provider.
type State string

const (
	StateQueued    State = "QUEUED"
	StateRunning   State = "RUNNING"
	StateSucceeded State = "SUCCEEDED"
	StateFailed    State = "FAILED"
	StateCancelled State = "CANCELLED"
)

// Terminal reports whether no further transition occurs from this state.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateCancelled:
		return true
	}
	return false
}

// Row is one result row. By provider convention the first row of a result
// set is the header row.
type Row []string

// Submission describes a query to run.
type Submission struct {
	Query          string
	Database       string
	OutputLocation string
}

// Status is a point-in-time view of a job.
type Status struct {
	State State

	// Reason carries the provider's explanation for FAILED or CANCELLED.
	Reason string
}

// ResultPage is one page of results. NextToken is the opaque continuation
// cursor; empty means this is the last page.
type ResultPage struct {
	Rows      []Row
	NextToken string
}

// Client is the interface boundary to the query-execution service.
type Client interface {
	// Submit starts a query execution and returns the job id.
	Submit(ctx context.Context, sub Submission) (string, error)

	// Status returns the job's current status.
	Status(ctx context.Context, jobID string) (Status, error)

	// Results returns one page of results. An empty pageToken requests the
	// first page.
	Results(ctx context.Context, jobID, pageToken string) (ResultPage, error)
}
