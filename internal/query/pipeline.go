package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dataquay/dataquay/internal/log"
)

// DefaultPollInterval is the fixed delay between status polls.
const DefaultPollInterval = 2 * time.Second

var (
	// ErrEmptyQuery indicates a submission with a blank query string.
	ErrEmptyQuery = errors.New("query is required")

	// ErrWaitExceeded indicates the job did not reach a terminal state
	// within the configured maximum wait.
	ErrWaitExceeded = errors.New("query did not complete within maximum wait")
)

// ExecutionError reports a job that terminated without succeeding, carrying
// the provider's reason.
type ExecutionError struct {
	State  State
	Reason string
}

func (e *ExecutionError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("query %s", strings.ToLower(string(e.State)))
	}
	return fmt.Sprintf("query %s: %s", strings.ToLower(string(e.State)), e.Reason)
}

// Pipeline composes submission, polling and paginated retrieval over a
// Client. A Pipeline is read-only after construction and safe to share;
// each job it creates is exclusively owned by the call that created it.
type Pipeline struct {
	client       Client
	pollInterval time.Duration

	// maxWait bounds AwaitCompletion. Zero preserves the historical
	// unbounded wait.
	maxWait time.Duration

	logger log.Logger
}

// Config contains the Pipeline's dependencies.
type Config struct {
	Client       Client
	PollInterval time.Duration // zero = DefaultPollInterval
	MaxWait      time.Duration // zero = wait forever
	Logger       log.Logger
}

// NewPipeline creates a Pipeline.
func NewPipeline(cfg Config) (*Pipeline, error) {
	if cfg.Client == nil {
		return nil, errors.New("query client is required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Pipeline{
		client:       cfg.Client,
		pollInterval: interval,
		maxWait:      cfg.MaxWait,
		logger:       cfg.Logger.With("component", "query"),
	}, nil
}

// Submit validates the submission and starts the query execution.
func (p *Pipeline) Submit(ctx context.Context, sub Submission) (string, error) {
	if strings.TrimSpace(sub.Query) == "" {
		return "", ErrEmptyQuery
	}

	jobID, err := p.client.Submit(ctx, sub)
	if err != nil {
		return "", fmt.Errorf("submit query: %w", err)
	}

	p.logger.Debug("query submitted", "job_id", jobID, "database", sub.Database)
	return jobID, nil
}

// AwaitCompletion polls the job on the fixed interval until it reaches a
// terminal state. FAILED and CANCELLED surface as an *ExecutionError with
// the provider's reason. With MaxWait configured, exceeding it returns
// ErrWaitExceeded; otherwise the wait is unbounded.
func (p *Pipeline) AwaitCompletion(ctx context.Context, jobID string) (State, error) {
	var deadline time.Time
	if p.maxWait > 0 {
		deadline = time.Now().Add(p.maxWait)
	}

	for {
		status, err := p.client.Status(ctx, jobID)
		if err != nil {
			return "", fmt.Errorf("poll query status: %w", err)
		}

		if status.State.Terminal() {
			if status.State != StateSucceeded {
				return status.State, &ExecutionError{State: status.State, Reason: status.Reason}
			}
			return status.State, nil
		}

		if !deadline.IsZero() && time.Now().After(deadline) {
			return status.State, fmt.Errorf("%w (job %s still %s)", ErrWaitExceeded, jobID, status.State)
		}

		select {
		case <-ctx.Done():
			return status.State, ctx.Err()
		case <-time.After(p.pollInterval):
		}
	}
}

// FetchAllRows pages through the job's results using the continuation token
// until the provider returns none. Row order equals provider page order
// concatenated in sequence; no page is fetched twice.
func (p *Pipeline) FetchAllRows(ctx context.Context, jobID string) ([]Row, error) {
	var rows []Row
	token := ""

	for {
		page, err := p.client.Results(ctx, jobID, token)
		if err != nil {
			return nil, fmt.Errorf("fetch query results: %w", err)
		}

		rows = append(rows, page.Rows...)
		if page.NextToken == "" {
			break
		}
		token = page.NextToken
	}

	p.logger.Debug("query results retrieved", "job_id", jobID, "rows", len(rows))
	return rows, nil
}

// Execute submits the query, waits for completion and retrieves all rows.
// Any failure inside is logged and reported as nil rows: callers must treat
// nil as "no results, already reported" and not raise again.
func (p *Pipeline) Execute(ctx context.Context, sub Submission) []Row {
	jobID, err := p.Submit(ctx, sub)
	if err != nil {
		p.logger.Error("query execution failed", "error", err)
		return nil
	}

	if _, err := p.AwaitCompletion(ctx, jobID); err != nil {
		p.logger.Error("query execution failed", "job_id", jobID, "error", err)
		return nil
	}

	rows, err := p.FetchAllRows(ctx, jobID)
	if err != nil {
		p.logger.Error("query execution failed", "job_id", jobID, "error", err)
		return nil
	}

	return rows
}
