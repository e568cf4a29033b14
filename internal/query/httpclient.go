package query

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// httpTimeout bounds a single request to the query service.
const httpTimeout = 30 * time.Second

// HTTPClient implements Client against the query service's REST API:
//
//	POST /jobs                          → {"job_id": "..."}
//	GET  /jobs/{id}                     → {"state": "...", "reason": "..."}
//	GET  /jobs/{id}/results?page_token= → {"rows": [[...]], "next_token": "..."}
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a client for the service rooted at baseURL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: httpTimeout},
	}
}

type submitRequest struct {
	Query          string `json:"query"`
	Database       string `json:"database"`
	OutputLocation string `json:"output_location"`
}

type submitResponse struct {
	JobID string `json:"job_id"`
}

type statusResponse struct {
	State  string `json:"state"`
	Reason string `json:"reason,omitempty"`
}

type resultsResponse struct {
	Rows      [][]string `json:"rows"`
	NextToken string     `json:"next_token,omitempty"`
}

// Submit starts a query execution.
func (c *HTTPClient) Submit(ctx context.Context, sub Submission) (string, error) {
	body, err := json.Marshal(submitRequest{
		Query:          sub.Query,
		Database:       sub.Database,
		OutputLocation: sub.OutputLocation,
	})
	if err != nil {
		return "", fmt.Errorf("encode submission: %w", err)
	}

	var resp submitResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/jobs", body, &resp); err != nil {
		return "", err
	}
	if resp.JobID == "" {
		return "", fmt.Errorf("query service returned no job id")
	}
	return resp.JobID, nil
}

// Status returns the job's current status.
func (c *HTTPClient) Status(ctx context.Context, jobID string) (Status, error) {
	var resp statusResponse
	u := fmt.Sprintf("%s/jobs/%s", c.baseURL, url.PathEscape(jobID))
	if err := c.do(ctx, http.MethodGet, u, nil, &resp); err != nil {
		return Status{}, err
	}
	return Status{State: State(resp.State), Reason: resp.Reason}, nil
}

// Results returns one page of results.
func (c *HTTPClient) Results(ctx context.Context, jobID, pageToken string) (ResultPage, error) {
	u := fmt.Sprintf("%s/jobs/%s/results", c.baseURL, url.PathEscape(jobID))
	if pageToken != "" {
		u += "?page_token=" + url.QueryEscape(pageToken)
	}

	var resp resultsResponse
	if err := c.do(ctx, http.MethodGet, u, nil, &resp); err != nil {
		return ResultPage{}, err
	}

	page := ResultPage{NextToken: resp.NextToken}
	for _, r := range resp.Rows {
		page.Rows = append(page.Rows, Row(r))
	}
	return page, nil
}

// do executes one request and decodes the JSON response into out.
func (c *HTTPClient) do(ctx context.Context, method, u string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("query service request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("query service returned status %d: %s", resp.StatusCode, data)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode query service response: %w", err)
	}
	return nil
}
