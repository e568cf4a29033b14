package query

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClient_Submit(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/jobs", r.URL.Path)

		var req struct {
			Query          string `json:"query"`
			Database       string `json:"database"`
			OutputLocation string `json:"output_location"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "SELECT 1", req.Query)
		assert.Equal(t, "analytics", req.Database)

		_ = json.NewEncoder(w).Encode(map[string]string{"job_id": "j-42"})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL)
	jobID, err := client.Submit(context.Background(), Submission{
		Query:          "SELECT 1",
		Database:       "analytics",
		OutputLocation: "s3://results/",
	})
	require.NoError(t, err)
	assert.Equal(t, "j-42", jobID)
}

func TestHTTPClient_Submit_MissingJobID(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL).Submit(context.Background(), Submission{Query: "SELECT 1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no job id")
}

func TestHTTPClient_Status(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/jobs/j-42", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]string{"state": "FAILED", "reason": "no such table"})
	}))
	defer srv.Close()

	status, err := NewHTTPClient(srv.URL).Status(context.Background(), "j-42")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, status.State)
	assert.Equal(t, "no such table", status.Reason)
}

func TestHTTPClient_Results_PageToken(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/jobs/j-42/results", r.URL.Path)
		switch r.URL.Query().Get("page_token") {
		case "":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"rows":       [][]string{{"region", "total"}},
				"next_token": "p2",
			})
		case "p2":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"rows": [][]string{{"north", "1"}},
			})
		default:
			t.Errorf("unexpected page token %q", r.URL.Query().Get("page_token"))
		}
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL)

	first, err := client.Results(context.Background(), "j-42", "")
	require.NoError(t, err)
	assert.Equal(t, []Row{{"region", "total"}}, first.Rows)
	assert.Equal(t, "p2", first.NextToken)

	second, err := client.Results(context.Background(), "j-42", "p2")
	require.NoError(t, err)
	assert.Equal(t, []Row{{"north", "1"}}, second.Rows)
	assert.Empty(t, second.NextToken)
}

func TestHTTPClient_NonOKStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL).Status(context.Background(), "j-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}
