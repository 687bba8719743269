package gate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/seedsweep/sweep"
)

func TestREST_Occupancy_CountsLiveJobsPlusBaseline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/slurm/v0.0.40/jobs", r.URL.Path)
		assert.Equal(t, "alice", r.URL.Query().Get("users"))
		assert.Equal(t, "alice", r.Header.Get("X-SLURM-USER-NAME"))
		assert.Equal(t, "jwt-token", r.Header.Get("X-SLURM-USER-TOKEN"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"jobs": [
			{"job_id": 1, "user_name": "alice", "job_state": ["RUNNING"]},
			{"job_id": 2, "user_name": "alice", "job_state": "PENDING"},
			{"job_id": 3, "user_name": "alice", "job_state": ["COMPLETED"]},
			{"job_id": 4, "user_name": "bob", "job_state": ["RUNNING"]}
		]}`)
	}))
	defer server.Close()

	g, err := NewREST(RESTConfig{BaseURL: server.URL + "/", User: "alice", Token: "jwt-token", Script: "/home/alice/job.sh"})
	require.NoError(t, err)

	got, err := g.Occupancy(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2+sweep.DefaultIdleOccupancy, got)
}

func TestREST_Occupancy_ServerErrorIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = fmt.Fprint(w, "slurmctld unreachable")
	}))
	defer server.Close()

	g, err := NewREST(RESTConfig{BaseURL: server.URL, User: "alice", Script: "job.sh"})
	require.NoError(t, err)

	_, err = g.Occupancy(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 500")
}

func TestREST_Occupancy_ErrorListIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"jobs": [], "errors": [{"error": "Unable to query jobs", "description": "slurm_load_jobs"}]}`)
	}))
	defer server.Close()

	g, err := NewREST(RESTConfig{BaseURL: server.URL, User: "alice", Script: "job.sh"})
	require.NoError(t, err)

	_, err = g.Occupancy(context.Background())
	assert.Error(t, err)
}

func TestREST_Submit_PostsJobDescription(t *testing.T) {
	var got submitRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/slurm/v0.0.39/job/submit", r.URL.Path)
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"job_id": 4242})
	}))
	defer server.Close()

	g, err := NewREST(RESTConfig{
		BaseURL:    server.URL,
		APIVersion: "v0.0.39",
		User:       "alice",
		Script:     "/home/alice/run game.sh",
		Partition:  "long",
		Comment:    "sweep-1",
	})
	require.NoError(t, err)
	item := sweep.WorkItem{Config: "greedy", Seed: 11}

	err = g.Submit(context.Background(), sweep.SubmitRequest{Item: item, TimeLimit: "0-01:30", Command: item.Command()})

	require.NoError(t, err)
	assert.Equal(t, "greedy-11", got.Job.Name)
	assert.Equal(t, timeLimit{Set: true, Number: 90}, got.Job.TimeLimit)
	assert.Equal(t, "long", got.Job.Partition)
	assert.Equal(t, "sweep-1", got.Job.Comment)
	assert.Equal(t, "#!/bin/bash\nexec '/home/alice/run game.sh' 'play' 'greedy' '11'\n", got.Script)
}

func TestREST_Submit_RejectedIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"job_id": 0, "errors": [{"error": "Job violates accounting/QOS policy"}]}`)
	}))
	defer server.Close()

	g, err := NewREST(RESTConfig{BaseURL: server.URL, User: "alice", Script: "job.sh"})
	require.NoError(t, err)
	item := sweep.WorkItem{Config: "greedy", Seed: 1}

	err = g.Submit(context.Background(), sweep.SubmitRequest{Item: item, TimeLimit: "0-00:10", Command: item.Command()})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "QOS policy")
}

func TestShellJoin_QuotesSingleQuotes(t *testing.T) {
	assert.Equal(t, `'a' 'it'\''s'`, shellJoin([]string{"a", "it's"}))
}

func TestREST_Submit_LogsWithInjectedFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"job_id": 81241}`)
	}))
	defer server.Close()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	g, err := NewREST(RESTConfig{
		BaseURL: server.URL,
		User:    "alice",
		Script:  "job.sh",
		Logger:  logger.WithField("sweep_id", "sweep-8"),
	})
	require.NoError(t, err)

	item := sweep.WorkItem{Config: "greedy", Seed: 5}
	require.NoError(t, g.Submit(context.Background(), sweep.SubmitRequest{Item: item, TimeLimit: "0-00:30", Command: item.Command()}))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "sweep-8", entry.Data["sweep_id"])
	assert.Contains(t, entry.Message, "81241")
}
