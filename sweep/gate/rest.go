package gate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/seedsweep/sweep"
)

// DefaultAPIVersion is the slurmrestd API version used when none is configured.
const DefaultAPIVersion = "v0.0.40"

// terminalStates are job states slurmrestd may still list but squeue would not count.
var terminalStates = map[string]bool{
	"BOOT_FAIL": true, "CANCELLED": true, "COMPLETED": true, "DEADLINE": true,
	"FAILED": true, "NODE_FAIL": true, "OUT_OF_MEMORY": true, "PREEMPTED": true,
	"TIMEOUT": true,
}

// RESTConfig configures the slurmrestd gate.
type RESTConfig struct {
	BaseURL    string
	APIVersion string
	User       string
	Token      string // JWT sent as X-SLURM-USER-TOKEN
	Script     string // batch script path on the cluster
	Partition  string
	JobPrefix  string
	Comment    string
	Workdir    string
	Timeout    time.Duration
	Logger     logrus.FieldLogger
}

// REST talks to the scheduler through slurmrestd.
type REST struct {
	cfg        RESTConfig
	httpClient *http.Client
}

// NewREST validates cfg and creates the HTTP client.
func NewREST(cfg RESTConfig) (*REST, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("rest gate: base URL is required")
	}
	if cfg.User == "" {
		return nil, errors.New("rest gate: user is required")
	}
	if cfg.Script == "" {
		return nil, errors.New("rest gate: batch script is required")
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Workdir == "" {
		cfg.Workdir = "/tmp"
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &REST{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// jobState accepts both the string form (older APIs) and the list form (v0.0.39+).
type jobState []string

func (s *jobState) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*s = list
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*s = []string{one}
	return nil
}

type restJob struct {
	JobID    int      `json:"job_id"`
	UserName string   `json:"user_name"`
	JobState jobState `json:"job_state"`
}

type restError struct {
	Error       string `json:"error"`
	Description string `json:"description"`
}

type jobsResponse struct {
	Jobs   []restJob   `json:"jobs"`
	Errors []restError `json:"errors"`
}

type submitResponse struct {
	JobID  int         `json:"job_id"`
	Errors []restError `json:"errors"`
}

type timeLimit struct {
	Set    bool `json:"set"`
	Number int  `json:"number"`
}

type jobDesc struct {
	Name        string    `json:"name"`
	Partition   string    `json:"partition,omitempty"`
	Comment     string    `json:"comment,omitempty"`
	TimeLimit   timeLimit `json:"time_limit"`
	Workdir     string    `json:"current_working_directory"`
	Environment []string  `json:"environment"`
}

type submitRequest struct {
	Script string  `json:"script"`
	Job    jobDesc `json:"job"`
}

// Occupancy counts this user's live jobs and adds the idle baseline, so the
// value compares the same way as the squeue gate's line count.
func (r *REST) Occupancy(ctx context.Context) (int, error) {
	endpoint := fmt.Sprintf("%s/slurm/%s/jobs?users=%s", r.cfg.BaseURL, r.cfg.APIVersion, url.QueryEscape(r.cfg.User))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("request creation error: %w", err)
	}
	var resp jobsResponse
	if err := r.do(httpReq, &resp); err != nil {
		return 0, err
	}
	if len(resp.Errors) > 0 {
		return 0, fmt.Errorf("slurmrestd: %s", describeErrors(resp.Errors))
	}
	live := 0
	for _, job := range resp.Jobs {
		if job.UserName != "" && job.UserName != r.cfg.User {
			continue
		}
		if isLive(job.JobState) {
			live++
		}
	}
	return live + sweep.DefaultIdleOccupancy, nil
}

// Submit posts a batch job that runs the configured script with the simulation argv.
func (r *REST) Submit(ctx context.Context, req sweep.SubmitRequest) error {
	minutes, err := sweep.ParseTimeLimit(req.TimeLimit)
	if err != nil {
		return err
	}
	body := submitRequest{
		Script: "#!/bin/bash\nexec " + shellJoin(append([]string{r.cfg.Script}, req.Command...)) + "\n",
		Job: jobDesc{
			Name:        req.Item.JobName(r.cfg.JobPrefix),
			Partition:   r.cfg.Partition,
			Comment:     r.cfg.Comment,
			TimeLimit:   timeLimit{Set: true, Number: minutes},
			Workdir:     r.cfg.Workdir,
			Environment: []string{"PATH=/usr/local/bin:/usr/bin:/bin"},
		},
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}
	endpoint := fmt.Sprintf("%s/slurm/%s/job/submit", r.cfg.BaseURL, r.cfg.APIVersion)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("request creation error: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var resp submitResponse
	if err := r.do(httpReq, &resp); err != nil {
		return fmt.Errorf("submitting %s: %w", req.Item, err)
	}
	if len(resp.Errors) > 0 {
		return fmt.Errorf("submitting %s: slurmrestd: %s", req.Item, describeErrors(resp.Errors))
	}
	r.cfg.Logger.Debugf("slurmrestd accepted %s as job %d", req.Item, resp.JobID)
	return nil
}

func (r *REST) do(httpReq *http.Request, out interface{}) error {
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-SLURM-USER-NAME", r.cfg.User)
	if r.cfg.Token != "" {
		httpReq.Header.Set("X-SLURM-USER-TOKEN", r.cfg.Token)
	}
	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("HTTP error: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read error: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("JSON parse error: %w", err)
	}
	return nil
}

func isLive(states jobState) bool {
	if len(states) == 0 {
		return true
	}
	for _, s := range states {
		if terminalStates[s] {
			return false
		}
	}
	return true
}

func describeErrors(errs []restError) string {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msg := e.Error
		if e.Description != "" {
			msg += " (" + e.Description + ")"
		}
		msgs = append(msgs, msg)
	}
	return strings.Join(msgs, "; ")
}

// shellJoin single-quotes each word for a POSIX shell.
func shellJoin(words []string) string {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = "'" + strings.ReplaceAll(w, "'", `'\''`) + "'"
	}
	return strings.Join(quoted, " ")
}
