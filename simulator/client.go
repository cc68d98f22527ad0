package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kilianp07/bikeflow/api/httpx"
	"github.com/kilianp07/bikeflow/core/model"
)

// errQueueEmpty is returned by Next when the server has no ready task.
var errQueueEmpty = errors.New("queue empty")

// Client talks to the task queue API.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a Client for the API rooted at base.
func NewClient(base string) *Client {
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// Next claims the oldest ready task for workerID.
func (c *Client) Next(ctx context.Context, workerID string) (model.Task, error) {
	var task model.Task
	err := c.post(ctx, "/dispatch/next", map[string]string{"worker_id": workerID}, &task)
	return task, err
}

// Complete marks taskID completed.
func (c *Client) Complete(ctx context.Context, taskID int64) (model.Task, error) {
	var task model.Task
	err := c.post(ctx, fmt.Sprintf("/task/%d/complete", taskID), nil, &task)
	return task, err
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var p httpx.Problem
		_ = json.NewDecoder(resp.Body).Decode(&p)
		if p.Type == httpx.CodeQueueEmpty {
			return errQueueEmpty
		}
		return fmt.Errorf("%s: %s %s", path, resp.Status, p.Detail)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
