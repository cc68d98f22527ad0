package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/bikeflow/core/logger"
)

// Stats counts what one crew did.
type Stats struct {
	Claimed   int     `json:"claimed"`
	Completed int     `json:"completed"`
	Abandoned int     `json:"abandoned"`
	Bikes     int     `json:"bikes"`
	Errors    int     `json:"errors"`
	TaskIDs   []int64 `json:"task_ids"`
}

// Crew is a simulated field worker polling the queue.
type Crew struct {
	ID            string
	Client        *Client
	Strategy      CompletionStrategy
	PollInterval  time.Duration
	StopWhenEmpty int
	Log           logger.Logger
	Stats         Stats
}

// GenerateCrews creates n crews with IDs <prefix>0001..<prefix>NNNN.
func GenerateCrews(n int, prefix string) []Crew {
	if n <= 0 {
		return nil
	}
	out := make([]Crew, n)
	for i := range out {
		out[i] = Crew{ID: fmt.Sprintf("%s%04d", prefix, i+1)}
	}
	return out
}

// Run polls for work until ctx is done or the queue stayed empty for
// StopWhenEmpty consecutive polls.
func (c *Crew) Run(ctx context.Context) error {
	empty := 0
	for ctx.Err() == nil {
		task, err := c.Client.Next(ctx, c.ID)
		switch {
		case errors.Is(err, errQueueEmpty):
			empty++
			if c.StopWhenEmpty > 0 && empty >= c.StopWhenEmpty {
				return nil
			}
			if !wait(ctx, c.PollInterval) {
				return nil
			}
			continue
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			c.Stats.Errors++
			c.Log.Warnf("%s: claim failed: %v", c.ID, err)
			if !wait(ctx, c.PollInterval) {
				return nil
			}
			continue
		}
		empty = 0
		c.Stats.Claimed++
		c.Stats.TaskIDs = append(c.Stats.TaskIDs, task.ID)
		c.Log.Debugf("%s claimed task %d: %d bikes %s -> %s", c.ID, task.ID, task.Qty, task.FromStationID, task.ToStationID)
		if !c.Strategy.Work(ctx) {
			c.Stats.Abandoned++
			continue
		}
		if _, err := c.Client.Complete(ctx, task.ID); err != nil {
			c.Stats.Errors++
			c.Log.Warnf("%s: complete task %d: %v", c.ID, task.ID, err)
			continue
		}
		c.Stats.Completed++
		c.Stats.Bikes += task.Qty
	}
	return nil
}
