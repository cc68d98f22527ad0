package main

import (
	"context"
	"math/rand"
	"time"
)

var rng = rand.New(rand.NewSource(time.Now().UnixNano()))

// CompletionStrategy decides whether and when a crew finishes a task.
type CompletionStrategy interface {
	// Work blocks for the duration of the job and reports whether the task
	// should be completed.
	Work(ctx context.Context) bool
}

// AutoComplete finishes every task after an optional fixed delay.
type AutoComplete struct {
	Delay time.Duration
}

func (a AutoComplete) Work(ctx context.Context) bool {
	return wait(ctx, a.Delay)
}

// RandomComplete abandons tasks with the configured probability and waits
// for the specified delay before finishing the others.
type RandomComplete struct {
	Delay    time.Duration
	DropRate float64
}

func (r RandomComplete) Work(ctx context.Context) bool {
	if r.DropRate > 0 && rng.Float64() < r.DropRate {
		return false
	}
	return wait(ctx, r.Delay)
}

func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
