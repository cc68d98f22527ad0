// Package events defines the events emitted on the internal event bus.
//
// Available event types:
//   - TaskEvent: a task entered the queue or changed state
//   - PipelineEvent: a pipeline stage finished
package events
