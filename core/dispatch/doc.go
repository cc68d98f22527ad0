// Package dispatch implements the field task queue.
//
// A task moves through ready, assigned and completed. Promote turns a
// pending suggestion into a ready task, Claim hands the oldest ready task to
// a worker and Complete closes it. Storage backends guarantee that a ready
// task is claimed by at most one worker; the Manager adds metrics, audit
// logging and event publication around them.
package dispatch
