// Package rebalance turns station forecasts into move suggestions.
//
// Every station is nudged toward half of its capacity. Stations forecast to
// overflow give bikes, stations forecast to run dry receive them, and balanced
// stations with a surplus or deficit act as lower priority fallbacks. The
// matcher is a local greedy heuristic: each source is paired with at most one
// sink, the nearest one of the best priority tier within MaxDistanceM. It
// does not attempt a globally optimal transport plan, so a nearer sink may be
// left to a source processed later.
package rebalance
