// Package scheduler triggers the batch pipeline on a fixed interval. Its
// configuration can be read standalone from a JSON or YAML file.
package scheduler
