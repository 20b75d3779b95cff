// Package output renders command results as a table, JSON or YAML.
//
// The table formatter flattens nested maps into dotted keys so API
// envelopes print as KEY/VALUE rows.
package output
