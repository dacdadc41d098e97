// Package console renders reqcheck's human-facing output: the dependency
// status block, the final summary and the progress display.
//
// Output is not a machine-readable contract. Colors and live redraws are used
// only when the writer is a terminal.
package console
