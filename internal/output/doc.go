// Package output renders analysis results for the command line.
//
// JSON output goes through DeterministicEncode so that identical input
// produces identical bytes, which the QA result files and golden tests rely
// on. Human output is a lipgloss-styled listing ordered by SortRows:
//
//	severity (error, warning, info) -> file ASC -> line ASC -> column ASC -> rule ASC
package output
