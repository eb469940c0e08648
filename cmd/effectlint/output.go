package main

import (
	"fmt"
	"io"

	"effectlint/internal/output"
)

// writeJSON encodes v deterministically with a trailing newline.
func writeJSON(w io.Writer, v interface{}) error {
	data, err := output.DeterministicEncodeIndented(v, "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
