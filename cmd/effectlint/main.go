package main

import (
	"errors"
	"fmt"
	"os"

	engerrors "effectlint/internal/errors"
)

func main() {
	err := rootCmd.Execute()
	closeLogger()
	if err == nil {
		return
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	var ee *engerrors.EngineError
	if errors.As(err, &ee) {
		for _, fix := range ee.SuggestedFixes {
			if fix.Command != "" {
				fmt.Fprintf(os.Stderr, "  try: %s\n", fix.Command)
			} else if fix.Description != "" {
				fmt.Fprintf(os.Stderr, "  hint: %s\n", fix.Description)
			}
		}
	}
	os.Exit(exitCode(err))
}
