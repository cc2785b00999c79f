// Package main is the entry point for the spectl CLI.
// spectl plans tile jobs, hands them to an execution backend and reads
// the dashboard feed.
package main

import (
	"errors"
	"os"

	"specplane/cmd/cli/cmd"
	"specplane/internal/submit"
)

func main() {
	if err := cmd.Execute(); err != nil {
		var failed *submit.FailedSubmissionsError
		if errors.As(err, &failed) {
			// Exit codes are a byte; a huge failure count must not wrap
			// back to zero.
			code := failed.Count
			if code > 255 {
				code = 255
			}
			os.Exit(code)
		}
		os.Exit(1)
	}
}
