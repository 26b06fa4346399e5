package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess          = 0 // Best recipe is chemically valid
	ExitCandidateInvalid = 1 // Run finished but the best recipe failed validation
	ExitError            = 2 // Configuration or runtime error
)

// CandidateInvalidError indicates that the command itself succeeded but the
// recipe it produced or checked has validation errors.
type CandidateInvalidError struct {
	Message string
}

func (e *CandidateInvalidError) Error() string {
	return e.Message
}

func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var invalid *CandidateInvalidError
	if errors.As(err, &invalid) {
		return ExitCandidateInvalid
	}
	return ExitError
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}
