package challenge

import (
	"errors"
	"fmt"
)

// Workflow errors surfaced to the dispatcher. Callers match these with
// errors.Is to pick the user-facing response.
var (
	// ErrNoActiveChallenge is returned when an operation requires a running
	// challenge and none exists
	ErrNoActiveChallenge = errors.New("no active challenge")

	// ErrInvalidState is returned when a challenge is not in the state an
	// operation requires
	ErrInvalidState = errors.New("challenge is in an invalid state for this operation")

	// ErrChallengeActive is returned when an operation requires the challenge
	// to be past its submission phase. It matches ErrInvalidState, so callers
	// that only distinguish state errors need no extra case.
	ErrChallengeActive = fmt.Errorf("challenge is still active: %w", ErrInvalidState)

	// ErrDuplicateSubmission is returned when a participant already holds a
	// submission channel for the challenge
	ErrDuplicateSubmission = errors.New("participant already has a submission")

	// ErrSubmissionNotFound is returned when no submission matches the
	// channel the interaction came from
	ErrSubmissionNotFound = errors.New("submission not found")

	// ErrNotSubmissionOwner is returned when someone other than the owner
	// tries to close a submission channel
	ErrNotSubmissionOwner = errors.New("actor does not own this submission")

	// ErrAlreadyGraded is returned when a submission already carries a final
	// grade
	ErrAlreadyGraded = errors.New("submission already graded")

	// ErrOrphanedChannel marks a channel that exists on the platform with no
	// matching submission record. The channel ID is carried in the wrapping
	// error and must be cleaned up by an operator.
	ErrOrphanedChannel = errors.New("channel has no submission record")
)
