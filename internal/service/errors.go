package service

import "errors"

// Domain errors shared by the session and attempt services. Handlers map
// these to stable API error codes; anything else is an internal error.
var (
	ErrNotFound             = errors.New("resource not found")
	ErrInvalidTransition    = errors.New("status transition not allowed")
	ErrTimeWindow           = errors.New("operation outside the required time window")
	ErrNoPaper              = errors.New("session has no paper attached")
	ErrNotJoinable          = errors.New("session is not open for joining")
	ErrNotParticipant       = errors.New("user is not on the session allow list")
	ErrNotJoined            = errors.New("no attempt exists for this session and user")
	ErrAlreadyCompleted     = errors.New("attempt is already finished")
	ErrAttemptLimit         = errors.New("attempt limit exceeded")
	ErrAttemptNotInProgress = errors.New("attempt is not in progress")
	ErrAttemptTimedOut      = errors.New("attempt time limit exhausted")
	ErrInvalidSignature     = errors.New("client signature mismatch")
)
