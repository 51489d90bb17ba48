package domain

import "errors"

var (
	// ErrIdentityUnavailable is returned when the preferred room identity is already registered with the broker.
	ErrIdentityUnavailable = errors.New("identity already in use")
	// ErrBrokerUnreachable indicates the signaling relay could not be reached.
	ErrBrokerUnreachable = errors.New("broker unreachable")
	// ErrConnectionTimeout indicates a channel did not report open within the dial bound.
	ErrConnectionTimeout = errors.New("connection timeout")
	// ErrConnectionRefused indicates the remote identity does not exist.
	ErrConnectionRefused = errors.New("connection refused")

	// ErrExamNotFound indicates the exam content could not be loaded.
	ErrExamNotFound = errors.New("exam not found")
	// ErrSubmissionNotFound indicates no submission exists for the given key.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrInvalidRoomCode indicates a room code outside the accepted alphabet or length.
	ErrInvalidRoomCode = errors.New("invalid room code")
	// ErrSessionClosed is returned when an operation is attempted on an ended session.
	ErrSessionClosed = errors.New("session has ended")
	// ErrAlreadyStarted is returned when a lifecycle transition is replayed out of order.
	ErrAlreadyStarted = errors.New("session already started")
	// ErrNotStarted is returned from exam-taking operations before the start signal.
	ErrNotStarted = errors.New("exam has not started")
	// ErrQuestionsRemaining rejects an explicit submission before the final question.
	ErrQuestionsRemaining = errors.New("questions remaining")
	// ErrAlreadySubmitted guards the exactly-once local submission transition.
	ErrAlreadySubmitted = errors.New("exam already submitted")
)
