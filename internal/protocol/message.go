// Package protocol defines the closed set of messages exchanged
// between a host and its students. Every kind is idempotent by
// contract: the transport may duplicate a message, so each handler
// must tolerate a repeat delivery of the same payload.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/nguyenthileBLB/tructuyen10A4/internal/domain"
)

// Kind tags an envelope with its payload shape.
type Kind string

const (
	// KindStudentJoin is sent by a student immediately after its channel opens.
	KindStudentJoin Kind = "STUDENT_JOIN"
	// KindSyncExam carries the exam and team list, unicast host to student.
	KindSyncExam Kind = "SYNC_EXAM"
	// KindPlayerReady registers the student's name and team choice on the roster.
	KindPlayerReady Kind = "PLAYER_READY"
	// KindStartExam moves students from the waiting room to the first question.
	KindStartExam Kind = "START_EXAM"
	// KindLiveScoreUpdate is fire-and-forget score telemetry, student to host.
	KindLiveScoreUpdate Kind = "LIVE_SCORE_UPDATE"
	// KindSubmitExam carries the authoritative full submission record.
	KindSubmitExam Kind = "SUBMIT_EXAM"
	// KindHostEnded is broadcast once when the teacher closes the room.
	KindHostEnded Kind = "HOST_ENDED"
	// KindHostClose is reserved; current hosts signal shutdown with KindHostEnded.
	KindHostClose Kind = "HOST_CLOSE"
)

// Envelope is the wire form of every message.
type Envelope struct {
	Type    Kind            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ErrUnknownKind wraps an unrecognized or malformed message. Receivers
// ignore these rather than failing the session.
type ErrUnknownKind struct {
	Kind Kind
}

func (e ErrUnknownKind) Error() string {
	return fmt.Sprintf("unknown message kind %q", e.Kind)
}

type StudentJoin struct {
	Name string `json:"name"`
}

type SyncExam struct {
	Exam  domain.Exam   `json:"exam"`
	Teams []domain.Team `json:"teams"`
}

type PlayerReady struct {
	Name string `json:"name"`
	Team string `json:"team"`
}

type LiveScoreUpdate struct {
	StudentName  string `json:"studentName"`
	Team         string `json:"team"`
	CurrentScore int    `json:"currentScore"`
}

// Message is implemented by every payload variant so senders can build
// envelopes without repeating the kind tag.
type Message interface {
	Kind() Kind
}

func (StudentJoin) Kind() Kind     { return KindStudentJoin }
func (SyncExam) Kind() Kind        { return KindSyncExam }
func (PlayerReady) Kind() Kind     { return KindPlayerReady }
func (LiveScoreUpdate) Kind() Kind { return KindLiveScoreUpdate }
func (StartExam) Kind() Kind       { return KindStartExam }
func (SubmitExam) Kind() Kind      { return KindSubmitExam }
func (HostEnded) Kind() Kind       { return KindHostEnded }

// StartExam and HostEnded carry no payload.
type StartExam struct{}
type HostEnded struct{}

// SubmitExam wraps the submission record.
type SubmitExam struct {
	domain.Submission
}

// NewEnvelope marshals a payload into its tagged wire form.
func NewEnvelope(msg Message) (Envelope, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", msg.Kind(), err)
	}
	return Envelope{Type: msg.Kind(), Payload: raw}, nil
}

// MustEnvelope is NewEnvelope for payloads that cannot fail to marshal.
func MustEnvelope(msg Message) Envelope {
	env, err := NewEnvelope(msg)
	if err != nil {
		panic(err)
	}
	return env
}

// Decode parses an envelope into its typed payload. Unknown kinds and
// malformed payloads return ErrUnknownKind so callers can drop them.
func Decode(env Envelope) (Message, error) {
	switch env.Type {
	case KindStudentJoin:
		return decodeAs[StudentJoin](env)
	case KindSyncExam:
		return decodeAs[SyncExam](env)
	case KindPlayerReady:
		return decodeAs[PlayerReady](env)
	case KindStartExam:
		return StartExam{}, nil
	case KindLiveScoreUpdate:
		return decodeAs[LiveScoreUpdate](env)
	case KindSubmitExam:
		return decodeAs[SubmitExam](env)
	case KindHostEnded:
		return HostEnded{}, nil
	default:
		return nil, ErrUnknownKind{Kind: env.Type}
	}
}

func decodeAs[T Message](env Envelope) (Message, error) {
	var msg T
	if len(env.Payload) == 0 {
		return nil, ErrUnknownKind{Kind: env.Type}
	}
	if err := json.Unmarshal(env.Payload, &msg); err != nil {
		return nil, ErrUnknownKind{Kind: env.Type}
	}
	return msg, nil
}
