package domain

import (
	"fmt"
	"math/rand"
	"time"
)

// QuestionType discriminates how a question is answered and scored.
type QuestionType string

const (
	MultipleChoice QuestionType = "MULTIPLE_CHOICE"
	ShortAnswer    QuestionType = "SHORT_ANSWER"
)

// Question is a single exam question. CorrectOption is meaningful for
// multiple choice, CorrectText for short answer.
type Question struct {
	ID            string       `json:"id"`
	Text          string       `json:"text"` // rich-text (HTML) body
	Type          QuestionType `json:"type"`
	Options       []string     `json:"options,omitempty"`
	CorrectOption int          `json:"correctOption"`
	CorrectText   string       `json:"correctText,omitempty"`
	Points        int          `json:"points"`
	TimeLimit     int          `json:"timeLimit,omitempty"` // seconds, 0 means default
}

// Exam is the content aggregate. It is immutable for the duration of a
// live session; students receive a read-only copy at sync time.
type Exam struct {
	ID          string     `json:"id"`
	Code        string     `json:"code"` // short access code, doubles as the room code when hosted
	Title       string     `json:"title"`
	Description string     `json:"description"`
	TeacherName string     `json:"teacherName"`
	CreatedAt   time.Time  `json:"createdAt"`
	Questions   []Question `json:"questions"`
	IsPublished bool       `json:"isPublished"`
	MusicURI    string     `json:"musicUri,omitempty"` // background audio reference, opaque to the core
}

// MaxScore is the sum of all question point values, regardless of how
// many questions were answered.
func (e Exam) MaxScore() int {
	total := 0
	for _, q := range e.Questions {
		total += q.Points
	}
	return total
}

// Team is a host-defined grouping students self-select during sync.
type Team struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Answer is a student's response to one question. Option carries the
// selected index for multiple choice, Text the free-form reply for
// short answer; the question type decides which field is read.
type Answer struct {
	Option int    `json:"option"`
	Text   string `json:"text,omitempty"`
}

// Answers maps question ID to the student's answer. Absence of a key
// means the question was never answered.
type Answers map[string]Answer

// Submission is the authoritative end-of-exam record. Exactly one
// exists per (examID, student name) pair; a later save for the same
// pair overwrites the earlier one.
type Submission struct {
	ID          string            `json:"id"`
	ExamID      string            `json:"examId"`
	StudentName string            `json:"studentName"`
	Team        string            `json:"team"`
	Answers     Answers           `json:"answers"`
	Score       int               `json:"score"`
	MaxScore    int               `json:"maxScore"`
	Feedback    map[string]string `json:"feedback,omitempty"`
	SubmittedAt time.Time         `json:"submittedAt"`
}

// Participant is the host-side roster entry for one connected student.
// The display name is the unique key within a session.
type Participant struct {
	Name      string    `json:"name"`
	Team      string    `json:"team"`
	Submitted bool      `json:"submitted"`
	JoinedAt  time.Time `json:"joinedAt"`
}

// ScoreEntry is the host's latest known score for one student.
type ScoreEntry struct {
	Name  string `json:"name"`
	Team  string `json:"team"`
	Score int    `json:"score"`
}

// TeamScore is one row of the live team leaderboard.
type TeamScore struct {
	Team  string `json:"team"`
	Score int    `json:"score"`
}

// DefaultTeams seeds a fresh installation with two teams.
func DefaultTeams() []Team {
	return []Team{
		{ID: "team_red", Name: "Đội Đỏ", Color: "red"},
		{ID: "team_blue", Name: "Đội Xanh", Color: "blue"},
	}
}

// GenerateCode returns a random 6-digit numeric code, used for exam
// access codes and default room codes.
func GenerateCode() string {
	return fmt.Sprintf("%06d", 100000+rand.Intn(900000))
}
