// Package app contains the storage-facing use cases around the live
// session core: exam and team management, idempotent submission
// persistence, publish notifications and data import/export.
package app

import (
	"context"

	"github.com/nguyenthileBLB/tructuyen10A4/internal/domain"
)

// ExamStore is the persistent exam collection. Save with an existing
// ID overwrites.
type ExamStore interface {
	GetExam(ctx context.Context, id string) (domain.Exam, error)
	GetExamByCode(ctx context.Context, code string) (domain.Exam, error)
	ListExams(ctx context.Context) ([]domain.Exam, error)
	SaveExam(ctx context.Context, exam domain.Exam) error
	DeleteExam(ctx context.Context, id string) error
	SetPublished(ctx context.Context, id string, published bool) error
}

// SubmissionStore persists final submissions. SaveSubmission must be
// idempotent per (examID, folded student name): a second save for the
// same pair updates in place, keeping the original record ID.
type SubmissionStore interface {
	SaveSubmission(ctx context.Context, sub domain.Submission) error
	SubmissionsForExam(ctx context.Context, examID string) ([]domain.Submission, error)
	DeleteSubmission(ctx context.Context, id string) error
	DeleteSubmissionsForExam(ctx context.Context, examID string) error
}

// TeamStore persists the teacher's team list.
type TeamStore interface {
	ListTeams(ctx context.Context) ([]domain.Team, error)
	SaveTeams(ctx context.Context, teams []domain.Team) error
}

// DeviceHistory records which exams this device already submitted, to
// enforce one offline submission per device.
type DeviceHistory interface {
	HasDeviceSubmitted(ctx context.Context, examID string) (bool, error)
	MarkDeviceSubmitted(ctx context.Context, examID string) error
}

// ExamRepository is the cached read path used to resolve an exam by
// its access code when a session starts.
type ExamRepository interface {
	GetExamByCode(ctx context.Context, code string) (domain.Exam, error)
}
