package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nguyenthileBLB/tructuyen10A4/internal/domain"
)

// submissionMarker discriminates an exported submission from an
// exported exam; both are otherwise plain JSON objects.
const submissionMarker = "SUBMISSION"

// ErrUnknownImport indicates the pasted data is neither an exam nor a
// submission export.
var ErrUnknownImport = errors.New("unrecognized import data")

// ImportType tells the caller what an import produced.
type ImportType string

const (
	ImportedExam       ImportType = "EXAM"
	ImportedSubmission ImportType = "SUBMISSION"
)

type exportedSubmission struct {
	domain.Submission
	DataType string `json:"_dataType"`
}

// ExportExam serializes an exam for hand-off to another device.
func ExportExam(exam domain.Exam) ([]byte, error) {
	return json.Marshal(exam)
}

// ExportSubmission serializes a submission with the type marker so
// the receiving side can tell it apart from an exam.
func ExportSubmission(sub domain.Submission) ([]byte, error) {
	return json.Marshal(exportedSubmission{Submission: sub, DataType: submissionMarker})
}

// Import accepts either export form. An imported submission is saved
// as-is through the idempotent store; an imported exam gets a fresh
// ID and access code so re-importing the same exam cannot collide.
func (s *ExamService) Import(ctx context.Context, data []byte) (ImportType, error) {
	var probe struct {
		DataType  string            `json:"_dataType"`
		ID        string            `json:"id"`
		Title     string            `json:"title"`
		ExamID    string            `json:"examId"`
		Answers   domain.Answers    `json:"answers"`
		Questions []domain.Question `json:"questions"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnknownImport, err)
	}

	if probe.DataType == submissionMarker && probe.ExamID != "" && probe.Answers != nil {
		var sub domain.Submission
		if err := json.Unmarshal(data, &sub); err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnknownImport, err)
		}
		if err := s.submissions.SaveSubmission(ctx, sub); err != nil {
			return "", err
		}
		s.log.Info().Str("student", sub.StudentName).Msg("imported submission")
		return ImportedSubmission, nil
	}

	if probe.ID != "" && probe.Title != "" && len(probe.Questions) > 0 {
		var exam domain.Exam
		if err := json.Unmarshal(data, &exam); err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnknownImport, err)
		}
		exam.ID = uuid.NewString()
		exam.Code = domain.GenerateCode()
		exam.TeacherName = "Imported"
		if err := s.exams.SaveExam(ctx, exam); err != nil {
			return "", err
		}
		s.log.Info().Str("title", exam.Title).Msg("imported exam")
		return ImportedExam, nil
	}

	return "", ErrUnknownImport
}
