// Package memory provides in-memory store implementations, the
// default when no redis or postgres backend is configured.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/nguyenthileBLB/tructuyen10A4/internal/domain"
)

// ExamStore keeps exams in a map keyed by ID.
type ExamStore struct {
	mu    sync.RWMutex
	exams map[string]domain.Exam
}

func NewExamStore() *ExamStore {
	return &ExamStore{exams: make(map[string]domain.Exam)}
}

func (s *ExamStore) GetExam(_ context.Context, id string) (domain.Exam, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exam, ok := s.exams[id]
	if !ok {
		return domain.Exam{}, domain.ErrExamNotFound
	}
	return exam, nil
}

func (s *ExamStore) GetExamByCode(_ context.Context, code string) (domain.Exam, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, exam := range s.exams {
		if exam.Code == code {
			return exam, nil
		}
	}
	return domain.Exam{}, domain.ErrExamNotFound
}

func (s *ExamStore) ListExams(_ context.Context) ([]domain.Exam, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Exam, 0, len(s.exams))
	for _, exam := range s.exams {
		out = append(out, exam)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *ExamStore) SaveExam(_ context.Context, exam domain.Exam) error {
	s.mu.Lock()
	s.exams[exam.ID] = exam
	s.mu.Unlock()
	return nil
}

func (s *ExamStore) DeleteExam(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.exams, id)
	s.mu.Unlock()
	return nil
}

func (s *ExamStore) SetPublished(_ context.Context, id string, published bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	exam, ok := s.exams[id]
	if !ok {
		return domain.ErrExamNotFound
	}
	exam.IsPublished = published
	s.exams[id] = exam
	return nil
}

// SubmissionStore keeps submissions keyed by (examID, folded name),
// which makes saving the same student twice an update in place.
type SubmissionStore struct {
	mu   sync.RWMutex
	subs map[string]domain.Submission
}

func NewSubmissionStore() *SubmissionStore {
	return &SubmissionStore{subs: make(map[string]domain.Submission)}
}

// SubmissionKey folds a submission's identity the way every store
// implementation must: trimmed, lowercased student name per exam.
func SubmissionKey(examID, studentName string) string {
	return examID + "|" + strings.ToLower(strings.TrimSpace(studentName))
}

func (s *SubmissionStore) SaveSubmission(_ context.Context, sub domain.Submission) error {
	key := SubmissionKey(sub.ExamID, sub.StudentName)
	s.mu.Lock()
	if existing, ok := s.subs[key]; ok {
		sub.ID = existing.ID
	}
	s.subs[key] = sub
	s.mu.Unlock()
	return nil
}

func (s *SubmissionStore) SubmissionsForExam(_ context.Context, examID string) ([]domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Submission, 0)
	for _, sub := range s.subs {
		if sub.ExamID == examID {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

func (s *SubmissionStore) DeleteSubmission(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, sub := range s.subs {
		if sub.ID == id {
			delete(s.subs, key)
			return nil
		}
	}
	return domain.ErrSubmissionNotFound
}

func (s *SubmissionStore) DeleteSubmissionsForExam(_ context.Context, examID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, sub := range s.subs {
		if sub.ExamID == examID {
			delete(s.subs, key)
		}
	}
	return nil
}

// TeamStore keeps the teacher's team list, falling back to the two
// default teams until one is saved.
type TeamStore struct {
	mu    sync.RWMutex
	teams []domain.Team
}

func NewTeamStore() *TeamStore {
	return &TeamStore{}
}

func (s *TeamStore) ListTeams(_ context.Context) ([]domain.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.teams == nil {
		return domain.DefaultTeams(), nil
	}
	out := make([]domain.Team, len(s.teams))
	copy(out, s.teams)
	return out, nil
}

func (s *TeamStore) SaveTeams(_ context.Context, teams []domain.Team) error {
	s.mu.Lock()
	s.teams = make([]domain.Team, len(teams))
	copy(s.teams, teams)
	s.mu.Unlock()
	return nil
}

// DeviceHistory records offline submissions made from this device.
type DeviceHistory struct {
	mu        sync.RWMutex
	submitted map[string]bool
}

func NewDeviceHistory() *DeviceHistory {
	return &DeviceHistory{submitted: make(map[string]bool)}
}

func (h *DeviceHistory) HasDeviceSubmitted(_ context.Context, examID string) (bool, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.submitted[examID], nil
}

func (h *DeviceHistory) MarkDeviceSubmitted(_ context.Context, examID string) error {
	h.mu.Lock()
	h.submitted[examID] = true
	h.mu.Unlock()
	return nil
}
