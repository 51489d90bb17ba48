package app

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nguyenthileBLB/tructuyen10A4/internal/domain"
)

// ExamService ties exam content, teams, submissions and device
// history together for the presentation layer.
type ExamService struct {
	exams       ExamStore
	submissions SubmissionStore
	teams       TeamStore
	devices     DeviceHistory
	watcher     *PublishWatcher
	log         zerolog.Logger
}

func NewExamService(exams ExamStore, submissions SubmissionStore, teams TeamStore, devices DeviceHistory, watcher *PublishWatcher, log zerolog.Logger) *ExamService {
	return &ExamService{
		exams:       exams,
		submissions: submissions,
		teams:       teams,
		devices:     devices,
		watcher:     watcher,
		log:         log.With().Str("component", "exam_service").Logger(),
	}
}

// CreateExam assigns a fresh ID and access code before saving.
func (s *ExamService) CreateExam(ctx context.Context, exam domain.Exam) (domain.Exam, error) {
	exam.ID = uuid.NewString()
	exam.Code = domain.GenerateCode()
	exam.CreatedAt = time.Now()
	if err := s.exams.SaveExam(ctx, exam); err != nil {
		return domain.Exam{}, err
	}
	return exam, nil
}

func (s *ExamService) SaveExam(ctx context.Context, exam domain.Exam) error {
	return s.exams.SaveExam(ctx, exam)
}

func (s *ExamService) GetExam(ctx context.Context, id string) (domain.Exam, error) {
	return s.exams.GetExam(ctx, id)
}

func (s *ExamService) GetExamByCode(ctx context.Context, code string) (domain.Exam, error) {
	return s.exams.GetExamByCode(ctx, code)
}

func (s *ExamService) ListExams(ctx context.Context) ([]domain.Exam, error) {
	return s.exams.ListExams(ctx)
}

// DeleteExam removes the exam and everything hanging off it.
func (s *ExamService) DeleteExam(ctx context.Context, id string) error {
	if err := s.submissions.DeleteSubmissionsForExam(ctx, id); err != nil {
		return err
	}
	return s.exams.DeleteExam(ctx, id)
}

// SetPublished toggles the publication flag and notifies offline
// takers watching this exam.
func (s *ExamService) SetPublished(ctx context.Context, id string, published bool) error {
	if err := s.exams.SetPublished(ctx, id, published); err != nil {
		return err
	}
	s.watcher.Notify(id, published)
	s.log.Info().Str("exam", id).Bool("published", published).Msg("publish state changed")
	return nil
}

// WatchPublished subscribes to publish-state changes for one exam.
func (s *ExamService) WatchPublished(examID string) (<-chan bool, func()) {
	return s.watcher.Subscribe(examID)
}

func (s *ExamService) ListTeams(ctx context.Context) ([]domain.Team, error) {
	return s.teams.ListTeams(ctx)
}

func (s *ExamService) SaveTeams(ctx context.Context, teams []domain.Team) error {
	return s.teams.SaveTeams(ctx, teams)
}

// SaveSubmission persists a submission through the idempotent store.
func (s *ExamService) SaveSubmission(ctx context.Context, sub domain.Submission) error {
	return s.submissions.SaveSubmission(ctx, sub)
}

func (s *ExamService) SubmissionsForExam(ctx context.Context, examID string) ([]domain.Submission, error) {
	return s.submissions.SubmissionsForExam(ctx, examID)
}

func (s *ExamService) DeleteSubmission(ctx context.Context, id string) error {
	return s.submissions.DeleteSubmission(ctx, id)
}

// TeamScores sums the persisted submission scores per team for an
// exam's report view. Submissions without a team land under "Khác".
func (s *ExamService) TeamScores(ctx context.Context, examID string) ([]domain.TeamScore, error) {
	subs, err := s.submissions.SubmissionsForExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	totals := make(map[string]int)
	order := make([]string, 0)
	for _, sub := range subs {
		team := sub.Team
		if team == "" {
			team = "Khác"
		}
		if _, seen := totals[team]; !seen {
			order = append(order, team)
		}
		totals[team] += sub.Score
	}
	out := make([]domain.TeamScore, 0, len(order))
	for _, team := range order {
		out = append(out, domain.TeamScore{Team: team, Score: totals[team]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

// RecordOfflineSubmission saves a locally-taken attempt and locks the
// device against a second one for the same exam.
func (s *ExamService) RecordOfflineSubmission(ctx context.Context, sub domain.Submission) error {
	if err := s.submissions.SaveSubmission(ctx, sub); err != nil {
		return err
	}
	return s.devices.MarkDeviceSubmitted(ctx, sub.ExamID)
}

// HasDeviceSubmitted reports whether this device already submitted
// the exam offline.
func (s *ExamService) HasDeviceSubmitted(ctx context.Context, examID string) (bool, error) {
	return s.devices.HasDeviceSubmitted(ctx, examID)
}
