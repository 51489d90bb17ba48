package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/nguyenthileBLB/tructuyen10A4/internal/domain"
)

// SubmissionStore persists submissions with a unique constraint on
// (exam_id, student_key), so the update-in-place guarantee is enforced
// by the database itself.
type SubmissionStore struct {
	pool *pgxpool.Pool
}

func NewSubmissionStore(pool *pgxpool.Pool) *SubmissionStore {
	return &SubmissionStore{pool: pool}
}

func (s *SubmissionStore) SaveSubmission(ctx context.Context, sub domain.Submission) error {
	key := foldName(sub.StudentName)

	// Keep the original record ID across overwrites.
	var existingID string
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM submissions WHERE exam_id=$1 AND student_key=$2`,
		sub.ExamID, key).Scan(&existingID)
	if err == nil {
		sub.ID = existingID
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("lookup submission: %w", err)
	}

	raw, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("encode submission: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO submissions (id, exam_id, student_key, data)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (exam_id, student_key) DO UPDATE SET data = EXCLUDED.data`,
		sub.ID, sub.ExamID, key, raw)
	if err != nil {
		return fmt.Errorf("save submission: %w", err)
	}
	return nil
}

func (s *SubmissionStore) SubmissionsForExam(ctx context.Context, examID string) ([]domain.Submission, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM submissions WHERE exam_id=$1 ORDER BY data->>'submittedAt'`, examID)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Submission, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		var sub domain.Submission
		if err := json.Unmarshal(raw, &sub); err != nil {
			continue
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *SubmissionStore) DeleteSubmission(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM submissions WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete submission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSubmissionNotFound
	}
	return nil
}

func (s *SubmissionStore) DeleteSubmissionsForExam(ctx context.Context, examID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM submissions WHERE exam_id=$1`, examID)
	if err != nil {
		return fmt.Errorf("delete submissions: %w", err)
	}
	return nil
}

func foldName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
