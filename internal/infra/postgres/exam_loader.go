// Package postgres backs exam content and submissions with Postgres.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/nguyenthileBLB/tructuyen10A4/internal/domain"
)

// ExamLoader loads exam JSONB by access code.
type ExamLoader struct {
	pool *pgxpool.Pool
}

func NewExamLoader(pool *pgxpool.Pool) *ExamLoader {
	return &ExamLoader{pool: pool}
}

func (l *ExamLoader) LoadExamByCode(ctx context.Context, code string) (domain.Exam, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM exams WHERE code=$1`, code).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Exam{}, domain.ErrExamNotFound
	}
	if err != nil {
		return domain.Exam{}, fmt.Errorf("load exam: %w", err)
	}
	var exam domain.Exam
	if err := json.Unmarshal(raw, &exam); err != nil {
		return domain.Exam{}, fmt.Errorf("unmarshal exam: %w", err)
	}
	return exam, nil
}
