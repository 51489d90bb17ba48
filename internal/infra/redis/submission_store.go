// Package redis provides redis-backed store implementations, used
// when a redis address is configured so submissions survive a host
// process restart.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nguyenthileBLB/tructuyen10A4/internal/domain"
)

// SubmissionStore keeps submissions in one hash per exam:
//
//	HSET exam:{examID}:submissions {folded name} {submission JSON}
//
// plus an id index for deletion by record ID. Field-per-student makes
// the idempotence guarantee structural: a second save for the same
// student can only overwrite its own field.
type SubmissionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSubmissionStore(client *redis.Client, ttl time.Duration) *SubmissionStore {
	return &SubmissionStore{client: client, ttl: ttl}
}

func (s *SubmissionStore) SaveSubmission(ctx context.Context, sub domain.Submission) error {
	key := s.examKey(sub.ExamID)
	field := foldName(sub.StudentName)

	// Preserve the original record ID on overwrite.
	if raw, err := s.client.HGet(ctx, key, field).Result(); err == nil {
		var existing domain.Submission
		if json.Unmarshal([]byte(raw), &existing) == nil && existing.ID != "" {
			s.client.HDel(ctx, s.indexKey(), existing.ID)
			sub.ID = existing.ID
		}
	}

	raw, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("encode submission: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, field, raw)
	pipe.HSet(ctx, s.indexKey(), sub.ID, sub.ExamID+"|"+field)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save submission: %w", err)
	}
	return nil
}

func (s *SubmissionStore) SubmissionsForExam(ctx context.Context, examID string) ([]domain.Submission, error) {
	fields, err := s.client.HGetAll(ctx, s.examKey(examID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	out := make([]domain.Submission, 0, len(fields))
	for _, raw := range fields {
		var sub domain.Submission
		if err := json.Unmarshal([]byte(raw), &sub); err != nil {
			continue
		}
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

func (s *SubmissionStore) DeleteSubmission(ctx context.Context, id string) error {
	ref, err := s.client.HGet(ctx, s.indexKey(), id).Result()
	if err != nil {
		return domain.ErrSubmissionNotFound
	}
	examID, field, ok := strings.Cut(ref, "|")
	if !ok {
		return domain.ErrSubmissionNotFound
	}
	pipe := s.client.Pipeline()
	pipe.HDel(ctx, s.examKey(examID), field)
	pipe.HDel(ctx, s.indexKey(), id)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *SubmissionStore) DeleteSubmissionsForExam(ctx context.Context, examID string) error {
	subs, err := s.SubmissionsForExam(ctx, examID)
	if err != nil {
		return err
	}
	pipe := s.client.Pipeline()
	for _, sub := range subs {
		pipe.HDel(ctx, s.indexKey(), sub.ID)
	}
	pipe.Del(ctx, s.examKey(examID))
	_, err = pipe.Exec(ctx)
	return err
}

func (s *SubmissionStore) examKey(examID string) string {
	return "exam:" + examID + ":submissions"
}

func (s *SubmissionStore) indexKey() string {
	return "submissions:index"
}

func foldName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
