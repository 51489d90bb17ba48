package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/nguyenthileBLB/tructuyen10A4/internal/domain"
)

// ExamLoader fetches exam content from the backing store on a cache miss.
type ExamLoader interface {
	LoadExamByCode(ctx context.Context, code string) (domain.Exam, error)
}

// ExamRepository caches exam JSON in Redis keyed by access code and
// falls back to a loader on miss, with singleflight so one store hit
// serves a burst of simultaneous joins.
type ExamRepository struct {
	client *redis.Client
	loader ExamLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewExamRepository(client *redis.Client, loader ExamLoader, ttl time.Duration) *ExamRepository {
	return &ExamRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *ExamRepository) GetExamByCode(ctx context.Context, code string) (domain.Exam, error) {
	key := r.key(code)

	if raw, err := r.client.Get(ctx, key).Result(); err == nil {
		var exam domain.Exam
		if json.Unmarshal([]byte(raw), &exam) == nil {
			return exam, nil
		}
	}

	result, err, _ := r.sf.Do(code, func() (interface{}, error) {
		// Re-check in case another goroutine filled the cache.
		if raw, err := r.client.Get(ctx, key).Result(); err == nil {
			var exam domain.Exam
			if json.Unmarshal([]byte(raw), &exam) == nil {
				return exam, nil
			}
		}

		exam, err := r.loader.LoadExamByCode(ctx, code)
		if err != nil {
			return domain.Exam{}, err
		}

		if raw, err := json.Marshal(exam); err == nil {
			_ = r.client.Set(ctx, key, raw, r.ttlWithJitter()).Err()
		}
		return exam, nil
	})
	if err != nil {
		return domain.Exam{}, err
	}
	return result.(domain.Exam), nil
}

func (r *ExamRepository) key(code string) string {
	return "exam:code:" + code
}

func (r *ExamRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
