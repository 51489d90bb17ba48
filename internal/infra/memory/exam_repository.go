package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nguyenthileBLB/tructuyen10A4/internal/domain"
)

// ExamLoader fetches exam content by access code from a backing store.
type ExamLoader interface {
	LoadExamByCode(ctx context.Context, code string) (domain.Exam, error)
}

// ExamRepository caches exam content with a TTL so repeated joins
// against the same room do not hammer the backing store.
type ExamRepository struct {
	loader ExamLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedExam
}

type cachedExam struct {
	exam      domain.Exam
	expiresAt time.Time
}

func NewExamRepository(loader ExamLoader, ttl time.Duration) *ExamRepository {
	return &ExamRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedExam),
	}
}

func (r *ExamRepository) GetExamByCode(ctx context.Context, code string) (domain.Exam, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[code]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.exam, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(code, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[code]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.exam, nil
		}
		r.mu.RUnlock()

		exam, err := r.loader.LoadExamByCode(ctx, code)
		if err != nil {
			return domain.Exam{}, err
		}

		r.mu.Lock()
		r.cache[code] = cachedExam{
			exam:      exam,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return exam, nil
	})
	if err != nil {
		return domain.Exam{}, err
	}
	return result.(domain.Exam), nil
}

func (r *ExamRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticExamLoader serves a fixed exam set, useful for tests and the
// no-database demo mode.
type StaticExamLoader struct {
	exams map[string]domain.Exam // keyed by access code
}

func NewStaticExamLoader(exams []domain.Exam) *StaticExamLoader {
	byCode := make(map[string]domain.Exam, len(exams))
	for _, exam := range exams {
		byCode[exam.Code] = exam
	}
	return &StaticExamLoader{exams: byCode}
}

func (l *StaticExamLoader) LoadExamByCode(_ context.Context, code string) (domain.Exam, error) {
	if exam, ok := l.exams[code]; ok {
		return exam, nil
	}
	return domain.Exam{}, domain.ErrExamNotFound
}
