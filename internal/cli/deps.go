package cli

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	redisdriver "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/nguyenthileBLB/tructuyen10A4/internal/app"
	"github.com/nguyenthileBLB/tructuyen10A4/internal/config"
	"github.com/nguyenthileBLB/tructuyen10A4/internal/domain"
	"github.com/nguyenthileBLB/tructuyen10A4/internal/infra/memory"
	"github.com/nguyenthileBLB/tructuyen10A4/internal/infra/postgres"
	redisinfra "github.com/nguyenthileBLB/tructuyen10A4/internal/infra/redis"
	"github.com/nguyenthileBLB/tructuyen10A4/internal/session"
)

const (
	defaultRedisTTL = 24 * time.Hour
	defaultCacheTTL = 5 * time.Minute
	defaultDialWait = 5 * time.Second
)

// deps is the storage wiring shared by the host and join commands.
// Backends are picked from config: postgres when a URL is set, redis
// when an address is set, in-memory otherwise.
type deps struct {
	submissions session.SubmissionSaver
	exams       app.ExamRepository
	pool        *pgxpool.Pool
	rdb         *redisdriver.Client
}

func openDeps(ctx context.Context, cfg config.Config, log zerolog.Logger) (*deps, error) {
	d := &deps{}

	var loader memory.ExamLoader = memory.NewStaticExamLoader([]domain.Exam{sampleExam()})
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, err
		}
		d.pool = pool
		d.submissions = postgres.NewSubmissionStore(pool)
		loader = postgres.NewExamLoader(pool)
		log.Info().Msg("using postgres storage")
	}

	cacheTTL := config.Duration(cfg.Exam.CacheTTL, defaultCacheTTL)
	if cfg.Redis.Addr != "" {
		d.rdb = redisdriver.NewClient(&redisdriver.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := d.rdb.Ping(ctx).Err(); err != nil {
			d.close()
			return nil, err
		}
		if d.submissions == nil {
			d.submissions = redisinfra.NewSubmissionStore(d.rdb, config.Duration(cfg.Redis.TTL, defaultRedisTTL))
		}
		d.exams = redisinfra.NewExamRepository(d.rdb, loader, cacheTTL)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("using redis cache")
	} else {
		d.exams = memory.NewExamRepository(loader, cacheTTL)
	}

	if d.submissions == nil {
		d.submissions = memory.NewSubmissionStore()
	}
	return d, nil
}

func (d *deps) close() {
	if d.pool != nil {
		d.pool.Close()
	}
	if d.rdb != nil {
		d.rdb.Close()
	}
}

// sampleExam seeds fresh installs so a host can run a room with no
// database behind it.
func sampleExam() domain.Exam {
	return domain.Exam{
		ID:          "default-math-01",
		Code:        "123456",
		Title:       "Toán Học Vui - Lớp 5",
		Description: "Bài kiểm tra kiến thức cơ bản về phân số và hình học.",
		TeacherName: "Hệ Thống",
		CreatedAt:   time.Now(),
		IsPublished: true,
		Questions: []domain.Question{
			{
				ID:            "q1",
				Text:          "Kết quả của phép tính 25 + 15 x 2 là bao nhiêu?",
				Type:          domain.MultipleChoice,
				Options:       []string{"80", "55", "65", "40"},
				CorrectOption: 1,
				Points:        10,
				TimeLimit:     30,
			},
			{
				ID:            "q2",
				Text:          "Diện tích hình vuông có cạnh 5cm là:",
				Type:          domain.MultipleChoice,
				Options:       []string{"20cm2", "25cm2", "10cm2", "50cm2"},
				CorrectOption: 1,
				Points:        10,
				TimeLimit:     30,
			},
			{
				ID:          "q3",
				Text:        "Một lớp học có 40 học sinh, trong đó có 25 nữ. Hỏi số học sinh nam chiếm bao nhiêu phần trăm?",
				Type:        domain.ShortAnswer,
				CorrectText: "37.5%",
				Points:      10,
				TimeLimit:   60,
			},
		},
	}
}
