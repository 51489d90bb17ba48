package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nguyenthileBLB/tructuyen10A4/internal/broker"
	"github.com/nguyenthileBLB/tructuyen10A4/internal/domain"
	"github.com/nguyenthileBLB/tructuyen10A4/internal/protocol"
)

// StudentState is the per-student lifecycle.
type StudentState string

const (
	StudentConnecting  StudentState = "CONNECTING"
	StudentWaitingRoom StudentState = "WAITING_ROOM"
	StudentAnswering   StudentState = "ANSWERING"
	StudentSubmitted   StudentState = "SUBMITTED_PENDING_RESULTS"
	StudentResults     StudentState = "RESULTS_VISIBLE"
	StudentExited      StudentState = "EXITED"
)

const defaultSyncTimeout = 10 * time.Second

// StudentConfig bundles student construction parameters.
type StudentConfig struct {
	// Name is the display name, the student's key within the session.
	Name string
	// SyncTimeout bounds the wait for the host's SYNC_EXAM after
	// joining. Zero means the 10 second default.
	SyncTimeout time.Duration
	// TickInterval drives the countdown. Zero means one second; a
	// negative value disables the internal ticker so tests can drive
	// Tick directly.
	TickInterval time.Duration
}

// Student runs the exam-taking side of a live session: join and sync,
// waiting room, the answering loop, and exactly-once submission.
type Student struct {
	client       broker.Client
	log          zerolog.Logger
	name         string
	syncTimeout  time.Duration
	tickInterval time.Duration

	mu         sync.Mutex
	state      StudentState
	exam       domain.Exam
	teams      []domain.Team
	team       string
	channel    broker.Channel
	runner     *Runner
	result     *domain.Submission
	synced     chan struct{}
	syncedOnce sync.Once
	tickStop   chan struct{}
	cancels    []func()
}

func NewStudent(client broker.Client, cfg StudentConfig, log zerolog.Logger) *Student {
	syncTimeout := cfg.SyncTimeout
	if syncTimeout <= 0 {
		syncTimeout = defaultSyncTimeout
	}
	tick := cfg.TickInterval
	if tick == 0 {
		tick = time.Second
	}
	return &Student{
		client:       client,
		log:          log.With().Str("component", "student").Str("name", cfg.Name).Logger(),
		name:         cfg.Name,
		syncTimeout:  syncTimeout,
		tickInterval: tick,
		state:        StudentConnecting,
		synced:       make(chan struct{}),
	}
}

// Join connects to a room and blocks until the host's sync arrives.
// The broker assigns this student a random identity; only the host
// needs a well-known one. A failed join leaves the student free to
// retry with a fresh Join.
func (s *Student) Join(ctx context.Context, roomCode string) error {
	identity, err := RoomIdentity(roomCode)
	if err != nil {
		return err
	}
	if _, err := s.client.Initialize(ctx, ""); err != nil {
		return err
	}

	cancel := s.client.SubscribeMessages(s.handle)
	s.mu.Lock()
	s.cancels = append(s.cancels, cancel)
	s.mu.Unlock()

	ch, err := s.client.Connect(ctx, identity)
	if err != nil {
		s.client.Shutdown()
		return err
	}

	s.mu.Lock()
	s.channel = ch
	s.mu.Unlock()

	s.client.Send(protocol.MustEnvelope(protocol.StudentJoin{Name: s.name}), ch)

	timer := time.NewTimer(s.syncTimeout)
	defer timer.Stop()
	select {
	case <-s.synced:
		return nil
	case <-timer.C:
		s.client.Shutdown()
		return domain.ErrConnectionTimeout
	case <-ctx.Done():
		s.client.Shutdown()
		return ctx.Err()
	}
}

// Ready reports the student's team choice to the host. The roster
// entry only exists after this; a bare join is invisible on the
// teacher's screen.
func (s *Student) Ready(team string) error {
	s.mu.Lock()
	if s.state != StudentWaitingRoom {
		s.mu.Unlock()
		return domain.ErrNotStarted
	}
	s.team = team
	ch := s.channel
	s.mu.Unlock()

	s.client.Send(protocol.MustEnvelope(protocol.PlayerReady{Name: s.name, Team: team}), ch)
	return nil
}

// State returns the current lifecycle state.
func (s *Student) State() StudentState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Exam returns the synced exam content.
func (s *Student) Exam() domain.Exam {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exam
}

// Teams returns the host's team list for self-selection.
func (s *Student) Teams() []domain.Team {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Team, len(s.teams))
	copy(out, s.teams)
	return out
}

// Result returns the local submission once one exists.
func (s *Student) Result() (domain.Submission, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return domain.Submission{}, false
	}
	return *s.result, true
}

// Runner exposes the answering loop while in ANSWERING.
func (s *Student) Runner() *Runner {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runner
}

// SelectOption answers the current multiple-choice question.
func (s *Student) SelectOption(option int) error {
	r, err := s.answeringRunner()
	if err != nil {
		return err
	}
	r.SelectOption(option)
	return nil
}

// EnterText answers the current short-answer question.
func (s *Student) EnterText(text string) error {
	r, err := s.answeringRunner()
	if err != nil {
		return err
	}
	r.EnterText(text)
	return nil
}

// Next advances to the following question, or submits on the last one.
func (s *Student) Next() error {
	r, err := s.answeringRunner()
	if err != nil {
		return err
	}
	r.Next()
	return nil
}

// Tick advances the countdown by one second. The internal ticker
// calls this; tests may call it directly with the ticker disabled.
func (s *Student) Tick() {
	if r, err := s.answeringRunner(); err == nil {
		r.Tick()
	}
}

func (s *Student) answeringRunner() (*Runner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StudentAnswering:
		return s.runner, nil
	case StudentSubmitted, StudentResults:
		return nil, domain.ErrAlreadySubmitted
	default:
		return nil, domain.ErrNotStarted
	}
}

// Submit finishes the attempt from the last question, scores it
// locally and sends the record host-ward. Earlier questions must be
// advanced past with Next first. The state machine disallows a second
// submission, so this is exactly-once from the student's perspective
// even when the transport duplicates the message on the wire.
func (s *Student) Submit() error {
	s.mu.Lock()
	if s.state == StudentAnswering && !s.runner.AtLastQuestion() {
		s.mu.Unlock()
		return domain.ErrQuestionsRemaining
	}
	return s.submitLocked(false)
}

// Exit abandons the session from any state, forfeiting an unsaved
// attempt.
func (s *Student) Exit() {
	s.mu.Lock()
	if s.state == StudentExited {
		s.mu.Unlock()
		return
	}
	s.state = StudentExited
	if s.runner != nil {
		s.runner.Finish()
	}
	s.stopTickerLocked()
	cancels := s.cancels
	s.cancels = nil
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	s.client.Shutdown()
	s.log.Info().Msg("exited session")
}

func (s *Student) handle(env protocol.Envelope, _ broker.Channel) {
	msg, err := protocol.Decode(env)
	if err != nil {
		s.log.Debug().Str("kind", string(env.Type)).Msg("ignoring unrecognized message")
		return
	}

	switch m := msg.(type) {
	case protocol.SyncExam:
		s.handleSync(m)
	case protocol.StartExam:
		s.handleStart()
	case protocol.HostEnded:
		s.handleHostEnded()
	default:
		// Student-bound traffic only.
	}
}

// handleSync stores the exam and team list. A repeated sync just
// overwrites the same content; once the exam has started the content
// is locked and further syncs are ignored.
func (s *Student) handleSync(m protocol.SyncExam) {
	s.mu.Lock()
	switch s.state {
	case StudentConnecting, StudentWaitingRoom:
		s.exam = m.Exam
		s.teams = m.Teams
		if s.state == StudentConnecting {
			s.state = StudentWaitingRoom
		}
	default:
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.syncedOnce.Do(func() { close(s.synced) })
	s.log.Info().Str("exam", m.Exam.Title).Msg("exam synced")
}

// handleStart moves from the waiting room into the first question.
// A repeat start is a no-op.
func (s *Student) handleStart() {
	s.mu.Lock()
	if s.state != StudentWaitingRoom {
		s.mu.Unlock()
		return
	}
	s.state = StudentAnswering
	s.runner = NewRunner(s.exam, RunnerHooks{
		Answer:  s.onAnswerChange,
		Expire:  s.onLastQuestionExpired,
		Advance: func(index int) { s.log.Debug().Int("question", index).Msg("advanced") },
	})
	s.startTickerLocked()
	s.mu.Unlock()

	s.log.Info().Msg("exam started")
}

// handleHostEnded forces the end of the session. A student that has
// already submitted just flips to the results view. One that is still
// answering submits whatever it holds. One that never started sends
// nothing; the forced-submission path only applies once answering has
// begun. The state check and the transition share one lock
// acquisition, so a submission racing in from the countdown still
// lands in the results view.
func (s *Student) handleHostEnded() {
	s.mu.Lock()
	switch s.state {
	case StudentAnswering:
		_ = s.submitLocked(true)
	case StudentSubmitted:
		s.state = StudentResults
		s.mu.Unlock()
	case StudentConnecting, StudentWaitingRoom:
		s.state = StudentResults
		s.stopTickerLocked()
		s.mu.Unlock()
		s.log.Info().Msg("host ended before start, nothing to submit")
	default:
		// Already at results or exited.
		s.mu.Unlock()
	}
}

// onAnswerChange recomputes the shadow score and fires telemetry.
// Fire-and-forget: the host folds these with a monotonic maximum, so
// loss or reordering cannot corrupt its view.
func (s *Student) onAnswerChange(answers domain.Answers) {
	s.mu.Lock()
	exam := s.exam
	team := s.team
	ch := s.channel
	s.mu.Unlock()

	score := domain.ShadowScore(exam, answers)
	s.client.Send(protocol.MustEnvelope(protocol.LiveScoreUpdate{
		StudentName:  s.name,
		Team:         team,
		CurrentScore: score,
	}), ch)
}

func (s *Student) onLastQuestionExpired() {
	_ = s.submit(false)
}

func (s *Student) submit(forced bool) error {
	s.mu.Lock()
	return s.submitLocked(forced)
}

// submitLocked is entered holding s.mu and releases it before touching
// the network.
func (s *Student) submitLocked(forced bool) error {
	if s.state != StudentAnswering || s.result != nil {
		s.mu.Unlock()
		return domain.ErrAlreadySubmitted
	}
	runner := s.runner
	runner.Finish()
	s.stopTickerLocked()

	score, maxScore, feedback := runner.Score()
	sub := domain.Submission{
		ID:          uuid.NewString(),
		ExamID:      s.exam.ID,
		StudentName: s.name,
		Team:        s.team,
		Answers:     runner.Answers(),
		Score:       score,
		MaxScore:    maxScore,
		Feedback:    feedback,
		SubmittedAt: time.Now(),
	}
	s.result = &sub
	if forced {
		s.state = StudentResults
	} else {
		s.state = StudentSubmitted
	}
	ch := s.channel
	s.mu.Unlock()

	env, err := protocol.NewEnvelope(protocol.SubmitExam{Submission: sub})
	if err != nil {
		return err
	}
	s.client.Send(env, ch)
	s.log.Info().Int("score", score).Int("max", maxScore).Bool("forced", forced).Msg("submitted")
	return nil
}

func (s *Student) startTickerLocked() {
	if s.tickInterval < 0 {
		return
	}
	stop := make(chan struct{})
	s.tickStop = stop
	go func() {
		ticker := time.NewTicker(s.tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Tick()
			case <-stop:
				return
			}
		}
	}()
}

func (s *Student) stopTickerLocked() {
	if s.tickStop != nil {
		close(s.tickStop)
		s.tickStop = nil
	}
}
