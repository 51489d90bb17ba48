package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nguyenthileBLB/tructuyen10A4/internal/broker"
	"github.com/nguyenthileBLB/tructuyen10A4/internal/domain"
	"github.com/nguyenthileBLB/tructuyen10A4/internal/protocol"
)

// HostState is the room lifecycle.
type HostState string

const (
	HostSetup   HostState = "SETUP"
	HostLobby   HostState = "LOBBY"
	HostRunning HostState = "RUNNING"
	HostEnded   HostState = "ENDED"
)

// DefaultGrace is the best-effort flush window between the HOST_ENDED
// broadcast and releasing the broker identity.
const DefaultGrace = 500 * time.Millisecond

// SubmissionSaver persists final submissions. Saving the same
// (examID, student name) pair twice must overwrite, not duplicate.
type SubmissionSaver interface {
	SaveSubmission(ctx context.Context, sub domain.Submission) error
}

// LiveBoard is one snapshot of the host's aggregated live state.
type LiveBoard struct {
	Activity string              `json:"activity"`
	Scores   []domain.ScoreEntry `json:"scores"`
	Teams    []domain.TeamScore  `json:"teams"`
}

// Host runs the teacher side of a live room: roster, live score
// aggregation and lifecycle broadcasts. All state is mutated only from
// broker callbacks and the exported lifecycle methods, guarded by one
// mutex.
type Host struct {
	client broker.Client
	store  SubmissionSaver
	log    zerolog.Logger

	exam  domain.Exam
	teams []domain.Team
	grace time.Duration

	mu          sync.Mutex
	state       HostState
	identity    string
	ctx         context.Context
	cancelCtx   context.CancelFunc
	roster      map[string]*domain.Participant
	scores      map[string]*domain.ScoreEntry
	activity    string
	subscribers map[chan LiveBoard]struct{}
	cancels     []func()
	now         func() time.Time
}

// HostConfig bundles host construction parameters.
type HostConfig struct {
	Exam  domain.Exam
	Teams []domain.Team
	// Grace overrides DefaultGrace when positive.
	Grace time.Duration
}

func NewHost(client broker.Client, store SubmissionSaver, cfg HostConfig, log zerolog.Logger) *Host {
	grace := cfg.Grace
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &Host{
		client:      client,
		store:       store,
		log:         log.With().Str("component", "host").Str("exam", cfg.Exam.ID).Logger(),
		exam:        cfg.Exam,
		teams:       cfg.Teams,
		grace:       grace,
		state:       HostSetup,
		roster:      make(map[string]*domain.Participant),
		scores:      make(map[string]*domain.ScoreEntry),
		activity:    "Đang đợi học sinh...",
		subscribers: make(map[chan LiveBoard]struct{}),
		now:         time.Now,
	}
}

// Open claims the namespaced room identity and starts accepting
// students. On failure the host stays in SETUP and may retry with a
// different code.
func (h *Host) Open(ctx context.Context, roomCode string) error {
	h.mu.Lock()
	if h.state != HostSetup {
		h.mu.Unlock()
		return domain.ErrAlreadyStarted
	}
	h.mu.Unlock()

	identity, err := RoomIdentity(roomCode)
	if err != nil {
		return err
	}
	if _, err := h.client.Initialize(ctx, identity); err != nil {
		return err
	}

	cancel := h.client.SubscribeMessages(h.handle)

	h.mu.Lock()
	h.state = HostLobby
	h.identity = identity
	h.ctx, h.cancelCtx = context.WithCancel(context.Background())
	h.cancels = append(h.cancels, cancel)
	h.mu.Unlock()

	h.log.Info().Str("room", identity).Msg("room open")
	return nil
}

// Start broadcasts the start signal and moves to RUNNING. Irreversible.
func (h *Host) Start() error {
	h.mu.Lock()
	switch h.state {
	case HostLobby:
	case HostRunning:
		h.mu.Unlock()
		return domain.ErrAlreadyStarted
	default:
		h.mu.Unlock()
		return domain.ErrSessionClosed
	}
	h.state = HostRunning
	h.mu.Unlock()

	h.client.Send(protocol.MustEnvelope(protocol.StartExam{}), nil)
	h.log.Info().Msg("exam started")
	return nil
}

// End broadcasts HOST_ENDED, waits out the grace window so the
// broadcast can leave the device, then releases the identity and
// cancels any in-flight persistence. Ending is terminal for this room;
// hosting again needs a fresh Host.
func (h *Host) End(ctx context.Context) error {
	h.mu.Lock()
	if h.state == HostEnded {
		h.mu.Unlock()
		return nil
	}
	h.state = HostEnded
	cancels := h.cancels
	h.cancels = nil
	cancelCtx := h.cancelCtx
	subscribers := h.subscribers
	h.subscribers = make(map[chan LiveBoard]struct{})
	h.mu.Unlock()

	h.client.Send(protocol.MustEnvelope(protocol.HostEnded{}), nil)

	timer := time.NewTimer(h.grace)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}

	for _, cancel := range cancels {
		cancel()
	}
	h.client.Shutdown()
	if cancelCtx != nil {
		cancelCtx()
	}
	for ch := range subscribers {
		close(ch)
	}
	h.log.Info().Msg("room closed")
	return nil
}

// State returns the current lifecycle state.
func (h *Host) State() HostState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Roster lists connected participants sorted by join time.
func (h *Host) Roster() []domain.Participant {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]domain.Participant, 0, len(h.roster))
	for _, p := range h.roster {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Board returns the current aggregated snapshot.
func (h *Host) Board() LiveBoard {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshotLocked()
}

// Subscribe returns a channel receiving board snapshots. The caller
// must invoke cancel to avoid leaks; the channel is closed on End.
func (h *Host) Subscribe() (<-chan LiveBoard, func()) {
	ch := make(chan LiveBoard, 8)

	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	initial := h.snapshotLocked()
	h.mu.Unlock()

	ch <- initial

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

func (h *Host) handle(env protocol.Envelope, ch broker.Channel) {
	msg, err := protocol.Decode(env)
	if err != nil {
		h.log.Debug().Str("kind", string(env.Type)).Msg("ignoring unrecognized message")
		return
	}

	switch m := msg.(type) {
	case protocol.StudentJoin:
		h.handleJoin(m, ch)
	case protocol.PlayerReady:
		h.handleReady(m, ch)
	case protocol.LiveScoreUpdate:
		h.handleScore(m)
	case protocol.SubmitExam:
		h.handleSubmit(m.Submission)
	default:
		// Host-bound traffic only; anything else is a stray echo.
	}
}

// handleJoin answers a fresh connection with the exam and team list.
// Unicast only: the sync must never leak to other students' channels.
// Safe to repeat, the student just overwrites its local copy.
func (h *Host) handleJoin(m protocol.StudentJoin, ch broker.Channel) {
	h.mu.Lock()
	closed := h.state == HostEnded
	env, err := protocol.NewEnvelope(protocol.SyncExam{Exam: h.exam, Teams: h.teams})
	h.mu.Unlock()
	if closed || err != nil {
		return
	}
	h.client.Send(env, ch)
	h.log.Info().Str("student", m.Name).Msg("student connected")
}

// handleReady upserts the roster entry. A ready arriving after the
// start signal marks a late joiner, who gets a unicast START_EXAM so
// they skip straight into the first question.
func (h *Host) handleReady(m protocol.PlayerReady, ch broker.Channel) {
	h.mu.Lock()
	if h.state == HostEnded {
		h.mu.Unlock()
		return
	}
	if p, ok := h.roster[m.Name]; ok {
		p.Team = m.Team
	} else {
		h.roster[m.Name] = &domain.Participant{Name: m.Name, Team: m.Team, JoinedAt: h.now()}
	}
	if entry, ok := h.scores[m.Name]; ok {
		entry.Team = m.Team
	}
	started := h.state == HostRunning
	board := h.snapshotLocked()
	h.mu.Unlock()

	h.publish(board)
	if started {
		h.client.Send(protocol.MustEnvelope(protocol.StartExam{}), ch)
	}
	h.log.Info().Str("student", m.Name).Str("team", m.Team).Bool("late", started).Msg("player ready")
}

// handleScore folds telemetry into the live map, keeping the maximum
// seen per student so a late-arriving stale update cannot rewind the
// feed. Only a strict increase counts as new activity.
func (h *Host) handleScore(m protocol.LiveScoreUpdate) {
	h.mu.Lock()
	if h.state == HostEnded {
		h.mu.Unlock()
		return
	}
	entry, ok := h.scores[m.StudentName]
	if !ok {
		entry = &domain.ScoreEntry{Name: m.StudentName}
		h.scores[m.StudentName] = entry
	}
	entry.Team = m.Team
	if m.CurrentScore > entry.Score {
		entry.Score = m.CurrentScore
		h.activity = m.StudentName + " (" + m.Team + ") vừa ghi điểm!"
	}
	board := h.snapshotLocked()
	h.mu.Unlock()

	h.publish(board)
}

// handleSubmit persists the authoritative record and pins the live
// entry to the submitted score. Persistence is idempotent per student,
// so a duplicated message cannot create a second record. The save runs
// under the session context; End cancels it after the grace window so
// a hung store cannot wedge the dispatch goroutine.
func (h *Host) handleSubmit(sub domain.Submission) {
	h.mu.Lock()
	ctx := h.ctx
	h.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := h.store.SaveSubmission(ctx, sub); err != nil {
		h.log.Error().Err(err).Str("student", sub.StudentName).Msg("persist submission failed")
	}

	h.mu.Lock()
	if h.state == HostEnded {
		h.mu.Unlock()
		return
	}
	h.scores[sub.StudentName] = &domain.ScoreEntry{Name: sub.StudentName, Team: sub.Team, Score: sub.Score}
	if p, ok := h.roster[sub.StudentName]; ok {
		p.Submitted = true
	}
	h.activity = sub.StudentName + " đã nộp bài hoàn tất!"
	board := h.snapshotLocked()
	h.mu.Unlock()

	h.publish(board)
	h.log.Info().Str("student", sub.StudentName).Int("score", sub.Score).Msg("submission received")
}

// snapshotLocked recomputes the board. The team leaderboard seeds
// every configured team at zero, folds in each student's latest known
// score, and sorts descending with a stable sort so ties keep their
// prior relative order.
func (h *Host) snapshotLocked() LiveBoard {
	scores := make([]domain.ScoreEntry, 0, len(h.scores))
	for _, entry := range h.scores {
		scores = append(scores, *entry)
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Name < scores[j].Name
	})

	totals := make(map[string]int, len(h.teams))
	order := make([]string, 0, len(h.teams))
	for _, t := range h.teams {
		totals[t.Name] = 0
		order = append(order, t.Name)
	}
	for _, entry := range h.scores {
		name := entry.Team
		if name == "" {
			name = "Khác"
		}
		if _, known := totals[name]; !known {
			totals[name] = 0
			order = append(order, name)
		}
		totals[name] += entry.Score
	}

	teams := make([]domain.TeamScore, 0, len(order))
	for _, name := range order {
		teams = append(teams, domain.TeamScore{Team: name, Score: totals[name]})
	}
	sort.SliceStable(teams, func(i, j int) bool {
		return teams[i].Score > teams[j].Score
	})

	return LiveBoard{Activity: h.activity, Scores: scores, Teams: teams}
}

// publish fans a snapshot out to subscribers without blocking on slow
// consumers: a full buffer loses the stale snapshot, not the fresh one.
func (h *Host) publish(board LiveBoard) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers {
		select {
		case ch <- board:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- board
		}
	}
}
