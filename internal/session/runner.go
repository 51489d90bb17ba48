package session

import (
	"sync"

	"github.com/nguyenthileBLB/tructuyen10A4/internal/domain"
)

// DefaultTimeLimit applies to questions without an explicit limit.
const DefaultTimeLimit = 60

// Runner drives the exam-taking loop for one attempt: the current
// question index, the answer map and the per-question countdown. It is
// transport-agnostic, so the live student session and the offline
// mode share it. The countdown is purely local; host and students
// each run their own and slight skew between devices is tolerated.
type Runner struct {
	mu       sync.Mutex
	exam     domain.Exam
	index    int
	timeLeft int
	answers  domain.Answers
	done     bool

	onAdvance func(index int)
	onExpire  func()
	onAnswer  func(answers domain.Answers)
}

// RunnerHooks observe runner transitions. All hooks are optional and
// are invoked outside the runner lock.
type RunnerHooks struct {
	// Advance fires after the current question moves forward.
	Advance func(index int)
	// Expire fires when the last question's countdown reaches zero.
	Expire func()
	// Answer fires on every answer change with a snapshot of the map.
	Answer func(answers domain.Answers)
}

func NewRunner(exam domain.Exam, hooks RunnerHooks) *Runner {
	r := &Runner{
		exam:      exam,
		answers:   make(domain.Answers),
		onAdvance: hooks.Advance,
		onExpire:  hooks.Expire,
		onAnswer:  hooks.Answer,
	}
	r.timeLeft = timeLimit(exam, 0)
	return r
}

func timeLimit(exam domain.Exam, index int) int {
	if index >= len(exam.Questions) {
		return 0
	}
	if limit := exam.Questions[index].TimeLimit; limit > 0 {
		return limit
	}
	return DefaultTimeLimit
}

// Current returns the active question. ok is false once the attempt
// is finished or the exam has no questions.
func (r *Runner) Current() (q domain.Question, index int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done || r.index >= len(r.exam.Questions) {
		return domain.Question{}, r.index, false
	}
	return r.exam.Questions[r.index], r.index, true
}

// AtLastQuestion reports whether the active question is the final one.
func (r *Runner) AtLastQuestion() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.done && r.index == len(r.exam.Questions)-1
}

// TimeLeft reports the seconds remaining on the current question.
func (r *Runner) TimeLeft() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timeLeft
}

// Answers returns a copy of the answer map.
func (r *Runner) Answers() domain.Answers {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyAnswers(r.answers)
}

// SelectOption records a multiple-choice answer for the current question.
func (r *Runner) SelectOption(option int) {
	r.record(domain.Answer{Option: option})
}

// EnterText records a short-answer reply for the current question.
func (r *Runner) EnterText(text string) {
	r.record(domain.Answer{Text: text})
}

func (r *Runner) record(a domain.Answer) {
	r.mu.Lock()
	if r.done || r.index >= len(r.exam.Questions) {
		r.mu.Unlock()
		return
	}
	r.answers[r.exam.Questions[r.index].ID] = a
	snapshot := copyAnswers(r.answers)
	onAnswer := r.onAnswer
	r.mu.Unlock()

	if onAnswer != nil {
		onAnswer(snapshot)
	}
}

// Next moves to the following question, or fires the expiry hook on
// the last one. The index only ever advances.
func (r *Runner) Next() {
	r.advance()
}

// Tick decrements the countdown by one second. Reaching zero
// auto-advances, which counts as a non-answer when nothing was
// recorded for the question.
func (r *Runner) Tick() {
	r.mu.Lock()
	if r.done || r.timeLeft <= 0 {
		r.mu.Unlock()
		return
	}
	r.timeLeft--
	expired := r.timeLeft == 0
	r.mu.Unlock()

	if expired {
		r.advance()
	}
}

func (r *Runner) advance() {
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		return
	}
	last := r.index >= len(r.exam.Questions)-1
	if last {
		r.done = true
		onExpire := r.onExpire
		r.mu.Unlock()
		if onExpire != nil {
			onExpire()
		}
		return
	}
	r.index++
	r.timeLeft = timeLimit(r.exam, r.index)
	index := r.index
	onAdvance := r.onAdvance
	r.mu.Unlock()

	if onAdvance != nil {
		onAdvance(index)
	}
}

// Finish marks the attempt done, stopping further ticks and answers.
func (r *Runner) Finish() {
	r.mu.Lock()
	r.done = true
	r.mu.Unlock()
}

// Score evaluates the current answer map against the exam.
func (r *Runner) Score() (score, maxScore int, feedback map[string]string) {
	r.mu.Lock()
	exam := r.exam
	answers := copyAnswers(r.answers)
	r.mu.Unlock()
	return domain.ScoreExam(exam, answers)
}

func copyAnswers(in domain.Answers) domain.Answers {
	out := make(domain.Answers, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
