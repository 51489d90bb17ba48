package domain_test

import (
	"testing"

	"github.com/nguyenthileBLB/tructuyen10A4/internal/domain"
)

func testExam() domain.Exam {
	return domain.Exam{
		ID: "exam-1",
		Questions: []domain.Question{
			{ID: "q1", Type: domain.MultipleChoice, Options: []string{"80", "55", "65", "40"}, CorrectOption: 1, Points: 10},
			{ID: "q2", Type: domain.MultipleChoice, Options: []string{"20cm2", "25cm2"}, CorrectOption: 1, Points: 10},
			{ID: "q3", Type: domain.ShortAnswer, CorrectText: "37.5%", Points: 10},
		},
	}
}

func TestScoreExamFullMarks(t *testing.T) {
	exam := testExam()
	answers := domain.Answers{
		"q1": {Option: 1},
		"q2": {Option: 1},
		"q3": {Option: -1, Text: "37.5%"},
	}

	score, maxScore, feedback := domain.ScoreExam(exam, answers)
	if score != 30 || maxScore != 30 {
		t.Fatalf("expected 30/30, got %d/%d", score, maxScore)
	}
	if feedback["q3"] != domain.FeedbackAutoCorrect {
		t.Fatalf("expected auto-correct feedback, got %q", feedback["q3"])
	}
}

func TestShortAnswerMatchIsCaseAndSpaceInsensitive(t *testing.T) {
	q := domain.Question{ID: "q", Type: domain.ShortAnswer, CorrectText: "25cm2", Points: 5}

	if !domain.ScoreAnswer(q, domain.Answer{Text: "  25CM2  "}) {
		t.Fatal("expected padded uppercase answer to match")
	}
	if domain.ScoreAnswer(q, domain.Answer{Text: "25 cm2"}) {
		t.Fatal("interior whitespace must not match")
	}
}

func TestScoreExamWrongShortAnswerFlagsManualReview(t *testing.T) {
	exam := testExam()
	answers := domain.Answers{
		"q3": {Option: -1, Text: "62.5%"},
	}

	score, maxScore, feedback := domain.ScoreExam(exam, answers)
	if score != 0 {
		t.Fatalf("expected 0, got %d", score)
	}
	if maxScore != 30 {
		t.Fatalf("unanswered questions must still count toward max, got %d", maxScore)
	}
	if feedback["q3"] != domain.FeedbackManualReview {
		t.Fatalf("expected manual review feedback, got %q", feedback["q3"])
	}
}

func TestScoreExamNoPartialCredit(t *testing.T) {
	exam := testExam()
	answers := domain.Answers{
		"q1": {Option: 0}, // wrong
		"q2": {Option: 1}, // correct
	}

	score, _, feedback := domain.ScoreExam(exam, answers)
	if score != 10 {
		t.Fatalf("expected 10, got %d", score)
	}
	if _, ok := feedback["q1"]; ok {
		t.Fatal("multiple choice must not produce feedback entries")
	}
}

func TestShadowScoreMatchesFinalScore(t *testing.T) {
	exam := testExam()
	answers := domain.Answers{
		"q1": {Option: 1},
		"q3": {Option: -1, Text: " 37.5% "},
	}

	shadow := domain.ShadowScore(exam, answers)
	final, _, _ := domain.ScoreExam(exam, answers)
	if shadow != final {
		t.Fatalf("shadow %d diverged from final %d", shadow, final)
	}
}

func TestMaxScoreSumsAllQuestions(t *testing.T) {
	if got := testExam().MaxScore(); got != 30 {
		t.Fatalf("expected 30, got %d", got)
	}
}

func TestGenerateCodeIsSixDigits(t *testing.T) {
	for i := 0; i < 100; i++ {
		code := domain.GenerateCode()
		if len(code) != 6 {
			t.Fatalf("expected 6 digits, got %q", code)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("non-digit in code %q", code)
			}
		}
	}
}
