package domain

import "strings"

// Feedback annotations for short-answer grading. Short answers that do
// not match exactly are flagged for manual review rather than silently
// zeroed.
const (
	FeedbackAutoCorrect  = "Chính xác (Tự động)"
	FeedbackManualReview = "Chưa chính xác / Cần chấm tay"
)

// ScoreAnswer evaluates one answer against its question. Multiple
// choice awards full points on an exact index match; short answer on a
// trimmed, case-insensitive text match. No partial credit.
func ScoreAnswer(q Question, a Answer) bool {
	switch q.Type {
	case MultipleChoice:
		return a.Option == q.CorrectOption
	case ShortAnswer:
		return foldAnswer(a.Text) == foldAnswer(q.CorrectText)
	default:
		return false
	}
}

// ScoreExam computes the total score, maximum score and per-question
// feedback for a set of answers. The same routine backs the student's
// live shadow score and the final submission, so the two converge once
// the submission lands. Unanswered questions score zero but still
// count toward the maximum.
func ScoreExam(exam Exam, answers Answers) (score, maxScore int, feedback map[string]string) {
	feedback = make(map[string]string)
	for _, q := range exam.Questions {
		maxScore += q.Points
		a, answered := answers[q.ID]
		if !answered {
			continue
		}
		correct := ScoreAnswer(q, a)
		if correct {
			score += q.Points
		}
		if q.Type == ShortAnswer {
			if correct {
				feedback[q.ID] = FeedbackAutoCorrect
			} else {
				feedback[q.ID] = FeedbackManualReview
			}
		}
	}
	return score, maxScore, feedback
}

// ShadowScore is the student-local provisional total used for live
// score telemetry while answering.
func ShadowScore(exam Exam, answers Answers) int {
	score, _, _ := ScoreExam(exam, answers)
	return score
}

func foldAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
