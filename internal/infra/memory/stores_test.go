package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nguyenthileBLB/tructuyen10A4/internal/domain"
)

func TestExamStoreCRUD(t *testing.T) {
	ctx := context.Background()
	store := NewExamStore()

	exam := sampleExam()
	if err := store.SaveExam(ctx, exam); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.GetExam(ctx, "exam-1")
	if err != nil || got.Title != exam.Title {
		t.Fatalf("get by id: %v %+v", err, got)
	}
	got, err = store.GetExamByCode(ctx, "123456")
	if err != nil || got.ID != "exam-1" {
		t.Fatalf("get by code: %v %+v", err, got)
	}

	if err := store.SetPublished(ctx, "exam-1", true); err != nil {
		t.Fatalf("publish: %v", err)
	}
	got, _ = store.GetExam(ctx, "exam-1")
	if !got.IsPublished {
		t.Fatal("expected published exam")
	}

	if err := store.DeleteExam(ctx, "exam-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetExam(ctx, "exam-1"); !errors.Is(err, domain.ErrExamNotFound) {
		t.Fatalf("expected ErrExamNotFound, got %v", err)
	}
}

func TestExamStoreListOrdersByCreation(t *testing.T) {
	ctx := context.Background()
	store := NewExamStore()

	older := sampleExam()
	older.ID, older.Code, older.CreatedAt = "exam-old", "111111", time.Now().Add(-time.Hour)
	newer := sampleExam()
	newer.ID, newer.Code, newer.CreatedAt = "exam-new", "222222", time.Now()

	_ = store.SaveExam(ctx, newer)
	_ = store.SaveExam(ctx, older)

	exams, err := store.ListExams(ctx)
	if err != nil || len(exams) != 2 {
		t.Fatalf("list: %v %d", err, len(exams))
	}
	if exams[0].ID != "exam-old" {
		t.Fatalf("expected creation order, got %s first", exams[0].ID)
	}
}

func TestSubmissionStoreIdempotentSave(t *testing.T) {
	ctx := context.Background()
	store := NewSubmissionStore()

	first := domain.Submission{ID: "sub-1", ExamID: "exam-1", StudentName: "Alice", Score: 10, SubmittedAt: time.Now()}
	if err := store.SaveSubmission(ctx, first); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Same student, different trim and case: must update in place and
	// keep the original record's ID.
	second := domain.Submission{ID: "sub-2", ExamID: "exam-1", StudentName: "  alice ", Score: 20, SubmittedAt: time.Now()}
	if err := store.SaveSubmission(ctx, second); err != nil {
		t.Fatalf("resave: %v", err)
	}

	subs, err := store.SubmissionsForExam(ctx, "exam-1")
	if err != nil || len(subs) != 1 {
		t.Fatalf("expected single record, got %d (%v)", len(subs), err)
	}
	if subs[0].ID != "sub-1" || subs[0].Score != 20 {
		t.Fatalf("expected original ID with new score, got %+v", subs[0])
	}
}

func TestSubmissionStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := NewSubmissionStore()

	_ = store.SaveSubmission(ctx, domain.Submission{ID: "sub-1", ExamID: "exam-1", StudentName: "Alice"})
	_ = store.SaveSubmission(ctx, domain.Submission{ID: "sub-2", ExamID: "exam-1", StudentName: "Bob"})
	_ = store.SaveSubmission(ctx, domain.Submission{ID: "sub-3", ExamID: "exam-2", StudentName: "Alice"})

	if err := store.DeleteSubmission(ctx, "sub-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.DeleteSubmission(ctx, "sub-1"); !errors.Is(err, domain.ErrSubmissionNotFound) {
		t.Fatalf("expected ErrSubmissionNotFound, got %v", err)
	}

	if err := store.DeleteSubmissionsForExam(ctx, "exam-1"); err != nil {
		t.Fatalf("delete for exam: %v", err)
	}
	remaining, _ := store.SubmissionsForExam(ctx, "exam-2")
	if len(remaining) != 1 {
		t.Fatalf("unrelated exam lost submissions: %d", len(remaining))
	}
}

func TestTeamStoreDefaultsUntilSaved(t *testing.T) {
	ctx := context.Background()
	store := NewTeamStore()

	teams, err := store.ListTeams(ctx)
	if err != nil || len(teams) != 2 {
		t.Fatalf("expected default teams, got %d (%v)", len(teams), err)
	}
	if teams[0].Name != "Đội Đỏ" || teams[1].Name != "Đội Xanh" {
		t.Fatalf("unexpected defaults: %+v", teams)
	}

	custom := []domain.Team{{ID: "t1", Name: "Đội Vàng", Color: "bg-yellow-500"}}
	if err := store.SaveTeams(ctx, custom); err != nil {
		t.Fatalf("save: %v", err)
	}
	teams, _ = store.ListTeams(ctx)
	if len(teams) != 1 || teams[0].Name != "Đội Vàng" {
		t.Fatalf("expected saved list, got %+v", teams)
	}
}

func TestDeviceHistory(t *testing.T) {
	ctx := context.Background()
	history := NewDeviceHistory()

	done, err := history.HasDeviceSubmitted(ctx, "exam-1")
	if err != nil || done {
		t.Fatalf("fresh device must not have submitted: %v %v", done, err)
	}
	if err := history.MarkDeviceSubmitted(ctx, "exam-1"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	done, _ = history.HasDeviceSubmitted(ctx, "exam-1")
	if !done {
		t.Fatal("expected submitted mark to stick")
	}
}
