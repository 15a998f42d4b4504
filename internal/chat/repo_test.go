package chat

import (
	"context"
	"errors"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Job{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func strPtr(s string) *string { return &s }

func TestRepo_JobLifecycle(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	j := &Job{
		ID:      "01JOBTESTID00000000000000A",
		UserID:  1,
		Payload: `{"messages":[{"role":"user","content":"hi"}]}`,
		Status:  JobQueued,
	}
	if err := repo.CreateJob(ctx, j); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := repo.UpdateJobStatusRunning(ctx, j.ID); err != nil {
		t.Fatalf("running: %v", err)
	}
	got, err := repo.GetJobByID(ctx, j.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != JobRunning {
		t.Fatalf("status %q", got.Status)
	}

	if err := repo.MarkJobSucceeded(ctx, j.ID, "conv1"); err != nil {
		t.Fatalf("succeed: %v", err)
	}
	got, err = repo.GetJobByID(ctx, j.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != JobSucceeded {
		t.Fatalf("status %q", got.Status)
	}
	if got.ChatID == nil || *got.ChatID != "conv1" {
		t.Fatalf("chat id %v", got.ChatID)
	}
}

func TestRepo_MarkJobFailed(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	j := &Job{ID: "01JOBTESTID00000000000000B", UserID: 2, Payload: "{}", Status: JobQueued}
	if err := repo.CreateJob(ctx, j); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.MarkJobFailed(ctx, j.ID, "model exploded"); err != nil {
		t.Fatalf("fail: %v", err)
	}

	got, err := repo.GetJobByID(ctx, j.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != JobFailed {
		t.Fatalf("status %q", got.Status)
	}
	if got.Error == nil || *got.Error != "model exploded" {
		t.Fatalf("error %v", got.Error)
	}
}

func TestRepo_GetJobNotFound(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	_, err := repo.GetJobByID(context.Background(), "missing")
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestRepo_IdempotencyReturnsExisting(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	first := &Job{
		ID:             "01JOBTESTID00000000000000C",
		UserID:         3,
		Payload:        "{}",
		IdempotencyKey: strPtr("turn-1"),
		Status:         JobQueued,
	}
	j, created, err := repo.CreateJobOrGetExisting(ctx, first)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	if !created || j.ID != first.ID {
		t.Fatalf("first create: created=%v id=%s", created, j.ID)
	}

	dup := &Job{
		ID:             "01JOBTESTID00000000000000D",
		UserID:         3,
		Payload:        "{}",
		IdempotencyKey: strPtr("turn-1"),
		Status:         JobQueued,
	}
	j, created, err = repo.CreateJobOrGetExisting(ctx, dup)
	if err != nil {
		t.Fatalf("dup create: %v", err)
	}
	if created {
		t.Fatalf("dup should not create")
	}
	if j.ID != first.ID {
		t.Fatalf("dup returned %s, want %s", j.ID, first.ID)
	}
}

func TestRepo_IdempotencyKeyScopedPerUser(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	a := &Job{ID: "01JOBTESTID00000000000000E", UserID: 4, Payload: "{}", IdempotencyKey: strPtr("k"), Status: JobQueued}
	if _, created, err := repo.CreateJobOrGetExisting(ctx, a); err != nil || !created {
		t.Fatalf("user 4 create: created=%v err=%v", created, err)
	}

	b := &Job{ID: "01JOBTESTID00000000000000F", UserID: 5, Payload: "{}", IdempotencyKey: strPtr("k"), Status: JobQueued}
	if _, created, err := repo.CreateJobOrGetExisting(ctx, b); err != nil || !created {
		t.Fatalf("user 5 create: created=%v err=%v", created, err)
	}
}

func TestRepo_NoKeyAlwaysCreates(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	for _, id := range []string{"01JOBTESTID00000000000000G", "01JOBTESTID00000000000000H"} {
		j := &Job{ID: id, UserID: 6, Payload: "{}", Status: JobQueued}
		if _, created, err := repo.CreateJobOrGetExisting(ctx, j); err != nil || !created {
			t.Fatalf("create %s: created=%v err=%v", id, created, err)
		}
	}
}
