package store

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateAppliesOnFreshDB(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate, so run it again to check idempotency.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 1 {
		t.Errorf("version = %d, want 1", result.Version)
	}
}

func TestRecordAndListJobs(t *testing.T) {
	db := testDB(t)

	older := &Job{
		ID:           uuid.NewString(),
		JobID:        "srv-1",
		Status:       StatusProcessing,
		ChatCount:    3,
		MessageCount: 140,
		ArchiveBytes: 2048,
		ResultsURL:   "https://chattomap.com/processing/srv-1",
		CreatedAt:    1000,
	}
	newer := &Job{
		ID:        uuid.NewString(),
		JobID:     "srv-2",
		Status:    StatusUploading,
		CreatedAt: 2000,
	}
	if err := db.RecordJob(older); err != nil {
		t.Fatal(err)
	}
	if err := db.RecordJob(newer); err != nil {
		t.Fatal(err)
	}

	jobs, err := db.ListJobs(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 2 {
		t.Fatalf("got %d jobs, want 2", len(jobs))
	}
	if jobs[0].JobID != "srv-2" || jobs[1].JobID != "srv-1" {
		t.Errorf("order = [%s %s], want newest first", jobs[0].JobID, jobs[1].JobID)
	}
	if jobs[1].MessageCount != 140 || jobs[1].ArchiveBytes != 2048 {
		t.Errorf("job = %+v", jobs[1])
	}
}

func TestListJobsLimit(t *testing.T) {
	db := testDB(t)

	for i := 0; i < 5; i++ {
		j := &Job{ID: uuid.NewString(), JobID: "srv", Status: StatusProcessing, CreatedAt: int64(i)}
		if err := db.RecordJob(j); err != nil {
			t.Fatal(err)
		}
	}
	jobs, err := db.ListJobs(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 2 {
		t.Errorf("got %d jobs, want 2", len(jobs))
	}
}

func TestRecordJobStampsCreatedAt(t *testing.T) {
	db := testDB(t)

	j := &Job{ID: uuid.NewString(), JobID: "srv-1", Status: StatusUploading}
	if err := db.RecordJob(j); err != nil {
		t.Fatal(err)
	}
	if j.CreatedAt == 0 {
		t.Error("CreatedAt not stamped")
	}
}

func TestGetJob(t *testing.T) {
	db := testDB(t)

	j := &Job{ID: uuid.NewString(), JobID: "srv-1", Status: StatusUploading, CreatedAt: 1}
	if err := db.RecordJob(j); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetJob(j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.JobID != "srv-1" {
		t.Errorf("got %v, want srv-1", got)
	}

	// Non-existent.
	got, err = db.GetJob("missing")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("expected nil for missing job")
	}
}

func TestUpdateJobStatus(t *testing.T) {
	db := testDB(t)

	j := &Job{ID: uuid.NewString(), JobID: "srv-1", Status: StatusUploading, CreatedAt: 1}
	if err := db.RecordJob(j); err != nil {
		t.Fatal(err)
	}
	if err := db.UpdateJobStatus(j.ID, StatusProcessing); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetJob(j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusProcessing {
		t.Errorf("status = %q, want %q", got.Status, StatusProcessing)
	}
}
