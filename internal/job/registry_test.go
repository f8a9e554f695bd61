package job

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry(nil)

	handle, err := r.Register("job_1")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if handle.JobID() != "job_1" {
		t.Errorf("JobID = %q, want job_1", handle.JobID())
	}
	if handle.Cancelled() {
		t.Error("fresh handle should not be cancelled")
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}
}

func TestRegistry_Register_Duplicate(t *testing.T) {
	r := NewRegistry(nil)

	if _, err := r.Register("job_1"); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	_, err := r.Register("job_1")
	if !errors.Is(err, ErrDuplicateJob) {
		t.Errorf("expected ErrDuplicateJob, got %v", err)
	}
}

func TestRegistry_RequestCancel(t *testing.T) {
	r := NewRegistry(nil)
	handle, _ := r.Register("job_1")

	if err := r.RequestCancel("job_1"); err != nil {
		t.Fatalf("RequestCancel error: %v", err)
	}
	if !handle.Cancelled() {
		t.Error("handle should be cancelled")
	}

	// Idempotent on a live job.
	if err := r.RequestCancel("job_1"); err != nil {
		t.Errorf("second RequestCancel error: %v", err)
	}
}

func TestRegistry_RequestCancel_Unknown(t *testing.T) {
	r := NewRegistry(nil)

	if err := r.RequestCancel("nope"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestRegistry_RequestCancel_AfterUnregister(t *testing.T) {
	r := NewRegistry(nil)
	r.Register("job_1")
	r.Unregister("job_1")

	if err := r.RequestCancel("job_1"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound after unregister, got %v", err)
	}
}

func TestRegistry_Unregister_Idempotent(t *testing.T) {
	r := NewRegistry(nil)
	r.Register("job_1")

	r.Unregister("job_1")
	r.Unregister("job_1")

	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
}

func TestRegistry_ConcurrentCancel(t *testing.T) {
	r := NewRegistry(nil)
	handle, _ := r.Register("job_1")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.RequestCancel("job_1")
		}()
	}
	wg.Wait()

	if !handle.Cancelled() {
		t.Error("handle should be cancelled")
	}
}

func TestRegistry_Sweep(t *testing.T) {
	r := NewRegistry(nil)
	stale, _ := r.Register("job_old")
	stale.createdAt = time.Now().Add(-time.Hour)
	fresh, _ := r.Register("job_new")

	removed := r.Sweep(30 * time.Minute)
	if removed != 1 {
		t.Fatalf("Sweep removed %d, want 1", removed)
	}
	if !stale.Cancelled() {
		t.Error("swept handle should be cancelled")
	}
	if fresh.Cancelled() {
		t.Error("fresh handle should not be cancelled")
	}
	if _, ok := r.Get("job_old"); ok {
		t.Error("stale job should be evicted")
	}
	if _, ok := r.Get("job_new"); !ok {
		t.Error("fresh job should survive the sweep")
	}
}

func TestHandle_SetMetadata_FirstCallWins(t *testing.T) {
	r := NewRegistry(nil)
	handle, _ := r.Register("job_1")

	if _, ok := handle.Metadata(); ok {
		t.Error("metadata should be unset initially")
	}

	handle.SetMetadata(Metadata{Model: "small", Task: "translate", DetectedLanguage: "es"})
	handle.SetMetadata(Metadata{Model: "large-v3"})

	meta, ok := handle.Metadata()
	if !ok {
		t.Fatal("metadata should be set")
	}
	if meta.Model != "small" || meta.DetectedLanguage != "es" {
		t.Errorf("metadata overwritten: %+v", meta)
	}
}
