package jobs

import (
	"context"
	"errors"
	"testing"
)

func TestSubmitAndGet(t *testing.T) {
	r := NewRunner()
	done := make(chan struct{})

	job := r.Submit("reindex", func(_ context.Context) error {
		<-done
		return nil
	})
	if job.ID == "" {
		t.Fatal("empty job id")
	}
	if job.Status != StatusQueued && job.Status != StatusRunning {
		t.Errorf("status = %q right after submit", job.Status)
	}

	close(done)
	r.Wait()

	got, ok := r.Get(job.ID)
	if !ok {
		t.Fatal("job not found after completion")
	}
	if got.Status != StatusSucceeded {
		t.Errorf("status = %q, want %q", got.Status, StatusSucceeded)
	}
	if got.StartedAt == nil || got.FinishedAt == nil {
		t.Error("timestamps not recorded")
	}
}

func TestSubmitFailure(t *testing.T) {
	r := NewRunner()
	job := r.Submit("backup", func(_ context.Context) error {
		return errors.New("disk full")
	})
	r.Wait()

	got, ok := r.Get(job.ID)
	if !ok {
		t.Fatal("job not found")
	}
	if got.Status != StatusFailed {
		t.Errorf("status = %q, want %q", got.Status, StatusFailed)
	}
	if got.Error != "disk full" {
		t.Errorf("error = %q", got.Error)
	}
}

func TestGetUnknownID(t *testing.T) {
	r := NewRunner()
	if _, ok := r.Get("nope"); ok {
		t.Error("Get returned a job for an unknown id")
	}
}

func TestGetReturnsSnapshot(t *testing.T) {
	r := NewRunner()
	job := r.Submit("noop", func(_ context.Context) error { return nil })
	r.Wait()

	got, _ := r.Get(job.ID)
	got.Status = "tampered"

	again, _ := r.Get(job.ID)
	if again.Status != StatusSucceeded {
		t.Errorf("internal job mutated through snapshot: %q", again.Status)
	}
}
