package process

import (
	"errors"
	"testing"
)

func TestNewJobCapturesInput(t *testing.T) {
	job := NewJob(KindConvert, "job-1", "photo.png")

	if job.Kind != KindConvert || job.ID != "job-1" {
		t.Fatalf("unexpected job identity: %+v", job)
	}
	if job.Status != JobStatusPending {
		t.Fatalf("new job not pending: %v", job.Status)
	}
	if got, ok := job.Input.(string); !ok || got != "photo.png" {
		t.Fatalf("job input not preserved: %#v", job.Input)
	}
}

func TestRunningStatusFollowsKind(t *testing.T) {
	tests := []struct {
		kind string
		want JobStatus
	}{
		{KindCompress, JobStatusCompressing},
		{KindConvert, JobStatusConverting},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			job := NewJob(tt.kind, "job", nil)
			if err := MarkRunning(job); err != nil {
				t.Fatalf("MarkRunning returned error: %v", err)
			}
			if job.Status != tt.want {
				t.Fatalf("status = %s, want %s", job.Status, tt.want)
			}
		})
	}
}

func TestMarkFailedSetsStatusAndError(t *testing.T) {
	job := NewJob(KindCompress, "job-2", nil)
	_ = MarkRunning(job)
	if err := MarkFailed(job, errors.New("boom")); err != nil {
		t.Fatalf("MarkFailed returned error: %v", err)
	}

	if job.Status != JobStatusError {
		t.Fatalf("job status not error: %v", job.Status)
	}
	if job.Error != "boom" {
		t.Fatalf("job error not recorded: %q", job.Error)
	}
}

func TestMarkFailedWithoutCauseKeepsReason(t *testing.T) {
	job := NewJob(KindCompress, "job-3", nil)
	_ = MarkRunning(job)
	_ = MarkFailed(job, nil)

	if job.Status != JobStatusError {
		t.Fatalf("job status not error: %v", job.Status)
	}
	if job.Error == "" {
		t.Fatal("failed job has no reason")
	}
}

func TestInvalidTransitions(t *testing.T) {
	pending := NewJob(KindConvert, "pending", nil)
	if err := MarkSucceeded(pending); err == nil {
		t.Fatal("pending job completed without running")
	}
	if err := MarkFailed(pending, errors.New("x")); err == nil {
		t.Fatal("pending job failed without running")
	}

	done := NewJob(KindConvert, "done", nil)
	_ = MarkRunning(done)
	_ = MarkSucceeded(done)
	if err := MarkRunning(done); err == nil {
		t.Fatal("completed job restarted")
	}
	if err := MarkFailed(done, errors.New("late")); err == nil {
		t.Fatal("completed job moved to error")
	}
	if done.Status != JobStatusCompleted || !done.IsTerminal() {
		t.Fatalf("terminal status changed: %s", done.Status)
	}

	failed := NewJob(KindCompress, "failed", nil)
	_ = MarkRunning(failed)
	_ = MarkFailed(failed, errors.New("bad"))
	if err := MarkRunning(failed); err == nil {
		t.Fatal("failed job reverted to running")
	}
}
