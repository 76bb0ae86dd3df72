// internal/process/adapter.go
package process

import "fmt"

// JobStatus represents the lifecycle state of one batch item.
type JobStatus string

const (
	JobStatusPending     JobStatus = "pending"
	JobStatusCompressing JobStatus = "compressing"
	JobStatusConverting  JobStatus = "converting"
	JobStatusCompleted   JobStatus = "completed"
	JobStatusError       JobStatus = "error"
)

// Job kinds select the running status.
const (
	KindCompress = "compress"
	KindConvert  = "convert"
)

// Job captures the state of one item. Status only moves
// pending → compressing|converting → completed|error.
type Job struct {
	ID     string
	Kind   string
	Input  any
	Status JobStatus
	Error  string
}

func NewJob(kind, id string, input any) *Job {
	return &Job{
		ID:     id,
		Kind:   kind,
		Input:  input,
		Status: JobStatusPending,
	}
}

// Running reports the in-progress status for the job's kind.
func (j *Job) Running() JobStatus {
	if j.Kind == KindCompress {
		return JobStatusCompressing
	}
	return JobStatusConverting
}

func (j *Job) IsRunning() bool {
	return j.Status == JobStatusCompressing || j.Status == JobStatusConverting
}

func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusError
}

func MarkRunning(j *Job) error {
	if j.Status != JobStatusPending {
		return transitionError(j, j.Running())
	}
	j.Status = j.Running()
	return nil
}

func MarkSucceeded(j *Job) error {
	if !j.IsRunning() {
		return transitionError(j, JobStatusCompleted)
	}
	j.Status = JobStatusCompleted
	return nil
}

// MarkFailed records the failure reason. A nil error still leaves a reason.
func MarkFailed(j *Job, err error) error {
	if !j.IsRunning() {
		return transitionError(j, JobStatusError)
	}
	j.Status = JobStatusError
	if err != nil {
		j.Error = err.Error()
	} else {
		j.Error = "failed without a reported cause"
	}
	return nil
}

func transitionError(j *Job, to JobStatus) error {
	return fmt.Errorf("job %s: invalid transition %s -> %s", j.ID, j.Status, to)
}
