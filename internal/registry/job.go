package registry

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a pipeline job.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// Finished reports whether the job reached a terminal state.
func (s JobStatus) Finished() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job describes one remux or transcode run.
type Job struct {
	ID     string    `json:"id"`
	Mode   string    `json:"mode"`
	Input  string    `json:"input"`
	Output string    `json:"output"`
	Status JobStatus `json:"status"`

	PacketsRead    int64 `json:"packets_read"`
	PacketsWritten int64 `json:"packets_written"`
	BytesRead      int64 `json:"bytes_read"`
	BytesWritten   int64 `json:"bytes_written"`
	FramesDecoded  int64 `json:"frames_decoded"`
	Dropped        int64 `json:"dropped"`

	Error string `json:"error,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// NewJob returns a pending job with a fresh id.
func NewJob(mode, input, output string) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.New().String(),
		Mode:      mode,
		Input:     input,
		Output:    output,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Start marks the job running.
func (j *Job) Start() {
	j.Status = StatusRunning
	j.UpdatedAt = time.Now()
}

// Finish records the terminal state. A nil err completes the job.
func (j *Job) Finish(err error) {
	now := time.Now()
	j.UpdatedAt = now
	j.FinishedAt = &now
	if err != nil {
		j.Status = StatusFailed
		j.Error = err.Error()
		return
	}
	j.Status = StatusCompleted
}

// Clone returns a copy that shares no memory with j.
func (j *Job) Clone() *Job {
	c := *j
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}
