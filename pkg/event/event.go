// Package event defines the canonical records exchanged between the task
// mutation path, the broadcast hub, the durable log and the email work queue.
package event

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Type identifies the kind of mutation a Record describes.
type Type string

const (
	TypeTaskCreated Type = "task_created"
	TypeTaskUpdated Type = "task_updated"
	TypeTaskDeleted Type = "task_deleted"
	TypeEmailQueued Type = "email_queued"
)

// ParseType validates a wire string against the known event types.
func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case TypeTaskCreated, TypeTaskUpdated, TypeTaskDeleted, TypeEmailQueued:
		return t, nil
	default:
		return "", fmt.Errorf("unknown event type %q", s)
	}
}

// TaskSnapshot is a point-in-time copy of a persisted task, not a live
// reference. The publisher owns the copy; nothing downstream mutates it.
type TaskSnapshot struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// EmailJob is the payload carried on the work queue.
type EmailJob struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Validate checks that every field of the job is present.
func (j EmailJob) Validate() error {
	if j.To == "" || j.Subject == "" || j.Message == "" {
		return errors.New("to, subject, message are required")
	}
	return nil
}

// EmailSummary mirrors a queued EmailJob on the live stream.
type EmailSummary struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Record is one immutable mutation event. Exactly one of Task,
// TaskID/UserID or Email is populated, selected by Type. The ID is stable
// across the live-stream and durable-log copies of the same event.
type Record struct {
	ID        string        `json:"id"`
	Type      Type          `json:"type"`
	Task      *TaskSnapshot `json:"task,omitempty"`
	TaskID    int64         `json:"taskId,omitempty"`
	UserID    int64         `json:"userId,omitempty"`
	Email     *EmailSummary `json:"email,omitempty"`
	EmittedAt time.Time     `json:"emittedAt"`
}

func newRecord(t Type) Record {
	return Record{
		ID:        uuid.NewString(),
		Type:      t,
		EmittedAt: time.Now().UTC(),
	}
}

// NewTaskCreated builds the event for a freshly inserted task.
func NewTaskCreated(snap TaskSnapshot) Record {
	rec := newRecord(TypeTaskCreated)
	rec.Task = &snap
	return rec
}

// NewTaskUpdated builds the event for a committed task update.
func NewTaskUpdated(snap TaskSnapshot) Record {
	rec := newRecord(TypeTaskUpdated)
	rec.Task = &snap
	return rec
}

// NewTaskDeleted builds the event for a deleted task. Only the ids survive
// the deletion, so the record carries no snapshot.
func NewTaskDeleted(taskID, userID int64) Record {
	rec := newRecord(TypeTaskDeleted)
	rec.TaskID = taskID
	rec.UserID = userID
	return rec
}

// NewEmailQueued builds the hub notice emitted when an email job is queued.
func NewEmailQueued(job EmailJob) Record {
	rec := newRecord(TypeEmailQueued)
	rec.Email = &EmailSummary{To: job.To, Subject: job.Subject, Message: job.Message}
	return rec
}

// LogKey returns the durable-log partition key for the record. Records
// sharing a key land in the same partition and are read back in publish
// order.
func (r Record) LogKey() string {
	return strings.ReplaceAll(string(r.Type), "_", "-")
}
