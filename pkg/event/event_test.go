package event

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTaskCreated_PopulatesOnlySnapshot(t *testing.T) {
	t.Parallel()

	rec := NewTaskCreated(TaskSnapshot{ID: 7, Title: "write report", Completed: false})

	assert.Equal(t, TypeTaskCreated, rec.Type)
	require.NotNil(t, rec.Task)
	assert.Equal(t, int64(7), rec.Task.ID)
	assert.Equal(t, "write report", rec.Task.Title)
	assert.Zero(t, rec.TaskID)
	assert.Zero(t, rec.UserID)
	assert.Nil(t, rec.Email)
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.EmittedAt.IsZero())
}

func TestNewTaskDeleted_PopulatesOnlyIDs(t *testing.T) {
	t.Parallel()

	rec := NewTaskDeleted(42, 3)

	assert.Equal(t, TypeTaskDeleted, rec.Type)
	assert.Nil(t, rec.Task)
	assert.Nil(t, rec.Email)
	assert.Equal(t, int64(42), rec.TaskID)
	assert.Equal(t, int64(3), rec.UserID)
}

func TestNewEmailQueued_CopiesJobFields(t *testing.T) {
	t.Parallel()

	rec := NewEmailQueued(EmailJob{To: "a@b.com", Subject: "S", Message: "M"})

	assert.Equal(t, TypeEmailQueued, rec.Type)
	require.NotNil(t, rec.Email)
	assert.Equal(t, "a@b.com", rec.Email.To)
	assert.Equal(t, "S", rec.Email.Subject)
	assert.Equal(t, "M", rec.Email.Message)
	assert.Nil(t, rec.Task)
}

func TestRecords_GetDistinctIDs(t *testing.T) {
	t.Parallel()

	a := NewTaskDeleted(1, 1)
	b := NewTaskDeleted(1, 1)

	assert.NotEqual(t, a.ID, b.ID)
}

func TestLogKey_UsesDashedForm(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "task-created", NewTaskCreated(TaskSnapshot{}).LogKey())
	assert.Equal(t, "task-updated", NewTaskUpdated(TaskSnapshot{}).LogKey())
	assert.Equal(t, "task-deleted", NewTaskDeleted(1, 1).LogKey())
}

func TestParseType(t *testing.T) {
	t.Parallel()

	typ, err := ParseType("task_updated")
	require.NoError(t, err)
	assert.Equal(t, TypeTaskUpdated, typ)

	_, err = ParseType("task_exploded")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "task_exploded")
}

func TestEmailJob_Validate(t *testing.T) {
	t.Parallel()

	ok := EmailJob{To: "a@b.com", Subject: "S", Message: "M"}
	require.NoError(t, ok.Validate())

	missing := []EmailJob{
		{Subject: "S", Message: "M"},
		{To: "a@b.com", Message: "M"},
		{To: "a@b.com", Subject: "S"},
	}
	for _, job := range missing {
		assert.Error(t, job.Validate())
	}
}

func TestRecord_JSONShape(t *testing.T) {
	t.Parallel()

	rec := NewTaskUpdated(TaskSnapshot{ID: 7, Title: "t", Completed: true})

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))

	assert.Equal(t, "task_updated", m["type"])
	assert.Contains(t, m, "id")
	assert.Contains(t, m, "emittedAt")
	assert.Contains(t, m, "task")
	// unused one-of fields stay off the wire
	assert.NotContains(t, m, "taskId")
	assert.NotContains(t, m, "email")
}
