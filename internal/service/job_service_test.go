package service

import (
	"context"
	"testing"
	"time"

	"jobtrack/internal/model"
	"jobtrack/internal/notifier"
	"jobtrack/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateJobGeneratesFirstAutoTask(t *testing.T) {
	env := newTestEnv(t)
	sales := env.seedUser(t, "alice", model.RoleUser, "sales", true)
	admin := env.seedUser(t, "boss", model.RoleAdmin, "management", true)

	result, err := env.jobSvc.CreateJob(context.Background(), jobRequest("SO-1001", "ITEM-A"), Actor{ID: admin.ID, Role: admin.Role})
	require.NoError(t, err)

	assert.Equal(t, model.JobStatusReceived, result.Job.Status)
	require.NotNil(t, result.GeneratedTask)
	task := result.GeneratedTask
	assert.Equal(t, "Please Get the Drawing Approved", task.Title)
	assert.Equal(t, model.TaskTypeJobAuto, task.Type)
	assert.Equal(t, model.TaskStatusPending, task.Status)
	assert.Equal(t, "sales", task.JobDetails.CurrentStage)
	assert.Equal(t, "drawing approved", task.JobDetails.NextStage)
	assert.Equal(t, "SO-1001", task.JobDetails.DocNo)
	require.Len(t, task.Assignees, 1)
	assert.Equal(t, sales.ID.String(), task.Assignees[0].ID)
	require.NotNil(t, task.DueDate)

	assert.EqualValues(t, 1, env.countAudits(t, model.ActionJobCreated))
	assert.EqualValues(t, 1, env.countAudits(t, model.ActionTaskAutoCreated))

	assigned := env.events.byType(notifier.EventTaskAssigned)
	require.Len(t, assigned, 1)
	assert.Equal(t, sales.ID.String(), assigned[0].UserID)
}

func TestCreateJobRejectsDuplicateDocItem(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", model.RoleUser, "sales", true)

	_, err := env.jobSvc.CreateJob(context.Background(), jobRequest("SO-1001", "ITEM-A"), System)
	require.NoError(t, err)

	_, err = env.jobSvc.CreateJob(context.Background(), jobRequest("SO-1001", "ITEM-A"), System)
	assert.True(t, apperror.IsConflict(err), "expected conflict, got %v", err)

	// Same doc no with a different item code is a separate job.
	_, err = env.jobSvc.CreateJob(context.Background(), jobRequest("SO-1001", "ITEM-B"), System)
	assert.NoError(t, err)
}

func TestCreateJobValidation(t *testing.T) {
	env := newTestEnv(t)

	req := jobRequest("SO-1", "ITEM-A")
	req.Qty = 0
	_, err := env.jobSvc.CreateJob(context.Background(), req, System)
	assert.True(t, apperror.IsValidation(err))

	req = jobRequest("SO-2", "ITEM-A")
	req.Status = "not a real status"
	_, err = env.jobSvc.CreateJob(context.Background(), req, System)
	assert.True(t, apperror.IsValidation(err))

	req = jobRequest("", "ITEM-A")
	_, err = env.jobSvc.CreateJob(context.Background(), req, System)
	assert.True(t, apperror.IsValidation(err))
}

func TestCreateCancelledJobAuditsWithoutTask(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", model.RoleUser, "sales", true)

	req := jobRequest("SO-9", "ITEM-A")
	req.Status = model.JobStatusCancelled
	result, err := env.jobSvc.CreateJob(context.Background(), req, System)
	require.NoError(t, err)

	assert.Nil(t, result.GeneratedTask)
	assert.EqualValues(t, 1, env.countAudits(t, model.ActionJobCancelled))
	assert.EqualValues(t, 0, env.countAudits(t, model.ActionTaskAutoCreated))
}

func TestCreateJobWithoutDepartmentUserSkipsTask(t *testing.T) {
	env := newTestEnv(t)
	// Only an inactive sales user and an admin in sales: neither qualifies.
	env.seedUser(t, "gone", model.RoleUser, "sales", false)
	env.seedUser(t, "boss", model.RoleAdmin, "sales", true)

	result, err := env.jobSvc.CreateJob(context.Background(), jobRequest("SO-5", "ITEM-A"), System)
	require.NoError(t, err)

	assert.Nil(t, result.GeneratedTask)
	assert.EqualValues(t, 1, env.countAudits(t, model.ActionTaskSkippedNoAssignee))
}

func TestResponsibleUserIsOldestActiveMatch(t *testing.T) {
	env := newTestEnv(t)
	first := env.seedUser(t, "first", model.RoleUser, "Sales Team", true)
	env.seedUser(t, "second", model.RoleUser, "sales", true)

	result, err := env.jobSvc.CreateJob(context.Background(), jobRequest("SO-7", "ITEM-A"), System)
	require.NoError(t, err)

	require.NotNil(t, result.GeneratedTask)
	require.Len(t, result.GeneratedTask.Assignees, 1)
	// Department match is case-insensitive substring; oldest account wins.
	assert.Equal(t, first.ID.String(), result.GeneratedTask.Assignees[0].ID)
}

func TestUpdateJobStatusPropagates(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", model.RoleUser, "sales", true)
	design := env.seedUser(t, "dave", model.RoleUser, "design", true)
	admin := env.seedUser(t, "boss", model.RoleAdmin, "management", true)

	created, err := env.jobSvc.CreateJob(context.Background(), jobRequest("SO-1", "ITEM-A"), System)
	require.NoError(t, err)

	result, err := env.jobSvc.UpdateJobStatus(context.Background(), created.Job.ID, "drawing approved", Actor{ID: admin.ID, Role: admin.Role})
	require.NoError(t, err)

	assert.Equal(t, "drawing approved", result.Job.Status)
	require.NotNil(t, result.GeneratedTask)
	assert.Equal(t, "Please provide long lead item details", result.GeneratedTask.Title)
	assert.Equal(t, "design", result.GeneratedTask.JobDetails.CurrentStage)
	require.Len(t, result.GeneratedTask.Assignees, 1)
	assert.Equal(t, design.ID.String(), result.GeneratedTask.Assignees[0].ID)

	assert.EqualValues(t, 1, env.countAudits(t, model.ActionJobStatusUpdated))
}

func TestUpdateJobStatusDoesNotDuplicateActiveTask(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "dave", model.RoleUser, "design", true)

	created, err := env.jobSvc.CreateJob(context.Background(), jobRequest("SO-1", "ITEM-A"), System)
	require.NoError(t, err)

	first, err := env.jobSvc.UpdateJobStatus(context.Background(), created.Job.ID, "drawing approved", System)
	require.NoError(t, err)
	require.NotNil(t, first.GeneratedTask)

	// Re-applying the same status while the task is still active must not
	// spawn a second one.
	second, err := env.jobSvc.UpdateJobStatus(context.Background(), created.Job.ID, "drawing approved", System)
	require.NoError(t, err)
	assert.Nil(t, second.GeneratedTask)
	assert.EqualValues(t, 1, env.countAudits(t, model.ActionTaskAutoCreated))
}

func TestUpdateJobStatusErrors(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.jobSvc.UpdateJobStatus(context.Background(), "not-a-uuid", "hold", System)
	assert.True(t, apperror.IsValidation(err))

	created, err := env.jobSvc.CreateJob(context.Background(), jobRequest("SO-1", "ITEM-A"), System)
	require.NoError(t, err)

	_, err = env.jobSvc.UpdateJobStatus(context.Background(), created.Job.ID, "no such status", System)
	assert.True(t, apperror.IsValidation(err))

	_, err = env.jobSvc.UpdateJobStatus(context.Background(), "00000000-0000-0000-0000-000000000001", "hold", System)
	assert.True(t, apperror.IsNotFound(err))
}

func TestHoldGeneratesUrgentShortFuseTask(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", model.RoleUser, "sales", true)

	created, err := env.jobSvc.CreateJob(context.Background(), jobRequest("SO-1", "ITEM-A"), System)
	require.NoError(t, err)

	result, err := env.jobSvc.UpdateJobStatus(context.Background(), created.Job.ID, model.JobStatusHold, System)
	require.NoError(t, err)

	require.NotNil(t, result.GeneratedTask)
	task := result.GeneratedTask
	assert.Equal(t, "Please Review Hold and Advise", task.Title)
	assert.Equal(t, model.PriorityHigh, task.Priority)
	require.NotNil(t, task.DueDate)
	due, err := time.Parse(time.RFC3339, *task.DueDate)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(3*24*time.Hour), due, time.Minute)

	// Hold also triggers a status alert event.
	assert.NotEmpty(t, env.events.byType(notifier.EventJobStatus))
}

func TestBulkCreateJobsReportsPerRow(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", model.RoleUser, "sales", true)

	reqs := []CreateJobRequest{
		jobRequest("SO-1", "ITEM-A"),
		jobRequest("SO-1", "ITEM-A"), // duplicate of row 0
		jobRequest("SO-2", "ITEM-B"),
	}
	result, err := env.jobSvc.BulkCreateJobs(context.Background(), reqs, System)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Rows, 3)
	assert.NotNil(t, result.Rows[0].JobID)
	assert.NotEmpty(t, result.Rows[1].Error)
	assert.NotNil(t, result.Rows[2].JobID)

	_, err = env.jobSvc.BulkCreateJobs(context.Background(), nil, System)
	assert.True(t, apperror.IsValidation(err))
}

func TestGetJob(t *testing.T) {
	env := newTestEnv(t)
	created, err := env.jobSvc.CreateJob(context.Background(), jobRequest("SO-1", "ITEM-A"), System)
	require.NoError(t, err)

	job, err := env.jobSvc.GetJob(context.Background(), created.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, "SO-1", job.DocNo)

	_, err = env.jobSvc.GetJob(context.Background(), "00000000-0000-0000-0000-000000000001")
	assert.True(t, apperror.IsNotFound(err))
}
