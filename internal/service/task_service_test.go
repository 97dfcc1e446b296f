package service

import (
	"context"
	"testing"
	"time"

	"jobtrack/internal/model"
	"jobtrack/internal/repository"
	"jobtrack/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func actorOf(u *model.User) Actor {
	return Actor{ID: u.ID, Role: u.Role}
}

func TestCompleteSingleAssigneeChainsNextTask(t *testing.T) {
	env := newTestEnv(t)
	sales := env.seedUser(t, "alice", model.RoleUser, "sales", true)
	design := env.seedUser(t, "dave", model.RoleUser, "design", true)

	created, err := env.jobSvc.CreateJob(context.Background(), jobRequest("SO-1", "ITEM-A"), System)
	require.NoError(t, err)
	require.NotNil(t, created.GeneratedTask)

	result, err := env.taskSvc.CompleteTask(context.Background(), created.GeneratedTask.ID, actorOf(sales), "drawing sent to customer", nil)
	require.NoError(t, err)

	assert.True(t, result.Submitted)
	assert.Equal(t, model.TaskStatusPendingApproval, result.Task.Status)
	assert.Equal(t, "drawing sent to customer", result.Task.CompletionRemarks)
	require.NotNil(t, result.Task.CompletedAt)

	// Completion, not approval, advances the job and spawns the next task.
	require.NotNil(t, result.NextTask)
	assert.Equal(t, "Please provide long lead item details", result.NextTask.Title)
	require.Len(t, result.NextTask.Assignees, 1)
	assert.Equal(t, design.ID.String(), result.NextTask.Assignees[0].ID)

	job, err := env.jobSvc.GetJob(context.Background(), created.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, "drawing approved", job.Status)
}

func TestCompleteTaskGuards(t *testing.T) {
	env := newTestEnv(t)
	sales := env.seedUser(t, "alice", model.RoleUser, "sales", true)
	outsider := env.seedUser(t, "eve", model.RoleUser, "quality", true)

	created, err := env.jobSvc.CreateJob(context.Background(), jobRequest("SO-1", "ITEM-A"), System)
	require.NoError(t, err)
	taskID := created.GeneratedTask.ID

	_, err = env.taskSvc.CompleteTask(context.Background(), taskID, actorOf(outsider), "", nil)
	assert.True(t, apperror.IsUnauthorized(err), "non-assignee must not complete, got %v", err)

	_, err = env.taskSvc.CompleteTask(context.Background(), taskID, actorOf(sales), "", nil)
	require.NoError(t, err)

	// Already pending approval.
	_, err = env.taskSvc.CompleteTask(context.Background(), taskID, actorOf(sales), "", nil)
	assert.True(t, apperror.IsInvalidState(err), "expected invalid state, got %v", err)

	_, err = env.taskSvc.CompleteTask(context.Background(), uuid.NewString(), actorOf(sales), "", nil)
	assert.True(t, apperror.IsNotFound(err))

	_, err = env.taskSvc.CompleteTask(context.Background(), "garbage", actorOf(sales), "", nil)
	assert.True(t, apperror.IsValidation(err))
}

func TestApproveJobAutoTask(t *testing.T) {
	env := newTestEnv(t)
	sales := env.seedUser(t, "alice", model.RoleUser, "sales", true)
	admin := env.seedUser(t, "boss", model.RoleAdmin, "management", true)

	created, err := env.jobSvc.CreateJob(context.Background(), jobRequest("SO-1", "ITEM-A"), System)
	require.NoError(t, err)
	taskID := created.GeneratedTask.ID

	// Pending tasks cannot be approved.
	_, err = env.taskSvc.ApproveTask(context.Background(), taskID, actorOf(admin))
	assert.True(t, apperror.IsInvalidState(err))

	_, err = env.taskSvc.CompleteTask(context.Background(), taskID, actorOf(sales), "done", nil)
	require.NoError(t, err)

	// Regular users cannot approve job-auto tasks.
	_, err = env.taskSvc.ApproveTask(context.Background(), taskID, actorOf(sales))
	assert.True(t, apperror.IsUnauthorized(err))

	approved, err := env.taskSvc.ApproveTask(context.Background(), taskID, actorOf(admin))
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCompleted, approved.Status)
	require.NotNil(t, approved.ApprovedAt)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, admin.ID.String(), *approved.ApprovedBy)
	assert.EqualValues(t, 1, env.countAudits(t, model.ActionTaskApproved))
}

func TestRejectRevertsTaskToPending(t *testing.T) {
	env := newTestEnv(t)
	sales := env.seedUser(t, "alice", model.RoleUser, "sales", true)
	admin := env.seedUser(t, "boss", model.RoleAdmin, "management", true)

	created, err := env.jobSvc.CreateJob(context.Background(), jobRequest("SO-1", "ITEM-A"), System)
	require.NoError(t, err)
	taskID := created.GeneratedTask.ID

	_, err = env.taskSvc.CompleteTask(context.Background(), taskID, actorOf(sales), "first attempt", nil)
	require.NoError(t, err)

	_, err = env.taskSvc.RejectTask(context.Background(), taskID, actorOf(admin), "  ")
	assert.True(t, apperror.IsValidation(err), "blank reason must be rejected")

	rejected, err := env.taskSvc.RejectTask(context.Background(), taskID, actorOf(admin), "drawing incomplete")
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusPending, rejected.Status)
	assert.Nil(t, rejected.CompletedAt)
	assert.Empty(t, rejected.CompletionRemarks)
	assert.Equal(t, "drawing incomplete", rejected.RejectionReason)
	require.NotNil(t, rejected.RejectedBy)
	assert.Equal(t, admin.ID.String(), *rejected.RejectedBy)

	// The task is completable again after rejection.
	result, err := env.taskSvc.CompleteTask(context.Background(), taskID, actorOf(sales), "second attempt", nil)
	require.NoError(t, err)
	assert.True(t, result.Submitted)
	assert.Equal(t, "second attempt", result.Task.CompletionRemarks)
}

func TestMultiAssigneeCompletionGate(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedUser(t, "boss", model.RoleAdmin, "management", true)
	u1 := env.seedUser(t, "alice", model.RoleUser, "production", true)
	u2 := env.seedUser(t, "bob", model.RoleUser, "production", true)

	task, err := env.taskSvc.CreateManualTask(context.Background(), CreateTaskRequest{
		Title:      "Calibrate both lines",
		AssignedTo: []string{u1.ID.String(), u2.ID.String()},
	}, actorOf(admin))
	require.NoError(t, err)

	first, err := env.taskSvc.CompleteTask(context.Background(), task.ID, actorOf(u1), "line one done", nil)
	require.NoError(t, err)
	assert.False(t, first.Submitted)
	assert.Equal(t, 1, first.WaitingOn)
	assert.Equal(t, model.TaskStatusPending, first.Task.Status)
	assert.EqualValues(t, 1, env.countAudits(t, model.ActionTaskCompletionRecorded))

	// Double completion by the same assignee is a conflict.
	_, err = env.taskSvc.CompleteTask(context.Background(), task.ID, actorOf(u1), "again", nil)
	assert.True(t, apperror.IsConflict(err), "expected conflict, got %v", err)

	second, err := env.taskSvc.CompleteTask(context.Background(), task.ID, actorOf(u2), "line two done", nil)
	require.NoError(t, err)
	assert.True(t, second.Submitted)
	assert.Equal(t, model.TaskStatusPendingApproval, second.Task.Status)
	assert.Equal(t, "line one done; line two done", second.Task.CompletionRemarks)
	require.Len(t, second.Task.Completions, 2)
}

func TestRejectionClearsIndividualCompletions(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedUser(t, "boss", model.RoleAdmin, "management", true)
	u1 := env.seedUser(t, "alice", model.RoleUser, "production", true)
	u2 := env.seedUser(t, "bob", model.RoleUser, "production", true)

	task, err := env.taskSvc.CreateManualTask(context.Background(), CreateTaskRequest{
		Title:      "Inspect welds",
		AssignedTo: []string{u1.ID.String(), u2.ID.String()},
	}, actorOf(admin))
	require.NoError(t, err)

	_, err = env.taskSvc.CompleteTask(context.Background(), task.ID, actorOf(u1), "", nil)
	require.NoError(t, err)
	_, err = env.taskSvc.CompleteTask(context.Background(), task.ID, actorOf(u2), "", nil)
	require.NoError(t, err)

	rejected, err := env.taskSvc.RejectTask(context.Background(), task.ID, actorOf(admin), "redo inspection")
	require.NoError(t, err)
	assert.Empty(t, rejected.Completions)

	// Every assignee must complete again; one completion no longer suffices.
	redo, err := env.taskSvc.CompleteTask(context.Background(), task.ID, actorOf(u1), "", nil)
	require.NoError(t, err)
	assert.False(t, redo.Submitted)
	assert.Equal(t, 1, redo.WaitingOn)
}

func TestManualTaskCreationRules(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedUser(t, "boss", model.RoleAdmin, "management", true)
	user := env.seedUser(t, "alice", model.RoleUser, "sales", true)
	inactive := env.seedUser(t, "gone", model.RoleUser, "sales", false)

	// The engine owns job-auto tasks.
	_, err := env.taskSvc.CreateManualTask(context.Background(), CreateTaskRequest{
		Title:      "Fake pipeline task",
		AssignedTo: []string{user.ID.String()},
		Type:       model.TaskTypeJobAuto,
	}, actorOf(admin))
	assert.True(t, apperror.IsValidation(err))

	// Regular users cannot create manual tasks.
	_, err = env.taskSvc.CreateManualTask(context.Background(), CreateTaskRequest{
		Title:      "Do my work",
		AssignedTo: []string{admin.ID.String()},
	}, actorOf(user))
	assert.True(t, apperror.IsUnauthorized(err))

	// Inactive assignees are rejected.
	_, err = env.taskSvc.CreateManualTask(context.Background(), CreateTaskRequest{
		Title:      "For a ghost",
		AssignedTo: []string{inactive.ID.String()},
	}, actorOf(admin))
	assert.True(t, apperror.IsValidation(err))

	// Duplicate assignee ids collapse to one.
	task, err := env.taskSvc.CreateManualTask(context.Background(), CreateTaskRequest{
		Title:      "Check stock",
		AssignedTo: []string{user.ID.String(), user.ID.String()},
		Priority:   "HIGH",
	}, actorOf(admin))
	require.NoError(t, err)
	assert.Len(t, task.Assignees, 1)
	assert.Equal(t, model.PriorityHigh, task.Priority)
	assert.Equal(t, model.TaskTypeManual, task.Type)
}

func TestPeerTaskAssignment(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seedUser(t, "alice", model.RoleUser, "sales", true)
	bob := env.seedUser(t, "bob", model.RoleUser, "design", true)

	task, err := env.taskSvc.AssignPeerTask(context.Background(), PeerTaskRequest{
		Title:      "Share the customer drawings",
		AssignedTo: []string{bob.ID.String()},
	}, actorOf(alice))
	require.NoError(t, err)

	assert.Equal(t, model.TaskTypeUser, task.Type)
	require.NotNil(t, task.AssignedBy)
	assert.Equal(t, alice.ID.String(), *task.AssignedBy)

	// The assigner, not an admin, approves a peer task.
	_, err = env.taskSvc.CompleteTask(context.Background(), task.ID, actorOf(bob), "shared", nil)
	require.NoError(t, err)

	_, err = env.taskSvc.ApproveTask(context.Background(), task.ID, actorOf(bob))
	assert.True(t, apperror.IsUnauthorized(err))

	approved, err := env.taskSvc.ApproveTask(context.Background(), task.ID, actorOf(alice))
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCompleted, approved.Status)
}

func TestSuperAdminTaskNeedsSuperAdmin(t *testing.T) {
	env := newTestEnv(t)
	super := env.seedUser(t, "root", model.RoleSuperAdmin, "management", true)
	admin := env.seedUser(t, "boss", model.RoleAdmin, "management", true)

	task, err := env.taskSvc.CreateManualTask(context.Background(), CreateTaskRequest{
		Title:      "Rotate signing keys",
		AssignedTo: []string{admin.ID.String()},
		Type:       model.TaskTypeSuperAdmin,
	}, actorOf(super))
	require.NoError(t, err)

	// Admins cannot create or approve super-admin tasks.
	_, err = env.taskSvc.CreateManualTask(context.Background(), CreateTaskRequest{
		Title:      "Another one",
		AssignedTo: []string{admin.ID.String()},
		Type:       model.TaskTypeSuperAdmin,
	}, actorOf(admin))
	assert.True(t, apperror.IsUnauthorized(err))

	_, err = env.taskSvc.CompleteTask(context.Background(), task.ID, actorOf(admin), "", nil)
	require.NoError(t, err)

	_, err = env.taskSvc.ApproveTask(context.Background(), task.ID, actorOf(admin))
	assert.True(t, apperror.IsUnauthorized(err))

	_, err = env.taskSvc.ApproveTask(context.Background(), task.ID, actorOf(super))
	assert.NoError(t, err)
}

func TestDeleteTaskPolicy(t *testing.T) {
	env := newTestEnv(t)
	sales := env.seedUser(t, "alice", model.RoleUser, "sales", true)
	admin := env.seedUser(t, "boss", model.RoleAdmin, "management", true)

	created, err := env.jobSvc.CreateJob(context.Background(), jobRequest("SO-1", "ITEM-A"), System)
	require.NoError(t, err)
	autoTaskID := created.GeneratedTask.ID

	// Deleting a job-auto task severs the chain; assignees may not.
	err = env.taskSvc.DeleteTask(context.Background(), autoTaskID, actorOf(sales))
	assert.True(t, apperror.IsUnauthorized(err))

	require.NoError(t, env.taskSvc.DeleteTask(context.Background(), autoTaskID, actorOf(admin)))
	_, err = env.taskSvc.GetTask(context.Background(), autoTaskID)
	assert.True(t, apperror.IsNotFound(err))
	assert.EqualValues(t, 1, env.countAudits(t, model.ActionTaskDeleted))
}

func TestListOverdueTasks(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedUser(t, "boss", model.RoleAdmin, "management", true)
	worker := env.seedUser(t, "alice", model.RoleUser, "production", true)

	past := time.Now().Add(-time.Hour)
	mk := func(title string) string {
		task, err := env.taskSvc.CreateManualTask(context.Background(), CreateTaskRequest{
			Title:      title,
			AssignedTo: []string{worker.ID.String()},
			DueDate:    &past,
		}, actorOf(admin))
		require.NoError(t, err)
		return task.ID
	}

	mk("Still pending")
	awaiting := mk("Awaiting approval")
	finished := mk("Finished late")

	_, err := env.taskSvc.CompleteTask(context.Background(), awaiting, actorOf(worker), "", nil)
	require.NoError(t, err)
	_, err = env.taskSvc.CompleteTask(context.Background(), finished, actorOf(worker), "", nil)
	require.NoError(t, err)
	_, err = env.taskSvc.ApproveTask(context.Background(), finished, actorOf(admin))
	require.NoError(t, err)

	// Overdue covers every task still occupying its slot, including ones
	// waiting for approval; approved tasks drop out.
	tasks, total, err := env.taskSvc.ListTasks(context.Background(), repository.TaskFilter{Overdue: true})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	titles := make([]string, 0, len(tasks))
	for _, task := range tasks {
		titles = append(titles, task.Title)
	}
	assert.ElementsMatch(t, []string{"Still pending", "Awaiting approval"}, titles)
}

// TestPipelineRoundTrip walks a job from sales order to completed purely by
// completing each generated task in turn.
func TestPipelineRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedUser(t, "boss", model.RoleAdmin, "management", true)
	for _, dept := range []string{"sales", "design", "planning", "purchase", "production", "quality"} {
		env.seedUser(t, dept+"-worker", model.RoleUser, dept, true)
	}

	created, err := env.jobSvc.CreateJob(context.Background(), jobRequest("SO-100", "ITEM-X"), System)
	require.NoError(t, err)
	require.NotNil(t, created.GeneratedTask)

	var titles []string
	task := created.GeneratedTask
	for task != nil {
		titles = append(titles, task.Title)
		require.Len(t, task.Assignees, 1)
		assignee, err := uuid.Parse(task.Assignees[0].ID)
		require.NoError(t, err)

		result, err := env.taskSvc.CompleteTask(context.Background(), task.ID, Actor{ID: assignee, Role: model.RoleUser}, "done", nil)
		require.NoError(t, err)
		require.True(t, result.Submitted)

		_, err = env.taskSvc.ApproveTask(context.Background(), task.ID, actorOf(admin))
		require.NoError(t, err)

		task = result.NextTask
		require.Less(t, len(titles), 10, "pipeline must terminate")
	}

	assert.Equal(t, []string{
		"Please Get the Drawing Approved",
		"Please provide long lead item details",
		"Please Issue Drawing and BOM",
		"Please Release Production and Purchase Orders",
		"Please Arrange Material Against Purchase Order",
		"Please Complete Production",
		"Please Complete Final Quality Check",
	}, titles)

	job, err := env.jobSvc.GetJob(context.Background(), created.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, job.Status)
}
