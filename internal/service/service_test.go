package service

import (
	"context"
	"sync"
	"testing"

	"jobtrack/internal/database"
	"jobtrack/internal/model"
	"jobtrack/internal/notifier"
	"jobtrack/internal/repository"
	"jobtrack/internal/workflow"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// recordingDispatcher captures dispatched events for assertions.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []notifier.Event
}

func (d *recordingDispatcher) Dispatch(_ context.Context, ev notifier.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, ev)
}

func (d *recordingDispatcher) byType(eventType string) []notifier.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []notifier.Event
	for _, ev := range d.events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

type testEnv struct {
	db       *gorm.DB
	users    repository.UserRepository
	jobs     repository.JobRepository
	tasks    repository.TaskRepository
	audits   repository.AuditRepository
	events   *recordingDispatcher
	jobSvc   JobService
	taskSvc  TaskService
	auditSvc AuditService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// All queries must hit the same in-memory database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))

	users := repository.NewUserRepository(db)
	jobs := repository.NewJobRepository(db)
	tasks := repository.NewTaskRepository(db)
	audits := repository.NewAuditRepository(db)
	txm := repository.NewTransactionManager(db)

	events := &recordingDispatcher{}
	propagator := NewPropagator(db, jobs, tasks, users, audits, workflow.Default())

	return &testEnv{
		db:       db,
		users:    users,
		jobs:     jobs,
		tasks:    tasks,
		audits:   audits,
		events:   events,
		jobSvc:   NewJobService(jobs, txm, propagator, events),
		taskSvc:  NewTaskService(tasks, users, jobs, audits, txm, propagator, events),
		auditSvc: NewAuditService(audits),
	}
}

func (e *testEnv) seedUser(t *testing.T, username, role, department string, active bool) *model.User {
	t.Helper()
	user := &model.User{
		Username:   username,
		Email:      username + "@example.com",
		Password:   "hashed",
		Role:       role,
		Department: department,
		Active:     active,
	}
	require.NoError(t, e.users.Create(context.Background(), user))
	return user
}

func (e *testEnv) countAudits(t *testing.T, action string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, e.db.Model(&model.AuditLog{}).Where("action = ?", action).Count(&count).Error)
	return count
}

func jobRequest(docNo, itemCode string) CreateJobRequest {
	return CreateJobRequest{
		Month:        "2026-08",
		DocNo:        docNo,
		CustomerName: "Acme Industries",
		ItemCode:     itemCode,
		Description:  "Widget assembly",
		Qty:          10,
		Week:         "35",
	}
}
