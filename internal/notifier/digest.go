package notifier

import (
	"context"
	"fmt"
	"log"
	"time"

	"jobtrack/internal/model"
	"jobtrack/internal/repository"

	"golang.org/x/sync/errgroup"
)

// Digest periodically reminds assignees about overdue active tasks. It runs
// outside the request flow and never blocks or retries: a failed cycle is
// logged and the next tick starts fresh.
type Digest struct {
	tasks    repository.TaskRepository
	dispatch Dispatcher
	interval time.Duration
}

func NewDigest(tasks repository.TaskRepository, dispatch Dispatcher, interval time.Duration) *Digest {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Digest{tasks: tasks, dispatch: dispatch, interval: interval}
}

// Run blocks until ctx is cancelled, emitting one digest per interval.
func (d *Digest) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.RunOnce(ctx); err != nil {
				log.Println("notifier: digest cycle failed:", err)
			}
		}
	}
}

// RunOnce sends overdue reminders for the current moment.
func (d *Digest) RunOnce(ctx context.Context) error {
	overdue, err := d.tasks.ListOverdue(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("list overdue tasks: %w", err)
	}
	if len(overdue) == 0 {
		return nil
	}

	// Group overdue tasks per assignee so each user gets one reminder.
	type bucket struct {
		user  model.User
		tasks []model.Task
	}
	byUser := make(map[string]*bucket)
	for _, t := range overdue {
		for _, u := range t.Assignees {
			key := u.ID.String()
			if byUser[key] == nil {
				byUser[key] = &bucket{user: u}
			}
			byUser[key].tasks = append(byUser[key].tasks, t)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, b := range byUser {
		b := b
		g.Go(func() error {
			msg := fmt.Sprintf("You have %d overdue task(s):", len(b.tasks))
			for _, t := range b.tasks {
				msg += "\n- " + t.Title
			}
			d.dispatch.Dispatch(gctx, Event{
				Type:    EventTaskOverdue,
				Title:   "Overdue task reminder",
				Message: msg,
				UserID:  b.user.ID.String(),
				Email:   b.user.Email,
			})
			return nil
		})
	}
	return g.Wait()
}
