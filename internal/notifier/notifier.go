// Package notifier delivers workflow events to the outside world. Delivery
// is fire-and-forget: failures are logged and never surface back into the
// task lifecycle.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/smtp"
	"strings"

	"jobtrack/internal/websocket"
)

// Event types emitted by the engines.
const (
	EventTaskAssigned  = "task_assigned"
	EventTaskSubmitted = "task_submitted" // completion waiting for approval
	EventTaskOverdue   = "task_overdue"   // reminder digest
	EventJobStatus     = "job_status"
)

// Event is one workflow notification.
type Event struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message"`
	UserID  string `json:"user_id,omitempty"`
	Email   string `json:"-"`
	TaskID  string `json:"task_id,omitempty"`
	JobID   string `json:"job_id,omitempty"`
}

// Dispatcher delivers a single event. Implementations must not block the
// caller on delivery outcome.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev Event)
}

// Multi fans one event out to several dispatchers.
type Multi []Dispatcher

func (m Multi) Dispatch(ctx context.Context, ev Event) {
	for _, d := range m {
		d.Dispatch(ctx, ev)
	}
}

// HubDispatcher broadcasts events to connected websocket clients.
type HubDispatcher struct {
	hub *websocket.Hub
}

func NewHubDispatcher(hub *websocket.Hub) *HubDispatcher {
	return &HubDispatcher{hub: hub}
}

func (d *HubDispatcher) Dispatch(_ context.Context, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Println("notifier: marshal event:", err)
		return
	}
	d.hub.Publish(payload)
}

// SMTPConfig holds mailer settings read from the environment.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// SMTPDispatcher emails events to the affected user. Sends happen on a
// separate goroutine; errors are logged and dropped.
type SMTPDispatcher struct {
	cfg SMTPConfig
}

func NewSMTPDispatcher(cfg SMTPConfig) *SMTPDispatcher {
	return &SMTPDispatcher{cfg: cfg}
}

func (d *SMTPDispatcher) Dispatch(_ context.Context, ev Event) {
	if ev.Email == "" {
		return
	}
	go func() {
		if err := d.send(ev); err != nil {
			log.Printf("notifier: send mail for %s failed: %v", ev.Type, err)
		}
	}()
}

func (d *SMTPDispatcher) send(ev Event) error {
	addr := d.cfg.Host + ":" + d.cfg.Port
	var auth smtp.Auth
	if d.cfg.Username != "" {
		auth = smtp.PlainAuth("", d.cfg.Username, d.cfg.Password, d.cfg.Host)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", d.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", ev.Email)
	fmt.Fprintf(&b, "Subject: %s\r\n\r\n", ev.Title)
	b.WriteString(ev.Message)
	b.WriteString("\r\n")
	return smtp.SendMail(addr, auth, d.cfg.From, []string{ev.Email}, []byte(b.String()))
}

// Nop discards every event. Used when no delivery channel is configured.
type Nop struct{}

func (Nop) Dispatch(context.Context, Event) {}
