// Package workflow holds the status flow table: the data that defines the
// production pipeline. The propagation engine consumes it; changing the
// pipeline order means editing this table (or the YAML override), not code.
package workflow

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Sentinel statuses with special handling in the engines.
const (
	StatusCancelled = "so cancelled"
	StatusCompleted = "completed"
	StatusHold      = "hold"
)

// Entry describes what happens at one pipeline status: which department
// stage owns it, which status the job moves to next, and the title of the
// follow-up task to generate. Next/NextTask are empty on terminal entries.
type Entry struct {
	Status   string `yaml:"status"`
	Stage    string `yaml:"stage"`
	Next     string `yaml:"next"`
	NextTask string `yaml:"next_task"`
}

// Table is an ordered status → Entry mapping keyed by lower-cased status.
type Table struct {
	order   []string
	entries map[string]Entry
}

// New builds a table from entries, preserving their order. Status keys are
// lower-cased; a later duplicate overwrites an earlier one.
func New(entries []Entry) *Table {
	t := &Table{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		key := strings.ToLower(strings.TrimSpace(e.Status))
		if key == "" {
			continue
		}
		if _, seen := t.entries[key]; !seen {
			t.order = append(t.order, key)
		}
		e.Status = key
		e.Next = strings.ToLower(strings.TrimSpace(e.Next))
		t.entries[key] = e
	}
	return t
}

// Default returns the built-in production pipeline.
func Default() *Table {
	return New([]Entry{
		{Status: "sales order received", Stage: "sales", Next: "drawing approved", NextTask: "Please Get the Drawing Approved"},
		{Status: "drawing approved", Stage: "design", Next: "long lead item details given", NextTask: "Please provide long lead item details"},
		{Status: "long lead item details given", Stage: "design", Next: "drawing/bom issued", NextTask: "Please Issue Drawing and BOM"},
		{Status: "drawing/bom issued", Stage: "planning", Next: "purchase order released", NextTask: "Please Release Production and Purchase Orders"},
		{Status: "purchase order released", Stage: "purchase", Next: "material received", NextTask: "Please Arrange Material Against Purchase Order"},
		{Status: "material received", Stage: "production", Next: "production completed", NextTask: "Please Complete Production"},
		{Status: "production completed", Stage: "quality", Next: "completed", NextTask: "Please Complete Final Quality Check"},
		{Status: "completed", Stage: "quality"},
		// Hold side-branch: diverts the chain without resetting pipeline
		// position, then resumes at "drawing approved".
		{Status: "hold", Stage: "sales", Next: "hold cleared", NextTask: "Please Review Hold and Advise"},
		{Status: "hold cleared", Stage: "design", Next: "drawing approved", NextTask: "Please Resume Drawing Approval"},
		{Status: "so cancelled"},
	})
}

// Load reads a pipeline definition from a YAML file. The file is a list of
// entries in pipeline order.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("workflow: read table %s: %w", path, err)
	}
	var entries []Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("workflow: parse table %s: %w", path, err)
	}
	t := New(entries)
	if len(t.order) == 0 {
		return nil, fmt.Errorf("workflow: table %s defines no statuses", path)
	}
	return t, nil
}

// Lookup resolves a status string (case-insensitive) to its flow entry.
// Unknown statuses yield ok=false; that is "no flow", not an error.
func (t *Table) Lookup(status string) (Entry, bool) {
	e, ok := t.entries[strings.ToLower(strings.TrimSpace(status))]
	return e, ok
}

// Known reports whether status is a key in the table.
func (t *Table) Known(status string) bool {
	_, ok := t.Lookup(status)
	return ok
}

// Statuses returns the status keys in pipeline order.
func (t *Table) Statuses() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}
