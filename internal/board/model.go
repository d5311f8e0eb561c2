// Package board holds the Kanban board document and the rules that mutate it.
//
// Every mutation takes a Board value and returns a new one; the input is never
// modified. The same Engine runs on the server and in optimistic clients.
package board

import (
	"time"

	"kanban/api/internal/rbac"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Priorities lists the valid priorities from lowest to highest.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

type Settings struct {
	AllowPriorityChange bool `json:"allowPriorityChange"`
	AllowStatusChange   bool `json:"allowStatusChange"`
	EnableWipLimits     bool `json:"enableWipLimits"`
	EnableTimeTracking  bool `json:"enableTimeTracking"`
}

type Column struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Status   string   `json:"status"`
	TaskIDs  []string `json:"taskIds"`
	WIPLimit *int     `json:"wipLimit,omitempty"`
	Color    string   `json:"color"`
}

// OverLimit reports whether the column holds more tasks than its WIP limit.
// A nil or zero limit means unlimited.
func (c Column) OverLimit() bool {
	return c.WIPLimit != nil && *c.WIPLimit > 0 && len(c.TaskIDs) > *c.WIPLimit
}

type Comment struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Task struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Status         string     `json:"status"`
	Priority       Priority   `json:"priority"`
	Assignee       *string    `json:"assignee,omitempty"`
	Reporter       string     `json:"reporter"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	DueDate        *time.Time `json:"dueDate,omitempty"`
	Tags           []string   `json:"tags"`
	Attachments    []string   `json:"attachments"`
	Comments       []Comment  `json:"comments"`
	EstimatedHours *float64   `json:"estimatedHours,omitempty"`
	ActualHours    *float64   `json:"actualHours,omitempty"`
}

// AssignedTo reports whether the task is assigned to memberID.
func (t Task) AssignedTo(memberID string) bool {
	return t.Assignee != nil && *t.Assignee == memberID
}

type Member struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Avatar     string     `json:"avatar,omitempty"`
	Role       rbac.Role  `json:"role"`
	Color      string     `json:"color"`
	CreatedAt  *time.Time `json:"createdAt,omitempty"`
	LastActive *time.Time `json:"lastActive,omitempty"`
}

type Board struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Columns     []Column          `json:"columns"`
	Tasks       map[string]Task   `json:"tasks"`
	Members     map[string]Member `json:"members"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
	Settings    Settings          `json:"settings"`
	Revision    int64             `json:"revision"`
}

// Column returns the column with the given id.
func (b Board) Column(id string) (Column, bool) {
	if i := b.columnIndex(id); i >= 0 {
		return b.Columns[i], true
	}
	return Column{}, false
}

// ColumnByStatus returns the first column whose status matches.
func (b Board) ColumnByStatus(status string) (Column, bool) {
	if i := b.columnIndexByStatus(status); i >= 0 {
		return b.Columns[i], true
	}
	return Column{}, false
}

func (b Board) columnIndex(id string) int {
	for i, column := range b.Columns {
		if column.ID == id {
			return i
		}
	}
	return -1
}

func (b Board) columnIndexByStatus(status string) int {
	for i, column := range b.Columns {
		if column.Status == status {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy that shares no slices, maps or pointers with b.
func (b Board) Clone() Board {
	out := b
	out.Columns = make([]Column, len(b.Columns))
	for i, column := range b.Columns {
		out.Columns[i] = column.clone()
	}
	out.Tasks = make(map[string]Task, len(b.Tasks))
	for id, task := range b.Tasks {
		out.Tasks[id] = task.clone()
	}
	out.Members = make(map[string]Member, len(b.Members))
	for id, member := range b.Members {
		out.Members[id] = member.clone()
	}
	return out
}

func (c Column) clone() Column {
	out := c
	out.TaskIDs = append([]string{}, c.TaskIDs...)
	out.WIPLimit = clonePtr(c.WIPLimit)
	return out
}

func (t Task) clone() Task {
	out := t
	out.Assignee = clonePtr(t.Assignee)
	out.DueDate = clonePtr(t.DueDate)
	out.EstimatedHours = clonePtr(t.EstimatedHours)
	out.ActualHours = clonePtr(t.ActualHours)
	out.Tags = append([]string{}, t.Tags...)
	out.Attachments = append([]string{}, t.Attachments...)
	out.Comments = append([]Comment{}, t.Comments...)
	return out
}

func (m Member) clone() Member {
	out := m
	out.CreatedAt = clonePtr(m.CreatedAt)
	out.LastActive = clonePtr(m.LastActive)
	return out
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	copied := *v
	return &copied
}
