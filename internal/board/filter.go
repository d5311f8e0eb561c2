package board

import (
	"sort"
	"strings"
	"time"
)

// Unassigned matches tasks with no assignee in TaskFilter.Assignee.
const Unassigned = "unassigned"

type TaskFilter struct {
	Text      string
	Status    string
	Priority  Priority
	Assignee  string
	Tag       string
	OverdueAt *time.Time
}

func (f TaskFilter) Empty() bool {
	return strings.TrimSpace(f.Text) == "" && f.Status == "" && f.Priority == "" &&
		f.Assignee == "" && f.Tag == "" && f.OverdueAt == nil
}

// Matches reports whether task satisfies every set criterion.
func (f TaskFilter) Matches(task Task) bool {
	if f.Status != "" && task.Status != f.Status {
		return false
	}
	if f.Priority != "" && task.Priority != f.Priority {
		return false
	}
	switch f.Assignee {
	case "":
	case Unassigned:
		if task.Assignee != nil {
			return false
		}
	default:
		if !task.AssignedTo(f.Assignee) {
			return false
		}
	}
	if f.Tag != "" && !containsFold(task.Tags, f.Tag) {
		return false
	}
	if f.OverdueAt != nil && !isOverdue(task, *f.OverdueAt) {
		return false
	}
	if text := strings.ToLower(strings.TrimSpace(f.Text)); text != "" {
		haystack := strings.ToLower(task.Title + "\n" + task.Description + "\n" + strings.Join(task.Tags, " "))
		if !strings.Contains(haystack, text) {
			return false
		}
	}
	return true
}

// FilterTasks returns the matching tasks in board display order: column order
// first, then position within the column. Tasks not listed in any column come last.
func FilterTasks(b Board, f TaskFilter) []Task {
	out := make([]Task, 0)
	seen := make(map[string]bool, len(b.Tasks))
	for _, column := range b.Columns {
		for _, taskID := range column.TaskIDs {
			task, ok := b.Tasks[taskID]
			if !ok || seen[taskID] {
				continue
			}
			seen[taskID] = true
			if f.Matches(task) {
				out = append(out, task.clone())
			}
		}
	}

	var rest []Task
	for taskID, task := range b.Tasks {
		if !seen[taskID] && f.Matches(task) {
			rest = append(rest, task.clone())
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].ID < rest[j].ID })
	return append(out, rest...)
}

func isOverdue(task Task, at time.Time) bool {
	return task.DueDate != nil && task.DueDate.Before(at)
}

func containsFold(values []string, target string) bool {
	for _, value := range values {
		if strings.EqualFold(value, target) {
			return true
		}
	}
	return false
}
