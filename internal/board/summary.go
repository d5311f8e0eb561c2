package board

import "time"

type ColumnSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	TaskCount int    `json:"taskCount"`
	WIPLimit  *int   `json:"wipLimit,omitempty"`
	OverLimit bool   `json:"overLimit"`
}

type AssigneeSummary struct {
	MemberID  string `json:"memberId"`
	Name      string `json:"name"`
	TaskCount int    `json:"taskCount"`
}

// Summary is the reporting view of a board.
type Summary struct {
	BoardID        string            `json:"boardId"`
	Title          string            `json:"title"`
	GeneratedAt    time.Time         `json:"generatedAt"`
	TotalTasks     int               `json:"totalTasks"`
	Columns        []ColumnSummary   `json:"columns"`
	ByPriority     map[Priority]int  `json:"byPriority"`
	ByAssignee     []AssigneeSummary `json:"byAssignee"`
	Unassigned     int               `json:"unassigned"`
	Overdue        int               `json:"overdue"`
	Completed      int               `json:"completed"`
	CompletionRate float64           `json:"completionRate"`
	EstimatedHours *float64          `json:"estimatedHours,omitempty"`
	ActualHours    *float64          `json:"actualHours,omitempty"`
}

// Summarize computes report figures for b as of now. Tasks in the last column
// count as completed and are never overdue.
func Summarize(b Board, now time.Time) Summary {
	s := Summary{
		BoardID:     b.ID,
		Title:       b.Title,
		GeneratedAt: now,
		TotalTasks:  len(b.Tasks),
		Columns:     make([]ColumnSummary, 0, len(b.Columns)),
		ByPriority:  make(map[Priority]int, len(Priorities)),
		ByAssignee:  []AssigneeSummary{},
	}
	for _, p := range Priorities {
		s.ByPriority[p] = 0
	}

	doneStatus := ""
	if len(b.Columns) > 0 {
		doneStatus = b.Columns[len(b.Columns)-1].Status
	}
	for _, column := range b.Columns {
		s.Columns = append(s.Columns, ColumnSummary{
			ID:        column.ID,
			Title:     column.Title,
			Status:    column.Status,
			TaskCount: len(column.TaskIDs),
			WIPLimit:  clonePtr(column.WIPLimit),
			OverLimit: b.Settings.EnableWipLimits && column.OverLimit(),
		})
	}

	perAssignee := make(map[string]int)
	var assigneeOrder []string
	var estimated, actual float64
	for _, task := range FilterTasks(b, TaskFilter{}) {
		s.ByPriority[task.Priority]++
		if task.Assignee == nil {
			s.Unassigned++
		} else {
			if _, seen := perAssignee[*task.Assignee]; !seen {
				assigneeOrder = append(assigneeOrder, *task.Assignee)
			}
			perAssignee[*task.Assignee]++
		}
		done := task.Status == doneStatus
		if done {
			s.Completed++
		} else if isOverdue(task, now) {
			s.Overdue++
		}
		if task.EstimatedHours != nil {
			estimated += *task.EstimatedHours
		}
		if task.ActualHours != nil {
			actual += *task.ActualHours
		}
	}

	for _, id := range assigneeOrder {
		name := id
		if member, ok := b.Members[id]; ok {
			name = member.Name
		}
		s.ByAssignee = append(s.ByAssignee, AssigneeSummary{MemberID: id, Name: name, TaskCount: perAssignee[id]})
	}

	if s.TotalTasks > 0 {
		s.CompletionRate = float64(s.Completed) / float64(s.TotalTasks)
	}
	if b.Settings.EnableTimeTracking {
		s.EstimatedHours = &estimated
		s.ActualHours = &actual
	}
	return s
}
