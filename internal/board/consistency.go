package board

import (
	"fmt"
	"sort"
)

// Violation is one breach of the column/task invariant.
type Violation struct {
	TaskID   string `json:"taskId"`
	ColumnID string `json:"columnId,omitempty"`
	Problem  string `json:"problem"`
}

func (v Violation) String() string {
	if v.ColumnID == "" {
		return fmt.Sprintf("task %s: %s", v.TaskID, v.Problem)
	}
	return fmt.Sprintf("task %s in column %s: %s", v.TaskID, v.ColumnID, v.Problem)
}

// CheckConsistency reports every place where columns and tasks disagree:
// dangling ids, ids listed more than once, tasks listed nowhere, and tasks
// whose status differs from the column listing them.
func CheckConsistency(b Board) []Violation {
	var violations []Violation
	listedIn := make(map[string]string, len(b.Tasks))

	for _, column := range b.Columns {
		for _, taskID := range column.TaskIDs {
			task, ok := b.Tasks[taskID]
			if !ok {
				violations = append(violations, Violation{TaskID: taskID, ColumnID: column.ID, Problem: "dangling task id"})
				continue
			}
			if previous, seen := listedIn[taskID]; seen {
				violations = append(violations, Violation{
					TaskID:   taskID,
					ColumnID: column.ID,
					Problem:  fmt.Sprintf("also listed in column %s", previous),
				})
				continue
			}
			listedIn[taskID] = column.ID
			if task.Status != column.Status {
				violations = append(violations, Violation{
					TaskID:   taskID,
					ColumnID: column.ID,
					Problem:  fmt.Sprintf("status %q does not match column status %q", task.Status, column.Status),
				})
			}
		}
	}

	unlisted := make([]string, 0)
	for taskID := range b.Tasks {
		if _, ok := listedIn[taskID]; !ok {
			unlisted = append(unlisted, taskID)
		}
	}
	sort.Strings(unlisted)
	for _, taskID := range unlisted {
		violations = append(violations, Violation{TaskID: taskID, Problem: "not listed in any column"})
	}
	return violations
}
