// Package search finds tasks across boards. Meilisearch serves queries when it
// is configured and reachable; otherwise boards are scanned in memory.
package search

import "kanban/api/internal/board"

// Result is a single task hit returned to the caller.
type Result struct {
	BoardID    string         `json:"boardId"`
	BoardTitle string         `json:"boardTitle"`
	TaskID     string         `json:"taskId"`
	Title      string         `json:"title"`
	Snippet    string         `json:"snippet"`
	Status     string         `json:"status"`
	Priority   board.Priority `json:"priority"`
}

// Query describes a search request. A nil BoardIDs searches every board; a
// non-nil slice restricts hits to those boards.
type Query struct {
	Text     string
	BoardIDs []string
	Limit    int
	Offset   int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// TaskRecord is the data we index for a task.
type TaskRecord struct {
	ID          string   `json:"id"`
	BoardID     string   `json:"boardId"`
	BoardTitle  string   `json:"boardTitle"`
	TaskID      string   `json:"taskId"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority"`
	Assignee    string   `json:"assignee"`
	Tags        []string `json:"tags"`
}

// RecordID is the index key of a task. Task ids are only unique per board.
func RecordID(boardID, taskID string) string {
	return boardID + "_" + taskID
}

// Records converts every task on b into index records.
func Records(b board.Board) []TaskRecord {
	records := make([]TaskRecord, 0, len(b.Tasks))
	for _, task := range board.FilterTasks(b, board.TaskFilter{}) {
		assignee := ""
		if task.Assignee != nil {
			assignee = *task.Assignee
		}
		records = append(records, TaskRecord{
			ID:          RecordID(b.ID, task.ID),
			BoardID:     b.ID,
			BoardTitle:  b.Title,
			TaskID:      task.ID,
			Title:       task.Title,
			Description: task.Description,
			Status:      task.Status,
			Priority:    string(task.Priority),
			Assignee:    assignee,
			Tags:        append([]string{}, task.Tags...),
		})
	}
	return records
}
