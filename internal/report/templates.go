package report

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"kanban/api/internal/board"
)

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"formatDate": func(t time.Time, layout string) string {
		return t.Format(layout)
	},
	"dueDate": func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format("Jan 2, 2006")
	},
	"percent": func(ratio float64) string {
		return fmt.Sprintf("%.0f%%", ratio*100)
	},
}).Parse(boardTemplate))

// TemplateData holds data for report rendering.
type TemplateData struct {
	Summary board.Summary
	Columns []TemplateColumn
}

type TemplateColumn struct {
	board.ColumnSummary
	Tasks []board.Task
}

// NewTemplateData pairs each column summary of b with its tasks in display order.
func NewTemplateData(b board.Board, summary board.Summary) TemplateData {
	data := TemplateData{Summary: summary}
	for i, column := range b.Columns {
		if i >= len(summary.Columns) {
			break
		}
		data.Columns = append(data.Columns, TemplateColumn{ColumnSummary: summary.Columns[i], Tasks: tasksInColumn(b, column)})
	}
	return data
}

func tasksInColumn(b board.Board, column board.Column) []board.Task {
	tasks := make([]board.Task, 0, len(column.TaskIDs))
	for _, id := range column.TaskIDs {
		if task, ok := b.Tasks[id]; ok {
			tasks = append(tasks, task)
		}
	}
	return tasks
}

// RenderHTML renders the report template with data.
func RenderHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const boardTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Summary.Title}} report</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.5; max-width: 900px; margin: 2rem auto; color: #1f2937; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    table { border-collapse: collapse; width: 100%; margin-bottom: 1.5rem; }
    th, td { text-align: left; padding: 0.35rem 0.5rem; border-bottom: 1px solid #e5e7eb; }
    .over { color: #b91c1c; font-weight: bold; }
    .column { margin-top: 1.5rem; }
  </style>
</head>
<body>
  <h1>{{.Summary.Title}}</h1>
  <div class="meta">Generated {{formatDate .Summary.GeneratedAt "Jan 2, 2006 15:04 MST"}}</div>
  <table>
    <tr><th>Total tasks</th><td>{{.Summary.TotalTasks}}</td></tr>
    <tr><th>Completed</th><td>{{.Summary.Completed}} ({{percent .Summary.CompletionRate}})</td></tr>
    <tr><th>Overdue</th><td>{{.Summary.Overdue}}</td></tr>
    <tr><th>Unassigned</th><td>{{.Summary.Unassigned}}</td></tr>
    {{if .Summary.EstimatedHours}}<tr><th>Hours (estimated / actual)</th><td>{{.Summary.EstimatedHours}} / {{.Summary.ActualHours}}</td></tr>{{end}}
  </table>
  {{if .Summary.ByAssignee}}
  <h2>By assignee</h2>
  <table>
    {{range .Summary.ByAssignee}}<tr><td>{{.Name}}</td><td>{{.TaskCount}}</td></tr>{{end}}
  </table>
  {{end}}
  {{range .Columns}}
  <div class="column">
    <h2>{{.Title}} <small{{if .OverLimit}} class="over"{{end}}>{{.TaskCount}}{{if .WIPLimit}} / {{.WIPLimit}}{{end}}</small></h2>
    {{if .Tasks}}
    <table>
      <tr><th>Task</th><th>Priority</th><th>Due</th></tr>
      {{range .Tasks}}<tr><td>{{.Title}}</td><td>{{.Priority}}</td><td>{{dueDate .DueDate}}</td></tr>{{end}}
    </table>
    {{end}}
  </div>
  {{end}}
</body>
</html>`
