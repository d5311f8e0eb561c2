package board

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckConsistencyReportsViolations(t *testing.T) {
	e := newTestEngine()
	b := newTestBoard(t, e)
	b, listed, err := e.CreateTask(b, TaskInput{Title: "listed"})
	require.NoError(t, err)
	b, twice, err := e.CreateTask(b, TaskInput{Title: "twice"})
	require.NoError(t, err)
	require.Empty(t, CheckConsistency(b))

	broken := b.Clone()
	broken.Columns[0].TaskIDs = append(broken.Columns[0].TaskIDs, "task-ghost")
	broken.Columns[3].TaskIDs = append(broken.Columns[3].TaskIDs, twice.ID)
	mislabelled := broken.Tasks[listed.ID]
	mislabelled.Status = "done"
	broken.Tasks[listed.ID] = mislabelled
	broken.Tasks["task-orphan"] = Task{ID: "task-orphan", Title: "orphan", Status: "todo"}

	violations := CheckConsistency(broken)
	require.Len(t, violations, 4)
	assert.Equal(t, listed.ID, violations[0].TaskID)
	assert.Contains(t, violations[0].Problem, "does not match")
	assert.Equal(t, "task-ghost", violations[1].TaskID)
	assert.Equal(t, "dangling task id", violations[1].Problem)
	assert.Equal(t, twice.ID, violations[2].TaskID)
	assert.Contains(t, violations[2].Problem, "also listed")
	assert.Equal(t, "task-orphan", violations[3].TaskID)
	assert.Equal(t, "task task-orphan: not listed in any column", violations[3].String())
}

func TestFilterTasks(t *testing.T) {
	e := newTestEngine()
	b := newTestBoard(t, e)
	b, avery, err := e.AddMember(b, Member{ID: "member-avery", Name: "Avery"})
	require.NoError(t, err)
	yesterday := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)

	b, login, err := e.CreateTask(b, TaskInput{Title: "Fix login", Priority: PriorityHigh, Tags: []string{"Auth"}, Assignee: &avery.ID, DueDate: &yesterday})
	require.NoError(t, err)
	b, docs, err := e.CreateTask(b, TaskInput{Title: "Write docs", Description: "login flow", Status: "done"})
	require.NoError(t, err)
	b, polish, err := e.CreateTask(b, TaskInput{Title: "Polish", Priority: PriorityLow, Status: "in-progress"})
	require.NoError(t, err)
	now := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	ids := func(tasks []Task) []string {
		out := make([]string, 0, len(tasks))
		for _, task := range tasks {
			out = append(out, task.ID)
		}
		return out
	}

	cases := []struct {
		name   string
		filter TaskFilter
		want   []string
	}{
		{name: "all in display order", filter: TaskFilter{}, want: []string{login.ID, polish.ID, docs.ID}},
		{name: "text matches title and description", filter: TaskFilter{Text: "LOGIN"}, want: []string{login.ID, docs.ID}},
		{name: "status", filter: TaskFilter{Status: "in-progress"}, want: []string{polish.ID}},
		{name: "priority", filter: TaskFilter{Priority: PriorityHigh}, want: []string{login.ID}},
		{name: "assignee", filter: TaskFilter{Assignee: avery.ID}, want: []string{login.ID}},
		{name: "unassigned", filter: TaskFilter{Assignee: Unassigned}, want: []string{polish.ID, docs.ID}},
		{name: "tag ignores case", filter: TaskFilter{Tag: "auth"}, want: []string{login.ID}},
		{name: "overdue", filter: TaskFilter{OverdueAt: &now}, want: []string{login.ID}},
		{name: "no match", filter: TaskFilter{Text: "nothing"}, want: []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ids(FilterTasks(b, tc.filter)))
		})
	}
	assert.True(t, TaskFilter{Text: "  "}.Empty())
	assert.False(t, TaskFilter{Tag: "x"}.Empty())
}

func TestSummarize(t *testing.T) {
	e := newTestEngine()
	b := newTestBoard(t, e)
	b, avery, err := e.AddMember(b, Member{ID: "member-avery", Name: "Avery"})
	require.NoError(t, err)
	past := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	two := 2.0

	b, _, err = e.CreateTask(b, TaskInput{Title: "late", Priority: PriorityUrgent, DueDate: &past, Assignee: &avery.ID, EstimatedHours: &two})
	require.NoError(t, err)
	b, _, err = e.CreateTask(b, TaskInput{Title: "late but done", Status: "done", DueDate: &past, Assignee: &avery.ID})
	require.NoError(t, err)
	b, _, err = e.CreateTask(b, TaskInput{Title: "open"})
	require.NoError(t, err)
	b, _, err = e.CreateTask(b, TaskInput{Title: "shipped", Status: "done"})
	require.NoError(t, err)

	now := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	s := Summarize(b, now)
	assert.Equal(t, 4, s.TotalTasks)
	assert.Equal(t, 2, s.Completed)
	assert.Equal(t, 1, s.Overdue)
	assert.Equal(t, 2, s.Unassigned)
	assert.InDelta(t, 0.5, s.CompletionRate, 1e-9)
	assert.Equal(t, map[Priority]int{PriorityLow: 0, PriorityMedium: 3, PriorityHigh: 0, PriorityUrgent: 1}, s.ByPriority)
	assert.Equal(t, []AssigneeSummary{{MemberID: avery.ID, Name: "Avery", TaskCount: 2}}, s.ByAssignee)
	require.Len(t, s.Columns, 4)
	assert.Equal(t, 2, s.Columns[0].TaskCount)
	assert.Nil(t, s.EstimatedHours)

	on := true
	b, err = e.UpdateBoard(b, BoardPatch{Settings: &SettingsPatch{EnableTimeTracking: &on}})
	require.NoError(t, err)
	s = Summarize(b, now)
	require.NotNil(t, s.EstimatedHours)
	assert.InDelta(t, 2.0, *s.EstimatedHours, 1e-9)
	assert.InDelta(t, 0.0, *s.ActualHours, 1e-9)

	empty := Summarize(Board{ID: "b"}, now)
	assert.Zero(t, empty.CompletionRate)
	assert.Empty(t, empty.ByAssignee)
}

func TestTaskPatchDistinguishesAbsentNullAndValue(t *testing.T) {
	var patch TaskPatch
	require.NoError(t, json.Unmarshal([]byte(`{"assignee":null,"title":"New"}`), &patch))

	assert.True(t, patch.Assignee.Set)
	assert.True(t, patch.Assignee.Null)
	title, ok := patch.Title.Get()
	assert.True(t, ok)
	assert.Equal(t, "New", title)
	assert.False(t, patch.DueDate.Set)

	out, err := json.Marshal(TaskPatch{Status: Some("done")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"done"}`, string(out))
}
