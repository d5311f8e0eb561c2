package board

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
	"unicode/utf8"

	"kanban/api/internal/rbac"
	"kanban/api/internal/util"
)

// Palette is the fixed set of colors handed out to new columns and members.
var Palette = []string{
	"#3b82f6",
	"#f59e0b",
	"#8b5cf6",
	"#10b981",
	"#ef4444",
	"#ec4899",
	"#14b8a6",
	"#6366f1",
}

var defaultColumns = []struct {
	title  string
	status string
}{
	{title: "To Do", status: "todo"},
	{title: "In Progress", status: "in-progress"},
	{title: "In Review", status: "in-review"},
	{title: "Done", status: "done"},
}

// DefaultSettings are applied to every new board.
func DefaultSettings() Settings {
	return Settings{
		AllowPriorityChange: true,
		AllowStatusChange:   true,
		EnableWipLimits:     true,
		EnableTimeTracking:  false,
	}
}

// Engine applies board mutations. Its clock, id source and random source are
// replaceable so results are reproducible in tests and predictable in clients.
type Engine struct {
	Now   func() time.Time
	NewID func(prefix string) string
	Rand  func(n int) int
}

func NewEngine() *Engine {
	return &Engine{
		Now:   time.Now,
		NewID: util.NewID,
		Rand:  rand.IntN,
	}
}

func (e *Engine) now() time.Time {
	return e.Now().UTC()
}

// Apply runs one command against b.
func (e *Engine) Apply(b Board, cmd Command) (Board, any, error) {
	return cmd.Apply(e, b)
}

// NewBoard creates a board with the four default columns.
func (e *Engine) NewBoard(title, description string) (Board, error) {
	title, err := validateTitle("board", title)
	if err != nil {
		return Board{}, err
	}
	if err := validateDescription(description); err != nil {
		return Board{}, err
	}
	now := e.now()
	b := Board{
		ID:          e.NewID("board"),
		Title:       title,
		Description: trimmed(description),
		Columns:     make([]Column, 0, len(defaultColumns)),
		Tasks:       map[string]Task{},
		Members:     map[string]Member{},
		CreatedAt:   now,
		UpdatedAt:   now,
		Settings:    DefaultSettings(),
	}
	for i, def := range defaultColumns {
		b.Columns = append(b.Columns, Column{
			ID:      e.NewID("col"),
			Title:   def.title,
			Status:  def.status,
			TaskIDs: []string{},
			Color:   Palette[i%len(Palette)],
		})
	}
	return b, nil
}

func (e *Engine) UpdateBoard(b Board, patch BoardPatch) (Board, error) {
	next := b.Clone()
	if title, ok := patch.Title.Get(); ok {
		title, err := validateTitle("board", title)
		if err != nil {
			return Board{}, err
		}
		next.Title = title
	}
	if patch.Description.Set {
		if err := validateDescription(patch.Description.Value); err != nil {
			return Board{}, err
		}
		next.Description = trimmed(patch.Description.Value)
	}
	if s := patch.Settings; s != nil {
		setBool(&next.Settings.AllowPriorityChange, s.AllowPriorityChange)
		setBool(&next.Settings.AllowStatusChange, s.AllowStatusChange)
		setBool(&next.Settings.EnableWipLimits, s.EnableWipLimits)
		setBool(&next.Settings.EnableTimeTracking, s.EnableTimeTracking)
	}
	next.UpdatedAt = e.now()
	return next, nil
}

func (e *Engine) AddColumn(b Board, in ColumnInput) (Board, Column, error) {
	title, err := validateTitle("column", in.Title)
	if err != nil {
		return Board{}, Column{}, err
	}
	status := trimmed(in.Status)
	if status == "" {
		return Board{}, Column{}, invalid("column status is required")
	}
	if b.columnIndexByStatus(status) >= 0 {
		return Board{}, Column{}, fmt.Errorf("%w: %q", ErrDuplicateStatus, status)
	}
	if in.WIPLimit != nil && *in.WIPLimit < 0 {
		return Board{}, Column{}, invalid("wip limit must not be negative")
	}

	color := trimmed(in.Color)
	if color == "" {
		used := make([]string, 0, len(b.Columns))
		for _, column := range b.Columns {
			used = append(used, column.Color)
		}
		color = e.pickColor(used)
	}

	next := b.Clone()
	column := Column{
		ID:       e.NewID("col"),
		Title:    title,
		Status:   status,
		TaskIDs:  []string{},
		WIPLimit: normalizeLimit(in.WIPLimit),
		Color:    color,
	}
	next.Columns = append(next.Columns, column)
	next.UpdatedAt = e.now()
	return next, column.clone(), nil
}

// UpdateColumn merges patch over the column. Status uniqueness is not checked
// here; tasks listed in the column follow a status change.
func (e *Engine) UpdateColumn(b Board, columnID string, patch ColumnPatch) (Board, Column, error) {
	i := b.columnIndex(columnID)
	if i < 0 {
		return Board{}, Column{}, notFound("column", columnID)
	}
	now := e.now()
	next := b.Clone()
	column := next.Columns[i]

	if title, ok := patch.Title.Get(); ok {
		title, err := validateTitle("column", title)
		if err != nil {
			return Board{}, Column{}, err
		}
		column.Title = title
	}
	if status, ok := patch.Status.Get(); ok {
		status = trimmed(status)
		if status == "" {
			return Board{}, Column{}, invalid("column status is required")
		}
		if status != column.Status {
			for _, taskID := range column.TaskIDs {
				task, ok := next.Tasks[taskID]
				if !ok {
					continue
				}
				task.Status = status
				task.UpdatedAt = now
				next.Tasks[taskID] = task
			}
			column.Status = status
		}
	}
	if patch.WIPLimit.Set {
		if !patch.WIPLimit.Null && patch.WIPLimit.Value < 0 {
			return Board{}, Column{}, invalid("wip limit must not be negative")
		}
		if patch.WIPLimit.Null {
			column.WIPLimit = nil
		} else {
			column.WIPLimit = normalizeLimit(&patch.WIPLimit.Value)
		}
	}
	if color, ok := patch.Color.Get(); ok && trimmed(color) != "" {
		column.Color = trimmed(color)
	}

	next.Columns[i] = column
	next.UpdatedAt = now
	return next, column.clone(), nil
}

func (e *Engine) DeleteColumn(b Board, columnID string) (Board, error) {
	i := b.columnIndex(columnID)
	if i < 0 {
		return Board{}, notFound("column", columnID)
	}
	if n := len(b.Columns[i].TaskIDs); n > 0 {
		return Board{}, fmt.Errorf("%w: column %q holds %d tasks", ErrColumnNotEmpty, columnID, n)
	}
	next := b.Clone()
	next.Columns = append(next.Columns[:i], next.Columns[i+1:]...)
	next.UpdatedAt = e.now()
	return next, nil
}

// ReorderColumns accepts only an exact permutation of the current column ids.
func (e *Engine) ReorderColumns(b Board, columnIDs []string) (Board, error) {
	if len(columnIDs) != len(b.Columns) {
		return Board{}, fmt.Errorf("%w: expected %d column ids, got %d", ErrInvalidColumnSet, len(b.Columns), len(columnIDs))
	}
	seen := make(map[string]bool, len(columnIDs))
	order := make([]int, 0, len(columnIDs))
	for _, id := range columnIDs {
		if seen[id] {
			return Board{}, fmt.Errorf("%w: column %q listed twice", ErrInvalidColumnSet, id)
		}
		seen[id] = true
		i := b.columnIndex(id)
		if i < 0 {
			return Board{}, fmt.Errorf("%w: unknown column %q", ErrInvalidColumnSet, id)
		}
		order = append(order, i)
	}

	next := b.Clone()
	reordered := make([]Column, 0, len(order))
	for _, i := range order {
		reordered = append(reordered, next.Columns[i])
	}
	next.Columns = reordered
	next.UpdatedAt = e.now()
	return next, nil
}

// CreateTask places the task in the column matching the requested status, or
// the first column when no column matches. A board without columns gets a
// default "To Do" column first.
func (e *Engine) CreateTask(b Board, in TaskInput) (Board, Task, error) {
	title, err := validateTitle("task", in.Title)
	if err != nil {
		return Board{}, Task{}, err
	}
	if err := validateDescription(in.Description); err != nil {
		return Board{}, Task{}, err
	}
	priority := in.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	if !priority.Valid() {
		return Board{}, Task{}, invalid("unknown priority %q", priority)
	}
	if len(in.Tags) > MaxTags {
		return Board{}, Task{}, invalid("at most %d tags are allowed", MaxTags)
	}
	if in.EstimatedHours != nil && *in.EstimatedHours < 0 {
		return Board{}, Task{}, invalid("estimated hours must not be negative")
	}
	assignee, err := resolveAssignee(b, in.Assignee)
	if err != nil {
		return Board{}, Task{}, err
	}

	now := e.now()
	next := b.Clone()
	if len(next.Columns) == 0 {
		next.Columns = append(next.Columns, Column{
			ID:      e.NewID("col"),
			Title:   defaultColumns[0].title,
			Status:  defaultColumns[0].status,
			TaskIDs: []string{},
			Color:   Palette[0],
		})
	}
	target := 0
	if requested := trimmed(in.Status); requested != "" {
		if i := next.columnIndexByStatus(requested); i >= 0 {
			target = i
		}
	}

	task := Task{
		ID:             e.NewID("task"),
		Title:          title,
		Description:    trimmed(in.Description),
		Status:         next.Columns[target].Status,
		Priority:       priority,
		Assignee:       assignee,
		Reporter:       trimmed(in.Reporter),
		CreatedAt:      now,
		UpdatedAt:      now,
		DueDate:        clonePtr(in.DueDate),
		Tags:           append([]string{}, in.Tags...),
		Attachments:    []string{},
		Comments:       []Comment{},
		EstimatedHours: clonePtr(in.EstimatedHours),
	}
	next.Tasks[task.ID] = task
	next.Columns[target].TaskIDs = appendUnique(next.Columns[target].TaskIDs, task.ID)
	next.UpdatedAt = now
	return next, task.clone(), nil
}

// UpdateTask merges patch over the task. A status change moves the task id to
// the end of the matching column and is rejected when no column has that status.
func (e *Engine) UpdateTask(b Board, taskID string, patch TaskPatch) (Board, Task, error) {
	if _, ok := b.Tasks[taskID]; !ok {
		return Board{}, Task{}, notFound("task", taskID)
	}
	next := b.Clone()
	task := next.Tasks[taskID]

	if title, ok := patch.Title.Get(); ok {
		title, err := validateTitle("task", title)
		if err != nil {
			return Board{}, Task{}, err
		}
		task.Title = title
	}
	if patch.Description.Set {
		if err := validateDescription(patch.Description.Value); err != nil {
			return Board{}, Task{}, err
		}
		task.Description = trimmed(patch.Description.Value)
	}
	if priority, ok := patch.Priority.Get(); ok {
		if !priority.Valid() {
			return Board{}, Task{}, invalid("unknown priority %q", priority)
		}
		if priority != task.Priority && !b.Settings.AllowPriorityChange {
			return Board{}, Task{}, invalid("priority changes are disabled on this board")
		}
		task.Priority = priority
	}
	if patch.Assignee.Set {
		var requested *string
		if !patch.Assignee.Null {
			requested = &patch.Assignee.Value
		}
		assignee, err := resolveAssignee(b, requested)
		if err != nil {
			return Board{}, Task{}, err
		}
		task.Assignee = assignee
	}
	if patch.Reporter.Set {
		task.Reporter = trimmed(patch.Reporter.Value)
	}
	applyPtr(&task.DueDate, patch.DueDate)
	if patch.Tags.Set {
		if len(patch.Tags.Value) > MaxTags {
			return Board{}, Task{}, invalid("at most %d tags are allowed", MaxTags)
		}
		task.Tags = append([]string{}, patch.Tags.Value...)
	}
	if patch.Attachments.Set {
		task.Attachments = append([]string{}, patch.Attachments.Value...)
	}
	for _, hours := range []Optional[float64]{patch.EstimatedHours, patch.ActualHours} {
		if v, ok := hours.Get(); ok && v < 0 {
			return Board{}, Task{}, invalid("hours must not be negative")
		}
	}
	applyPtr(&task.EstimatedHours, patch.EstimatedHours)
	applyPtr(&task.ActualHours, patch.ActualHours)

	if status, ok := patch.Status.Get(); ok {
		status = trimmed(status)
		if status != task.Status {
			if !b.Settings.AllowStatusChange {
				return Board{}, Task{}, invalid("status changes are disabled on this board")
			}
			j := next.columnIndexByStatus(status)
			if j < 0 {
				return Board{}, Task{}, invalid("no column has status %q", status)
			}
			removeFromColumns(&next, taskID)
			next.Columns[j].TaskIDs = appendUnique(next.Columns[j].TaskIDs, taskID)
			task.Status = status
		}
	}

	now := e.now()
	task.UpdatedAt = now
	next.Tasks[taskID] = task
	next.UpdatedAt = now
	return next, task.clone(), nil
}

// DeleteTask removes the task and strips its id from every column.
func (e *Engine) DeleteTask(b Board, taskID string) (Board, error) {
	if _, ok := b.Tasks[taskID]; !ok {
		return Board{}, notFound("task", taskID)
	}
	next := b.Clone()
	delete(next.Tasks, taskID)
	removeFromColumns(&next, taskID)
	next.UpdatedAt = e.now()
	return next, nil
}

// MoveResult describes where a moved task landed.
type MoveResult struct {
	Task        Task   `json:"task"`
	Column      Column `json:"column"`
	WIPExceeded bool   `json:"wipExceeded"`
}

// MoveTask moves the task into the column with the given status at position,
// clamped to the column bounds, or at the end when position is nil. Moving
// within the same status only repositions the task.
func (e *Engine) MoveTask(b Board, taskID, status string, position *int) (Board, MoveResult, error) {
	task, ok := b.Tasks[taskID]
	if !ok {
		return Board{}, MoveResult{}, notFound("task", taskID)
	}
	status = trimmed(status)
	j := b.columnIndexByStatus(status)
	if j < 0 {
		return Board{}, MoveResult{}, notFound("column with status", status)
	}
	if status != task.Status && !b.Settings.AllowStatusChange {
		return Board{}, MoveResult{}, invalid("status changes are disabled on this board")
	}

	now := e.now()
	next := b.Clone()
	removeFromColumns(&next, taskID)
	ids := next.Columns[j].TaskIDs
	at := len(ids)
	if position != nil {
		at = min(max(*position, 0), len(ids))
	}
	next.Columns[j].TaskIDs = insertAt(ids, at, taskID)

	task = next.Tasks[taskID]
	task.Status = status
	task.UpdatedAt = now
	next.Tasks[taskID] = task
	next.UpdatedAt = now

	column := next.Columns[j]
	return next, MoveResult{
		Task:        task.clone(),
		Column:      column.clone(),
		WIPExceeded: next.Settings.EnableWipLimits && column.OverLimit(),
	}, nil
}

// AddMember inserts a board-scoped copy of m. An empty id creates a brand-new member.
func (e *Engine) AddMember(b Board, m Member) (Board, Member, error) {
	if m.ID != "" {
		if _, exists := b.Members[m.ID]; exists {
			return Board{}, Member{}, fmt.Errorf("%w: %q", ErrAlreadyMember, m.ID)
		}
	}
	name := trimmed(m.Name)
	if name == "" {
		return Board{}, Member{}, invalid("member name is required")
	}
	if m.Role == "" {
		m.Role = rbac.RoleMember
	}
	if !rbac.Valid(m.Role) {
		return Board{}, Member{}, invalid("unknown role %q", m.Role)
	}

	next := b.Clone()
	member := m.clone()
	member.Name = name
	member.Email = trimmed(m.Email)
	if member.ID == "" {
		member.ID = e.NewID("member")
	}
	if member.Color == "" {
		used := make([]string, 0, len(b.Members))
		for _, existing := range b.Members {
			used = append(used, existing.Color)
		}
		member.Color = e.pickColor(used)
	}
	now := e.now()
	if member.CreatedAt == nil {
		member.CreatedAt = &now
	}
	next.Members[member.ID] = member
	next.UpdatedAt = now
	return next, member.clone(), nil
}

func (e *Engine) UpdateMember(b Board, memberID string, patch MemberPatch) (Board, Member, error) {
	current, ok := b.Members[memberID]
	if !ok {
		return Board{}, Member{}, notFound("member", memberID)
	}
	member, err := ApplyMemberPatch(current, patch)
	if err != nil {
		return Board{}, Member{}, err
	}
	next := b.Clone()
	next.Members[memberID] = member
	next.UpdatedAt = e.now()
	return next, member.clone(), nil
}

// RemoveMember deletes the membership and unassigns the member's tasks.
func (e *Engine) RemoveMember(b Board, memberID string) (Board, error) {
	if _, ok := b.Members[memberID]; !ok {
		return Board{}, notFound("member", memberID)
	}
	now := e.now()
	next := b.Clone()
	delete(next.Members, memberID)
	for id, task := range next.Tasks {
		if !task.AssignedTo(memberID) {
			continue
		}
		task.Assignee = nil
		task.UpdatedAt = now
		next.Tasks[id] = task
	}
	next.UpdatedAt = now
	return next, nil
}

func (e *Engine) AddComment(b Board, taskID string, in CommentInput) (Board, Comment, error) {
	if _, ok := b.Tasks[taskID]; !ok {
		return Board{}, Comment{}, notFound("task", taskID)
	}
	content, err := validateComment(in.Content)
	if err != nil {
		return Board{}, Comment{}, err
	}
	author := trimmed(in.Author)
	if author == "" {
		author = "Anonymous"
	}

	now := e.now()
	comment := Comment{
		ID:        e.NewID("comment"),
		Content:   content,
		Author:    author,
		CreatedAt: now,
		UpdatedAt: now,
	}
	next := b.Clone()
	task := next.Tasks[taskID]
	task.Comments = append(task.Comments, comment)
	task.UpdatedAt = now
	next.Tasks[taskID] = task
	next.UpdatedAt = now
	return next, comment, nil
}

func (e *Engine) EditComment(b Board, taskID, commentID, content string) (Board, Comment, error) {
	task, ok := b.Tasks[taskID]
	if !ok {
		return Board{}, Comment{}, notFound("task", taskID)
	}
	i := commentIndex(task, commentID)
	if i < 0 {
		return Board{}, Comment{}, notFound("comment", commentID)
	}
	content, err := validateComment(content)
	if err != nil {
		return Board{}, Comment{}, err
	}

	now := e.now()
	next := b.Clone()
	task = next.Tasks[taskID]
	task.Comments[i].Content = content
	task.Comments[i].UpdatedAt = now
	next.Tasks[taskID] = task
	next.UpdatedAt = now
	return next, task.Comments[i], nil
}

func (e *Engine) DeleteComment(b Board, taskID, commentID string) (Board, error) {
	task, ok := b.Tasks[taskID]
	if !ok {
		return Board{}, notFound("task", taskID)
	}
	i := commentIndex(task, commentID)
	if i < 0 {
		return Board{}, notFound("comment", commentID)
	}
	next := b.Clone()
	task = next.Tasks[taskID]
	task.Comments = append(task.Comments[:i], task.Comments[i+1:]...)
	next.Tasks[taskID] = task
	next.UpdatedAt = e.now()
	return next, nil
}

// pickColor returns the first palette color not in used, or a random palette
// color once every color is taken.
func (e *Engine) pickColor(used []string) string {
	taken := make(map[string]bool, len(used))
	for _, color := range used {
		taken[strings.ToLower(color)] = true
	}
	for _, color := range Palette {
		if !taken[color] {
			return color
		}
	}
	return Palette[e.Rand(len(Palette))]
}

func resolveAssignee(b Board, requested *string) (*string, error) {
	if requested == nil || trimmed(*requested) == "" {
		return nil, nil
	}
	id := trimmed(*requested)
	if _, ok := b.Members[id]; !ok {
		return nil, invalid("assignee %q is not a board member", id)
	}
	return &id, nil
}

func removeFromColumns(b *Board, taskID string) {
	for i := range b.Columns {
		b.Columns[i].TaskIDs = removeID(b.Columns[i].TaskIDs, taskID)
	}
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, candidate := range ids {
		if candidate != id {
			out = append(out, candidate)
		}
	}
	return out
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func insertAt(ids []string, at int, id string) []string {
	out := make([]string, 0, len(ids)+1)
	out = append(out, ids[:at]...)
	out = append(out, id)
	return append(out, ids[at:]...)
}

func commentIndex(task Task, commentID string) int {
	for i, comment := range task.Comments {
		if comment.ID == commentID {
			return i
		}
	}
	return -1
}

func normalizeLimit(limit *int) *int {
	if limit == nil || *limit == 0 {
		return nil
	}
	return clonePtr(limit)
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func validateTitle(kind, title string) (string, error) {
	title = trimmed(title)
	if title == "" {
		return "", invalid("%s title is required", kind)
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", invalid("%s title exceeds %d characters", kind, MaxTitleLength)
	}
	return title, nil
}

func validateDescription(description string) error {
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return invalid("description exceeds %d characters", MaxDescriptionLength)
	}
	return nil
}

func validateComment(content string) (string, error) {
	content = trimmed(content)
	if content == "" {
		return "", invalid("comment content is required")
	}
	if utf8.RuneCountInString(content) > MaxCommentLength {
		return "", invalid("comment exceeds %d characters", MaxCommentLength)
	}
	return content, nil
}

func trimmed(value string) string {
	return strings.TrimSpace(value)
}
