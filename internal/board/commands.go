package board

import "kanban/api/internal/rbac"

// Command is a single board mutation. Commands are plain values so a client
// can predict the outcome locally with the same Engine the server uses.
type Command interface {
	Apply(e *Engine, b Board) (Board, any, error)
	Permission() rbac.Permission
}

type UpdateBoardCmd struct {
	Patch BoardPatch
}

type AddColumnCmd struct {
	Input ColumnInput
}

type UpdateColumnCmd struct {
	ColumnID string
	Patch    ColumnPatch
}

type DeleteColumnCmd struct {
	ColumnID string
}

type ReorderColumnsCmd struct {
	ColumnIDs []string
}

type CreateTaskCmd struct {
	Input TaskInput
}

type UpdateTaskCmd struct {
	TaskID string
	Patch  TaskPatch
}

type DeleteTaskCmd struct {
	TaskID string
}

type MoveTaskCmd struct {
	TaskID   string
	Status   string
	Position *int
}

type AddMemberCmd struct {
	Member Member
}

type UpdateMemberCmd struct {
	MemberID string
	Patch    MemberPatch
}

type RemoveMemberCmd struct {
	MemberID string
}

type AddCommentCmd struct {
	TaskID string
	Input  CommentInput
}

type EditCommentCmd struct {
	TaskID    string
	CommentID string
	Content   string
}

type DeleteCommentCmd struct {
	TaskID    string
	CommentID string
}

func (c UpdateBoardCmd) Apply(e *Engine, b Board) (Board, any, error) {
	next, err := e.UpdateBoard(b, c.Patch)
	return next, nil, err
}

func (c AddColumnCmd) Apply(e *Engine, b Board) (Board, any, error) {
	next, column, err := e.AddColumn(b, c.Input)
	return next, column, err
}

func (c UpdateColumnCmd) Apply(e *Engine, b Board) (Board, any, error) {
	next, column, err := e.UpdateColumn(b, c.ColumnID, c.Patch)
	return next, column, err
}

func (c DeleteColumnCmd) Apply(e *Engine, b Board) (Board, any, error) {
	next, err := e.DeleteColumn(b, c.ColumnID)
	return next, nil, err
}

func (c ReorderColumnsCmd) Apply(e *Engine, b Board) (Board, any, error) {
	next, err := e.ReorderColumns(b, c.ColumnIDs)
	return next, nil, err
}

func (c CreateTaskCmd) Apply(e *Engine, b Board) (Board, any, error) {
	next, task, err := e.CreateTask(b, c.Input)
	return next, task, err
}

func (c UpdateTaskCmd) Apply(e *Engine, b Board) (Board, any, error) {
	next, task, err := e.UpdateTask(b, c.TaskID, c.Patch)
	return next, task, err
}

func (c DeleteTaskCmd) Apply(e *Engine, b Board) (Board, any, error) {
	next, err := e.DeleteTask(b, c.TaskID)
	return next, nil, err
}

func (c MoveTaskCmd) Apply(e *Engine, b Board) (Board, any, error) {
	next, result, err := e.MoveTask(b, c.TaskID, c.Status, c.Position)
	return next, result, err
}

func (c AddMemberCmd) Apply(e *Engine, b Board) (Board, any, error) {
	next, member, err := e.AddMember(b, c.Member)
	return next, member, err
}

func (c UpdateMemberCmd) Apply(e *Engine, b Board) (Board, any, error) {
	next, member, err := e.UpdateMember(b, c.MemberID, c.Patch)
	return next, member, err
}

func (c RemoveMemberCmd) Apply(e *Engine, b Board) (Board, any, error) {
	next, err := e.RemoveMember(b, c.MemberID)
	return next, nil, err
}

func (c AddCommentCmd) Apply(e *Engine, b Board) (Board, any, error) {
	next, comment, err := e.AddComment(b, c.TaskID, c.Input)
	return next, comment, err
}

func (c EditCommentCmd) Apply(e *Engine, b Board) (Board, any, error) {
	next, comment, err := e.EditComment(b, c.TaskID, c.CommentID, c.Content)
	return next, comment, err
}

func (c DeleteCommentCmd) Apply(e *Engine, b Board) (Board, any, error) {
	next, err := e.DeleteComment(b, c.TaskID, c.CommentID)
	return next, nil, err
}

func (UpdateBoardCmd) Permission() rbac.Permission    { return rbac.PermEditProject }
func (AddColumnCmd) Permission() rbac.Permission      { return rbac.PermManageColumns }
func (UpdateColumnCmd) Permission() rbac.Permission   { return rbac.PermManageColumns }
func (DeleteColumnCmd) Permission() rbac.Permission   { return rbac.PermManageColumns }
func (ReorderColumnsCmd) Permission() rbac.Permission { return rbac.PermManageColumns }
func (CreateTaskCmd) Permission() rbac.Permission     { return rbac.PermCreateTask }
func (UpdateTaskCmd) Permission() rbac.Permission     { return rbac.PermEditTask }
func (DeleteTaskCmd) Permission() rbac.Permission     { return rbac.PermDeleteTask }
func (MoveTaskCmd) Permission() rbac.Permission       { return rbac.PermEditTask }
func (AddMemberCmd) Permission() rbac.Permission      { return rbac.PermManageBoardMembers }
func (UpdateMemberCmd) Permission() rbac.Permission   { return rbac.PermManageBoardMembers }
func (RemoveMemberCmd) Permission() rbac.Permission   { return rbac.PermManageBoardMembers }
func (AddCommentCmd) Permission() rbac.Permission     { return rbac.PermComment }
func (EditCommentCmd) Permission() rbac.Permission    { return rbac.PermComment }
func (DeleteCommentCmd) Permission() rbac.Permission  { return rbac.PermComment }
