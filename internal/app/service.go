package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"kanban/api/internal/auth"
	"kanban/api/internal/board"
	"kanban/api/internal/config"
	"kanban/api/internal/rbac"
	"kanban/api/internal/realtime"
	"kanban/api/internal/report"
	"kanban/api/internal/search"
)

// BoardStore is the persistence the service needs: whole boards with
// revision checks plus the global member directory.
type BoardStore interface {
	Ping(context.Context) error
	GetBoard(context.Context, string) (board.Board, error)
	PutBoard(context.Context, board.Board) (board.Board, error)
	Update(context.Context, string, func(board.Board) (board.Board, error)) (board.Board, error)
	DeleteBoard(context.Context, string) error
	ListBoards(context.Context) ([]board.Board, error)
	ListMembers(context.Context) ([]board.Member, error)
	GetMember(context.Context, string) (board.Member, error)
	CreateMember(context.Context, board.Member) (board.Member, error)
	UpdateMember(context.Context, string, board.MemberPatch) (board.Member, error)
	DeleteMember(context.Context, string) error
}

type Searcher interface {
	Search(context.Context, search.Query) search.Response
	SyncBoard(before, after board.Board)
}

type Reporter interface {
	Render(context.Context, board.Board, report.Format) (*report.Result, error)
}

type Publisher interface {
	Publish(realtime.Event)
}

type Service struct {
	cfg         config.Config
	store       BoardStore
	engine      *board.Engine
	search      Searcher
	reports     Reporter
	events      Publisher
	csrfKey     []byte
	identityKey []byte
	now         func() time.Time
}

// New wires the service. search and events may be nil.
func New(cfg config.Config, store BoardStore, searcher Searcher, reports Reporter, events Publisher) (*Service, error) {
	csrfKey, err := auth.DeriveKey([]byte(cfg.Secret), "csrf")
	if err != nil {
		return nil, err
	}
	identityKey, err := auth.DeriveKey([]byte(cfg.Secret), "identity")
	if err != nil {
		return nil, err
	}
	return &Service{
		cfg:         cfg,
		store:       store,
		engine:      board.NewEngine(),
		search:      searcher,
		reports:     reports,
		events:      events,
		csrfKey:     csrfKey,
		identityKey: identityKey,
		now:         time.Now,
	}, nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Session

type SessionToken struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expiresAt"`
	Identity  auth.Identity `json:"identity"`
}

func (s *Service) IssueCSRF() (string, error) {
	return auth.IssueCSRF(s.csrfKey, s.cfg.CSRFTTL, s.now())
}

func (s *Service) VerifyCSRF(token string) error {
	return auth.VerifyCSRF(s.csrfKey, token, s.now())
}

// IssueSession signs the caller's identity so later requests can use a bearer
// token instead of the identity header.
func (s *Service) IssueSession(actor auth.Identity) (SessionToken, error) {
	now := s.now().UTC()
	token, err := auth.IssueIdentity(s.identityKey, actor, s.cfg.IdentityTTL, now)
	if err != nil {
		return SessionToken{}, err
	}
	return SessionToken{Token: token, ExpiresAt: now.Add(s.cfg.IdentityTTL), Identity: actor}, nil
}

func (s *Service) IdentityFromToken(token string) (auth.Identity, error) {
	return auth.ParseIdentity(s.identityKey, token)
}

func (s *Service) TrustIdentityHeader() bool {
	return s.cfg.TrustIdentityHeader
}

// Boards

// ListBoards returns the boards actor can open.
func (s *Service) ListBoards(ctx context.Context, actor auth.Identity) ([]board.Board, error) {
	boards, err := s.store.ListBoards(ctx)
	if err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	visible := make([]board.Board, 0, len(boards))
	for _, b := range boards {
		if _, err := boardRole(b, actor); err == nil {
			visible = append(visible, b)
		}
	}
	return visible, nil
}

func (s *Service) CreateBoard(ctx context.Context, actor auth.Identity, title, description string) (board.Board, error) {
	if !rbac.HasPermission(actor.Role, rbac.PermCreateProject) {
		return board.Board{}, forbidden(rbac.PermCreateProject)
	}
	b, err := s.engine.NewBoard(title, description)
	if err != nil {
		return board.Board{}, err
	}
	stored, err := s.store.PutBoard(ctx, b)
	if err != nil {
		return board.Board{}, err
	}
	s.changed(actor, "board.created", board.Board{}, stored)
	return stored, nil
}

func (s *Service) GetBoard(ctx context.Context, actor auth.Identity, id string) (board.Board, error) {
	b, err := s.store.GetBoard(ctx, id)
	if err != nil {
		return board.Board{}, err
	}
	if _, err := boardRole(b, actor); err != nil {
		return board.Board{}, err
	}
	return b, nil
}

func (s *Service) DeleteBoard(ctx context.Context, actor auth.Identity, id string) error {
	b, err := s.store.GetBoard(ctx, id)
	if err != nil {
		return err
	}
	if err := authorize(b, actor, rbac.PermDeleteProject); err != nil {
		return err
	}
	if err := s.store.DeleteBoard(ctx, id); err != nil {
		return err
	}
	s.changed(actor, "board.deleted", b, board.Board{ID: b.ID, Revision: b.Revision})
	return nil
}

// Mutate authorizes cmd against the caller's board role, applies it with the
// engine and saves the result. A non-nil ifMatch must equal the stored
// revision. It returns the saved board and the command's result value.
func (s *Service) Mutate(ctx context.Context, actor auth.Identity, boardID string, ifMatch *int64, cmd board.Command) (board.Board, any, error) {
	var before board.Board
	var result any
	next, err := s.store.Update(ctx, boardID, func(current board.Board) (board.Board, error) {
		if err := authorize(current, actor, cmd.Permission()); err != nil {
			return board.Board{}, err
		}
		if ifMatch != nil && *ifMatch != current.Revision {
			return board.Board{}, revisionConflict(current.Revision)
		}
		updated, res, err := s.engine.Apply(current, cmd)
		if err != nil {
			return board.Board{}, err
		}
		if violations := board.CheckConsistency(updated); len(violations) > 0 {
			zap.L().Error("command left board inconsistent",
				zap.String("board", boardID),
				zap.String("command", fmt.Sprintf("%T", cmd)),
				zap.Stringers("violations", violations),
			)
			return board.Board{}, errInconsistentBoard
		}
		before, result = current, res
		return updated, nil
	})
	if err != nil {
		return board.Board{}, nil, err
	}
	s.changed(actor, "board.updated", before, next)
	return next, result, nil
}

// AddBoardMember copies a directory member into the board when in.MemberID is
// set, otherwise it creates a member that only exists on the board.
func (s *Service) AddBoardMember(ctx context.Context, actor auth.Identity, boardID string, ifMatch *int64, in BoardMemberInput) (board.Board, board.Member, error) {
	member := in.Member
	if in.MemberID != "" {
		global, err := s.store.GetMember(ctx, in.MemberID)
		if err != nil {
			return board.Board{}, board.Member{}, err
		}
		if in.Role != "" {
			global.Role = in.Role
		}
		member = global
	}
	next, result, err := s.Mutate(ctx, actor, boardID, ifMatch, board.AddMemberCmd{Member: member})
	if err != nil {
		return board.Board{}, board.Member{}, err
	}
	return next, result.(board.Member), nil
}

type BoardMemberInput struct {
	MemberID string `json:"memberId,omitempty"`
	board.Member
}

func (s *Service) ListTasks(ctx context.Context, actor auth.Identity, boardID string, filter board.TaskFilter) ([]board.Task, error) {
	b, err := s.GetBoard(ctx, actor, boardID)
	if err != nil {
		return nil, err
	}
	return board.FilterTasks(b, filter), nil
}

func (s *Service) GetTask(ctx context.Context, actor auth.Identity, boardID, taskID string) (board.Task, error) {
	b, err := s.GetBoard(ctx, actor, boardID)
	if err != nil {
		return board.Task{}, err
	}
	task, ok := b.Tasks[taskID]
	if !ok {
		return board.Task{}, fmt.Errorf("%w: task %q", board.ErrNotFound, taskID)
	}
	return task, nil
}

// Search looks for tasks on the boards actor can open.
func (s *Service) Search(ctx context.Context, actor auth.Identity, text string, limit, offset int) (search.Response, error) {
	q := search.Query{Text: text, Limit: limit, Offset: offset}
	if actor.Role != rbac.RoleAdmin {
		boards, err := s.ListBoards(ctx, actor)
		if err != nil {
			return search.Response{}, err
		}
		q.BoardIDs = make([]string, 0, len(boards))
		for _, b := range boards {
			q.BoardIDs = append(q.BoardIDs, b.ID)
		}
	}
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: text}, nil
	}
	return s.search.Search(ctx, q), nil
}

func (s *Service) Report(ctx context.Context, actor auth.Identity, boardID string, format report.Format) (*report.Result, error) {
	b, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if err := authorize(b, actor, rbac.PermViewReports); err != nil {
		return nil, err
	}
	return s.reports.Render(ctx, b, format)
}

// CanSubscribe reports whether actor may follow realtime events for boardID.
func (s *Service) CanSubscribe(ctx context.Context, actor auth.Identity, boardID string) error {
	_, err := s.GetBoard(ctx, actor, boardID)
	return err
}

// Global member directory

func (s *Service) ListMembers(ctx context.Context) ([]board.Member, error) {
	return s.store.ListMembers(ctx)
}

func (s *Service) GetMember(ctx context.Context, id string) (board.Member, error) {
	return s.store.GetMember(ctx, id)
}

func (s *Service) CreateMember(ctx context.Context, actor auth.Identity, m board.Member) (board.Member, error) {
	if !rbac.HasPermission(actor.Role, rbac.PermManageMembers) {
		return board.Member{}, forbidden(rbac.PermManageMembers)
	}
	return s.store.CreateMember(ctx, m)
}

func (s *Service) UpdateMember(ctx context.Context, actor auth.Identity, id string, patch board.MemberPatch) (board.Member, error) {
	if !rbac.HasPermission(actor.Role, rbac.PermManageMembers) && actor.ID != id {
		return board.Member{}, forbidden(rbac.PermManageMembers)
	}
	if patch.Role.Set && !rbac.HasPermission(actor.Role, rbac.PermManageMembers) {
		return board.Member{}, forbidden(rbac.PermManageMembers)
	}
	return s.store.UpdateMember(ctx, id, patch)
}

func (s *Service) DeleteMember(ctx context.Context, actor auth.Identity, id string) error {
	if !rbac.HasPermission(actor.Role, rbac.PermManageMembers) {
		return forbidden(rbac.PermManageMembers)
	}
	return s.store.DeleteMember(ctx, id)
}

func (s *Service) changed(actor auth.Identity, eventType string, before, after board.Board) {
	if s.search != nil {
		s.search.SyncBoard(before, after)
	}
	if s.events != nil {
		s.events.Publish(realtime.Event{
			Type:     eventType,
			BoardID:  after.ID,
			Revision: after.Revision,
			Actor:    actor.ID,
		})
	}
}

// boardRole resolves the role actor holds on b. Global admins always act as
// admin; a board without members lets everyone in with their own role.
func boardRole(b board.Board, actor auth.Identity) (rbac.Role, error) {
	if actor.Role == rbac.RoleAdmin {
		return rbac.RoleAdmin, nil
	}
	if m, ok := b.Members[actor.ID]; ok {
		return m.Role, nil
	}
	if len(b.Members) == 0 {
		return actor.Role, nil
	}
	return "", domainError(http.StatusForbidden, "FORBIDDEN", "Not a member of this board", nil)
}

func authorize(b board.Board, actor auth.Identity, permission rbac.Permission) error {
	role, err := boardRole(b, actor)
	if err != nil {
		return err
	}
	if !rbac.HasPermission(role, permission) {
		return forbidden(permission)
	}
	return nil
}
