package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"kanban/api/internal/auth"
	"kanban/api/internal/board"
	"kanban/api/internal/config"
	"kanban/api/internal/objstore"
	"kanban/api/internal/rbac"
	"kanban/api/internal/realtime"
	"kanban/api/internal/report"
	"kanban/api/internal/search"
	"kanban/api/internal/store"
)

var (
	adminUser   = auth.Identity{ID: "u-admin", Name: "Ada", Role: rbac.RoleAdmin}
	managerUser = auth.Identity{ID: "u-pm", Name: "Pat", Role: rbac.RoleProjectManager}
	memberUser  = auth.Identity{ID: "u-member", Name: "Mo", Role: rbac.RoleMember}
	viewerUser  = auth.Identity{ID: "u-viewer", Name: "Vi", Role: rbac.RoleViewer}
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (p *recordingPublisher) Publish(ev realtime.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) last() realtime.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return realtime.Event{}
	}
	return p.events[len(p.events)-1]
}

// pingStore overrides Ping on a real repository.
type pingStore struct {
	*store.Repository
	pingFn func(context.Context) error
}

func (p pingStore) Ping(ctx context.Context) error {
	if p.pingFn != nil {
		return p.pingFn(ctx)
	}
	return p.Repository.Ping(ctx)
}

type fixture struct {
	svc    *Service
	repo   *store.Repository
	events *recordingPublisher
}

func testConfig() config.Config {
	return config.Config{
		CORSOrigin:          "*",
		Secret:              "test-secret",
		CSRFTTL:             time.Hour,
		IdentityTTL:         time.Hour,
		TrustIdentityHeader: true,
		MaxBodySize:         1 << 16,
	}
}

func fakePDF(_ context.Context, html string) ([]byte, error) {
	return []byte("%PDF-" + html[:min(len(html), 8)]), nil
}

func newFixture(t *testing.T, cfg config.Config) *fixture {
	t.Helper()
	repo := store.NewRepository(objstore.NewMemory())
	events := &recordingPublisher{}
	svc, err := New(cfg, repo, search.NewService(nil, repo), report.NewService(fakePDF), events)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &fixture{svc: svc, repo: repo, events: events}
}

func (f *fixture) board(t *testing.T, title string) board.Board {
	t.Helper()
	b, err := f.svc.CreateBoard(context.Background(), adminUser, title, "")
	if err != nil {
		t.Fatalf("create board: %v", err)
	}
	return b
}

func (f *fixture) task(t *testing.T, boardID, title string) board.Task {
	t.Helper()
	_, result, err := f.svc.Mutate(context.Background(), adminUser, boardID, nil, board.CreateTaskCmd{Input: board.TaskInput{Title: title}})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return result.(board.Task)
}

func errorStatus(err error) (int, string) {
	status, code, _, _ := mapError(err)
	return status, code
}

func expectError(t *testing.T, err error, wantStatus int, wantCode string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", wantCode)
	}
	status, code := errorStatus(err)
	if status != wantStatus || code != wantCode {
		t.Fatalf("expected %d %s, got %d %s (%v)", wantStatus, wantCode, status, code, err)
	}
}

func TestCreateBoardRequiresPermission(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()

	_, err := f.svc.CreateBoard(ctx, memberUser, "Sprint 1", "")
	expectError(t, err, 403, "FORBIDDEN")

	b, err := f.svc.CreateBoard(ctx, managerUser, "Sprint 1", "")
	if err != nil {
		t.Fatalf("create board: %v", err)
	}
	if b.Revision != 1 || len(b.Columns) != 4 {
		t.Fatalf("expected stored board with 4 columns at revision 1, got rev=%d columns=%d", b.Revision, len(b.Columns))
	}
	if ev := f.events.last(); ev.Type != "board.created" || ev.BoardID != b.ID || ev.Actor != managerUser.ID {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestMutateAppliesCommandAndPublishes(t *testing.T) {
	f := newFixture(t, testConfig())
	b := f.board(t, "Sprint 1")

	base := b.Revision
	next, result, err := f.svc.Mutate(context.Background(), adminUser, b.ID, &base, board.CreateTaskCmd{
		Input: board.TaskInput{Title: "Fix bug", Priority: board.PriorityHigh},
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	task := result.(board.Task)
	if task.Status != "todo" {
		t.Fatalf("expected task in first column, got %q", task.Status)
	}
	if next.Revision != 2 {
		t.Fatalf("expected revision 2, got %d", next.Revision)
	}
	ev := f.events.last()
	if ev.Type != "board.updated" || ev.Revision != 2 || ev.Actor != adminUser.ID {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestMutateRejectsStaleIfMatch(t *testing.T) {
	f := newFixture(t, testConfig())
	b := f.board(t, "Sprint 1")

	stale := int64(0)
	_, _, err := f.svc.Mutate(context.Background(), adminUser, b.ID, &stale, board.AddColumnCmd{
		Input: board.ColumnInput{Title: "QA", Status: "qa"},
	})
	expectError(t, err, 409, "REVISION_CONFLICT")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Details.(map[string]any)["revision"] != int64(1) {
		t.Fatalf("expected current revision in details, got %#v", err)
	}

	stored, err := f.repo.GetBoard(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("get board: %v", err)
	}
	if stored.Revision != 1 || len(stored.Columns) != 4 {
		t.Fatalf("board changed after rejected write: rev=%d columns=%d", stored.Revision, len(stored.Columns))
	}
}

func TestMutateChecksAccessBeforeRevision(t *testing.T) {
	f := newFixture(t, testConfig())
	b := f.board(t, "Private")
	ctx := context.Background()
	if _, _, err := f.svc.AddBoardMember(ctx, adminUser, b.ID, nil, BoardMemberInput{
		Member: board.Member{ID: managerUser.ID, Name: managerUser.Name, Role: rbac.RoleProjectManager},
	}); err != nil {
		t.Fatalf("add board member: %v", err)
	}

	stale := int64(1)
	_, _, err := f.svc.Mutate(ctx, memberUser, b.ID, &stale, board.CreateTaskCmd{Input: board.TaskInput{Title: "Peek"}})
	expectError(t, err, 403, "FORBIDDEN")
}

// corruptingCmd lists a task id that no task backs.
type corruptingCmd struct{}

func (corruptingCmd) Apply(_ *board.Engine, b board.Board) (board.Board, any, error) {
	out := b.Clone()
	out.Columns[0].TaskIDs = append(out.Columns[0].TaskIDs, "task_missing")
	return out, nil, nil
}

func (corruptingCmd) Permission() rbac.Permission { return rbac.PermEditTask }

func TestMutateRefusesInconsistentBoard(t *testing.T) {
	f := newFixture(t, testConfig())
	b := f.board(t, "Sprint 1")

	_, _, err := f.svc.Mutate(context.Background(), adminUser, b.ID, nil, corruptingCmd{})
	expectError(t, err, 500, "SERVER_ERROR")

	stored, err := f.repo.GetBoard(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("get board: %v", err)
	}
	if stored.Revision != 1 || len(stored.Columns[0].TaskIDs) != 0 {
		t.Fatalf("inconsistent board was stored: rev=%d ids=%v", stored.Revision, stored.Columns[0].TaskIDs)
	}
}

func TestMutateSurfacesEngineErrors(t *testing.T) {
	f := newFixture(t, testConfig())
	b := f.board(t, "Sprint 1")
	task := f.task(t, b.ID, "Fix bug")
	ctx := context.Background()

	_, _, err := f.svc.Mutate(ctx, adminUser, b.ID, nil, board.AddColumnCmd{Input: board.ColumnInput{Title: "Again", Status: "todo"}})
	expectError(t, err, 400, "DUPLICATE_STATUS")

	_, _, err = f.svc.Mutate(ctx, adminUser, b.ID, nil, board.DeleteColumnCmd{ColumnID: b.Columns[0].ID})
	expectError(t, err, 400, "COLUMN_NOT_EMPTY")

	_, _, err = f.svc.Mutate(ctx, adminUser, b.ID, nil, board.ReorderColumnsCmd{ColumnIDs: []string{b.Columns[0].ID}})
	expectError(t, err, 400, "INVALID_COLUMN_SET")

	_, _, err = f.svc.Mutate(ctx, adminUser, b.ID, nil, board.MoveTaskCmd{TaskID: task.ID, Status: "nowhere"})
	expectError(t, err, 404, "NOT_FOUND")

	_, _, err = f.svc.Mutate(ctx, adminUser, "missing-board", nil, board.DeleteTaskCmd{TaskID: task.ID})
	expectError(t, err, 404, "NOT_FOUND")
}

func TestBoardAccessFollowsMembership(t *testing.T) {
	f := newFixture(t, testConfig())
	b := f.board(t, "Open board")
	ctx := context.Background()

	if _, err := f.svc.GetBoard(ctx, memberUser, b.ID); err != nil {
		t.Fatalf("board without members should be open: %v", err)
	}
	if _, _, err := f.svc.Mutate(ctx, memberUser, b.ID, nil, board.CreateTaskCmd{Input: board.TaskInput{Title: "Mine"}}); err != nil {
		t.Fatalf("member should create tasks: %v", err)
	}
	_, _, err := f.svc.Mutate(ctx, viewerUser, b.ID, nil, board.CreateTaskCmd{Input: board.TaskInput{Title: "Nope"}})
	expectError(t, err, 403, "FORBIDDEN")
	_, _, err = f.svc.Mutate(ctx, memberUser, b.ID, nil, board.AddColumnCmd{Input: board.ColumnInput{Title: "QA", Status: "qa"}})
	expectError(t, err, 403, "FORBIDDEN")

	_, added, err := f.svc.AddBoardMember(ctx, adminUser, b.ID, nil, BoardMemberInput{
		Member: board.Member{ID: managerUser.ID, Name: managerUser.Name, Role: rbac.RoleProjectManager},
	})
	if err != nil {
		t.Fatalf("add board member: %v", err)
	}
	if added.Role != rbac.RoleProjectManager {
		t.Fatalf("unexpected member %+v", added)
	}

	_, err = f.svc.GetBoard(ctx, memberUser, b.ID)
	expectError(t, err, 403, "FORBIDDEN")
	if _, err := f.svc.GetBoard(ctx, adminUser, b.ID); err != nil {
		t.Fatalf("admin should always see boards: %v", err)
	}
	if _, _, err := f.svc.Mutate(ctx, managerUser, b.ID, nil, board.AddColumnCmd{Input: board.ColumnInput{Title: "QA", Status: "qa"}}); err != nil {
		t.Fatalf("project manager should manage columns: %v", err)
	}

	visible, err := f.svc.ListBoards(ctx, memberUser)
	if err != nil {
		t.Fatalf("list boards: %v", err)
	}
	if len(visible) != 0 {
		t.Fatalf("expected closed board hidden, got %d boards", len(visible))
	}
}

func TestBoardRoleOverridesGlobalRole(t *testing.T) {
	f := newFixture(t, testConfig())
	b := f.board(t, "Team")
	ctx := context.Background()

	_, _, err := f.svc.AddBoardMember(ctx, adminUser, b.ID, nil, BoardMemberInput{
		Member: board.Member{ID: managerUser.ID, Name: managerUser.Name, Role: rbac.RoleViewer},
	})
	if err != nil {
		t.Fatalf("add board member: %v", err)
	}
	_, _, err = f.svc.Mutate(ctx, managerUser, b.ID, nil, board.CreateTaskCmd{Input: board.TaskInput{Title: "Plan"}})
	expectError(t, err, 403, "FORBIDDEN")
}

func TestAddBoardMemberCopiesDirectoryMember(t *testing.T) {
	f := newFixture(t, testConfig())
	b := f.board(t, "Team")
	ctx := context.Background()

	if _, err := f.svc.CreateMember(ctx, adminUser, board.Member{ID: "u-mo", Name: "Mo", Email: "mo@example.com"}); err != nil {
		t.Fatalf("create member: %v", err)
	}
	in := BoardMemberInput{MemberID: "u-mo"}
	in.Role = rbac.RoleViewer
	_, added, err := f.svc.AddBoardMember(ctx, adminUser, b.ID, nil, in)
	if err != nil {
		t.Fatalf("add board member: %v", err)
	}
	if added.ID != "u-mo" || added.Email != "mo@example.com" || added.Role != rbac.RoleViewer {
		t.Fatalf("unexpected board member %+v", added)
	}

	_, _, err = f.svc.AddBoardMember(ctx, adminUser, b.ID, nil, BoardMemberInput{MemberID: "u-mo"})
	expectError(t, err, 400, "ALREADY_MEMBER")

	_, _, err = f.svc.AddBoardMember(ctx, adminUser, b.ID, nil, BoardMemberInput{MemberID: "u-ghost"})
	expectError(t, err, 404, "NOT_FOUND")
}

func TestDeleteBoardNeedsDeletePermission(t *testing.T) {
	f := newFixture(t, testConfig())
	b := f.board(t, "Old")
	ctx := context.Background()

	expectError(t, f.svc.DeleteBoard(ctx, memberUser, b.ID), 403, "FORBIDDEN")
	if err := f.svc.DeleteBoard(ctx, managerUser, b.ID); err != nil {
		t.Fatalf("delete board: %v", err)
	}
	_, err := f.svc.GetBoard(ctx, adminUser, b.ID)
	expectError(t, err, 404, "NOT_FOUND")
	if ev := f.events.last(); ev.Type != "board.deleted" || ev.BoardID != b.ID {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestSearchOnlyCoversVisibleBoards(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()
	open := f.board(t, "Open")
	closed := f.board(t, "Closed")
	f.task(t, open.ID, "Deploy API")
	f.task(t, closed.ID, "Deploy worker")
	_, _, err := f.svc.AddBoardMember(ctx, adminUser, closed.ID, nil, BoardMemberInput{
		Member: board.Member{ID: managerUser.ID, Name: managerUser.Name, Role: rbac.RoleProjectManager},
	})
	if err != nil {
		t.Fatalf("add board member: %v", err)
	}

	res, err := f.svc.Search(ctx, memberUser, "deploy", 0, 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.Total != 1 || res.Results[0].BoardID != open.ID {
		t.Fatalf("expected only the open board's task, got %+v", res)
	}

	res, err = f.svc.Search(ctx, adminUser, "deploy", 0, 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.Total != 2 {
		t.Fatalf("expected admin to see both tasks, got %d", res.Total)
	}
}

func TestDirectoryRequiresManageMembers(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()

	_, err := f.svc.CreateMember(ctx, managerUser, board.Member{Name: "Sam"})
	expectError(t, err, 403, "FORBIDDEN")

	created, err := f.svc.CreateMember(ctx, adminUser, board.Member{ID: memberUser.ID, Name: "Mo", Email: "mo@example.com"})
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	_, err = f.svc.CreateMember(ctx, adminUser, board.Member{Name: "Other", Email: "MO@example.com"})
	expectError(t, err, 409, "DUPLICATE_EMAIL")

	renamed, err := f.svc.UpdateMember(ctx, memberUser, created.ID, board.MemberPatch{Name: board.Some("Morgan")})
	if err != nil {
		t.Fatalf("self update: %v", err)
	}
	if renamed.Name != "Morgan" {
		t.Fatalf("expected rename, got %q", renamed.Name)
	}
	_, err = f.svc.UpdateMember(ctx, memberUser, created.ID, board.MemberPatch{Role: board.Some(rbac.RoleAdmin)})
	expectError(t, err, 403, "FORBIDDEN")

	expectError(t, f.svc.DeleteMember(ctx, memberUser, created.ID), 403, "FORBIDDEN")
	if err := f.svc.DeleteMember(ctx, adminUser, created.ID); err != nil {
		t.Fatalf("delete member: %v", err)
	}
}

func TestSessionTokenRoundTrip(t *testing.T) {
	f := newFixture(t, testConfig())

	session, err := f.svc.IssueSession(memberUser)
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}
	got, err := f.svc.IdentityFromToken(session.Token)
	if err != nil {
		t.Fatalf("parse session: %v", err)
	}
	if got != memberUser {
		t.Fatalf("expected %+v, got %+v", memberUser, got)
	}
	if !session.ExpiresAt.After(time.Now()) {
		t.Fatalf("expected future expiry, got %s", session.ExpiresAt)
	}
}

func TestReportRequiresViewReports(t *testing.T) {
	f := newFixture(t, testConfig())
	b := f.board(t, "Sprint 1")
	f.task(t, b.ID, "Fix bug")
	ctx := context.Background()

	_, err := f.svc.Report(ctx, viewerUser, b.ID, report.FormatJSON)
	expectError(t, err, 403, "FORBIDDEN")

	res, err := f.svc.Report(ctx, memberUser, b.ID, report.FormatPDF)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if res.MimeType != "application/pdf" || res.Filename != "Sprint-1-report.pdf" {
		t.Fatalf("unexpected report %s %s", res.MimeType, res.Filename)
	}
}
