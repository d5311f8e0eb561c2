package search

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kanban/api/internal/board"
)

type fakeBoards struct {
	boards []board.Board
	err    error
}

func (f fakeBoards) ListBoards(context.Context) ([]board.Board, error) {
	return f.boards, f.err
}

type fakeIndex struct {
	mu       sync.Mutex
	healthy  bool
	searchFn func(Query) ([]Result, int, error)
	indexed  []TaskRecord
	deleted  []string
	done     chan struct{}
}

func (f *fakeIndex) Healthy() bool { return f.healthy }

func (f *fakeIndex) Search(q Query) ([]Result, int, error) { return f.searchFn(q) }

func (f *fakeIndex) IndexTasks(records []TaskRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, records...)
	return nil
}

func (f *fakeIndex) DeleteTask(id string) error {
	f.mu.Lock()
	f.deleted = append(f.deleted, id)
	f.mu.Unlock()
	if f.done != nil {
		f.done <- struct{}{}
	}
	return nil
}

func seedBoards(t *testing.T) []board.Board {
	t.Helper()
	e := board.NewEngine()
	alpha, err := e.NewBoard("Alpha", "")
	require.NoError(t, err)
	alpha.ID = "board-alpha"
	alpha, _, err = e.CreateTask(alpha, board.TaskInput{Title: "Fix login bug", Description: "Users cannot log in"})
	require.NoError(t, err)
	alpha, _, err = e.CreateTask(alpha, board.TaskInput{Title: "Write release notes"})
	require.NoError(t, err)

	beta, err := e.NewBoard("Beta", "")
	require.NoError(t, err)
	beta.ID = "board-beta"
	beta, _, err = e.CreateTask(beta, board.TaskInput{Title: "Login page redesign", Tags: []string{"ui"}})
	require.NoError(t, err)
	return []board.Board{alpha, beta}
}

func TestSearchFallsBackToScan(t *testing.T) {
	svc := NewService(nil, fakeBoards{boards: seedBoards(t)})

	resp := svc.Search(context.Background(), Query{Text: "login"})
	assert.Equal(t, 2, resp.Total)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "board-alpha", resp.Results[0].BoardID)
	assert.Equal(t, "Fix login bug", resp.Results[0].Title)
	assert.Equal(t, "Users cannot log in", resp.Results[0].Snippet)
	assert.Equal(t, "board-beta", resp.Results[1].BoardID)
}

func TestSearchRestrictsToBoards(t *testing.T) {
	svc := NewService(nil, fakeBoards{boards: seedBoards(t)})
	ctx := context.Background()

	resp := svc.Search(ctx, Query{Text: "login", BoardIDs: []string{"board-beta"}})
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Login page redesign", resp.Results[0].Title)

	resp = svc.Search(ctx, Query{Text: "login", BoardIDs: []string{}})
	assert.Empty(t, resp.Results)
	assert.NotNil(t, resp.Results)
}

func TestSearchPaginatesScan(t *testing.T) {
	svc := NewService(nil, fakeBoards{boards: seedBoards(t)})

	resp := svc.Search(context.Background(), Query{Text: "login", Limit: 1, Offset: 1})
	assert.Equal(t, 2, resp.Total)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "board-beta", resp.Results[0].BoardID)

	resp = svc.Search(context.Background(), Query{Text: "login", Offset: 10})
	assert.Empty(t, resp.Results)
}

func TestSearchBlankQuery(t *testing.T) {
	svc := NewService(nil, fakeBoards{err: errors.New("must not be called")})
	resp := svc.Search(context.Background(), Query{Text: "   "})
	assert.Empty(t, resp.Results)
	assert.Zero(t, resp.Total)
}

func TestSearchPrefersHealthyIndex(t *testing.T) {
	index := &fakeIndex{healthy: true, searchFn: func(q Query) ([]Result, int, error) {
		return []Result{{TaskID: "from-index"}}, 1, nil
	}}
	svc := NewService(index, fakeBoards{boards: seedBoards(t)})

	resp := svc.Search(context.Background(), Query{Text: "login"})
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "from-index", resp.Results[0].TaskID)

	index.searchFn = func(Query) ([]Result, int, error) { return nil, 0, errors.New("down") }
	resp = svc.Search(context.Background(), Query{Text: "login"})
	assert.Len(t, resp.Results, 2, "index errors fall back to scanning")
}

func TestSyncBoardIndexesAndRemoves(t *testing.T) {
	boards := seedBoards(t)
	before := boards[0]
	var removed string
	for id := range before.Tasks {
		removed = id
		break
	}
	after, err := board.NewEngine().DeleteTask(before, removed)
	require.NoError(t, err)

	index := &fakeIndex{healthy: true, done: make(chan struct{}, 1)}
	NewService(index, fakeBoards{}).SyncBoard(before, after)

	select {
	case <-index.done:
	case <-time.After(time.Second):
		t.Fatal("sync did not finish")
	}
	index.mu.Lock()
	defer index.mu.Unlock()
	assert.Equal(t, []string{RecordID(before.ID, removed)}, index.deleted)
	require.Len(t, index.indexed, 1)
	assert.Equal(t, before.ID, index.indexed[0].BoardID)
	assert.NotEqual(t, removed, index.indexed[0].TaskID)
}

func TestSyncBoardSkipsUnhealthyIndex(t *testing.T) {
	index := &fakeIndex{healthy: false}
	NewService(index, fakeBoards{}).SyncBoard(board.Board{}, seedBoards(t)[0])
	assert.Empty(t, index.indexed)
}

func TestBoardFilter(t *testing.T) {
	assert.Equal(t, `boardId IN ["a", "b"]`, boardFilter([]string{"a", "b"}))
}

func TestSnippetCentersOnMatch(t *testing.T) {
	text := strings.Repeat("x", 300) + " needle " + strings.Repeat("y", 300)
	got := snippet(text, "needle")
	assert.Contains(t, got, "needle")
	assert.True(t, strings.HasPrefix(got, "…"))
	assert.True(t, strings.HasSuffix(got, "…"))
	assert.Equal(t, "short", snippet("short", "x"))

	wide := strings.Repeat("Ⱥ", 200) + " needle"
	got = snippet(wide, "NEEDLE")
	assert.True(t, strings.HasSuffix(got, "needle"))
	assert.True(t, utf8.ValidString(got))

	accented := strings.Repeat("é", 150) + " needle " + strings.Repeat("é", 150)
	got = snippet(accented, "needle")
	assert.Contains(t, got, "needle")
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 160, utf8.RuneCountInString(strings.Trim(got, "…")))
}
