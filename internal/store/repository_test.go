package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kanban/api/internal/board"
	"kanban/api/internal/objstore"
	"kanban/api/internal/rbac"
)

type failingStore struct {
	objstore.Store
	putFn func(key string) error
}

func (f failingStore) Put(ctx context.Context, key string, data []byte) error {
	if f.putFn != nil {
		if err := f.putFn(key); err != nil {
			return err
		}
	}
	return f.Store.Put(ctx, key, data)
}

func newBoard(t *testing.T, title string) board.Board {
	t.Helper()
	b, err := board.NewEngine().NewBoard(title, "")
	require.NoError(t, err)
	return b
}

func TestPutAndGetBoard(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(objstore.NewMemory())
	b := newBoard(t, "Sprint 1")

	saved, err := repo.PutBoard(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, int64(1), saved.Revision)

	got, err := repo.GetBoard(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sprint 1", got.Title)
	assert.Len(t, got.Columns, 4)
	assert.Empty(t, got.Tasks)
	assert.Empty(t, got.Members)
	assert.Equal(t, int64(1), got.Revision)
}

func TestGetBoardErrors(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(objstore.NewMemory())

	_, err := repo.GetBoard(ctx, "board_missing")
	assert.ErrorIs(t, err, ErrBoardNotFound)
	assert.ErrorIs(t, err, board.ErrNotFound)

	for _, id := range []string{"", "../etc", "_index", "a/b", "has space"} {
		_, err := repo.GetBoard(ctx, id)
		assert.ErrorIs(t, err, board.ErrValidation, id)
	}
}

func TestPutBoardRejectsStaleRevision(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(objstore.NewMemory())
	b := newBoard(t, "Race")

	first, err := repo.PutBoard(ctx, b)
	require.NoError(t, err)

	second := first
	second.Title = "second writer"
	_, err = repo.PutBoard(ctx, second)
	require.NoError(t, err)

	first.Title = "first writer"
	_, err = repo.PutBoard(ctx, first)
	require.ErrorIs(t, err, ErrStaleRevision)

	got, err := repo.GetBoard(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "second writer", got.Title)
	assert.Equal(t, int64(2), got.Revision)
}

func TestUpdateSerializesWriters(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(objstore.NewMemory())
	engine := board.NewEngine()
	b, err := repo.PutBoard(ctx, newBoard(t, "Busy"))
	require.NoError(t, err)

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Update(ctx, b.ID, func(current board.Board) (board.Board, error) {
				next, _, err := engine.CreateTask(current, board.TaskInput{Title: "task"})
				return next, err
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := repo.GetBoard(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, got.Tasks, writers)
	assert.Equal(t, int64(writers+1), got.Revision)
	assert.Empty(t, board.CheckConsistency(got))
}

func TestUpdatePropagatesCallbackError(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(objstore.NewMemory())
	b, err := repo.PutBoard(ctx, newBoard(t, "Stable"))
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = repo.Update(ctx, b.ID, func(board.Board) (board.Board, error) { return board.Board{}, boom })
	require.ErrorIs(t, err, boom)

	got, err := repo.GetBoard(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.Revision, got.Revision)

	_, err = repo.Update(ctx, "board_missing", func(b board.Board) (board.Board, error) { return b, nil })
	assert.ErrorIs(t, err, ErrBoardNotFound)
}

func TestListAndDeleteBoards(t *testing.T) {
	ctx := context.Background()
	objects := objstore.NewMemory()
	repo := NewRepository(objects)

	var ids []string
	for _, title := range []string{"one", "two", "three"} {
		b, err := repo.PutBoard(ctx, newBoard(t, title))
		require.NoError(t, err)
		ids = append(ids, b.ID)
	}

	listed, err := repo.ListBoardIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, ids, listed)

	require.NoError(t, repo.DeleteBoard(ctx, ids[1]))
	assert.ErrorIs(t, repo.DeleteBoard(ctx, ids[1]), ErrBoardNotFound)

	require.NoError(t, objects.Delete(ctx, boardKey(ids[2])))
	boards, err := repo.ListBoards(ctx)
	require.NoError(t, err)
	require.Len(t, boards, 1)
	assert.Equal(t, "one", boards[0].Title)
}

func TestListBoardIDsEmpty(t *testing.T) {
	ids, err := NewRepository(objstore.NewMemory()).ListBoardIDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestPutBoardSurfacesStorageFailure(t *testing.T) {
	ctx := context.Background()
	broken := failingStore{Store: objstore.NewMemory(), putFn: func(string) error { return errors.New("disk full") }}
	repo := NewRepository(broken)

	_, err := repo.PutBoard(ctx, newBoard(t, "Lost"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestMemberDirectory(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(objstore.NewMemory())

	avery, err := repo.CreateMember(ctx, board.Member{Name: "Avery", Email: "Avery@example.com", Role: rbac.RoleProjectManager})
	require.NoError(t, err)
	assert.NotEmpty(t, avery.ID)
	assert.NotNil(t, avery.CreatedAt)
	assert.Equal(t, board.Palette[0], avery.Color)

	_, err = repo.CreateMember(ctx, board.Member{Name: "Impostor", Email: "avery@EXAMPLE.com"})
	require.ErrorIs(t, err, ErrDuplicateEmail)

	blake, err := repo.CreateMember(ctx, board.Member{Name: "Blake", Email: "blake@example.com"})
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleMember, blake.Role)

	_, err = repo.UpdateMember(ctx, blake.ID, board.MemberPatch{Email: board.Some("AVERY@example.com")})
	require.ErrorIs(t, err, ErrDuplicateEmail)

	renamed, err := repo.UpdateMember(ctx, avery.ID, board.MemberPatch{Name: board.Some("Avery R."), Email: board.Some("avery@example.com")})
	require.NoError(t, err)
	assert.Equal(t, "Avery R.", renamed.Name)

	members, err := repo.ListMembers(ctx)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, avery.ID, members[0].ID)
	assert.Equal(t, "Avery R.", members[0].Name)

	require.NoError(t, repo.DeleteMember(ctx, avery.ID))
	_, err = repo.GetMember(ctx, avery.ID)
	assert.ErrorIs(t, err, ErrMemberNotFound)
	assert.ErrorIs(t, repo.DeleteMember(ctx, avery.ID), board.ErrNotFound)

	_, err = repo.CreateMember(ctx, board.Member{Name: "Casey", Email: "avery@example.com"})
	assert.NoError(t, err, "email is free again after delete")
}

func TestCreateMemberValidation(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(objstore.NewMemory())

	cases := []struct {
		name   string
		member board.Member
	}{
		{name: "missing name", member: board.Member{Email: "x@example.com"}},
		{name: "unknown role", member: board.Member{Name: "X", Role: "owner"}},
		{name: "bad id", member: board.Member{ID: "../x", Name: "X"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := repo.CreateMember(ctx, tc.member)
			assert.ErrorIs(t, err, board.ErrValidation)
		})
	}

	_, err := repo.CreateMember(ctx, board.Member{ID: "member-1", Name: "One"})
	require.NoError(t, err)
	_, err = repo.CreateMember(ctx, board.Member{ID: "member-1", Name: "Again"})
	assert.ErrorIs(t, err, board.ErrAlreadyMember)
}

func TestBoardLocksStayBounded(t *testing.T) {
	r := NewRepository(objstore.NewMemory())
	ctx := context.Background()

	seen := map[*sync.Mutex]bool{}
	for i := range 1000 {
		id := fmt.Sprintf("board_%d", i)
		require.ErrorIs(t, r.DeleteBoard(ctx, id), ErrBoardNotFound)
		lock := r.boardLock(id)
		assert.Same(t, lock, r.boardLock(id))
		seen[lock] = true
	}
	assert.LessOrEqual(t, len(seen), lockStripes)
}
