// Package store persists boards and the global member directory as JSON
// documents in an object store.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"

	"kanban/api/internal/board"
	"kanban/api/internal/objstore"
)

const (
	boardPrefix = "boards/"
	boardIndex  = "boards/_index.json"

	lockStripes = 64
)

// Repository loads and saves whole boards. Writes are checked against the
// stored revision: a board whose Revision differs from the stored one is
// rejected with ErrStaleRevision, otherwise it is saved with Revision+1.
type Repository struct {
	objects objstore.Store

	boardLocks [lockStripes]sync.Mutex
	indexMu    sync.Mutex
	memberMu   sync.Mutex
}

func NewRepository(objects objstore.Store) *Repository {
	return &Repository{objects: objects}
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.objects.Ping(ctx)
}

func (r *Repository) GetBoard(ctx context.Context, id string) (board.Board, error) {
	if !validID(id) {
		return board.Board{}, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	var b board.Board
	if err := r.read(ctx, boardKey(id), &b); err != nil {
		if errors.Is(err, objstore.ErrNotExist) {
			return board.Board{}, fmt.Errorf("%w: %s", ErrBoardNotFound, id)
		}
		return board.Board{}, err
	}
	return b, nil
}

// PutBoard saves b and returns the stored copy with its new revision.
func (r *Repository) PutBoard(ctx context.Context, b board.Board) (board.Board, error) {
	if !validID(b.ID) {
		return board.Board{}, fmt.Errorf("%w: %q", ErrInvalidID, b.ID)
	}
	lock := r.boardLock(b.ID)
	lock.Lock()
	defer lock.Unlock()
	return r.putLocked(ctx, b)
}

// Update loads the board, applies fn and saves the result while holding the
// board's lock, so concurrent updates in this process never overwrite each other.
func (r *Repository) Update(ctx context.Context, id string, fn func(board.Board) (board.Board, error)) (board.Board, error) {
	if !validID(id) {
		return board.Board{}, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	lock := r.boardLock(id)
	lock.Lock()
	defer lock.Unlock()

	current, err := r.GetBoard(ctx, id)
	if err != nil {
		return board.Board{}, err
	}
	next, err := fn(current)
	if err != nil {
		return board.Board{}, err
	}
	next.ID = id
	next.Revision = current.Revision
	return r.putLocked(ctx, next)
}

func (r *Repository) DeleteBoard(ctx context.Context, id string) error {
	if !validID(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	lock := r.boardLock(id)
	lock.Lock()
	defer lock.Unlock()

	if _, err := r.GetBoard(ctx, id); err != nil {
		return err
	}
	if err := r.objects.Delete(ctx, boardKey(id)); err != nil {
		return fmt.Errorf("delete board %s: %w", id, err)
	}
	return r.updateIndex(ctx, &r.indexMu, boardIndex, func(ids []string) []string {
		return without(ids, id)
	})
}

// ListBoardIDs returns board ids in creation order.
func (r *Repository) ListBoardIDs(ctx context.Context) ([]string, error) {
	return r.readIndex(ctx, boardIndex)
}

// ListBoards returns every indexed board. Ids whose document has vanished are skipped.
func (r *Repository) ListBoards(ctx context.Context) ([]board.Board, error) {
	ids, err := r.ListBoardIDs(ctx)
	if err != nil {
		return nil, err
	}
	boards := make([]board.Board, 0, len(ids))
	for _, id := range ids {
		b, err := r.GetBoard(ctx, id)
		if errors.Is(err, board.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		boards = append(boards, b)
	}
	return boards, nil
}

func (r *Repository) putLocked(ctx context.Context, b board.Board) (board.Board, error) {
	var stored board.Board
	err := r.read(ctx, boardKey(b.ID), &stored)
	exists := err == nil
	if err != nil && !errors.Is(err, objstore.ErrNotExist) {
		return board.Board{}, err
	}
	if exists && stored.Revision != b.Revision {
		return board.Board{}, fmt.Errorf("%w: board %s is at revision %d, update was based on %d",
			ErrStaleRevision, b.ID, stored.Revision, b.Revision)
	}
	if !exists && b.Revision != 0 {
		return board.Board{}, fmt.Errorf("%w: board %s no longer exists", ErrStaleRevision, b.ID)
	}

	b.Revision++
	if err := r.write(ctx, boardKey(b.ID), b); err != nil {
		return board.Board{}, err
	}
	if !exists {
		err := r.updateIndex(ctx, &r.indexMu, boardIndex, func(ids []string) []string {
			return appendMissing(ids, b.ID)
		})
		if err != nil {
			return board.Board{}, err
		}
	}
	return b, nil
}

// boardLock returns the stripe guarding id. Boards sharing a stripe
// serialise against each other, which only costs throughput.
func (r *Repository) boardLock(id string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &r.boardLocks[h.Sum32()%lockStripes]
}

func (r *Repository) read(ctx context.Context, key string, v any) error {
	data, err := r.objects.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (r *Repository) write(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := r.objects.Put(ctx, key, data); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (r *Repository) readIndex(ctx context.Context, key string) ([]string, error) {
	ids := make([]string, 0)
	if err := r.read(ctx, key, &ids); err != nil && !errors.Is(err, objstore.ErrNotExist) {
		return nil, err
	}
	return ids, nil
}

func (r *Repository) updateIndex(ctx context.Context, mu *sync.Mutex, key string, fn func([]string) []string) error {
	mu.Lock()
	defer mu.Unlock()
	ids, err := r.readIndex(ctx, key)
	if err != nil {
		return err
	}
	return r.write(ctx, key, fn(ids))
}

func boardKey(id string) string {
	return boardPrefix + id + ".json"
}

// validID accepts ids that are safe to embed in an object key.
func validID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	for i, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case (c == '_' || c == '-') && i > 0:
		default:
			return false
		}
	}
	return true
}

func appendMissing(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}
