package client

import (
	"context"
	"fmt"
	"sync"

	"kanban/api/internal/board"
)

// Mirror keeps a local copy of one board. Do applies a command locally right
// away, sends it to the server and then adopts the server's board. When the
// server rejects the command the prediction is dropped and the board is
// fetched again. Commands on one Mirror run one at a time.
type Mirror struct {
	client  *Client
	engine  *board.Engine
	boardID string

	// OnChange, when set, is called with every board the mirror shows,
	// predicted or authoritative.
	OnChange func(board.Board)

	sendMu sync.Mutex

	mu        sync.RWMutex
	confirmed board.Board
	shown     board.Board
}

// NewMirror loads boardID and returns a mirror of it.
func NewMirror(ctx context.Context, c *Client, boardID string) (*Mirror, error) {
	m := &Mirror{client: c, engine: board.NewEngine(), boardID: boardID}
	if err := m.Refresh(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// Board returns the board as currently shown, including a pending prediction.
func (m *Mirror) Board() board.Board {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.shown.Clone()
}

// Confirmed returns the last board received from the server.
func (m *Mirror) Confirmed() board.Board {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.confirmed.Clone()
}

// Do predicts cmd locally, sends it and reconciles with the server. A command
// the engine rejects locally is never sent.
func (m *Mirror) Do(ctx context.Context, cmd board.Command) error {
	m.sendMu.Lock()
	defer m.sendMu.Unlock()

	base := m.Confirmed()
	predicted, _, err := m.engine.Apply(base, cmd)
	if err != nil {
		return err
	}
	m.show(predicted, false)

	revision := base.Revision
	if _, _, err := m.client.Apply(ctx, m.boardID, &revision, cmd); err != nil {
		if refreshErr := m.Refresh(ctx); refreshErr != nil {
			m.show(base, false)
			return fmt.Errorf("%w (refresh failed: %v)", err, refreshErr)
		}
		return err
	}
	return m.Refresh(ctx)
}

// Refresh replaces the local copy with the server's board.
func (m *Mirror) Refresh(ctx context.Context) error {
	b, err := m.client.GetBoard(ctx, m.boardID)
	if err != nil {
		return err
	}
	m.show(b, true)
	return nil
}

func (m *Mirror) show(b board.Board, confirmed bool) {
	m.mu.Lock()
	if confirmed {
		m.confirmed = b
	}
	m.shown = b
	m.mu.Unlock()
	if m.OnChange != nil {
		m.OnChange(b.Clone())
	}
}
