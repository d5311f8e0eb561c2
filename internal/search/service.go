package search

import (
	"context"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"kanban/api/internal/board"
)

// BoardSource lists the boards the in-memory fallback scans.
type BoardSource interface {
	ListBoards(ctx context.Context) ([]board.Board, error)
}

// Index is the external task index.
type Index interface {
	Healthy() bool
	Search(q Query) ([]Result, int, error)
	IndexTasks(records []TaskRecord) error
	DeleteTask(id string) error
}

// Service is the facade that tries the index first and falls back to a scan.
type Service struct {
	index  Index
	boards BoardSource
}

// NewService creates a search service. index may be nil when Meilisearch is
// not configured.
func NewService(index Index, boards BoardSource) *Service {
	return &Service{index: index, boards: boards}
}

func (s *Service) Search(ctx context.Context, q Query) Response {
	if strings.TrimSpace(q.Text) == "" {
		return Response{Results: []Result{}, Query: q.Text}
	}
	if s.indexReady() {
		results, total, err := s.index.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		zap.L().Warn("index search failed, falling back to scan", zap.Error(err))
	}

	results, total, err := s.scan(ctx, q)
	if err != nil {
		zap.L().Error("search scan failed", zap.Error(err))
		return Response{Results: []Result{}, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// SyncBoard brings the index in line with a board change: tasks present in
// after are upserted, tasks only in before are removed. Pass a zero after for
// a deleted board. Work happens in the background.
func (s *Service) SyncBoard(before, after board.Board) {
	if !s.indexReady() {
		return
	}
	records := []TaskRecord{}
	if after.ID != "" {
		records = Records(after)
	}
	var stale []string
	for taskID := range before.Tasks {
		if _, ok := after.Tasks[taskID]; !ok {
			stale = append(stale, RecordID(before.ID, taskID))
		}
	}
	go func() {
		if err := s.index.IndexTasks(records); err != nil {
			zap.L().Warn("index tasks", zap.String("board", after.ID), zap.Error(err))
		}
		for _, id := range stale {
			if err := s.index.DeleteTask(id); err != nil {
				zap.L().Warn("delete indexed task", zap.String("record", id), zap.Error(err))
			}
		}
	}()
}

// ReindexAll pushes every stored task into the index.
func (s *Service) ReindexAll(ctx context.Context) {
	if !s.indexReady() {
		return
	}
	boards, err := s.boards.ListBoards(ctx)
	if err != nil {
		zap.L().Warn("reindex load failed", zap.Error(err))
		return
	}
	var records []TaskRecord
	for _, b := range boards {
		records = append(records, Records(b)...)
	}
	if err := s.index.IndexTasks(records); err != nil {
		zap.L().Warn("reindex tasks", zap.Error(err))
	}
}

func (s *Service) indexReady() bool {
	return s.index != nil && s.index.Healthy()
}

func (s *Service) scan(ctx context.Context, q Query) ([]Result, int, error) {
	boards, err := s.boards.ListBoards(ctx)
	if err != nil {
		return nil, 0, err
	}
	var allowed map[string]bool
	if q.BoardIDs != nil {
		allowed = make(map[string]bool, len(q.BoardIDs))
		for _, id := range q.BoardIDs {
			allowed[id] = true
		}
	}

	var matches []Result
	for _, b := range boards {
		if allowed != nil && !allowed[b.ID] {
			continue
		}
		for _, task := range board.FilterTasks(b, board.TaskFilter{Text: q.Text}) {
			matches = append(matches, Result{
				BoardID:    b.ID,
				BoardTitle: b.Title,
				TaskID:     task.ID,
				Title:      task.Title,
				Snippet:    snippet(task.Description, q.Text),
				Status:     task.Status,
				Priority:   task.Priority,
			})
		}
	}

	total := len(matches)
	start := min(max(q.Offset, 0), total)
	end := min(start+limitOrDefault(q.Limit), total)
	return matches[start:end], total, nil
}

// snippet returns up to 160 characters of text around the first match of
// term. Matching folds case rune by rune so offsets stay valid in text.
func snippet(text, term string) string {
	const width = 160
	runes := []rune(text)
	if len(runes) <= width {
		return text
	}
	at := indexFold(runes, []rune(strings.TrimSpace(term)))
	start := 0
	if at > width/2 {
		start = at - width/2
	}
	end := min(start+width, len(runes))
	out := string(runes[start:end])
	if start > 0 {
		out = "…" + out
	}
	if end < len(runes) {
		out += "…"
	}
	return out
}

func indexFold(text, term []rune) int {
	if len(term) == 0 {
		return -1
	}
	for i := 0; i+len(term) <= len(text); i++ {
		match := true
		for j, r := range term {
			if unicode.ToLower(text[i+j]) != unicode.ToLower(r) {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return 20
	}
	return limit
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
