package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"kanban/api/internal/board"
	"kanban/api/internal/ratelimit"
	"kanban/api/internal/rbac"
	"kanban/api/internal/realtime"
	"kanban/api/internal/report"
)

type HTTPServer struct {
	service *Service
	limiter *ratelimit.Limiter
	hub     *realtime.Hub
}

// NewHTTPServer builds the API handler. limiter and hub may be nil, which
// disables rate limiting and the realtime endpoint.
func NewHTTPServer(service *Service, limiter *ratelimit.Limiter, hub *realtime.Hub) *HTTPServer {
	return &HTTPServer{service: service, limiter: limiter, hub: hub}
}

func (s *HTTPServer) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: strings.Split(s.service.cfg.CORSOrigin, ","),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "If-Match", headerIdentity, headerCSRF, "X-Request-ID"},
		ExposedHeaders: []string{"ETag", "Retry-After", "X-Request-ID"},
	})
	return s.withMiddleware(s.rateLimit(s.limitBody(c.Handler(s.routes()))))
}

func (s *HTTPServer) routes() *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/csrf", s.handleCSRF).Methods(http.MethodGet)

	api := r.NewRoute().Subrouter()
	api.Use(s.requireCSRF, s.requireIdentity)

	api.HandleFunc("/session", s.handleGetSession).Methods(http.MethodGet)
	api.HandleFunc("/session", s.handleCreateSession).Methods(http.MethodPost)
	api.HandleFunc("/search", s.handleSearch).Methods(http.MethodGet)

	api.HandleFunc("/boards", s.handleListBoards).Methods(http.MethodGet)
	api.HandleFunc("/boards", s.handleCreateBoard).Methods(http.MethodPost)
	api.HandleFunc("/boards/{id}", s.handleGetBoard).Methods(http.MethodGet)
	api.HandleFunc("/boards/{id}", s.handleUpdateBoard).Methods(http.MethodPut)
	api.HandleFunc("/boards/{id}", s.handleDeleteBoard).Methods(http.MethodDelete)
	api.HandleFunc("/boards/{id}/report", s.handleReport).Methods(http.MethodGet)
	api.HandleFunc("/boards/{id}/events", s.handleEvents).Methods(http.MethodGet)

	api.HandleFunc("/boards/{id}/columns", s.handleAddColumn).Methods(http.MethodPost)
	api.HandleFunc("/boards/{id}/columns/reorder", s.handleReorderColumns).Methods(http.MethodPost)
	api.HandleFunc("/boards/{id}/columns/{colId}", s.handleUpdateColumn).Methods(http.MethodPut)
	api.HandleFunc("/boards/{id}/columns/{colId}", s.handleDeleteColumn).Methods(http.MethodDelete)

	api.HandleFunc("/boards/{id}/tasks", s.handleListTasks).Methods(http.MethodGet)
	api.HandleFunc("/boards/{id}/tasks", s.handleCreateTask).Methods(http.MethodPost)
	api.HandleFunc("/boards/{id}/tasks/{taskId}", s.handleGetTask).Methods(http.MethodGet)
	api.HandleFunc("/boards/{id}/tasks/{taskId}", s.handleUpdateTask).Methods(http.MethodPut)
	api.HandleFunc("/boards/{id}/tasks/{taskId}", s.handleDeleteTask).Methods(http.MethodDelete)
	api.HandleFunc("/boards/{id}/tasks/{taskId}/move", s.handleMoveTask).Methods(http.MethodPost)
	api.HandleFunc("/boards/{id}/tasks/{taskId}/comments", s.handleAddComment).Methods(http.MethodPost)
	api.HandleFunc("/boards/{id}/tasks/{taskId}/comments", s.handleEditComment).Methods(http.MethodPut)
	api.HandleFunc("/boards/{id}/tasks/{taskId}/comments", s.handleDeleteComment).Methods(http.MethodDelete)
	api.HandleFunc("/boards/{id}/tasks/{taskId}/comments/{commentId}", s.handleEditComment).Methods(http.MethodPut)
	api.HandleFunc("/boards/{id}/tasks/{taskId}/comments/{commentId}", s.handleDeleteComment).Methods(http.MethodDelete)

	api.HandleFunc("/boards/{id}/members", s.handleAddBoardMember).Methods(http.MethodPost)
	api.HandleFunc("/boards/{id}/members/{memberId}", s.handleUpdateBoardMember).Methods(http.MethodPut)
	api.HandleFunc("/boards/{id}/members/{memberId}", s.handleRemoveBoardMember).Methods(http.MethodDelete)

	api.HandleFunc("/members", s.handleListMembers).Methods(http.MethodGet)
	api.HandleFunc("/members", s.handleCreateMember).Methods(http.MethodPost)
	api.HandleFunc("/members/{id}", s.handleGetMember).Methods(http.MethodGet)
	api.HandleFunc("/members/{id}", s.handleUpdateMember).Methods(http.MethodPut)
	api.HandleFunc("/members/{id}", s.handleDeleteMember).Methods(http.MethodDelete)
	return r
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"storage": map[string]any{"status": "ok"},
	}
	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["storage"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}
	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleCSRF(w http.ResponseWriter, _ *http.Request) {
	token, err := s.service.IssueCSRF()
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token})
}

func (s *HTTPServer) handleGetSession(w http.ResponseWriter, r *http.Request) {
	actor := identityFrom(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"identity":    actor,
		"permissions": rbac.PermissionsFor(actor.Role),
	})
}

func (s *HTTPServer) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.service.IssueSession(identityFrom(r))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, err := queryInt(query.Get("limit"))
	if err != nil {
		s.fail(w, err)
		return
	}
	offset, err := queryInt(query.Get("offset"))
	if err != nil {
		s.fail(w, err)
		return
	}
	result, err := s.service.Search(r.Context(), identityFrom(r), query.Get("q"), limit, offset)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Boards

func (s *HTTPServer) handleListBoards(w http.ResponseWriter, r *http.Request) {
	boards, err := s.service.ListBoards(r.Context(), identityFrom(r))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, boards)
}

func (s *HTTPServer) handleCreateBoard(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, err)
		return
	}
	b, err := s.service.CreateBoard(r.Context(), identityFrom(r), body.Title, body.Description)
	if err != nil {
		s.fail(w, err)
		return
	}
	setRevision(w, b)
	writeJSON(w, http.StatusCreated, b)
}

func (s *HTTPServer) handleGetBoard(w http.ResponseWriter, r *http.Request) {
	b, err := s.service.GetBoard(r.Context(), identityFrom(r), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, err)
		return
	}
	setRevision(w, b)
	writeJSON(w, http.StatusOK, b)
}

func (s *HTTPServer) handleUpdateBoard(w http.ResponseWriter, r *http.Request) {
	var patch board.BoardPatch
	if err := decodeBody(r, &patch); err != nil {
		s.fail(w, err)
		return
	}
	s.mutate(w, r, http.StatusOK, board.UpdateBoardCmd{Patch: patch}, func(b board.Board, _ any) any {
		return b
	})
}

func (s *HTTPServer) handleDeleteBoard(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteBoard(r.Context(), identityFrom(r), mux.Vars(r)["id"]); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReport(w http.ResponseWriter, r *http.Request) {
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.fail(w, err)
		return
	}
	result, err := s.service.Report(r.Context(), identityFrom(r), mux.Vars(r)["id"], format)
	if err != nil {
		s.fail(w, err)
		return
	}
	if format == report.FormatHTML {
		w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'")
	}
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", `inline; filename="`+result.Filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *HTTPServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "REALTIME_UNAVAILABLE", "Realtime updates are not enabled", nil)
		return
	}
	actor := identityFrom(r)
	boardID := mux.Vars(r)["id"]
	if err := s.service.CanSubscribe(r.Context(), actor, boardID); err != nil {
		s.fail(w, err)
		return
	}
	if err := s.hub.ServeWS(w, r, boardID, actor.ID); err != nil {
		zap.L().Warn("websocket upgrade failed", zap.String("board", boardID), zap.Error(err))
	}
}

// Columns

func (s *HTTPServer) handleAddColumn(w http.ResponseWriter, r *http.Request) {
	var in board.ColumnInput
	if err := decodeBody(r, &in); err != nil {
		s.fail(w, err)
		return
	}
	s.mutate(w, r, http.StatusCreated, board.AddColumnCmd{Input: in}, resultOnly)
}

func (s *HTTPServer) handleReorderColumns(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ColumnIDs []string `json:"columnIds"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, err)
		return
	}
	s.mutate(w, r, http.StatusOK, board.ReorderColumnsCmd{ColumnIDs: body.ColumnIDs}, func(b board.Board, _ any) any {
		return b.Columns
	})
}

func (s *HTTPServer) handleUpdateColumn(w http.ResponseWriter, r *http.Request) {
	var patch board.ColumnPatch
	if err := decodeBody(r, &patch); err != nil {
		s.fail(w, err)
		return
	}
	s.mutate(w, r, http.StatusOK, board.UpdateColumnCmd{ColumnID: mux.Vars(r)["colId"], Patch: patch}, resultOnly)
}

func (s *HTTPServer) handleDeleteColumn(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, http.StatusOK, board.DeleteColumnCmd{ColumnID: mux.Vars(r)["colId"]}, okOnly)
}

// Tasks

func (s *HTTPServer) handleListTasks(w http.ResponseWriter, r *http.Request) {
	filter, err := taskFilter(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	tasks, err := s.service.ListTasks(r.Context(), identityFrom(r), mux.Vars(r)["id"], filter)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *HTTPServer) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var in board.TaskInput
	if err := decodeBody(r, &in); err != nil {
		s.fail(w, err)
		return
	}
	if strings.TrimSpace(in.Reporter) == "" {
		in.Reporter = identityFrom(r).Name
	}
	s.mutate(w, r, http.StatusCreated, board.CreateTaskCmd{Input: in}, resultOnly)
}

func (s *HTTPServer) handleGetTask(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	task, err := s.service.GetTask(r.Context(), identityFrom(r), vars["id"], vars["taskId"])
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *HTTPServer) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var patch board.TaskPatch
	if err := decodeBody(r, &patch); err != nil {
		s.fail(w, err)
		return
	}
	s.mutate(w, r, http.StatusOK, board.UpdateTaskCmd{TaskID: mux.Vars(r)["taskId"], Patch: patch}, resultOnly)
}

func (s *HTTPServer) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, http.StatusOK, board.DeleteTaskCmd{TaskID: mux.Vars(r)["taskId"]}, okOnly)
}

// MovedTask is the move response: the task plus the WIP flag of its new column.
type MovedTask struct {
	board.Task
	WIPExceeded bool `json:"wipExceeded,omitempty"`
}

func (s *HTTPServer) handleMoveTask(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status   string `json:"status"`
		Position *int   `json:"position"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, err)
		return
	}
	cmd := board.MoveTaskCmd{TaskID: mux.Vars(r)["taskId"], Status: body.Status, Position: body.Position}
	s.mutate(w, r, http.StatusOK, cmd, func(_ board.Board, result any) any {
		moved := result.(board.MoveResult)
		return MovedTask{Task: moved.Task, WIPExceeded: moved.WIPExceeded}
	})
}

// Comments

func (s *HTTPServer) handleAddComment(w http.ResponseWriter, r *http.Request) {
	var in board.CommentInput
	if err := decodeBody(r, &in); err != nil {
		s.fail(w, err)
		return
	}
	if strings.TrimSpace(in.Author) == "" {
		in.Author = identityFrom(r).Name
	}
	s.mutate(w, r, http.StatusCreated, board.AddCommentCmd{TaskID: mux.Vars(r)["taskId"], Input: in}, resultOnly)
}

func (s *HTTPServer) handleEditComment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CommentID string `json:"commentId"`
		Content   string `json:"content"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, err)
		return
	}
	vars := mux.Vars(r)
	cmd := board.EditCommentCmd{TaskID: vars["taskId"], CommentID: commentID(vars, body.CommentID), Content: body.Content}
	s.mutate(w, r, http.StatusOK, cmd, resultOnly)
}

func (s *HTTPServer) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CommentID string `json:"commentId"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, err)
		return
	}
	vars := mux.Vars(r)
	s.mutate(w, r, http.StatusOK, board.DeleteCommentCmd{TaskID: vars["taskId"], CommentID: commentID(vars, body.CommentID)}, okOnly)
}

// Board members

func (s *HTTPServer) handleAddBoardMember(w http.ResponseWriter, r *http.Request) {
	var in BoardMemberInput
	if err := decodeBody(r, &in); err != nil {
		s.fail(w, err)
		return
	}
	ifMatch, err := parseIfMatch(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	b, member, err := s.service.AddBoardMember(r.Context(), identityFrom(r), mux.Vars(r)["id"], ifMatch, in)
	if err != nil {
		s.fail(w, err)
		return
	}
	setRevision(w, b)
	writeJSON(w, http.StatusCreated, member)
}

func (s *HTTPServer) handleUpdateBoardMember(w http.ResponseWriter, r *http.Request) {
	var patch board.MemberPatch
	if err := decodeBody(r, &patch); err != nil {
		s.fail(w, err)
		return
	}
	s.mutate(w, r, http.StatusOK, board.UpdateMemberCmd{MemberID: mux.Vars(r)["memberId"], Patch: patch}, resultOnly)
}

func (s *HTTPServer) handleRemoveBoardMember(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, http.StatusOK, board.RemoveMemberCmd{MemberID: mux.Vars(r)["memberId"]}, okOnly)
}

// Global members

func (s *HTTPServer) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.service.ListMembers(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (s *HTTPServer) handleCreateMember(w http.ResponseWriter, r *http.Request) {
	var m board.Member
	if err := decodeBody(r, &m); err != nil {
		s.fail(w, err)
		return
	}
	created, err := s.service.CreateMember(r.Context(), identityFrom(r), m)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *HTTPServer) handleGetMember(w http.ResponseWriter, r *http.Request) {
	m, err := s.service.GetMember(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *HTTPServer) handleUpdateMember(w http.ResponseWriter, r *http.Request) {
	var patch board.MemberPatch
	if err := decodeBody(r, &patch); err != nil {
		s.fail(w, err)
		return
	}
	m, err := s.service.UpdateMember(r.Context(), identityFrom(r), mux.Vars(r)["id"], patch)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *HTTPServer) handleDeleteMember(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteMember(r.Context(), identityFrom(r), mux.Vars(r)["id"]); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// mutate runs cmd against the board in the path and writes view(board, result).
func (s *HTTPServer) mutate(w http.ResponseWriter, r *http.Request, status int, cmd board.Command, view func(board.Board, any) any) {
	ifMatch, err := parseIfMatch(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	b, result, err := s.service.Mutate(r.Context(), identityFrom(r), mux.Vars(r)["id"], ifMatch, cmd)
	if err != nil {
		s.fail(w, err)
		return
	}
	setRevision(w, b)
	writeJSON(w, status, view(b, result))
}

func resultOnly(_ board.Board, result any) any {
	return result
}

func okOnly(board.Board, any) any {
	return map[string]any{"ok": true}
}

func (s *HTTPServer) fail(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		zap.L().Error("request failed", zap.String("code", code), zap.Error(err))
	}
	writeError(w, status, code, message, details)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

// decodeBody reads a JSON body into target. An empty body leaves target
// untouched.
func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF), errors.Is(err, http.ErrBodyReadAfterClose):
			return nil
		case errors.As(err, &tooLarge):
			return errPayloadTooLarge
		}
		return domainError(http.StatusBadRequest, "INVALID_BODY", "invalid JSON body", nil)
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// parseIfMatch reads the base revision a client claims to have edited.
// Both "3" and the quoted ETag form are accepted; "*" means any.
func parseIfMatch(r *http.Request) (*int64, error) {
	value := strings.TrimSpace(r.Header.Get("If-Match"))
	if value == "" || value == "*" {
		return nil, nil
	}
	value = strings.Trim(strings.TrimPrefix(value, "W/"), `"`)
	revision, err := strconv.ParseInt(value, 10, 64)
	if err != nil || revision < 0 {
		return nil, domainError(http.StatusBadRequest, "INVALID_REVISION", "If-Match must be a board revision", nil)
	}
	return &revision, nil
}

func setRevision(w http.ResponseWriter, b board.Board) {
	w.Header().Set("ETag", strconv.Quote(strconv.FormatInt(b.Revision, 10)))
}

func taskFilter(r *http.Request) (board.TaskFilter, error) {
	query := r.URL.Query()
	filter := board.TaskFilter{
		Text:     query.Get("q"),
		Status:   query.Get("status"),
		Priority: board.Priority(query.Get("priority")),
		Assignee: query.Get("assignee"),
		Tag:      query.Get("tag"),
	}
	if filter.Priority != "" && !filter.Priority.Valid() {
		return board.TaskFilter{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "unknown priority", nil)
	}
	if value := query.Get("overdue"); value != "" {
		at := time.Now().UTC()
		if value != "true" && value != "now" {
			parsed, err := time.Parse(time.RFC3339, value)
			if err != nil {
				return board.TaskFilter{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "overdue must be true or an RFC3339 time", nil)
			}
			at = parsed
		}
		filter.OverdueAt = &at
	}
	return filter, nil
}

func queryInt(value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return 0, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "expected a non-negative integer", nil)
	}
	return parsed, nil
}

func commentID(vars map[string]string, fromBody string) string {
	if id := vars["commentId"]; id != "" {
		return id
	}
	return fromBody
}
