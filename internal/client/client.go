// Package client talks to the board API and keeps optimistic local copies of
// boards using the same engine the server runs.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"kanban/api/internal/auth"
	"kanban/api/internal/board"
	"kanban/api/internal/search"
)

// APIError is a non-2xx response decoded from the API error body.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// Conflict reports whether the board changed under the caller.
func (e *APIError) Conflict() bool {
	return e.Status == http.StatusConflict && e.Code == "REVISION_CONFLICT"
}

type Client struct {
	baseURL  string
	http     *http.Client
	identity string

	mu    sync.Mutex
	token string
	csrf  string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithIdentity sends id in the identity header on every request.
func WithIdentity(id auth.Identity) Option {
	return func(c *Client) {
		raw, err := json.Marshal(id)
		if err == nil {
			c.identity = string(raw)
		}
	}
}

// WithToken authenticates with a signed identity token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchCSRF obtains a CSRF token and sends it on later state-changing requests.
func (c *Client) FetchCSRF(ctx context.Context) error {
	var body struct {
		Token string `json:"token"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/csrf", nil, nil, &body); err != nil {
		return err
	}
	c.mu.Lock()
	c.csrf = body.Token
	c.mu.Unlock()
	return nil
}

// StartSession exchanges the current identity for a bearer token and uses it
// from then on.
func (c *Client) StartSession(ctx context.Context) (time.Time, error) {
	var body struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expiresAt"`
	}
	if _, err := c.do(ctx, http.MethodPost, "/session", nil, nil, &body); err != nil {
		return time.Time{}, err
	}
	c.mu.Lock()
	c.token = body.Token
	c.mu.Unlock()
	return body.ExpiresAt, nil
}

func (c *Client) ListBoards(ctx context.Context) ([]board.Board, error) {
	var boards []board.Board
	_, err := c.do(ctx, http.MethodGet, "/boards", nil, nil, &boards)
	return boards, err
}

func (c *Client) CreateBoard(ctx context.Context, title, description string) (board.Board, error) {
	var b board.Board
	in := map[string]string{"title": title, "description": description}
	_, err := c.do(ctx, http.MethodPost, "/boards", nil, in, &b)
	return b, err
}

func (c *Client) GetBoard(ctx context.Context, id string) (board.Board, error) {
	var b board.Board
	_, err := c.do(ctx, http.MethodGet, "/boards/"+url.PathEscape(id), nil, nil, &b)
	return b, err
}

func (c *Client) DeleteBoard(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/boards/"+url.PathEscape(id), nil, nil, nil)
	return err
}

func (c *Client) ListTasks(ctx context.Context, boardID string, f board.TaskFilter) ([]board.Task, error) {
	q := url.Values{}
	for key, value := range map[string]string{
		"q":        f.Text,
		"status":   f.Status,
		"priority": string(f.Priority),
		"assignee": f.Assignee,
		"tag":      f.Tag,
	} {
		if value != "" {
			q.Set(key, value)
		}
	}
	if f.OverdueAt != nil {
		q.Set("overdue", f.OverdueAt.UTC().Format(time.RFC3339))
	}
	path := "/boards/" + url.PathEscape(boardID) + "/tasks"
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var tasks []board.Task
	_, err := c.do(ctx, http.MethodGet, path, nil, nil, &tasks)
	return tasks, err
}

func (c *Client) Search(ctx context.Context, text string, limit, offset int) (search.Response, error) {
	q := url.Values{"q": {text}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	var res search.Response
	_, err := c.do(ctx, http.MethodGet, "/search?"+q.Encode(), nil, nil, &res)
	return res, err
}

// Report downloads a board report in format (json, html or pdf).
func (c *Client) Report(ctx context.Context, boardID, format string) ([]byte, error) {
	path := "/boards/" + url.PathEscape(boardID) + "/report?format=" + url.QueryEscape(format)
	resp, err := c.send(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (c *Client) ListMembers(ctx context.Context) ([]board.Member, error) {
	var members []board.Member
	_, err := c.do(ctx, http.MethodGet, "/members", nil, nil, &members)
	return members, err
}

func (c *Client) GetMember(ctx context.Context, id string) (board.Member, error) {
	var m board.Member
	_, err := c.do(ctx, http.MethodGet, "/members/"+url.PathEscape(id), nil, nil, &m)
	return m, err
}

func (c *Client) CreateMember(ctx context.Context, m board.Member) (board.Member, error) {
	var created board.Member
	_, err := c.do(ctx, http.MethodPost, "/members", nil, m, &created)
	return created, err
}

func (c *Client) UpdateMember(ctx context.Context, id string, patch board.MemberPatch) (board.Member, error) {
	var updated board.Member
	_, err := c.do(ctx, http.MethodPut, "/members/"+url.PathEscape(id), nil, patch, &updated)
	return updated, err
}

func (c *Client) DeleteMember(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/members/"+url.PathEscape(id), nil, nil, nil)
	return err
}

// AddBoardMember copies a directory member onto the board.
func (c *Client) AddBoardMember(ctx context.Context, boardID, memberID string) (board.Member, error) {
	var m board.Member
	path := "/boards/" + url.PathEscape(boardID) + "/members"
	_, err := c.do(ctx, http.MethodPost, path, nil, map[string]string{"memberId": memberID}, &m)
	return m, err
}

// Apply sends cmd for boardID. A non-nil base is sent as If-Match so the
// server rejects the write when the board moved on. The new revision and the
// raw response body are returned.
func (c *Client) Apply(ctx context.Context, boardID string, base *int64, cmd board.Command) (int64, json.RawMessage, error) {
	method, path, body, err := route(boardID, cmd)
	if err != nil {
		return 0, nil, err
	}
	headers := http.Header{}
	if base != nil {
		headers.Set("If-Match", strconv.Quote(strconv.FormatInt(*base, 10)))
	}
	var raw json.RawMessage
	resp, err := c.do(ctx, method, path, headers, body, &raw)
	if err != nil {
		return 0, nil, err
	}
	revision, _ := strconv.ParseInt(strings.Trim(resp.Header.Get("ETag"), `"`), 10, 64)
	return revision, raw, nil
}

// route maps a board command onto its HTTP call.
func route(boardID string, cmd board.Command) (method, path string, body any, err error) {
	base := "/boards/" + url.PathEscape(boardID)
	task := func(id string) string { return base + "/tasks/" + url.PathEscape(id) }

	switch c := cmd.(type) {
	case board.UpdateBoardCmd:
		return http.MethodPut, base, c.Patch, nil
	case board.AddColumnCmd:
		return http.MethodPost, base + "/columns", c.Input, nil
	case board.UpdateColumnCmd:
		return http.MethodPut, base + "/columns/" + url.PathEscape(c.ColumnID), c.Patch, nil
	case board.DeleteColumnCmd:
		return http.MethodDelete, base + "/columns/" + url.PathEscape(c.ColumnID), nil, nil
	case board.ReorderColumnsCmd:
		return http.MethodPost, base + "/columns/reorder", map[string][]string{"columnIds": c.ColumnIDs}, nil
	case board.CreateTaskCmd:
		return http.MethodPost, base + "/tasks", c.Input, nil
	case board.UpdateTaskCmd:
		return http.MethodPut, task(c.TaskID), c.Patch, nil
	case board.DeleteTaskCmd:
		return http.MethodDelete, task(c.TaskID), nil, nil
	case board.MoveTaskCmd:
		return http.MethodPost, task(c.TaskID) + "/move", map[string]any{"status": c.Status, "position": c.Position}, nil
	case board.AddMemberCmd:
		return http.MethodPost, base + "/members", c.Member, nil
	case board.UpdateMemberCmd:
		return http.MethodPut, base + "/members/" + url.PathEscape(c.MemberID), c.Patch, nil
	case board.RemoveMemberCmd:
		return http.MethodDelete, base + "/members/" + url.PathEscape(c.MemberID), nil, nil
	case board.AddCommentCmd:
		return http.MethodPost, task(c.TaskID) + "/comments", c.Input, nil
	case board.EditCommentCmd:
		return http.MethodPut, task(c.TaskID) + "/comments/" + url.PathEscape(c.CommentID), map[string]string{"content": c.Content}, nil
	case board.DeleteCommentCmd:
		return http.MethodDelete, task(c.TaskID) + "/comments/" + url.PathEscape(c.CommentID), nil, nil
	default:
		return "", "", nil, fmt.Errorf("unsupported command %T", cmd)
	}
}

func (c *Client) do(ctx context.Context, method, path string, headers http.Header, in, out any) (*http.Response, error) {
	resp, err := c.send(ctx, method, path, headers, in)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return resp, nil
}

// send performs the request and turns non-2xx responses into *APIError. The
// caller closes the body of a successful response.
func (c *Client) send(ctx context.Context, method, path string, headers http.Header, in any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	for key, values := range headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.mu.Lock()
	token, csrf := c.token, c.csrf
	c.mu.Unlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	} else if c.identity != "" {
		req.Header.Set("X-User", c.identity)
	}
	if csrf != "" && method != http.MethodGet {
		req.Header.Set("X-CSRF-Token", csrf)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	apiErr := &APIError{Status: resp.StatusCode}
	var payload struct {
		Code  string `json:"code"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil {
		apiErr.Code, apiErr.Message = payload.Code, payload.Error
	} else {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return nil, apiErr
}
