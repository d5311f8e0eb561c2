package board

import (
	"time"

	"kanban/api/internal/rbac"
)

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 10000
	MaxCommentLength     = 5000
	MaxTags              = 50
)

type ColumnInput struct {
	Title    string `json:"title"`
	Status   string `json:"status"`
	WIPLimit *int   `json:"wipLimit,omitempty"`
	Color    string `json:"color,omitempty"`
}

type TaskInput struct {
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Status         string     `json:"status,omitempty"`
	Priority       Priority   `json:"priority,omitempty"`
	Assignee       *string    `json:"assignee,omitempty"`
	Reporter       string     `json:"reporter,omitempty"`
	DueDate        *time.Time `json:"dueDate,omitempty"`
	Tags           []string   `json:"tags,omitempty"`
	EstimatedHours *float64   `json:"estimatedHours,omitempty"`
}

type CommentInput struct {
	Content string `json:"content"`
	Author  string `json:"author"`
}

type SettingsPatch struct {
	AllowPriorityChange *bool `json:"allowPriorityChange,omitempty"`
	AllowStatusChange   *bool `json:"allowStatusChange,omitempty"`
	EnableWipLimits     *bool `json:"enableWipLimits,omitempty"`
	EnableTimeTracking  *bool `json:"enableTimeTracking,omitempty"`
}

type BoardPatch struct {
	Title       Optional[string] `json:"title,omitzero"`
	Description Optional[string] `json:"description,omitzero"`
	Settings    *SettingsPatch   `json:"settings,omitempty"`
}

type ColumnPatch struct {
	Title    Optional[string] `json:"title,omitzero"`
	Status   Optional[string] `json:"status,omitzero"`
	WIPLimit Optional[int]    `json:"wipLimit,omitzero"`
	Color    Optional[string] `json:"color,omitzero"`
}

type TaskPatch struct {
	Title          Optional[string]    `json:"title,omitzero"`
	Description    Optional[string]    `json:"description,omitzero"`
	Status         Optional[string]    `json:"status,omitzero"`
	Priority       Optional[Priority]  `json:"priority,omitzero"`
	Assignee       Optional[string]    `json:"assignee,omitzero"`
	Reporter       Optional[string]    `json:"reporter,omitzero"`
	DueDate        Optional[time.Time] `json:"dueDate,omitzero"`
	Tags           Optional[[]string]  `json:"tags,omitzero"`
	Attachments    Optional[[]string]  `json:"attachments,omitzero"`
	EstimatedHours Optional[float64]   `json:"estimatedHours,omitzero"`
	ActualHours    Optional[float64]   `json:"actualHours,omitzero"`
}

type MemberPatch struct {
	Name       Optional[string]    `json:"name,omitzero"`
	Email      Optional[string]    `json:"email,omitzero"`
	Avatar     Optional[string]    `json:"avatar,omitzero"`
	Role       Optional[rbac.Role] `json:"role,omitzero"`
	Color      Optional[string]    `json:"color,omitzero"`
	LastActive Optional[time.Time] `json:"lastActive,omitzero"`
}

// ApplyMemberPatch merges patch over m, keeping the id. It is shared by the
// board membership map and the global member directory.
func ApplyMemberPatch(m Member, patch MemberPatch) (Member, error) {
	out := m.clone()
	if name, ok := patch.Name.Get(); ok {
		name = trimmed(name)
		if name == "" {
			return Member{}, invalid("member name is required")
		}
		out.Name = name
	}
	if email, ok := patch.Email.Get(); ok {
		out.Email = trimmed(email)
	}
	if patch.Avatar.Set {
		out.Avatar = patch.Avatar.Value
	}
	if role, ok := patch.Role.Get(); ok {
		if !rbac.Valid(role) {
			return Member{}, invalid("unknown role %q", role)
		}
		out.Role = role
	}
	if color, ok := patch.Color.Get(); ok {
		out.Color = color
	}
	applyPtr(&out.LastActive, patch.LastActive)
	return out, nil
}
