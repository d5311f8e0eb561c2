package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kanban/api/internal/board"
	"kanban/api/internal/objstore"
	"kanban/api/internal/rbac"
	"kanban/api/internal/util"
)

const (
	memberPrefix = "members/"
	memberIndex  = "members/_index.json"
)

// ListMembers returns the global member directory in creation order.
func (r *Repository) ListMembers(ctx context.Context) ([]board.Member, error) {
	ids, err := r.readIndex(ctx, memberIndex)
	if err != nil {
		return nil, err
	}
	members := make([]board.Member, 0, len(ids))
	for _, id := range ids {
		m, err := r.GetMember(ctx, id)
		if errors.Is(err, board.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, nil
}

func (r *Repository) GetMember(ctx context.Context, id string) (board.Member, error) {
	if !validID(id) {
		return board.Member{}, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	var m board.Member
	if err := r.read(ctx, memberKey(id), &m); err != nil {
		if errors.Is(err, objstore.ErrNotExist) {
			return board.Member{}, fmt.Errorf("%w: %s", ErrMemberNotFound, id)
		}
		return board.Member{}, err
	}
	return m, nil
}

// CreateMember adds m to the directory. Emails are unique ignoring case.
func (r *Repository) CreateMember(ctx context.Context, m board.Member) (board.Member, error) {
	m.Name = strings.TrimSpace(m.Name)
	m.Email = strings.TrimSpace(m.Email)
	if m.Name == "" {
		return board.Member{}, fmt.Errorf("%w: member name is required", board.ErrValidation)
	}
	if m.Role == "" {
		m.Role = rbac.RoleMember
	}
	if !rbac.Valid(m.Role) {
		return board.Member{}, fmt.Errorf("%w: unknown role %q", board.ErrValidation, m.Role)
	}
	if m.ID == "" {
		m.ID = util.NewID("member")
	} else if !validID(m.ID) {
		return board.Member{}, fmt.Errorf("%w: %q", ErrInvalidID, m.ID)
	}

	r.memberMu.Lock()
	defer r.memberMu.Unlock()

	existing, err := r.ListMembers(ctx)
	if err != nil {
		return board.Member{}, err
	}
	for _, other := range existing {
		if other.ID == m.ID {
			return board.Member{}, fmt.Errorf("%w: member %s already exists", board.ErrAlreadyMember, m.ID)
		}
	}
	if err := checkEmail(existing, m); err != nil {
		return board.Member{}, err
	}
	if m.Color == "" {
		m.Color = board.Palette[len(existing)%len(board.Palette)]
	}
	if m.CreatedAt == nil {
		now := time.Now().UTC()
		m.CreatedAt = &now
	}

	if err := r.write(ctx, memberKey(m.ID), m); err != nil {
		return board.Member{}, err
	}
	err = r.updateIndex(ctx, &r.indexMu, memberIndex, func(ids []string) []string {
		return appendMissing(ids, m.ID)
	})
	if err != nil {
		return board.Member{}, err
	}
	return m, nil
}

func (r *Repository) UpdateMember(ctx context.Context, id string, patch board.MemberPatch) (board.Member, error) {
	r.memberMu.Lock()
	defer r.memberMu.Unlock()

	current, err := r.GetMember(ctx, id)
	if err != nil {
		return board.Member{}, err
	}
	updated, err := board.ApplyMemberPatch(current, patch)
	if err != nil {
		return board.Member{}, err
	}
	if patch.Email.Set {
		existing, err := r.ListMembers(ctx)
		if err != nil {
			return board.Member{}, err
		}
		if err := checkEmail(existing, updated); err != nil {
			return board.Member{}, err
		}
	}
	if err := r.write(ctx, memberKey(id), updated); err != nil {
		return board.Member{}, err
	}
	return updated, nil
}

func (r *Repository) DeleteMember(ctx context.Context, id string) error {
	r.memberMu.Lock()
	defer r.memberMu.Unlock()

	if _, err := r.GetMember(ctx, id); err != nil {
		return err
	}
	if err := r.objects.Delete(ctx, memberKey(id)); err != nil {
		return fmt.Errorf("delete member %s: %w", id, err)
	}
	return r.updateIndex(ctx, &r.indexMu, memberIndex, func(ids []string) []string {
		return without(ids, id)
	})
}

func checkEmail(existing []board.Member, m board.Member) error {
	if m.Email == "" {
		return nil
	}
	for _, other := range existing {
		if other.ID != m.ID && strings.EqualFold(other.Email, m.Email) {
			return fmt.Errorf("%w: %s", ErrDuplicateEmail, m.Email)
		}
	}
	return nil
}

func memberKey(id string) string {
	return memberPrefix + id + ".json"
}
