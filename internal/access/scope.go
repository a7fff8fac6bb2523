// Package access narrows student reads and writes to what the caller owns.
package access

import (
	"context"
	"errors"
	"fmt"

	"sgcsc-backend/internal/apperrors"
	"sgcsc-backend/internal/auth"
	"sgcsc-backend/internal/models"
	"sgcsc-backend/internal/store"
)

type kind int

const (
	kindNone kind = iota
	kindAll
	kindFranchise
	kindSelf
)

// Scope is the set of student records one principal may touch. The zero
// value permits nothing.
type Scope struct {
	kind        kind
	franchiseID uint
	studentID   uint
}

func (s Scope) Unscoped() bool { return s.kind == kindAll }

// FranchiseID is the franchise a FRANCHISE scope is pinned to.
func (s Scope) FranchiseID() (uint, bool) {
	return s.franchiseID, s.kind == kindFranchise
}

// Filter rewrites a list filter to the scope. A franchise_id supplied by a
// FRANCHISE caller is replaced with its own. STUDENT scopes cannot list.
func (s Scope) Filter(f store.StudentFilter) (store.StudentFilter, error) {
	switch s.kind {
	case kindAll:
		return f, nil
	case kindFranchise:
		id := s.franchiseID
		f.FranchiseID = &id
		return f, nil
	}
	return f, apperrors.ErrForbidden
}

// AssignFranchise resolves the franchise a created or moved student will
// belong to. FRANCHISE callers get their own id and may not name another.
func (s Scope) AssignFranchise(requested *uint) (uint, error) {
	switch s.kind {
	case kindAll:
		if requested == nil || *requested == 0 {
			return 0, apperrors.Invalid("franchise_id is required")
		}
		return *requested, nil
	case kindFranchise:
		if requested != nil && *requested != 0 && *requested != s.franchiseID {
			return 0, apperrors.ErrForbidden
		}
		return s.franchiseID, nil
	}
	return 0, apperrors.ErrForbidden
}

// Permits reports whether a single student record is inside the scope.
func (s Scope) Permits(st *models.Student) bool {
	if st == nil {
		return false
	}
	switch s.kind {
	case kindAll:
		return true
	case kindFranchise:
		return st.FranchiseID == s.franchiseID
	case kindSelf:
		return st.ID == s.studentID
	}
	return false
}

// CanWrite is false for STUDENT scopes, which are read-only.
func (s Scope) CanWrite() bool {
	return s.kind == kindAll || s.kind == kindFranchise
}

// Student loads one record through the scope. Scoped callers get
// apperrors.ErrForbidden both for foreign and for missing ids.
func (s Scope) Student(ctx context.Context, st store.Students, id uint) (*models.Student, error) {
	if s.kind == kindNone {
		return nil, apperrors.ErrForbidden
	}
	rec, err := st.StudentByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) && !s.Unscoped() {
			return nil, apperrors.ErrForbidden
		}
		return nil, err
	}
	if !s.Permits(rec) {
		return nil, apperrors.ErrForbidden
	}
	return rec, nil
}

type franchiseLookup interface {
	FranchiseByID(ctx context.Context, id uint) (*models.Franchise, error)
}

type Scoper struct {
	franchises franchiseLookup
}

func NewScoper(franchises franchiseLookup) *Scoper {
	return &Scoper{franchises: franchises}
}

// StudentScope resolves the principal's scope. A FRANCHISE principal whose
// franchise no longer exists has no scope at all.
func (s *Scoper) StudentScope(ctx context.Context, p *auth.Principal) (Scope, error) {
	switch p.Role {
	case models.RoleAdmin:
		return Scope{kind: kindAll}, nil
	case models.RoleFranchise:
		owner, ok := p.Owner()
		if !ok {
			return Scope{}, apperrors.ErrForbidden
		}
		if _, err := s.franchises.FranchiseByID(ctx, owner); err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return Scope{}, apperrors.ErrForbidden
			}
			return Scope{}, fmt.Errorf("load franchise: %w", err)
		}
		return Scope{kind: kindFranchise, franchiseID: owner}, nil
	case models.RoleStudent:
		owner, ok := p.Owner()
		if !ok {
			return Scope{}, apperrors.ErrForbidden
		}
		return Scope{kind: kindSelf, studentID: owner}, nil
	}
	return Scope{}, apperrors.ErrForbidden
}
