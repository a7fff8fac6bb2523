package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sgcsc-backend/internal/apperrors"
	"sgcsc-backend/internal/models"
	"sgcsc-backend/internal/store"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt ignores everything after the first 72 bytes.
const maxPasswordBytes = 72

// NewCredential is the input of CredentialService.Create.
type NewCredential struct {
	Username string
	Password string
	Name     string
	Role     models.Role
	OwnerID  *uint
}

// CredentialService owns password hashing and verification. Role is never
// updated after Create.
type CredentialService struct {
	store     store.Store
	cost      int
	dummyHash []byte
}

func NewCredentialService(st store.Store, cost int) *CredentialService {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	// Compared against when the username is unknown so both failure paths
	// spend the same time in bcrypt.
	dummy, _ := bcrypt.GenerateFromPassword([]byte("sgcsc-unknown-user"), cost)
	return &CredentialService{store: st, cost: cost, dummyHash: dummy}
}

// With returns a service bound to another store, typically a transaction.
func (s *CredentialService) With(st store.Store) *CredentialService {
	cp := *s
	cp.store = st
	return &cp
}

func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func (s *CredentialService) Create(ctx context.Context, in NewCredential) (*models.Credential, error) {
	username := NormalizeUsername(in.Username)
	name := strings.TrimSpace(in.Name)

	switch {
	case username == "":
		return nil, apperrors.Invalid("username is required")
	case in.Password == "":
		return nil, apperrors.Invalid("password is required")
	case len(in.Password) > maxPasswordBytes:
		return nil, apperrors.Invalid("password must be at most %d bytes", maxPasswordBytes)
	case name == "":
		return nil, apperrors.Invalid("name is required")
	case !in.Role.Valid():
		return nil, apperrors.Invalid("role %q cannot log in", in.Role)
	case in.Role.RequiresOwner() && in.OwnerID == nil:
		return nil, apperrors.Invalid("%s credentials need an owner", in.Role)
	case !in.Role.RequiresOwner() && in.OwnerID != nil:
		return nil, apperrors.Invalid("%s credentials cannot have an owner", in.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	cred := &models.Credential{
		Username:     username,
		PasswordHash: string(hash),
		Name:         name,
		Role:         in.Role,
		OwnerID:      in.OwnerID,
	}
	if err := s.store.CreateCredential(ctx, cred); err != nil {
		return nil, fmt.Errorf("create credential: %w", err)
	}
	return cred, nil
}

// Verify returns the credential matching username and password, or
// apperrors.ErrInvalidCredentials without saying which one was wrong.
func (s *CredentialService) Verify(ctx context.Context, username, password string) (*models.Credential, error) {
	cred, err := s.store.CredentialByUsername(ctx, NormalizeUsername(username))
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("load credential: %w", err)
		}
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return nil, apperrors.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return nil, apperrors.ErrInvalidCredentials
	}
	return cred, nil
}

// FindByOwner returns apperrors.ErrNotFound when the profile has no login.
func (s *CredentialService) FindByOwner(ctx context.Context, role models.Role, ownerID uint) (*models.Credential, error) {
	return s.store.CredentialByOwner(ctx, role, ownerID)
}

// DeleteForOwner removes the login of a profile that is being deleted.
func (s *CredentialService) DeleteForOwner(ctx context.Context, role models.Role, ownerID uint) error {
	if err := s.store.DeleteCredentialsByOwner(ctx, role, ownerID); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

// seedAdminLock serializes concurrent seed calls between the admin count and
// the insert.
const seedAdminLock = "seed-admin"

// SeedAdmin creates the first ADMIN. It fails with apperrors.ErrConflict once
// any ADMIN exists.
func (s *CredentialService) SeedAdmin(ctx context.Context, username, password, name string) (*models.Credential, error) {
	if strings.TrimSpace(name) == "" {
		name = "Super Admin"
	}
	var out *models.Credential
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		if err := tx.Lock(ctx, seedAdminLock); err != nil {
			return fmt.Errorf("lock admin seed: %w", err)
		}
		n, err := tx.CountCredentialsByRole(ctx, models.RoleAdmin)
		if err != nil {
			return fmt.Errorf("count admins: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("admin already exists: %w", apperrors.ErrConflict)
		}
		cred, err := s.With(tx).Create(ctx, NewCredential{
			Username: username,
			Password: password,
			Name:     name,
			Role:     models.RoleAdmin,
		})
		if err != nil {
			return err
		}
		out = cred
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
