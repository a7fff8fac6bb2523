package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"sgcsc-backend/internal/apperrors"
	"sgcsc-backend/internal/metrics"
	"sgcsc-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const CtxPrincipalKey = "principal"

// Principal is the authenticated caller of one request.
type Principal struct {
	CredentialID uint
	Username     string
	Name         string
	Role         models.Role
	OwnerID      *uint
	TokenID      string
	ExpiresAt    time.Time

	// Owning franchise, loaded for FRANCHISE principals only.
	Franchise *models.Franchise
}

// Guest stands for a request that carried no session.
var Guest = &Principal{Role: models.RoleGuest}

func (p *Principal) Owner() (uint, bool) {
	if p == nil || p.OwnerID == nil {
		return 0, false
	}
	return *p.OwnerID, true
}

func (p *Principal) Is(role models.Role) bool {
	return p != nil && p.Role == role
}

// Requirement is what a route demands of its caller.
type Requirement struct {
	Roles []models.Role
	// AllowInactive lets FRANCHISE principals whose franchise is not active
	// through. Only own-profile reads set it.
	AllowInactive bool
}

type principalStore interface {
	CredentialByID(ctx context.Context, id uint) (*models.Credential, error)
	FranchiseByID(ctx context.Context, id uint) (*models.Franchise, error)
	StudentByID(ctx context.Context, id uint) (*models.Student, error)
}

// Guard turns a bearer token into a Principal, or into
// apperrors.ErrUnauthenticated / apperrors.ErrForbidden.
type Guard struct {
	issuer  *Issuer
	store   principalStore
	revoker Revoker
	log     *zap.Logger
}

func NewGuard(issuer *Issuer, st principalStore, revoker Revoker, log *zap.Logger) *Guard {
	return &Guard{issuer: issuer, store: st, revoker: revoker, log: log}
}

func (g *Guard) Authorize(ctx context.Context, token string, req Requirement) (*Principal, error) {
	if token == "" {
		return nil, apperrors.ErrUnauthenticated
	}
	claims, err := g.issuer.Parse(token)
	if err != nil {
		return nil, err
	}
	revoked, err := g.revoker.Revoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, apperrors.ErrUnauthenticated
	}

	credID, err := claims.CredentialID()
	if err != nil {
		return nil, err
	}
	cred, err := g.store.CredentialByID(ctx, credID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.ErrUnauthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}
	if cred.Role != claims.Role || !sameOwner(cred.OwnerID, claims.OwnerID) {
		return nil, apperrors.ErrUnauthenticated
	}

	if !slices.Contains(req.Roles, cred.Role) {
		return nil, apperrors.ErrForbidden
	}

	p := &Principal{
		CredentialID: cred.ID,
		Username:     cred.Username,
		Name:         cred.Name,
		Role:         cred.Role,
		OwnerID:      cred.OwnerID,
		TokenID:      claims.ID,
		ExpiresAt:    claims.ExpiresAt.Time,
	}

	switch cred.Role {
	case models.RoleFranchise:
		f, err := g.store.FranchiseByID(ctx, *cred.OwnerID)
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrForbidden
		}
		if err != nil {
			return nil, fmt.Errorf("load franchise: %w", err)
		}
		if f.Status != models.FranchiseActive && !req.AllowInactive {
			return nil, apperrors.ErrForbidden
		}
		p.Franchise = f
	case models.RoleStudent:
		if _, err := g.store.StudentByID(ctx, *cred.OwnerID); err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, apperrors.ErrForbidden
			}
			return nil, fmt.Errorf("load student: %w", err)
		}
	}
	return p, nil
}

func sameOwner(a, b *uint) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Require admits callers whose role is one of roles. FRANCHISE callers also
// need an active franchise.
func (g *Guard) Require(roles ...models.Role) fiber.Handler {
	return g.middleware(Requirement{Roles: roles})
}

// RequireProfile is Require for own-profile reads, which stay reachable while
// a franchise is pending or suspended.
func (g *Guard) RequireProfile(roles ...models.Role) fiber.Handler {
	return g.middleware(Requirement{Roles: roles, AllowInactive: true})
}

func (g *Guard) middleware(req Requirement) fiber.Handler {
	if len(req.Roles) == 0 {
		panic("auth: route must declare at least one role")
	}
	return func(c *fiber.Ctx) error {
		token, _ := BearerToken(c.Get(fiber.HeaderAuthorization))
		p, err := g.Authorize(c.UserContext(), token, req)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrUnauthenticated):
				metrics.AccessDenied.WithLabelValues("unauthenticated").Inc()
			case errors.Is(err, apperrors.ErrForbidden):
				metrics.AccessDenied.WithLabelValues("forbidden").Inc()
				g.log.Debug("access denied",
					zap.String("path", c.Path()),
					zap.Error(err),
				)
			}
			return apperrors.HTTP(err)
		}
		c.Locals(CtxPrincipalKey, p)
		return c.Next()
	}
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" header.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// PrincipalFrom returns the caller stored by the guard, or Guest.
func PrincipalFrom(c *fiber.Ctx) *Principal {
	if p, ok := c.Locals(CtxPrincipalKey).(*Principal); ok && p != nil {
		return p
	}
	return Guest
}
