package dashboard

import (
	"context"

	"sgcsc-backend/internal/access"
	"sgcsc-backend/internal/apperrors"
	"sgcsc-backend/internal/auth"
	"sgcsc-backend/internal/models"
	"sgcsc-backend/internal/store"

	"github.com/gofiber/fiber/v2"
)

type StudentCounts struct {
	Total     int64 `json:"total"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Dropout   int64 `json:"dropout"`
}

type FranchiseCounts struct {
	Total     int64 `json:"total"`
	Active    int64 `json:"active"`
	Pending   int64 `json:"pending"`
	Suspended int64 `json:"suspended"`
}

// Stats is the dashboard payload. Franchises and PendingApplications are
// only filled for ADMIN.
type Stats struct {
	Students            StudentCounts    `json:"students"`
	Courses             int64            `json:"courses"`
	Franchises          *FranchiseCounts `json:"franchises,omitempty"`
	PendingApplications *int64           `json:"pending_applications,omitempty"`
}

type Service struct {
	store  store.Store
	scoper *access.Scoper
}

func NewService(st store.Store, scoper *access.Scoper) *Service {
	return &Service{store: st, scoper: scoper}
}

// Stats counts what the caller may see. FRANCHISE callers get their own
// students only.
func (s *Service) Stats(ctx context.Context, p *auth.Principal) (*Stats, error) {
	scope, err := s.scoper.StudentScope(ctx, p)
	if err != nil {
		return nil, err
	}
	if !scope.CanWrite() {
		return nil, apperrors.ErrForbidden
	}

	out := &Stats{}
	if out.Students, err = s.studentCounts(ctx, scope); err != nil {
		return nil, err
	}
	if out.Courses, err = s.store.CountCourses(ctx); err != nil {
		return nil, err
	}
	if !scope.Unscoped() {
		return out, nil
	}

	fc := &FranchiseCounts{}
	for status, dst := range map[models.FranchiseStatus]*int64{
		"":                        &fc.Total,
		models.FranchiseActive:    &fc.Active,
		models.FranchisePending:   &fc.Pending,
		models.FranchiseSuspended: &fc.Suspended,
	} {
		if *dst, err = s.store.CountFranchises(ctx, store.FranchiseFilter{Status: status}); err != nil {
			return nil, err
		}
	}
	out.Franchises = fc
	out.PendingApplications = &fc.Pending
	return out, nil
}

func (s *Service) studentCounts(ctx context.Context, scope access.Scope) (StudentCounts, error) {
	var sc StudentCounts
	for status, dst := range map[models.StudentStatus]*int64{
		"":                      &sc.Total,
		models.StudentActive:    &sc.Active,
		models.StudentCompleted: &sc.Completed,
		models.StudentDropout:   &sc.Dropout,
	} {
		filter, err := scope.Filter(store.StudentFilter{Status: status})
		if err != nil {
			return sc, err
		}
		if *dst, err = s.store.CountStudents(ctx, filter); err != nil {
			return sc, err
		}
	}
	return sc, nil
}

// GET /api/dashboard/stats
func StatsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		stats, err := svc.Stats(c.UserContext(), auth.PrincipalFrom(c))
		if err != nil {
			return apperrors.HTTP(err)
		}
		return c.JSON(stats)
	}
}
