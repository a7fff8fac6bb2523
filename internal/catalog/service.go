// Package catalog manages courses and their subjects.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sgcsc-backend/internal/apperrors"
	"sgcsc-backend/internal/audit"
	"sgcsc-backend/internal/auth"
	"sgcsc-backend/internal/models"
	"sgcsc-backend/internal/store"

	"go.uber.org/zap"
)

type CourseInput struct {
	Name        string            `json:"name" validate:"required,max=200"`
	Code        string            `json:"code" validate:"required,max=30"`
	Duration    string            `json:"duration" validate:"max=50"`
	Type        models.CourseType `json:"type" validate:"omitempty,oneof='Long Term' 'Short Term' Certificate"`
	Fees        float64           `json:"fees" validate:"gte=0"`
	Description string            `json:"description"`
}

func (in CourseInput) apply(c *models.Course) {
	c.Name = strings.TrimSpace(in.Name)
	c.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	c.Duration = in.Duration
	c.Type = in.Type
	c.Fees = in.Fees
	c.Description = in.Description
}

type SubjectInput struct {
	CourseID uint   `json:"course_id" validate:"required"`
	Name     string `json:"name" validate:"required,max=150"`
	MaxMarks int    `json:"max_marks" validate:"gt=0"`
	MinMarks int    `json:"min_marks" validate:"gte=0"`
}

type Service struct {
	store store.Store
	log   *zap.Logger
}

func NewService(st store.Store, log *zap.Logger) *Service {
	return &Service{store: st, log: log}
}

func (s *Service) ListCourses(ctx context.Context) ([]models.Course, error) {
	return s.store.ListCourses(ctx)
}

func (s *Service) GetCourse(ctx context.Context, id uint) (*models.Course, error) {
	return s.store.CourseByID(ctx, id)
}

func (s *Service) CreateCourse(ctx context.Context, actor *auth.Principal, in CourseInput) (*models.Course, error) {
	c := &models.Course{}
	in.apply(c)
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		if err := tx.CreateCourse(ctx, c); err != nil {
			return fmt.Errorf("create course: %w", err)
		}
		return audit.WriteLog(ctx, tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  "course",
			EntityID:    c.ID,
			Action:      models.AuditActionCreate,
			Description: "course created " + c.Code,
			After:       c,
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("course created", zap.Uint("course_id", c.ID), zap.String("code", c.Code))
	return c, nil
}

func (s *Service) UpdateCourse(ctx context.Context, actor *auth.Principal, id uint, in CourseInput) (*models.Course, error) {
	var out *models.Course
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		c, err := tx.CourseByID(ctx, id)
		if err != nil {
			return err
		}
		before := *c
		in.apply(c)
		if err := tx.UpdateCourse(ctx, c); err != nil {
			return fmt.Errorf("update course: %w", err)
		}
		out = c
		return audit.WriteLog(ctx, tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  "course",
			EntityID:    c.ID,
			Action:      models.AuditActionUpdate,
			Description: "course updated " + c.Code,
			Before:      before,
			After:       c,
		})
	})
	return out, err
}

// DeleteCourse refuses with apperrors.ErrConflict while students or
// subjects still reference the course.
func (s *Service) DeleteCourse(ctx context.Context, actor *auth.Principal, id uint) error {
	return s.store.WithTx(ctx, func(tx store.Store) error {
		c, err := tx.CourseByID(ctx, id)
		if err != nil {
			return err
		}
		n, err := tx.CountStudents(ctx, store.StudentFilter{CourseID: &id})
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("course has %d students: %w", n, apperrors.ErrConflict)
		}
		subjects, err := tx.ListSubjects(ctx, &id)
		if err != nil {
			return err
		}
		if len(subjects) > 0 {
			return fmt.Errorf("course has %d subjects: %w", len(subjects), apperrors.ErrConflict)
		}
		if err := tx.DeleteCourse(ctx, id); err != nil {
			return fmt.Errorf("delete course: %w", err)
		}
		return audit.WriteLog(ctx, tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  "course",
			EntityID:    c.ID,
			Action:      models.AuditActionDelete,
			Description: "course deleted " + c.Code,
			Before:      c,
		})
	})
}

func (s *Service) ListSubjects(ctx context.Context, courseID *uint) ([]models.Subject, error) {
	return s.store.ListSubjects(ctx, courseID)
}

func (s *Service) GetSubject(ctx context.Context, id uint) (*models.Subject, error) {
	return s.store.SubjectByID(ctx, id)
}

func checkSubject(ctx context.Context, tx store.Catalog, in SubjectInput) error {
	if in.MinMarks > in.MaxMarks {
		return apperrors.Invalid("min_marks must not exceed max_marks")
	}
	if _, err := tx.CourseByID(ctx, in.CourseID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("course %d: %w", in.CourseID, apperrors.ErrNotFound)
		}
		return err
	}
	return nil
}

func (s *Service) CreateSubject(ctx context.Context, actor *auth.Principal, in SubjectInput) (*models.Subject, error) {
	sub := &models.Subject{}
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		if err := checkSubject(ctx, tx, in); err != nil {
			return err
		}
		sub.CourseID = in.CourseID
		sub.Name = strings.TrimSpace(in.Name)
		sub.MaxMarks = in.MaxMarks
		sub.MinMarks = in.MinMarks
		if err := tx.CreateSubject(ctx, sub); err != nil {
			return fmt.Errorf("create subject: %w", err)
		}
		return audit.WriteLog(ctx, tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  "subject",
			EntityID:    sub.ID,
			Action:      models.AuditActionCreate,
			Description: "subject created " + sub.Name,
			After:       sub,
		})
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Service) UpdateSubject(ctx context.Context, actor *auth.Principal, id uint, in SubjectInput) (*models.Subject, error) {
	var out *models.Subject
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		sub, err := tx.SubjectByID(ctx, id)
		if err != nil {
			return err
		}
		if err := checkSubject(ctx, tx, in); err != nil {
			return err
		}
		before := *sub
		sub.CourseID = in.CourseID
		sub.Name = strings.TrimSpace(in.Name)
		sub.MaxMarks = in.MaxMarks
		sub.MinMarks = in.MinMarks
		if err := tx.UpdateSubject(ctx, sub); err != nil {
			return fmt.Errorf("update subject: %w", err)
		}
		out = sub
		return audit.WriteLog(ctx, tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  "subject",
			EntityID:    sub.ID,
			Action:      models.AuditActionUpdate,
			Description: "subject updated " + sub.Name,
			Before:      before,
			After:       sub,
		})
	})
	return out, err
}

func (s *Service) DeleteSubject(ctx context.Context, actor *auth.Principal, id uint) error {
	return s.store.WithTx(ctx, func(tx store.Store) error {
		sub, err := tx.SubjectByID(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteSubject(ctx, id); err != nil {
			return fmt.Errorf("delete subject: %w", err)
		}
		return audit.WriteLog(ctx, tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  "subject",
			EntityID:    sub.ID,
			Action:      models.AuditActionDelete,
			Description: "subject deleted " + sub.Name,
			Before:      sub,
		})
	})
}
