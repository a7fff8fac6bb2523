// Package content serves the institute's published material: exam
// records looked up by enrollment number, study material, the public
// website sections and site settings.
package content

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sgcsc-backend/internal/apperrors"
	"sgcsc-backend/internal/auth"
	"sgcsc-backend/internal/models"
	"sgcsc-backend/internal/request"
	"sgcsc-backend/internal/store"

	"go.uber.org/zap"
)

// Collection is ADMIN-managed CRUD over one content table. prepare, when
// set, normalizes a row and checks its references before every write.
type Collection[T any] struct {
	name    string
	store   store.Store
	records func(store.Store) store.Records[T]
	setID   func(*T, uint)
	prepare func(ctx context.Context, st store.Store, v *T) error
	log     *zap.Logger
}

func (c *Collection[T]) Name() string { return c.name }

func (c *Collection[T]) List(ctx context.Context) ([]T, error) {
	return c.records(c.store).List(ctx)
}

func (c *Collection[T]) Get(ctx context.Context, id uint) (*T, error) {
	return c.records(c.store).Get(ctx, id)
}

func (c *Collection[T]) check(ctx context.Context, v *T) error {
	if err := request.Struct(v); err != nil {
		return err
	}
	if c.prepare != nil {
		return c.prepare(ctx, c.store, v)
	}
	return nil
}

func (c *Collection[T]) Create(ctx context.Context, actor *auth.Principal, v *T) error {
	c.setID(v, 0)
	if err := c.check(ctx, v); err != nil {
		return err
	}
	if err := c.records(c.store).Create(ctx, v); err != nil {
		return fmt.Errorf("create %s: %w", c.name, err)
	}
	c.log.Info("content created", zap.String("kind", c.name), zap.Uint("actor_id", actor.CredentialID))
	return nil
}

func (c *Collection[T]) Update(ctx context.Context, actor *auth.Principal, id uint, v *T) error {
	if _, err := c.Get(ctx, id); err != nil {
		return err
	}
	c.setID(v, id)
	if err := c.check(ctx, v); err != nil {
		return err
	}
	if err := c.records(c.store).Update(ctx, v); err != nil {
		return fmt.Errorf("update %s: %w", c.name, err)
	}
	c.log.Info("content updated", zap.String("kind", c.name), zap.Uint("id", id), zap.Uint("actor_id", actor.CredentialID))
	return nil
}

func (c *Collection[T]) Delete(ctx context.Context, actor *auth.Principal, id uint) error {
	if err := c.records(c.store).Delete(ctx, id); err != nil {
		return err
	}
	c.log.Info("content deleted", zap.String("kind", c.name), zap.Uint("id", id), zap.Uint("actor_id", actor.CredentialID))
	return nil
}

// Enrolled is a Collection whose rows belong to a student through the
// enrollment number.
type Enrolled[T any] struct {
	*Collection[T]
	enrolled func(store.Store) store.EnrolledRecords[T]
}

// ByEnrollmentNo returns apperrors.ErrNotFound when the student has no rows.
func (e *Enrolled[T]) ByEnrollmentNo(ctx context.Context, enrollmentNo string) ([]T, error) {
	no := normalizeEnrollmentNo(enrollmentNo)
	if no == "" {
		return nil, apperrors.ErrNotFound
	}
	list, err := e.enrolled(e.store).ByEnrollmentNo(ctx, no)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, apperrors.ErrNotFound
	}
	return list, nil
}

// Mine returns the rows of the STUDENT principal.
func (e *Enrolled[T]) Mine(ctx context.Context, p *auth.Principal) ([]T, error) {
	id, ok := p.Owner()
	if !ok || !p.Is(models.RoleStudent) {
		return nil, apperrors.ErrForbidden
	}
	st, err := e.store.StudentByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrForbidden
		}
		return nil, err
	}
	list, err := e.enrolled(e.store).ByEnrollmentNo(ctx, st.EnrollmentNo)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []T{}
	}
	return list, nil
}

func normalizeEnrollmentNo(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func studentExists(ctx context.Context, st store.Store, enrollmentNo string) error {
	if _, err := st.StudentByEnrollmentNo(ctx, enrollmentNo); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("student %s: %w", enrollmentNo, apperrors.ErrNotFound)
		}
		return err
	}
	return nil
}

func courseExists(ctx context.Context, st store.Store, id uint) error {
	if _, err := st.CourseByID(ctx, id); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("course %d: %w", id, apperrors.ErrNotFound)
		}
		return err
	}
	return nil
}

// Service groups every content collection.
type Service struct {
	store store.Store
	log   *zap.Logger

	AdmitCards   *Enrolled[models.AdmitCard]
	Certificates *Enrolled[models.Certificate]
	Results      *Enrolled[models.Result]
	Materials    *Collection[models.StudyMaterial]
	Assignments  *Collection[models.Assignment]
	Members      *Collection[models.InstituteMember]
	Gallery      *Collection[models.GalleryItem]
}

func NewService(st store.Store, log *zap.Logger) *Service {
	s := &Service{store: st, log: log}

	s.AdmitCards = &Enrolled[models.AdmitCard]{
		Collection: &Collection[models.AdmitCard]{
			name:    "admit_card",
			store:   st,
			records: func(st store.Store) store.Records[models.AdmitCard] { return st.AdmitCards() },
			setID:   func(v *models.AdmitCard, id uint) { v.ID = id },
			prepare: func(ctx context.Context, st store.Store, v *models.AdmitCard) error {
				v.EnrollmentNo = normalizeEnrollmentNo(v.EnrollmentNo)
				if err := studentExists(ctx, st, v.EnrollmentNo); err != nil {
					return err
				}
				return courseExists(ctx, st, v.CourseID)
			},
			log: log,
		},
		enrolled: func(st store.Store) store.EnrolledRecords[models.AdmitCard] { return st.AdmitCards() },
	}

	s.Certificates = &Enrolled[models.Certificate]{
		Collection: &Collection[models.Certificate]{
			name:    "certificate",
			store:   st,
			records: func(st store.Store) store.Records[models.Certificate] { return st.Certificates() },
			setID:   func(v *models.Certificate, id uint) { v.ID = id },
			prepare: func(ctx context.Context, st store.Store, v *models.Certificate) error {
				v.EnrollmentNo = normalizeEnrollmentNo(v.EnrollmentNo)
				return studentExists(ctx, st, v.EnrollmentNo)
			},
			log: log,
		},
		enrolled: func(st store.Store) store.EnrolledRecords[models.Certificate] { return st.Certificates() },
	}

	s.Results = &Enrolled[models.Result]{
		Collection: &Collection[models.Result]{
			name:    "result",
			store:   st,
			records: func(st store.Store) store.Records[models.Result] { return st.Results() },
			setID:   func(v *models.Result, id uint) { v.ID = id },
			prepare: func(ctx context.Context, st store.Store, v *models.Result) error {
				v.EnrollmentNo = normalizeEnrollmentNo(v.EnrollmentNo)
				if err := checkMarks(v.Marks); err != nil {
					return err
				}
				if err := studentExists(ctx, st, v.EnrollmentNo); err != nil {
					return err
				}
				return courseExists(ctx, st, v.CourseID)
			},
			log: log,
		},
		enrolled: func(st store.Store) store.EnrolledRecords[models.Result] { return st.Results() },
	}

	s.Materials = &Collection[models.StudyMaterial]{
		name:    "study_material",
		store:   st,
		records: func(st store.Store) store.Records[models.StudyMaterial] { return st.Materials() },
		setID:   func(v *models.StudyMaterial, id uint) { v.ID = id },
		log:     log,
	}
	s.Assignments = &Collection[models.Assignment]{
		name:    "assignment",
		store:   st,
		records: func(st store.Store) store.Records[models.Assignment] { return st.Assignments() },
		setID:   func(v *models.Assignment, id uint) { v.ID = id },
		log:     log,
	}
	s.Members = &Collection[models.InstituteMember]{
		name:    "member",
		store:   st,
		records: func(st store.Store) store.Records[models.InstituteMember] { return st.Members() },
		setID:   func(v *models.InstituteMember, id uint) { v.ID = id },
		log:     log,
	}
	s.Gallery = &Collection[models.GalleryItem]{
		name:    "gallery",
		store:   st,
		records: func(st store.Store) store.Records[models.GalleryItem] { return st.Gallery() },
		setID:   func(v *models.GalleryItem, id uint) { v.ID = id },
		log:     log,
	}
	return s
}

func (s *Service) Settings(ctx context.Context) (*models.SiteSettings, error) {
	return s.store.SiteSettings(ctx)
}

func (s *Service) SaveSettings(ctx context.Context, actor *auth.Principal, in *models.SiteSettings) (*models.SiteSettings, error) {
	if err := request.Struct(in); err != nil {
		return nil, err
	}
	if err := s.store.SaveSiteSettings(ctx, in); err != nil {
		return nil, fmt.Errorf("save site settings: %w", err)
	}
	s.log.Info("site settings saved", zap.Uint("actor_id", actor.CredentialID))
	return s.store.SiteSettings(ctx)
}
