// Package store defines the persistence contracts of the service and ships
// two implementations: GORM over PostgreSQL and an in-process memory store
// used for local development and tests.
//
// Lookups of missing rows return apperrors.ErrNotFound; unique index
// violations return the matching apperrors duplicate error.
package store

import (
	"context"

	"sgcsc-backend/internal/models"
)

type StudentFilter struct {
	FranchiseID *uint
	CourseID    *uint
	Status      models.StudentStatus
	Search      string // name or enrollment number, case-insensitive
}

type FranchiseFilter struct {
	Status models.FranchiseStatus
	Search string // institute name, institute id or city
}

type AuditFilter struct {
	FranchiseID *uint
	EntityType  string
	EntityID    *uint
	Limit       int
}

type Credentials interface {
	CreateCredential(ctx context.Context, c *models.Credential) error
	CredentialByID(ctx context.Context, id uint) (*models.Credential, error)
	CredentialByUsername(ctx context.Context, username string) (*models.Credential, error)
	CredentialByOwner(ctx context.Context, role models.Role, ownerID uint) (*models.Credential, error)
	DeleteCredentialsByOwner(ctx context.Context, role models.Role, ownerID uint) error
	CountCredentialsByRole(ctx context.Context, role models.Role) (int64, error)
}

type Franchises interface {
	CreateFranchise(ctx context.Context, f *models.Franchise) error
	FranchiseByID(ctx context.Context, id uint) (*models.Franchise, error)
	FranchiseByInstituteID(ctx context.Context, instituteID string) (*models.Franchise, error)
	ListFranchises(ctx context.Context, filter FranchiseFilter) ([]models.Franchise, error)
	CountFranchises(ctx context.Context, filter FranchiseFilter) (int64, error)
	UpdateFranchise(ctx context.Context, f *models.Franchise) error
	DeleteFranchise(ctx context.Context, id uint) error
}

// Students loads Course and Franchise on every returned record.
type Students interface {
	CreateStudent(ctx context.Context, s *models.Student) error
	StudentByID(ctx context.Context, id uint) (*models.Student, error)
	StudentByEnrollmentNo(ctx context.Context, enrollmentNo string) (*models.Student, error)
	ListStudents(ctx context.Context, filter StudentFilter) ([]models.Student, error)
	CountStudents(ctx context.Context, filter StudentFilter) (int64, error)
	UpdateStudent(ctx context.Context, s *models.Student) error
	DeleteStudent(ctx context.Context, id uint) error
}

type Catalog interface {
	CreateCourse(ctx context.Context, c *models.Course) error
	CourseByID(ctx context.Context, id uint) (*models.Course, error)
	ListCourses(ctx context.Context) ([]models.Course, error)
	CountCourses(ctx context.Context) (int64, error)
	UpdateCourse(ctx context.Context, c *models.Course) error
	DeleteCourse(ctx context.Context, id uint) error

	CreateSubject(ctx context.Context, s *models.Subject) error
	SubjectByID(ctx context.Context, id uint) (*models.Subject, error)
	ListSubjects(ctx context.Context, courseID *uint) ([]models.Subject, error)
	UpdateSubject(ctx context.Context, s *models.Subject) error
	DeleteSubject(ctx context.Context, id uint) error
}

// Records is the plain CRUD surface of the content tables.
type Records[T any] interface {
	Create(ctx context.Context, v *T) error
	Get(ctx context.Context, id uint) (*T, error)
	List(ctx context.Context) ([]T, error)
	Update(ctx context.Context, v *T) error
	Delete(ctx context.Context, id uint) error
}

// EnrolledRecords are content rows keyed by a student's enrollment number.
type EnrolledRecords[T any] interface {
	Records[T]
	ByEnrollmentNo(ctx context.Context, enrollmentNo string) ([]T, error)
}

type Content interface {
	AdmitCards() EnrolledRecords[models.AdmitCard]
	Certificates() EnrolledRecords[models.Certificate]
	Results() EnrolledRecords[models.Result]
	Materials() Records[models.StudyMaterial]
	Assignments() Records[models.Assignment]
	Members() Records[models.InstituteMember]
	Gallery() Records[models.GalleryItem]

	SiteSettings(ctx context.Context) (*models.SiteSettings, error)
	SaveSiteSettings(ctx context.Context, s *models.SiteSettings) error
}

type AuditLogs interface {
	CreateAuditLog(ctx context.Context, l *models.AuditLog) error
	ListAuditLogs(ctx context.Context, filter AuditFilter) ([]models.AuditLog, error)
}

type Store interface {
	Credentials
	Franchises
	Students
	Catalog
	Content
	AuditLogs

	// Lock blocks until the named lock is held and keeps it until the
	// surrounding transaction ends. Call it inside WithTx.
	Lock(ctx context.Context, name string) error

	// WithTx runs fn atomically. Nested calls join the outer transaction.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}
