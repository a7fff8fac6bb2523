package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sgcsc-backend/internal/apperrors"
	"sgcsc-backend/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

var uniqueConstraints = map[string]error{
	"uq_credentials_username":    apperrors.ErrDuplicateUsername,
	"uq_franchises_institute_id": apperrors.ErrDuplicateInstituteID,
	"uq_students_enrollment_no":  apperrors.ErrDuplicateEnrollmentNo,
	"uq_courses_code":            apperrors.ErrDuplicateCode,
}

// translate maps driver errors onto the apperrors taxonomy.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			if mapped, ok := uniqueConstraints[pgErr.ConstraintName]; ok {
				return mapped
			}
			return fmt.Errorf("%w: %s", apperrors.ErrConflict, pgErr.ConstraintName)
		case pgForeignKeyViolation:
			return fmt.Errorf("%w: %s", apperrors.ErrConflict, pgErr.ConstraintName)
		}
	}
	return err
}

var _ Store = (*GormStore)(nil)

type GormStore struct {
	db *gorm.DB
}

func NewGorm(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) q(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (s *GormStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	return s.q(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

// Lock takes a transaction scoped Postgres advisory lock keyed by name.
func (s *GormStore) Lock(ctx context.Context, name string) error {
	return translate(s.q(ctx).Exec("SELECT pg_advisory_xact_lock(hashtext(?))", name).Error)
}

func deleteByID[T any](db *gorm.DB, id uint) error {
	res := db.Delete(new(T), id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func like(s string) string {
	return "%" + strings.ToLower(strings.TrimSpace(s)) + "%"
}

// ---------------- credentials ----------------

func (s *GormStore) CreateCredential(ctx context.Context, c *models.Credential) error {
	return translate(s.q(ctx).Create(c).Error)
}

func (s *GormStore) CredentialByID(ctx context.Context, id uint) (*models.Credential, error) {
	var c models.Credential
	if err := s.q(ctx).First(&c, id).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (s *GormStore) CredentialByUsername(ctx context.Context, username string) (*models.Credential, error) {
	var c models.Credential
	if err := s.q(ctx).Where("username = ?", username).First(&c).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (s *GormStore) CredentialByOwner(ctx context.Context, role models.Role, ownerID uint) (*models.Credential, error) {
	var c models.Credential
	if err := s.q(ctx).Where("role = ? AND owner_id = ?", role, ownerID).First(&c).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (s *GormStore) DeleteCredentialsByOwner(ctx context.Context, role models.Role, ownerID uint) error {
	return translate(s.q(ctx).Where("role = ? AND owner_id = ?", role, ownerID).Delete(&models.Credential{}).Error)
}

func (s *GormStore) CountCredentialsByRole(ctx context.Context, role models.Role) (int64, error) {
	var n int64
	err := s.q(ctx).Model(&models.Credential{}).Where("role = ?", role).Count(&n).Error
	return n, translate(err)
}

// ---------------- franchises ----------------

func (s *GormStore) franchiseQuery(ctx context.Context, f FranchiseFilter) *gorm.DB {
	q := s.q(ctx).Model(&models.Franchise{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Search != "" {
		p := like(f.Search)
		q = q.Where("LOWER(institute_name) LIKE ? OR LOWER(institute_id) LIKE ? OR LOWER(city) LIKE ?", p, p, p)
	}
	return q
}

func (s *GormStore) CreateFranchise(ctx context.Context, f *models.Franchise) error {
	return translate(s.q(ctx).Create(f).Error)
}

func (s *GormStore) FranchiseByID(ctx context.Context, id uint) (*models.Franchise, error) {
	var f models.Franchise
	if err := s.q(ctx).First(&f, id).Error; err != nil {
		return nil, translate(err)
	}
	return &f, nil
}

func (s *GormStore) FranchiseByInstituteID(ctx context.Context, instituteID string) (*models.Franchise, error) {
	var f models.Franchise
	if err := s.q(ctx).Where("institute_id = ?", instituteID).First(&f).Error; err != nil {
		return nil, translate(err)
	}
	return &f, nil
}

func (s *GormStore) ListFranchises(ctx context.Context, filter FranchiseFilter) ([]models.Franchise, error) {
	var list []models.Franchise
	err := s.franchiseQuery(ctx, filter).Order("created_at DESC").Find(&list).Error
	return list, translate(err)
}

func (s *GormStore) CountFranchises(ctx context.Context, filter FranchiseFilter) (int64, error) {
	var n int64
	err := s.franchiseQuery(ctx, filter).Count(&n).Error
	return n, translate(err)
}

func (s *GormStore) UpdateFranchise(ctx context.Context, f *models.Franchise) error {
	return translate(s.q(ctx).Save(f).Error)
}

func (s *GormStore) DeleteFranchise(ctx context.Context, id uint) error {
	return deleteByID[models.Franchise](s.q(ctx), id)
}

// ---------------- students ----------------

func (s *GormStore) studentQuery(ctx context.Context, f StudentFilter) *gorm.DB {
	q := s.q(ctx).Model(&models.Student{})
	if f.FranchiseID != nil {
		q = q.Where("franchise_id = ?", *f.FranchiseID)
	}
	if f.CourseID != nil {
		q = q.Where("course_id = ?", *f.CourseID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Search != "" {
		p := like(f.Search)
		q = q.Where("LOWER(name) LIKE ? OR LOWER(enrollment_no) LIKE ?", p, p)
	}
	return q
}

func (s *GormStore) CreateStudent(ctx context.Context, st *models.Student) error {
	return translate(s.q(ctx).Omit(clause.Associations).Create(st).Error)
}

func (s *GormStore) StudentByID(ctx context.Context, id uint) (*models.Student, error) {
	var st models.Student
	if err := s.q(ctx).Preload("Course").Preload("Franchise").First(&st, id).Error; err != nil {
		return nil, translate(err)
	}
	return &st, nil
}

func (s *GormStore) StudentByEnrollmentNo(ctx context.Context, enrollmentNo string) (*models.Student, error) {
	var st models.Student
	err := s.q(ctx).Preload("Course").Preload("Franchise").
		Where("enrollment_no = ?", enrollmentNo).First(&st).Error
	if err != nil {
		return nil, translate(err)
	}
	return &st, nil
}

func (s *GormStore) ListStudents(ctx context.Context, filter StudentFilter) ([]models.Student, error) {
	var list []models.Student
	err := s.studentQuery(ctx, filter).
		Preload("Course").Preload("Franchise").
		Order("created_at DESC").
		Find(&list).Error
	return list, translate(err)
}

func (s *GormStore) CountStudents(ctx context.Context, filter StudentFilter) (int64, error) {
	var n int64
	err := s.studentQuery(ctx, filter).Count(&n).Error
	return n, translate(err)
}

func (s *GormStore) UpdateStudent(ctx context.Context, st *models.Student) error {
	return translate(s.q(ctx).Omit(clause.Associations).Save(st).Error)
}

func (s *GormStore) DeleteStudent(ctx context.Context, id uint) error {
	return deleteByID[models.Student](s.q(ctx), id)
}

// ---------------- catalog ----------------

func (s *GormStore) CreateCourse(ctx context.Context, c *models.Course) error {
	return translate(s.q(ctx).Create(c).Error)
}

func (s *GormStore) CourseByID(ctx context.Context, id uint) (*models.Course, error) {
	var c models.Course
	if err := s.q(ctx).First(&c, id).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (s *GormStore) ListCourses(ctx context.Context) ([]models.Course, error) {
	var list []models.Course
	err := s.q(ctx).Order("name ASC").Find(&list).Error
	return list, translate(err)
}

func (s *GormStore) CountCourses(ctx context.Context) (int64, error) {
	var n int64
	err := s.q(ctx).Model(&models.Course{}).Count(&n).Error
	return n, translate(err)
}

func (s *GormStore) UpdateCourse(ctx context.Context, c *models.Course) error {
	return translate(s.q(ctx).Save(c).Error)
}

func (s *GormStore) DeleteCourse(ctx context.Context, id uint) error {
	return deleteByID[models.Course](s.q(ctx), id)
}

func (s *GormStore) CreateSubject(ctx context.Context, sub *models.Subject) error {
	return translate(s.q(ctx).Create(sub).Error)
}

func (s *GormStore) SubjectByID(ctx context.Context, id uint) (*models.Subject, error) {
	var sub models.Subject
	if err := s.q(ctx).First(&sub, id).Error; err != nil {
		return nil, translate(err)
	}
	return &sub, nil
}

func (s *GormStore) ListSubjects(ctx context.Context, courseID *uint) ([]models.Subject, error) {
	q := s.q(ctx).Model(&models.Subject{})
	if courseID != nil {
		q = q.Where("course_id = ?", *courseID)
	}
	var list []models.Subject
	err := q.Order("id ASC").Find(&list).Error
	return list, translate(err)
}

func (s *GormStore) UpdateSubject(ctx context.Context, sub *models.Subject) error {
	return translate(s.q(ctx).Save(sub).Error)
}

func (s *GormStore) DeleteSubject(ctx context.Context, id uint) error {
	return deleteByID[models.Subject](s.q(ctx), id)
}

// ---------------- content ----------------

type gormRecords[T any] struct {
	db *gorm.DB
}

func (r gormRecords[T]) Create(ctx context.Context, v *T) error {
	return translate(r.db.WithContext(ctx).Create(v).Error)
}

func (r gormRecords[T]) Get(ctx context.Context, id uint) (*T, error) {
	var v T
	if err := r.db.WithContext(ctx).First(&v, id).Error; err != nil {
		return nil, translate(err)
	}
	return &v, nil
}

func (r gormRecords[T]) List(ctx context.Context) ([]T, error) {
	var list []T
	err := r.db.WithContext(ctx).Order("id DESC").Find(&list).Error
	return list, translate(err)
}

func (r gormRecords[T]) Update(ctx context.Context, v *T) error {
	return translate(r.db.WithContext(ctx).Save(v).Error)
}

func (r gormRecords[T]) Delete(ctx context.Context, id uint) error {
	return deleteByID[T](r.db.WithContext(ctx), id)
}

func (r gormRecords[T]) ByEnrollmentNo(ctx context.Context, enrollmentNo string) ([]T, error) {
	var list []T
	err := r.db.WithContext(ctx).Where("enrollment_no = ?", enrollmentNo).Order("id DESC").Find(&list).Error
	return list, translate(err)
}

func (s *GormStore) AdmitCards() EnrolledRecords[models.AdmitCard] {
	return gormRecords[models.AdmitCard]{db: s.db}
}

func (s *GormStore) Certificates() EnrolledRecords[models.Certificate] {
	return gormRecords[models.Certificate]{db: s.db}
}

func (s *GormStore) Results() EnrolledRecords[models.Result] {
	return gormRecords[models.Result]{db: s.db}
}

func (s *GormStore) Materials() Records[models.StudyMaterial] {
	return gormRecords[models.StudyMaterial]{db: s.db}
}

func (s *GormStore) Assignments() Records[models.Assignment] {
	return gormRecords[models.Assignment]{db: s.db}
}

func (s *GormStore) Members() Records[models.InstituteMember] {
	return gormRecords[models.InstituteMember]{db: s.db}
}

func (s *GormStore) Gallery() Records[models.GalleryItem] {
	return gormRecords[models.GalleryItem]{db: s.db}
}

func (s *GormStore) SiteSettings(ctx context.Context) (*models.SiteSettings, error) {
	var st models.SiteSettings
	err := s.q(ctx).First(&st, 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		def := models.DefaultSiteSettings()
		return &def, nil
	}
	if err != nil {
		return nil, translate(err)
	}
	return &st, nil
}

func (s *GormStore) SaveSiteSettings(ctx context.Context, st *models.SiteSettings) error {
	st.ID = 1
	return translate(s.q(ctx).Save(st).Error)
}

// ---------------- audit ----------------

func (s *GormStore) CreateAuditLog(ctx context.Context, l *models.AuditLog) error {
	return translate(s.q(ctx).Create(l).Error)
}

func (s *GormStore) ListAuditLogs(ctx context.Context, f AuditFilter) ([]models.AuditLog, error) {
	q := s.q(ctx).Model(&models.AuditLog{})
	if f.FranchiseID != nil {
		q = q.Where("franchise_id = ?", *f.FranchiseID)
	}
	if f.EntityType != "" {
		q = q.Where("entity_type = ?", f.EntityType)
	}
	if f.EntityID != nil {
		q = q.Where("entity_id = ?", *f.EntityID)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var list []models.AuditLog
	err := q.Order("created_at DESC").Find(&list).Error
	return list, translate(err)
}
