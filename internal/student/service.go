package student

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sgcsc-backend/internal/access"
	"sgcsc-backend/internal/apperrors"
	"sgcsc-backend/internal/audit"
	"sgcsc-backend/internal/auth"
	"sgcsc-backend/internal/metrics"
	"sgcsc-backend/internal/models"
	"sgcsc-backend/internal/store"

	"go.uber.org/zap"
)

const entityType = "student"

// Details are the student fields that can be set on create and update.
type Details struct {
	Name       string `json:"name" validate:"required,max=150"`
	Gender     string `json:"gender" validate:"omitempty,oneof=Male Female Other"`
	FatherName string `json:"father_name" validate:"max=150"`
	MotherName string `json:"mother_name" validate:"max=150"`
	DOB        string `json:"dob" validate:"max=20"`
	Email      string `json:"email" validate:"omitempty,email,max=150"`
	Mobile     string `json:"mobile" validate:"max=20"`
	Address    string `json:"address" validate:"max=255"`
	State      string `json:"state" validate:"max=100"`
	District   string `json:"district" validate:"max=100"`

	ExamPass        bool   `json:"exam_pass"`
	MarksPercentage string `json:"marks_percentage" validate:"max=10"`
	Board           string `json:"board" validate:"max=100"`
	PassingYear     string `json:"passing_year" validate:"max=10"`

	CourseID     uint                 `json:"course_id" validate:"required"`
	SessionStart string               `json:"session_start" validate:"max=20"`
	SessionEnd   string               `json:"session_end" validate:"max=20"`
	Photo        string               `json:"photo" validate:"max=255"`
	Status       models.StudentStatus `json:"status" validate:"omitempty,oneof=active completed dropout"`
}

func (d Details) apply(s *models.Student) {
	s.Name = strings.TrimSpace(d.Name)
	s.Gender = d.Gender
	s.FatherName = d.FatherName
	s.MotherName = d.MotherName
	s.DOB = d.DOB
	s.Email = strings.ToLower(strings.TrimSpace(d.Email))
	s.Mobile = d.Mobile
	s.Address = d.Address
	s.State = d.State
	s.District = d.District
	s.ExamPass = d.ExamPass
	s.MarksPercentage = d.MarksPercentage
	s.Board = d.Board
	s.PassingYear = d.PassingYear
	s.CourseID = d.CourseID
	s.SessionStart = d.SessionStart
	s.SessionEnd = d.SessionEnd
	s.Photo = d.Photo
	// An update without a status keeps the stored one.
	if d.Status != "" {
		s.Status = d.Status
	}
	if s.Status == "" {
		s.Status = models.StudentActive
	}
}

type CreateInput struct {
	Details
	EnrollmentNo string
	FranchiseID  *uint
	Username     string
	Password     string
}

type UpdateInput struct {
	Details
	FranchiseID *uint
}

type Service struct {
	store  store.Store
	creds  *auth.CredentialService
	scoper *access.Scoper
	log    *zap.Logger
	now    func() time.Time
}

func NewService(st store.Store, creds *auth.CredentialService, scoper *access.Scoper, log *zap.Logger) *Service {
	return &Service{store: st, creds: creds, scoper: scoper, log: log, now: time.Now}
}

func (s *Service) scope(ctx context.Context, p *auth.Principal) (access.Scope, error) {
	return s.scoper.StudentScope(ctx, p)
}

// checkRefs reports missing courses and franchises as apperrors.ErrNotFound.
func checkRefs(ctx context.Context, tx store.Store, courseID, franchiseID uint) error {
	if _, err := tx.CourseByID(ctx, courseID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("course %d: %w", courseID, apperrors.ErrNotFound)
		}
		return err
	}
	if _, err := tx.FranchiseByID(ctx, franchiseID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("franchise %d: %w", franchiseID, apperrors.ErrNotFound)
		}
		return err
	}
	return nil
}

// Create enrolls a student. FRANCHISE callers can only enroll into their own
// franchise. With username and password a STUDENT login is created in the
// same transaction.
func (s *Service) Create(ctx context.Context, actor *auth.Principal, in CreateInput) (*models.Student, *models.Credential, error) {
	scope, err := s.scope(ctx, actor)
	if err != nil {
		return nil, nil, err
	}
	if !scope.CanWrite() {
		return nil, nil, apperrors.ErrForbidden
	}
	franchiseID, err := scope.AssignFranchise(in.FranchiseID)
	if err != nil {
		return nil, nil, err
	}
	withLogin := strings.TrimSpace(in.Username) != "" || in.Password != ""

	var (
		out  *models.Student
		cred *models.Credential
	)
	err = s.store.WithTx(ctx, func(tx store.Store) error {
		if err := checkRefs(ctx, tx, in.CourseID, franchiseID); err != nil {
			return err
		}
		st := &models.Student{FranchiseID: franchiseID}
		in.Details.apply(st)
		st.EnrollmentNo = strings.ToUpper(strings.TrimSpace(in.EnrollmentNo))
		if st.EnrollmentNo == "" {
			no, err := s.nextEnrollmentNo(ctx, tx)
			if err != nil {
				return err
			}
			st.EnrollmentNo = no
		}
		if err := tx.CreateStudent(ctx, st); err != nil {
			return fmt.Errorf("create student: %w", err)
		}
		if withLogin {
			c, err := s.creds.With(tx).Create(ctx, auth.NewCredential{
				Username: in.Username,
				Password: in.Password,
				Name:     st.Name,
				Role:     models.RoleStudent,
				OwnerID:  &st.ID,
			})
			if err != nil {
				return err
			}
			cred = c
		}
		if err := audit.WriteLog(ctx, tx, audit.LogOptions{
			FranchiseID: &st.FranchiseID,
			Actor:       actor,
			EntityType:  entityType,
			EntityID:    st.ID,
			Action:      models.AuditActionCreate,
			Description: "student enrolled " + st.EnrollmentNo,
			After:       st,
		}); err != nil {
			return err
		}
		out = st
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if cred != nil {
		metrics.CredentialsProvisioned.WithLabelValues(string(models.RoleStudent)).Inc()
	}
	s.log.Info("student enrolled",
		zap.Uint("student_id", out.ID),
		zap.Uint("franchise_id", out.FranchiseID),
		zap.Bool("login", cred != nil),
		zap.Uint("actor_id", actor.CredentialID),
	)
	full, err := s.store.StudentByID(ctx, out.ID)
	if err != nil {
		return nil, nil, err
	}
	return full, cred, nil
}

func (s *Service) List(ctx context.Context, actor *auth.Principal, filter store.StudentFilter) ([]models.Student, error) {
	scope, err := s.scope(ctx, actor)
	if err != nil {
		return nil, err
	}
	if filter, err = scope.Filter(filter); err != nil {
		return nil, err
	}
	return s.store.ListStudents(ctx, filter)
}

// Get returns one student inside the caller's scope.
func (s *Service) Get(ctx context.Context, actor *auth.Principal, id uint) (*models.Student, error) {
	scope, err := s.scope(ctx, actor)
	if err != nil {
		return nil, err
	}
	return scope.Student(ctx, s.store, id)
}

// Update edits a student inside the caller's scope. The enrollment number
// never changes; moving to another franchise goes through the scope.
func (s *Service) Update(ctx context.Context, actor *auth.Principal, id uint, in UpdateInput) (*models.Student, error) {
	scope, err := s.scope(ctx, actor)
	if err != nil {
		return nil, err
	}
	if !scope.CanWrite() {
		return nil, apperrors.ErrForbidden
	}

	err = s.store.WithTx(ctx, func(tx store.Store) error {
		st, err := scope.Student(ctx, tx, id)
		if err != nil {
			return err
		}
		requested := in.FranchiseID
		if requested == nil {
			requested = &st.FranchiseID
		}
		franchiseID, err := scope.AssignFranchise(requested)
		if err != nil {
			return err
		}
		if err := checkRefs(ctx, tx, in.CourseID, franchiseID); err != nil {
			return err
		}

		before := *st
		before.Course, before.Franchise = nil, nil
		in.Details.apply(st)
		st.FranchiseID = franchiseID
		if err := tx.UpdateStudent(ctx, st); err != nil {
			return fmt.Errorf("update student: %w", err)
		}
		st.Course, st.Franchise = nil, nil
		return audit.WriteLog(ctx, tx, audit.LogOptions{
			FranchiseID: &st.FranchiseID,
			Actor:       actor,
			EntityType:  entityType,
			EntityID:    st.ID,
			Action:      models.AuditActionUpdate,
			Description: "student updated " + st.EnrollmentNo,
			Before:      before,
			After:       st,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.store.StudentByID(ctx, id)
}

// Delete removes a student and its login. Only unscoped callers may delete.
func (s *Service) Delete(ctx context.Context, actor *auth.Principal, id uint) error {
	scope, err := s.scope(ctx, actor)
	if err != nil {
		return err
	}
	if !scope.Unscoped() {
		return apperrors.ErrForbidden
	}
	err = s.store.WithTx(ctx, func(tx store.Store) error {
		st, err := tx.StudentByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.creds.With(tx).DeleteForOwner(ctx, models.RoleStudent, st.ID); err != nil {
			return err
		}
		if err := tx.DeleteStudent(ctx, st.ID); err != nil {
			return fmt.Errorf("delete student: %w", err)
		}
		st.Course, st.Franchise = nil, nil
		return audit.WriteLog(ctx, tx, audit.LogOptions{
			FranchiseID: &st.FranchiseID,
			Actor:       actor,
			EntityType:  entityType,
			EntityID:    st.ID,
			Action:      models.AuditActionDelete,
			Description: "student deleted " + st.EnrollmentNo,
			Before:      st,
		})
	})
	if err != nil {
		return err
	}
	s.log.Info("student deleted", zap.Uint("student_id", id), zap.Uint("actor_id", actor.CredentialID))
	return nil
}

// Verify is the public lookup by enrollment number.
func (s *Service) Verify(ctx context.Context, enrollmentNo string) (*models.Student, error) {
	return s.store.StudentByEnrollmentNo(ctx, strings.ToUpper(strings.TrimSpace(enrollmentNo)))
}

// Login returns the username of the student's login, if any.
func (s *Service) Login(ctx context.Context, id uint) (string, error) {
	cred, err := s.creds.FindByOwner(ctx, models.RoleStudent, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return cred.Username, nil
}

// enrollmentNoLock is held from generating a number to commit, so
// concurrent enrollments never pick the same one.
const enrollmentNoLock = "student-enrollment-no"

// nextEnrollmentNo hands out SGC<year><seq>, skipping taken numbers.
func (s *Service) nextEnrollmentNo(ctx context.Context, tx store.Store) (string, error) {
	if err := tx.Lock(ctx, enrollmentNoLock); err != nil {
		return "", fmt.Errorf("lock enrollment numbers: %w", err)
	}
	n, err := tx.CountStudents(ctx, store.StudentFilter{})
	if err != nil {
		return "", err
	}
	year := s.now().Year()
	for i := n + 1; ; i++ {
		no := fmt.Sprintf("SGC%d%04d", year, i)
		_, err := tx.StudentByEnrollmentNo(ctx, no)
		if errors.Is(err, apperrors.ErrNotFound) {
			return no, nil
		}
		if err != nil {
			return "", err
		}
	}
}
