package student

import (
	"context"
	"sync"
	"testing"
	"time"

	"sgcsc-backend/internal/access"
	"sgcsc-backend/internal/apperrors"
	"sgcsc-backend/internal/auth"
	"sgcsc-backend/internal/models"
	"sgcsc-backend/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

type env struct {
	svc    *Service
	store  *store.Memory
	creds  *auth.CredentialService
	course *models.Course
	f1, f2 *models.Franchise
}

var admin = &auth.Principal{CredentialID: 1, Name: "Admin", Role: models.RoleAdmin}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemory()
	creds := auth.NewCredentialService(st, bcrypt.MinCost)
	svc := NewService(st, creds, access.NewScoper(st), zaptest.NewLogger(t))
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }

	course := &models.Course{Name: "Diploma in Computer Applications", Code: "DCA"}
	require.NoError(t, st.CreateCourse(ctx, course))
	f1 := &models.Franchise{InstituteID: "INST0001", InstituteName: "Center One", Status: models.FranchiseActive}
	f2 := &models.Franchise{InstituteID: "INST0002", InstituteName: "Center Two", Status: models.FranchiseActive}
	require.NoError(t, st.CreateFranchise(ctx, f1))
	require.NoError(t, st.CreateFranchise(ctx, f2))
	return &env{svc: svc, store: st, creds: creds, course: course, f1: f1, f2: f2}
}

func franchiseOf(f *models.Franchise) *auth.Principal {
	id := f.ID
	return &auth.Principal{CredentialID: 100 + id, Role: models.RoleFranchise, OwnerID: &id}
}

func (e *env) details(name string) Details {
	return Details{Name: name, CourseID: e.course.ID}
}

func TestFranchiseCreatesOnlyIntoOwnFranchise(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	f1 := franchiseOf(e.f1)

	s, _, err := e.svc.Create(ctx, f1, CreateInput{Details: e.details("Asha"), EnrollmentNo: "E100", FranchiseID: &e.f1.ID})
	require.NoError(t, err)
	assert.Equal(t, e.f1.ID, s.FranchiseID)
	assert.Equal(t, "Center One", s.Franchise.InstituteName)

	_, _, err = e.svc.Create(ctx, f1, CreateInput{Details: e.details("Ravi"), EnrollmentNo: "E100b", FranchiseID: &e.f2.ID})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	_, err = e.store.StudentByEnrollmentNo(ctx, "E100B")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	// Omitted franchise_id means the caller's own.
	s, _, err = e.svc.Create(ctx, f1, CreateInput{Details: e.details("Meena")})
	require.NoError(t, err)
	assert.Equal(t, e.f1.ID, s.FranchiseID)
	assert.Equal(t, "SGC20250002", s.EnrollmentNo)
}

func TestAdminCreateChecksReferences(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	missing := uint(999)

	_, _, err := e.svc.Create(ctx, admin, CreateInput{Details: e.details("A")})
	assert.ErrorIs(t, err, apperrors.ErrValidation, "admin must name a franchise")

	_, _, err = e.svc.Create(ctx, admin, CreateInput{Details: e.details("A"), FranchiseID: &missing})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	d := e.details("A")
	d.CourseID = 999
	_, _, err = e.svc.Create(ctx, admin, CreateInput{Details: d, FranchiseID: &e.f2.ID})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	s, _, err := e.svc.Create(ctx, admin, CreateInput{Details: e.details("A"), FranchiseID: &e.f2.ID, EnrollmentNo: "e1"})
	require.NoError(t, err)
	assert.Equal(t, "E1", s.EnrollmentNo)
	assert.Equal(t, models.StudentActive, s.Status)

	_, _, err = e.svc.Create(ctx, admin, CreateInput{Details: e.details("B"), FranchiseID: &e.f2.ID, EnrollmentNo: "E1"})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateEnrollmentNo)
}

func TestCreateWithLoginIsAtomic(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	f1 := franchiseOf(e.f1)

	s, cred, err := e.svc.Create(ctx, f1, CreateInput{Details: e.details("A"), EnrollmentNo: "E1", Username: "asha", Password: "pw1pw1"})
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, models.RoleStudent, cred.Role)
	assert.Equal(t, s.ID, *cred.OwnerID)

	_, _, err = e.svc.Create(ctx, f1, CreateInput{Details: e.details("B"), EnrollmentNo: "E2", Username: "asha", Password: "pw1pw1"})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateUsername)
	_, err = e.store.StudentByEnrollmentNo(ctx, "E2")
	assert.ErrorIs(t, err, apperrors.ErrNotFound, "duplicate username rolls back the student")
}

func TestListIsScoped(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	for i, f := range []*models.Franchise{e.f1, e.f2, e.f1, e.f2, e.f2} {
		_, _, err := e.svc.Create(ctx, admin, CreateInput{Details: e.details("S"), FranchiseID: &f.ID, EnrollmentNo: string(rune('A'+i))})
		require.NoError(t, err)
	}

	list, err := e.svc.List(ctx, franchiseOf(e.f1), store.StudentFilter{FranchiseID: &e.f2.ID})
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, s := range list {
		assert.Equal(t, e.f1.ID, s.FranchiseID)
	}

	all, err := e.svc.List(ctx, admin, store.StudentFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 5)

	onlyF2, err := e.svc.List(ctx, admin, store.StudentFilter{FranchiseID: &e.f2.ID})
	require.NoError(t, err)
	assert.Len(t, onlyF2, 3)

	gone := uint(42)
	_, err = e.svc.List(ctx, &auth.Principal{Role: models.RoleFranchise, OwnerID: &gone}, store.StudentFilter{})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestGetAndUpdateAreScoped(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	mine, _, err := e.svc.Create(ctx, franchiseOf(e.f1), CreateInput{Details: e.details("Mine"), EnrollmentNo: "M1"})
	require.NoError(t, err)
	theirs, _, err := e.svc.Create(ctx, franchiseOf(e.f2), CreateInput{Details: e.details("Theirs"), EnrollmentNo: "T1"})
	require.NoError(t, err)
	f1 := franchiseOf(e.f1)

	_, err = e.svc.Get(ctx, f1, theirs.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	_, err = e.svc.Get(ctx, f1, 9999)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = e.svc.Update(ctx, f1, theirs.ID, UpdateInput{Details: e.details("Hijack")})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = e.svc.Update(ctx, f1, mine.ID, UpdateInput{Details: e.details("Moved"), FranchiseID: &e.f2.ID})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	updated, err := e.svc.Update(ctx, f1, mine.ID, UpdateInput{Details: e.details("Renamed")})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, "M1", updated.EnrollmentNo)
	assert.Equal(t, e.f1.ID, updated.FranchiseID)

	moved, err := e.svc.Update(ctx, admin, mine.ID, UpdateInput{Details: e.details("Renamed"), FranchiseID: &e.f2.ID})
	require.NoError(t, err)
	assert.Equal(t, e.f2.ID, moved.FranchiseID)
}

func TestStudentReadsOnlySelf(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, _, err := e.svc.Create(ctx, admin, CreateInput{Details: e.details("A"), FranchiseID: &e.f1.ID, EnrollmentNo: "A1"})
	require.NoError(t, err)
	b, _, err := e.svc.Create(ctx, admin, CreateInput{Details: e.details("B"), FranchiseID: &e.f1.ID, EnrollmentNo: "B1"})
	require.NoError(t, err)
	self := &auth.Principal{Role: models.RoleStudent, OwnerID: &a.ID}

	got, err := e.svc.Get(ctx, self, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "A1", got.EnrollmentNo)

	_, err = e.svc.Get(ctx, self, b.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	_, err = e.svc.List(ctx, self, store.StudentFilter{})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	_, err = e.svc.Update(ctx, self, a.ID, UpdateInput{Details: e.details("Me")})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	_, _, err = e.svc.Create(ctx, self, CreateInput{Details: e.details("New")})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestDeleteCascadesToLogin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s, _, err := e.svc.Create(ctx, admin, CreateInput{
		Details: e.details("A"), FranchiseID: &e.f1.ID, EnrollmentNo: "A1",
		Username: "student-a", Password: "pw1pw1",
	})
	require.NoError(t, err)

	assert.ErrorIs(t, e.svc.Delete(ctx, franchiseOf(e.f1), s.ID), apperrors.ErrForbidden)

	require.NoError(t, e.svc.Delete(ctx, admin, s.ID))
	_, err = e.creds.Verify(ctx, "student-a", "pw1pw1")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	_, err = e.store.StudentByID(ctx, s.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.ErrorIs(t, e.svc.Delete(ctx, admin, s.ID), apperrors.ErrNotFound)
}

func TestVerifyByEnrollmentNo(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, _, err := e.svc.Create(ctx, admin, CreateInput{Details: e.details("A"), FranchiseID: &e.f1.ID, EnrollmentNo: "SGC1"})
	require.NoError(t, err)

	s, err := e.svc.Verify(ctx, " sgc1 ")
	require.NoError(t, err)
	assert.Equal(t, "A", s.Name)

	_, err = e.svc.Verify(ctx, "nope")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUpdateWithoutStatusKeepsIt(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	f1 := franchiseOf(e.f1)

	d := e.details("Kiran")
	d.Status = models.StudentCompleted
	s, _, err := e.svc.Create(ctx, f1, CreateInput{Details: d})
	require.NoError(t, err)
	assert.Equal(t, models.StudentCompleted, s.Status)

	updated, err := e.svc.Update(ctx, f1, s.ID, UpdateInput{Details: e.details("Kiran Kumar")})
	require.NoError(t, err)
	assert.Equal(t, "Kiran Kumar", updated.Name)
	assert.Equal(t, models.StudentCompleted, updated.Status)

	d = e.details("Kiran Kumar")
	d.Status = models.StudentDropout
	updated, err = e.svc.Update(ctx, f1, s.ID, UpdateInput{Details: d})
	require.NoError(t, err)
	assert.Equal(t, models.StudentDropout, updated.Status)
}

func TestConcurrentEnrollmentsGetDistinctNumbers(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	numbers := make([]string, 10)
	errs := make([]error, len(numbers))
	for i := range numbers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, _, err := e.svc.Create(ctx, admin, CreateInput{Details: e.details("Student"), FranchiseID: &e.f1.ID})
			errs[i] = err
			if err == nil {
				numbers[i] = s.EnrollmentNo
			}
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for i, no := range numbers {
		require.NoError(t, errs[i])
		assert.False(t, seen[no], "duplicate enrollment number %s", no)
		seen[no] = true
	}
	assert.Len(t, seen, len(numbers))
}
