package access

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"sgcsc-backend/internal/apperrors"
	"sgcsc-backend/internal/auth"
	"sgcsc-backend/internal/models"
	"sgcsc-backend/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uptr(v uint) *uint { return &v }

func seed(t *testing.T, st *store.Memory, franchises, students int, rng *rand.Rand) []models.Franchise {
	t.Helper()
	ctx := context.Background()
	course := &models.Course{Name: "DCA", Code: "DCA"}
	require.NoError(t, st.CreateCourse(ctx, course))

	out := make([]models.Franchise, 0, franchises)
	for i := 0; i < franchises; i++ {
		f := &models.Franchise{
			InstituteID:   fmt.Sprintf("INST%03d", i+1),
			InstituteName: fmt.Sprintf("Center %d", i+1),
			Status:        models.FranchiseActive,
		}
		require.NoError(t, st.CreateFranchise(ctx, f))
		out = append(out, *f)
	}
	for i := 0; i < students; i++ {
		s := &models.Student{
			EnrollmentNo: fmt.Sprintf("E%04d", i+1),
			Name:         fmt.Sprintf("Student %d", i+1),
			CourseID:     course.ID,
			FranchiseID:  out[rng.Intn(len(out))].ID,
			Status:       models.StudentActive,
		}
		require.NoError(t, st.CreateStudent(ctx, s))
	}
	return out
}

func franchisePrincipal(id uint) *auth.Principal {
	return &auth.Principal{Role: models.RoleFranchise, OwnerID: uptr(id)}
}

func TestFranchiseListIsExactlyItsOwnStudents(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 20; round++ {
		st := store.NewMemory()
		franchises := seed(t, st, 1+rng.Intn(5), rng.Intn(60), rng)
		scoper := NewScoper(st)
		ctx := context.Background()

		all, err := st.ListStudents(ctx, store.StudentFilter{})
		require.NoError(t, err)

		for _, f := range franchises {
			scope, err := scoper.StudentScope(ctx, franchisePrincipal(f.ID))
			require.NoError(t, err)

			// A caller supplied franchise_id is ignored.
			other := franchises[rng.Intn(len(franchises))].ID
			filter, err := scope.Filter(store.StudentFilter{FranchiseID: &other})
			require.NoError(t, err)
			got, err := st.ListStudents(ctx, filter)
			require.NoError(t, err)

			want := map[uint]bool{}
			for _, s := range all {
				if s.FranchiseID == f.ID {
					want[s.ID] = true
				}
			}
			require.Len(t, got, len(want), "round %d franchise %d", round, f.ID)
			for _, s := range got {
				assert.True(t, want[s.ID])
				assert.Equal(t, f.ID, s.FranchiseID)
			}
		}
	}
}

func TestAdminIsUnscoped(t *testing.T) {
	st := store.NewMemory()
	seed(t, st, 3, 10, rand.New(rand.NewSource(1)))
	scope, err := NewScoper(st).StudentScope(context.Background(), &auth.Principal{Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.True(t, scope.Unscoped())

	filter, err := scope.Filter(store.StudentFilter{})
	require.NoError(t, err)
	got, err := st.ListStudents(context.Background(), filter)
	require.NoError(t, err)
	assert.Len(t, got, 10)

	_, err = scope.AssignFranchise(nil)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	id, err := scope.AssignFranchise(uptr(3))
	require.NoError(t, err)
	assert.Equal(t, uint(3), id)
}

func TestAssignFranchiseForFranchise(t *testing.T) {
	st := store.NewMemory()
	franchises := seed(t, st, 2, 0, rand.New(rand.NewSource(1)))
	own, other := franchises[0].ID, franchises[1].ID

	scope, err := NewScoper(st).StudentScope(context.Background(), franchisePrincipal(own))
	require.NoError(t, err)

	id, err := scope.AssignFranchise(nil)
	require.NoError(t, err)
	assert.Equal(t, own, id)

	id, err = scope.AssignFranchise(uptr(own))
	require.NoError(t, err)
	assert.Equal(t, own, id)

	_, err = scope.AssignFranchise(uptr(other))
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestDanglingFranchiseHasNoScope(t *testing.T) {
	st := store.NewMemory()
	_, err := NewScoper(st).StudentScope(context.Background(), franchisePrincipal(99))
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = NewScoper(st).StudentScope(context.Background(), &auth.Principal{Role: models.RoleFranchise})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestStudentScopeIsSingleRecord(t *testing.T) {
	st := store.NewMemory()
	seed(t, st, 1, 3, rand.New(rand.NewSource(1)))
	ctx := context.Background()

	scope, err := NewScoper(st).StudentScope(ctx, &auth.Principal{Role: models.RoleStudent, OwnerID: uptr(2)})
	require.NoError(t, err)
	assert.False(t, scope.CanWrite())

	_, err = scope.Filter(store.StudentFilter{})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	s, err := scope.Student(ctx, st, 2)
	require.NoError(t, err)
	assert.Equal(t, uint(2), s.ID)

	_, err = scope.Student(ctx, st, 1)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = scope.AssignFranchise(nil)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestScopedLookupHidesExistence(t *testing.T) {
	st := store.NewMemory()
	franchises := seed(t, st, 2, 0, rand.New(rand.NewSource(1)))
	ctx := context.Background()
	foreign := &models.Student{EnrollmentNo: "X1", Name: "X", CourseID: 1, FranchiseID: franchises[1].ID}
	require.NoError(t, st.CreateStudent(ctx, foreign))

	scope, err := NewScoper(st).StudentScope(ctx, franchisePrincipal(franchises[0].ID))
	require.NoError(t, err)

	_, errForeign := scope.Student(ctx, st, foreign.ID)
	_, errMissing := scope.Student(ctx, st, 12345)
	assert.ErrorIs(t, errForeign, apperrors.ErrForbidden)
	assert.ErrorIs(t, errMissing, apperrors.ErrForbidden)

	admin, err := NewScoper(st).StudentScope(ctx, &auth.Principal{Role: models.RoleAdmin})
	require.NoError(t, err)
	_, err = admin.Student(ctx, st, 12345)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGuestHasNoScope(t *testing.T) {
	_, err := NewScoper(store.NewMemory()).StudentScope(context.Background(), auth.Guest)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	var zero Scope
	assert.False(t, zero.Permits(&models.Student{}))
	_, err = zero.Filter(store.StudentFilter{})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}
