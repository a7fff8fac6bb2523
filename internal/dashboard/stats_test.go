package dashboard

import (
	"context"
	"fmt"
	"testing"

	"sgcsc-backend/internal/access"
	"sgcsc-backend/internal/apperrors"
	"sgcsc-backend/internal/auth"
	"sgcsc-backend/internal/models"
	"sgcsc-backend/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsAreScoped(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	svc := NewService(st, access.NewScoper(st))

	course := &models.Course{Name: "DCA", Code: "DCA"}
	require.NoError(t, st.CreateCourse(ctx, course))
	var franchises []*models.Franchise
	for i, status := range []models.FranchiseStatus{models.FranchiseActive, models.FranchiseActive, models.FranchisePending, models.FranchiseSuspended} {
		f := &models.Franchise{InstituteID: fmt.Sprintf("INST%04d", i+1), InstituteName: "C", Status: status}
		require.NoError(t, st.CreateFranchise(ctx, f))
		franchises = append(franchises, f)
	}
	students := []struct {
		franchise int
		status    models.StudentStatus
	}{
		{0, models.StudentActive}, {0, models.StudentCompleted}, {0, models.StudentActive},
		{1, models.StudentActive}, {1, models.StudentDropout},
	}
	for i, s := range students {
		require.NoError(t, st.CreateStudent(ctx, &models.Student{
			EnrollmentNo: fmt.Sprintf("E%d", i), Name: "S", CourseID: course.ID,
			FranchiseID: franchises[s.franchise].ID, Status: s.status,
		}))
	}

	admin := &auth.Principal{Role: models.RoleAdmin}
	stats, err := svc.Stats(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, StudentCounts{Total: 5, Active: 3, Completed: 1, Dropout: 1}, stats.Students)
	assert.Equal(t, int64(1), stats.Courses)
	require.NotNil(t, stats.Franchises)
	assert.Equal(t, FranchiseCounts{Total: 4, Active: 2, Pending: 1, Suspended: 1}, *stats.Franchises)
	assert.Equal(t, int64(1), *stats.PendingApplications)

	fid := franchises[0].ID
	own, err := svc.Stats(ctx, &auth.Principal{Role: models.RoleFranchise, OwnerID: &fid})
	require.NoError(t, err)
	assert.Equal(t, StudentCounts{Total: 3, Active: 2, Completed: 1}, own.Students)
	assert.Equal(t, int64(1), own.Courses)
	assert.Nil(t, own.Franchises)
	assert.Nil(t, own.PendingApplications)

	sid := uint(1)
	_, err = svc.Stats(ctx, &auth.Principal{Role: models.RoleStudent, OwnerID: &sid})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}
