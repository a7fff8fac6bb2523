package student

import (
	"time"

	"sgcsc-backend/internal/apperrors"
	"sgcsc-backend/internal/auth"
	"sgcsc-backend/internal/models"
	"sgcsc-backend/internal/request"
	"sgcsc-backend/internal/store"

	"github.com/gofiber/fiber/v2"
)

type CreateStudentRequest struct {
	Details
	EnrollmentNo string `json:"enrollment_no" validate:"omitempty,max=50"`
	FranchiseID  *uint  `json:"franchise_id"`
	Username     string `json:"username" validate:"omitempty,username"`
	Password     string `json:"password" validate:"omitempty,max=72"`
}

type UpdateStudentRequest struct {
	Details
	FranchiseID *uint `json:"franchise_id"`
}

type StudentResponse struct {
	ID           uint   `json:"id"`
	EnrollmentNo string `json:"enrollment_no"`
	Details
	FranchiseID uint      `json:"franchise_id"`
	CenterName  string    `json:"center_name"`
	CourseName  string    `json:"course_name"`
	CourseCode  string    `json:"course_code"`
	Username    string    `json:"username,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// VerifiedStudent is the public view of an enrollment.
type VerifiedStudent struct {
	EnrollmentNo string               `json:"enrollment_no"`
	Name         string               `json:"name"`
	FatherName   string               `json:"father_name"`
	CenterName   string               `json:"center_name"`
	CourseName   string               `json:"course_name"`
	Status       models.StudentStatus `json:"status"`
}

func centerAndCourse(s *models.Student) (center, course, code string) {
	if s.Franchise != nil {
		center = s.Franchise.InstituteName
	}
	if s.Course != nil {
		course, code = s.Course.Name, s.Course.Code
	}
	return center, course, code
}

func toResponse(s *models.Student, username string) StudentResponse {
	center, course, code := centerAndCourse(s)
	return StudentResponse{
		ID:           s.ID,
		EnrollmentNo: s.EnrollmentNo,
		Details: Details{
			Name:            s.Name,
			Gender:          s.Gender,
			FatherName:      s.FatherName,
			MotherName:      s.MotherName,
			DOB:             s.DOB,
			Email:           s.Email,
			Mobile:          s.Mobile,
			Address:         s.Address,
			State:           s.State,
			District:        s.District,
			ExamPass:        s.ExamPass,
			MarksPercentage: s.MarksPercentage,
			Board:           s.Board,
			PassingYear:     s.PassingYear,
			CourseID:        s.CourseID,
			SessionStart:    s.SessionStart,
			SessionEnd:      s.SessionEnd,
			Photo:           s.Photo,
			Status:          s.Status,
		},
		FranchiseID: s.FranchiseID,
		CenterName:  center,
		CourseName:  course,
		CourseCode:  code,
		Username:    username,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

// listFilter reads ?franchise_id=&course_id=&status=&q=. The scope decides
// whether franchise_id is honoured.
func listFilter(c *fiber.Ctx) (store.StudentFilter, error) {
	var (
		f   store.StudentFilter
		err error
	)
	if f.FranchiseID, err = request.QueryID(c, "franchise_id"); err != nil {
		return f, err
	}
	if f.CourseID, err = request.QueryID(c, "course_id"); err != nil {
		return f, err
	}
	f.Status = models.StudentStatus(c.Query("status"))
	if f.Status != "" && !f.Status.Valid() {
		return f, fiber.NewError(fiber.StatusBadRequest, "invalid status")
	}
	f.Search = c.Query("q")
	return f, nil
}

// GET /api/students
func ListHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		filter, err := listFilter(c)
		if err != nil {
			return err
		}
		list, err := svc.List(c.UserContext(), auth.PrincipalFrom(c), filter)
		if err != nil {
			return apperrors.HTTP(err)
		}
		resp := make([]StudentResponse, 0, len(list))
		for i := range list {
			resp = append(resp, toResponse(&list[i], ""))
		}
		return c.JSON(resp)
	}
}

// POST /api/students
func CreateHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateStudentRequest
		if err := request.Bind(c, &body); err != nil {
			return apperrors.HTTP(err)
		}
		s, cred, err := svc.Create(c.UserContext(), auth.PrincipalFrom(c), CreateInput{
			Details:      body.Details,
			EnrollmentNo: body.EnrollmentNo,
			FranchiseID:  body.FranchiseID,
			Username:     body.Username,
			Password:     body.Password,
		})
		if err != nil {
			return apperrors.HTTP(err)
		}
		username := ""
		if cred != nil {
			username = cred.Username
		}
		return c.Status(fiber.StatusCreated).JSON(toResponse(s, username))
	}
}

// GET /api/students/:id
func GetHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := request.ParamID(c, "id")
		if err != nil {
			return err
		}
		s, err := svc.Get(c.UserContext(), auth.PrincipalFrom(c), id)
		if err != nil {
			return apperrors.HTTP(err)
		}
		username, err := svc.Login(c.UserContext(), s.ID)
		if err != nil {
			return apperrors.HTTP(err)
		}
		return c.JSON(toResponse(s, username))
	}
}

// GET /api/students/me
func MeHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p := auth.PrincipalFrom(c)
		id, ok := p.Owner()
		if !ok {
			return apperrors.HTTP(apperrors.ErrForbidden)
		}
		s, err := svc.Get(c.UserContext(), p, id)
		if err != nil {
			return apperrors.HTTP(err)
		}
		return c.JSON(toResponse(s, p.Username))
	}
}

// PUT /api/students/:id
func UpdateHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := request.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body UpdateStudentRequest
		if err := request.Bind(c, &body); err != nil {
			return apperrors.HTTP(err)
		}
		s, err := svc.Update(c.UserContext(), auth.PrincipalFrom(c), id, UpdateInput{
			Details:     body.Details,
			FranchiseID: body.FranchiseID,
		})
		if err != nil {
			return apperrors.HTTP(err)
		}
		return c.JSON(toResponse(s, ""))
	}
}

// DELETE /api/students/:id
func DeleteHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := request.ParamID(c, "id")
		if err != nil {
			return err
		}
		if err := svc.Delete(c.UserContext(), auth.PrincipalFrom(c), id); err != nil {
			return apperrors.HTTP(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// GET /api/public/students/:enrollmentNo
func VerifyHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := svc.Verify(c.UserContext(), c.Params("enrollmentNo"))
		if err != nil {
			return apperrors.HTTP(err)
		}
		center, course, _ := centerAndCourse(s)
		return c.JSON(VerifiedStudent{
			EnrollmentNo: s.EnrollmentNo,
			Name:         s.Name,
			FatherName:   s.FatherName,
			CenterName:   center,
			CourseName:   course,
			Status:       s.Status,
		})
	}
}
