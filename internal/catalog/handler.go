package catalog

import (
	"sgcsc-backend/internal/apperrors"
	"sgcsc-backend/internal/auth"
	"sgcsc-backend/internal/models"
	"sgcsc-backend/internal/request"

	"github.com/gofiber/fiber/v2"
)

type CourseResponse struct {
	ID uint `json:"id"`
	CourseInput
}

type SubjectResponse struct {
	ID uint `json:"id"`
	SubjectInput
}

func toCourse(c *models.Course) CourseResponse {
	return CourseResponse{
		ID: c.ID,
		CourseInput: CourseInput{
			Name:        c.Name,
			Code:        c.Code,
			Duration:    c.Duration,
			Type:        c.Type,
			Fees:        c.Fees,
			Description: c.Description,
		},
	}
}

func toSubject(s *models.Subject) SubjectResponse {
	return SubjectResponse{
		ID: s.ID,
		SubjectInput: SubjectInput{
			CourseID: s.CourseID,
			Name:     s.Name,
			MaxMarks: s.MaxMarks,
			MinMarks: s.MinMarks,
		},
	}
}

// GET /api/courses
func ListCoursesHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		list, err := svc.ListCourses(c.UserContext())
		if err != nil {
			return apperrors.HTTP(err)
		}
		resp := make([]CourseResponse, 0, len(list))
		for i := range list {
			resp = append(resp, toCourse(&list[i]))
		}
		return c.JSON(resp)
	}
}

// GET /api/courses/:id
func GetCourseHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := request.ParamID(c, "id")
		if err != nil {
			return err
		}
		course, err := svc.GetCourse(c.UserContext(), id)
		if err != nil {
			return apperrors.HTTP(err)
		}
		return c.JSON(toCourse(course))
	}
}

// POST /api/courses
func CreateCourseHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CourseInput
		if err := request.Bind(c, &body); err != nil {
			return apperrors.HTTP(err)
		}
		course, err := svc.CreateCourse(c.UserContext(), auth.PrincipalFrom(c), body)
		if err != nil {
			return apperrors.HTTP(err)
		}
		return c.Status(fiber.StatusCreated).JSON(toCourse(course))
	}
}

// PUT /api/courses/:id
func UpdateCourseHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := request.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body CourseInput
		if err := request.Bind(c, &body); err != nil {
			return apperrors.HTTP(err)
		}
		course, err := svc.UpdateCourse(c.UserContext(), auth.PrincipalFrom(c), id, body)
		if err != nil {
			return apperrors.HTTP(err)
		}
		return c.JSON(toCourse(course))
	}
}

// DELETE /api/courses/:id
func DeleteCourseHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := request.ParamID(c, "id")
		if err != nil {
			return err
		}
		if err := svc.DeleteCourse(c.UserContext(), auth.PrincipalFrom(c), id); err != nil {
			return apperrors.HTTP(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// GET /api/subjects?course_id=
func ListSubjectsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		courseID, err := request.QueryID(c, "course_id")
		if err != nil {
			return err
		}
		list, err := svc.ListSubjects(c.UserContext(), courseID)
		if err != nil {
			return apperrors.HTTP(err)
		}
		resp := make([]SubjectResponse, 0, len(list))
		for i := range list {
			resp = append(resp, toSubject(&list[i]))
		}
		return c.JSON(resp)
	}
}

// POST /api/subjects
func CreateSubjectHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body SubjectInput
		if err := request.Bind(c, &body); err != nil {
			return apperrors.HTTP(err)
		}
		sub, err := svc.CreateSubject(c.UserContext(), auth.PrincipalFrom(c), body)
		if err != nil {
			return apperrors.HTTP(err)
		}
		return c.Status(fiber.StatusCreated).JSON(toSubject(sub))
	}
}

// PUT /api/subjects/:id
func UpdateSubjectHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := request.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body SubjectInput
		if err := request.Bind(c, &body); err != nil {
			return apperrors.HTTP(err)
		}
		sub, err := svc.UpdateSubject(c.UserContext(), auth.PrincipalFrom(c), id, body)
		if err != nil {
			return apperrors.HTTP(err)
		}
		return c.JSON(toSubject(sub))
	}
}

// DELETE /api/subjects/:id
func DeleteSubjectHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := request.ParamID(c, "id")
		if err != nil {
			return err
		}
		if err := svc.DeleteSubject(c.UserContext(), auth.PrincipalFrom(c), id); err != nil {
			return apperrors.HTTP(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
