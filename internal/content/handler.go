package content

import (
	"sgcsc-backend/internal/apperrors"
	"sgcsc-backend/internal/auth"
	"sgcsc-backend/internal/models"
	"sgcsc-backend/internal/request"

	"github.com/gofiber/fiber/v2"
)

// Routes mounts list, get, create, update and delete for a collection.
// Reads pass through read, writes through write. A nil read leaves reads
// public.
func Routes[T any](r fiber.Router, col *Collection[T], read, write fiber.Handler) {
	if read == nil {
		read = func(c *fiber.Ctx) error { return c.Next() }
	}
	r.Get("/", read, ListHandler(col))
	r.Get("/:id", read, GetHandler(col))
	r.Post("/", write, CreateHandler(col))
	r.Put("/:id", write, UpdateHandler(col))
	r.Delete("/:id", write, DeleteHandler(col))
}

func ListHandler[T any](col *Collection[T]) fiber.Handler {
	return func(c *fiber.Ctx) error {
		list, err := col.List(c.UserContext())
		if err != nil {
			return apperrors.HTTP(err)
		}
		if list == nil {
			list = []T{}
		}
		return c.JSON(list)
	}
}

func GetHandler[T any](col *Collection[T]) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := request.ParamID(c, "id")
		if err != nil {
			return err
		}
		v, err := col.Get(c.UserContext(), id)
		if err != nil {
			return apperrors.HTTP(err)
		}
		return c.JSON(v)
	}
}

func CreateHandler[T any](col *Collection[T]) fiber.Handler {
	return func(c *fiber.Ctx) error {
		v := new(T)
		if err := c.BodyParser(v); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := col.Create(c.UserContext(), auth.PrincipalFrom(c), v); err != nil {
			return apperrors.HTTP(err)
		}
		return c.Status(fiber.StatusCreated).JSON(v)
	}
}

func UpdateHandler[T any](col *Collection[T]) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := request.ParamID(c, "id")
		if err != nil {
			return err
		}
		v := new(T)
		if err := c.BodyParser(v); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := col.Update(c.UserContext(), auth.PrincipalFrom(c), id, v); err != nil {
			return apperrors.HTTP(err)
		}
		return c.JSON(v)
	}
}

func DeleteHandler[T any](col *Collection[T]) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := request.ParamID(c, "id")
		if err != nil {
			return err
		}
		if err := col.Delete(c.UserContext(), auth.PrincipalFrom(c), id); err != nil {
			return apperrors.HTTP(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// GET /api/public/<kind>/:enrollmentNo
func LookupHandler[T any](e *Enrolled[T]) fiber.Handler {
	return func(c *fiber.Ctx) error {
		list, err := e.ByEnrollmentNo(c.UserContext(), c.Params("enrollmentNo"))
		if err != nil {
			return apperrors.HTTP(err)
		}
		return c.JSON(list)
	}
}

// GET /api/students/me/<kind>
func MineHandler[T any](e *Enrolled[T]) fiber.Handler {
	return func(c *fiber.Ctx) error {
		list, err := e.Mine(c.UserContext(), auth.PrincipalFrom(c))
		if err != nil {
			return apperrors.HTTP(err)
		}
		return c.JSON(list)
	}
}

// GET /api/settings
func SettingsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := svc.Settings(c.UserContext())
		if err != nil {
			return apperrors.HTTP(err)
		}
		return c.JSON(s)
	}
}

// PUT /api/settings
func SaveSettingsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body models.SiteSettings
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		s, err := svc.SaveSettings(c.UserContext(), auth.PrincipalFrom(c), &body)
		if err != nil {
			return apperrors.HTTP(err)
		}
		return c.JSON(s)
	}
}
