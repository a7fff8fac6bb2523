package franchise

import (
	"time"

	"sgcsc-backend/internal/apperrors"
	"sgcsc-backend/internal/auth"
	"sgcsc-backend/internal/models"
	"sgcsc-backend/internal/request"
	"sgcsc-backend/internal/store"

	"github.com/gofiber/fiber/v2"
)

type CreateFranchiseRequest struct {
	Profile
	InstituteID string                 `json:"institute_id" validate:"omitempty,max=50"`
	Status      models.FranchiseStatus `json:"status" validate:"omitempty,oneof=pending active"`
	Username    string                 `json:"username" validate:"omitempty,username"`
	Password    string                 `json:"password" validate:"omitempty,max=72"`
}

type ApproveRequest struct {
	Username string `json:"username" validate:"omitempty,username"`
	Password string `json:"password" validate:"omitempty,max=72"`
}

type StatusRequest struct {
	Status models.FranchiseStatus `json:"status" validate:"required,oneof=active suspended"`
}

type FranchiseResponse struct {
	ID          uint   `json:"id"`
	InstituteID string `json:"institute_id"`
	Profile
	Status    models.FranchiseStatus `json:"status"`
	Username  string                 `json:"username,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// PublicFranchise is what the directory and verification pages show.
type PublicFranchise struct {
	InstituteID    string `json:"institute_id"`
	InstituteName  string `json:"institute_name"`
	OwnerName      string `json:"owner_name"`
	ContactNumber  string `json:"contact_number"`
	City           string `json:"city"`
	District       string `json:"district"`
	State          string `json:"state"`
	InstitutePhoto string `json:"institute_photo"`
}

func toResponse(f *models.Franchise, username string) FranchiseResponse {
	return FranchiseResponse{
		ID:          f.ID,
		InstituteID: f.InstituteID,
		Profile: Profile{
			InstituteName:        f.InstituteName,
			OwnerName:            f.OwnerName,
			OwnerDOB:             f.OwnerDOB,
			AadharNumber:         f.AadharNumber,
			PanNumber:            f.PanNumber,
			HeadQualification:    f.HeadQualification,
			Email:                f.Email,
			ContactNumber:        f.ContactNumber,
			WhatsappNumber:       f.WhatsappNumber,
			Address:              f.Address,
			State:                f.State,
			District:             f.District,
			City:                 f.City,
			NumComputerOperators: f.NumComputerOperators,
			NumClassRooms:        f.NumClassRooms,
			TotalComputers:       f.TotalComputers,
			CenterSpace:          f.CenterSpace,
			HasReception:         f.HasReception,
			HasStaffRoom:         f.HasStaffRoom,
			HasWaterSupply:       f.HasWaterSupply,
			HasToilet:            f.HasToilet,
			AadharFront:          f.AadharFront,
			AadharBack:           f.AadharBack,
			PanImage:             f.PanImage,
			InstitutePhoto:       f.InstitutePhoto,
			OwnerSign:            f.OwnerSign,
			OwnerPhoto:           f.OwnerPhoto,
			CertificateCopy:      f.CertificateCopy,
		},
		Status:    f.Status,
		Username:  username,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

func toPublic(f *models.Franchise) PublicFranchise {
	return PublicFranchise{
		InstituteID:    f.InstituteID,
		InstituteName:  f.InstituteName,
		OwnerName:      f.OwnerName,
		ContactNumber:  f.ContactNumber,
		City:           f.City,
		District:       f.District,
		State:          f.State,
		InstitutePhoto: f.InstitutePhoto,
	}
}

// POST /api/franchises/register
// Login fields and status in the body are ignored.
func RegisterHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body Profile
		if err := request.Bind(c, &body); err != nil {
			return apperrors.HTTP(err)
		}
		f, err := svc.Register(c.UserContext(), body)
		if err != nil {
			return apperrors.HTTP(err)
		}
		return c.Status(fiber.StatusCreated).JSON(toResponse(f, ""))
	}
}

// POST /api/franchises
func CreateHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateFranchiseRequest
		if err := request.Bind(c, &body); err != nil {
			return apperrors.HTTP(err)
		}
		f, cred, err := svc.Create(c.UserContext(), auth.PrincipalFrom(c), CreateInput{
			Profile:     body.Profile,
			InstituteID: body.InstituteID,
			Status:      body.Status,
			Login:       Login{Username: body.Username, Password: body.Password},
		})
		if err != nil {
			return apperrors.HTTP(err)
		}
		username := ""
		if cred != nil {
			username = cred.Username
		}
		return c.Status(fiber.StatusCreated).JSON(toResponse(f, username))
	}
}

// GET /api/franchises?status=pending&q=
func ListHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		filter := store.FranchiseFilter{
			Status: models.FranchiseStatus(c.Query("status")),
			Search: c.Query("q"),
		}
		if filter.Status != "" && !filter.Status.Valid() {
			return fiber.NewError(fiber.StatusBadRequest, "invalid status")
		}
		list, err := svc.List(c.UserContext(), filter)
		if err != nil {
			return apperrors.HTTP(err)
		}
		resp := make([]FranchiseResponse, 0, len(list))
		for i := range list {
			resp = append(resp, toResponse(&list[i], ""))
		}
		return c.JSON(resp)
	}
}

// GET /api/franchises/:id
func GetHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := request.ParamID(c, "id")
		if err != nil {
			return err
		}
		f, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return apperrors.HTTP(err)
		}
		username, err := svc.Login(c.UserContext(), f.ID)
		if err != nil {
			return apperrors.HTTP(err)
		}
		return c.JSON(toResponse(f, username))
	}
}

// GET /api/franchises/me
// Reachable while the caller's franchise is pending or suspended.
func MeHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p := auth.PrincipalFrom(c)
		id, ok := p.Owner()
		if !ok {
			return apperrors.HTTP(apperrors.ErrForbidden)
		}
		f, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return apperrors.HTTP(apperrors.ErrForbidden)
		}
		return c.JSON(toResponse(f, p.Username))
	}
}

// PUT /api/franchises/:id
func UpdateHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := request.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body Profile
		if err := request.Bind(c, &body); err != nil {
			return apperrors.HTTP(err)
		}
		f, err := svc.Update(c.UserContext(), auth.PrincipalFrom(c), id, body)
		if err != nil {
			return apperrors.HTTP(err)
		}
		return c.JSON(toResponse(f, ""))
	}
}

// DELETE /api/franchises/:id
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

// POST /api/franchises/:id/approve
func ApproveHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := request.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body ApproveRequest
		if len(c.Body()) > 0 {
			if err := request.Bind(c, &body); err != nil {
				return apperrors.HTTP(err)
			}
		}
		f, cred, err := svc.Approve(c.UserContext(), auth.PrincipalFrom(c), id, Login{
			Username: body.Username,
			Password: body.Password,
		})
		if err != nil {
			return apperrors.HTTP(err)
		}
		return c.JSON(toResponse(f, cred.Username))
	}
}

// PATCH /api/franchises/:id/status
func StatusHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := request.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body StatusRequest
		if err := request.Bind(c, &body); err != nil {
			return apperrors.HTTP(err)
		}
		f, err := svc.SetStatus(c.UserContext(), auth.PrincipalFrom(c), id, body.Status)
		if err != nil {
			return apperrors.HTTP(err)
		}
		return c.JSON(toResponse(f, ""))
	}
}

// POST /api/franchises/:id/toggle
func ToggleHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := request.ParamID(c, "id")
		if err != nil {
			return err
		}
		f, err := svc.Toggle(c.UserContext(), auth.PrincipalFrom(c), id)
		if err != nil {
			return apperrors.HTTP(err)
		}
		return c.JSON(toResponse(f, ""))
	}
}

// GET /api/public/franchises
func PublicListHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		list, err := svc.List(c.UserContext(), store.FranchiseFilter{
			Status: models.FranchiseActive,
			Search: c.Query("q"),
		})
		if err != nil {
			return apperrors.HTTP(err)
		}
		resp := make([]PublicFranchise, 0, len(list))
		for i := range list {
			resp = append(resp, toPublic(&list[i]))
		}
		return c.JSON(resp)
	}
}

// GET /api/public/franchises/:instituteId
func VerifyHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f, err := svc.Verify(c.UserContext(), c.Params("instituteId"))
		if err != nil {
			return apperrors.HTTP(err)
		}
		return c.JSON(toPublic(f))
	}
}
