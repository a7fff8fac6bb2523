package auth

import (
	"errors"

	"sgcsc-backend/internal/apperrors"
	"sgcsc-backend/internal/metrics"
	"sgcsc-backend/internal/models"
	"sgcsc-backend/internal/request"
	"sgcsc-backend/internal/store"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type SeedAdminRequest struct {
	Username string `json:"username" validate:"required,username"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Name     string `json:"name" validate:"max=150"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required,max=100"`
	Password string `json:"password" validate:"required,max=72"`
}

// SeedAdminHandler creates the first ADMIN. Refused once one exists.
func SeedAdminHandler(creds *CredentialService, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body SeedAdminRequest
		if err := request.Bind(c, &body); err != nil {
			return apperrors.HTTP(err)
		}

		cred, err := creds.SeedAdmin(c.UserContext(), body.Username, body.Password, body.Name)
		if err != nil {
			return apperrors.HTTP(err)
		}
		metrics.CredentialsProvisioned.WithLabelValues(string(models.RoleAdmin)).Inc()
		log.Info("admin seeded", zap.Uint("credential_id", cred.ID), zap.String("username", cred.Username))

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"id":       cred.ID,
			"username": cred.Username,
			"name":     cred.Name,
			"role":     cred.Role,
		})
	}
}

func LoginHandler(issuer *Issuer, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if err := request.Bind(c, &body); err != nil {
			return apperrors.HTTP(err)
		}

		sess, cred, err := issuer.Login(c.UserContext(), body.Username, body.Password)
		if err != nil {
			if errors.Is(err, apperrors.ErrInvalidCredentials) {
				metrics.LoginAttempts.WithLabelValues("failure").Inc()
			}
			return apperrors.HTTP(err)
		}
		metrics.LoginAttempts.WithLabelValues("success").Inc()
		log.Info("login", zap.Uint("credential_id", cred.ID), zap.String("role", string(cred.Role)))

		resp := fiber.Map{
			"id":         cred.ID,
			"username":   cred.Username,
			"name":       cred.Name,
			"role":       cred.Role,
			"token":      sess.Token,
			"expires_at": sess.ExpiresAt,
		}
		switch cred.Role {
		case models.RoleFranchise:
			resp["franchise_id"] = cred.OwnerID
		case models.RoleStudent:
			resp["student_id"] = cred.OwnerID
		}
		return c.JSON(resp)
	}
}

// LogoutHandler revokes the token the request was made with.
func LogoutHandler(revoker Revoker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p := PrincipalFrom(c)
		if err := revoker.Revoke(c.UserContext(), p.TokenID, p.ExpiresAt); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// MeHandler returns the caller together with the profile its login belongs
// to.
func MeHandler(st store.Students) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p := PrincipalFrom(c)
		resp := fiber.Map{
			"id":       p.CredentialID,
			"username": p.Username,
			"name":     p.Name,
			"role":     p.Role,
		}

		switch p.Role {
		case models.RoleFranchise:
			resp["franchise_id"] = p.OwnerID
			resp["franchise"] = fiber.Map{
				"id":             p.Franchise.ID,
				"institute_id":   p.Franchise.InstituteID,
				"institute_name": p.Franchise.InstituteName,
				"status":         p.Franchise.Status,
			}
		case models.RoleStudent:
			id, _ := p.Owner()
			s, err := st.StudentByID(c.UserContext(), id)
			if err != nil {
				if errors.Is(err, apperrors.ErrNotFound) {
					return apperrors.HTTP(apperrors.ErrForbidden)
				}
				return err
			}
			resp["student_id"] = p.OwnerID
			resp["student"] = fiber.Map{
				"id":            s.ID,
				"enrollment_no": s.EnrollmentNo,
				"name":          s.Name,
				"course_id":     s.CourseID,
				"franchise_id":  s.FranchiseID,
				"status":        s.Status,
			}
		}
		return c.JSON(resp)
	}
}
