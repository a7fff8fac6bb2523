package franchise

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sgcsc-backend/internal/apperrors"
	"sgcsc-backend/internal/audit"
	"sgcsc-backend/internal/auth"
	"sgcsc-backend/internal/metrics"
	"sgcsc-backend/internal/models"
	"sgcsc-backend/internal/store"

	"go.uber.org/zap"
)

const entityType = "franchise"

// Profile holds the franchise fields an admin may edit. Status and
// InstituteID are not part of it.
type Profile struct {
	InstituteName     string `json:"institute_name" validate:"required,max=200"`
	OwnerName         string `json:"owner_name" validate:"required,max=150"`
	OwnerDOB          string `json:"owner_dob" validate:"max=20"`
	AadharNumber      string `json:"aadhar_number" validate:"max=20"`
	PanNumber         string `json:"pan_number" validate:"max=20"`
	HeadQualification string `json:"head_qualification" validate:"max=150"`

	Email          string `json:"email" validate:"required,email,max=150"`
	ContactNumber  string `json:"contact_number" validate:"required,max=20"`
	WhatsappNumber string `json:"whatsapp_number" validate:"max=20"`

	Address  string `json:"address" validate:"max=255"`
	State    string `json:"state" validate:"max=100"`
	District string `json:"district" validate:"max=100"`
	City     string `json:"city" validate:"max=100"`

	NumComputerOperators int    `json:"num_computer_operators" validate:"gte=0"`
	NumClassRooms        int    `json:"num_class_rooms" validate:"gte=0"`
	TotalComputers       int    `json:"total_computers" validate:"gte=0"`
	CenterSpace          string `json:"center_space" validate:"max=100"`
	HasReception         bool   `json:"has_reception"`
	HasStaffRoom         bool   `json:"has_staff_room"`
	HasWaterSupply       bool   `json:"has_water_supply"`
	HasToilet            bool   `json:"has_toilet"`

	AadharFront     string `json:"aadhar_front" validate:"max=255"`
	AadharBack      string `json:"aadhar_back" validate:"max=255"`
	PanImage        string `json:"pan_image" validate:"max=255"`
	InstitutePhoto  string `json:"institute_photo" validate:"max=255"`
	OwnerSign       string `json:"owner_sign" validate:"max=255"`
	OwnerPhoto      string `json:"owner_photo" validate:"max=255"`
	CertificateCopy string `json:"certificate_copy" validate:"max=255"`
}

func (p Profile) apply(f *models.Franchise) {
	f.InstituteName = strings.TrimSpace(p.InstituteName)
	f.OwnerName = strings.TrimSpace(p.OwnerName)
	f.OwnerDOB = p.OwnerDOB
	f.AadharNumber = p.AadharNumber
	f.PanNumber = p.PanNumber
	f.HeadQualification = p.HeadQualification
	f.Email = strings.ToLower(strings.TrimSpace(p.Email))
	f.ContactNumber = strings.TrimSpace(p.ContactNumber)
	f.WhatsappNumber = p.WhatsappNumber
	f.Address = p.Address
	f.State = p.State
	f.District = p.District
	f.City = p.City
	f.NumComputerOperators = p.NumComputerOperators
	f.NumClassRooms = p.NumClassRooms
	f.TotalComputers = p.TotalComputers
	f.CenterSpace = p.CenterSpace
	f.HasReception = p.HasReception
	f.HasStaffRoom = p.HasStaffRoom
	f.HasWaterSupply = p.HasWaterSupply
	f.HasToilet = p.HasToilet
	f.AadharFront = p.AadharFront
	f.AadharBack = p.AadharBack
	f.PanImage = p.PanImage
	f.InstitutePhoto = p.InstitutePhoto
	f.OwnerSign = p.OwnerSign
	f.OwnerPhoto = p.OwnerPhoto
	f.CertificateCopy = p.CertificateCopy
}

// Login is an optional username/password pair supplied with a franchise.
type Login struct {
	Username string
	Password string
}

func (l Login) empty() bool {
	return strings.TrimSpace(l.Username) == "" && l.Password == ""
}

type CreateInput struct {
	Profile
	InstituteID string
	Status      models.FranchiseStatus
	Login       Login
}

type Service struct {
	store store.Store
	creds *auth.CredentialService
	log   *zap.Logger
}

func NewService(st store.Store, creds *auth.CredentialService, log *zap.Logger) *Service {
	return &Service{store: st, creds: creds, log: log}
}

// Register is the public application path. The franchise always starts
// pending and gets no credential, whatever the caller sent.
func (s *Service) Register(ctx context.Context, p Profile) (*models.Franchise, error) {
	var out *models.Franchise
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		f := &models.Franchise{Status: models.FranchisePending}
		p.apply(f)
		id, err := nextInstituteID(ctx, tx)
		if err != nil {
			return err
		}
		f.InstituteID = id
		if err := tx.CreateFranchise(ctx, f); err != nil {
			return fmt.Errorf("create franchise: %w", err)
		}
		if err := audit.WriteLog(ctx, tx, audit.LogOptions{
			FranchiseID: &f.ID,
			Actor:       auth.Guest,
			EntityType:  entityType,
			EntityID:    f.ID,
			Action:      models.AuditActionCreate,
			Description: "franchise application submitted",
			After:       f,
		}); err != nil {
			return err
		}
		out = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("franchise application received",
		zap.Uint("franchise_id", out.ID),
		zap.String("institute_id", out.InstituteID),
	)
	return out, nil
}

// Create is the admin path. Active franchises are created together with
// their FRANCHISE credential; pending ones may not carry login fields.
func (s *Service) Create(ctx context.Context, actor *auth.Principal, in CreateInput) (*models.Franchise, *models.Credential, error) {
	status, err := InitialStatus(in.Status)
	if err != nil {
		return nil, nil, err
	}
	switch {
	case status == models.FranchisePending && !in.Login.empty():
		return nil, nil, apperrors.Invalid("a pending franchise cannot have a login, approve it instead")
	case status == models.FranchiseActive && in.Login.empty():
		return nil, nil, apperrors.Invalid("username and password are required for an active franchise")
	}

	var (
		out  *models.Franchise
		cred *models.Credential
	)
	err = s.store.WithTx(ctx, func(tx store.Store) error {
		f := &models.Franchise{Status: status}
		in.Profile.apply(f)
		f.InstituteID = strings.ToUpper(strings.TrimSpace(in.InstituteID))
		if f.InstituteID == "" {
			id, err := nextInstituteID(ctx, tx)
			if err != nil {
				return err
			}
			f.InstituteID = id
		}
		if err := tx.CreateFranchise(ctx, f); err != nil {
			return fmt.Errorf("create franchise: %w", err)
		}
		if status == models.FranchiseActive {
			c, err := s.provision(ctx, tx, f, in.Login)
			if err != nil {
				return err
			}
			cred = c
		}
		if err := audit.WriteLog(ctx, tx, audit.LogOptions{
			FranchiseID: &f.ID,
			Actor:       actor,
			EntityType:  entityType,
			EntityID:    f.ID,
			Action:      models.AuditActionCreate,
			Description: "franchise created by admin",
			After:       f,
		}); err != nil {
			return err
		}
		out = f
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	s.log.Info("franchise created",
		zap.Uint("franchise_id", out.ID),
		zap.String("status", string(out.Status)),
		zap.Uint("actor_id", actor.CredentialID),
	)
	return out, cred, nil
}

func (s *Service) provision(ctx context.Context, tx store.Store, f *models.Franchise, login Login) (*models.Credential, error) {
	cred, err := s.creds.With(tx).Create(ctx, auth.NewCredential{
		Username: login.Username,
		Password: login.Password,
		Name:     f.OwnerName,
		Role:     models.RoleFranchise,
		OwnerID:  &f.ID,
	})
	if err != nil {
		return nil, err
	}
	metrics.CredentialsProvisioned.WithLabelValues(string(models.RoleFranchise)).Inc()
	return cred, nil
}

// Approve moves a pending franchise to active. A credential is provisioned
// from login unless one already exists.
func (s *Service) Approve(ctx context.Context, actor *auth.Principal, id uint, login Login) (*models.Franchise, *models.Credential, error) {
	var (
		out  *models.Franchise
		cred *models.Credential
	)
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		f, err := tx.FranchiseByID(ctx, id)
		if err != nil {
			return err
		}
		if f.Status != models.FranchisePending {
			return fmt.Errorf("approve %s franchise: %w", f.Status, apperrors.ErrInvalidTransition)
		}
		before := *f

		existing, err := s.creds.With(tx).FindByOwner(ctx, models.RoleFranchise, f.ID)
		switch {
		case err == nil:
			cred = existing
		case errors.Is(err, apperrors.ErrNotFound):
			if login.empty() {
				return apperrors.Invalid("username and password are required to approve a franchise without a login")
			}
			if cred, err = s.provision(ctx, tx, f, login); err != nil {
				return err
			}
		default:
			return err
		}

		f.Status = models.FranchiseActive
		if err := tx.UpdateFranchise(ctx, f); err != nil {
			return fmt.Errorf("update franchise: %w", err)
		}
		if err := audit.WriteLog(ctx, tx, audit.LogOptions{
			FranchiseID: &f.ID,
			Actor:       actor,
			EntityType:  entityType,
			EntityID:    f.ID,
			Action:      models.AuditActionStatus,
			Description: "franchise approved",
			Before:      before,
			After:       f,
		}); err != nil {
			return err
		}
		out = f
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	metrics.FranchiseTransitions.WithLabelValues(string(models.FranchisePending), string(models.FranchiseActive)).Inc()
	s.log.Info("franchise approved",
		zap.Uint("franchise_id", out.ID),
		zap.Uint("credential_id", cred.ID),
		zap.Uint("actor_id", actor.CredentialID),
	)
	return out, cred, nil
}

// SetStatus moves an approved franchise between active and suspended.
// Setting the current status again is a no-op.
func (s *Service) SetStatus(ctx context.Context, actor *auth.Principal, id uint, status models.FranchiseStatus) (*models.Franchise, error) {
	return s.changeStatus(ctx, actor, id, func(from models.FranchiseStatus) (models.FranchiseStatus, error) {
		if from == models.FranchisePending && status != models.FranchisePending {
			return "", fmt.Errorf("pending franchises are activated by approval: %w", apperrors.ErrInvalidTransition)
		}
		return status, CheckTransition(from, status)
	})
}

// Toggle flips active and suspended.
func (s *Service) Toggle(ctx context.Context, actor *auth.Principal, id uint) (*models.Franchise, error) {
	return s.changeStatus(ctx, actor, id, Toggled)
}

func (s *Service) changeStatus(ctx context.Context, actor *auth.Principal, id uint, target func(models.FranchiseStatus) (models.FranchiseStatus, error)) (*models.Franchise, error) {
	var (
		out  *models.Franchise
		from models.FranchiseStatus
	)
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		f, err := tx.FranchiseByID(ctx, id)
		if err != nil {
			return err
		}
		from = f.Status
		to, err := target(from)
		if err != nil {
			return err
		}
		out = f
		if to == from {
			return nil
		}
		before := *f
		f.Status = to
		if err := tx.UpdateFranchise(ctx, f); err != nil {
			return fmt.Errorf("update franchise: %w", err)
		}
		return audit.WriteLog(ctx, tx, audit.LogOptions{
			FranchiseID: &f.ID,
			Actor:       actor,
			EntityType:  entityType,
			EntityID:    f.ID,
			Action:      models.AuditActionStatus,
			Description: fmt.Sprintf("franchise %s", to),
			Before:      before,
			After:       f,
		})
	})
	if err != nil {
		return nil, err
	}
	if out.Status != from {
		metrics.FranchiseTransitions.WithLabelValues(string(from), string(out.Status)).Inc()
		s.log.Info("franchise status changed",
			zap.Uint("franchise_id", out.ID),
			zap.String("from", string(from)),
			zap.String("to", string(out.Status)),
			zap.Uint("actor_id", actor.CredentialID),
		)
	}
	return out, nil
}

// Update edits the profile. Status and institute id are left alone.
func (s *Service) Update(ctx context.Context, actor *auth.Principal, id uint, p Profile) (*models.Franchise, error) {
	var out *models.Franchise
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		f, err := tx.FranchiseByID(ctx, id)
		if err != nil {
			return err
		}
		before := *f
		p.apply(f)
		if err := tx.UpdateFranchise(ctx, f); err != nil {
			return fmt.Errorf("update franchise: %w", err)
		}
		out = f
		return audit.WriteLog(ctx, tx, audit.LogOptions{
			FranchiseID: &f.ID,
			Actor:       actor,
			EntityType:  entityType,
			EntityID:    f.ID,
			Action:      models.AuditActionUpdate,
			Description: "franchise profile updated",
			Before:      before,
			After:       f,
		})
	})
	return out, err
}

// Delete removes the franchise and its login together. Franchises that
// still have students are kept.
func (s *Service) Delete(ctx context.Context, actor *auth.Principal, id uint) error {
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		f, err := tx.FranchiseByID(ctx, id)
		if err != nil {
			return err
		}
		n, err := tx.CountStudents(ctx, store.StudentFilter{FranchiseID: &f.ID})
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("franchise has %d students: %w", n, apperrors.ErrConflict)
		}
		if err := s.creds.With(tx).DeleteForOwner(ctx, models.RoleFranchise, f.ID); err != nil {
			return err
		}
		if err := tx.DeleteFranchise(ctx, f.ID); err != nil {
			return fmt.Errorf("delete franchise: %w", err)
		}
		return audit.WriteLog(ctx, tx, audit.LogOptions{
			FranchiseID: &f.ID,
			Actor:       actor,
			EntityType:  entityType,
			EntityID:    f.ID,
			Action:      models.AuditActionDelete,
			Description: "franchise deleted",
			Before:      f,
		})
	})
	if err != nil {
		return err
	}
	s.log.Info("franchise deleted", zap.Uint("franchise_id", id), zap.Uint("actor_id", actor.CredentialID))
	return nil
}

func (s *Service) Get(ctx context.Context, id uint) (*models.Franchise, error) {
	return s.store.FranchiseByID(ctx, id)
}

func (s *Service) List(ctx context.Context, filter store.FranchiseFilter) ([]models.Franchise, error) {
	return s.store.ListFranchises(ctx, filter)
}

// Login returns the username provisioned for the franchise, if any.
func (s *Service) Login(ctx context.Context, id uint) (string, error) {
	cred, err := s.creds.FindByOwner(ctx, models.RoleFranchise, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return cred.Username, nil
}

// Verify looks up an active franchise by institute id. Pending and
// suspended centers are reported as not found.
func (s *Service) Verify(ctx context.Context, instituteID string) (*models.Franchise, error) {
	f, err := s.store.FranchiseByInstituteID(ctx, strings.ToUpper(strings.TrimSpace(instituteID)))
	if err != nil {
		return nil, err
	}
	if f.Status != models.FranchiseActive {
		return nil, apperrors.ErrNotFound
	}
	return f, nil
}

// instituteIDLock is held from generating an id to commit, so concurrent
// registrations never pick the same one.
const instituteIDLock = "franchise-institute-id"

// nextInstituteID hands out INST0001, INST0002, ... skipping taken codes.
func nextInstituteID(ctx context.Context, tx store.Store) (string, error) {
	if err := tx.Lock(ctx, instituteIDLock); err != nil {
		return "", fmt.Errorf("lock institute ids: %w", err)
	}
	n, err := tx.CountFranchises(ctx, store.FranchiseFilter{})
	if err != nil {
		return "", err
	}
	for i := n + 1; ; i++ {
		id := fmt.Sprintf("INST%04d", i)
		_, err := tx.FranchiseByInstituteID(ctx, id)
		if errors.Is(err, apperrors.ErrNotFound) {
			return id, nil
		}
		if err != nil {
			return "", err
		}
	}
}
