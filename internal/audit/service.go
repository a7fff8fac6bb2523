package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"sgcsc-backend/internal/auth"
	"sgcsc-backend/internal/models"
	"sgcsc-backend/internal/store"

	"gorm.io/datatypes"
)

type LogOptions struct {
	FranchiseID *uint
	Actor       *auth.Principal
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

// WriteLog records one state change. Call it with the transaction store of
// the change so the entry commits or rolls back with it.
func WriteLog(ctx context.Context, st store.AuditLogs, opts LogOptions) error {
	entry := models.AuditLog{
		FranchiseID: opts.FranchiseID,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		BeforeData:  toJSON(opts.Before),
		AfterData:   toJSON(opts.After),
	}
	if a := opts.Actor; a != nil {
		entry.ActorID = a.CredentialID
		entry.ActorName = a.Name
		entry.ActorRole = a.Role
	}

	if err := st.CreateAuditLog(ctx, &entry); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// jsonb columns need "null" rather than an empty string.
func toJSON(v any) datatypes.JSON {
	if v == nil {
		return datatypes.JSON("null")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("null")
	}
	return datatypes.JSON(b)
}
