package audit

import (
	"encoding/json"

	"sgcsc-backend/internal/auth"
	"sgcsc-backend/internal/models"
	"sgcsc-backend/internal/request"
	"sgcsc-backend/internal/store"

	"github.com/gofiber/fiber/v2"
)

type AuditLogResponse struct {
	ID          uint               `json:"id"`
	CreatedAt   string             `json:"created_at"`
	FranchiseID *uint              `json:"franchise_id"`
	ActorID     uint               `json:"actor_id"`
	ActorName   string             `json:"actor_name"`
	ActorRole   models.Role        `json:"actor_role"`
	EntityType  string             `json:"entity_type"`
	EntityID    uint               `json:"entity_id"`
	Action      models.AuditAction `json:"action"`
	Description string             `json:"description"`
	Before      json.RawMessage    `json:"before,omitempty"`
	After       json.RawMessage    `json:"after,omitempty"`
}

const defaultListLimit = 200

// GET /api/audit-logs?entity_type=student&entity_id=1&franchise_id=1
// FRANCHISE callers only ever see entries of their own franchise.
func ListAuditLogsHandler(st store.AuditLogs) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p := auth.PrincipalFrom(c)

		filter := store.AuditFilter{
			EntityType: c.Query("entity_type"),
			Limit:      c.QueryInt("limit", defaultListLimit),
		}
		if filter.Limit <= 0 || filter.Limit > 1000 {
			filter.Limit = defaultListLimit
		}

		var err error
		if filter.EntityID, err = request.QueryID(c, "entity_id"); err != nil {
			return err
		}
		if p.Is(models.RoleFranchise) {
			filter.FranchiseID = p.OwnerID
		} else if filter.FranchiseID, err = request.QueryID(c, "franchise_id"); err != nil {
			return err
		}

		logs, err := st.ListAuditLogs(c.UserContext(), filter)
		if err != nil {
			return err
		}

		resp := make([]AuditLogResponse, 0, len(logs))
		for _, l := range logs {
			resp = append(resp, AuditLogResponse{
				ID:          l.ID,
				CreatedAt:   l.CreatedAt.Format("2006-01-02 15:04:05"),
				FranchiseID: l.FranchiseID,
				ActorID:     l.ActorID,
				ActorName:   l.ActorName,
				ActorRole:   l.ActorRole,
				EntityType:  l.EntityType,
				EntityID:    l.EntityID,
				Action:      l.Action,
				Description: l.Description,
				Before:      raw(l.BeforeData),
				After:       raw(l.AfterData),
			})
		}
		return c.JSON(resp)
	}
}

func raw(b []byte) json.RawMessage {
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	return json.RawMessage(b)
}
