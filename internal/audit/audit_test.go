package audit

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"sgcsc-backend/internal/auth"
	"sgcsc-backend/internal/models"
	"sgcsc-backend/internal/store"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, st *store.Memory) {
	t.Helper()
	ctx := context.Background()
	one, two := uint(1), uint(2)
	actor := &auth.Principal{CredentialID: 9, Name: "Admin", Role: models.RoleAdmin}
	for _, opts := range []LogOptions{
		{FranchiseID: &one, Actor: actor, EntityType: "student", EntityID: 1, Action: models.AuditActionCreate, After: map[string]string{"name": "A"}},
		{FranchiseID: &two, Actor: actor, EntityType: "student", EntityID: 2, Action: models.AuditActionCreate},
		{FranchiseID: &one, Actor: actor, EntityType: "franchise", EntityID: 1, Action: models.AuditActionStatus},
	} {
		require.NoError(t, WriteLog(ctx, st, opts))
	}
}

func TestWriteLog(t *testing.T) {
	st := store.NewMemory()
	seed(t, st)

	logs, err := st.ListAuditLogs(context.Background(), store.AuditFilter{EntityType: "student"})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	first := logs[1]
	assert.Equal(t, uint(9), first.ActorID)
	assert.Equal(t, models.RoleAdmin, first.ActorRole)
	assert.JSONEq(t, `{"name":"A"}`, string(first.AfterData))
	assert.Equal(t, "null", string(first.BeforeData))
}

func listAs(t *testing.T, st *store.Memory, p *auth.Principal, query string) []AuditLogResponse {
	t.Helper()
	app := fiber.New()
	app.Get("/audit-logs", func(c *fiber.Ctx) error {
		c.Locals(auth.CtxPrincipalKey, p)
		return c.Next()
	}, ListAuditLogsHandler(st))

	resp, err := app.Test(httptest.NewRequest("GET", "/audit-logs"+query, nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out []AuditLogResponse
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func TestListIsScopedToFranchise(t *testing.T) {
	st := store.NewMemory()
	seed(t, st)

	all := listAs(t, st, &auth.Principal{Role: models.RoleAdmin}, "")
	assert.Len(t, all, 3)

	two := uint(2)
	own := listAs(t, st, &auth.Principal{Role: models.RoleFranchise, OwnerID: &two}, "?franchise_id=1")
	require.Len(t, own, 1)
	assert.Equal(t, uint(2), own[0].EntityID)

	filtered := listAs(t, st, &auth.Principal{Role: models.RoleAdmin}, "?franchise_id=1&entity_type=franchise")
	require.Len(t, filtered, 1)
	assert.Equal(t, models.AuditActionStatus, filtered[0].Action)
}
