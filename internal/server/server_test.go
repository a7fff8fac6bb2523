package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sgcsc-backend/internal/auth"
	"sgcsc-backend/internal/config"
	"sgcsc-backend/internal/store"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type client struct {
	t   *testing.T
	app *fiber.App
}

type reply struct {
	Code int
	Body []byte
}

func (r reply) JSON(t *testing.T) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(r.Body, &m), string(r.Body))
	return m
}

func (r reply) List(t *testing.T) []map[string]any {
	t.Helper()
	var l []map[string]any
	require.NoError(t, json.Unmarshal(r.Body, &l), string(r.Body))
	return l
}

func (c *client) do(method, path, token string, body any) reply {
	c.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(c.t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.app.Test(req, -1)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return reply{Code: resp.StatusCode, Body: b}
}

func (c *client) login(username, password string) map[string]any {
	c.t.Helper()
	r := c.do("POST", "/api/auth/login", "", fiber.Map{"username": username, "password": password})
	require.Equal(c.t, fiber.StatusOK, r.Code, string(r.Body))
	return r.JSON(c.t)
}

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:      "test",
		StoreDriver: "memory",
		JWTSecret:   strings.Repeat("s", 32),
		SessionTTL:  time.Hour,
		CORSOrigins: "*",
		BcryptCost:  bcrypt.MinCost,
	}
}

func newClient(t *testing.T) *client {
	t.Helper()
	cfg := testConfig()
	cfg.SeedAdminUsername = "admin"
	cfg.SeedAdminPassword = "admin-pass"
	srv := New(Deps{
		Config:  cfg,
		Store:   store.NewMemory(),
		Revoker: auth.NewMemoryRevoker(),
		Log:     zap.NewNop(),
	})
	require.NoError(t, srv.SeedAdmin(context.Background(), cfg, zap.NewNop()))
	return &client{t: t, app: srv.App}
}

func id(v any) uint {
	return uint(v.(float64))
}

var denied = `{"error":"not allowed"}`

// world runs Scenarios A and B and sets up a second active franchise and a
// course.
type world struct {
	*client
	admin   string
	f1, f2  uint
	f1Token string
	course  uint
}

func profile(name string) fiber.Map {
	return fiber.Map{
		"institute_name": name,
		"owner_name":     "Owner " + name,
		"email":          strings.ReplaceAll(strings.ToLower(name), " ", "") + "@example.com",
		"contact_number": "9999999999",
		"city":           "Patna",
	}
}

func setup(t *testing.T) *world {
	c := newClient(t)
	w := &world{client: c}
	w.admin = c.login("admin", "admin-pass")["token"].(string)

	r := c.do("POST", "/api/courses", w.admin, fiber.Map{"name": "Diploma in Computer Applications", "code": "DCA", "type": "Long Term", "fees": 9000})
	require.Equal(t, fiber.StatusCreated, r.Code, string(r.Body))
	w.course = id(r.JSON(t)["id"])

	// Scenario A: public registration is pending and has no login.
	reg := profile("Center A")
	reg["username"] = "centerA"
	reg["password"] = "pw1"
	r = c.do("POST", "/api/franchises/register", "", reg)
	require.Equal(t, fiber.StatusCreated, r.Code, string(r.Body))
	body := r.JSON(t)
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, "INST0001", body["institute_id"])
	assert.NotContains(t, body, "username")
	w.f1 = id(body["id"])

	r = c.do("POST", "/api/auth/login", "", fiber.Map{"username": "centerA", "password": "pw1"})
	assert.Equal(t, fiber.StatusUnauthorized, r.Code)

	// Scenario B: approval provisions the login.
	r = c.do("POST", fmt.Sprintf("/api/franchises/%d/approve", w.f1), w.admin, fiber.Map{"username": "centerA", "password": "pw1"})
	require.Equal(t, fiber.StatusOK, r.Code, string(r.Body))
	assert.Equal(t, "active", r.JSON(t)["status"])

	sess := c.login("centerA", "pw1")
	assert.Equal(t, "FRANCHISE", sess["role"])
	assert.Equal(t, w.f1, id(sess["franchise_id"]))
	w.f1Token = sess["token"].(string)

	f2 := profile("Center B")
	f2["status"] = "active"
	f2["username"] = "centerb"
	f2["password"] = "pw2"
	r = c.do("POST", "/api/franchises", w.admin, f2)
	require.Equal(t, fiber.StatusCreated, r.Code, string(r.Body))
	w.f2 = id(r.JSON(t)["id"])
	return w
}

func (w *world) student(token, enrollmentNo string, franchiseID uint, extra fiber.Map) reply {
	body := fiber.Map{"name": "Student " + enrollmentNo, "course_id": w.course, "enrollment_no": enrollmentNo}
	if franchiseID != 0 {
		body["franchise_id"] = franchiseID
	}
	for k, v := range extra {
		body[k] = v
	}
	return w.do("POST", "/api/students", token, body)
}

func TestHealthAndMetrics(t *testing.T) {
	c := newClient(t)
	r := c.do("GET", "/health", "", nil)
	assert.Equal(t, fiber.StatusOK, r.Code)
	assert.JSONEq(t, `{"status":"ok"}`, string(r.Body))

	c.do("POST", "/api/auth/login", "", fiber.Map{"username": "admin", "password": "wrong"})
	r = c.do("GET", "/metrics", "", nil)
	assert.Equal(t, fiber.StatusOK, r.Code)
	assert.Contains(t, string(r.Body), "sgcsc_login_attempts_total")
}

func TestFranchiseCannotEnrollIntoAnotherFranchise(t *testing.T) {
	w := setup(t)

	r := w.student(w.f1Token, "E100", w.f1, nil)
	require.Equal(t, fiber.StatusCreated, r.Code, string(r.Body))
	body := r.JSON(t)
	assert.Equal(t, "E100", body["enrollment_no"])
	assert.Equal(t, "Center A", body["center_name"])

	r = w.student(w.f1Token, "E100b", w.f2, nil)
	assert.Equal(t, fiber.StatusForbidden, r.Code)
	assert.JSONEq(t, denied, string(r.Body))

	r = w.do("GET", "/api/public/students/E100B", "", nil)
	assert.Equal(t, fiber.StatusNotFound, r.Code)
	r = w.do("GET", "/api/public/students/e100", "", nil)
	require.Equal(t, fiber.StatusOK, r.Code)
	assert.JSONEq(t, `{"enrollment_no":"E100","name":"Student E100","father_name":"","center_name":"Center A","course_name":"Diploma in Computer Applications","status":"active"}`, string(r.Body))
}

func TestFranchiseListsOnlyOwnStudents(t *testing.T) {
	w := setup(t)
	require.Equal(t, fiber.StatusCreated, w.student(w.f1Token, "E100", 0, nil).Code)
	require.Equal(t, fiber.StatusCreated, w.student(w.admin, "E200", w.f2, nil).Code)
	r := w.student(w.admin, "E201", w.f2, nil)
	require.Equal(t, fiber.StatusCreated, r.Code)
	foreign := id(r.JSON(t)["id"])

	for _, path := range []string{"/api/students", fmt.Sprintf("/api/students?franchise_id=%d", w.f2)} {
		r = w.do("GET", path, w.f1Token, nil)
		require.Equal(t, fiber.StatusOK, r.Code)
		list := r.List(t)
		require.Len(t, list, 1, path)
		assert.Equal(t, "E100", list[0]["enrollment_no"])
	}

	r = w.do("GET", "/api/students", w.admin, nil)
	assert.Len(t, r.List(t), 3)

	r = w.do("GET", fmt.Sprintf("/api/students/%d", foreign), w.f1Token, nil)
	assert.Equal(t, fiber.StatusForbidden, r.Code)
	r = w.do("PUT", fmt.Sprintf("/api/students/%d", foreign), w.f1Token, fiber.Map{"name": "X", "course_id": w.course})
	assert.Equal(t, fiber.StatusForbidden, r.Code)
	r = w.do("DELETE", fmt.Sprintf("/api/students/%d", foreign), w.f1Token, nil)
	assert.Equal(t, fiber.StatusForbidden, r.Code)

	r = w.do("GET", "/api/students/export", w.f1Token, nil)
	require.Equal(t, fiber.StatusOK, r.Code)
	assert.NotEmpty(t, r.Body)
}

func TestSuspendedFranchiseIsLockedOut(t *testing.T) {
	w := setup(t)
	require.Equal(t, fiber.StatusCreated, w.student(w.f1Token, "E100", 0, nil).Code)

	path := fmt.Sprintf("/api/franchises/%d/status", w.f1)
	r := w.do("PATCH", path, w.admin, fiber.Map{"status": "suspended"})
	require.Equal(t, fiber.StatusOK, r.Code, string(r.Body))

	r = w.do("GET", "/api/students", w.f1Token, nil)
	assert.Equal(t, fiber.StatusForbidden, r.Code)
	assert.JSONEq(t, denied, string(r.Body))

	// Own profile stays readable so the center can see why.
	r = w.do("GET", "/api/franchises/me", w.f1Token, nil)
	require.Equal(t, fiber.StatusOK, r.Code)
	assert.Equal(t, "suspended", r.JSON(t)["status"])

	// A fresh session is no better.
	fresh := w.login("centerA", "pw1")["token"].(string)
	assert.Equal(t, fiber.StatusForbidden, w.do("GET", "/api/students", fresh, nil).Code)

	r = w.do("POST", fmt.Sprintf("/api/franchises/%d/toggle", w.f1), w.admin, nil)
	require.Equal(t, fiber.StatusOK, r.Code)
	assert.Equal(t, "active", r.JSON(t)["status"])
	assert.Equal(t, fiber.StatusOK, w.do("GET", "/api/students", w.f1Token, nil).Code)

	// Suspending twice is the same as once.
	w.do("PATCH", path, w.admin, fiber.Map{"status": "suspended"})
	r = w.do("PATCH", path, w.admin, fiber.Map{"status": "suspended"})
	require.Equal(t, fiber.StatusOK, r.Code)
	assert.Equal(t, "suspended", r.JSON(t)["status"])

	r = w.do("PATCH", path, w.admin, fiber.Map{"status": "pending"})
	assert.Equal(t, fiber.StatusBadRequest, r.Code)
}

func TestRoleBoundaries(t *testing.T) {
	w := setup(t)

	r := w.do("GET", "/api/students", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, r.Code)
	assert.JSONEq(t, denied, string(r.Body))

	r = w.do("GET", "/api/franchises", w.f1Token, nil)
	assert.Equal(t, fiber.StatusForbidden, r.Code)
	assert.JSONEq(t, denied, string(r.Body))

	r = w.do("POST", "/api/courses", w.f1Token, fiber.Map{"name": "X", "code": "X"})
	assert.Equal(t, fiber.StatusForbidden, r.Code)

	r = w.do("GET", "/api/courses", "", nil)
	require.Equal(t, fiber.StatusOK, r.Code)
	assert.Len(t, r.List(t), 1)

	r = w.do("POST", "/api/auth/seed-admin", "", fiber.Map{"username": "root", "password": "root-pass"})
	assert.Equal(t, fiber.StatusConflict, r.Code)
}

func TestStudentSession(t *testing.T) {
	w := setup(t)
	r := w.student(w.f1Token, "E100", 0, fiber.Map{"username": "asha", "password": "pw3"})
	require.Equal(t, fiber.StatusCreated, r.Code, string(r.Body))
	own := id(r.JSON(t)["id"])
	r = w.student(w.f1Token, "E101", 0, nil)
	require.Equal(t, fiber.StatusCreated, r.Code)
	other := id(r.JSON(t)["id"])

	r = w.do("POST", "/api/admit-cards", w.admin, fiber.Map{"enrollment_no": "E100", "roll_no": "R-1", "course_id": w.course, "exam_center": "Main"})
	require.Equal(t, fiber.StatusCreated, r.Code, string(r.Body))

	sess := w.login("asha", "pw3")
	assert.Equal(t, "STUDENT", sess["role"])
	token := sess["token"].(string)

	r = w.do("GET", "/api/students/me", token, nil)
	require.Equal(t, fiber.StatusOK, r.Code)
	assert.Equal(t, "E100", r.JSON(t)["enrollment_no"])

	assert.Equal(t, fiber.StatusOK, w.do("GET", fmt.Sprintf("/api/students/%d", own), token, nil).Code)
	assert.Equal(t, fiber.StatusForbidden, w.do("GET", fmt.Sprintf("/api/students/%d", other), token, nil).Code)
	assert.Equal(t, fiber.StatusForbidden, w.do("GET", "/api/students", token, nil).Code)
	assert.Equal(t, fiber.StatusForbidden, w.do("GET", "/api/dashboard/stats", token, nil).Code)

	r = w.do("GET", "/api/students/me/admit-cards", token, nil)
	require.Equal(t, fiber.StatusOK, r.Code)
	cards := r.List(t)
	require.Len(t, cards, 1)
	assert.Equal(t, "Main", cards[0]["exam_center"])

	r = w.do("GET", "/api/public/admit-cards/E100", "", nil)
	assert.Equal(t, fiber.StatusOK, r.Code)

	// Deleting the student removes its login.
	require.Equal(t, fiber.StatusNoContent, w.do("DELETE", fmt.Sprintf("/api/students/%d", own), w.admin, nil).Code)
	assert.Equal(t, fiber.StatusUnauthorized, w.do("GET", "/api/students/me", token, nil).Code)
	r = w.do("POST", "/api/auth/login", "", fiber.Map{"username": "asha", "password": "pw3"})
	assert.Equal(t, fiber.StatusUnauthorized, r.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	w := setup(t)
	assert.Equal(t, fiber.StatusOK, w.do("GET", "/api/auth/me", w.f1Token, nil).Code)
	assert.Equal(t, fiber.StatusNoContent, w.do("POST", "/api/auth/logout", w.f1Token, nil).Code)
	assert.Equal(t, fiber.StatusUnauthorized, w.do("GET", "/api/auth/me", w.f1Token, nil).Code)
}

func TestDeletingFranchiseCascades(t *testing.T) {
	w := setup(t)
	require.Equal(t, fiber.StatusCreated, w.student(w.admin, "E200", w.f2, nil).Code)
	f2Token := w.login("centerb", "pw2")["token"].(string)

	path := fmt.Sprintf("/api/franchises/%d", w.f2)
	assert.Equal(t, fiber.StatusConflict, w.do("DELETE", path, w.admin, nil).Code)

	list := w.do("GET", "/api/students?franchise_id="+fmt.Sprint(w.f2), w.admin, nil).List(t)
	require.Len(t, list, 1)
	require.Equal(t, fiber.StatusNoContent, w.do("DELETE", fmt.Sprintf("/api/students/%d", id(list[0]["id"])), w.admin, nil).Code)
	require.Equal(t, fiber.StatusNoContent, w.do("DELETE", path, w.admin, nil).Code)

	assert.Equal(t, fiber.StatusUnauthorized, w.do("GET", "/api/auth/me", f2Token, nil).Code)
	r := w.do("POST", "/api/auth/login", "", fiber.Map{"username": "centerb", "password": "pw2"})
	assert.Equal(t, fiber.StatusUnauthorized, r.Code)
}

func TestDashboardAndAudit(t *testing.T) {
	w := setup(t)
	require.Equal(t, fiber.StatusCreated, w.student(w.f1Token, "E100", 0, nil).Code)
	require.Equal(t, fiber.StatusCreated, w.student(w.admin, "E200", w.f2, nil).Code)
	w.do("POST", "/api/franchises/register", "", profile("Center C"))

	r := w.do("GET", "/api/dashboard/stats", w.admin, nil)
	require.Equal(t, fiber.StatusOK, r.Code)
	stats := r.JSON(t)
	assert.Equal(t, float64(2), stats["students"].(map[string]any)["total"])
	assert.Equal(t, float64(1), stats["pending_applications"])

	r = w.do("GET", "/api/dashboard/stats", w.f1Token, nil)
	require.Equal(t, fiber.StatusOK, r.Code)
	stats = r.JSON(t)
	assert.Equal(t, float64(1), stats["students"].(map[string]any)["total"])
	assert.NotContains(t, stats, "franchises")

	r = w.do("GET", "/api/audit-logs?entity_type=student", w.f1Token, nil)
	require.Equal(t, fiber.StatusOK, r.Code)
	logs := r.List(t)
	require.Len(t, logs, 1)
	assert.Equal(t, float64(w.f1), logs[0]["franchise_id"])
}
