package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"markalloc/internal/infrastructure/persistence/sqlite/model"
	sqliterepo "markalloc/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "markalloc/internal/infrastructure/persistence/sqlite/uow"
	"markalloc/internal/usecase/allocation"
)

const dataset = `
[[cycles]]
id = 1
year = 2026
total_required = 1
experience_ratio = 0.0

[[subjects]]
id = 5
code = "MATH"
name = "Mathematics"

[[examiners]]
id = 1
full_name = "Ada"
region = "North"
gender = "F"
subjects = [5]

[[examiners]]
id = 2
full_name = "Ben"
region = "South"
gender = "M"
subjects = [5]

[[scores]]
examiner_id = 1
subject_id = 5
year = 2026
score = 90.0

[[scores]]
examiner_id = 2
subject_id = 5
year = 2026
score = 80.0
`

func setupApp(t *testing.T) *fiber.App {
	t.Helper()

	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "api.sqlite")), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(model.All()...))

	svc := allocation.NewService(
		sqliterepo.NewAllocationRepository(db),
		sqliteuow.NewUnitOfWork(db),
		sqliterepo.NewScoreTableOracle(db),
		allocation.WithReferenceRepository(sqliterepo.NewReferenceRepository(db)),
	)

	ds, err := allocation.ParseDataset(strings.NewReader(dataset))
	require.NoError(t, err)
	_, err = svc.ImportDataset(context.Background(), ds)
	require.NoError(t, err)

	return NewApp(context.Background(), svc)
}

func do(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerUserID, "42")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func TestRunAllocationAndList(t *testing.T) {
	app := setupApp(t)

	status, body := do(t, app, http.MethodPost, "/api/v1/cycles/1/subjects/5/allocations", "")
	require.Equal(t, http.StatusCreated, status, body)
	assert.EqualValues(t, 1, body["approved"])
	assert.EqualValues(t, 1, body["waitlisted"])
	assert.EqualValues(t, 0, body["rejected"])

	status, body = do(t, app, http.MethodGet, "/api/v1/cycles/1/subjects/5/allocations?status=WAITLISTED", "")
	require.Equal(t, http.StatusOK, status)
	data, ok := body["data"].([]any)
	require.True(t, ok)
	require.Len(t, data, 1)
	first := data[0].(map[string]any)
	assert.EqualValues(t, 2, first["examiner_id"])
	assert.EqualValues(t, 2, first["rank"])

	status, body = do(t, app, http.MethodPost, "/api/v1/cycles/1/subjects/5/allocations", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_state", body["kind"])
	assert.Equal(t, "Marking cycle must be OPEN, current status: ALLOCATED", body["error"])
}

func TestNotFoundMapsTo404(t *testing.T) {
	app := setupApp(t)

	status, body := do(t, app, http.MethodGet, "/api/v1/cycles/99", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", body["kind"])
	assert.Equal(t, "marking cycle 99 not found", body["error"])
}

func TestOverrideAndAudit(t *testing.T) {
	app := setupApp(t)

	status, _ := do(t, app, http.MethodPost, "/api/v1/cycles/1/subjects/5/allocations", "")
	require.Equal(t, http.StatusCreated, status)

	_, body := do(t, app, http.MethodGet, "/api/v1/cycles/1/subjects/5/allocations?status=WAITLISTED", "")
	waitlisted := body["data"].([]any)[0].(map[string]any)
	id := int(waitlisted["id"].(float64))

	path := "/api/v1/allocations/" + strconv.Itoa(id) + "/overrides"
	status, body = do(t, app, http.MethodPost, path, `{"action":"promote","reason":"panel decision"}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "APPROVED", body["status"])

	status, body = do(t, app, http.MethodPost, path, `{"action":"promote"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_state", body["kind"])

	status, body = do(t, app, http.MethodGet, "/api/v1/cycles/1/audit?allocation_id="+strconv.Itoa(id), "")
	require.Equal(t, http.StatusOK, status)
	entries := body["data"].([]any)
	require.Len(t, entries, 1)
	entry := entries[0].(map[string]any)
	assert.Equal(t, "OVERRIDE_PROMOTE", entry["action_type"])
	assert.EqualValues(t, 42, entry["performed_by_user_id"])
	details := entry["details"].(map[string]any)
	assert.Equal(t, "panel decision", details["reason"])
}

func TestPromoteRequiresPositiveSlots(t *testing.T) {
	app := setupApp(t)

	status, body := do(t, app, http.MethodPost, "/api/v1/cycles/1/subjects/5/waitlist/promotions", `{"slot_count":0}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_input", body["kind"])
}

func TestActingUserHeaderRequired(t *testing.T) {
	app := setupApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cycles/1/subjects/5/allocations", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(headerRequestID))
}

func TestCloseArchiveNotifyFlow(t *testing.T) {
	app := setupApp(t)

	status, _ := do(t, app, http.MethodPost, "/api/v1/cycles/1/subjects/5/allocations", "")
	require.Equal(t, http.StatusCreated, status)

	status, body := do(t, app, http.MethodPost, "/api/v1/cycles/1/notifications", `{"response_deadline":"2026-04-01T00:00:00Z"}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.EqualValues(t, 1, body["notified"])

	status, body = do(t, app, http.MethodGet, "/api/v1/cycles/1/acceptances", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"].([]any), 1)

	status, body = do(t, app, http.MethodPost, "/api/v1/cycles/1/archive", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Marking cycle must be CLOSED, current status: ALLOCATED", body["error"])

	status, body = do(t, app, http.MethodPost, "/api/v1/cycles/1/close", "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "CLOSED", body["status"])

	status, body = do(t, app, http.MethodPost, "/api/v1/cycles/1/archive", "")
	require.Equal(t, http.StatusOK, status, body)
	assert.EqualValues(t, 1, body["archived"])
	assert.EqualValues(t, 2026, body["year"])
}

func TestQuotaEndpoints(t *testing.T) {
	app := setupApp(t)

	status, body := do(t, app, http.MethodPut, "/api/v1/cycles/1/subjects/5/quotas", `{"quota_type":"REGION","quota_key":"North","max_count":1}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "REGION", body["quota_type"])

	status, body = do(t, app, http.MethodPut, "/api/v1/cycles/1/subjects/5/quotas", `{"quota_type":"REGION","quota_key":"North","percentage":140}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_input", body["kind"])

	status, body = do(t, app, http.MethodGet, "/api/v1/cycles/1/subjects/5/compliance", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["compliant"])
	assert.EqualValues(t, 0, body["approved_count"])
}

func TestEligiblePoolEndpoint(t *testing.T) {
	app := setupApp(t)

	status, body := do(t, app, http.MethodGet, "/api/v1/cycles/1/subjects/5/pool", "")
	require.Equal(t, http.StatusOK, status, body)
	data, ok := body["data"].([]any)
	require.True(t, ok)
	require.Len(t, data, 2)
	first := data[0].(map[string]any)
	assert.EqualValues(t, 1, first["examiner_id"])
	assert.Equal(t, "Ada", first["full_name"])

	status, body = do(t, app, http.MethodGet, "/api/v1/cycles/99/subjects/5/pool", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "marking cycle 99 not found", body["error"])
}
