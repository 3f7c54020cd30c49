package apistub

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/staff-directory/internal/api"
	"github.com/kingrea/staff-directory/internal/config"
	"github.com/kingrea/staff-directory/internal/technician"
)

func newTestServer(t *testing.T, seed bool) *Server {
	t.Helper()
	settings := SettingsFromConfig(nil)
	settings.Seed = seed
	return NewServer(settings)
}

func do(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func TestSeededList(t *testing.T) {
	srv := newTestServer(t, true)
	resp, raw := do(t, srv.App(), http.MethodGet, "/api/technicians", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list []Technician
	require.NoError(t, json.Unmarshal(raw, &list))
	assert.Len(t, list, len(SeedData()))
	for _, tech := range list {
		assert.NotEmpty(t, tech.ID)
	}
	assert.Nil(t, list[3].Specialization)
}

func TestCreateValidatesAndAssignsID(t *testing.T) {
	srv := newTestServer(t, false)

	resp, raw := do(t, srv.App(), http.MethodPost, "/api/technicians", `{"name":"  ","phone":"0400"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(raw), "name is required")

	resp, raw = do(t, srv.App(), http.MethodPost, "/api/technicians",
		`{"name":"Bruce Smith","phone":"0400 000 000","specialization":"Repairer","isActive":true}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created Technician
	require.NoError(t, json.Unmarshal(raw, &created))
	assert.NotEmpty(t, created.ID)
	require.NotNil(t, created.Specialization)
	assert.Equal(t, "Repairer", *created.Specialization)
	assert.Equal(t, 1, srv.Store().Len())
}

func TestPatchAppliesOnlySuppliedFields(t *testing.T) {
	srv := newTestServer(t, false)
	spec := "Mechanic"
	srv.Store().Seed(Technician{ID: "t-1", Name: "Ana", Phone: "0411", Specialization: &spec, IsActive: true})

	resp, raw := do(t, srv.App(), http.MethodPatch, "/api/technicians/t-1", `{"isActive":false}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated Technician
	require.NoError(t, json.Unmarshal(raw, &updated))
	assert.False(t, updated.IsActive)
	assert.Equal(t, "Ana", updated.Name)
	assert.Equal(t, "Mechanic", *updated.Specialization)

	resp, _ = do(t, srv.App(), http.MethodPatch, "/api/technicians/t-1", `{"phone":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, srv.App(), http.MethodPatch, "/api/technicians/nope", `{"name":"X"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDelete(t *testing.T) {
	srv := newTestServer(t, false)
	srv.Store().Seed(Technician{ID: "t-1", Name: "Ana", Phone: "0411"})

	resp, raw := do(t, srv.App(), http.MethodDelete, "/api/technicians/t-1", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, raw)
	assert.Equal(t, 0, srv.Store().Len())

	resp, _ = do(t, srv.App(), http.MethodDelete, "/api/technicians/t-1", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, true)
	resp, raw := do(t, srv.App(), http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), `"status":"ok"`)

	do(t, srv.App(), http.MethodGet, "/api/technicians", "")
	resp, raw = do(t, srv.App(), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "techdir_stub_requests_total")
	assert.Contains(t, string(raw), `status="200"`)
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	srv := newTestServer(t, false)
	resp, raw := do(t, srv.App(), http.MethodGet, "/api/nothing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(raw), "message")
}

// fiberTransport routes client requests straight into the fiber app.
type fiberTransport struct {
	app *fiber.App
}

func (f fiberTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return f.app.Test(req, -1)
}

func TestHTTPClientAgainstStub(t *testing.T) {
	srv := newTestServer(t, true)
	client := api.NewHTTPClient("http://techdir.test",
		api.WithHTTPClient(&http.Client{Transport: fiberTransport{app: srv.App()}}))
	ctx := context.Background()

	records, err := client.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, technician.SkillRepairer, records[1].Skill)
	assert.Equal(t, "Senior Repair Tech", records[1].SkillText)
	assert.Equal(t, technician.SkillAsstMechanic, records[2].Skill)
	assert.Equal(t, "N/A", records[3].SkillLabel())
	assert.Equal(t, 3, technician.ActiveCount(records))

	created, err := client.Create(ctx, technician.Draft{
		Name: "Bruce Smith", Phone: "0400 000 000", Skill: technician.SkillRepairer, Active: true,
	})
	require.NoError(t, err)
	assert.Equal(t, technician.SkillRepairer, created.Skill)

	inactive := false
	updated, err := client.Update(ctx, created.ID, technician.Patch{Active: &inactive})
	require.NoError(t, err)
	assert.False(t, updated.Active)
	assert.Equal(t, "Bruce Smith", updated.Name)

	require.NoError(t, client.Delete(ctx, created.ID))
	err = client.Delete(ctx, created.ID)
	require.Error(t, err)
	var statusErr *api.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestSettingsFromConfig(t *testing.T) {
	t.Setenv("TECHDIR_STUB_SEED", "false")
	projectDir := t.TempDir()
	require.NoError(t, config.InitDir(projectDir))
	cfg, err := config.NewConfig(projectDir)
	require.NoError(t, err)

	settings := SettingsFromConfig(cfg)
	assert.False(t, settings.Seed)
	assert.Equal(t, "127.0.0.1:5000", settings.Address())
	assert.Equal(t, "http://127.0.0.1:5000", settings.URL())
	assert.Equal(t, DefaultBodyLimit, settings.BodyLimit)

	bad := Settings{Port: 70000}
	bad.normalize()
	assert.Equal(t, DefaultPort, bad.Port)
	assert.Equal(t, DefaultHost, bad.Host)
}
