package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-desk/internal/api/http"
	"github.com/spec-kit/ticket-desk/internal/api/http/handlers"
	"github.com/spec-kit/ticket-desk/internal/events"
	"github.com/spec-kit/ticket-desk/internal/persistence"
	"github.com/spec-kit/ticket-desk/internal/repository"
	"github.com/spec-kit/ticket-desk/internal/service"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	store := repository.NewMemoryStore()
	dispatcher := events.NewInMemoryDispatcher()
	ticketService := service.NewTicketService(service.TicketDependencies{
		Store:      store,
		Dispatcher: dispatcher,
		Logger:     zap.NewNop(),
	})
	statsService := service.NewStatsService(store)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, zap.NewNop(), 5*time.Second)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:  handlers.NewHealthHandler("ticket-desk", "test", &persistence.Postgres{}, &persistence.Redis{}),
		Tickets: handlers.NewTicketsHandler(ticketService),
		Stats:   handlers.NewStatsHandler(statsService),
	})
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any, actor string) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if actor != "" {
		req.Header.Set("X-Actor", actor)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	decoded := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}

func createTicket(t *testing.T, app *fiber.App, actor string) string {
	t.Helper()
	resp, body := doJSON(t, app, http.MethodPost, "/api/tickets", map[string]any{
		"title":       "T",
		"description": "D",
		"pipeline":    "marketing",
		"priority":    "high",
	}, actor)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data := body["data"].(map[string]any)
	return data["id"].(string)
}

func TestCreateTicketEndpoint(t *testing.T) {
	app := newTestApp(t)

	resp, body := doJSON(t, app, http.MethodPost, "/api/tickets", map[string]any{
		"title":       "T",
		"description": "D",
		"pipeline":    "marketing",
		"priority":    "high",
	}, "alex")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	data := body["data"].(map[string]any)
	assert.Equal(t, "TKT-001", data["id"])
	assert.Equal(t, "new", data["status"])
	assert.Equal(t, "marketing", data["pipeline"])
}

func TestCreateTicketEndpointValidation(t *testing.T) {
	app := newTestApp(t)

	resp, body := doJSON(t, app, http.MethodPost, "/api/tickets", map[string]any{
		"title": "T",
	}, "alex")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	errObj := body["error"].(map[string]any)
	assert.Equal(t, "VALIDATION_FAILED", errObj["code"])
}

func TestGetTicketEndpointWithTimeline(t *testing.T) {
	app := newTestApp(t)
	id := createTicket(t, app, "alex")

	resp, body := doJSON(t, app, http.MethodGet, "/api/tickets/"+id, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data := body["data"].(map[string]any)
	timeline := data["timeline"].([]any)
	require.Len(t, timeline, 1)
	entry := timeline[0].(map[string]any)
	assert.Equal(t, "Ticket created", entry["action"])
	assert.Equal(t, "alex", entry["user"])
}

func TestGetTicketEndpointNotFound(t *testing.T) {
	app := newTestApp(t)

	resp, body := doJSON(t, app, http.MethodGet, "/api/tickets/TKT-404", nil, "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "NOT_FOUND", errObj["code"])
}

func TestUpdateTicketEndpoint(t *testing.T) {
	app := newTestApp(t)
	id := createTicket(t, app, "alex")

	resp, body := doJSON(t, app, http.MethodPatch, "/api/tickets/"+id, map[string]any{
		"field":     "status",
		"value":     "in-progress",
		"old_value": "new",
	}, "dana")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]any)
	assert.Equal(t, "in-progress", data["status"])

	_, detail := doJSON(t, app, http.MethodGet, "/api/tickets/"+id, nil, "")
	timeline := detail["data"].(map[string]any)["timeline"].([]any)
	require.Len(t, timeline, 2)
	last := timeline[1].(map[string]any)
	assert.Equal(t, `Status changed from "new" to "in-progress"`, last["action"])
	assert.Equal(t, "dana", last["user"])
}

func TestUpdateTicketEndpointRejectsUnknownField(t *testing.T) {
	app := newTestApp(t)
	id := createTicket(t, app, "alex")

	resp, body := doJSON(t, app, http.MethodPatch, "/api/tickets/"+id, map[string]any{
		"field": "nonexistent_field",
		"value": "v",
	}, "alex")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "VALIDATION_FAILED", errObj["code"])
}

func TestDeleteTicketEndpoint(t *testing.T) {
	app := newTestApp(t)
	id := createTicket(t, app, "alex")

	resp, body := doJSON(t, app, http.MethodDelete, "/api/tickets/"+id, nil, "alex")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]any)
	assert.Equal(t, true, data["deleted"])

	resp, _ = doJSON(t, app, http.MethodGet, "/api/tickets/"+id, nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodDelete, "/api/tickets/"+id, nil, "alex")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListTicketsEndpointFilters(t *testing.T) {
	app := newTestApp(t)

	for i, pipeline := range []string{"sales", "marketing", "sales"} {
		resp, _ := doJSON(t, app, http.MethodPost, "/api/tickets", map[string]any{
			"title":       fmt.Sprintf("Ticket %d", i),
			"description": "D",
			"pipeline":    pipeline,
			"priority":    "medium",
		}, "alex")
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, body := doJSON(t, app, http.MethodGet, "/api/tickets?pipeline=sales", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := body["data"].([]any)
	require.Len(t, data, 2)
	for _, item := range data {
		assert.Equal(t, "sales", item.(map[string]any)["pipeline"])
	}

	resp, body = doJSON(t, app, http.MethodGet, "/api/tickets?pipeline=all", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["data"].([]any), 3)
}

func TestAddTimelineEntryEndpoint(t *testing.T) {
	app := newTestApp(t)
	id := createTicket(t, app, "alex")

	resp, body := doJSON(t, app, http.MethodPost, "/api/tickets/"+id+"/timeline", map[string]any{
		"action": "Called the customer",
	}, "dana")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data := body["data"].(map[string]any)
	assert.Equal(t, "Called the customer", data["action"])
	assert.Equal(t, "dana", data["user"])

	resp, body = doJSON(t, app, http.MethodPost, "/api/tickets/"+id+"/timeline", map[string]any{}, "dana")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", body["error"].(map[string]any)["code"])
}

func TestStatsEndpoint(t *testing.T) {
	app := newTestApp(t)
	id := createTicket(t, app, "alex")
	createTicket(t, app, "alex")

	resp, body := doJSON(t, app, http.MethodPatch, "/api/tickets/"+id, map[string]any{
		"field": "status",
		"value": "completed",
	}, "alex")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, app, http.MethodGet, "/api/stats", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]any)
	assert.Equal(t, float64(1), data["marketing"])
	assert.Equal(t, float64(0), data["sales"])
	assert.Equal(t, float64(2), data["total"])
}

func TestDefaultActorAttribution(t *testing.T) {
	app := newTestApp(t)
	id := createTicket(t, app, "")

	_, body := doJSON(t, app, http.MethodGet, "/api/tickets/"+id, nil, "")
	timeline := body["data"].(map[string]any)["timeline"].([]any)
	require.Len(t, timeline, 1)
	assert.Equal(t, "system", timeline[0].(map[string]any)["user"])
}

func TestStoredTimelineSurvivesLaterRequests(t *testing.T) {
	app := newTestApp(t)
	id := createTicket(t, app, "alexander-hamilton")

	resp, _ := doJSON(t, app, http.MethodPost, "/api/tickets/"+id+"/timeline", map[string]any{
		"action": "Escalated to tier two",
	}, "alexander-hamilton")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Later requests reuse fiber's internal buffers; stored entries must not
	// change underneath them.
	for i := 0; i < 5; i++ {
		noise := httptest.NewRequest(http.MethodGet, "/api/tickets?search=something-long-enough", nil)
		noise.Header.Set("X-Actor", strings.Repeat("Z", 40))
		_, err := app.Test(noise, -1)
		require.NoError(t, err)
	}

	_, detail := doJSON(t, app, http.MethodGet, "/api/tickets/"+id, nil, "")
	timeline := detail["data"].(map[string]any)["timeline"].([]any)
	require.Len(t, timeline, 2)
	for _, raw := range timeline {
		entry := raw.(map[string]any)
		assert.Equal(t, "alexander-hamilton", entry["user"])
		assert.Equal(t, id, entry["ticket_id"])
	}
}

func TestRequestMetricsKeepPathAndFailureStatus(t *testing.T) {
	app := newTestApp(t)

	resp, _ := doJSON(t, app, http.MethodGet, "/api/tickets/TKT-404", nil, "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	metricsResp, err := app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(metricsResp.Body)
	require.NoError(t, err)
	exposition := string(raw)

	// The 404 request keeps its own path bytes and is counted as a 4xx, not
	// as the 200 the response held before the error handler ran.
	assert.Contains(t, exposition, `ticketdesk_http_requests_total{method="GET",path="/api/tickets/TKT-404",status="4xx"}`)
	assert.Contains(t, exposition, `ticketdesk_domain_errors_total{code="NOT_FOUND",method="GET",path="/api/tickets/TKT-404"}`)
}

func TestHealthLiveEndpoint(t *testing.T) {
	app := newTestApp(t)

	resp, body := doJSON(t, app, http.MethodGet, "/health/live", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alive", body["status"])
	assert.Equal(t, "ticket-desk", body["service"])
}
