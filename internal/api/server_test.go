package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"visabulletin/internal/components/chrono"
	"visabulletin/internal/components/telemetry"
	"visabulletin/internal/store"
	configlibsql "visabulletin/lib/configutil/libsql"

	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (http.Handler, store.Store) {
	t.Helper()

	db, err := configlibsql.Struct{File: ":memory:"}.OpenDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	rec := telemetry.NewRecorder()
	s := store.New(db, rec, chrono.FixedImpl{Instant: time.Date(2026, time.January, 5, 12, 0, 0, 0, time.UTC)})
	require.NoError(t, s.Migrate(context.Background(), false))

	return New(s, rec).Routes(), s
}

func postSubscribe(t *testing.T, handler http.Handler, body string, headers map[string]string) (int, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/subscribe", bytes.NewBufferString(body))
	req.Header.Set("content-type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &decoded))
	return res.Code, decoded
}

func TestSubscribeValidation(t *testing.T) {
	handler, _ := setup(t)

	cases := []struct {
		name    string
		body    string
		message string
	}{
		{name: "not json", body: `email=user@example.com`, message: "Request body must be JSON."},
		{name: "no email", body: `{"categories": ["EB-2"]}`, message: "Email is required."},
		{name: "bad email", body: `{"email": "user@example", "categories": ["EB-2"]}`, message: "Invalid email address."},
		{name: "no categories", body: `{"email": "user@example.com", "categories": []}`, message: "Select at least one visa category."},
		{name: "unknown categories", body: `{"email": "user@example.com", "categories": ["EB-2", "H1B", "EB6"]}`, message: "Unknown category/categories: EB6, H1B"},
	}

	for _, c := range cases {
		code, body := postSubscribe(t, handler, c.body, nil)
		require.Equal(t, http.StatusBadRequest, code, c.name)
		require.Equal(t, "error", body["status"], c.name)
		require.Equal(t, c.message, body["message"], c.name)
	}
}

func TestSubscribeSuggestion(t *testing.T) {
	handler, _ := setup(t)

	code, body := postSubscribe(t, handler, `{"email": "user@example.com", "categories": ["eb-2"]}`, nil)
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, map[string]any{"eb-2": "EB-2"}, body["suggestions"])
}

func TestSubscribeFlow(t *testing.T) {
	handler, s := setup(t)

	code, body := postSubscribe(
		t, handler,
		`{"email": " User@Example.com ", "categories": ["F2A", "EB-2", "F2A"]}`,
		map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1", "User-Agent": "curl/8.0"},
	)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "created", body["status"])
	require.Equal(t, "user@example.com", body["email"])
	require.Equal(t, []any{"EB-2", "F2A"}, body["categories"])
	require.NotContains(t, body, "previous_categories")
	require.NotContains(t, body, "unsubscribe_token")

	sub, err := s.SubscriptionByEmail(context.Background(), "user@example.com")
	require.NoError(t, err)
	require.Equal(t, "203.0.113.7", sub.IPAddress)
	require.Equal(t, "curl/8.0", sub.UserAgent)

	code, body = postSubscribe(t, handler, `{"email": "user@example.com", "categories": ["DV"]}`, nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "updated", body["status"])
	require.Equal(t, []any{"EB-2", "F2A"}, body["previous_categories"])

	req := httptest.NewRequest(http.MethodGet, "/api/unsubscribe?token="+sub.UnsubscribeToken, nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), "user@example.com will no longer receive")

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusBadRequest, res.Code)
	require.Contains(t, res.Body.String(), "Invalid or already-used unsubscribe link.")

	code, body = postSubscribe(t, handler, `{"email": "user@example.com", "categories": ["EB-1"]}`, nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "resubscribed", body["status"])
	require.Equal(t, []any{"DV"}, body["previous_categories"])
}

func TestUnsubscribeMissingToken(t *testing.T) {
	handler, _ := setup(t)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/unsubscribe", nil))
	require.Equal(t, http.StatusBadRequest, res.Code)
	require.Contains(t, res.Body.String(), "Missing unsubscribe token.")
}

func TestPages(t *testing.T) {
	handler, _ := setup(t)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, res.Code)
	require.JSONEq(t, `{"status": "ok"}`, res.Body.String())

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), `value="F2B"`)
}

func TestValidateCategories(t *testing.T) {
	valid, err := ValidateCategories([]string{"F2A", "EB-2", "F2A"})
	require.NoError(t, err)
	require.Equal(t, []string{"EB-2", "F2A"}, valid)

	_, err = ValidateCategories([]string{"zzz", "eb-2"})
	var categoryErr *CategoryError
	require.ErrorAs(t, err, &categoryErr)
	require.Equal(t, []string{"eb-2", "zzz"}, categoryErr.Unknown)
	require.Equal(t, map[string]string{"eb-2": "EB-2"}, categoryErr.Suggestions)
}
