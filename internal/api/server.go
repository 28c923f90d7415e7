package api

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"visabulletin/internal/bulletin"
	"visabulletin/internal/components/assert"
	"visabulletin/internal/components/telemetry"
	"visabulletin/internal/store"

	"github.com/antzucaro/matchr"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	report_server_subscribe   = "server.subscribe"
	report_server_unsubscribe = "server.unsubscribe"
)

//go:embed static/*.html
var staticFS embed.FS

var pages = template.Must(template.ParseFS(staticFS, "static/*.html"))

// Subscriptions is the part of the store the server writes to.
type Subscriptions interface {
	UpsertSubscription(ctx context.Context, req store.SubscribeRequest) (store.UpsertResult, error)
	DeactivateSubscription(ctx context.Context, token string) (store.Subscription, error)
}

// Server serves the subscription endpoints.
type Server struct {
	subs Subscriptions
	tel  telemetry.API
}

func New(subs Subscriptions, tel telemetry.API) Server {
	assert.NotNil(subs)
	assert.NotNil(tel)
	return Server{
		subs: subs,
		tel:  telemetry.NewScopedAPI("api", tel),
	}
}

func (s Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/", s.index)
	r.Get("/healthz", s.healthz)
	r.Route("/api", func(r chi.Router) {
		r.Post("/subscribe", s.subscribe)
		r.Get("/unsubscribe", s.unsubscribe)
	})
	return r
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	// Suggestions maps unknown categories to the closest valid one.
	Suggestions map[string]string `json:"suggestions,omitempty"`
}

type subscribeRequest struct {
	Email      string   `json:"email"`
	Categories []string `json:"categories"`
}

type subscribeResponse struct {
	Status             store.UpsertStatus `json:"status"`
	Email              string             `json:"email"`
	Categories         []string           `json:"categories"`
	PreviousCategories []string           `json:"previous_categories,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Status: "error", Message: message})
}

func (s Server) index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("content-type", "text/html; charset=utf-8")
	err := pages.ExecuteTemplate(w, "index.html", bulletin.SubscriptionCodes)
	if err != nil {
		s.tel.ReportBroken(report_server_subscribe, err)
	}
}

func (s Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// NormalizeEmail lowercases and trims an address, ok is false when the result
// does not look like an email address.
func NormalizeEmail(raw string) (email string, ok bool) {
	email = strings.ToLower(strings.TrimSpace(raw))
	return email, emailRegex.MatchString(email)
}

var validCodes = func() map[string]bool {
	out := map[string]bool{}
	for _, code := range bulletin.SubscriptionCodes {
		out[code] = true
	}
	return out
}()

// suggest returns the valid category closest to an unknown one, or "" when
// nothing is close enough.
func suggest(unknown string) string {
	best := ""
	bestScore := 0.8
	for _, code := range bulletin.SubscriptionCodes {
		score := matchr.JaroWinkler(strings.ToUpper(unknown), code, false)
		if score > bestScore {
			best = code
			bestScore = score
		}
	}
	return best
}

// CategoryError lists the requested categories that are not subscription
// codes, sorted.
type CategoryError struct {
	Unknown []string
	// Suggestions maps an unknown category to the closest valid one.
	Suggestions map[string]string
}

func (e *CategoryError) Error() string {
	return "Unknown category/categories: " + strings.Join(e.Unknown, ", ")
}

// ValidateCategories returns the requested categories deduplicated and
// sorted, or a *CategoryError when any of them is unknown.
func ValidateCategories(categories []string) ([]string, error) {
	var unknown []string
	suggestions := map[string]string{}
	unique := map[string]bool{}
	for _, c := range categories {
		if !validCodes[c] {
			unknown = append(unknown, c)
			if suggestion := suggest(c); suggestion != "" {
				suggestions[c] = suggestion
			}
			continue
		}
		unique[c] = true
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		if len(suggestions) == 0 {
			suggestions = nil
		}
		return nil, &CategoryError{Unknown: unknown, Suggestions: suggestions}
	}

	out := make([]string, 0, len(unique))
	for c := range unique {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

// clientIP prefers the first X-Forwarded-For hop over the remote address.
func clientIP(r *http.Request) string {
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s Server) subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Request body must be JSON.")
		return
	}

	email, ok := NormalizeEmail(req.Email)
	if email == "" {
		writeError(w, http.StatusBadRequest, "Email is required.")
		return
	}
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid email address.")
		return
	}
	if len(req.Categories) == 0 {
		writeError(w, http.StatusBadRequest, "Select at least one visa category.")
		return
	}

	categories, err := ValidateCategories(req.Categories)
	var categoryErr *CategoryError
	if errors.As(err, &categoryErr) {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Status:      "error",
			Message:     categoryErr.Error(),
			Suggestions: categoryErr.Suggestions,
		})
		return
	}

	result, err := s.subs.UpsertSubscription(r.Context(), store.SubscribeRequest{
		Email:      email,
		Categories: categories,
		IPAddress:  clientIP(r),
		UserAgent:  r.UserAgent(),
	})
	if err != nil {
		s.tel.ReportBroken(report_server_subscribe, err)
		writeError(w, http.StatusInternalServerError, "Database error.")
		return
	}

	s.tel.ReportDebug("subscribe", result.Status, email)
	// the unsubscribe token only ever leaves through email
	writeJSON(w, http.StatusOK, subscribeResponse{
		Status:             result.Status,
		Email:              result.Subscription.Email,
		Categories:         result.Subscription.Categories,
		PreviousCategories: result.PreviousCategories,
	})
}

func (s Server) unsubscribe(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		writeError(w, http.StatusBadRequest, "Missing unsubscribe token.")
		return
	}

	sub, err := s.subs.DeactivateSubscription(r.Context(), token)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusBadRequest, "Invalid or already-used unsubscribe link.")
		return
	}
	if err != nil {
		s.tel.ReportBroken(report_server_unsubscribe, err)
		writeError(w, http.StatusInternalServerError, "Database error.")
		return
	}

	w.Header().Set("content-type", "text/html; charset=utf-8")
	err = pages.ExecuteTemplate(w, "unsubscribe.html", sub.Email)
	if err != nil {
		s.tel.ReportBroken(report_server_unsubscribe, err)
	}
}
