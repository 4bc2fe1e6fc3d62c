package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/soaringjerry/checkbot/internal/middleware"
	"github.com/soaringjerry/checkbot/internal/services"
	"github.com/soaringjerry/checkbot/internal/utils"
)

// RouterDeps carries the services behind the HTTP surface. Auth, JWT and
// Export may be nil; their routes then answer 501.
type RouterDeps struct {
	Auth      *services.AuthService
	JWT       *middleware.JWTAuth
	Export    *services.ExportService
	Webhook   http.Handler
	Commit    string
	BuildTime string
}

type Router struct {
	deps RouterDeps
}

func NewRouter(deps RouterDeps) *Router {
	return &Router{deps: deps}
}

func (rt *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", rt.handleHealth)
	mux.HandleFunc("/version", rt.handleVersion)
	if rt.deps.Webhook != nil {
		mux.Handle("/telegram/webhook", rt.deps.Webhook) // POST
	}
	mux.HandleFunc("/api/auth/login", rt.handleLogin)                  // POST
	mux.Handle("/api/submissions", rt.protected(rt.handleSubmissions)) // GET
	mux.Handle("/api/export", rt.protected(rt.handleExport))           // GET
}

func (rt *Router) protected(h http.HandlerFunc) http.Handler {
	if rt.deps.JWT == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, services.NewNotImplementedError("admin api is not configured"))
		})
	}
	return rt.deps.JWT.WithAuth(middleware.RequireAuth(h))
}

// GET /health
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	locale := middleware.LocaleFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"name":       "checkbot",
		"locale":     locale,
		"msg":        utils.T(locale, "health.ok"),
		"commit":     rt.deps.Commit,
		"build_time": rt.deps.BuildTime,
	})
}

// GET /version
func (rt *Router) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"commit":     rt.deps.Commit,
		"build_time": rt.deps.BuildTime,
	})
}

// POST /api/auth/login {username, password}
func (rt *Router) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if rt.deps.Auth == nil {
		writeError(w, services.NewNotImplementedError("admin api is not configured"))
		return
	}
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	res, err := rt.deps.Auth.Login(req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /api/submissions?date=YYYY-MM-DD&outlet=&limit=
func (rt *Router) handleSubmissions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if rt.deps.Export == nil {
		writeError(w, services.NewNotImplementedError("reporting requires the sqlite sink"))
		return
	}
	q := r.URL.Query()
	filter := services.SubmissionFilter{Date: q.Get("date"), Outlet: q.Get("outlet")}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, services.NewInvalidError("limit must be a number"))
			return
		}
		filter.Limit = n
	}
	subs, err := rt.deps.Export.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if subs == nil {
		subs = []services.StoredSubmission{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"submissions": subs, "count": len(subs)})
}

// GET /api/export?format=long|wide|summary&date=&outlet=
func (rt *Router) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if rt.deps.Export == nil {
		writeError(w, services.NewNotImplementedError("reporting requires the sqlite sink"))
		return
	}
	q := r.URL.Query()
	res, err := rt.deps.Export.ExportCSV(r.Context(), services.ExportParams{
		Format: q.Get("format"),
		Date:   q.Get("date"),
		Outlet: q.Get("outlet"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+res.Filename)
	_, _ = w.Write(res.Data)
}
