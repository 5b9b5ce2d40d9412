package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

// HandleHandler 支持 http.Handler 接口（用于 /metrics）
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// only 限定请求方法
func only(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != method {
			methodNotAllowed(w)
			return
		}
		h(w, req)
	}
}

// RegisterHealthRoutes 健康检查
func (r *Router) RegisterHealthRoutes() {
	r.Handle("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, Ok(map[string]string{"status": "ok"}))
	})
}

// RegisterMetricsRoutes Prometheus 指标
func (r *Router) RegisterMetricsRoutes(h http.Handler) {
	r.HandleHandler("/metrics", h)
}

// RegisterCareHubRoutes 注册看护面板 API
func (r *Router) RegisterCareHubRoutes(h *CareHubHandler) {
	// auth
	r.Handle("/api/v1/auth/register", only(http.MethodPost, h.Register))
	r.Handle("/api/v1/auth/login", only(http.MethodPost, h.Login))
	r.Handle("/api/v1/auth/logout", only(http.MethodPost, h.Logout))

	// dashboard / profile
	r.Handle("/api/v1/dashboard", only(http.MethodGet, h.Dashboard))
	r.Handle("/api/v1/profile", only(http.MethodPut, h.UpdateProfile))
	r.Handle("/api/v1/profile/tour-complete", only(http.MethodPost, h.CompleteTour))

	// reminders
	r.Handle("/api/v1/reminders", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			h.ListReminders(w, req)
		case http.MethodPost:
			h.AddReminder(w, req)
		default:
			methodNotAllowed(w)
		}
	})

	// reminders/{index}
	r.Handle("/api/v1/reminders/", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodDelete {
			methodNotAllowed(w)
			return
		}
		raw := strings.TrimPrefix(req.URL.Path, "/api/v1/reminders/")
		index, err := strconv.Atoi(raw)
		if err != nil || strings.Contains(raw, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.DeleteReminder(w, req, index)
	})

	// fall alarm
	r.Handle("/api/v1/fall/trigger", only(http.MethodPost, h.TriggerFall))
	r.Handle("/api/v1/fall/clear", only(http.MethodPost, h.ClearFall))

	// events
	r.Handle("/api/v1/events", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			h.ListEvents(w, req)
		case http.MethodDelete:
			h.ClearEvents(w, req)
		default:
			methodNotAllowed(w)
		}
	})
	r.Handle("/api/v1/events/export", only(http.MethodGet, h.ExportEvents))
	r.Handle("/api/v1/events/archive", only(http.MethodGet, h.ListArchive))
}
