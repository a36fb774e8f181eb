package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
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

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Handler router wrapped with request id and access logging.
func (r *Router) Handler() http.Handler {
	return RequestID(AccessLog(r.logger)(r))
}

// route dispatches one path by method.
func (r *Router) route(pattern string, byMethod map[string]http.HandlerFunc) {
	r.Handle(pattern, func(w http.ResponseWriter, req *http.Request) {
		h, ok := byMethod[req.Method]
		if !ok {
			methodNotAllowed(w)
			return
		}
		h(w, req)
	})
}

// RegisterShiftRoutes attendance API
func (r *Router) RegisterShiftRoutes(h *ShiftHandler) {
	r.route("/api/attendance", map[string]http.HandlerFunc{http.MethodGet: h.ListHistory})
	r.route("/api/attendance/current", map[string]http.HandlerFunc{http.MethodGet: h.Current})
	r.route("/api/attendance/punch-in", map[string]http.HandlerFunc{http.MethodPost: h.PunchIn})
	r.route("/api/attendance/punch-out", map[string]http.HandlerFunc{http.MethodPost: h.PunchOut})
}

// RegisterCronRoutes one-shot reminder sweep for external schedulers
func (r *Router) RegisterCronRoutes(h *CronHandler) {
	r.route("/api/cron/reminders", map[string]http.HandlerFunc{
		http.MethodPost: h.RunReminders,
		http.MethodGet:  h.RunReminders,
	})
}

// RegisterHealthRoutes liveness endpoint
func (r *Router) RegisterHealthRoutes(storeKind string) {
	r.route("/healthz", map[string]http.HandlerFunc{
		http.MethodGet: func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, Ok(map[string]string{"status": "ok", "store": storeKind}))
		},
	})
}
