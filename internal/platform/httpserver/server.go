package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	v1 "skyward/contracts/messages/v1"
	"skyward/internal/platform/messaging"
)

const sourceName = "http-api"

// Server is the thin HTTP ingress for external collaborators. Every
// handler translates its request into a bus query and relays the
// response; no station logic lives here.
type Server struct {
	mux     *http.ServeMux
	logger  *slog.Logger
	addr    string
	bus     *messaging.Bus
	timeout time.Duration
}

func New(bus *messaging.Bus, logger *slog.Logger, addr string, timeout time.Duration) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	s := &Server{
		mux:     http.NewServeMux(),
		logger:  logger,
		addr:    addr,
		bus:     bus,
		timeout: timeout,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

// Handler exposes the mux, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /v1/missions", s.handleSubmitMission)
	s.mux.HandleFunc("POST /v1/missions/{mission_id}/cancel", s.handleCancelMission)
	s.mux.HandleFunc("GET /v1/missions/{mission_id}", s.handleGetMission)
	s.mux.HandleFunc("GET /v1/fleet", s.handleFleetStatus)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
}

func (s *Server) handleSubmitMission(w http.ResponseWriter, r *http.Request) {
	var task v1.SubmitTask
	if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	result, ok := request[v1.SubmitResult](s, w, r, v1.RouteTaskSubmit, task)
	if !ok {
		return
	}
	if result.Fault != nil {
		writeJSON(w, faultStatus(result.Fault), result)
		return
	}
	writeJSON(w, http.StatusAccepted, result)
}

func (s *Server) handleCancelMission(w http.ResponseWriter, r *http.Request) {
	payload := v1.CancelMission{MissionID: r.PathValue("mission_id")}

	result, ok := request[v1.CancelResult](s, w, r, v1.RouteMissionCancel, payload)
	if !ok {
		return
	}
	if result.Fault != nil {
		writeJSON(w, faultStatus(result.Fault), result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetMission(w http.ResponseWriter, r *http.Request) {
	payload := v1.GetMission{MissionID: r.PathValue("mission_id")}

	view, ok := request[v1.MissionView](s, w, r, v1.RouteMissionGet, payload)
	if !ok {
		return
	}
	if !view.Found {
		writeError(w, http.StatusNotFound, "mission_not_found", "no mission with that id")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleFleetStatus(w http.ResponseWriter, r *http.Request) {
	status, ok := request[v1.FleetStatus](s, w, r, v1.RouteFleetStatus, v1.FleetStatus{})
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// request runs one bus query on behalf of an HTTP caller. A false
// return means the error response was already written.
func request[T any](s *Server, w http.ResponseWriter, r *http.Request, route v1.Route, payload any) (T, bool) {
	var zero T
	env, err := v1.NewQuery(route, sourceName, "", payload)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode_failed", err.Error())
		return zero, false
	}
	response, err := s.bus.Request(r.Context(), env, s.timeout)
	if err != nil {
		s.logger.Error("bus query failed",
			"event", "http_bus_query_failed",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"action", route.Action,
			"error", err.Error(),
		)
		writeError(w, http.StatusGatewayTimeout, "station_unresponsive", "no response from the station")
		return zero, false
	}
	result, err := v1.Decode[T](response)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "decode_failed", err.Error())
		return zero, false
	}
	return result, true
}

func faultStatus(fault *v1.Fault) int {
	switch fault.ErrorCode {
	case v1.CodeValidationError:
		return http.StatusBadRequest
	case v1.CodeMissionRejected, v1.CodeDroneNotAvailable:
		return http.StatusConflict
	case v1.CodeCommandTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"error":   code,
		"message": message,
	})
}
