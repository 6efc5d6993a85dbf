package routes

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"scribe/scribe/config"
	"scribe/scribe/controllers"
	"scribe/scribe/services/meetings"
	"scribe/scribe/services/summary"
	"scribe/scribe/utils/logging"
	"scribe/scribe/utils/types"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Deps struct {
	Config   config.Config
	Auth     *controllers.AuthController
	Users    *controllers.UserController
	Meetings *controllers.MeetingController
	Health   *controllers.HealthController
	Metrics  http.Handler
}

// NewRouter mounts every HTTP and realtime endpoint. The websocket route
// sits outside the request timeout.
func NewRouter(d Deps) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(logging.RequestMiddleware)
	r.Use(middleware.Recoverer)

	r.Mount("/ws", MeetingWSRoutes(d.Meetings, d.Config))

	r.Group(func(gr chi.Router) {
		gr.Use(middleware.Timeout(60 * time.Second))
		gr.Mount("/health", HealthRoutes(d.Health))
		gr.Mount("/auth", AuthRoutes(d.Auth))
		gr.Mount("/users", UserRoutes(d.Users, d.Config))
		if d.Metrics != nil {
			gr.Handle("/metrics", d.Metrics)
		}
	})
	r.Group(func(gr chi.Router) {
		// a summary retry may spend the whole finalize budget on completions
		gr.Use(middleware.Timeout(d.Config.Policy.FinalizeTimeout + 10*time.Second))
		gr.Mount("/meetings", MeetingRoutes(d.Meetings, d.Config))
	})
	return r
}

// generic wrapper to reduce boilerplate
func handleJSON(handler func(r *http.Request) (any, int, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, status, err := handler(r)
		if err != nil {
			if status == 0 {
				status = statusFor(err)
			}
			if status >= http.StatusInternalServerError {
				logging.ErrorLogger.Error("Request failed",
					zap.String("path", r.URL.Path),
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.Error(err))
			}
			writeJSON(w, status, types.ErrorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, status, res)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, meetings.ErrMeetingNotFound),
		errors.Is(err, controllers.ErrSummaryNotFound),
		errors.Is(err, controllers.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, meetings.ErrMeetingNotActive),
		errors.Is(err, meetings.ErrSummaryNotReady):
		return http.StatusConflict
	case errors.Is(err, summary.ErrTranscriptTooShort),
		errors.Is(err, meetings.ErrMissingLink),
		errors.Is(err, controllers.ErrUsernameRequired),
		errors.Is(err, controllers.ErrAccessTokenMissing):
		return http.StatusBadRequest
	case errors.Is(err, summary.ErrSummaryUnavailable):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
