package routes

import (
	"context"
	"net/http"
	"time"

	"scribe/scribe/config"
	"scribe/scribe/controllers"
	"scribe/scribe/middlewares"
	"scribe/scribe/realtime"
	"scribe/scribe/utils/logging"
	"scribe/scribe/utils/types"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// MeetingWSRoutes serves the realtime channel at /meeting/{meeting_id}.
// Browsers cannot set headers on a websocket handshake, so the token may come
// as ?token=.
func MeetingWSRoutes(ctrl *controllers.MeetingController, cfg config.Config) chi.Router {
	r := chi.NewRouter()
	r.Use(middlewares.AuthMiddleware(cfg.JWTSecret))

	r.Get("/meeting/{meeting_id}", func(w http.ResponseWriter, r *http.Request) {
		userID, id, code, err := authed(r)
		if err != nil {
			writeJSON(w, code, types.ErrorResponse{Error: err.Error()})
			return
		}
		m, err := ctrl.Meeting(r.Context(), userID, id)
		if err != nil {
			writeJSON(w, statusFor(err), types.ErrorResponse{Error: err.Error()})
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			logging.ErrorLogger.Warn("websocket accept failed",
				zap.String("meeting_id", id.String()), zap.Error(err))
			return
		}

		s, err := ctrl.Lifecycle().Session(id)
		if err != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			_ = wsjson.Write(ctx, conn, types.ErrorResponse{Error: "Meeting transcription not started"})
			conn.Close(websocket.StatusPolicyViolation, "meeting not active")
			return
		}
		realtime.Serve(r.Context(), conn, s, string(m.Status), cfg.Policy)
	})
	return r
}
