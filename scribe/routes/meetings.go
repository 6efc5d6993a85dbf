package routes

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"scribe/scribe/config"
	"scribe/scribe/controllers"
	"scribe/scribe/middlewares"
	"scribe/scribe/sources/psql/models"
	"scribe/scribe/utils/types"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// authed resolves the caller and the {meeting_id} path parameter.
func authed(r *http.Request) (int, uuid.UUID, int, error) {
	userID, ok := middlewares.UserID(r.Context())
	if !ok {
		return 0, uuid.Nil, http.StatusUnauthorized, errUnauthorized
	}
	raw := chi.URLParam(r, "meeting_id")
	if raw == "" {
		return userID, uuid.Nil, 0, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return 0, uuid.Nil, http.StatusBadRequest, fmt.Errorf("invalid meeting id %q", raw)
	}
	return userID, id, 0, nil
}

func MeetingRoutes(ctrl *controllers.MeetingController, cfg config.Config) chi.Router {
	r := chi.NewRouter()
	r.Use(middlewares.AuthMiddleware(cfg.JWTSecret))

	r.Post("/join", handleJSON(func(r *http.Request) (any, int, error) {
		userID, _, code, err := authed(r)
		if err != nil {
			return nil, code, err
		}
		var req types.JoinMeetingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, http.StatusBadRequest, err
		}
		res, created, err := ctrl.Join(r.Context(), userID, req)
		if err != nil {
			return nil, 0, err
		}
		if created {
			return res, http.StatusCreated, nil
		}
		return res, http.StatusOK, nil
	}))

	r.Get("/", handleJSON(func(r *http.Request) (any, int, error) {
		userID, _, code, err := authed(r)
		if err != nil {
			return nil, code, err
		}
		q := r.URL.Query()
		skip, _ := strconv.Atoi(q.Get("skip"))
		limit, _ := strconv.Atoi(q.Get("limit"))
		list, err := ctrl.List(r.Context(), userID, models.MeetingStatus(q.Get("status")), skip, limit)
		if err != nil {
			return nil, 0, err
		}
		return list, http.StatusOK, nil
	}))

	r.Get("/live", handleJSON(func(r *http.Request) (any, int, error) {
		userID, _, code, err := authed(r)
		if err != nil {
			return nil, code, err
		}
		res, err := ctrl.Live(r.Context(), userID)
		if err != nil {
			return nil, 0, err
		}
		return res, http.StatusOK, nil
	}))

	r.Route("/{meeting_id}", func(mr chi.Router) {
		mr.Post("/stop", handleJSON(func(r *http.Request) (any, int, error) {
			userID, id, code, err := authed(r)
			if err != nil {
				return nil, code, err
			}
			res, err := ctrl.Stop(r.Context(), userID, id)
			if err != nil {
				return nil, 0, err
			}
			return res, http.StatusAccepted, nil
		}))

		mr.Get("/transcript", handleJSON(func(r *http.Request) (any, int, error) {
			userID, id, code, err := authed(r)
			if err != nil {
				return nil, code, err
			}
			res, err := ctrl.Transcript(r.Context(), userID, id)
			if err != nil {
				return nil, 0, err
			}
			return res, http.StatusOK, nil
		}))

		mr.Get("/summary", handleJSON(func(r *http.Request) (any, int, error) {
			userID, id, code, err := authed(r)
			if err != nil {
				return nil, code, err
			}
			res, err := ctrl.Summary(r.Context(), userID, id)
			if err != nil {
				return nil, 0, err
			}
			return res, http.StatusOK, nil
		}))

		mr.Post("/summary/retry", handleJSON(func(r *http.Request) (any, int, error) {
			userID, id, code, err := authed(r)
			if err != nil {
				return nil, code, err
			}
			res, err := ctrl.RetrySummary(r.Context(), userID, id)
			if err != nil {
				return nil, 0, err
			}
			return res, http.StatusOK, nil
		}))

		mr.Get("/status", handleJSON(func(r *http.Request) (any, int, error) {
			userID, id, code, err := authed(r)
			if err != nil {
				return nil, code, err
			}
			res, err := ctrl.Status(r.Context(), userID, id)
			if err != nil {
				return nil, 0, err
			}
			return res, http.StatusOK, nil
		}))

		mr.Delete("/", handleJSON(func(r *http.Request) (any, int, error) {
			userID, id, code, err := authed(r)
			if err != nil {
				return nil, code, err
			}
			if err := ctrl.Delete(r.Context(), userID, id); err != nil {
				return nil, 0, err
			}
			return types.MessageResponse{Message: "Meeting deleted successfully"}, http.StatusOK, nil
		}))
	})

	return r
}
