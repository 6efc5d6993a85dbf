package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"scribe/scribe/config"
	"scribe/scribe/controllers"
	"scribe/scribe/middlewares"
	"scribe/scribe/utils/types"

	"github.com/go-chi/chi/v5"
)

var errUnauthorized = errors.New("unauthorized")

func UserRoutes(ctrl *controllers.UserController, cfg config.Config) chi.Router {
	r := chi.NewRouter()

	r.Group(func(gr chi.Router) {
		gr.Use(middlewares.AuthMiddleware(cfg.JWTSecret))

		gr.Get("/me", handleJSON(func(r *http.Request) (any, int, error) {
			id, ok := middlewares.UserID(r.Context())
			if !ok {
				return nil, http.StatusUnauthorized, errUnauthorized
			}
			user, err := ctrl.GetUser(r.Context(), id)
			if err != nil {
				return nil, 0, err
			}
			return user, http.StatusOK, nil
		}))

		gr.Put("/me/calendar", handleJSON(func(r *http.Request) (any, int, error) {
			id, ok := middlewares.UserID(r.Context())
			if !ok {
				return nil, http.StatusUnauthorized, errUnauthorized
			}
			var req types.LinkCalendarRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				return nil, http.StatusBadRequest, err
			}
			user, err := ctrl.LinkCalendar(r.Context(), id, req)
			if err != nil {
				return nil, 0, err
			}
			return user, http.StatusOK, nil
		}))
	})

	r.Post("/create", handleJSON(func(r *http.Request) (any, int, error) {
		var req types.CreateUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, http.StatusBadRequest, err
		}
		user, err := ctrl.CreateUser(r.Context(), req.Username, req.Email, req.FullName)
		if err != nil {
			return nil, 0, err
		}
		return user, http.StatusCreated, nil
	}))

	return r
}
