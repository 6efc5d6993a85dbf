package controllers

import (
	"context"
	"errors"

	"scribe/scribe/sources/psql/dao"
	"scribe/scribe/sources/psql/models"
	"scribe/scribe/utils/types"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrAccessTokenMissing = errors.New("access_token is required")
)

type UserController struct {
	dao *dao.UserDAO
}

func NewUserController(dao *dao.UserDAO) *UserController {
	return &UserController{dao: dao}
}

func (c *UserController) GetUser(ctx context.Context, id int) (*models.User, error) {
	u, err := c.dao.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (c *UserController) CreateUser(ctx context.Context, username, email string, fullName *string) (*models.User, error) {
	if username == "" {
		return nil, ErrUsernameRequired
	}
	return c.dao.CreateUser(ctx, username, email, fullName)
}

// LinkCalendar stores the Google credentials the calendar trigger polls with.
func (c *UserController) LinkCalendar(ctx context.Context, id int, req types.LinkCalendarRequest) (*models.User, error) {
	if req.AccessToken == "" {
		return nil, ErrAccessTokenMissing
	}
	if err := c.dao.UpdateGoogleToken(ctx, id, req.AccessToken, req.RefreshToken, req.Expiry); err != nil {
		return nil, err
	}
	return c.GetUser(ctx, id)
}
