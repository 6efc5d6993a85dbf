package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"scribe/scribe/middlewares"
	"scribe/scribe/sources/psql/dao"
	"scribe/scribe/utils/types"
)

var ErrUsernameRequired = errors.New("username is required")

const tokenTTL = 24 * time.Hour

type AuthController struct {
	userDAO *dao.UserDAO
	secret  string
}

func NewAuthController(userDAO *dao.UserDAO, secret string) *AuthController {
	return &AuthController{userDAO: userDAO, secret: secret}
}

// Login issues a token for username, creating the user on first login.
func (c *AuthController) Login(ctx context.Context, username string) (*types.LoginResponse, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrUsernameRequired
	}
	user, err := c.userDAO.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		user, err = c.userDAO.CreateUser(ctx, username, username+"@example.com", nil)
		if err != nil {
			return nil, err
		}
	}
	token, exp, err := middlewares.IssueToken(c.secret, user.ID, tokenTTL)
	if err != nil {
		return nil, err
	}
	return &types.LoginResponse{Token: token, ExpiresAt: exp, User: *user}, nil
}
