package dao

import (
	"context"
	"errors"
	"time"

	"scribe/scribe/sources/psql/models"

	"gorm.io/gorm"
)

type UserDAO struct {
	DB *gorm.DB
}

func NewUserDAO(db *gorm.DB) *UserDAO {
	return &UserDAO{DB: db}
}

func (dao *UserDAO) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	var user models.User
	err := dao.DB.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (dao *UserDAO) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := dao.DB.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (dao *UserDAO) CreateUser(ctx context.Context, username, email string, fullName *string) (*models.User, error) {
	user := models.User{
		Username: username,
		Email:    email,
		FullName: fullName,
		IsActive: true,
	}
	err := dao.DB.WithContext(ctx).Create(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ListCalendarUsers returns active users that linked a calendar.
func (dao *UserDAO) ListCalendarUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := dao.DB.WithContext(ctx).
		Where("is_active = ? AND google_access_token IS NOT NULL AND google_access_token <> ''", true).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateGoogleToken stores calendar credentials. An empty refresh token keeps
// the stored one, Google only hands it out on first consent.
func (dao *UserDAO) UpdateGoogleToken(ctx context.Context, userID int, accessToken, refreshToken string, expiry time.Time) error {
	updates := map[string]interface{}{
		"google_access_token": accessToken,
		"google_token_expiry": expiry,
	}
	if refreshToken != "" {
		updates["google_refresh_token"] = refreshToken
	}
	return dao.DB.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Updates(updates).Error
}
