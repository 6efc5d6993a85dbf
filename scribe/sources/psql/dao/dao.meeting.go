// scribe/sources/psql/dao/dao.meeting.go
package dao

import (
	"context"
	"errors"
	"time"

	"scribe/scribe/sources/psql/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MeetingDAO struct {
	DB *gorm.DB
}

func NewMeetingDAO(db *gorm.DB) *MeetingDAO {
	return &MeetingDAO{DB: db}
}

func (dao *MeetingDAO) CreateMeeting(ctx context.Context, meeting *models.Meeting) error {
	return dao.DB.WithContext(ctx).Create(meeting).Error
}

func (dao *MeetingDAO) GetMeetingByID(ctx context.Context, id uuid.UUID) (*models.Meeting, error) {
	var m models.Meeting
	err := dao.DB.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetMeetingForUser hides meetings owned by someone else behind not-found.
func (dao *MeetingDAO) GetMeetingForUser(ctx context.Context, id uuid.UUID, userID int) (*models.Meeting, error) {
	var m models.Meeting
	err := dao.DB.WithContext(ctx).First(&m, "id = ? AND user_id = ?", id, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// FindOpenMeeting returns the newest active or finalizing meeting for the
// (user, link) pair.
func (dao *MeetingDAO) FindOpenMeeting(ctx context.Context, userID int, link string) (*models.Meeting, error) {
	var m models.Meeting
	err := dao.DB.WithContext(ctx).
		Where("user_id = ? AND conference_link = ? AND status IN ?", userID, link,
			[]models.MeetingStatus{models.StatusActive, models.StatusFinalizing}).
		Order("created_at DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (dao *MeetingDAO) FindByCalendarEvent(ctx context.Context, userID int, eventID string) (*models.Meeting, error) {
	var m models.Meeting
	err := dao.DB.WithContext(ctx).
		Where("user_id = ? AND calendar_event_id = ?", userID, eventID).
		Order("created_at DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMeetings pages through a user's meetings, newest first. An empty status
// lists every status.
func (dao *MeetingDAO) ListMeetings(ctx context.Context, userID int, status models.MeetingStatus, skip, limit int) ([]models.Meeting, error) {
	var meetings []models.Meeting
	q := dao.DB.WithContext(ctx).Where("user_id = ?", userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Order("start_time DESC").Offset(skip).Limit(limit).Find(&meetings).Error
	if err != nil {
		return nil, err
	}
	return meetings, nil
}

func (dao *MeetingDAO) ListUpcoming(ctx context.Context, userID int, from, to time.Time) ([]models.Meeting, error) {
	var meetings []models.Meeting
	err := dao.DB.WithContext(ctx).
		Where("user_id = ? AND status = ? AND start_time >= ? AND start_time <= ?",
			userID, models.StatusScheduled, from, to).
		Order("start_time").
		Find(&meetings).Error
	if err != nil {
		return nil, err
	}
	return meetings, nil
}

// ListInactive selects active meetings whose last activity is older than cutoff.
func (dao *MeetingDAO) ListInactive(ctx context.Context, cutoff time.Time) ([]models.Meeting, error) {
	var meetings []models.Meeting
	err := dao.DB.WithContext(ctx).
		Where("status = ? AND last_activity < ?", models.StatusActive, cutoff).
		Find(&meetings).Error
	if err != nil {
		return nil, err
	}
	return meetings, nil
}

// Transition moves a meeting to status `to` only if it currently sits in one
// of `from`. The boolean reports whether this call won the transition, which
// is what makes concurrent stop requests collapse into one.
func (dao *MeetingDAO) Transition(ctx context.Context, id uuid.UUID, to models.MeetingStatus, endTime *time.Time, from ...models.MeetingStatus) (bool, error) {
	updates := map[string]interface{}{"status": to}
	if endTime != nil {
		updates["end_time"] = *endTime
	}
	res := dao.DB.WithContext(ctx).
		Model(&models.Meeting{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (dao *MeetingDAO) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	return dao.DB.WithContext(ctx).
		Model(&models.Meeting{}).
		Where("id = ?", id).
		Update("last_activity", at).Error
}

// DeleteMeeting removes the meeting with its chunks and summary in one
// transaction, independent of whether the engine enforces FK cascades.
func (dao *MeetingDAO) DeleteMeeting(ctx context.Context, id uuid.UUID) error {
	return dao.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("meeting_id = ?", id).Delete(&models.TranscriptChunk{}).Error; err != nil {
			return err
		}
		if err := tx.Where("meeting_id = ?", id).Delete(&models.MeetingSummary{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.Meeting{}).Error
	})
}
