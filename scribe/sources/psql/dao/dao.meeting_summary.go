// scribe/sources/psql/dao/dao.meeting_summary.go
package dao

import (
	"context"
	"errors"

	"scribe/scribe/sources/psql/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MeetingSummaryDAO struct {
	DB *gorm.DB
}

func NewMeetingSummaryDAO(db *gorm.DB) *MeetingSummaryDAO {
	return &MeetingSummaryDAO{DB: db}
}

// UpsertMeetingSummary creates the meeting's summary or overwrites the one row
// it already has; a meeting never gets a second summary.
func (dao *MeetingSummaryDAO) UpsertMeetingSummary(ctx context.Context, summary *models.MeetingSummary) error {
	return dao.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.MeetingSummary
		err := tx.Where("meeting_id = ?", summary.MeetingID).First(&existing).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return tx.Create(summary).Error
			}
			return err
		}
		summary.ID = existing.ID
		summary.CreatedAt = existing.CreatedAt
		return tx.Save(summary).Error
	})
}

func (dao *MeetingSummaryDAO) GetByMeetingID(ctx context.Context, meetingID uuid.UUID) (*models.MeetingSummary, error) {
	var s models.MeetingSummary
	err := dao.DB.WithContext(ctx).Where("meeting_id = ?", meetingID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (dao *MeetingSummaryDAO) DeleteByMeetingID(ctx context.Context, meetingID uuid.UUID) error {
	return dao.DB.WithContext(ctx).
		Where("meeting_id = ?", meetingID).
		Delete(&models.MeetingSummary{}).Error
}
