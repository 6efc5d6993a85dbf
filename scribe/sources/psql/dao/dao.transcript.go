// scribe/sources/psql/dao/dao.transcript.go
package dao

import (
	"context"
	"database/sql"

	"scribe/scribe/sources/psql/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TranscriptDAO struct {
	DB *gorm.DB
}

func NewTranscriptDAO(db *gorm.DB) *TranscriptDAO {
	return &TranscriptDAO{DB: db}
}

func (dao *TranscriptDAO) SaveChunk(ctx context.Context, chunk *models.TranscriptChunk) error {
	return dao.DB.WithContext(ctx).Create(chunk).Error
}

// ListChunks returns chunks in sequence order, the only order that
// reconstructs a transcript.
func (dao *TranscriptDAO) ListChunks(ctx context.Context, meetingID uuid.UUID) ([]models.TranscriptChunk, error) {
	var chunks []models.TranscriptChunk
	err := dao.DB.WithContext(ctx).
		Where("meeting_id = ?", meetingID).
		Order("sequence_number ASC").
		Find(&chunks).Error
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

func (dao *TranscriptDAO) CountChunks(ctx context.Context, meetingID uuid.UUID) (int64, error) {
	var n int64
	err := dao.DB.WithContext(ctx).
		Model(&models.TranscriptChunk{}).
		Where("meeting_id = ?", meetingID).
		Count(&n).Error
	return n, err
}

// LastSequence is 0 for a meeting without chunks.
func (dao *TranscriptDAO) LastSequence(ctx context.Context, meetingID uuid.UUID) (int, error) {
	var last sql.NullInt64
	err := dao.DB.WithContext(ctx).
		Model(&models.TranscriptChunk{}).
		Where("meeting_id = ?", meetingID).
		Select("MAX(sequence_number)").
		Row().Scan(&last)
	if err != nil {
		return 0, err
	}
	return int(last.Int64), nil
}
