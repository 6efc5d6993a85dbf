package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"scribe/scribe/config"
	"scribe/scribe/utils/logging"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// MinIOClient archives raw meeting audio in an S3 compatible bucket.
type MinIOClient struct {
	client *minio.Client
	bucket string
}

func NewMinIOClient(ctx context.Context, cfg config.Config) (*MinIOClient, error) {
	bucket := cfg.MinIOBucket
	client, err := minio.New(
		cfg.MinIOEndpoint,
		&minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIOAccessKey, cfg.MinIOSecretKey, ""),
			Secure: cfg.MinIOUseSSL,
		},
	)
	if err != nil {
		return nil, err
	}
	// Create bucket if not exists
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
	}
	logging.AppLogger.Info("Audio archive ready",
		zap.String("endpoint", cfg.MinIOEndpoint), zap.String("bucket", bucket))
	return &MinIOClient{client: client, bucket: bucket}, nil
}

func meetingPrefix(meetingID uuid.UUID) string {
	return "meetings/" + meetingID.String() + "/"
}

// SegmentKey names the object holding the audio drained at `at`.
func SegmentKey(meetingID uuid.UUID, at time.Time) string {
	return path.Join("meetings", meetingID.String(), fmt.Sprintf("%d.raw", at.UnixNano()))
}

func (m *MinIOClient) ArchiveSegment(ctx context.Context, meetingID uuid.UUID, at time.Time, audio []byte) error {
	key := SegmentKey(meetingID, at)
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(audio), int64(len(audio)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

// ListSegments returns the meeting's archived object keys in upload order.
func (m *MinIOClient) ListSegments(ctx context.Context, meetingID uuid.UUID) ([]string, error) {
	var keys []string
	for obj := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{
		Prefix:    meetingPrefix(meetingID),
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// PurgeMeeting removes every segment archived for the meeting.
func (m *MinIOClient) PurgeMeeting(ctx context.Context, meetingID uuid.UUID) error {
	keys, err := m.ListSegments(ctx, meetingID)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("remove %s: %w", key, err)
		}
	}
	if len(keys) > 0 {
		logging.AppLogger.Info("Purged meeting audio",
			zap.String("meeting_id", meetingID.String()), zap.Int("segments", len(keys)))
	}
	return nil
}
