package storage

import (
	"context"
	"errors"
	"strconv"
	"time"

	"anonchat/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ErrJournalDisabled is returned by read operations when no database is configured.
var ErrJournalDisabled = errors.New("room journal disabled")

const (
	updateKeyPrefix  = "tg:update:"
	defaultDedupeTTL = 24 * time.Hour
)

// Storage is the optional persistence used next to the in-memory state: a journal of
// chat rooms and a dedupe set for transport deliveries. Nothing in it is read back to
// restore queues or pairs.
type Storage interface {
	OpenRoom(ctx context.Context, roomID string, a, b models.UserID) error
	CloseRoom(ctx context.Context, roomID, reason string) error
	RecentRooms(ctx context.Context, limit int) ([]models.ChatRoom, error)
	MarkUpdateSeen(ctx context.Context, updateID int) (bool, error)
}

// Service implements Storage over PostgreSQL (gorm) and Redis. Either may be nil,
// which turns the matching feature off.
type Service struct {
	DB        *gorm.DB
	Redis     *redis.Client
	DedupeTTL time.Duration

	now func() time.Time
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:        db,
		Redis:     rdb,
		DedupeTTL: defaultDedupeTTL,
		now:       time.Now,
	}
}

// OpenRoom saves a new active room.
func (s *Service) OpenRoom(ctx context.Context, roomID string, a, b models.UserID) error {
	if s.DB == nil {
		return nil
	}
	room := models.ChatRoom{
		RoomID:    roomID,
		User1ID:   a.String(),
		User2ID:   b.String(),
		IsActive:  true,
		StartedAt: s.now().UTC(),
	}
	return s.DB.WithContext(ctx).Save(&room).Error
}

// CloseRoom marks the room inactive and records why it ended.
func (s *Service) CloseRoom(ctx context.Context, roomID, reason string) error {
	if s.DB == nil {
		return nil
	}
	return s.DB.WithContext(ctx).Model(&models.ChatRoom{}).
		Where("room_id = ?", roomID).
		Updates(map[string]interface{}{
			"is_active":  false,
			"ended_at":   s.now().UTC(),
			"end_reason": reason,
		}).Error
}

// RecentRooms returns the latest rooms, newest first.
func (s *Service) RecentRooms(ctx context.Context, limit int) ([]models.ChatRoom, error) {
	if s.DB == nil {
		return nil, ErrJournalDisabled
	}
	if limit <= 0 {
		limit = 20
	}

	var rooms []models.ChatRoom
	if err := s.DB.WithContext(ctx).Order("started_at desc").Limit(limit).Find(&rooms).Error; err != nil {
		return nil, err
	}
	return rooms, nil
}

// MarkUpdateSeen records a transport update id. It reports true the first time an id
// is seen, false for redeliveries. Without Redis every update counts as new.
func (s *Service) MarkUpdateSeen(ctx context.Context, updateID int) (bool, error) {
	if s.Redis == nil {
		return true, nil
	}
	key := updateKeyPrefix + strconv.Itoa(updateID)
	return s.Redis.SetNX(ctx, key, 1, s.DedupeTTL).Result()
}
