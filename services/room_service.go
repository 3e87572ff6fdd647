package services

import (
	"context"
	"errors"
	"strings"

	"promptparty/apperr"
	"promptparty/config"
	"promptparty/engine"
	"promptparty/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type RoomService struct {
	db    *gorm.DB
	games *GameService
	locks *SessionLocks
	cfg   config.GameConfig
	log   *zap.Logger
}

func NewRoomService(db *gorm.DB, games *GameService, locks *SessionLocks, cfg config.GameConfig, logger *zap.Logger) *RoomService {
	return &RoomService{db: db, games: games, locks: locks, cfg: cfg, log: logger}
}

type CreateRoomRequest struct {
	Name        string `json:"name" binding:"required,max=50"`
	MaxPlayers  int    `json:"maxPlayers" binding:"omitempty,min=1,max=20"`
	TotalRounds int    `json:"totalRounds" binding:"omitempty,min=1,max=20"`
	TimeLimit   int    `json:"timeLimit" binding:"omitempty,min=10,max=300"`
}

type RoomJoinResult struct {
	Room    *models.Room          `json:"room"`
	Session *models.GameSession   `json:"session"`
	Player  *models.PlayerSession `json:"player"`
}

type RoomDetail struct {
	Room    *models.Room        `json:"room"`
	Session *models.GameSession `json:"session,omitempty"`
}

// CreateRoom creates a room owned by hostID and seats the host in its
// session.
func (s *RoomService) CreateRoom(ctx context.Context, hostID string, req *CreateRoomRequest) (*RoomJoinResult, error) {
	room := models.Room{
		Name:        strings.TrimSpace(req.Name),
		HostID:      hostID,
		MaxPlayers:  req.MaxPlayers,
		TotalRounds: req.TotalRounds,
		TimeLimit:   req.TimeLimit,
		Status:      models.RoomStatusWaiting,
	}
	if room.Name == "" {
		return nil, apperr.New(apperr.CodeValidation, "room name is required")
	}
	if room.MaxPlayers == 0 {
		room.MaxPlayers = s.cfg.MaxPlayers
	}
	if room.TotalRounds == 0 {
		room.TotalRounds = s.cfg.DefaultTotalRounds
	}
	if room.TimeLimit == 0 {
		room.TimeLimit = int(s.cfg.RoundTimeLimit.Seconds())
	}

	if err := s.db.WithContext(ctx).Create(&room).Error; err != nil {
		return nil, apperr.Internal("create room", err)
	}
	s.log.Info("room created", zap.String("room_id", room.ID), zap.String("host_id", hostID))

	return s.Join(ctx, room.ID, hostID)
}

func (s *RoomService) GetRoom(ctx context.Context, roomID string) (*RoomDetail, error) {
	room, err := s.loadRoom(s.db.WithContext(ctx), roomID)
	if err != nil {
		return nil, err
	}
	sess, err := s.latestSession(s.db.WithContext(ctx), room.ID)
	if err != nil {
		return nil, err
	}
	return &RoomDetail{Room: room, Session: sess}, nil
}

// Join seats userID in the room's session, creating the session for the
// first player. Joins for one room are serialized so concurrent first
// joiners end up in the same session.
func (s *RoomService) Join(ctx context.Context, roomID, userID string) (*RoomJoinResult, error) {
	var result *RoomJoinResult
	err := s.locks.WithLock("room:"+roomID, func() error {
		db := s.db.WithContext(ctx)
		room, err := s.loadRoom(db, roomID)
		if err != nil {
			return err
		}

		sess, err := s.latestSession(db, room.ID)
		if err != nil {
			return err
		}
		if sess == nil {
			if room.Status != models.RoomStatusWaiting {
				return apperr.New(apperr.CodeInvalidState, "room is not accepting players")
			}
			sess = &models.GameSession{
				RoomID:      room.ID,
				TotalRounds: room.TotalRounds,
				Phase:       string(engine.PhaseWaiting),
			}
			if err := db.Create(sess).Error; err != nil {
				return apperr.Internal("create session", err)
			}
			s.log.Info("session created", zap.String("room_id", room.ID), zap.String("session_id", sess.ID))
		}

		player, err := s.games.AddPlayer(ctx, sess.ID, userID, room.MaxPlayers)
		if err != nil {
			return err
		}
		result = &RoomJoinResult{Room: room, Session: sess, Player: player}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *RoomService) loadRoom(db *gorm.DB, roomID string) (*models.Room, error) {
	if _, err := uuid.Parse(roomID); err != nil {
		return nil, apperr.New(apperr.CodeValidation, "invalid room id")
	}
	var room models.Room
	if err := db.First(&room, "id = ?", roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.CodeNotFound, "room not found")
		}
		return nil, apperr.Internal("load room", err)
	}
	return &room, nil
}

func (s *RoomService) latestSession(db *gorm.DB, roomID string) (*models.GameSession, error) {
	var sess models.GameSession
	err := db.Where("room_id = ?", roomID).Order("created_at DESC").First(&sess).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperr.Internal("load session", err)
	}
	return &sess, nil
}
