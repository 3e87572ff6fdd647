package handlers

import (
	"context"
	"net/http"

	"promptparty/services"

	"github.com/gin-gonic/gin"
)

type RoomManager interface {
	CreateRoom(ctx context.Context, hostID string, req *services.CreateRoomRequest) (*services.RoomJoinResult, error)
	GetRoom(ctx context.Context, roomID string) (*services.RoomDetail, error)
	Join(ctx context.Context, roomID, userID string) (*services.RoomJoinResult, error)
}

type RoomHandler struct {
	rooms RoomManager
}

func NewRoomHandler(rooms RoomManager) *RoomHandler {
	return &RoomHandler{rooms: rooms}
}

func (h *RoomHandler) CreateRoom(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	result, err := h.rooms.CreateRoom(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (h *RoomHandler) GetRoom(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}

	detail, err := h.rooms.GetRoom(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

func (h *RoomHandler) JoinRoom(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	result, err := h.rooms.Join(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
