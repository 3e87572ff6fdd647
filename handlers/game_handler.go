package handlers

import (
	"context"
	"net/http"

	"promptparty/engine"
	"promptparty/models"
	"promptparty/services"

	"github.com/gin-gonic/gin"
)

// GameCoordinator is the subset of services.GameService the HTTP layer uses.
type GameCoordinator interface {
	StartSession(ctx context.Context, sessionID, requesterID string) (*services.StartResult, error)
	SubmitAnswer(ctx context.Context, sessionID, userID, content string) (*models.Answer, error)
	SubmitVote(ctx context.Context, sessionID, userID, answerID string) (*models.Vote, error)
	AdvancePhase(ctx context.Context, sessionID, userID, target string) (engine.Phase, error)
	NextRound(ctx context.Context, sessionID, userID string) (*services.NextRoundResult, error)
	GetState(ctx context.Context, sessionID, userID string) (*services.SessionState, error)
}

type GameHandler struct {
	games GameCoordinator
}

func NewGameHandler(games GameCoordinator) *GameHandler {
	return &GameHandler{games: games}
}

type SubmitAnswerRequest struct {
	Content string `json:"content" binding:"required"`
}

type SubmitVoteRequest struct {
	AnswerID string `json:"answerId" binding:"required"`
}

type AdvancePhaseRequest struct {
	Phase string `json:"phase" binding:"required"`
}

func (h *GameHandler) StartSession(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	result, err := h.games.StartSession(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *GameHandler) SubmitAnswer(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	answer, err := h.games.SubmitAnswer(c.Request.Context(), c.Param("id"), userID, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"answer": answer})
}

func (h *GameHandler) SubmitVote(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req SubmitVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	vote, err := h.games.SubmitVote(c.Request.Context(), c.Param("id"), userID, req.AnswerID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"vote": vote})
}

func (h *GameHandler) AdvancePhase(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req AdvancePhaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	phase, err := h.games.AdvancePhase(c.Request.Context(), c.Param("id"), userID, req.Phase)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "phase": phase})
}

func (h *GameHandler) NextRound(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	result, err := h.games.NextRound(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *GameHandler) GetState(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	state, err := h.games.GetState(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}
