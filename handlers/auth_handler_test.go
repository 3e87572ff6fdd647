package handlers

import (
	"context"
	"net/http"
	"testing"

	"promptparty/apperr"
	"promptparty/models"
	"promptparty/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type fakeAuth struct{}

func (fakeAuth) Register(_ context.Context, req *services.RegisterRequest) (*services.AuthResponse, error) {
	if req.Username == "taken" {
		return nil, apperr.New(apperr.CodeValidation, "username or email already taken")
	}
	return &services.AuthResponse{Token: "t", User: &models.User{ID: "u1", Username: req.Username}}, nil
}

func (fakeAuth) Login(_ context.Context, req *services.LoginRequest) (*services.AuthResponse, error) {
	if req.Password != "secret1" {
		return nil, apperr.New(apperr.CodeUnauthenticated, "invalid credentials")
	}
	return &services.AuthResponse{Token: "t", User: &models.User{ID: "u1"}}, nil
}

func (fakeAuth) GetUser(_ context.Context, userID string) (*models.User, error) {
	return &models.User{ID: userID, Username: "alice", PasswordHash: "hash"}, nil
}

func TestAuthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewAuthHandler(fakeAuth{})
	r := gin.New()
	r.POST("/register", h.Register)
	r.POST("/login", h.Login)
	r.GET("/profile", withUser("u1"), h.GetProfile)
	r.GET("/anonymous", h.GetProfile)

	w := do(r, http.MethodPost, "/register", `{"username":"alice","email":"a@example.com","password":"secret1"}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "t", decode(t, w)["token"])

	w = do(r, http.MethodPost, "/register", `{"username":"taken","email":"a@example.com","password":"secret1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/register", `{"username":"alice","email":"not-an-email","password":"secret1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, w)["code"])

	w = do(r, http.MethodPost, "/login", `{"email":"a@example.com","password":"secret1"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodPost, "/login", `{"email":"a@example.com","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodGet, "/profile", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "hash")

	w = do(r, http.MethodGet, "/anonymous", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
