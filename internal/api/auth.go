package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ammar1510/clientdesk/internal/auth"
	"github.com/ammar1510/clientdesk/internal/database"
	"github.com/ammar1510/clientdesk/internal/models"
)

// AuthHandler handles authentication routes
type AuthHandler struct {
	DB database.DBInterface
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(db database.DBInterface) *AuthHandler {
	return &AuthHandler{DB: db}
}

type authResponse struct {
	Token  string               `json:"token"`
	Expiry time.Time            `json:"expiry"`
	User   *models.UserResponse `json:"user"`
}

// Register handles user registration
func (h *AuthHandler) Register(c *gin.Context) {
	var input models.UserRegistration
	if err := c.ShouldBindJSON(&input); err != nil {
		respondMessage(c, http.StatusBadRequest, err.Error())
		return
	}

	hashedPassword, err := auth.HashPassword(input.Password)
	if err != nil {
		log.Error("Failed to hash password: %v", err)
		respondMessage(c, http.StatusInternalServerError, "Failed to process password")
		return
	}

	role := input.Role
	if role == "" {
		role = models.RoleClient
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(input.Name),
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		PasswordHash: hashedPassword,
		Avatar:       input.Avatar,
		Role:         role,
		CreatedAt:    now,
		LastSeen:     now,
	}

	if err := h.DB.CreateUser(c.Request.Context(), user); err != nil {
		if errors.Is(err, database.ErrUserAlreadyExists) {
			respondMessage(c, http.StatusConflict, "User already exists")
			return
		}
		respondError(c, err)
		return
	}

	token, expiry, err := auth.GenerateToken(user)
	if err != nil {
		respondError(c, err)
		return
	}

	log.Info("Registered %s user %s", user.Role, user.ID)
	respond(c, http.StatusCreated, authResponse{Token: token, Expiry: expiry, User: user.Public()})
}

// Login handles user login
func (h *AuthHandler) Login(c *gin.Context) {
	var input models.UserLogin
	if err := c.ShouldBindJSON(&input); err != nil {
		respondMessage(c, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.DB.GetUserByEmail(c.Request.Context(), input.Email)
	if errors.Is(err, database.ErrUserNotFound) {
		respondMessage(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	if !auth.CheckPasswordHash(input.Password, user.PasswordHash) {
		respondMessage(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if err := h.DB.UpdateLastSeen(c.Request.Context(), user.ID); err != nil {
		log.Warn("Failed to update last seen for %s: %v", user.ID, err)
	}

	token, expiry, err := auth.GenerateToken(user)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, authResponse{Token: token, Expiry: expiry, User: user.Public()})
}

// GetMe gets the current user profile
func (h *AuthHandler) GetMe(c *gin.Context) {
	user, err := h.DB.GetUserByID(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, user.Public())
}
