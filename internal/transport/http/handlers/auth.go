package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dreznev/authcore/internal/usecase"
)

// AuthHandler exposes the password authentication endpoints.
type AuthHandler struct {
	login     *usecase.LoginService
	registrar *usecase.Registrar
	sessions  *usecase.SessionService
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(login *usecase.LoginService, registrar *usecase.Registrar, sessions *usecase.SessionService) *AuthHandler {
	return &AuthHandler{
		login:     login,
		registrar: registrar,
		sessions:  sessions,
	}
}

// RegisterRoutes binds the password authentication routes.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/login", h.loginWithPassword)
	r.POST("/register", h.register)
}

func (h *AuthHandler) loginWithPassword(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	subject, err := h.login.AuthenticatePassword(c.Request.Context(), c.ClientIP(), req.Email, req.Password)
	if err != nil {
		RespondWithMappedError(c, err, authErrorCases, http.StatusInternalServerError, "login failed")
		return
	}

	token, err := h.sessions.Establish(c.Request.Context(), subject)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to establish session"))
		return
	}

	c.JSON(http.StatusOK, SessionResponse{
		Token: token,
		User:  newUserSummary(subject),
	})
}

func (h *AuthHandler) register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid registration payload"))
		return
	}

	subject, err := h.registrar.RegisterPassword(c.Request.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		RespondWithMappedError(c, err, authErrorCases, http.StatusInternalServerError, "registration failed")
		return
	}

	token, err := h.sessions.Establish(c.Request.Context(), subject)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to establish session"))
		return
	}

	c.JSON(http.StatusCreated, SessionResponse{
		Token: token,
		User:  newUserSummary(subject),
	})
}
