package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/example/edu-admin/internal/auth"
	"github.com/example/edu-admin/internal/usecase"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type studentLoginRequest struct {
	RegNo    string `json:"reg_no"`
	Password string `json:"password"`
}

func (h *handler) register(c *gin.Context) {
	var req usecase.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	if err := h.accounts.Register(c.Request.Context(), req); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "User registered successfully"})
}

func (h *handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	token, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, token)
}

func (h *handler) studentSignup(c *gin.Context) {
	var req usecase.StudentSignupInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	if err := h.accounts.StudentSignup(c.Request.Context(), req); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Student registered successfully"})
}

func (h *handler) studentLogin(c *gin.Context) {
	var req studentLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	token, err := h.accounts.StudentLogin(c.Request.Context(), req.RegNo, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, token)
}

func (h *handler) profile(c *gin.Context) {
	subject, ok := auth.GetUserID(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	profile, err := h.accounts.Profile(c.Request.Context(), auth.GetRole(c.Request.Context()), subject)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}
