package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/gatherly/gatherly/apperr"
	"github.com/gatherly/gatherly/entity"
	"github.com/gatherly/gatherly/middleware"
	"github.com/gatherly/gatherly/service"
)

type UserController struct {
	UserService *service.UserService
	Auth        *middleware.AuthMiddleware
}

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type guestLoginRequest struct {
	Name string `json:"name"`
}

func (h *UserController) Register(ctx *gin.Context) {
	var req registerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondError(ctx, apperr.Validation("All fields are required"))
		return
	}

	user, err := h.UserService.Register(req.Name, req.Email, req.Password)
	if err != nil {
		respondError(ctx, err)
		return
	}

	h.issueSession(ctx, user, http.StatusCreated)
}

func (h *UserController) Login(ctx *gin.Context) {
	var req loginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondError(ctx, apperr.Validation("All fields are required"))
		return
	}

	user, err := h.UserService.Login(req.Email, req.Password)
	if err != nil {
		respondError(ctx, err)
		return
	}

	h.issueSession(ctx, user, http.StatusOK)
}

func (h *UserController) GuestLogin(ctx *gin.Context) {
	var req guestLoginRequest
	_ = ctx.ShouldBindJSON(&req)

	user, err := h.UserService.GuestLogin(req.Name)
	if err != nil {
		respondError(ctx, err)
		return
	}

	h.issueSession(ctx, user, http.StatusOK)
}

func (h *UserController) Logout(ctx *gin.Context) {
	ctx.SetSameSite(http.SameSiteNoneMode)
	ctx.SetCookie(middleware.CookieName, "", -1, "/", "", true, true)
	ctx.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (h *UserController) CheckAuth(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, middleware.CurrentUser(ctx))
}

func (h *UserController) issueSession(ctx *gin.Context, user *entity.User, status int) {
	token, err := h.Auth.IssueToken(user.ID)
	if err != nil {
		log.Error().Err(err).Str("userId", user.ID.Hex()).Msg("token signing failed")
		ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	ctx.SetSameSite(http.SameSiteNoneMode)
	ctx.SetCookie(middleware.CookieName, token, int(middleware.TokenLifetime.Seconds()), "/", "", true, true)

	ctx.JSON(status, user)
}
