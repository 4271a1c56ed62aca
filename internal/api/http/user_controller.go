package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/huddlekit/huddle/internal/domain"
	"github.com/huddlekit/huddle/internal/service"
)

// UserController is the identity surface: registered accounts plus the
// guest resolution the realtime path leans on.
type UserController struct {
	users service.UserInteractor
}

func NewUserController(users service.UserInteractor) *UserController {
	return &UserController{users: users}
}

func (c *UserController) CreateUser(ctx *gin.Context) {
	type request struct {
		Name  string `json:"name" binding:"required"`
		Email string `json:"email"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, err := c.users.CreateUser(ctx.Request.Context(), req.Name, req.Email)
	if err != nil {
		if errors.Is(err, domain.ErrUserEmailExists) {
			ctx.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"user": user})
}

func (c *UserController) GetUser(ctx *gin.Context) {
	id, err := uuid.Parse(ctx.Param("userID"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	user, err := c.users.GetUser(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": user})
}

// ResolveIdentity answers with the identity a client should join rooms
// under: the registered user when the id is known, otherwise a fresh
// guest. It never fails; an unreachable store degrades to a guest too.
func (c *UserController) ResolveIdentity(ctx *gin.Context) {
	type request struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	id := uuid.Nil
	if req.ID != "" {
		parsed, err := uuid.Parse(req.ID)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
			return
		}
		id = parsed
	}

	user := c.users.ResolveIdentity(ctx.Request.Context(), id, req.Name)
	ctx.JSON(http.StatusOK, gin.H{"user": user})
}
