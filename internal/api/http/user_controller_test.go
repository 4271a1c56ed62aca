package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddlekit/huddle/internal/repository"
	"github.com/huddlekit/huddle/internal/service"
)

func userRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	users := service.NewUserService(repository.NewInMemoryUserRepository(), nil)
	controller := NewUserController(users)

	router := gin.New()
	router.POST("/api/users/create", controller.CreateUser)
	router.POST("/api/users/resolve", controller.ResolveIdentity)
	router.GET("/api/users/:userID", controller.GetUser)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateUserEndpoint(t *testing.T) {
	router := userRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/users/create",
		`{"name":"Alice","email":"alice@example.com"}`)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/users/create",
		`{"email":"no-name@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateUserDuplicateEmailConflicts(t *testing.T) {
	router := userRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/users/create",
		`{"name":"Alice","email":"alice@example.com"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/users/create",
		`{"name":"Imposter","email":"alice@example.com"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGetUserEndpoint(t *testing.T) {
	router := userRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/users/create",
		`{"name":"Alice"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		User struct {
			ID uuid.UUID `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doJSON(t, router, http.MethodGet, "/api/users/"+created.User.ID.String(), "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/users/"+uuid.New().String(), "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/users/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResolveIdentityEndpoint(t *testing.T) {
	router := userRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/users/create",
		`{"name":"Alice","email":"alice@example.com"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		User struct {
			ID uuid.UUID `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	type resolved struct {
		User struct {
			ID      uuid.UUID `json:"id"`
			Name    string    `json:"name"`
			IsGuest bool      `json:"is_guest"`
		} `json:"user"`
	}

	w = doJSON(t, router, http.MethodPost, "/api/users/resolve",
		`{"id":"`+created.User.ID.String()+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var reg resolved
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reg))
	assert.Equal(t, created.User.ID, reg.User.ID)
	assert.False(t, reg.User.IsGuest)

	// Unknown or absent ids degrade to a guest identity.
	w = doJSON(t, router, http.MethodPost, "/api/users/resolve",
		`{"name":"Drifter"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var guest resolved
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &guest))
	assert.True(t, guest.User.IsGuest)
	assert.Equal(t, "Drifter", guest.User.Name)

	w = doJSON(t, router, http.MethodPost, "/api/users/resolve",
		`{"id":"not-a-uuid"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
