package user

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"messenger/internal/logger"
	"messenger/internal/middleware"
	"messenger/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(dir Directory, sess model.Session) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(dir, logger.Nop())
	r := gin.New()
	auth := r.Group("/api", func(c *gin.Context) {
		middleware.SetSession(c, sess)
		c.Next()
	})
	auth.POST("/accounts", h.Register)
	auth.GET("/user/info", h.GetUserInfo)
	auth.PUT("/user/name", h.Rename)
	auth.GET("/users/search", h.SearchUsers)
	return r
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandlerRegisterFlow(t *testing.T) {
	dir := NewMemoryDirectory()
	r := newRouter(dir, model.Session{AccountID: "alice-x-com", Email: "alice@x.com", Name: "Alice"})

	w := doJSON(r, http.MethodGet, "/api/user/info", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(r, http.MethodPost, "/api/accounts", `{"first_name":"Alice","last_name":"Liddell"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var created UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "alice-x-com", created.ID)
	assert.Equal(t, "alice-x-com_profile_picture.png", created.ProfilePicture)

	w = doJSON(r, http.MethodPost, "/api/accounts", `{"first_name":"Alice"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(r, http.MethodPost, "/api/accounts", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPut, "/api/user/name", `{"first_name":"Al"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/api/user/info", "")
	require.Equal(t, http.StatusOK, w.Code)
	var info UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "Al", info.Name)

	w = doJSON(r, http.MethodGet, "/api/users/search?q=al", "")
	require.Equal(t, http.StatusOK, w.Code)
	var found []UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &found))
	require.Len(t, found, 1)
	assert.Equal(t, "alice@x.com", found[0].Email)

	w = doJSON(r, http.MethodGet, "/api/users/search", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
