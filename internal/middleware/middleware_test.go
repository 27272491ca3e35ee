package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/countdown-game/internal/errors"
)

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Recovery(), RequestLogger(), PlayerIdentity())
	return r
}

func TestRequestID(t *testing.T) {
	r := newTestRouter()
	r.GET("/id", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	t.Run("自动生成", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/id", nil))
		assert.NotEmpty(t, w.Body.String())
		assert.Equal(t, w.Body.String(), w.Header().Get(HeaderRequestID))
	})

	t.Run("沿用请求头", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/id", nil)
		req.Header.Set(HeaderRequestID, "req-1")
		r.ServeHTTP(w, req)
		assert.Equal(t, "req-1", w.Body.String())
	})
}

func TestPlayerIdentity(t *testing.T) {
	r := newTestRouter()
	r.GET("/me", func(c *gin.Context) {
		id, ok := GetPlayerID(c)
		c.JSON(http.StatusOK, gin.H{"id": id, "ok": ok, "name": GetPlayerName(c)})
	})

	cases := []struct {
		name   string
		url    string
		header map[string]string
		wantID string
	}{
		{"请求头", "/me", map[string]string{HeaderPlayerID: "p1", HeaderPlayerName: "Alice"}, "p1"},
		{"查询参数", "/me?player_id=p2", nil, "p2"},
		{"匿名", "/me", nil, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tc.url, nil)
			for k, v := range tc.header {
				req.Header.Set(k, v)
			}
			r.ServeHTTP(w, req)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tc.wantID, body["id"])
			assert.Equal(t, tc.wantID != "", body["ok"])
		})
	}
}

func TestRecovery(t *testing.T) {
	r := newTestRouter()
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp errors.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, errors.ErrUnknown, resp.Error.Code)
}
