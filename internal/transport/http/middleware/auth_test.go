package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docmind/internal/pkg/jwtutil"
)

func newAuthRouter(staticToken, secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger())
	r.GET("/guarded", AuthBearer(staticToken, secret), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextClientKey))
	})
	return r
}

func call(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthBearer(t *testing.T) {
	r := newAuthRouter("static-token", "jwt-secret")

	token, err := jwtutil.GenerateToken("jwt-secret", time.Hour, "evaluator")
	require.NoError(t, err)
	foreign, err := jwtutil.GenerateToken("other-secret", time.Hour, "evaluator")
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		status int
		client string
	}{
		{"missing header", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, ""},
		{"wrong token", "Bearer nope", http.StatusUnauthorized, ""},
		{"static token", "Bearer static-token", http.StatusOK, "static"},
		{"jwt", "Bearer " + token, http.StatusOK, "evaluator"},
		{"jwt with other secret", "Bearer " + foreign, http.StatusUnauthorized, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := call(r, tc.header)
			assert.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, tc.client, w.Body.String())
			} else {
				assert.Contains(t, w.Body.String(), `"code":40100`)
			}
		})
	}
}

func TestAuthBearer_OpenWhenUnconfigured(t *testing.T) {
	w := call(newAuthRouter("", ""), "")
	assert.Equal(t, http.StatusOK, w.Code)
}
