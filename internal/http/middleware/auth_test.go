package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestBearerToken(t *testing.T) {
	cases := []struct {
		header string
		want   string
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi"},
		{"bearer abc", "abc"},
		{"BEARER abc", "abc"},
		{"  Bearer   abc  ", "abc"},
		{"Basic dXNlcjpwYXNz", ""},
		{"Bearer", ""},
		{"", ""},
	}
	for _, c := range cases {
		if got := bearerToken(c.header); got != c.want {
			t.Errorf("bearerToken(%q) = %q, want %q", c.header, got, c.want)
		}
	}
}

func TestRequireAuth_MissingAndInvalidToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	verify := func(token string) (string, string, error) {
		return "", "", errors.New("bad token")
	}
	r.Use(RequireAuth(verify))
	r.GET("/me", func(c *gin.Context) { c.Status(http.StatusOK) })

	// No Authorization header at all.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("missing header: status = %d, want 401", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body["code"] != "unauthorized" {
		t.Fatalf("unexpected body: %v", body)
	}

	// Header present but the verifier rejects it.
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("invalid token: status = %d, want 401", w.Code)
	}
}

func TestRequireAuth_StoresIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	verify := func(token string) (string, string, error) {
		if token != "good" {
			return "", "", errors.New("bad token")
		}
		return "u1", "alice", nil
	}
	r.Use(RequireAuth(verify))
	r.GET("/me", func(c *gin.Context) {
		if got := UserID(c); got != "u1" {
			t.Fatalf("UserID = %q, want u1", got)
		}
		if v, _ := c.Get(usernameKey); v != "alice" {
			t.Fatalf("username = %v, want alice", v)
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestUserID_AbsentOrWrongType(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	if got := UserID(c); got != "" {
		t.Fatalf("UserID on empty context = %q", got)
	}
	c.Set(userIDKey, 42)
	if got := UserID(c); got != "" {
		t.Fatalf("UserID with wrong type = %q", got)
	}
}
