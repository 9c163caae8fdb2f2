package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestIdempotencyHelpers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	if k, ok := GetIdempotencyKey(c); k != "" || ok {
		t.Fatalf("expected empty key when not set")
	}
	if IsReplay(c) {
		t.Fatal("expected IsReplay=false by default")
	}

	// Wrong-typed values must degrade to absent, never panic.
	c.Set(ctxKeyIdemKey, 123)
	if _, ok := GetIdempotencyKey(c); ok {
		t.Fatal("expected no key for non-string value")
	}
	c.Set(ctxKeyIdemReplay, "yes")
	if IsReplay(c) {
		t.Fatal("expected IsReplay=false for non-bool value")
	}

	c.Set(ctxKeyIdemKey, "k-1")
	c.Set(ctxKeyIdemReplay, true)
	if k, ok := GetIdempotencyKey(c); !ok || k != "k-1" {
		t.Fatalf("key = %q ok=%v", k, ok)
	}
	if !IsReplay(c) {
		t.Fatal("expected IsReplay=true")
	}
}

func TestIdempotencyValidator_NoHeaderSkipsLookup(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	lookupCalled := false
	lookup := func(_ context.Context, _, _, _ string, _ time.Time) (bool, error) {
		lookupCalled = true
		return false, nil
	}
	r.Use(IdempotencyValidator(IdempotencyOptions{}, lookup))
	r.POST("/chats/c1/messages", func(c *gin.Context) {
		if _, ok := GetIdempotencyKey(c); ok {
			t.Fatal("key should not be present when header missing")
		}
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/chats/c1/messages", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if lookupCalled {
		t.Fatal("lookup must not run without a key")
	}
}

func TestIdempotencyValidator_RejectsBadKeys(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("too long", func(t *testing.T) {
		r := gin.New()
		r.Use(IdempotencyValidator(IdempotencyOptions{MaxLen: 5}, nil))
		r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/x", nil)
		req.Header.Set(HeaderIdempotencyKey, "abcdef")
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
		var body map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		if body["code"] != "bad_idempotency_key" {
			t.Fatalf("unexpected body: %v", body)
		}
	})

	t.Run("bad characters", func(t *testing.T) {
		r := gin.New()
		r.Use(IdempotencyValidator(IdempotencyOptions{Pattern: regexp.MustCompile(`^[0-9]+$`)}, nil))
		r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/x", nil)
		req.Header.Set(HeaderIdempotencyKey, "abc123")
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
	})
}

func TestIdempotencyValidator_ValidKeyNoLookup(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// Zero options exercise the defaults (MaxLen 200, token pattern).
	r.Use(IdempotencyValidator(IdempotencyOptions{}, nil))
	r.POST("/x", func(c *gin.Context) {
		key, ok := GetIdempotencyKey(c)
		if !ok || key != "abc-123" {
			t.Fatalf("stashed key = %q ok=%v", key, ok)
		}
		if IsReplay(c) || IsRateBypass(c) {
			t.Fatal("no replay/bypass expected without a lookup")
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	req.Header.Set(HeaderIdempotencyKey, "abc-123")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestIdempotencyValidator_LookupMissAndHit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("miss", func(t *testing.T) {
		r := gin.New()
		lookup := func(_ context.Context, userID, chatID, key string, now time.Time) (bool, error) {
			// Unauthenticated: no user id reaches the lookup.
			if userID != "" {
				t.Fatalf("userID = %q, want empty", userID)
			}
			if chatID != "c42" || key != "key-1" || now.IsZero() {
				t.Fatalf("lookup args: chat=%q key=%q now=%v", chatID, key, now)
			}
			return false, nil
		}
		r.Use(IdempotencyValidator(IdempotencyOptions{}, lookup))
		r.POST("/chats/:id/messages", func(c *gin.Context) {
			if IsReplay(c) || IsRateBypass(c) {
				t.Fatal("no replay/bypass expected on miss")
			}
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/chats/c42/messages", nil)
		req.Header.Set(HeaderIdempotencyKey, "key-1")
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
	})

	t.Run("hit marks replay and rate bypass", func(t *testing.T) {
		r := gin.New()
		// Identity is normally set by RequireAuth further up the chain.
		r.Use(func(c *gin.Context) { c.Set(userIDKey, "u9"); c.Next() })
		lookup := func(_ context.Context, userID, chatID, key string, _ time.Time) (bool, error) {
			if userID != "u9" || chatID != "abc" || key != "k-9" {
				t.Fatalf("lookup args: user=%q chat=%q key=%q", userID, chatID, key)
			}
			return true, nil
		}
		r.Use(IdempotencyValidator(IdempotencyOptions{}, lookup))
		r.POST("/chats/:id/messages", func(c *gin.Context) {
			if !IsReplay(c) {
				t.Fatal("expected IsReplay=true on hit")
			}
			if !IsRateBypass(c) {
				t.Fatal("expected IsRateBypass=true on hit")
			}
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/chats/abc/messages", nil)
		req.Header.Set(HeaderIdempotencyKey, "k-9")
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
	})
}
