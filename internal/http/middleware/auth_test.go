package middleware

import (
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func webhookRouter(secret string, seen *string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.POST("/webhook/whatsapp", WebhookSignature(secret), func(c *gin.Context) {
		b, _ := io.ReadAll(c.Request.Body)
		*seen = string(b)
		c.Status(http.StatusOK)
	})
	return r
}

func TestWebhookSignature(t *testing.T) {
	const secret = "s3cret"
	body := `{"event":"messages.upsert","instance":"viva"}`
	good := hex.EncodeToString(Sign([]byte(secret), []byte(body)))

	cases := []struct {
		name   string
		secret string
		sig    string
		status int
	}{
		{"disabled", "", "", http.StatusOK},
		{"valid", secret, good, http.StatusOK},
		{"valid with prefix", secret, "sha256=" + good, http.StatusOK},
		{"missing", secret, "", http.StatusUnauthorized},
		{"not hex", secret, "zz", http.StatusUnauthorized},
		{"wrong key", secret, hex.EncodeToString(Sign([]byte("other"), []byte(body))), http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var seen string
			r := webhookRouter(tc.secret, &seen)
			req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader(body))
			if tc.sig != "" {
				req.Header.Set(HeaderWebhookSignature, tc.sig)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tc.status {
				t.Fatalf("status = %d; want %d (%s)", w.Code, tc.status, w.Body.String())
			}
			if tc.status == http.StatusOK && seen != body {
				t.Fatalf("handler saw %q; body must be restored", seen)
			}
			if tc.status == http.StatusUnauthorized && !strings.Contains(w.Body.String(), `"unauthorized"`) {
				t.Fatalf("unexpected envelope %s", w.Body.String())
			}
		})
	}
}

func TestWebhookSignature_BodyTooLarge(t *testing.T) {
	var seen string
	r := webhookRouter("k", &seen)
	req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader(strings.Repeat("a", maxWebhookBody+1)))
	req.Header.Set(HeaderWebhookSignature, "00")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestAdminAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/leads", AdminAuth("admin-token"), func(c *gin.Context) { c.Status(http.StatusOK) })

	cases := map[string]int{
		"":                   http.StatusUnauthorized,
		"admin-token":        http.StatusUnauthorized,
		"Basic admin-token":  http.StatusUnauthorized,
		"Bearer wrong":       http.StatusUnauthorized,
		"Bearer admin-token": http.StatusOK,
		"bearer admin-token": http.StatusOK,
	}
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/leads", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != want {
			t.Errorf("Authorization %q: status = %d; want %d", header, w.Code, want)
		}
		if want == http.StatusUnauthorized && w.Header().Get("WWW-Authenticate") == "" {
			t.Errorf("Authorization %q: missing WWW-Authenticate", header)
		}
	}
}

func TestAdminAuth_EmptyTokenRejectsEverything(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", AdminAuth(""), func(c *gin.Context) { c.Status(http.StatusOK) })
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer ")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
}
