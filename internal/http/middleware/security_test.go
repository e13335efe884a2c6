package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func securityRig(opt SecurityOptions, pre gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if pre != nil {
		r.Use(pre)
	}
	r.Use(SecurityHeaders(opt))
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func TestSecurityHeaders_Baseline(t *testing.T) {
	r := securityRig(SecurityOptions{}, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))

	h := w.Header()
	if h.Get("X-Content-Type-Options") != "nosniff" ||
		h.Get("X-Frame-Options") != "DENY" ||
		h.Get("Referrer-Policy") != "no-referrer" {
		t.Fatalf("baseline headers missing: %#v", h)
	}
	// Everything optional stays off by default.
	for _, hdr := range []string{
		"Permissions-Policy", "X-Permitted-Cross-Domain-Policies",
		"Cache-Control", "Pragma", "Expires",
		"Strict-Transport-Security", "Access-Control-Expose-Headers",
	} {
		if got := h.Get(hdr); got != "" {
			t.Fatalf("%s = %q, want unset", hdr, got)
		}
	}
}

func TestSecurityHeaders_PolicyNoStoreAndHSTS(t *testing.T) {
	r := securityRig(SecurityOptions{
		EnableHSTS:   true,
		HSTSMaxAge:   24 * time.Hour,
		NoStore:      true,
		EnablePolicy: true,
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.TLS = &tls.ConnectionState{}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	h := w.Header()
	if h.Get("Permissions-Policy") == "" || h.Get("X-Permitted-Cross-Domain-Policies") != "none" {
		t.Fatalf("policy headers missing: %#v", h)
	}
	if h.Get("Cache-Control") != "no-store" || h.Get("Pragma") != "no-cache" || h.Get("Expires") != "0" {
		t.Fatalf("cache headers missing: %#v", h)
	}
	if got, want := h.Get("Strict-Transport-Security"), "max-age=86400; includeSubDomains; preload"; got != want {
		t.Fatalf("HSTS = %q, want %q", got, want)
	}
}

func TestSecurityHeaders_HSTSOnlyOverHTTPS(t *testing.T) {
	cases := map[string]struct {
		tls      bool
		fwdProto string
		want     bool
	}{
		"plain http":           {want: false},
		"direct tls":           {tls: true, want: true},
		"proxy header":         {fwdProto: "https", want: true},
		"proxy header http":    {fwdProto: "http", want: false},
		"case-folded fwdproto": {fwdProto: "HTTPS", want: true},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			r := securityRig(SecurityOptions{EnableHSTS: true, HSTSMaxAge: time.Hour}, nil)
			req := httptest.NewRequest(http.MethodGet, "/ok", nil)
			if tc.tls {
				req.TLS = &tls.ConnectionState{}
			}
			if tc.fwdProto != "" {
				req.Header.Set("X-Forwarded-Proto", tc.fwdProto)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get("Strict-Transport-Security") != ""
			if got != tc.want {
				t.Fatalf("HSTS emitted = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSecurityHeaders_ExposesRequestID(t *testing.T) {
	cases := map[string]struct {
		existing string
		want     string
	}{
		"fresh":     {existing: "", want: "X-Request-ID"},
		"append":    {existing: "Foo", want: "Foo, X-Request-ID"},
		"no-repeat": {existing: "X-Request-ID, Foo", want: "X-Request-ID, Foo"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			existing := tc.existing
			r := securityRig(SecurityOptions{}, func(c *gin.Context) {
				c.Header("X-Request-ID", "rid-1")
				if existing != "" {
					c.Header("Access-Control-Expose-Headers", existing)
				}
				c.Next()
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
			if got := w.Header().Get("Access-Control-Expose-Headers"); got != tc.want {
				t.Fatalf("expose header = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestHSTSValue_DefaultMaxAge(t *testing.T) {
	if got := hstsValue(0); got != "max-age=15552000; includeSubDomains; preload" {
		t.Fatalf("hstsValue(0) = %q", got)
	}
}
