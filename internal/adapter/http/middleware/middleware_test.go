package middleware

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"eromax-ledger/internal/core/domain"
	"eromax-ledger/internal/core/ports/mocks"
	"eromax-ledger/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func withPrincipal(p domain.Principal) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(CtxPrincipal, p)
		c.Next()
	}
}

// ==================== RequestID ====================

func TestRequestID_Generated(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(CtxRequestID))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	require.Equal(t, http.StatusOK, w.Code)
	id := w.Header().Get(HeaderRequestID)
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
	assert.Equal(t, id, w.Body.String())
}

func TestRequestID_Propagated(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(HeaderRequestID, "req-abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-abc", w.Header().Get(HeaderRequestID))
}

// ==================== JWTAuth ====================

func TestJWTAuth(t *testing.T) {
	principal := &domain.Principal{ID: uuid.New(), Role: domain.RoleClient}

	tests := []struct {
		name   string
		header string
		setup  func(m *mocks.MockTokenService)
		want   int
	}{
		{"missing header", "", func(m *mocks.MockTokenService) {}, http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", func(m *mocks.MockTokenService) {}, http.StatusUnauthorized},
		{"empty bearer", "Bearer ", func(m *mocks.MockTokenService) {}, http.StatusUnauthorized},
		{"invalid token", "Bearer bad", func(m *mocks.MockTokenService) {
			m.EXPECT().Validate("bad").Return(nil, errors.New("signature is invalid"))
		}, http.StatusUnauthorized},
		{"valid token", "Bearer good", func(m *mocks.MockTokenService) {
			m.EXPECT().Validate("good").Return(principal, nil)
		}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			tokenSvc := mocks.NewMockTokenService(ctrl)
			tt.setup(tokenSvc)

			r := gin.New()
			r.GET("/test", JWTAuth(tokenSvc, zerolog.Nop()), func(c *gin.Context) {
				p, ok := PrincipalFrom(c)
				require.True(t, ok)
				c.String(http.StatusOK, p.ID.String())
			})

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, principal.ID.String(), w.Body.String())
			}
		})
	}
}

// ==================== RequireRole ====================

func TestRequireRole(t *testing.T) {
	admin := domain.Principal{ID: uuid.New(), Role: domain.RoleAdmin}
	client := domain.Principal{ID: uuid.New(), Role: domain.RoleClient}

	tests := []struct {
		name      string
		principal *domain.Principal
		want      int
	}{
		{"no principal", nil, http.StatusUnauthorized},
		{"admin allowed", &admin, http.StatusOK},
		{"client forbidden", &client, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			if tt.principal != nil {
				r.Use(withPrincipal(*tt.principal))
			}
			r.GET("/test", RequireRole(domain.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestPrincipalFrom_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, ok := PrincipalFrom(c)
	assert.False(t, ok)

	c.Set(CtxPrincipal, "not-a-principal")
	_, ok = PrincipalFrom(c)
	assert.False(t, ok)
}

// ==================== Recovery / RequestLogger ====================

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	r := gin.New()
	r.Use(Recovery(log))
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "SYS_002")
	assert.Contains(t, buf.String(), "panic recovered")
}

func TestRequestLogger_LevelByStatus(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	r := gin.New()
	r.Use(RequestID(), RequestLogger(log))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	r.GET("/err", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, path := range []string{"/ok", "/bad", "/err"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	out := buf.String()
	assert.Contains(t, out, `"level":"info"`)
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, `"level":"error"`)
	assert.Contains(t, out, `"request_id"`)
}

// ==================== Metrics ====================

func TestMetrics_RecordsRouteTemplate(t *testing.T) {
	metrics.HTTPRequestsTotal.Reset()

	r := gin.New()
	r.Use(Metrics())
	r.GET("/wallets/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/wallets/abc", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/wallets/def", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/wallets/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "404")))
}

// ==================== AuditLog ====================

func TestAuditLog(t *testing.T) {
	admin := domain.Principal{ID: uuid.New(), Role: domain.RoleAdmin}

	tests := []struct {
		name    string
		method  string
		status  int
		audited bool
	}{
		{"successful write", http.MethodPost, http.StatusOK, true},
		{"created", http.MethodPost, http.StatusCreated, true},
		{"failed write", http.MethodPost, http.StatusBadRequest, false},
		{"read", http.MethodGet, http.StatusOK, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			r := gin.New()
			r.Use(withPrincipal(admin), AuditLog(zerolog.New(&buf)))
			r.Handle(tt.method, "/wallets/:id/deposit", func(c *gin.Context) { c.Status(tt.status) })

			req := httptest.NewRequest(tt.method, "/wallets/w1/deposit", nil)
			req.Header.Set(HeaderIdempotencyKey, "dep-1")
			r.ServeHTTP(httptest.NewRecorder(), req)

			if !tt.audited {
				assert.Empty(t, buf.String())
				return
			}
			out := buf.String()
			assert.Contains(t, out, `"message":"audit"`)
			assert.Contains(t, out, tt.method+" /wallets/:id/deposit")
			assert.Contains(t, out, admin.ID.String())
			assert.Contains(t, out, `"idempotency_key":"dep-1"`)
		})
	}
}
