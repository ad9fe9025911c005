package adminapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLimitDefault(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/recent-trades", nil)
	assert.Equal(t, 50, parseLimit(r, 50))
}

func TestParseLimitFromQuery(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/recent-trades?limit=20", nil)
	assert.Equal(t, 20, parseLimit(r, 50))
}

func TestParseLimitClampsToMax(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/recent-trades?limit=9000", nil)
	assert.Equal(t, 500, parseLimit(r, 50))
}

func TestParseLimitRejectsInvalidOrNonPositive(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/recent-trades?limit=garbage", nil)
	assert.Equal(t, 50, parseLimit(r, 50))

	r = httptest.NewRequest("GET", "/api/recent-trades?limit=-5", nil)
	assert.Equal(t, 50, parseLimit(r, 50))

	r = httptest.NewRequest("GET", "/api/recent-trades?limit=0", nil)
	assert.Equal(t, 50, parseLimit(r, 50))
}

func TestRequireSecretRejectsEmptyOrMismatch(t *testing.T) {
	s := &Server{}
	called := false
	handler := s.requireSecret("correct-secret", func(w http.ResponseWriter, r *http.Request) { called = true })

	r := httptest.NewRequest("POST", "/admin/run-cycle", nil)
	w := httptest.NewRecorder()
	handler(w, r)
	assert.False(t, called)
	assert.Equal(t, 401, w.Code)

	r.Header.Set("X-Admin-Secret", "correct-secret")
	handler(w, r)
	assert.True(t, called)
}
