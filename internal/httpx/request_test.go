package httpx

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type probe struct {
	Name string `json:"name" validate:"required"`
}

func TestDecodeJSON(t *testing.T) {
	t.Run("valid body", func(t *testing.T) {
		var p probe
		w := httptest.NewRecorder()
		ok := DecodeJSON(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x"}`)), &p, false)
		assert.True(t, ok)
		assert.Equal(t, "x", p.Name)
	})

	t.Run("empty body rejected unless optional", func(t *testing.T) {
		var p probe
		w := httptest.NewRecorder()
		assert.False(t, DecodeJSON(w, httptest.NewRequest(http.MethodPost, "/", nil), &p, false))
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = httptest.NewRecorder()
		assert.True(t, DecodeJSON(w, httptest.NewRequest(http.MethodPost, "/", nil), &p, true))
	})

	t.Run("oversized body", func(t *testing.T) {
		var p probe
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"`+strings.Repeat("a", 64)+`"}`))
		r.Body = http.MaxBytesReader(w, r.Body, 16)
		assert.False(t, DecodeJSON(w, r, &p, false))
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Equal(t, "PAYLOAD_TOO_LARGE", decode(t, w)["error"].(map[string]any)["code"])
	})
}

func TestValidate(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	assert.False(t, Validate(w, r, probe{}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	assert.True(t, Validate(w, r, probe{Name: "x"}))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.7:5123"
	assert.Equal(t, "10.0.0.7", ClientIP(r))

	r.Header.Set("X-Forwarded-For", " 203.0.113.9 , 10.0.0.1")
	assert.Equal(t, "203.0.113.9", ClientIP(r))

	r.Header.Del("X-Forwarded-For")
	r.RemoteAddr = "pipe"
	assert.Equal(t, "pipe", ClientIP(r))
}
