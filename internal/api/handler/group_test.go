package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGroupCreate_InvalidJSON(t *testing.T) {
	h := NewGroup(nil)
	rec := httptest.NewRecorder()
	r := newRequestRaw(http.MethodPost, "/api/v1/groups", "{bad json")

	h.Create(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGroupCreate_MissingName(t *testing.T) {
	h := NewGroup(nil)
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPost, "/api/v1/groups", map[string]any{
		"description": "nameless",
	})

	h.Create(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeErrorResponse(rec)
	assert.Contains(t, body["error"], "Name")
}

func TestGroupGet_InvalidID(t *testing.T) {
	h := NewGroup(nil)
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/groups/abc", nil)
	r = withChiURLParam(r, "id", "abc")

	h.Get(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
