package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi/v5"
)

// newRequest creates a new HTTP request with an optional JSON body.
func newRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	r := httptest.NewRequest(method, target, &buf)
	r.Header.Set("Content-Type", "application/json")
	return r
}

// newRequestRaw creates a new HTTP request with a raw string body.
func newRequestRaw(method, target, body string) *http.Request {
	r := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

// newRegistrationRequest builds a multipart POST the way the registration
// endpoint receives it: plain fields plus optional file parts.
func newRegistrationRequest(fields map[string]string, files map[string][]byte) *http.Request {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	for name, value := range fields {
		writer.WriteField(name, value)
	}
	for name, data := range files {
		part, _ := writer.CreateFormFile(name, name+".pem")
		part.Write(data)
	}
	writer.Close()

	r := httptest.NewRequest(http.MethodPost, "/api/v1/environments", &body)
	r.Header.Set("Content-Type", writer.FormDataContentType())
	return r
}

// withChiURLParam adds a chi URL parameter to the request context.
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// decodeErrorResponse parses the JSON error response body into a map.
func decodeErrorResponse(rec *httptest.ResponseRecorder) map[string]string {
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	return body
}
