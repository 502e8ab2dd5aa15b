package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/flotilla/internal/model"
)

func testAuthenticator(srv *httptest.Server) *AzureAuthenticator {
	a := NewAzureAuthenticator()
	a.loginURL = srv.URL
	return a
}

func testCredentials() *model.AzureCredentials {
	return &model.AzureCredentials{
		ApplicationID:     "app-1",
		TenantID:          "tenant-1",
		AuthenticationKey: "secret",
	}
}

func TestAzureAuthenticator_Authenticate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/tenant-1/oauth2/token", r.URL.Path)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.FormValue("grant_type"))
		assert.Equal(t, "app-1", r.FormValue("client_id"))
		assert.Equal(t, "secret", r.FormValue("client_secret"))
		assert.Equal(t, azureManagementURL, r.FormValue("resource"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok","expires_on":"1700000000"}`))
	}))
	defer srv.Close()

	err := testAuthenticator(srv).Authenticate(context.Background(), testCredentials())
	require.NoError(t, err)
}

func TestAzureAuthenticator_Authenticate_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_client"}`))
	}))
	defer srv.Close()

	err := testAuthenticator(srv).Authenticate(context.Background(), testCredentials())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestAzureAuthenticator_Authenticate_EmptyToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":""}`))
	}))
	defer srv.Close()

	err := testAuthenticator(srv).Authenticate(context.Background(), testCredentials())
	assert.Error(t, err)
}

func TestAzureAuthenticator_Authenticate_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	err := testAuthenticator(srv).Authenticate(context.Background(), testCredentials())
	assert.Error(t, err)
}

func TestAzureAuthenticator_Authenticate_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	err := testAuthenticator(srv).Authenticate(context.Background(), testCredentials())
	assert.Error(t, err)
}
