package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/edvin/flotilla/internal/model"
)

const (
	azureLoginURL      = "https://login.microsoftonline.com"
	azureManagementURL = "https://management.azure.com/"
)

// AzureAuthenticator validates Azure credentials by requesting a management
// token via the OAuth2 client-credentials grant. A rejected grant means the
// credentials are unusable and the registration must not proceed.
type AzureAuthenticator struct {
	loginURL string
	client   *http.Client
}

func NewAzureAuthenticator() *AzureAuthenticator {
	return &AzureAuthenticator{
		loginURL: azureLoginURL,
		client: &http.Client{
			Timeout: defaultProbeTimeout,
		},
	}
}

type azureTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresOn   string `json:"expires_on"`
}

// Authenticate performs the token request. A nil error confirms the
// credentials authenticate against the control plane.
func (a *AzureAuthenticator) Authenticate(ctx context.Context, credentials *model.AzureCredentials) error {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", credentials.ApplicationID)
	form.Set("client_secret", credentials.AuthenticationKey)
	form.Set("resource", azureManagementURL)

	endpoint := fmt.Sprintf("%s/%s/oauth2/token", a.loginURL, credentials.TenantID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build azure token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("azure authentication request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("azure authentication rejected with status %d: %s", resp.StatusCode, string(body))
	}

	var token azureTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return fmt.Errorf("decode azure token response: %w", err)
	}
	if token.AccessToken == "" {
		return fmt.Errorf("azure token response contained no access token")
	}

	return nil
}
