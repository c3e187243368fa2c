package fitbit

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// Refresher exchanges refresh tokens at the OAuth token endpoint. Client
// credentials go in the Authorization header.
type Refresher struct {
	config     *oauth2.Config
	httpClient *http.Client
}

func NewRefresher(clientID, clientSecret, tokenURL string, timeout time.Duration) *Refresher {
	return &Refresher{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Refresh returns a new access token, the refresh token to keep and the
// access token expiry.
func (r *Refresher) Refresh(ctx context.Context, refreshToken string) (string, string, time.Time, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)
	tok, err := r.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("token refresh failed: %w", err)
	}
	if tok.AccessToken == "" || tok.RefreshToken == "" {
		return "", "", time.Time{}, fmt.Errorf("token refresh failed: incomplete token response")
	}
	return tok.AccessToken, tok.RefreshToken, tok.Expiry.UTC(), nil
}
