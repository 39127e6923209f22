package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// FacebookVerifier resolves an access token to a verified profile by asking
// the Graph API itself, instead of trusting client-supplied profile data.
type FacebookVerifier struct {
	baseURL string
	client  *http.Client
}

func NewFacebookVerifier(baseURL string) *FacebookVerifier {
	return &FacebookVerifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type facebookProfile struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (v *FacebookVerifier) Verify(ctx context.Context, token string) (ExternalIdentity, error) {
	if strings.TrimSpace(token) == "" {
		return ExternalIdentity{}, fmt.Errorf("empty facebook access token")
	}

	query := url.Values{}
	query.Set("fields", "id,email,first_name,last_name")
	query.Set("access_token", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/me?"+query.Encode(), nil)
	if err != nil {
		return ExternalIdentity{}, fmt.Errorf("build graph api request: %w", err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return ExternalIdentity{}, fmt.Errorf("call graph api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ExternalIdentity{}, fmt.Errorf("graph api rejected token: status %d", resp.StatusCode)
	}

	var profile facebookProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return ExternalIdentity{}, fmt.Errorf("decode graph api response: %w", err)
	}
	if profile.Email == "" {
		return ExternalIdentity{}, fmt.Errorf("facebook profile has no email")
	}

	return ExternalIdentity{
		Email:     profile.Email,
		FirstName: profile.FirstName,
		LastName:  profile.LastName,
		SubjectID: profile.ID,
	}, nil
}
