package auth

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/idtoken"
)

// GoogleVerifier validates Google ID tokens (signature, audience, expiry)
// using Google's published key material via the idtoken package.
type GoogleVerifier struct {
	clientID string
	timeout  time.Duration
}

func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{clientID: clientID, timeout: 10 * time.Second}
}

func (v *GoogleVerifier) Verify(ctx context.Context, token string) (ExternalIdentity, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	payload, err := idtoken.Validate(ctx, token, v.clientID)
	if err != nil {
		return ExternalIdentity{}, fmt.Errorf("validate google id token: %w", err)
	}

	email, _ := payload.Claims["email"].(string)
	if email == "" {
		return ExternalIdentity{}, fmt.Errorf("google id token has no email claim")
	}
	givenName, _ := payload.Claims["given_name"].(string)
	familyName, _ := payload.Claims["family_name"].(string)

	return ExternalIdentity{
		Email:     email,
		FirstName: givenName,
		LastName:  familyName,
		SubjectID: payload.Subject,
	}, nil
}
