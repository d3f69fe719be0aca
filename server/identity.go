package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// Profile is the authorization result for one credential. It is fetched once
// per admission and attached read-only to the connection afterwards.
type Profile struct {
	IdentityID  string `json:"identityId"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
	Banned      bool   `json:"banned"`
}

// IdentityGate validates a bearer credential against the identity provider.
// A failed call fails the admission attempt immediately; there is no retry
// policy at this layer.
type IdentityGate interface {
	Authenticate(ctx context.Context, credential string) (Profile, error)
}

// HTTPIdentityGate fetches profiles from the external identity provider over
// HTTP. Every failure mode (rejected credential, missing profile, provider
// unreachable) maps to AuthError; a banned profile is still returned so the
// room can reject it with the distinct ForbiddenError.
type HTTPIdentityGate struct {
	baseURL string
	client  *http.Client
}

func NewHTTPIdentityGate(baseURL string) *HTTPIdentityGate {
	return &HTTPIdentityGate{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (g *HTTPIdentityGate) Authenticate(ctx context.Context, credential string) (Profile, error) {
	if credential == "" {
		return Profile{}, roomErrf(KindAuthError, "empty credential")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/v1/profile", nil)
	if err != nil {
		return Profile{}, roomErrf(KindAuthError, "build profile request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	resp, err := g.client.Do(req)
	if err != nil {
		return Profile{}, roomErrf(KindAuthError, "identity provider unreachable: %v", err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return Profile{}, roomErrf(KindAuthError, "credential rejected")
	case http.StatusNotFound:
		return Profile{}, roomErrf(KindAuthError, "profile not found")
	default:
		return Profile{}, roomErrf(KindAuthError, "identity provider status %d", resp.StatusCode)
	}
	var p Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return Profile{}, roomErrf(KindAuthError, "malformed profile: %v", err)
	}
	return p, nil
}
