package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeProvider(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/profile" {
			http.NotFound(w, r)
			return
		}
		switch r.Header.Get("Authorization") {
		case "Bearer tok-alice":
			_ = json.NewEncoder(w).Encode(Profile{
				IdentityID: "id-alice", DisplayName: "Alice", Role: "player",
			})
		case "Bearer tok-banned":
			_ = json.NewEncoder(w).Encode(Profile{
				IdentityID: "id-mallory", DisplayName: "Mallory", Role: "player", Banned: true,
			})
		case "Bearer tok-ghost":
			http.Error(w, "no profile", http.StatusNotFound)
		default:
			http.Error(w, "bad token", http.StatusUnauthorized)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPIdentityGateAuthenticates(t *testing.T) {
	gate := NewHTTPIdentityGate(fakeProvider(t).URL)

	p, err := gate.Authenticate(context.Background(), "tok-alice")
	require.NoError(t, err)
	assert.Equal(t, "id-alice", p.IdentityID)
	assert.Equal(t, "Alice", p.DisplayName)
	assert.False(t, p.Banned)
}

func TestHTTPIdentityGateReturnsBannedProfile(t *testing.T) {
	// The gate reports the ban; rejecting with ForbiddenError is the room's
	// call, so the profile must come back intact.
	gate := NewHTTPIdentityGate(fakeProvider(t).URL)

	p, err := gate.Authenticate(context.Background(), "tok-banned")
	require.NoError(t, err)
	assert.True(t, p.Banned)
}

func TestHTTPIdentityGateFailures(t *testing.T) {
	gate := NewHTTPIdentityGate(fakeProvider(t).URL)

	for _, credential := range []string{"tok-wrong", "tok-ghost", ""} {
		_, err := gate.Authenticate(context.Background(), credential)
		assert.Equal(t, KindAuthError, KindOf(err), "credential %q", credential)
	}
}

func TestHTTPIdentityGateUnreachableProvider(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	gate := NewHTTPIdentityGate(srv.URL)

	_, err := gate.Authenticate(context.Background(), "tok-alice")
	assert.Equal(t, KindAuthError, KindOf(err))
}
