package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapDisabledReturnsBase(t *testing.T) {
	base := &http.Client{Timeout: time.Second}
	client, err := ClientCredentials{}.Wrap(context.Background(), base)
	require.NoError(t, err)
	assert.Same(t, base, client)
}

func TestWrapRequiresClientID(t *testing.T) {
	_, err := ClientCredentials{TokenURL: "https://auth.example/token"}.Wrap(context.Background(), http.DefaultClient)
	assert.Error(t, err)
}

func TestWrapAttachesBearerToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-1","token_type":"Bearer","expires_in":3600}`))
	})
	auths := make(chan string, 1)
	mux.HandleFunc("/vessels/details/257123456", func(w http.ResponseWriter, r *http.Request) {
		auths <- r.Header.Get("Authorization")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	creds := ClientCredentials{TokenURL: srv.URL + "/token", ClientID: "tracker", ClientSecret: "s3cret"}
	client, err := creds.Wrap(context.Background(), &http.Client{Timeout: 2 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, client.Timeout)

	resp, err := client.Get(srv.URL + "/vessels/details/257123456")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "Bearer tok-1", <-auths)
}
