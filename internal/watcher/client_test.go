package watcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grantflow/grant-portal-backend/pkg/apperrors"
)

func TestValidateAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/validate/address", r.URL.Path)
		assert.Equal(t, "zs1testaddr", r.URL.Query().Get("address"))
		w.Write([]byte(`{"data":{"valid":true}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	valid, err := c.ValidateAddress(context.Background(), "zs1testaddr")
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"node unavailable"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	_, err := c.GetContributionAddress(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, apperrors.IsExternalService(err))
}

func TestHTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	_, err := c.ValidateAddress(context.Background(), "zs1")
	require.Error(t, err)
	assert.True(t, apperrors.IsExternalService(err))
}

func TestBootstrapSendsAuthToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "/bootstrap", r.URL.Path)
		w.Write([]byte(`{"data":{}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", time.Second)
	err := c.Bootstrap(context.Background(), []uuid.UUID{uuid.New()}, "txid-1")
	assert.NoError(t, err)
}
