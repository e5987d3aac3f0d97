package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestListClientListSymbols(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets/hk-share/securities", r.URL.Path)
		w.Write([]byte(`{"data":{"items":[
			{"code":"00700","name":"TENCENT","sector":"Information Technology"},
			{"code":"00005","name":"HSBC HOLDINGS"}
		]}}`))
	}))
	defer srv.Close()

	c := NewListClient(srv.URL, zap.NewNop())
	listings, err := c.ListSymbols(context.Background(), "hk-share")
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.Equal(t, "00700", listings[0].Code)
	assert.Equal(t, "TENCENT", listings[0].Name)
	assert.Equal(t, "Information Technology", listings[0].Sector)
}

func TestListClientUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewListClient(srv.URL, zap.NewNop())
	_, err := c.ListSymbols(context.Background(), "cn-share")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestDirectoryClientListSymbols(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/directory/hk-share.json", r.URL.Path)
		w.Write([]byte(`[
			{"code":"700","name":"TENCENT"},
			{"code":"2800","name":"TRACKER FUND OF HK"}
		]`))
	}))
	defer srv.Close()

	c := NewDirectoryClient(srv.URL, zap.NewNop())
	listings, err := c.ListSymbols(context.Background(), "hk-share")
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.Equal(t, "700", listings[0].Code)
}
