package wireguard

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   map[string]string
}

func newTestService(t *testing.T, handler http.HandlerFunc) (*HTTPService, *[]recordedRequest) {
	t.Helper()
	var reqs []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{Method: r.Method, Path: r.URL.EscapedPath()}
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			_ = json.Unmarshal(data, &rec.Body)
		}
		reqs = append(reqs, rec)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewHTTPService(srv.URL+"/", time.Second, zap.NewNop()), &reqs
}

func TestHTTPService_SaveConfig(t *testing.T) {
	svc, reqs := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, svc.SaveConfig(context.Background()))
	require.Len(t, *reqs, 1)
	assert.Equal(t, http.MethodPost, (*reqs)[0].Method)
	assert.Equal(t, "/api/wireguard/save", (*reqs)[0].Path)
}

func TestHTTPService_GetClients(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"a","name":"laptop","enabled":true,"address":"10.8.0.2"}]`))
	})

	clients, err := svc.GetClients(context.Background())
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, "a", clients[0].ID)
	assert.Equal(t, "laptop", clients[0].Name)
	assert.True(t, clients[0].Enabled)
}

func TestHTTPService_ClientMutations(t *testing.T) {
	svc, reqs := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/api/wireguard/client" {
			_, _ = w.Write([]byte(`{"id":"new","name":"phone"}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	ctx := context.Background()

	client, err := svc.CreateClient(ctx, "phone")
	require.NoError(t, err)
	assert.Equal(t, "new", client.ID)

	require.NoError(t, svc.EnableClient(ctx, "new"))
	require.NoError(t, svc.DisableClient(ctx, "new"))
	require.NoError(t, svc.UpdateClientName(ctx, "new", "tablet"))
	require.NoError(t, svc.UpdateClientAddress(ctx, "new", "10.8.0.9"))
	require.NoError(t, svc.DeleteClient(ctx, "new"))

	want := []recordedRequest{
		{Method: http.MethodPost, Path: "/api/wireguard/client", Body: map[string]string{"name": "phone"}},
		{Method: http.MethodPost, Path: "/api/wireguard/client/new/enable"},
		{Method: http.MethodPost, Path: "/api/wireguard/client/new/disable"},
		{Method: http.MethodPut, Path: "/api/wireguard/client/new/name", Body: map[string]string{"name": "tablet"}},
		{Method: http.MethodPut, Path: "/api/wireguard/client/new/address", Body: map[string]string{"address": "10.8.0.9"}},
		{Method: http.MethodDelete, Path: "/api/wireguard/client/new"},
	}
	assert.Equal(t, want, *reqs)
}

func TestHTTPService_ClientArtifacts(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/wireguard/client/a/configuration":
			_, _ = w.Write([]byte("[Interface]\n"))
		case "/api/wireguard/client/a/qrcode.svg":
			_, _ = w.Write([]byte("<svg/>"))
		case "/api/wireguard/client/a":
			_, _ = w.Write([]byte(`{"id":"a","name":"laptop"}`))
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	})
	ctx := context.Background()

	conf, err := svc.GetClientConfiguration(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "[Interface]\n", conf)

	svg, err := svc.GetClientQRCodeSVG(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "<svg/>", svg)

	client, err := svc.GetClient(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "laptop", client.Name)
}

func TestHTTPService_NotFound(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := svc.GetClient(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrClientNotFound)
}

func TestHTTPService_UpstreamError(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"wg-quick failed"}`))
	})

	err := svc.SaveConfig(context.Background())
	require.Error(t, err)

	var upstream *UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, http.StatusInternalServerError, upstream.Status)
	assert.Equal(t, "wg-quick failed", upstream.Message)
}

func TestHTTPService_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	svc := NewHTTPService(url, time.Second, zap.NewNop())
	err := svc.SaveConfig(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNopReloader(t *testing.T) {
	assert.NoError(t, NopReloader{}.SaveConfig(context.Background()))
}
