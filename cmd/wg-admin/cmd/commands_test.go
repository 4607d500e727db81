package cmd

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// portGateway is an open gateway with a fixed lease state.
type portGateway struct {
	mu       sync.Mutex
	requests []string
	bodies   []map[string]any
	clients  string
}

func newPortGateway(t *testing.T) (*portGateway, *httptest.Server) {
	t.Helper()
	g := &portGateway{clients: `[]`}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		var body map[string]any
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}
		g.mu.Lock()
		g.requests = append(g.requests, r.Method+" "+r.URL.Path)
		g.bodies = append(g.bodies, body)
		clients := g.clients
		g.mu.Unlock()

		switch {
		case r.URL.Path == "/api/session":
			_, _ = w.Write([]byte(`{"requiresPassword":false,"authenticated":true}`))
		case r.URL.Path == "/api/tunnel/prot" && r.Method == http.MethodGet:
			_, _ = w.Write([]byte(`{"port":51830,"ports":"51820-51920","range":{"lower":51820,"upper":51920},"history_ports":[51820,51821]}`))
		case r.URL.Path == "/api/tunnel/prot" && r.Method == http.MethodPut:
			if p, ok := body["prot"]; ok {
				_ = json.NewEncoder(w).Encode(map[string]any{"prot": p})
				return
			}
			_, _ = w.Write([]byte(`{"prot":0}`))
		case r.URL.Path == "/api/tunnel/prot" && r.Method == http.MethodDelete:
			_, _ = w.Write([]byte(`{"prot":0}`))
		case r.URL.Path == "/api/tunnel/client" && r.Method == http.MethodGet:
			_, _ = w.Write([]byte(clients))
		case r.URL.Path == "/api/tunnel/client/abc/enable":
			w.WriteHeader(http.StatusNoContent)
		case r.URL.Path == "/api/tunnel/client/zzz/enable":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"Client Not Found: zzz"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return g, srv
}

func (g *portGateway) tunnelRequests() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []string
	for _, r := range g.requests {
		if r != "GET /api/session" {
			out = append(out, r)
		}
	}
	return out
}

func (g *portGateway) lastBody() map[string]any {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.bodies[len(g.bodies)-1]
}

// captureStdout runs fn with os.Stdout redirected and returns what it printed.
func captureStdout(t *testing.T, fn func() error) (string, error) {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)

	old := os.Stdout
	os.Stdout = w
	runErr := fn()
	os.Stdout = old
	require.NoError(t, w.Close())

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(data), runErr
}

// run executes the root command. Every global flag is passed explicitly
// since cobra keeps flag values between executions.
func run(t *testing.T, url, format string, args ...string) (string, error) {
	t.Helper()
	full := append([]string{"--url", url, "--password", "", "--output", format}, args...)
	return captureStdout(t, func() error {
		rootCmd.SetArgs(full)
		return rootCmd.Execute()
	})
}

func TestPortAssign_RejectsInvalidArgument(t *testing.T) {
	for _, arg := range []string{"abc", "0", "51820x"} {
		t.Run(arg, func(t *testing.T) {
			g, srv := newPortGateway(t)

			_, err := run(t, srv.URL, "table", "port", "assign", arg)
			require.Error(t, err)
			assert.Equal(t, "invalid port: "+arg, err.Error())
			assert.Empty(t, g.tunnelRequests())
		})
	}
}

func TestPortAssign_TooManyArguments(t *testing.T) {
	g, srv := newPortGateway(t)

	_, err := run(t, srv.URL, "table", "port", "assign", "51830", "51831")
	assert.Error(t, err)
	assert.Empty(t, g.tunnelRequests())
}

func TestPortAssign_Explicit(t *testing.T) {
	g, srv := newPortGateway(t)

	out, err := run(t, srv.URL, "table", "port", "assign", "51830")
	require.NoError(t, err)
	assert.Equal(t, "Leased port 51830\n", out)
	assert.Equal(t, []string{"PUT /api/tunnel/prot"}, g.tunnelRequests())
	assert.Equal(t, map[string]any{"prot": float64(51830)}, g.lastBody())
}

func TestPortAssign_Exhausted(t *testing.T) {
	g, srv := newPortGateway(t)

	out, err := run(t, srv.URL, "table", "port", "assign")
	require.NoError(t, err)
	assert.Equal(t, "Every port in range has been used.\n", out)
	assert.Equal(t, map[string]any{}, g.lastBody())
}

func TestPortRelease(t *testing.T) {
	g, srv := newPortGateway(t)

	out, err := run(t, srv.URL, "table", "port", "release")
	require.NoError(t, err)
	assert.Equal(t, "Port released.\n", out)
	assert.Equal(t, []string{"DELETE /api/tunnel/prot"}, g.tunnelRequests())
}

func TestPortStatus(t *testing.T) {
	_, srv := newPortGateway(t)

	t.Run("table", func(t *testing.T) {
		out, err := run(t, srv.URL, "table", "port", "status")
		require.NoError(t, err)
		assert.Contains(t, out, "PORT")
		assert.Contains(t, out, "51830")
		assert.Contains(t, out, "51820-51920")
		assert.Contains(t, out, "51820,51821")
	})

	t.Run("json", func(t *testing.T) {
		out, err := run(t, srv.URL, "json", "port", "status")
		require.NoError(t, err)
		var st PortStatus
		require.NoError(t, json.Unmarshal([]byte(out), &st))
		assert.Equal(t, 51830, st.Port)
		assert.Equal(t, []int{51820, 51821}, st.History)
	})
}

func TestPrintPortResult(t *testing.T) {
	old := output
	output = "table"
	t.Cleanup(func() { output = old })

	out, err := captureStdout(t, func() error {
		return printPortResult([]byte(`{"prot":0}`), "Port %d\n", "Port released.")
	})
	require.NoError(t, err)
	assert.Equal(t, "Port released.\n", out)

	out, err = captureStdout(t, func() error {
		return printPortResult([]byte(`{"prot":51822}`), "Leased port %d\n", "none")
	})
	require.NoError(t, err)
	assert.Equal(t, "Leased port 51822\n", out)

	_, err = captureStdout(t, func() error {
		return printPortResult([]byte(`not json`), "%d", "none")
	})
	assert.Error(t, err)
}

func TestClientList(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		_, srv := newPortGateway(t)
		out, err := run(t, srv.URL, "table", "client", "list")
		require.NoError(t, err)
		assert.Equal(t, "No clients found.\n", out)
	})

	t.Run("table", func(t *testing.T) {
		g, srv := newPortGateway(t)
		g.mu.Lock()
		g.clients = `[{"id":"abc","name":"laptop","enabled":false,"address":"10.8.0.2"}]`
		g.mu.Unlock()

		out, err := run(t, srv.URL, "table", "client", "list")
		require.NoError(t, err)
		assert.Contains(t, out, "laptop")
		assert.Contains(t, out, "10.8.0.2")
		assert.Contains(t, out, "no")
	})
}

func TestClientEnable(t *testing.T) {
	g, srv := newPortGateway(t)

	out, err := run(t, srv.URL, "table", "client", "enable", "abc")
	require.NoError(t, err)
	assert.Equal(t, "Enabled client abc\n", out)
	assert.Equal(t, []string{"POST /api/tunnel/client/abc/enable"}, g.tunnelRequests())

	_, err = run(t, srv.URL, "table", "client", "enable", "zzz")
	require.Error(t, err)
	assert.Equal(t, "API error (404): Client Not Found: zzz", err.Error())
}
