package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/leapstack-labs/aliasgraph/internal/engine"
	"github.com/leapstack-labs/aliasgraph/internal/state"
	"github.com/leapstack-labs/aliasgraph/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, statePath string) (*Server, string) {
	t.Helper()
	root := testutil.SetupSigProject(t)
	sigDir := filepath.Join(root, "sig")

	eng, err := engine.New(engine.Config{
		SigDir:    sigDir,
		StatePath: statePath,
		Record:    statePath != "",
		Logger:    testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	_, err = eng.Discover()
	require.NoError(t, err)

	return New(Config{Engine: eng, Logger: testutil.NewTestLogger(t)}), sigDir
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type checkBody struct {
	RunID       string     `json:"run_id"`
	Aliases     int        `json:"aliases"`
	Cycles      [][]string `json:"cycles"`
	Diagnostics []struct {
		Alias string   `json:"alias"`
		Cycle []string `json:"cycle"`
	} `json:"diagnostics"`
}

func TestCheckEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, state.MemoryPath)
	h := srv.Handler()

	rec := do(t, h, http.MethodGet, "/api/check")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	body := decode[checkBody](t, rec)
	assert.Equal(t, 7, body.Aliases)
	assert.Len(t, body.Diagnostics, 4)
	assert.Len(t, body.Cycles, 3)
	assert.NotEmpty(t, body.RunID)
	assert.Contains(t, body.Cycles, []string{"::Tree::a", "::Tree::b"})
}

func TestDepsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, "")
	h := srv.Handler()

	t.Run("transitive", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/deps?alias=::config")
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode[struct {
			Alias        string   `json:"alias"`
			Direct       bool     `json:"direct"`
			Dependencies []string `json:"dependencies"`
			Circular     bool     `json:"circular"`
		}](t, rec)
		assert.Equal(t, "::config", body.Alias)
		assert.False(t, body.Direct)
		assert.False(t, body.Circular)
		assert.Contains(t, body.Dependencies, "::json")
		assert.Contains(t, body.Dependencies, "::Tree::node")
	})

	t.Run("direct through module alias", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/deps?alias=::T::b&direct=true")
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode[struct {
			Alias        string   `json:"alias"`
			Dependencies []string `json:"dependencies"`
			Circular     bool     `json:"circular"`
		}](t, rec)
		assert.Equal(t, "::Tree::b", body.Alias)
		assert.Equal(t, []string{"::Tree::a"}, body.Dependencies)
		assert.True(t, body.Circular)
	})

	t.Run("unknown alias", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/deps?alias=::nope")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, decode[errorResponse](t, rec).Error, "unknown entity")
	})

	t.Run("missing alias", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/deps")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestOrderEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, "")

	rec := do(t, srv.Handler(), http.MethodGet, "/api/order")
	require.Equal(t, http.StatusConflict, rec.Code)

	body := decode[struct {
		Cycle []string `json:"cycle"`
		Error string   `json:"error"`
	}](t, rec)
	assert.NotEmpty(t, body.Cycle)
	assert.Contains(t, body.Error, "cyclic dependency")
}

func TestSCCEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, "")
	h := srv.Handler()

	type component struct {
		Aliases []string `json:"aliases"`
		Cyclic  bool     `json:"cyclic"`
	}

	all := decode[[]component](t, do(t, h, http.MethodGet, "/api/scc"))
	assert.Len(t, all, 6)

	cyclic := decode[[]component](t, do(t, h, http.MethodGet, "/api/scc?cycles_only=true"))
	require.Len(t, cyclic, 3)
	for _, c := range cyclic {
		assert.True(t, c.Cyclic)
	}
}

func TestFilesEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, "")

	rec := do(t, srv.Handler(), http.MethodGet, "/api/files")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[FilesResponse](t, rec)
	assert.Equal(t, [][]string{{"core.yaml"}, {"tree.yaml"}, {"app.yaml"}}, body.Levels)
	assert.Empty(t, body.Cycles)
	require.Len(t, body.Files, 3)
	assert.Equal(t, FileResponse{Path: "core.yaml", DependsOn: []string{}, UsedBy: []string{"app.yaml", "tree.yaml"}}, body.Files[0])
}

func TestRunsEndpoints(t *testing.T) {
	t.Run("history disabled", func(t *testing.T) {
		srv, _ := newTestServer(t, "")
		h := srv.Handler()
		assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/runs").Code)
		assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/runs/abc").Code)
	})

	t.Run("recorded runs", func(t *testing.T) {
		srv, _ := newTestServer(t, filepath.Join(t.TempDir(), "state.db"))
		h := srv.Handler()

		first := decode[checkBody](t, do(t, h, http.MethodGet, "/api/check"))
		do(t, h, http.MethodGet, "/api/check")

		runs := decode[[]state.Run](t, do(t, h, http.MethodGet, "/api/runs"))
		require.Len(t, runs, 2)

		limited := decode[[]state.Run](t, do(t, h, http.MethodGet, "/api/runs?limit=1"))
		assert.Len(t, limited, 1)
		assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/runs?limit=x").Code)

		rec := do(t, h, http.MethodGet, "/api/runs/"+first.RunID)
		require.Equal(t, http.StatusOK, rec.Code)
		run := decode[struct {
			ID            string                   `json:"id"`
			Status        string                   `json:"status"`
			CircularCount int                      `json:"circular_count"`
			Diagnostics   []state.DiagnosticRecord `json:"diagnostics"`
		}](t, rec)
		assert.Equal(t, first.RunID, run.ID)
		assert.Equal(t, "completed", run.Status)
		assert.Equal(t, 4, run.CircularCount)
		assert.Len(t, run.Diagnostics, 4)

		assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/runs/missing").Code)
	})
}

func TestReloadEndpoint(t *testing.T) {
	srv, sigDir := newTestServer(t, "")
	h := srv.Handler()

	testutil.WriteSigFiles(t, sigDir, map[string]string{
		"extra.yaml": "aliases:\n  - name: loop\n    type: loop\n",
	})

	updates := srv.Notifier().Subscribe()
	defer srv.Notifier().Unsubscribe(updates)

	rec := do(t, h, http.MethodPost, "/api/reload")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[ReloadResponse](t, rec)
	assert.Equal(t, 4, body.Files)
	assert.Equal(t, 8, body.Aliases)

	select {
	case <-updates:
	default:
		t.Fatal("reload did not notify subscribers")
	}

	check := decode[checkBody](t, do(t, h, http.MethodGet, "/api/check"))
	assert.Len(t, check.Diagnostics, 5)
}

func TestReloadEndpoint_KeepsSnapshotOnError(t *testing.T) {
	srv, sigDir := newTestServer(t, "")
	h := srv.Handler()

	testutil.WriteSigFiles(t, sigDir, map[string]string{"broken.yaml": "aliases: [\n"})

	rec := do(t, h, http.MethodPost, "/api/reload")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	check := decode[checkBody](t, do(t, h, http.MethodGet, "/api/check"))
	assert.Equal(t, 7, check.Aliases)
}

func TestEventsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, filepath.Join(t.TempDir(), "state.db"))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	lines := bufio.NewScanner(resp.Body)
	nextSignals := func() string {
		t.Helper()
		for lines.Scan() {
			line := lines.Text()
			if strings.HasPrefix(line, "data: signals ") {
				return line
			}
		}
		t.Fatalf("stream ended: %v", lines.Err())
		return ""
	}

	first := nextSignals()
	assert.Contains(t, first, `"check"`)
	assert.Contains(t, first, `"aliases":7`)

	require.Eventually(t, func() bool { return srv.Notifier().Len() == 1 }, 5*time.Second, 10*time.Millisecond)
	srv.Notifier().Broadcast()
	assert.Contains(t, nextSignals(), `"aliases":7`)

	// Streamed checks stay out of the run history.
	runs, err := srv.engine.History(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestNotifier(t *testing.T) {
	n := NewNotifier()
	a := n.Subscribe()
	b := n.Subscribe()
	assert.Equal(t, 2, n.Len())

	n.Broadcast()
	n.Broadcast()
	assert.Len(t, a, 1)
	assert.Len(t, b, 1)

	n.Unsubscribe(a)
	_, open := <-a
	assert.False(t, open)
	assert.Equal(t, 1, n.Len())

	<-b
	n.Broadcast()
	assert.Len(t, b, 1)
	n.Unsubscribe(b)
}

func TestNew_Defaults(t *testing.T) {
	srv := New(Config{})
	assert.Equal(t, DefaultAddr, srv.addr)
	assert.NotNil(t, srv.logger)
	assert.NotNil(t, srv.Notifier())
}
