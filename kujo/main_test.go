package kujo

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/r3labs/sse/v2"
	"github.com/stretchr/testify/require"
	"nyiyui.ca/hato/rendo/conn"
	"nyiyui.ca/hato/rendo/ctl"
	"nyiyui.ca/hato/rendo/journal"
)

const yard = `Yard
[Tracks]
2.0-2.10
2.1-3.2
3.2-3.4
3.4-2.5
[Points]
2.5(<1)-3.4@842
2.1(2>)-3.2@843
[Signals]
2.10:<21:h@501
2.0:<31:h@502
[Routes]
21-31
`

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	path := filepath.Join(t.TempDir(), "yard.txt")
	require.NoError(t, os.WriteFile(path, []byte(yard), 0o644))
	j, err := journal.Open(journal.Memory, 0)
	require.NoError(t, err)
	delay := time.Duration(0)
	c, err := ctl.New(ctl.Conf{Station: []string{path}, Channel: conn.NewVirtual(), Journal: j, LockReleaseDelay: &delay})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	k := NewServer(c, j)
	ts := httptest.NewServer(k)
	t.Cleanup(func() {
		k.Close()
		ts.Close()
		cancel()
		<-done
		j.Close()
	})
	return ts
}

func post(t *testing.T, ts *httptest.Server, input string) []ctl.Feedback {
	t.Helper()
	resp, err := http.Post(ts.URL+"/input", "text/plain", strings.NewReader(input))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var fb []ctl.Feedback
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&fb))
	return fb
}

func get(t *testing.T, ts *httptest.Server, path string, v any) int {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestInput(t *testing.T) {
	ts := newServer(t)
	fb := post(t, ts, "2131=")
	require.Len(t, fb, 1)
	require.Equal(t, "2131=", fb[0].Input)
	require.Empty(t, fb[0].Error)

	fb = post(t, ts, "99+")
	require.Len(t, fb, 1)
	require.Contains(t, fb[0].Error, "unknown point")

	require.Empty(t, post(t, ts, "31"), "incomplete input has no feedback")

	var snap ctl.StateSnapshot
	require.Equal(t, http.StatusOK, get(t, ts, "/state", &snap))
	require.Len(t, snap.Routes, 1)
	require.Equal(t, "21-31", snap.Routes[0].Name)
	require.Equal(t, "go-main", snap.Aspects[21])

	require.Equal(t, http.StatusMethodNotAllowed, get(t, ts, "/input", nil))
}

func TestJournal(t *testing.T) {
	ts := newServer(t)
	post(t, ts, "2131=")
	post(t, ts, "31!")
	var entries []journal.Entry
	require.Equal(t, http.StatusOK, get(t, ts, "/journal", &entries))
	require.Len(t, entries, 2)
	require.Equal(t, "31!", entries[0].Input)
	require.Equal(t, http.StatusOK, get(t, ts, "/journal?limit=1", &entries))
	require.Len(t, entries, 1)
	require.Equal(t, http.StatusBadRequest, get(t, ts, "/journal?limit=many", nil))
}

func TestData(t *testing.T) {
	ts := newServer(t)
	var d ctl.DataChanged
	require.Equal(t, http.StatusOK, get(t, ts, "/data", &d))
	require.Equal(t, "Yard", d.Name)
	require.Equal(t, []string{"21-31"}, d.ValidRoutes)
}

func TestMetrics(t *testing.T) {
	ts := newServer(t)
	post(t, ts, "2131=")
	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "rendo_active_routes 1")
	require.Contains(t, string(body), `rendo_commands_total{kind="route",result="ok"} 1`)
}

func TestFeedbackStream(t *testing.T) {
	ts := newServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := make(chan *sse.Event, 8)
	client := sse.NewClient(ts.URL + "/events")
	require.NoError(t, client.SubscribeChanWithContext(ctx, StreamFeedback, events))

	post(t, ts, "2131=")
	select {
	case e := <-events:
		var fb ctl.Feedback
		require.NoError(t, json.Unmarshal(e.Data, &fb))
		require.Equal(t, "2131=", fb.Input)
		require.Equal(t, "route", fb.Kind)
	case <-time.After(2 * time.Second):
		t.Fatalf("no feedback event")
	}
}
