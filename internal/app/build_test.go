package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ent0n29/aide/internal/config"
	"github.com/ent0n29/aide/internal/intent"
	"github.com/ent0n29/aide/internal/session"
	"github.com/ent0n29/aide/internal/store"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		DataDir:              dir,
		StoreDriver:          store.DriverMemory,
		PreferencesPath:      filepath.Join(dir, "preferences.yaml"),
		Input:                config.InputConsole,
		MaxSilence:           3,
		HistoryWindow:        50,
		AssistantName:        "Aide",
		ReminderPollInterval: 0,
		MetricsNamespace:     "test_app",
		DefaultLocation:      "London",
		ScreenshotDir:        filepath.Join(dir, "shots"),
	}
}

func TestBuildConsoleSessionEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	var out bytes.Buffer
	built, err := Build(context.Background(), cfg, Options{
		Stdin:  strings.NewReader("add task buy milk\nbye\n"),
		Stdout: &out,
	})
	require.NoError(t, err)
	assert.Nil(t, built.API)

	require.NoError(t, built.Loop.Run(context.Background()))
	assert.Equal(t, session.StateShutdown, built.Loop.State())

	pending, err := built.Tasks.Pending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "buy milk", pending[0].Description)

	printed := out.String()
	assert.Contains(t, printed, "Task added: buy milk")
	assert.Contains(t, printed, intent.FarewellText)

	require.NoError(t, built.Cleanup())
	_, err = os.Stat(cfg.PreferencesPath)
	assert.NoError(t, err, "preferences are saved on cleanup")
}

func TestBuildBridgeExposesOperatorAPI(t *testing.T) {
	cfg := testConfig(t)
	cfg.Input = config.InputWS
	cfg.HTTPAddr = "127.0.0.1:0"

	built, err := Build(context.Background(), cfg, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = built.Cleanup() })
	require.NotNil(t, built.API)

	ts := httptest.NewServer(built.API.Router())
	defer ts.Close()

	res, err := http.Get(ts.URL + "/readyz")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	reply := built.Dispatcher.Dispatch(context.Background(), "calculate 6 times 7")
	assert.Equal(t, intent.IntentCalculate, reply.Intent)
}

func TestReminderStaysPendingWithoutListeners(t *testing.T) {
	cfg := testConfig(t)
	cfg.Input = config.InputWS
	cfg.HTTPAddr = "127.0.0.1:0"

	built, err := Build(context.Background(), cfg, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = built.Cleanup() })

	ctx := context.Background()
	now := time.Now().UTC()
	_, err = built.Store.InsertReminder(ctx, store.Reminder{Text: "stretch", FireAt: now.Add(-time.Minute), CreatedAt: now})
	require.NoError(t, err)

	// No websocket client is connected, so delivery fails and is retried later.
	for range 3 {
		assert.Equal(t, 0, built.Poller.Poll(ctx))
	}
	pending, err := built.Reminders.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.False(t, pending[0].Triggered)

	turns, err := built.Store.RecentTurns(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, turns)
	assert.Empty(t, built.Log.Recent())
}
