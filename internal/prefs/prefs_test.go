package prefs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	p, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), p)
}

func TestLoadOverlaysDefaultsAndClamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preferences.yaml")
	require.NoError(t, os.WriteFile(path, []byte("wake_word: ' Friday '\nvolume: 1.7\nlanguage: it-IT\n"), 0o600))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "friday", p.WakeWord)
	assert.Equal(t, 1.0, p.Volume)
	assert.Equal(t, "it-IT", p.Language)
	assert.Equal(t, 180, p.SpeechRate, "unset keys keep their defaults")
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preferences.yaml")
	require.NoError(t, os.WriteFile(path, []byte("volume: [not a number"), 0o600))

	p, err := Load(path)
	assert.Error(t, err)
	assert.Equal(t, Defaults(), p)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "preferences.yaml")
	want := Defaults()
	want.SpeechRate = 150
	want.UserName = "Ada"

	require.NoError(t, Save(path, want))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file is cleaned up")
}
