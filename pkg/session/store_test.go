package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/hpcode/pkg/slurm"
)

func TestStoreWriteLoad(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	rec := Record{
		JobName:   "vscode_server",
		Partition: "int",
		Node:      "node042",
		URL:       "http://10.7.0.5:44017",
		Submitted: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Write("12345", rec))

	got, ok, err := store.Load("12345")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec.JobName, got.JobName)
	assert.Equal(t, rec.URL, got.URL)
	assert.Equal(t, rec.Node, got.Node)
	assert.True(t, rec.Submitted.Equal(got.Submitted))
}

func TestStoreLoadMissing(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, ok, err := store.Load("99999")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreFileFormat(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Write("12345", Record{JobName: "vscode_server"}))

	data, err := os.ReadFile(filepath.Join(dir, "12345.yml"))
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, "# hpcode"), "record files carry a version header")
	assert.Contains(t, text, "\"12345\":")

	// No temp files left behind by the atomic write.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".session_"), "leftover temp file %s", e.Name())
	}
}

func TestStoreJobIDsAndRemove(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Write("1", Record{JobName: "a"}))
	require.NoError(t, store.Write("2", Record{JobName: "b"}))

	ids, err := store.JobIDs()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1", "2"}, ids)

	require.NoError(t, store.Remove("1"))
	ids, err = store.JobIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, ids)

	// Removing an absent record is not an error.
	assert.NoError(t, store.Remove("1"))
}

func TestViewState(t *testing.T) {
	running := slurm.Job{State: slurm.StateRunning}
	pending := slurm.Job{State: slurm.StatePending}

	assert.Equal(t, StateStarting, viewState(running, ""))
	assert.Equal(t, StateRunning, viewState(running, "http://10.0.0.1:44001"))
	assert.Equal(t, StatePending, viewState(pending, ""))
}
