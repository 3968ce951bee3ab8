package store

import (
	"testing"

	"github.com/hack-pad/hackpadfs/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSnapshots(t *testing.T) *SnapshotStore {
	t.Helper()
	fs, err := mem.NewFS()
	require.NoError(t, err)
	return NewSnapshotStore(fs)
}

func TestSnapshotSaveLoad(t *testing.T) {
	s := newSnapshots(t)

	clean, err := s.Save("src-1", `<p id="intro">hello <b>world</b><script>alert(1)</script></p>`)
	require.NoError(t, err)
	assert.NotContains(t, clean, "script")
	assert.Contains(t, clean, `id="intro"`)

	got, ok, err := s.Load("src-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, clean, got)

	_, err = s.Save("src-1", `<p>replaced</p>`)
	require.NoError(t, err)
	got, _, err = s.Load("src-1")
	require.NoError(t, err)
	assert.Equal(t, `<p>replaced</p>`, got)
}

func TestSnapshotMissingAndDelete(t *testing.T) {
	s := newSnapshots(t)

	_, ok, err := s.Load("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Save("src-1", `<p>x</p>`)
	require.NoError(t, err)
	require.NoError(t, s.Delete("src-1"))
	require.NoError(t, s.Delete("src-1"))

	_, ok, err = s.Load("src-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSnapshotRejectsPathIDs(t *testing.T) {
	s := newSnapshots(t)
	for _, id := range []string{"", "..", "a/b", "../escape"} {
		_, err := s.Save(id, "<p>x</p>")
		assert.Error(t, err, id)
	}
}
