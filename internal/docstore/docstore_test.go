package docstore

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, maxBytes int64) *Store {
	t.Helper()
	s, err := New(t.TempDir(), maxBytes)
	require.NoError(t, err)
	return s
}

func dirEntries(t *testing.T, s *Store) int {
	t.Helper()
	entries, err := os.ReadDir(s.dir)
	require.NoError(t, err)
	return len(entries)
}

func TestSaveAndOpen(t *testing.T) {
	s := newTestStore(t, 0)

	name, err := s.Save("passport.pdf", bytes.NewReader([]byte("pdfbytes")))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(name, ".pdf"), "generated name keeps the extension: %s", name)
	assert.NotEqual(t, "passport.pdf", name)

	f, err := s.Open(name)
	require.NoError(t, err)
	defer f.Close()

	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, []byte("pdfbytes"), data)
}

func TestSaveNamesDoNotCollide(t *testing.T) {
	s := newTestStore(t, 0)

	a, err := s.Save("id.png", bytes.NewReader([]byte("one")))
	require.NoError(t, err)
	b, err := s.Save("id.png", bytes.NewReader([]byte("two")))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, dirEntries(t, s))
}

func TestSaveTooLarge(t *testing.T) {
	s := newTestStore(t, 16)

	_, err := s.Save("big.bin", bytes.NewReader(make([]byte, 17)))
	require.ErrorIs(t, err, ErrTooLarge)
	assert.Equal(t, 0, dirEntries(t, s), "no partial write survives a rejected upload")
}

func TestSaveAtLimit(t *testing.T) {
	s := newTestStore(t, 16)

	name, err := s.Save("fits.bin", bytes.NewReader(make([]byte, 16)))
	require.NoError(t, err)
	assert.NotEmpty(t, name)
}

func TestDelete(t *testing.T) {
	s := newTestStore(t, 0)

	name, err := s.Save("id.jpg", bytes.NewReader([]byte("jpeg")))
	require.NoError(t, err)

	require.NoError(t, s.Delete(name))
	assert.Equal(t, 0, dirEntries(t, s))

	// deleting again is not an error
	require.NoError(t, s.Delete(name))
}

func TestOpenMissing(t *testing.T) {
	s := newTestStore(t, 0)
	_, err := s.Open("1700000000-000000001.pdf")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRejectsTraversalNames(t *testing.T) {
	s := newTestStore(t, 0)
	for _, name := range []string{"", "../secret", "a/b.pdf", ".hidden", ".."} {
		_, err := s.Open(name)
		assert.ErrorIs(t, err, ErrNotFound, "name %q", name)
		assert.Error(t, s.Delete(name), "name %q", name)
	}
}
