package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocal(t *testing.T) *LocalProvider {
	t.Helper()
	p, err := NewLocalProvider(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)
	return p
}

func TestLocalProvider_PutOpenRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := newLocal(t)
	payload := "hello portal"

	loc, err := p.Put(ctx, "abc.txt", strings.NewReader(payload), int64(len(payload)), "text/plain")
	require.NoError(t, err)
	assert.True(t, p.Contains(loc))

	obj, err := p.Open(ctx, loc)
	require.NoError(t, err)
	defer obj.Body.Close()

	data, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	assert.Equal(t, payload, string(data))
	assert.Equal(t, int64(len(payload)), obj.ContentLength)
}

func TestLocalProvider_PutNeverOverwrites(t *testing.T) {
	ctx := context.Background()
	p := newLocal(t)

	_, err := p.Put(ctx, "same.txt", strings.NewReader("first"), 5, "")
	require.NoError(t, err)
	_, err = p.Put(ctx, "same.txt", strings.NewReader("second"), 6, "")
	assert.ErrorIs(t, err, ErrObjectExists)

	data, err := os.ReadFile(filepath.Join(p.Root(), "same.txt"))
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}

func TestLocalProvider_PutRejectsPathNames(t *testing.T) {
	p := newLocal(t)
	for _, name := range []string{"", ".", "..", "../x.txt", "sub/x.txt"} {
		_, err := p.Put(context.Background(), name, strings.NewReader("x"), 1, "")
		assert.Error(t, err, name)
	}
}

func TestLocalProvider_Containment(t *testing.T) {
	ctx := context.Background()
	p := newLocal(t)
	outside := filepath.Join(filepath.Dir(p.Root()), "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o644))

	tests := []string{
		outside,
		filepath.Join(p.Root(), "..", "secret.txt"),
		p.Root(),
		filepath.Dir(p.Root()),
		"/etc/passwd",
		"",
	}
	for _, loc := range tests {
		t.Run(loc, func(t *testing.T) {
			assert.False(t, p.Contains(loc))
			_, err := p.Open(ctx, loc)
			assert.ErrorIs(t, err, ErrOutsideRoot)
			assert.ErrorIs(t, p.Delete(ctx, loc), ErrOutsideRoot)
		})
	}

	// a sibling directory that shares the root as a string prefix is still outside
	sibling := p.Root() + "-evil"
	require.NoError(t, os.MkdirAll(sibling, 0o755))
	assert.False(t, p.Contains(filepath.Join(sibling, "x.txt")))
}

func TestLocalProvider_MissingObject(t *testing.T) {
	ctx := context.Background()
	p := newLocal(t)

	loc, err := p.Put(ctx, "gone.txt", strings.NewReader("x"), 1, "")
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(p.Root(), "gone.txt")))

	_, err = p.Open(ctx, loc)
	assert.ErrorIs(t, err, ErrObjectNotFound)

	// deleting a missing object is fine
	assert.NoError(t, p.Delete(ctx, loc))
}
