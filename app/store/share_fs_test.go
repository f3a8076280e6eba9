package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShareFS_CreateAndLoad(t *testing.T) {
	eng, err := NewShareFS(t.TempDir())
	require.NoError(t, err)

	assert.False(t, eng.Exists("abcdef0123"))
	require.NoError(t, eng.Create("abcdef0123"))
	assert.True(t, eng.Exists("abcdef0123"))

	n, err := eng.PutFile("abcdef0123", "a.txt", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	share := &Share{
		ID:      "abcdef0123",
		Created: time.Now().Unix(),
		Expires: NeverExpires,
		Files:   []FileEntry{{Name: "a.txt", Type: "text/plain", Size: 5, Path: "abcdef0123/a.txt"}},
	}
	require.NoError(t, eng.SaveMeta(share))

	loaded, err := eng.LoadMeta("abcdef0123")
	require.NoError(t, err)
	assert.Equal(t, share, loaded)

	path, err := eng.FilePath("abcdef0123", "a.txt")
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestShareFS_MissingMetadataIsNotFound(t *testing.T) {
	eng, err := NewShareFS(t.TempDir())
	require.NoError(t, err)

	_, err = eng.LoadMeta("nosuch")
	assert.ErrorIs(t, err, ErrNotFound)

	// a directory without metadata is an in-progress creation, also not found
	require.NoError(t, eng.Create("partial123"))
	_, err = eng.LoadMeta("partial123")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestShareFS_Remove(t *testing.T) {
	dir := t.TempDir()
	eng, err := NewShareFS(dir)
	require.NoError(t, err)

	require.NoError(t, eng.Create("abc1234567"))
	_, err = eng.PutFile("abc1234567", "a.txt", strings.NewReader("data"))
	require.NoError(t, err)

	require.NoError(t, eng.Remove("abc1234567"))
	assert.False(t, eng.Exists("abc1234567"))
	assert.NoError(t, eng.Remove("abc1234567"), "remove is idempotent")

	// remove never escapes the shares root
	assert.Error(t, eng.Remove("../shares"))
	assert.Error(t, eng.Remove(""))
	_, err = os.Stat(filepath.Join(dir, "shares"))
	assert.NoError(t, err)
}

func TestShareFS_List(t *testing.T) {
	eng, err := NewShareFS(t.TempDir())
	require.NoError(t, err)

	for i, id := range []string{"aaaaaaaaaa", "bbbbbbbbbb", "cccccccccc"} {
		require.NoError(t, eng.Create(id))
		require.NoError(t, eng.SaveMeta(&Share{ID: id, Created: int64(100 + i), Expires: NeverExpires}))
	}
	require.NoError(t, eng.Create("nometadata")) // skipped, no metadata yet

	shares, err := eng.List()
	require.NoError(t, err)
	require.Len(t, shares, 3)
	assert.Equal(t, "cccccccccc", shares[0].ID, "sorted by creation desc")
	assert.Equal(t, "aaaaaaaaaa", shares[2].ID)
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{name: "plain", input: "a.txt", want: "a.txt", ok: true},
		{name: "spaces trimmed", input: "  b.png ", want: "b.png", ok: true},
		{name: "empty", input: "", ok: false},
		{name: "dot", input: ".", ok: false},
		{name: "dotdot", input: "..", ok: false},
		{name: "traversal", input: "../../etc/passwd", ok: false},
		{name: "slash", input: "dir/file", ok: false},
		{name: "backslash", input: `dir\file`, ok: false},
		{name: "hidden traversal", input: "a..b.txt", ok: false},
		{name: "null byte", input: "a\x00.txt", ok: false},
		{name: "too long", input: strings.Repeat("x", 256), ok: false},
		{name: "reserved metadata name", input: "metadata.json", ok: false},
		{name: "reserved name, case insensitive", input: "Metadata.JSON", ok: false},
		{name: "reserved name, padded", input: " metadata.json ", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeName(tt.input)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShareFS_PutFileRejectsBadNames(t *testing.T) {
	eng, err := NewShareFS(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, eng.Create("abc1234567"))

	_, err = eng.PutFile("abc1234567", "../escape.txt", strings.NewReader("x"))
	assert.Error(t, err)
}

func TestShareFS_UploadCannotClobberMetadata(t *testing.T) {
	eng, err := NewShareFS(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, eng.Create("abc1234567"))

	_, err = eng.PutFile("abc1234567", "metadata.json", strings.NewReader("{}"))
	require.Error(t, err)

	share := &Share{ID: "abc1234567", Created: time.Now().Unix(), Expires: NeverExpires, PasswordHash: "secret-hash"}
	require.NoError(t, eng.SaveMeta(share))

	// the metadata document must never be reachable as a share file
	_, err = eng.FilePath("abc1234567", "metadata.json")
	assert.Error(t, err)
}

func TestShareFS_RejectsBadIDs(t *testing.T) {
	dir := t.TempDir()
	eng, err := NewShareFS(dir)
	require.NoError(t, err)

	for _, id := range []string{"", "..", "../other", "a/b", `a\b`, "a.b"} {
		assert.False(t, eng.Exists(id), "id %q", id)
		assert.ErrorIs(t, eng.Create(id), ErrSaveRejected, "id %q", id)
		_, err = eng.PutFile(id, "a.txt", strings.NewReader("x"))
		assert.Error(t, err, "id %q", id)
		_, err = eng.LoadMeta(id)
		assert.ErrorIs(t, err, ErrNotFound, "id %q", id)
		_, err = eng.FilePath(id, "a.txt")
		assert.Error(t, err, "id %q", id)
	}

	// nothing created outside the shares root
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "shares", entries[0].Name())
}
