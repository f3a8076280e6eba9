package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkFS_SaveLoadRemove(t *testing.T) {
	eng, err := NewLinkFS(t.TempDir())
	require.NoError(t, err)

	link := &Link{Code: "Ab3dE9", OriginalURL: "https://example.com/page", Created: 100, Expires: NeverExpires}
	require.NoError(t, eng.Save(link))
	assert.True(t, eng.Exists("Ab3dE9"))

	loaded, err := eng.Load("Ab3dE9")
	require.NoError(t, err)
	assert.Equal(t, link, loaded)

	require.NoError(t, eng.Remove("Ab3dE9"))
	assert.False(t, eng.Exists("Ab3dE9"))
	assert.ErrorIs(t, eng.Remove("Ab3dE9"), ErrNotFound)
	_, err = eng.Load("Ab3dE9")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLinkFS_RejectsBadCodes(t *testing.T) {
	eng, err := NewLinkFS(t.TempDir())
	require.NoError(t, err)

	_, err = eng.Load("../../etc/passwd")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, eng.Remove("a/b"), ErrNotFound)
	assert.ErrorIs(t, eng.Save(&Link{Code: "bad code"}), ErrSaveRejected)
}

func TestLinkFS_List(t *testing.T) {
	eng, err := NewLinkFS(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, eng.Save(&Link{Code: "aaaaaa", OriginalURL: "https://a.example.com", Created: 1, Expires: NeverExpires}))
	require.NoError(t, eng.Save(&Link{Code: "bbbbbb", OriginalURL: "https://b.example.com", Created: 2, Expires: NeverExpires}))

	links, err := eng.List()
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, "bbbbbb", links[0].Code, "sorted by creation desc")
}

func TestLinkFS_ConcurrentSavesNeverTearDocument(t *testing.T) {
	dir := t.TempDir()
	eng, err := NewLinkFS(dir)
	require.NoError(t, err)

	link := &Link{Code: "CCccC1", OriginalURL: "https://example.com", Created: 1, Expires: NeverExpires}
	require.NoError(t, eng.Save(link))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int64) {
			defer wg.Done()
			l := *link
			l.Clicks = n
			_ = eng.Save(&l)
		}(int64(i))
	}
	// readers run concurrently with the writers, every read must parse
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			data, err := os.ReadFile(filepath.Join(dir, "links", "CCccC1.json"))
			if err != nil {
				return // reader raced a rename, acceptable
			}
			var l Link
			assert.NoError(t, json.Unmarshal(data, &l))
		}()
	}
	wg.Wait()

	final, err := eng.Load("CCccC1")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", final.OriginalURL)
}
