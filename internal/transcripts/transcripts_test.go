package transcripts

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAt(t *testing.T, path, content string, mod time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func TestList_NewestFirst(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	writeAt(t, filepath.Join(dir, "older.txt"), "a", base)
	writeAt(t, filepath.Join(dir, "newest.TXT"), "b", base.Add(2*time.Hour))
	writeAt(t, filepath.Join(dir, "middle.txt"), "c", base.Add(time.Hour))
	writeAt(t, filepath.Join(dir, "record_20240301_100000.wav"), "d", base.Add(3*time.Hour))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.txt"), 0755))

	files, err := List(dir)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "newest.TXT", files[0].Name)
	assert.Equal(t, "middle.txt", files[1].Name)
	assert.Equal(t, "older.txt", files[2].Name)
	assert.Equal(t, filepath.Join(dir, "older.txt"), files[2].Path)
	assert.Equal(t, int64(1), files[2].Size)
}

func TestList_MissingDir(t *testing.T) {
	_, err := List(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}

func TestReadIn(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "meeting.txt"), []byte("hello"), 0644))

	text, err := ReadIn(dir, "meeting.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	text, err = ReadIn(dir, filepath.Join(dir, "meeting.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	_, err = ReadIn(dir, "../secret.txt")
	assert.ErrorIs(t, err, ErrOutsideDir)

	_, err = ReadIn(dir, "meeting.wav")
	assert.ErrorIs(t, err, ErrOutsideDir)
}

func TestWatch_ReportsNewTranscripts(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 4)
	require.NoError(t, Watch(ctx, dir, func(path string) { got <- path }))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.wav"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "part1.txt"), []byte("x"), 0644))

	select {
	case path := <-got:
		assert.Equal(t, filepath.Join(dir, "part1.txt"), path)
	case <-time.After(5 * time.Second):
		t.Fatal("no transcript event")
	}
}

func TestWatch_MissingDir(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "absent"), func(string) {})
	assert.Error(t, err)
}

func TestDebouncer_StaleFiringIsDropped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := newDebouncer()
	d.delay = time.Millisecond
	defer d.stop()

	path := "/tmp/out/part1.txt"
	d.touch(ctx, path)
	// let the first timer fire and block handing over its path
	time.Sleep(20 * time.Millisecond)
	d.touch(ctx, path)

	delivered := 0
	for i := 0; i < 2; i++ {
		select {
		case f := <-d.fired:
			if d.settle(f) {
				delivered++
				assert.Equal(t, uint64(2), f.gen)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timer did not fire")
		}
	}
	assert.Equal(t, 1, delivered)
	assert.Empty(t, d.pending)
}
