package storage

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaki95/pack-shuffler/config"
)

func TestParseSlotFile(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		ok       bool
		expected SlotFile
	}{
		{"primary", "pack-1.pcm", true, SlotFile{Slot: 1, Ext: "pcm"}},
		{"upper ext", "pack-12.PCM", true, SlotFile{Slot: 12, Ext: "pcm"}},
		{"alt", "pack-3_remix.ogg", true, SlotFile{Slot: 3, Ext: "ogg", Label: "remix"}},
		{"path", "dir/sub/pack-4.mp3", true, SlotFile{Slot: 4, Ext: "mp3"}},
		{"other base", "other-1.pcm", false, SlotFile{}},
		{"not a number", "pack-intro.pcm", false, SlotFile{}},
		{"no extension", "pack-1", false, SlotFile{}},
		{"zero slot", "pack-0.pcm", false, SlotFile{}},
		{"empty label", "pack-1_.pcm", false, SlotFile{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseSlotFile("pack", tt.file)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, got)
			}
		})
	}

	assert.Equal(t, "pack-7.pcm", SlotFileName("pack", 7, ".pcm"))
}

func TestLocalListSlotFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"pack-1.pcm", "pack-2.pcm", "pack-2_alt.pcm", "pack.msu", "other-1.pcm"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "pack-3.pcm"), 0o755))

	s := NewLocalFileStorage(nil)
	files, err := s.ListSlotFiles(dir, "pack")
	require.NoError(t, err)
	require.Len(t, files, 3)

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	assert.Equal(t, 1, files[0].Slot)
	assert.True(t, files[2].IsAlt())

	missing, err := s.ListSlotFiles(filepath.Join(dir, "missing"), "pack")
	assert.NoError(t, err)
	assert.Empty(t, missing)
}

func TestLocalLinkOrCopy(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.pcm")
	dst := filepath.Join(dir, "out", "dst.pcm")
	require.NoError(t, os.WriteFile(src, []byte("audio"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0o755))
	require.NoError(t, os.WriteFile(dst, []byte("stale"), 0o644))

	s := NewLocalFileStorage(nil)
	require.NoError(t, s.LinkOrCopy(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "audio", string(data))

	// Linking a file onto itself leaves it in place.
	require.NoError(t, s.LinkOrCopy(dst, dst))
	assert.True(t, s.FileExists(dst))

	err = s.LinkOrCopy(filepath.Join(dir, "missing.pcm"), dst)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.LinkOrCopy("", dst), ErrInvalidSource)
}

func TestLocalLinkOrCopyFailureKeepsDestination(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.pcm")
	dst := filepath.Join(dir, "out", "pack-1.pcm")
	require.NoError(t, os.Mkdir(src, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0o755))
	require.NoError(t, os.WriteFile(dst, []byte("previous"), 0o644))

	s := NewLocalFileStorage(nil)
	require.Error(t, s.LinkOrCopy(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))
	assert.NoFileExists(t, stagingPath(dst))

	files, err := s.ListSlotFiles(filepath.Dir(dst), "pack")
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestLocalFileOperations(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalFileStorage(nil)

	path := filepath.Join(dir, "nested", "file.txt")
	require.NoError(t, s.WriteFile(path, []byte("hello")))

	data, err := s.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	r, err := s.GetReader(path)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	require.NoError(t, s.Remove(path))
	require.NoError(t, s.Remove(path), "removing a missing file is not an error")
	assert.False(t, s.FileExists(path))

	_, err = s.ReadFile(path)
	assert.ErrorIs(t, err, ErrNotFound)

	sub := filepath.Join(dir, "a", "b")
	require.NoError(t, s.CreateDir(sub))
	assert.True(t, s.FileExists(sub))
}

func TestNewStorage(t *testing.T) {
	s, err := New(context.Background(), config.StorageConfig{Type: TypeLocal}, nil)
	require.NoError(t, err)
	assert.IsType(t, &LocalFileStorage{}, s)

	_, err = New(context.Background(), config.StorageConfig{Type: "ftp"}, nil)
	assert.ErrorIs(t, err, ErrUnsupported)
}
