package details

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaki95/pack-shuffler/internal/domain"
	"github.com/jaki95/pack-shuffler/internal/storage"
)

func testType() *domain.TypeDef {
	return domain.NewTypeDef("alttp", "", []domain.SlotDef{
		{Number: 1, Name: "Title Screen"},
		{Number: 2, Name: "Light World"},
	}, nil)
}

func TestDocumentPath(t *testing.T) {
	assert.Equal(t, "/out/shuffled.yml", DocumentPath("/out/shuffled.msu"))
	assert.Equal(t, "bucket/pack.yml", DocumentPath("bucket/pack.sfc"))
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	provider := NewYAMLProvider(storage.NewLocalFileStorage(nil))
	container := filepath.Join(dir, "pack.msu")

	doc := &PackDetails{
		PackName:   "Shuffled",
		PackAuthor: "Someone",
		Tracks: map[string]TrackDetails{
			"Title Screen": {Song: "Intro", Artist: "Band", Pack: "Source"},
		},
	}
	require.NoError(t, provider.Save(context.Background(), container, doc))
	assert.FileExists(t, filepath.Join(dir, "pack.yml"))

	loaded, err := provider.Load(context.Background(), container)
	require.NoError(t, err)
	assert.Equal(t, doc, loaded)
}

func TestLoadMissingDocument(t *testing.T) {
	provider := NewYAMLProvider(storage.NewLocalFileStorage(nil))
	d, err := provider.Load(context.Background(), filepath.Join(t.TempDir(), "none.msu"))
	assert.NoError(t, err)
	assert.Nil(t, d)
}

func TestLoadInvalidDocument(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yml"), []byte("tracks: [oops"), 0o644))

	provider := NewYAMLProvider(storage.NewLocalFileStorage(nil))
	_, err := provider.Load(context.Background(), filepath.Join(dir, "bad.msu"))
	assert.ErrorIs(t, err, ErrInvalidDocument)
}

func TestSaveCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := NewYAMLProvider(storage.NewLocalFileStorage(nil))
	err := provider.Save(ctx, filepath.Join(t.TempDir(), "pack.msu"), &PackDetails{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestApply(t *testing.T) {
	pack := &domain.Pack{
		Name: "folder-name",
		Tracks: []domain.Track{
			{SlotNumber: 1, Path: "p-1.pcm"},
			{SlotNumber: 2, Path: "p-2.pcm"},
			{SlotNumber: 2, Path: "p-2_alt.pcm", IsAlt: true},
		},
	}
	doc := &PackDetails{
		PackName:   "Real Name",
		PackAuthor: "Author",
		Tracks: map[string]TrackDetails{
			"title_screen": {Song: "Intro", Artist: "Band"},
			"Light World":  {Song: "Overworld", Album: "OST"},
			"Unknown":      {Song: "Ignored"},
		},
	}

	Apply(pack, testType(), doc)

	assert.Equal(t, "Real Name", pack.Name)
	assert.Equal(t, "Author", pack.Creator)
	assert.Equal(t, "Intro", pack.Tracks[0].Song, "names match after normalization")
	assert.Equal(t, "Overworld", pack.Tracks[1].Song)
	assert.Equal(t, "OST", pack.Tracks[1].Album)
	assert.Empty(t, pack.Tracks[2].Song, "alt tracks keep their own metadata")

	Apply(pack, testType(), nil)
	assert.Equal(t, "Real Name", pack.Name)
}

func TestFromPack(t *testing.T) {
	arena := domain.NewArena()
	source := &domain.Pack{ID: "src", Name: "Source Pack"}
	arena.Put(source)

	out := &domain.Pack{
		Name:    "Output",
		Creator: "Shuffler",
		Tracks: []domain.Track{
			{SlotNumber: 1, Song: "Intro", SourcePackID: "src"},
			{SlotNumber: 9, Song: "Bonus", SourcePackID: "missing"},
		},
	}

	d := FromPack(out, testType(), arena)
	assert.Equal(t, "Output", d.PackName)
	assert.Equal(t, TrackDetails{Song: "Intro", Pack: "Source Pack"}, d.Tracks["Title Screen"])
	assert.Equal(t, TrackDetails{Song: "Bonus"}, d.Tracks["track_9"])
}
