package library

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/photoshelf/internal/catalog"
	domainerrors "github.com/listenupapp/photoshelf/internal/errors"
	"github.com/listenupapp/photoshelf/internal/media/images"
	"github.com/listenupapp/photoshelf/internal/sse"
	"github.com/listenupapp/photoshelf/internal/thumbnail"
	"github.com/listenupapp/photoshelf/internal/watcher"
)

func setupTestLibrary(t *testing.T) *Library {
	t.Helper()

	root := t.TempDir()
	sources, err := images.NewStorageWithSubdir(root, "photos")
	require.NoError(t, err)
	thumbs, err := images.NewStorageWithSubdir(root, "thumbnails")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cache := thumbnail.New(sources, thumbs, thumbnail.Options{}, logger)

	return New(catalog.NewGraph(), cache, sources, thumbs, logger, Options{Workers: 2})
}

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 3), G: uint8(y * 3), B: 90, A: 255})
		}
	}
	return img
}

func writeSource(t *testing.T, lib *Library, name string) {
	t.Helper()
	require.NoError(t, lib.Sources().Encode(name, testImage(80, 60), 90))
}

func writePNG(t *testing.T, dir, file string) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage(50, 40)))
	path := filepath.Join(dir, file)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestLibrary_Discover(t *testing.T) {
	lib := setupTestLibrary(t)
	writeSource(t, lib, "doggo")
	writeSource(t, lib, "kitty")
	require.NoError(t, lib.Sources().Save("broken", []byte("not a jpeg")))

	report, err := lib.Discover(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Report{Discovered: 3, Thumbnails: 2, Missing: 1}, report)
	assert.Equal(t, 3, lib.Graph().Len())
	assert.True(t, lib.Thumbnails().Exists("doggo"))
	assert.True(t, lib.Thumbnails().Exists("kitty"))
	assert.False(t, lib.Thumbnails().Exists("broken"))

	t.Run("second pass reuses artifacts", func(t *testing.T) {
		before := lib.Cache().Stats()

		report, err := lib.Discover(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 0, report.Discovered)
		assert.Equal(t, before.Generations, lib.Cache().Stats().Generations)
	})

	t.Run("drops photos whose source vanished", func(t *testing.T) {
		p, ok := lib.Graph().Photo("kitty")
		require.True(t, ok)
		p.AddTag(catalog.NewTag("Cat"))
		require.NoError(t, lib.Sources().Delete("kitty"))

		report, err := lib.Discover(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 1, report.Removed)
		_, ok = lib.Graph().Photo("kitty")
		assert.False(t, ok)
		assert.Empty(t, lib.Graph().PhotosOf(catalog.NewTag("Cat")))
	})
}

func TestLibrary_DiscoverRebuildsFromStore(t *testing.T) {
	lib := setupTestLibrary(t)
	writeSource(t, lib, "doggo")

	_, err := lib.Discover(context.Background())
	require.NoError(t, err)

	// A new session over the same stores loads the persisted thumbnail.
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cache := thumbnail.New(lib.Sources(), lib.Thumbnails(), thumbnail.Options{}, logger)
	next := New(catalog.NewGraph(), cache, lib.Sources(), lib.Thumbnails(), logger, Options{})

	report, err := next.Discover(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Thumbnails)
	assert.Equal(t, int64(0), cache.Stats().SourceDecodes)
	assert.Equal(t, int64(1), cache.Stats().ArtifactHits)
}

func solidImage(c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 80, 60))
	for y := 0; y < 60; y++ {
		for x := 0; x < 80; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestLibrary_DiscoverDeletesThumbnailOfVanishedSource(t *testing.T) {
	lib := setupTestLibrary(t)
	red := color.RGBA{R: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}

	require.NoError(t, lib.Sources().Encode("doggo", solidImage(red), 90))
	_, err := lib.Discover(context.Background())
	require.NoError(t, err)
	require.True(t, lib.Thumbnails().Exists("doggo"))

	require.NoError(t, lib.Sources().Delete("doggo"))
	report, err := lib.Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Removed)
	assert.False(t, lib.Thumbnails().Exists("doggo"))

	// A new photo under the same identity gets its own thumbnail.
	require.NoError(t, lib.Sources().Encode("doggo", solidImage(blue), 90))
	_, err = lib.Discover(context.Background())
	require.NoError(t, err)

	thumb, err := lib.Thumbnails().Decode("doggo")
	require.NoError(t, err)
	r, _, b, _ := thumb.At(32, 32).RGBA()
	assert.Greater(t, b>>8, uint32(200))
	assert.Less(t, r>>8, uint32(50))
}

func TestLibrary_DiscoverPrunesOrphanedThumbnails(t *testing.T) {
	lib := setupTestLibrary(t)
	writeSource(t, lib, "doggo")
	require.NoError(t, lib.Thumbnails().Encode("ghost", testImage(64, 64), 90))

	_, err := lib.Discover(context.Background())
	require.NoError(t, err)

	assert.False(t, lib.Thumbnails().Exists("ghost"))
	assert.True(t, lib.Thumbnails().Exists("doggo"))
}

func TestLibrary_DiscoverCanceled(t *testing.T) {
	lib := setupTestLibrary(t)
	writeSource(t, lib, "doggo")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := lib.Discover(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLibrary_Import(t *testing.T) {
	lib := setupTestLibrary(t)
	dir := t.TempDir()

	t.Run("png is stored as jpeg", func(t *testing.T) {
		p, err := lib.Import(context.Background(), writePNG(t, dir, "doggo.png"))
		require.NoError(t, err)

		assert.Equal(t, "doggo", p.Name())
		assert.True(t, lib.Sources().Exists("doggo"))
		assert.True(t, lib.Thumbnails().Exists("doggo"))

		img, err := lib.Sources().Decode("doggo")
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 50, 40), img.Bounds())

		_, ok := p.Thumbnail()
		assert.True(t, ok)
	})

	t.Run("collision gets a suffix", func(t *testing.T) {
		other := t.TempDir()
		p, err := lib.Import(context.Background(), writePNG(t, other, "doggo.png"))
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(p.Name(), "doggo-"))
		assert.Len(t, p.Name(), len("doggo-")+8)
		assert.Equal(t, 2, lib.Graph().Len())
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := lib.Import(context.Background(), filepath.Join(dir, "nope.png"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, domainerrors.ErrNotFound))
	})

	t.Run("not an image", func(t *testing.T) {
		path := filepath.Join(dir, "notes.txt")
		require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

		_, err := lib.Import(context.Background(), path)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domainerrors.ErrUnsupported))
	})
}

func TestLibrary_ImportReader(t *testing.T) {
	lib := setupTestLibrary(t)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage(20, 20)))

	p, err := lib.ImportReader(context.Background(), "../../Good Boi.png", &buf)
	require.NoError(t, err)
	assert.Equal(t, "Good Boi", p.Name())

	t.Run("empty hint falls back", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, png.Encode(&buf, testImage(20, 20)))

		p, err := lib.ImportReader(context.Background(), "", &buf)
		require.NoError(t, err)
		assert.Equal(t, "photo", p.Name())
	})

	t.Run("garbage upload", func(t *testing.T) {
		_, err := lib.ImportReader(context.Background(), "x", strings.NewReader("nope"))
		assert.True(t, errors.Is(err, domainerrors.ErrUnsupported))
	})
}

func TestLibrary_Remove(t *testing.T) {
	lib := setupTestLibrary(t)
	writeSource(t, lib, "doggo")
	_, err := lib.Discover(context.Background())
	require.NoError(t, err)

	p, _ := lib.Graph().Photo("doggo")
	p.AddTag(catalog.NewTag("Dog"))

	require.NoError(t, lib.Remove(context.Background(), "doggo"))

	assert.False(t, lib.Sources().Exists("doggo"))
	assert.False(t, lib.Thumbnails().Exists("doggo"))
	assert.Equal(t, 0, lib.Graph().Len())
	assert.Empty(t, lib.Graph().Tags())

	err = lib.Remove(context.Background(), "doggo")
	assert.True(t, errors.Is(err, domainerrors.ErrNotFound))
}

func TestLibrary_HandleEvent(t *testing.T) {
	lib := setupTestLibrary(t)
	ctx := context.Background()

	t.Run("added", func(t *testing.T) {
		writeSource(t, lib, "doggo")

		lib.HandleEvent(ctx, watcher.Event{Type: watcher.EventAdded, Path: lib.Sources().Path("doggo")})

		p, ok := lib.Graph().Photo("doggo")
		require.True(t, ok)
		_, ok = p.Thumbnail()
		assert.True(t, ok)
		assert.True(t, lib.Thumbnails().Exists("doggo"))
	})

	t.Run("added twice keeps the photo", func(t *testing.T) {
		p, _ := lib.Graph().Photo("doggo")
		p.AddTag(catalog.NewTag("Dog"))

		lib.HandleEvent(ctx, watcher.Event{Type: watcher.EventAdded, Path: lib.Sources().Path("doggo")})

		again, _ := lib.Graph().Photo("doggo")
		assert.Same(t, p, again)
		assert.True(t, again.HasTag(catalog.NewTag("Dog")))
	})

	t.Run("modified regenerates", func(t *testing.T) {
		before := lib.Cache().Stats().Generations
		writeSource(t, lib, "doggo")

		lib.HandleEvent(ctx, watcher.Event{Type: watcher.EventModified, Path: lib.Sources().Path("doggo")})

		assert.Equal(t, before+1, lib.Cache().Stats().Generations)
	})

	t.Run("removed", func(t *testing.T) {
		require.NoError(t, lib.Sources().Delete("doggo"))

		lib.HandleEvent(ctx, watcher.Event{Type: watcher.EventRemoved, Path: lib.Sources().Path("doggo")})

		_, ok := lib.Graph().Photo("doggo")
		assert.False(t, ok)
		assert.False(t, lib.Thumbnails().Exists("doggo"))
		assert.Empty(t, lib.Graph().Tags())
	})

	t.Run("invalid name ignored", func(t *testing.T) {
		lib.HandleEvent(ctx, watcher.Event{Type: watcher.EventAdded, Path: "/photos/.hidden.jpg"})
		assert.Equal(t, 0, lib.Graph().Len())
	})
}

func TestLibrary_DoggoScenario(t *testing.T) {
	lib := setupTestLibrary(t)
	writeSource(t, lib, "doggo")

	_, err := lib.Discover(context.Background())
	require.NoError(t, err)

	doggo, ok := lib.Graph().Photo("doggo")
	require.True(t, ok)
	thumb, ok := doggo.Thumbnail()
	require.True(t, ok)
	assert.Equal(t, image.Rect(0, 0, 64, 64), thumb.Bounds())

	lib.Graph().Tag("Dog").AddPhoto(doggo)
	doggo.AddTag(catalog.NewTag("Good Boi"))

	assert.Len(t, doggo.Tags(), 2)
	assert.Equal(t, []*catalog.Photo{doggo}, lib.Graph().Tag("Good Boi").Photos())

	doggo.RemoveTag(catalog.NewTag("Dog"))

	assert.Equal(t, []catalog.Tag{catalog.NewTag("Good Boi")}, doggo.Tags())
	assert.Empty(t, lib.Graph().Tag("Dog").Photos())
	assert.Equal(t, int64(1), lib.Cache().Stats().Generations, "tag changes never touch the cache")
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []sse.Event
}

func (r *recordingEmitter) Emit(event sse.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingEmitter) types() []sse.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]sse.EventType, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}

func TestLibrary_EmitsChanges(t *testing.T) {
	lib := setupTestLibrary(t)
	rec := &recordingEmitter{}
	lib.SetEmitter(rec)
	ctx := context.Background()

	writeSource(t, lib, "doggo")
	_, err := lib.Discover(ctx)
	require.NoError(t, err)

	assert.Equal(t, []sse.EventType{
		sse.EventScanStarted,
		sse.EventPhotoAdded,
		sse.EventScanComplete,
	}, rec.types())
	assert.Equal(t, sse.PhotoEventData{Name: "doggo"}, rec.events[1].Data)
	assert.Equal(t, 1, rec.events[2].Data.(sse.ScanCompleteEventData).Discovered)

	t.Run("rediscovery adds nothing", func(t *testing.T) {
		rec.events = nil
		_, err := lib.Discover(ctx)
		require.NoError(t, err)
		assert.Equal(t, []sse.EventType{sse.EventScanStarted, sse.EventScanComplete}, rec.types())
	})

	t.Run("modified source", func(t *testing.T) {
		rec.events = nil
		lib.HandleEvent(ctx, watcher.Event{Type: watcher.EventModified, Path: lib.Sources().Path("doggo")})
		require.Equal(t, []sse.EventType{sse.EventThumbnailUpdated}, rec.types())
		assert.Equal(t, sse.ThumbnailEventData{Name: "doggo", State: "loaded"}, rec.events[0].Data)
	})

	t.Run("remove", func(t *testing.T) {
		rec.events = nil
		require.NoError(t, lib.Remove(ctx, "doggo"))
		assert.Equal(t, []sse.EventType{sse.EventPhotoRemoved}, rec.types())
	})

	t.Run("nil restores the no-op emitter", func(t *testing.T) {
		lib.SetEmitter(nil)
		rec.events = nil
		writeSource(t, lib, "kitty")
		_, err := lib.Discover(ctx)
		require.NoError(t, err)
		assert.Empty(t, rec.types())
	})
}
