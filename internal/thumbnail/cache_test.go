package thumbnail

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/photoshelf/internal/catalog"
	"github.com/listenupapp/photoshelf/internal/media/images"
)

type testEnv struct {
	sources *images.Storage
	thumbs  *images.Storage
	graph   *catalog.Graph
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	root := t.TempDir()
	sources, err := images.NewStorageWithSubdir(root, "photos")
	require.NoError(t, err)
	thumbs, err := images.NewStorageWithSubdir(root, "thumbnails")
	require.NoError(t, err)

	return &testEnv{
		sources: sources,
		thumbs:  thumbs,
		graph:   catalog.NewGraph(),
	}
}

func (e *testEnv) cache(opts Options) *Cache {
	return New(e.sources, e.thumbs, opts, testLogger())
}

func (e *testEnv) addPhoto(t *testing.T, name string) *catalog.Photo {
	t.Helper()
	p, err := e.graph.AddPhoto(name)
	require.NoError(t, err)
	return p
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeSource(t *testing.T, store *images.Storage, name string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	require.NoError(t, store.Encode(name, img, 90))
}

func TestCache_GeneratesAtExactSize(t *testing.T) {
	env := setupTestEnv(t)
	writeSource(t, env.sources, "doggo", 300, 200)
	cache := env.cache(Options{})
	p := env.addPhoto(t, "doggo")

	img, ok := cache.Materialize(context.Background(), p)
	require.True(t, ok)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 64, img.Bounds().Dy())

	_, err := os.Stat(env.thumbs.Path("doggo"))
	require.NoError(t, err, "artifact should be persisted under the photo's identity")

	persisted, err := env.thumbs.Decode("doggo")
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 64), persisted.Bounds())

	held, ok := p.Thumbnail()
	require.True(t, ok)
	assert.Same(t, img, held)
	assert.NotEmpty(t, p.BlurHash())

	stats := cache.Stats()
	assert.Equal(t, int64(1), stats.SourceDecodes)
	assert.Equal(t, int64(1), stats.Generations)
	assert.Equal(t, int64(0), stats.ArtifactHits)
}

func TestCache_CustomSize(t *testing.T) {
	env := setupTestEnv(t)
	writeSource(t, env.sources, "wide", 50, 50)
	cache := env.cache(Options{Width: 120, Height: 80, Quality: 75})

	img, ok := cache.Materialize(context.Background(), env.addPhoto(t, "wide"))
	require.True(t, ok)
	assert.Equal(t, image.Rect(0, 0, 120, 80), img.Bounds())
	assert.Equal(t, Options{Width: 120, Height: 80, Quality: 75}, cache.Options())
}

func TestCache_HeldThumbnailSkipsIO(t *testing.T) {
	env := setupTestEnv(t)
	writeSource(t, env.sources, "doggo", 100, 100)
	cache := env.cache(Options{})
	p := env.addPhoto(t, "doggo")

	first, ok := cache.Materialize(context.Background(), p)
	require.True(t, ok)
	before := cache.Stats()

	require.NoError(t, env.thumbs.Delete("doggo"))

	second, ok := cache.Materialize(context.Background(), p)
	require.True(t, ok)
	assert.Same(t, first, second)
	assert.Equal(t, before, cache.Stats())
}

func TestCache_ReusesArtifact(t *testing.T) {
	tests := []struct {
		name   string
		source func(t *testing.T, env *testEnv)
	}{
		{
			name: "source deleted",
			source: func(t *testing.T, env *testEnv) {
				require.NoError(t, env.sources.Delete("doggo"))
			},
		},
		{
			name: "source corrupted",
			source: func(t *testing.T, env *testEnv) {
				require.NoError(t, env.sources.Save("doggo", []byte("garbage")))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnv(t)
			writeSource(t, env.sources, "doggo", 200, 150)

			// First session persists the artifact.
			_, ok := env.cache(Options{}).Materialize(context.Background(), env.addPhoto(t, "doggo"))
			require.True(t, ok)

			tt.source(t, env)

			// Second session has a fresh graph and cache.
			env.graph = catalog.NewGraph()
			cache := env.cache(Options{})
			p := env.addPhoto(t, "doggo")

			img, ok := cache.Materialize(context.Background(), p)
			require.True(t, ok)
			assert.Equal(t, image.Rect(0, 0, 64, 64), img.Bounds())

			stats := cache.Stats()
			assert.Equal(t, int64(0), stats.SourceDecodes)
			assert.Equal(t, int64(1), stats.ArtifactHits)
			assert.Equal(t, int64(0), stats.Generations)
		})
	}
}

func TestCache_MissingSource(t *testing.T) {
	env := setupTestEnv(t)
	cache := env.cache(Options{})
	p := env.addPhoto(t, "ghost")

	img, ok := cache.Materialize(context.Background(), p)
	assert.False(t, ok)
	assert.Nil(t, img)
	assert.False(t, env.thumbs.Exists("ghost"))

	state, err := p.ThumbnailState()
	assert.Equal(t, catalog.Failed, state)
	assert.Error(t, err)
	assert.Equal(t, int64(0), cache.Stats().DecodeFailures)

	t.Run("retried once the source appears", func(t *testing.T) {
		writeSource(t, env.sources, "ghost", 80, 80)

		_, ok := cache.Materialize(context.Background(), p)
		assert.True(t, ok)
		assert.True(t, env.thumbs.Exists("ghost"))
	})
}

func TestCache_CorruptSourceWithoutArtifact(t *testing.T) {
	env := setupTestEnv(t)
	require.NoError(t, env.sources.Save("broken", []byte("not a jpeg")))
	cache := env.cache(Options{})

	_, ok := cache.Materialize(context.Background(), env.addPhoto(t, "broken"))
	assert.False(t, ok)
	assert.False(t, env.thumbs.Exists("broken"))
	assert.Equal(t, int64(1), cache.Stats().DecodeFailures)
}

func TestCache_CorruptArtifactIsTrusted(t *testing.T) {
	env := setupTestEnv(t)
	writeSource(t, env.sources, "doggo", 100, 100)
	require.NoError(t, env.thumbs.Save("doggo", []byte("not a jpeg")))
	cache := env.cache(Options{})
	p := env.addPhoto(t, "doggo")

	_, ok := cache.Materialize(context.Background(), p)
	assert.False(t, ok)
	assert.Equal(t, int64(0), cache.Stats().SourceDecodes)

	t.Run("generate repairs it", func(t *testing.T) {
		img, ok := cache.Generate(context.Background(), p)
		require.True(t, ok)
		assert.Equal(t, image.Rect(0, 0, 64, 64), img.Bounds())

		_, err := env.thumbs.Decode("doggo")
		assert.NoError(t, err)
	})
}

type failingStore struct {
	*images.Storage
}

func (failingStore) Encode(string, image.Image, int) error {
	return errors.New("disk full")
}

func TestCache_PersistFailureKeepsRaster(t *testing.T) {
	env := setupTestEnv(t)
	writeSource(t, env.sources, "doggo", 100, 100)
	cache := New(env.sources, failingStore{env.thumbs}, Options{}, testLogger())
	p := env.addPhoto(t, "doggo")

	img, ok := cache.Materialize(context.Background(), p)
	require.True(t, ok)
	assert.Equal(t, image.Rect(0, 0, 64, 64), img.Bounds())
	assert.False(t, env.thumbs.Exists("doggo"))

	state, _ := p.ThumbnailState()
	assert.Equal(t, catalog.Loaded, state)
	assert.Equal(t, int64(1), cache.Stats().PersistFailures)

	t.Run("next session regenerates", func(t *testing.T) {
		env.graph = catalog.NewGraph()
		next := env.cache(Options{})

		_, ok := next.Materialize(context.Background(), env.addPhoto(t, "doggo"))
		require.True(t, ok)
		assert.Equal(t, int64(1), next.Stats().Generations)
		assert.True(t, env.thumbs.Exists("doggo"))
	})
}

func TestCache_Load(t *testing.T) {
	env := setupTestEnv(t)
	writeSource(t, env.sources, "doggo", 100, 100)
	cache := env.cache(Options{})

	_, ok := cache.Load(context.Background(), env.addPhoto(t, "doggo"))
	assert.False(t, ok, "load never falls back to the source")
	assert.Equal(t, int64(0), cache.Stats().SourceDecodes)
	assert.False(t, env.thumbs.Exists("doggo"))
}

func TestCache_GenerateOverwrites(t *testing.T) {
	env := setupTestEnv(t)
	writeSource(t, env.sources, "doggo", 100, 100)
	cache := env.cache(Options{})
	p := env.addPhoto(t, "doggo")

	_, ok := cache.Materialize(context.Background(), p)
	require.True(t, ok)
	before, err := env.thumbs.Hash("doggo")
	require.NoError(t, err)

	writeSource(t, env.sources, "doggo", 40, 90)

	_, ok = cache.Generate(context.Background(), p)
	require.True(t, ok)
	after, err := env.thumbs.Hash("doggo")
	require.NoError(t, err)

	assert.NotEqual(t, before, after)
	assert.Equal(t, int64(2), cache.Stats().Generations)
}

func TestCache_LoadImage(t *testing.T) {
	env := setupTestEnv(t)
	writeSource(t, env.sources, "doggo", 120, 90)
	cache := env.cache(Options{})

	p := env.addPhoto(t, "doggo")
	img, ok := cache.LoadImage(context.Background(), p)
	require.True(t, ok)
	assert.Equal(t, image.Rect(0, 0, 120, 90), img.Bounds())
	assert.Equal(t, catalog.Loaded, p.ImageState())

	missing := env.addPhoto(t, "missing")
	_, ok = cache.LoadImage(context.Background(), missing)
	assert.False(t, ok)
	assert.Equal(t, catalog.Failed, missing.ImageState())
}

func TestCache_CanceledContext(t *testing.T) {
	env := setupTestEnv(t)
	writeSource(t, env.sources, "doggo", 100, 100)
	cache := env.cache(Options{})
	p := env.addPhoto(t, "doggo")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := cache.Materialize(ctx, p)
	assert.False(t, ok)

	state, _ := p.ThumbnailState()
	assert.Equal(t, catalog.Unloaded, state)
	assert.False(t, env.thumbs.Exists("doggo"))
}

func TestCache_ConcurrentMaterializeGeneratesOnce(t *testing.T) {
	env := setupTestEnv(t)
	writeSource(t, env.sources, "doggo", 400, 400)
	cache := env.cache(Options{})
	p := env.addPhoto(t, "doggo")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := cache.Materialize(context.Background(), p)
			assert.True(t, ok)
		}()
	}
	wg.Wait()

	stats := cache.Stats()
	assert.Equal(t, int64(1), stats.Generations)
	assert.Equal(t, int64(1), stats.SourceDecodes)
}

// slowSource holds every decode open for a while and records how many
// decodes overlapped.
type slowSource struct {
	Source
	delay   time.Duration
	decoded chan struct{}

	mu       sync.Mutex
	inFlight int
	peak     int
}

func newSlowSource(src Source) *slowSource {
	return &slowSource{Source: src, delay: 100 * time.Millisecond, decoded: make(chan struct{}, 8)}
}

func (s *slowSource) Decode(id string) (image.Image, error) {
	s.mu.Lock()
	s.inFlight++
	s.peak = max(s.peak, s.inFlight)
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	img, err := s.Source.Decode(id)
	s.decoded <- struct{}{}
	time.Sleep(s.delay)
	return img, err
}

func (s *slowSource) Peak() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peak
}

func (s *slowSource) waitDecoded(t *testing.T) {
	t.Helper()
	select {
	case <-s.decoded:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for decode")
	}
}

func fillSource(t *testing.T, store *images.Storage, name string, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			img.Set(x, y, c)
		}
	}
	require.NoError(t, store.Encode(name, img, 90))
}

func TestCache_MaterializeJoinsRunningGenerate(t *testing.T) {
	env := setupTestEnv(t)
	writeSource(t, env.sources, "doggo", 200, 200)
	src := newSlowSource(env.sources)
	cache := New(src, env.thumbs, Options{}, testLogger())
	p := env.addPhoto(t, "doggo")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, ok := cache.Generate(context.Background(), p)
		assert.True(t, ok)
	}()
	src.waitDecoded(t)

	_, ok := cache.Materialize(context.Background(), p)
	assert.True(t, ok)
	wg.Wait()

	assert.Equal(t, 1, src.Peak())
	assert.Equal(t, int64(1), cache.Stats().Generations)
	assert.Equal(t, int64(1), cache.Stats().SourceDecodes)
}

func TestCache_GenerateWaitsForRunningMaterialize(t *testing.T) {
	env := setupTestEnv(t)
	red := color.RGBA{R: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}
	fillSource(t, env.sources, "doggo", red)
	src := newSlowSource(env.sources)
	cache := New(src, env.thumbs, Options{}, testLogger())
	p := env.addPhoto(t, "doggo")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, ok := cache.Materialize(context.Background(), p)
		assert.True(t, ok)
	}()
	src.waitDecoded(t)

	// The running generation already read the old source.
	fillSource(t, env.sources, "doggo", blue)
	img, ok := cache.Generate(context.Background(), p)
	require.True(t, ok)
	wg.Wait()

	assert.Equal(t, 1, src.Peak())
	assert.Equal(t, int64(2), cache.Stats().Generations)

	r, _, b, _ := img.At(32, 32).RGBA()
	assert.Greater(t, b>>8, uint32(200))
	assert.Less(t, r>>8, uint32(50))

	held, ok := p.Thumbnail()
	require.True(t, ok)
	r, _, b, _ = held.At(32, 32).RGBA()
	assert.Greater(t, b>>8, uint32(200))
	assert.Less(t, r>>8, uint32(50))

	stored, err := env.thumbs.Decode("doggo")
	require.NoError(t, err)
	r, _, b, _ = stored.At(32, 32).RGBA()
	assert.Greater(t, b>>8, uint32(200))
	assert.Less(t, r>>8, uint32(50))
}

func TestCache_EntryPointsNeverOverlap(t *testing.T) {
	env := setupTestEnv(t)
	writeSource(t, env.sources, "doggo", 200, 200)
	src := newSlowSource(env.sources)
	src.delay = 20 * time.Millisecond
	src.decoded = make(chan struct{}, 64)
	cache := New(src, env.thumbs, Options{}, testLogger())
	p := env.addPhoto(t, "doggo")

	calls := []func(context.Context, *catalog.Photo) (image.Image, bool){
		cache.Materialize, cache.Generate, cache.Load,
	}

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func(call func(context.Context, *catalog.Photo) (image.Image, bool)) {
			defer wg.Done()
			call(context.Background(), p)
		}(calls[i%len(calls)])
	}
	wg.Wait()

	assert.Equal(t, 1, src.Peak())
	state, _ := p.ThumbnailState()
	assert.Equal(t, catalog.Loaded, state)
	assert.True(t, env.thumbs.Exists("doggo"))
}

// flakyStore fails writes while broken is set.
type flakyStore struct {
	*images.Storage
	broken atomic.Bool
}

func (s *flakyStore) Encode(id string, img image.Image, quality int) error {
	if s.broken.Load() {
		return errors.New("disk full")
	}
	return s.Storage.Encode(id, img, quality)
}

func TestCache_PersistFailureDropsStaleArtifact(t *testing.T) {
	env := setupTestEnv(t)
	writeSource(t, env.sources, "doggo", 100, 100)
	store := &flakyStore{Storage: env.thumbs}
	cache := New(env.sources, store, Options{}, testLogger())
	p := env.addPhoto(t, "doggo")

	_, ok := cache.Materialize(context.Background(), p)
	require.True(t, ok)
	require.True(t, env.thumbs.Exists("doggo"))

	store.broken.Store(true)
	_, ok = cache.Generate(context.Background(), p)
	require.True(t, ok)

	assert.True(t, cache.PersistFailed("doggo"))
	assert.False(t, env.thumbs.Exists("doggo"))

	t.Run("cleared by a successful write", func(t *testing.T) {
		store.broken.Store(false)
		_, ok := cache.Generate(context.Background(), p)
		require.True(t, ok)

		assert.False(t, cache.PersistFailed("doggo"))
		assert.True(t, env.thumbs.Exists("doggo"))
	})
}

func TestOptions_Defaults(t *testing.T) {
	opts := Options{Quality: 500}
	opts.setDefaults()

	assert.Equal(t, DefaultWidth, opts.Width)
	assert.Equal(t, DefaultHeight, opts.Height)
	assert.Equal(t, images.DefaultQuality, opts.Quality)
}
