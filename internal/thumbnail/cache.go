// Package thumbnail derives fixed-size thumbnails from source photos and caches them on disk.
package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/listenupapp/photoshelf/internal/catalog"
	"github.com/listenupapp/photoshelf/internal/media/images"
)

// Default thumbnail geometry.
const (
	DefaultWidth  = 64
	DefaultHeight = 64
)

// Source decodes full-resolution images by identity.
type Source interface {
	Decode(id string) (image.Image, error)
}

// Store holds persisted thumbnail artifacts by identity.
type Store interface {
	Source
	Exists(id string) bool
	Encode(id string, img image.Image, quality int) error
	Delete(id string) error
}

// Options configures thumbnail geometry and encoding.
type Options struct {
	Width   int
	Height  int
	Quality int
}

func (o *Options) setDefaults() {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = images.DefaultQuality
	}
}

// Stats is a snapshot of cache activity since construction.
type Stats struct {
	SourceDecodes   int64 `json:"source_decodes"`
	ArtifactHits    int64 `json:"artifact_hits"`
	Generations     int64 `json:"generations"`
	PersistFailures int64 `json:"persist_failures"`
	DecodeFailures  int64 `json:"decode_failures"`
}

// Cache materializes thumbnails for photos.
//
// A persisted artifact is trusted whenever it exists: its presence alone
// decides between loading and generating. Failures never propagate to the
// caller; they leave the photo's thumbnail slot failed and are logged.
type Cache struct {
	sources Source
	thumbs  Store
	opts    Options
	logger  *slog.Logger
	group   singleflight.Group
	flights atomic.Uint64

	mu          sync.Mutex
	recorded    map[string]uint64
	unpersisted map[string]struct{}

	sourceDecodes   atomic.Int64
	artifactHits    atomic.Int64
	generations     atomic.Int64
	persistFailures atomic.Int64
	decodeFailures  atomic.Int64
}

// New creates a cache reading sources from sources and persisting artifacts to thumbs.
func New(sources Source, thumbs Store, opts Options, logger *slog.Logger) *Cache {
	opts.setDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		sources:     sources,
		thumbs:      thumbs,
		opts:        opts,
		logger:      logger,
		recorded:    make(map[string]uint64),
		unpersisted: make(map[string]struct{}),
	}
}

// Options returns the effective thumbnail options.
func (c *Cache) Options() Options {
	return c.opts
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		SourceDecodes:   c.sourceDecodes.Load(),
		ArtifactHits:    c.artifactHits.Load(),
		Generations:     c.generations.Load(),
		PersistFailures: c.persistFailures.Load(),
		DecodeFailures:  c.decodeFailures.Load(),
	}
}

// kind is the entry point that started a flight.
type kind int

const (
	kindLoad kind = iota
	kindMaterialize
	kindGenerate
)

type result struct {
	img       image.Image
	blurHash  string
	seq       uint64
	kind      kind
	generated bool
}

// Materialize returns the photo's thumbnail, loading the persisted artifact if
// one exists and otherwise generating it from the source image.
// A thumbnail already held by the photo is returned without I/O.
func (c *Cache) Materialize(ctx context.Context, p *catalog.Photo) (image.Image, bool) {
	if img, ok := p.Thumbnail(); ok {
		return img, true
	}
	return c.run(ctx, p, kindMaterialize, func(r result, err error) bool {
		return err == nil || r.kind == kindMaterialize
	})
}

// Load reads only the persisted artifact into the photo's thumbnail slot.
func (c *Cache) Load(ctx context.Context, p *catalog.Photo) (image.Image, bool) {
	return c.run(ctx, p, kindLoad, func(r result, err error) bool {
		return err == nil || r.kind != kindGenerate
	})
}

// Generate derives the thumbnail from the source image and overwrites any
// persisted artifact. It only shares a generation that started after the call,
// so a source change that triggered it is always picked up.
func (c *Cache) Generate(ctx context.Context, p *catalog.Photo) (image.Image, bool) {
	after := c.flights.Load()
	return c.run(ctx, p, kindGenerate, func(r result, _ error) bool {
		return r.generated && r.seq > after
	})
}

// LoadImage decodes the full-resolution source into the photo's image slot.
func (c *Cache) LoadImage(ctx context.Context, p *catalog.Photo) (image.Image, bool) {
	if err := ctx.Err(); err != nil {
		return nil, false
	}

	img, err := c.decodeSource(p.Name())
	p.RecordImage(img, err)
	if err != nil {
		return nil, false
	}
	return img, true
}

// run executes one flight per identity at a time. Every entry point shares the
// identity key, so loads and generations for one photo never overlap. A caller
// that joins a flight whose outcome it cannot use (accept returns false) waits
// for it and starts another.
// A caller whose context ends while waiting gets an absent result and leaves
// the slot untouched.
func (c *Cache) run(ctx context.Context, p *catalog.Photo, k kind, accept func(result, error) bool) (image.Image, bool) {
	name := p.Name()
	for {
		if err := ctx.Err(); err != nil {
			return nil, false
		}

		ch := c.group.DoChan(name, func() (any, error) {
			return c.fly(name, k)
		})

		var res singleflight.Result
		select {
		case <-ctx.Done():
			return nil, false
		case res = <-ch:
		}

		r, _ := res.Val.(result)
		if !accept(r, res.Err) {
			continue
		}
		c.record(p, r, res.Err)
		if res.Err != nil {
			return nil, false
		}
		return r.img, true
	}
}

// fly performs the work for one flight and stamps it with a sequence number.
func (c *Cache) fly(name string, k kind) (result, error) {
	seq := c.flights.Add(1)

	generating := k == kindGenerate || (k == kindMaterialize && !c.thumbs.Exists(name))

	var (
		r   result
		err error
	)
	if generating {
		r, err = c.generate(name)
	} else {
		r, err = c.load(name)
	}
	r.seq, r.kind, r.generated = seq, k, generating
	return r, err
}

// record stores a flight's outcome on p unless a later flight for the same
// identity was already recorded.
func (c *Cache) record(p *catalog.Photo, r result, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if r.seq < c.recorded[p.Name()] {
		return
	}
	c.recorded[p.Name()] = r.seq

	if err != nil {
		p.RecordThumbnail(nil, err)
		return
	}
	p.RecordThumbnail(r.img, nil)
	if r.blurHash != "" {
		p.SetBlurHash(r.blurHash)
	}
}

func (c *Cache) load(name string) (result, error) {
	img, err := c.thumbs.Decode(name)
	if err != nil {
		c.decodeFailures.Add(1)
		c.logger.Warn("failed to load thumbnail",
			"photo", name,
			"error", err,
		)
		return result{}, fmt.Errorf("load thumbnail: %w", err)
	}

	c.artifactHits.Add(1)
	c.logger.Debug("loaded thumbnail", "photo", name)
	return result{img: img, blurHash: c.blurHash(name, img)}, nil
}

func (c *Cache) generate(name string) (result, error) {
	src, err := c.decodeSource(name)
	if err != nil {
		return result{}, fmt.Errorf("generate thumbnail: %w", err)
	}

	thumb := images.Resize(src, c.opts.Width, c.opts.Height)
	c.generations.Add(1)

	if err := c.thumbs.Encode(name, thumb, c.opts.Quality); err != nil {
		c.persistFailures.Add(1)
		c.setPersisted(name, false)
		c.logger.Warn("failed to persist thumbnail",
			"photo", name,
			"error", err,
		)
		// An older artifact no longer matches the source.
		if err := c.thumbs.Delete(name); err != nil {
			c.logger.Warn("failed to delete stale thumbnail",
				"photo", name,
				"error", err,
			)
		}
	} else {
		c.setPersisted(name, true)
		c.logger.Debug("generated thumbnail",
			"photo", name,
			"width", c.opts.Width,
			"height", c.opts.Height,
		)
	}

	return result{img: thumb, blurHash: c.blurHash(name, thumb)}, nil
}

func (c *Cache) setPersisted(name string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ok {
		delete(c.unpersisted, name)
	} else {
		c.unpersisted[name] = struct{}{}
	}
}

// PersistFailed reports whether the latest thumbnail generated for name could
// not be written. Whatever artifact is on disk then does not match the held raster.
func (c *Cache) PersistFailed(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.unpersisted[name]
	return ok
}

func (c *Cache) decodeSource(name string) (image.Image, error) {
	c.sourceDecodes.Add(1)

	img, err := c.sources.Decode(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.logger.Debug("source image missing", "photo", name)
		} else {
			c.decodeFailures.Add(1)
			c.logger.Warn("failed to decode source image",
				"photo", name,
				"error", err,
			)
		}
		return nil, err
	}
	return img, nil
}

func (c *Cache) blurHash(name string, img image.Image) string {
	hash, err := images.ComputeBlurHash(img)
	if err != nil {
		c.logger.Debug("failed to compute blurhash",
			"photo", name,
			"error", err,
		)
		return ""
	}
	return hash
}
