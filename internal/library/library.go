// Package library ties the photo graph, the image stores and the thumbnail cache into one session.
package library

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/listenupapp/photoshelf/internal/catalog"
	domainerrors "github.com/listenupapp/photoshelf/internal/errors"
	"github.com/listenupapp/photoshelf/internal/id"
	"github.com/listenupapp/photoshelf/internal/media/images"
	"github.com/listenupapp/photoshelf/internal/sse"
	"github.com/listenupapp/photoshelf/internal/thumbnail"
	"github.com/listenupapp/photoshelf/internal/util"
	"github.com/listenupapp/photoshelf/internal/watcher"
)

// maxNameAttempts bounds suffix generation when an import name is taken.
const maxNameAttempts = 5

// defaultImportQuality is the JPEG quality for re-encoded imports.
const defaultImportQuality = 95

// Options configures a Library.
type Options struct {
	// Workers bounds concurrent thumbnail materialization during discovery.
	Workers int
	// ImportQuality is the JPEG quality used when storing imported images.
	ImportQuality int
}

func (o *Options) setDefaults() {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.ImportQuality <= 0 || o.ImportQuality > 100 {
		o.ImportQuality = defaultImportQuality
	}
}

// Report summarizes a discovery pass.
type Report struct {
	Discovered int `json:"discovered"`
	Removed    int `json:"removed"`
	Thumbnails int `json:"thumbnails"`
	Missing    int `json:"missing"`
}

// Library is the application session: one graph, one thumbnail cache and the
// source and thumbnail stores. Relations live only in memory and are rebuilt
// from the source store by Discover.
type Library struct {
	graph   *catalog.Graph
	cache   *thumbnail.Cache
	sources *images.Storage
	thumbs  *images.Storage
	logger  *slog.Logger
	opts    Options
	events  sse.Emitter

	// importMu serializes name allocation so two imports never pick the same identity.
	importMu sync.Mutex
}

// New creates a library session.
func New(graph *catalog.Graph, cache *thumbnail.Cache, sources, thumbs *images.Storage, logger *slog.Logger, opts Options) *Library {
	opts.setDefaults()
	return &Library{
		graph:   graph,
		cache:   cache,
		sources: sources,
		thumbs:  thumbs,
		logger:  logger,
		opts:    opts,
		events:  sse.NoopEmitter{},
	}
}

// SetEmitter routes change notifications to e. Nil restores the no-op emitter.
// Call it before the library is shared between goroutines.
func (l *Library) SetEmitter(e sse.Emitter) {
	if e == nil {
		e = sse.NoopEmitter{}
	}
	l.events = e
}

// Graph returns the session's association graph.
func (l *Library) Graph() *catalog.Graph {
	return l.graph
}

// Cache returns the session's thumbnail cache.
func (l *Library) Cache() *thumbnail.Cache {
	return l.cache
}

// Sources returns the source image store.
func (l *Library) Sources() *images.Storage {
	return l.sources
}

// Thumbnails returns the thumbnail artifact store.
func (l *Library) Thumbnails() *images.Storage {
	return l.thumbs
}

// Discover synchronizes the graph with the source store and materializes
// every photo's thumbnail. Photos whose source disappeared are dropped.
// Per-photo thumbnail failures are counted, not returned.
func (l *Library) Discover(ctx context.Context) (Report, error) {
	var report Report

	l.events.Emit(sse.NewScanStartedEvent())
	defer func() {
		l.events.Emit(sse.NewScanCompleteEvent(report.Discovered, report.Removed, report.Thumbnails, report.Missing))
	}()

	ids, err := l.sources.List()
	if err != nil {
		return report, fmt.Errorf("list sources: %w", err)
	}

	present := make(map[string]struct{}, len(ids))
	for _, name := range ids {
		present[name] = struct{}{}
		if _, created, err := l.register(name); err != nil {
			l.logger.Warn("skipping source image", "photo", name, "error", err)
		} else if created {
			report.Discovered++
		}
	}

	for _, p := range l.graph.Photos() {
		if _, ok := present[p.Name()]; ok {
			continue
		}
		if l.graph.RemovePhoto(p.Name()) {
			report.Removed++
			l.events.Emit(sse.NewPhotoRemovedEvent(p.Name()))
		}
	}
	l.pruneThumbnails(present)

	var thumbnails, missing atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.opts.Workers)

	for _, p := range l.graph.Photos() {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if _, ok := l.cache.Materialize(gctx, p); ok {
				thumbnails.Add(1)
			} else {
				missing.Add(1)
			}
			return nil
		})
	}

	err = g.Wait()
	report.Thumbnails = int(thumbnails.Load())
	report.Missing = int(missing.Load())
	if err != nil {
		return report, fmt.Errorf("discover: %w", err)
	}

	l.logger.Info("discovery complete",
		"photos", l.graph.Len(),
		"discovered", report.Discovered,
		"removed", report.Removed,
		"thumbnails", report.Thumbnails,
		"missing", report.Missing,
	)
	return report, nil
}

// pruneThumbnails deletes artifacts whose source is gone. Artifacts are
// trusted on presence alone, so an orphan would be served to the next photo
// that takes the same identity.
func (l *Library) pruneThumbnails(present map[string]struct{}) {
	ids, err := l.thumbs.List()
	if err != nil {
		l.logger.Warn("failed to list thumbnails", "error", err)
		return
	}
	for _, name := range ids {
		if _, ok := present[name]; ok {
			continue
		}
		if err := l.thumbs.Delete(name); err != nil {
			l.logger.Warn("failed to delete thumbnail", "photo", name, "error", err)
			continue
		}
		l.logger.Debug("pruned orphaned thumbnail", "photo", name)
	}
}

// Import decodes the image at path (any registered format), stores it as the
// photo's source JPEG and registers it. The identity is derived from the file
// name; a taken identity gets a random suffix.
func (l *Library) Import(ctx context.Context, path string) (*catalog.Photo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, format, err := images.DecodeFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domainerrors.NotFoundf("file %q not found", path).WithCause(err)
		}
		return nil, domainerrors.Unsupportedf("cannot decode %q", path).WithCause(err)
	}

	l.logger.Debug("decoded import", "path", path, "format", format)
	return l.store(ctx, path, img)
}

// ImportReader is Import for an uploaded stream; hint names the photo.
func (l *Library) ImportReader(ctx context.Context, hint string, r io.Reader) (*catalog.Photo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, _, err := images.DecodeReader(r)
	if err != nil {
		return nil, domainerrors.Unsupportedf("cannot decode upload").WithCause(err)
	}
	return l.store(ctx, hint, img)
}

func (l *Library) store(ctx context.Context, hint string, img image.Image) (*catalog.Photo, error) {
	base := util.PhotoName(hint)
	if base == "" {
		base = "photo"
	}

	l.importMu.Lock()
	name, err := l.allocateName(base)
	if err != nil {
		l.importMu.Unlock()
		return nil, err
	}
	if err := l.sources.Encode(name, img, l.opts.ImportQuality); err != nil {
		l.importMu.Unlock()
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to store image")
	}
	p, _, err := l.register(name)
	l.importMu.Unlock()
	if err != nil {
		return nil, err
	}

	l.cache.Materialize(ctx, p)

	l.logger.Info("imported photo",
		"photo", name,
		"width", img.Bounds().Dx(),
		"height", img.Bounds().Dy(),
	)
	return p, nil
}

// allocateName returns base, or base with a random suffix if base is taken.
// Callers hold importMu.
func (l *Library) allocateName(base string) (string, error) {
	if err := catalog.ValidateName(base); err != nil {
		return "", err
	}
	if !l.taken(base) {
		return base, nil
	}
	for range maxNameAttempts {
		name, err := id.Derive(base)
		if err != nil {
			return "", domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to generate name")
		}
		if !l.taken(name) {
			return name, nil
		}
	}
	return "", domainerrors.AlreadyExistsf("no free name for %q", base)
}

func (l *Library) taken(name string) bool {
	if _, ok := l.graph.Photo(name); ok {
		return true
	}
	return l.sources.Exists(name)
}

// register adds name to the graph, returning the existing photo if it is already there.
func (l *Library) register(name string) (*catalog.Photo, bool, error) {
	p, err := l.graph.AddPhoto(name)
	if err == nil {
		l.events.Emit(sse.NewPhotoAddedEvent(name))
		return p, true, nil
	}
	if errors.Is(err, domainerrors.ErrAlreadyExists) {
		if existing, ok := l.graph.Photo(name); ok {
			return existing, false, nil
		}
	}
	return nil, false, err
}

// Remove deletes the photo's source and thumbnail files and drops it from the graph.
func (l *Library) Remove(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := l.graph.Photo(name); !ok {
		return domainerrors.NotFoundf("photo %q not found", name)
	}

	if err := l.sources.Delete(name); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to delete source image")
	}
	if err := l.thumbs.Delete(name); err != nil {
		l.logger.Warn("failed to delete thumbnail", "photo", name, "error", err)
	}
	l.graph.RemovePhoto(name)
	l.events.Emit(sse.NewPhotoRemovedEvent(name))

	l.logger.Info("removed photo", "photo", name)
	return nil
}

// HandleEvent applies a settled change in the source directory to the session.
func (l *Library) HandleEvent(ctx context.Context, event watcher.Event) {
	name := event.Name()
	if err := catalog.ValidateName(name); err != nil {
		l.logger.Debug("ignoring event", "path", event.Path, "error", err)
		return
	}

	switch event.Type {
	case watcher.EventAdded:
		p, created, err := l.register(name)
		if err != nil {
			l.logger.Warn("failed to register photo", "photo", name, "error", err)
			return
		}
		l.cache.Materialize(ctx, p)
		if created {
			l.logger.Info("photo added", "photo", name)
		}

	case watcher.EventModified:
		p, _, err := l.register(name)
		if err != nil {
			l.logger.Warn("failed to register photo", "photo", name, "error", err)
			return
		}
		p.ReleaseImage()
		l.cache.Generate(ctx, p)
		state, _ := p.ThumbnailState()
		l.events.Emit(sse.NewThumbnailUpdatedEvent(name, state.String()))
		l.logger.Info("photo changed", "photo", name)

	case watcher.EventRemoved:
		if !l.graph.RemovePhoto(name) {
			return
		}
		if err := l.thumbs.Delete(name); err != nil {
			l.logger.Warn("failed to delete thumbnail", "photo", name, "error", err)
		}
		l.events.Emit(sse.NewPhotoRemovedEvent(name))
		l.logger.Info("photo removed", "photo", name)
	}
}

// Follow applies watcher events until ctx is done.
func (l *Library) Follow(ctx context.Context, w *watcher.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-w.Events():
			l.HandleEvent(ctx, event)
		case err := <-w.Errors():
			l.logger.Error("watcher error", "error", err)
		}
	}
}
