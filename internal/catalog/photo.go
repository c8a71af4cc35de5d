package catalog

import (
	"image"
	"strings"
	"sync"
	"time"

	domainerrors "github.com/listenupapp/photoshelf/internal/errors"
)

// Photo is an image in the library, identified by its name. The name
// determines where its source image and thumbnail live on disk.
// Photos are created through Graph.AddPhoto and stay bound to that graph.
type Photo struct {
	name      string
	dateAdded time.Time
	graph     *Graph

	mu          sync.RWMutex
	description *string
	blurHash    string
	image       slot
	thumbnail   slot
}

// ValidateName checks that name can serve as a photo identity: non-empty,
// not hidden and usable as a single path element.
func ValidateName(name string) error {
	switch {
	case name == "":
		return domainerrors.Validation("photo name cannot be empty")
	case name == "." || name == "..":
		return domainerrors.Validationf("photo name %q is reserved", name)
	case strings.HasPrefix(name, "."):
		return domainerrors.Validationf("photo name %q cannot start with a dot", name)
	case strings.ContainsAny(name, `/\`+"\x00"):
		return domainerrors.Validationf("photo name %q cannot contain path separators", name)
	}
	return nil
}

// Name returns the photo's identity.
func (p *Photo) Name() string {
	return p.name
}

// DateAdded returns when the photo entered the graph.
func (p *Photo) DateAdded() time.Time {
	return p.dateAdded
}

// Description returns the photo's description and whether one is set.
func (p *Photo) Description() (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.description == nil {
		return "", false
	}
	return *p.description, true
}

// SetDescription sets the photo's description.
func (p *Photo) SetDescription(desc string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.description = &desc
}

// ClearDescription removes the description.
func (p *Photo) ClearDescription() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.description = nil
}

// BlurHash returns the placeholder hash computed from the thumbnail, if any.
func (p *Photo) BlurHash() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.blurHash
}

// SetBlurHash records the placeholder hash for the photo.
func (p *Photo) SetBlurHash(hash string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.blurHash = hash
}

// Image returns the decoded source raster if it has been loaded.
func (p *Photo) Image() (image.Image, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.image.get()
}

// Thumbnail returns the thumbnail raster if it has been loaded or generated.
func (p *Photo) Thumbnail() (image.Image, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.thumbnail.get()
}

// ImageState reports the state of the source raster slot.
func (p *Photo) ImageState() RasterState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.image.state
}

// ThumbnailState reports the state of the thumbnail slot and the last load error.
func (p *Photo) ThumbnailState() (RasterState, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.thumbnail.state, p.thumbnail.err
}

// RecordImage stores the outcome of a source decode.
func (p *Photo) RecordImage(img image.Image, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.image.record(img, err)
}

// RecordThumbnail stores the outcome of a thumbnail load or generation.
func (p *Photo) RecordThumbnail(img image.Image, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.thumbnail.record(img, err)
}

// ReleaseImage drops the held source raster. Thumbnails are kept.
func (p *Photo) ReleaseImage() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.image = slot{}
}

// Tags returns a snapshot of the photo's tags, sorted by name.
func (p *Photo) Tags() []Tag {
	return p.graph.TagsOf(p)
}

// HasTag reports whether the photo carries t.
func (p *Photo) HasTag(t Tag) bool {
	return p.graph.HasTag(p, t)
}

// AddTag attaches t to the photo. Idempotent.
func (p *Photo) AddTag(t Tag) {
	if p.HasTag(t) {
		return
	}
	p.graph.AddTag(p, t)
}

// RemoveTag detaches t from the photo. Removing an absent tag is a no-op.
func (p *Photo) RemoveTag(t Tag) {
	if !p.HasTag(t) {
		return
	}
	p.graph.RemoveTag(p, t)
}

// String implements fmt.Stringer.
func (p *Photo) String() string {
	return p.name
}
