// Package catalog holds the in-memory many-to-many association between photos and tags.
package catalog

import (
	"slices"
	"strings"
	"sync"
	"time"

	domainerrors "github.com/listenupapp/photoshelf/internal/errors"
)

// Graph owns the library's photos and their tag memberships.
//
// Memberships are kept in two indexes, photo -> tags and tag -> photos, and
// every mutation of either goes through link so the two always mirror each
// other. A tag exists exactly as long as at least one photo carries it.
type Graph struct {
	mu        sync.RWMutex
	photos    map[string]*Photo
	photoTags map[string]map[Tag]struct{}
	tagPhotos map[Tag]map[string]struct{}
	now       func() time.Time
}

// Option configures a Graph.
type Option func(*Graph)

// WithClock overrides the clock used to stamp DateAdded.
func WithClock(now func() time.Time) Option {
	return func(g *Graph) {
		g.now = now
	}
}

// NewGraph creates an empty graph.
func NewGraph(opts ...Option) *Graph {
	g := &Graph{
		photos:    make(map[string]*Photo),
		photoTags: make(map[string]map[Tag]struct{}),
		tagPhotos: make(map[Tag]map[string]struct{}),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AddPhoto registers a new photo under name.
func (g *Graph) AddPhoto(name string) (*Photo, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.photos[name]; exists {
		return nil, domainerrors.AlreadyExistsf("photo %q already exists", name)
	}

	p := &Photo{
		name:      name,
		dateAdded: g.now(),
		graph:     g,
	}
	g.photos[name] = p
	return p, nil
}

// Photo returns the photo registered under name.
func (g *Graph) Photo(name string) (*Photo, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.photos[name]
	return p, ok
}

// Photos returns a snapshot of all photos, sorted by name.
func (g *Graph) Photos() []*Photo {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]*Photo, 0, len(g.photos))
	for _, p := range g.photos {
		out = append(out, p)
	}
	slices.SortFunc(out, comparePhotos)
	return out
}

// Len returns the number of photos in the graph.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.photos)
}

// RemovePhoto drops the photo and all of its memberships. Tags left without
// photos disappear. Later relation calls on the removed photo are no-ops.
func (g *Graph) RemovePhoto(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.photos[name]
	if !ok {
		return false
	}
	for t := range g.photoTags[name] {
		g.link(p, t, false)
	}
	delete(g.photos, name)
	return true
}

// AddTag attaches t to p and reports whether the graph changed.
// Unknown or removed photos and zero tags are ignored.
func (g *Graph) AddTag(p *Photo, t Tag) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.link(p, t, true)
}

// RemoveTag detaches t from p and reports whether the graph changed.
func (g *Graph) RemoveTag(p *Photo, t Tag) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.link(p, t, false)
}

// link is the single mutation path for memberships. Callers hold g.mu.
func (g *Graph) link(p *Photo, t Tag, attach bool) bool {
	if p == nil || t.IsZero() || g.photos[p.name] != p {
		return false
	}

	tags := g.photoTags[p.name]
	_, present := tags[t]
	if present == attach {
		return false
	}

	if attach {
		if tags == nil {
			tags = make(map[Tag]struct{})
			g.photoTags[p.name] = tags
		}
		tags[t] = struct{}{}

		members := g.tagPhotos[t]
		if members == nil {
			members = make(map[string]struct{})
			g.tagPhotos[t] = members
		}
		members[p.name] = struct{}{}
		return true
	}

	delete(tags, t)
	if len(tags) == 0 {
		delete(g.photoTags, p.name)
	}
	members := g.tagPhotos[t]
	delete(members, p.name)
	if len(members) == 0 {
		delete(g.tagPhotos, t)
	}
	return true
}

// HasTag reports whether p carries t.
func (g *Graph) HasTag(p *Photo, t Tag) bool {
	if p == nil {
		return false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.photos[p.name] != p {
		return false
	}
	_, ok := g.photoTags[p.name][t]
	return ok
}

// TagsOf returns a snapshot of p's tags, sorted by name.
func (g *Graph) TagsOf(p *Photo) []Tag {
	if p == nil {
		return []Tag{}
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.photos[p.name] != p {
		return []Tag{}
	}
	tags := g.photoTags[p.name]
	out := make([]Tag, 0, len(tags))
	for t := range tags {
		out = append(out, t)
	}
	slices.SortFunc(out, compareTags)
	return out
}

// PhotosOf returns a snapshot of the photos carrying t, sorted by name.
func (g *Graph) PhotosOf(t Tag) []*Photo {
	g.mu.RLock()
	defer g.mu.RUnlock()

	members := g.tagPhotos[t]
	out := make([]*Photo, 0, len(members))
	for name := range members {
		out = append(out, g.photos[name])
	}
	slices.SortFunc(out, comparePhotos)
	return out
}

// TagCount is a tag with the number of photos carrying it.
type TagCount struct {
	Tag    Tag
	Photos int
}

// Tags returns every tag currently carried by at least one photo, sorted by name.
func (g *Graph) Tags() []TagCount {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]TagCount, 0, len(g.tagPhotos))
	for t, members := range g.tagPhotos {
		out = append(out, TagCount{Tag: t, Photos: len(members)})
	}
	slices.SortFunc(out, func(a, b TagCount) int {
		return compareTags(a.Tag, b.Tag)
	})
	return out
}

// Tag returns the tag-side view for name. The name is not validated.
func (g *Graph) Tag(name string) TagRef {
	return TagRef{Tag: NewTag(name), graph: g}
}

func comparePhotos(a, b *Photo) int {
	return strings.Compare(a.name, b.name)
}

func compareTags(a, b Tag) int {
	return strings.Compare(a.name, b.name)
}
