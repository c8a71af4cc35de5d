package catalog

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	domainerrors "github.com/listenupapp/photoshelf/internal/errors"
)

// MaxTagLength is the maximum length of a tag name, in runes.
const MaxTagLength = 64

// Tag is a label identified by its name. Two tags with the same name are the
// same tag: Tag is a comparable value and is used directly as a set key.
// Names are held in Unicode NFC so canonically equivalent spellings collapse.
type Tag struct {
	name string
}

// NewTag returns the tag with the given name. It never fails; use ParseTag for user input.
func NewTag(name string) Tag {
	return Tag{name: norm.NFC.String(name)}
}

// ParseTag validates user input and returns the corresponding tag.
// Surrounding whitespace is trimmed; the remaining name must be non-empty,
// at most MaxTagLength runes and free of control characters.
func ParseTag(input string) (Tag, error) {
	name := norm.NFC.String(strings.TrimSpace(input))
	if name == "" {
		return Tag{}, domainerrors.Validation("tag name cannot be empty")
	}
	if utf8.RuneCountInString(name) > MaxTagLength {
		return Tag{}, domainerrors.Validationf("tag name cannot exceed %d characters", MaxTagLength)
	}
	if strings.IndexFunc(name, unicode.IsControl) >= 0 {
		return Tag{}, domainerrors.Validation("tag name cannot contain control characters")
	}
	return Tag{name: name}, nil
}

// Name returns the tag's name.
func (t Tag) Name() string {
	return t.name
}

// Equal reports whether t and o name the same tag.
func (t Tag) Equal(o Tag) bool {
	return t.name == o.name
}

// IsZero reports whether t has an empty name. Zero tags are never stored.
func (t Tag) IsZero() bool {
	return t.name == ""
}

// String implements fmt.Stringer.
func (t Tag) String() string {
	return t.name
}

// TagRef is the tag-side view of a graph: it forwards to the same mutation
// procedure as Photo.AddTag and Photo.RemoveTag.
type TagRef struct {
	Tag
	graph *Graph
}

// Photos returns a snapshot of the photos carrying this tag, sorted by name.
func (r TagRef) Photos() []*Photo {
	return r.graph.PhotosOf(r.Tag)
}

// HasPhoto reports whether p carries this tag.
func (r TagRef) HasPhoto(p *Photo) bool {
	return r.graph.HasTag(p, r.Tag)
}

// AddPhoto attaches this tag to p. Idempotent.
func (r TagRef) AddPhoto(p *Photo) {
	if r.HasPhoto(p) {
		return
	}
	r.graph.AddTag(p, r.Tag)
}

// RemovePhoto detaches this tag from p. Removing an absent association is a no-op.
func (r TagRef) RemovePhoto(p *Photo) {
	if !r.HasPhoto(p) {
		return
	}
	r.graph.RemoveTag(p, r.Tag)
}
