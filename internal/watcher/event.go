package watcher

import (
	"path/filepath"
	"strings"
	"time"
)

// EventType represents the type of file system event
type EventType int

const (
	// EventAdded is emitted when a new file is detected (after settling)
	EventAdded EventType = iota
	// EventModified is emitted when a known file changes (after settling)
	EventModified
	// EventRemoved is emitted when a file is deleted or renamed away
	EventRemoved
)

// String returns the string representation of the event type
func (t EventType) String() string {
	switch t {
	case EventAdded:
		return "added"
	case EventModified:
		return "modified"
	case EventRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event represents a settled change to an image file in the watched directory
type Event struct {
	Type EventType

	// Path is the file path
	Path string

	// Size and ModTime are zero for removals
	Size    int64
	ModTime time.Time
}

// Name returns the photo identity for the event: the file name without its extension.
func (e Event) Name() string {
	base := filepath.Base(e.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
