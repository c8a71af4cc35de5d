// Package sse implements Server-Sent Events for live library changes.
package sse

import "time"

// Clients hold no state the server depends on; the feed only tells them
// what to refetch.

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventPhotoAdded represents a photo entering the library.
	EventPhotoAdded EventType = "photo.added"
	// EventPhotoUpdated represents a change to a photo's description.
	EventPhotoUpdated EventType = "photo.updated"
	// EventPhotoRemoved represents a photo leaving the library.
	EventPhotoRemoved EventType = "photo.removed"

	// EventTagApplied represents a tag newly applied to a photo.
	EventTagApplied EventType = "tag.applied"
	// EventTagRemoved represents a tag removed from a photo.
	EventTagRemoved EventType = "tag.removed"

	// EventThumbnailUpdated represents a regenerated thumbnail.
	EventThumbnailUpdated EventType = "thumbnail.updated"

	// EventScanStarted represents a library scan start event.
	EventScanStarted EventType = "library.scan_started"
	// EventScanComplete represents a library scan completion event.
	EventScanComplete EventType = "library.scan_completed"

	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Event represents an SSE event to be sent to clients.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`
}

// PhotoEventData is the data payload for photo events.
type PhotoEventData struct {
	Name string `json:"name"`
}

// TagEventData is the data payload for tag events.
type TagEventData struct {
	Photo string `json:"photo"`
	Tag   string `json:"tag"`
}

// ThumbnailEventData is the data payload for thumbnail events.
type ThumbnailEventData struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

// ScanStartedEventData is the data payload for scan start events.
type ScanStartedEventData struct {
	StartedAt time.Time `json:"started_at"`
}

// ScanCompleteEventData is the data payload for scan complete events.
type ScanCompleteEventData struct {
	CompletedAt time.Time `json:"completed_at"`
	Discovered  int       `json:"discovered"`
	Removed     int       `json:"removed"`
	Thumbnails  int       `json:"thumbnails"`
	Missing     int       `json:"missing"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

func newEvent(t EventType, data any) Event {
	return Event{Type: t, Data: data, Timestamp: time.Now()}
}

// NewPhotoAddedEvent creates a photo.added event.
func NewPhotoAddedEvent(name string) Event {
	return newEvent(EventPhotoAdded, PhotoEventData{Name: name})
}

// NewPhotoUpdatedEvent creates a photo.updated event.
func NewPhotoUpdatedEvent(name string) Event {
	return newEvent(EventPhotoUpdated, PhotoEventData{Name: name})
}

// NewPhotoRemovedEvent creates a photo.removed event.
func NewPhotoRemovedEvent(name string) Event {
	return newEvent(EventPhotoRemoved, PhotoEventData{Name: name})
}

// NewTagAppliedEvent creates a tag.applied event.
func NewTagAppliedEvent(photo, tag string) Event {
	return newEvent(EventTagApplied, TagEventData{Photo: photo, Tag: tag})
}

// NewTagRemovedEvent creates a tag.removed event.
func NewTagRemovedEvent(photo, tag string) Event {
	return newEvent(EventTagRemoved, TagEventData{Photo: photo, Tag: tag})
}

// NewThumbnailUpdatedEvent creates a thumbnail.updated event.
func NewThumbnailUpdatedEvent(name, state string) Event {
	return newEvent(EventThumbnailUpdated, ThumbnailEventData{Name: name, State: state})
}

// NewScanStartedEvent creates a library.scan_started event.
func NewScanStartedEvent() Event {
	return newEvent(EventScanStarted, ScanStartedEventData{StartedAt: time.Now()})
}

// NewScanCompleteEvent creates a library.scan_completed event.
func NewScanCompleteEvent(discovered, removed, thumbnails, missing int) Event {
	return newEvent(EventScanComplete, ScanCompleteEventData{
		CompletedAt: time.Now(),
		Discovered:  discovered,
		Removed:     removed,
		Thumbnails:  thumbnails,
		Missing:     missing,
	})
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	return newEvent(EventHeartbeat, HeartbeatEventData{ServerTime: time.Now()})
}
