package watcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventType_String(t *testing.T) {
	tests := []struct {
		eventType EventType
		want      string
	}{
		{EventAdded, "added"},
		{EventModified, "modified"},
		{EventRemoved, "removed"},
		{EventType(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.eventType.String())
		})
	}
}

func TestEvent_Name(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/library/photos/doggo.jpg", "doggo"},
		{"/library/photos/summer 2024.jpg", "summer 2024"},
		{"/library/photos/archive.tar.jpg", "archive.tar"},
		{"relative.jpg", "relative"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Event{Path: tt.path}.Name())
		})
	}
}
