package catalog

import (
	"errors"
	"image"
)

// RasterState describes an in-memory raster slot on a photo.
type RasterState int

const (
	// Unloaded means no load has been attempted yet.
	Unloaded RasterState = iota
	// Loaded means the slot holds a decoded raster.
	Loaded
	// Failed means the last load attempt failed and nothing is held.
	Failed
)

// String returns the string representation of the state.
func (s RasterState) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

var errEmptyRaster = errors.New("empty raster")

// slot holds a lazily loaded raster. A failed attempt never discards a raster
// that is already held; it only records the error.
type slot struct {
	state RasterState
	img   image.Image
	err   error
}

func (s *slot) record(img image.Image, err error) {
	if err == nil && img == nil {
		err = errEmptyRaster
	}
	if err != nil {
		s.err = err
		if s.state != Loaded {
			s.state = Failed
			s.img = nil
		}
		return
	}
	s.state = Loaded
	s.img = img
	s.err = nil
}

func (s *slot) get() (image.Image, bool) {
	if s.state != Loaded {
		return nil, false
	}
	return s.img, true
}
