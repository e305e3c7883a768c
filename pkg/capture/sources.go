package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/png"
	"io/fs"
	"os"
	"sync"
	"sync/atomic"
)

type track struct {
	kind  string
	ended atomic.Bool
}

func (t *track) Kind() string { return t.kind }

func (t *track) State() TrackState {
	if t.ended.Load() {
		return TrackEnded
	}
	return TrackLive
}

func (t *track) Stop() { t.ended.Store(true) }

type stream struct {
	tracks []Track
	frame  func() (image.Image, error)
}

func (s *stream) Tracks() []Track { return s.tracks }

func (s *stream) Frame() (image.Image, error) {
	for _, t := range s.tracks {
		if t.State() != TrackLive {
			return nil, errors.New("track ended")
		}
	}
	return s.frame()
}

// SyntheticDevices hands out streams of a generated test pattern. Set Err
// to simulate a denied or missing camera.
type SyntheticDevices struct {
	Err error

	mu      sync.Mutex
	streams []Stream
}

func (d *SyntheticDevices) GetUserMedia(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.Err != nil {
		return nil, d.Err
	}
	w, h := c.Width, c.Height
	if w <= 0 || h <= 0 {
		w, h = 720, 1280
	}
	var seq atomic.Uint32
	s := &stream{
		tracks: []Track{&track{kind: "video"}},
		frame: func() (image.Image, error) {
			return pattern(w, h, uint8(seq.Add(1))), nil
		},
	}
	d.mu.Lock()
	d.streams = append(d.streams, s)
	d.mu.Unlock()
	return s, nil
}

// Streams returns every stream handed out so far.
func (d *SyntheticDevices) Streams() []Stream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Stream(nil), d.streams...)
}

func pattern(w, h int, shift uint8) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(x*255/w) + shift,
				G: uint8(y*255/h) + shift,
				B: 128,
				A: 255,
			})
		}
	}
	return img
}

// FileDevices streams a still image file as a camera, for headless use.
type FileDevices struct {
	Path string
}

func (d FileDevices) GetUserMedia(ctx context.Context, _ Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(d.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoDevice, d.Path)
	}
	if errors.Is(err, fs.ErrPermission) {
		return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, d.Path)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", d.Path, err)
	}
	return &stream{
		tracks: []Track{&track{kind: "video"}},
		frame:  func() (image.Image, error) { return img, nil },
	}, nil
}
