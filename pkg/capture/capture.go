// Package capture drives a camera for single still photos: open a
// user-facing stream, grab one frame as JPEG, release every track.
package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"sync"

	"go.uber.org/zap"
)

type Facing string

const (
	FacingUser        Facing = "user"
	FacingEnvironment Facing = "environment"
)

// Constraints are the ideal stream settings; sources may deliver other sizes.
type Constraints struct {
	Facing Facing
	Width  int
	Height int
}

// DefaultConstraints asks for a portrait selfie stream.
func DefaultConstraints() Constraints {
	return Constraints{Facing: FacingUser, Width: 720, Height: 1280}
}

type TrackState int

const (
	TrackLive TrackState = iota
	TrackEnded
)

func (s TrackState) String() string {
	if s == TrackLive {
		return "live"
	}
	return "ended"
}

// Track is one media track of a stream. Stop must be idempotent.
type Track interface {
	Kind() string
	State() TrackState
	Stop()
}

// Stream is an open camera stream.
type Stream interface {
	Tracks() []Track
	// Frame returns the current video frame.
	Frame() (image.Image, error)
}

// MediaDevices grants camera streams.
type MediaDevices interface {
	GetUserMedia(ctx context.Context, c Constraints) (Stream, error)
}

var (
	ErrNotActive        = errors.New("camera is not active")
	ErrPermissionDenied = errors.New("camera permission denied")
	ErrNoDevice         = errors.New("no camera available")
)

// DeviceError reports a failure to acquire or read the camera.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string { return fmt.Sprintf("camera %s: %v", e.Op, e.Err) }
func (e *DeviceError) Unwrap() error { return e.Err }

// DefaultQuality is the JPEG quality of captured stills.
const DefaultQuality = 85

// Still is one captured photo.
type Still struct {
	Data    []byte
	MIME    string
	Width   int
	Height  int
	Preview string // data URL of Data
}

// Widget owns at most one stream at a time.
type Widget struct {
	mu          sync.Mutex
	devices     MediaDevices
	constraints Constraints
	quality     int
	logger      *zap.SugaredLogger
	stream      Stream
}

type Option func(*Widget)

func WithConstraints(c Constraints) Option { return func(w *Widget) { w.constraints = c } }

func WithQuality(q int) Option {
	return func(w *Widget) {
		if q >= 1 && q <= 100 {
			w.quality = q
		}
	}
}

func WithLogger(l *zap.SugaredLogger) Option { return func(w *Widget) { w.logger = l } }

func NewWidget(devices MediaDevices, opts ...Option) *Widget {
	w := &Widget{
		devices:     devices,
		constraints: DefaultConstraints(),
		quality:     DefaultQuality,
		logger:      zap.NewNop().Sugar(),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Start opens the camera. Starting an active widget does nothing.
func (w *Widget) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stream != nil {
		return nil
	}
	s, err := w.devices.GetUserMedia(ctx, w.constraints)
	if err != nil {
		w.logger.Warnw("camera unavailable", "facing", w.constraints.Facing, "err", err)
		return &DeviceError{Op: "start", Err: err}
	}
	w.stream = s
	w.logger.Debugw("camera started", "facing", w.constraints.Facing, "tracks", len(s.Tracks()))
	return nil
}

func (w *Widget) Active() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stream != nil
}

// Capture encodes the current frame as a JPEG still. The stream stays open.
func (w *Widget) Capture() (*Still, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stream == nil {
		return nil, ErrNotActive
	}
	img, err := w.stream.Frame()
	if err != nil {
		return nil, &DeviceError{Op: "capture", Err: err}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: w.quality}); err != nil {
		return nil, fmt.Errorf("encode still: %w", err)
	}
	b := img.Bounds()
	return &Still{
		Data:    buf.Bytes(),
		MIME:    "image/jpeg",
		Width:   b.Dx(),
		Height:  b.Dy(),
		Preview: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

// Stop ends every track of the current stream. Safe to call any number of times.
func (w *Widget) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stream == nil {
		return
	}
	for _, t := range w.stream.Tracks() {
		t.Stop()
	}
	w.stream = nil
	w.logger.Debugw("camera stopped")
}

// Close releases the camera when the widget is torn down.
func (w *Widget) Close() error {
	w.Stop()
	return nil
}
