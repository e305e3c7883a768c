package client

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-persona-ai/pkg/capture"
	"github.com/ovaphlow/pitchfork/service-persona-ai/pkg/quota"
)

type State int

const (
	StateUnauthenticated State = iota
	StateIdle
	StateCapturing
	StateAnalyzing
	StateResult
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateAnalyzing:
		return "analyzing"
	case StateResult:
		return "result"
	default:
		return "unauthenticated"
	}
}

// Mode picks the analysis a Flow runs.
type Mode int

const (
	ModeAge Mode = iota
	ModePersonality
)

// TransitionError is an operation attempted from the wrong state.
type TransitionError struct {
	Op   string
	From State
}

func (e *TransitionError) Error() string { return fmt.Sprintf("cannot %s while %s", e.Op, e.From) }

type Camera interface {
	Start(ctx context.Context) error
	Capture() (*capture.Still, error)
	Stop()
}

type Quota interface {
	Allow(ctx context.Context) error
	Record(ctx context.Context) (quota.Status, error)
}

// Flow is the capture screen: sign in, open the camera, take a photo,
// wait for the analysis, show the result, retake.
type Flow struct {
	client *Client
	camera Camera
	mode   Mode
	quota  Quota
	logger *zap.SugaredLogger

	mu          sync.Mutex
	state       State
	user        *User
	still       *capture.Still
	age         *AgeResult
	personality *PersonalityResult
	lastErr     error
}

type FlowOption func(*Flow)

func WithQuota(q Quota) FlowOption { return func(f *Flow) { f.quota = q } }

func WithFlowLogger(l *zap.SugaredLogger) FlowOption { return func(f *Flow) { f.logger = l } }

func NewFlow(c *Client, cam Camera, mode Mode, opts ...FlowOption) *Flow {
	f := &Flow{client: c, camera: cam, mode: mode, logger: zap.NewNop().Sugar()}
	for _, o := range opts {
		o(f)
	}
	return f
}

// expect checks the current state. Caller holds mu.
func (f *Flow) expect(op string, want State) error {
	if f.state != want {
		return &TransitionError{Op: op, From: f.state}
	}
	return nil
}

// Authenticate asks the server who we are. A 401 leaves the flow
// unauthenticated without error; see Client.LoginURL.
func (f *Flow) Authenticate(ctx context.Context) error {
	u, err := f.client.CurrentUser(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	if IsUnauthorized(err) {
		f.state, f.user = StateUnauthenticated, nil
		return nil
	}
	if err != nil {
		return err
	}
	f.user = u
	if f.state == StateUnauthenticated {
		f.state = StateIdle
	}
	return nil
}

// StartCamera opens the camera. On failure the flow stays idle.
func (f *Flow) StartCamera(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.expect("start camera", StateIdle); err != nil {
		return err
	}
	if err := f.camera.Start(ctx); err != nil {
		f.lastErr = err
		return err
	}
	f.still, f.age, f.personality, f.lastErr = nil, nil, nil, nil
	f.state = StateCapturing
	return nil
}

// Capture takes the photo, releases the camera and runs the analysis.
// A failed analysis returns the flow to idle with nothing recorded, or to
// unauthenticated when the session is gone.
func (f *Flow) Capture(ctx context.Context) error {
	f.mu.Lock()
	if err := f.expect("capture", StateCapturing); err != nil {
		f.mu.Unlock()
		return err
	}
	if f.quota != nil {
		if err := f.quota.Allow(ctx); err != nil {
			f.mu.Unlock()
			return err
		}
	}
	still, err := f.camera.Capture()
	if err != nil {
		f.mu.Unlock()
		return err
	}
	f.camera.Stop()
	f.still = still
	f.state = StateAnalyzing
	f.mu.Unlock()

	var (
		age         *AgeResult
		personality *PersonalityResult
	)
	if f.mode == ModePersonality {
		personality, err = f.client.AnalyzePersonality(ctx, still)
	} else {
		age, err = f.client.PredictAge(ctx, still)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.lastErr = err
		f.still = nil
		if IsUnauthorized(err) {
			f.state, f.user = StateUnauthenticated, nil
		} else {
			f.state = StateIdle
		}
		f.logger.Warnw("analysis failed", "err", err)
		return err
	}
	f.age, f.personality = age, personality
	f.state = StateResult
	if f.quota != nil {
		if _, err := f.quota.Record(ctx); err != nil {
			f.logger.Warnw("quota not recorded", "err", err)
		}
	}
	return nil
}

// Retake discards the result and reopens the camera. If the camera cannot
// be opened the flow is left idle.
func (f *Flow) Retake(ctx context.Context) error {
	f.mu.Lock()
	if err := f.expect("retake", StateResult); err != nil {
		f.mu.Unlock()
		return err
	}
	f.still, f.age, f.personality = nil, nil, nil
	f.state = StateIdle
	f.mu.Unlock()
	return f.StartCamera(ctx)
}

// Close releases the camera.
func (f *Flow) Close() {
	f.camera.Stop()
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Flow) User() *User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.user
}

// Still is the photo being analysed or shown with the result.
func (f *Flow) Still() *capture.Still {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.still
}

func (f *Flow) AgeResult() *AgeResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.age
}

func (f *Flow) PersonalityResult() *PersonalityResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.personality
}

// Err is the last camera or analysis failure.
func (f *Flow) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}
