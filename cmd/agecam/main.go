// agecam captures a still from a file or a test pattern, sends it for
// analysis and prints the result with the caller's recent history.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-persona-ai/pkg/capture"
	"github.com/ovaphlow/pitchfork/service-persona-ai/pkg/client"
	"github.com/ovaphlow/pitchfork/service-persona-ai/pkg/quota"
	"github.com/ovaphlow/pitchfork/service-persona-ai/pkg/utilities"
)

func main() {
	_ = godotenv.Load()

	defaultQuota := ""
	if dir, err := os.UserConfigDir(); err == nil {
		defaultQuota = filepath.Join(dir, "agecam", "quota.json")
	}

	server := pflag.StringP("server", "s", envOr("AGECAM_SERVER", "http://localhost:8431"), "API base URL")
	session := pflag.String("session", os.Getenv("AGECAM_SESSION"), "session cookie value")
	cookie := pflag.String("cookie-name", envOr("SESSION_COOKIE", "sid"), "session cookie name")
	imagePath := pflag.StringP("image", "i", "", "photo to analyse; a test pattern when empty")
	mode := pflag.StringP("mode", "m", "age", "age or personality")
	quotaFile := pflag.String("quota-file", defaultQuota, "daily quota state file")
	reward := pflag.Bool("reward", false, "claim one extra analysis for today")
	pflag.Parse()

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()
	sugar := lg.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, sugar, options{
		server:    *server,
		session:   *session,
		cookie:    *cookie,
		imagePath: *imagePath,
		mode:      *mode,
		quotaFile: *quotaFile,
		reward:    *reward,
	}); err != nil {
		sugar.Errorw("agecam failed", "err", err)
		os.Exit(1)
	}
}

type options struct {
	server    string
	session   string
	cookie    string
	imagePath string
	mode      string
	quotaFile string
	reward    bool
}

func run(ctx context.Context, logger *zap.SugaredLogger, o options) error {
	c, err := client.New(o.server, client.WithLogger(logger))
	if err != nil {
		return err
	}
	if o.session != "" {
		c.SetSession(o.cookie, o.session)
	}

	var devices capture.MediaDevices = &capture.SyntheticDevices{}
	if o.imagePath != "" {
		devices = capture.FileDevices{Path: o.imagePath}
	}
	cam := capture.NewWidget(devices, capture.WithLogger(logger))

	m := client.ModeAge
	if o.mode == "personality" {
		m = client.ModePersonality
	} else if o.mode != "age" {
		return fmt.Errorf("unknown mode %q", o.mode)
	}

	var store quota.Store = &quota.MemoryStore{}
	if o.quotaFile != "" {
		store = quota.FileStore{Path: o.quotaFile}
	}
	q := quota.NewManager(store)
	if o.reward {
		if _, err := q.EarnReward(ctx); err != nil {
			return err
		}
	}

	flow := client.NewFlow(c, cam, m, client.WithQuota(q), client.WithFlowLogger(logger))
	defer flow.Close()

	if err := flow.Authenticate(ctx); err != nil {
		return err
	}
	if flow.State() == client.StateUnauthenticated {
		return fmt.Errorf("not signed in; open %s and pass the session cookie with --session", c.LoginURL())
	}
	if err := flow.StartCamera(ctx); err != nil {
		return err
	}
	if err := flow.Capture(ctx); err != nil {
		if errors.Is(err, quota.ErrExhausted) {
			return fmt.Errorf("%w; rerun with --reward for one more", err)
		}
		return err
	}

	if st, err := q.Status(ctx); err == nil {
		logger.Infow("analysis recorded", "count", st.Count, "remaining", st.Remaining(), "interstitial", st.Interstitial)
		q.DismissInterstitial()
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if m == client.ModePersonality {
		if err := enc.Encode(flow.PersonalityResult()); err != nil {
			return err
		}
		h := c.AnalysisHistory()
		if err := h.Refresh(ctx); err != nil {
			return err
		}
		return enc.Encode(h.Entries())
	}
	if err := enc.Encode(flow.AgeResult()); err != nil {
		return err
	}
	h := c.PredictionHistory()
	if err := h.Refresh(ctx); err != nil {
		return err
	}
	return enc.Encode(h.Entries())
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
