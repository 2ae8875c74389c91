package app

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/ent0n29/aide/internal/config"
	"github.com/ent0n29/aide/internal/observability"
	"github.com/ent0n29/aide/internal/prefs"
	"github.com/ent0n29/aide/internal/voice"
)

type ioSetup struct {
	source  voice.Source
	sink    voice.Sink
	bridge  *voice.Bridge
	detail  string
	cleanup func() error
}

// resolveIO picks where utterances come from and where replies go. The
// bridge is only reachable when the operator API is enabled.
func resolveIO(cfg config.Config, p prefs.Preferences, sessionID string, in io.Reader, out io.Writer, logger *zap.Logger, metrics *observability.Metrics) (ioSetup, error) {
	switch cfg.Input {
	case config.InputConsole, "":
		c := voice.NewConsole(cfg.AssistantName, in, out, logger.Named("console"))
		c.SetSpeechRate(p.SpeechRate)
		return ioSetup{
			source:  c,
			sink:    c,
			detail:  "console",
			cleanup: c.Close,
		}, nil
	case config.InputWS:
		b := voice.NewBridge(sessionID, cfg.AllowAnyOrigin, logger.Named("bridge"), metrics)
		b.SetSpeechHints(p.SpeechRate, p.Volume)
		return ioSetup{
			source:  b,
			sink:    b,
			bridge:  b,
			detail:  "websocket bridge on " + cfg.HTTPAddr,
			cleanup: b.Close,
		}, nil
	default:
		return ioSetup{}, fmt.Errorf("invalid AIDE_INPUT: %q (expected console|ws)", cfg.Input)
	}
}
