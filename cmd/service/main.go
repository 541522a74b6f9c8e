// Command service runs a standalone SIGMA-I verifier: it loads its
// identity key pair and authorized-user store from disk, dials a
// rendezvous channel, runs one blocking handshake (sigmaverifier.Run),
// hands the session to the continuous reauth loop, and reports
// lifecycle events to any registered webhooks. Adapted from the
// teacher's cmd/server/main.go bootstrap shape (zap logger, env-driven
// config, signal-driven shutdown), wired to the SIGMA-I core instead
// of a WhatsApp session manager.
package main

import (
	"encoding/hex"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/vertexhub/libpico/channel/rendezvouschannel"
	"github.com/vertexhub/libpico/continuous"
	"github.com/vertexhub/libpico/picoconfig"
	"github.com/vertexhub/libpico/picoevents"
	"github.com/vertexhub/libpico/picokeys"
	"github.com/vertexhub/libpico/picolog"
	"github.com/vertexhub/libpico/sigmaverifier"
	"github.com/vertexhub/libpico/users"
)

// maxReauthRounds bounds how many continuous-loop rounds this demo
// entrypoint drives after authentication before ending the session;
// a long-lived verifier host would instead loop until its own
// shutdown signal.
const maxReauthRounds = 100

func main() {
	sugar, err := picolog.New()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer sugar.Sync()

	sugar.Info("libpico service starting...")

	cfg, err := picoconfig.FromEnv()
	if err != nil {
		sugar.Fatalf("config: %v", err)
	}

	serviceIdentity, err := picokeys.LoadOrGenerate("service.key", "service.pub")
	if err != nil {
		sugar.Fatalf("service identity: %v", err)
	}

	authorizedUsers, err := users.Load(cfg.UsersFile)
	if err != nil {
		sugar.Warnf("no user store at %s, running in pairing mode: %v", cfg.UsersFile, err)
		authorizedUsers = nil
	}

	channelURL := os.Getenv("PICO_CHANNEL_URL")
	if channelURL == "" {
		sugar.Fatal("PICO_CHANNEL_URL must name a rendezvous channel, e.g. http://relay:3200/channel/<id>")
	}
	relayKey := os.Getenv("PICO_RELAY_KEY")

	dispatcher := picoevents.NewDispatcher(sugar)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)

		ch, err := rendezvouschannel.Dial(channelURL, rendezvouschannel.SideB, relayKey)
		if err != nil {
			sugar.Errorf("dial channel: %v", err)
			dispatcher.Dispatch(picoevents.EventSessionError, map[string]string{"error": err.Error()})
			return
		}

		result, err := sigmaverifier.Run(ch, serviceIdentity, authorizedUsers, true, nil)
		if err != nil {
			sugar.Errorf("verifier run failed: %v", err)
			dispatcher.Dispatch(picoevents.EventSessionError, map[string]string{"error": err.Error()})
			return
		}

		if !result.Authorized {
			sugar.Warnf("session rejected: unauthorized identity")
			dispatcher.Dispatch(picoevents.EventSessionAuthFailed, nil)
			return
		}

		sugar.Infof("session authenticated")
		dispatcher.Dispatch(picoevents.EventSessionAuthenticated, nil)

		continuousCfg := cfg.Continuous
		continuousCfg.SharedKey = result.SessionState.SharedKey
		loop, err := continuous.NewVerifierLoop(ch, continuousCfg)
		if err != nil {
			sugar.Errorf("start continuous loop: %v", err)
			dispatcher.Dispatch(picoevents.EventSessionError, map[string]string{"error": err.Error()})
			return
		}
		defer loop.Close()

		for round := 0; round < maxReauthRounds && !loop.Stopped(); round++ {
			pico, err := loop.RunRound(continuous.PhaseContinue, nil)
			if err != nil {
				sugar.Warnf("reauth round %d failed: %v", round, err)
				dispatcher.Dispatch(picoevents.EventSessionError, map[string]string{"error": err.Error()})
				return
			}
			dispatcher.Dispatch(picoevents.EventSessionReauth, map[string]any{
				"round": round,
				"seq":   hex.EncodeToString(pico.SeqNo.Bytes()),
			})
		}
		dispatcher.Dispatch(picoevents.EventSessionEnded, nil)
	}()

	select {
	case <-done:
	case <-quit:
		sugar.Info("shutting down gracefully...")
	}
}
