// Command pico runs a standalone SIGMA-I prover: it loads (or
// generates) its identity key pair, dials a rendezvous channel, runs
// one blocking handshake (sigmaprover.Run) against a service, and, if
// the service signals OK_CONTINUE, hands the session to the continuous
// reauth loop. Adapted from the teacher's cmd/server/main.go bootstrap
// shape; the dual of cmd/service.
package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/vertexhub/libpico/channel/rendezvouschannel"
	"github.com/vertexhub/libpico/continuous"
	"github.com/vertexhub/libpico/messages"
	"github.com/vertexhub/libpico/picoconfig"
	"github.com/vertexhub/libpico/picokeys"
	"github.com/vertexhub/libpico/picolog"
	"github.com/vertexhub/libpico/sigmaprover"
)

func main() {
	sugar, err := picolog.New()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer sugar.Sync()

	sugar.Info("libpico pico starting...")

	cfg, err := picoconfig.FromEnv()
	if err != nil {
		sugar.Fatalf("config: %v", err)
	}

	picoIdentity, err := picokeys.LoadOrGenerate("pico.key", "pico.pub")
	if err != nil {
		sugar.Fatalf("pico identity: %v", err)
	}

	channelURL := os.Getenv("PICO_CHANNEL_URL")
	if channelURL == "" {
		sugar.Fatal("PICO_CHANNEL_URL must name a rendezvous channel, e.g. http://relay:3200/channel/<id>")
	}
	relayKey := os.Getenv("PICO_RELAY_KEY")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)

		ch, err := rendezvouschannel.Dial(channelURL, rendezvouschannel.SideA, relayKey)
		if err != nil {
			sugar.Errorf("dial channel: %v", err)
			return
		}

		result, err := sigmaprover.Run(ch, picoIdentity, nil)
		if err != nil {
			sugar.Errorf("prover run failed: %v", err)
			return
		}
		sugar.Infof("authentication result: %v", result.Status)

		if result.Status != messages.StatusOKContinue {
			return
		}

		continuousCfg := cfg.Continuous
		continuousCfg.SharedKey = result.SessionState.SharedKey
		loop, err := continuous.NewProverLoop(ch, continuousCfg)
		if err != nil {
			sugar.Errorf("start continuous loop: %v", err)
			return
		}
		defer loop.Close()

		for !loop.Stopped() {
			if _, err := loop.RunRound(nil); err != nil {
				sugar.Warnf("reauth round failed: %v", err)
				return
			}
		}
	}()

	select {
	case <-done:
	case <-quit:
		sugar.Info("shutting down gracefully...")
	}
}
