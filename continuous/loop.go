package continuous

import (
	"time"

	"github.com/vertexhub/libpico/channel"
	"github.com/vertexhub/libpico/jsonvalue"
	"github.com/vertexhub/libpico/messages"
)

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// ProverLoop is the blocking prover-side driver over Engine: each
// round writes a PicoReAuth then blocks reading the matching
// ServiceReAuth, arming the channel's next-round timeout from the
// verifier's announcement (§5 "Blocking style").
type ProverLoop struct {
	ch     channel.Channel
	engine *Engine
}

// NewProverLoop constructs the loop over an already-open channel and a
// freshly started Engine.
func NewProverLoop(ch channel.Channel, cfg Config) (*ProverLoop, error) {
	engine, err := NewEngine(cfg)
	if err != nil {
		return nil, err
	}
	return &ProverLoop{ch: ch, engine: engine}, nil
}

// Stopped reports whether the loop has observed STOP/ERROR.
func (p *ProverLoop) Stopped() bool { return p.engine.Stopped() }

// RunRound sends one PicoReAuth carrying outboundExtraData, then reads
// and validates the matching ServiceReAuth, arming the channel timeout
// for the following round before returning.
func (p *ProverLoop) RunRound(outboundExtraData []byte) (*messages.ServiceReAuth, error) {
	if p.Stopped() {
		return nil, &Error{Message: "continuous: prover loop already stopped"}
	}
	out, err := p.engine.BuildPicoReAuth(outboundExtraData)
	if err != nil {
		return nil, err
	}
	if err := p.ch.Write([]byte(out.Serialize())); err != nil {
		return nil, &Error{Message: "continuous: write pico reauth: " + err.Error()}
	}

	inBytes, err := p.ch.Read()
	if err != nil {
		return nil, &Error{Message: "continuous: read service reauth: " + err.Error()}
	}
	inObj, err := jsonvalue.Parse(string(inBytes))
	if err != nil {
		return nil, &Error{Message: "continuous: parse service reauth: " + err.Error()}
	}
	msg, waitMs, err := p.engine.HandleServiceReAuth(inObj)
	if err != nil {
		return nil, err
	}
	p.ch.SetTimeout(millis(waitMs))
	return msg, nil
}

// Close releases the loop's channel.
func (p *ProverLoop) Close() error {
	return p.ch.Close()
}

// VerifierLoop is the blocking verifier-side driver over Engine: each
// round blocks reading a PicoReAuth, then replies with a ServiceReAuth
// carrying the caller's chosen next phase.
type VerifierLoop struct {
	ch     channel.Channel
	engine *Engine
}

// NewVerifierLoop constructs the loop over an already-open channel and
// a freshly started Engine.
func NewVerifierLoop(ch channel.Channel, cfg Config) (*VerifierLoop, error) {
	engine, err := NewEngine(cfg)
	if err != nil {
		return nil, err
	}
	return &VerifierLoop{ch: ch, engine: engine}, nil
}

// Stopped reports whether the loop has observed STOP/ERROR.
func (v *VerifierLoop) Stopped() bool { return v.engine.Stopped() }

// RunRound reads and validates one inbound PicoReAuth, then replies
// with a ServiceReAuth announcing phase and carrying
// outboundExtraData.
func (v *VerifierLoop) RunRound(phase ReauthPhase, outboundExtraData []byte) (*messages.PicoReAuth, error) {
	if v.Stopped() {
		return nil, &Error{Message: "continuous: verifier loop already stopped"}
	}
	inBytes, err := v.ch.Read()
	if err != nil {
		return nil, &Error{Message: "continuous: read pico reauth: " + err.Error()}
	}
	inObj, err := jsonvalue.Parse(string(inBytes))
	if err != nil {
		return nil, &Error{Message: "continuous: parse pico reauth: " + err.Error()}
	}
	msg, err := v.engine.HandlePicoReAuth(inObj)
	if err != nil {
		return nil, err
	}

	out, err := v.engine.BuildServiceReAuth(phase, outboundExtraData)
	if err != nil {
		return nil, err
	}
	if err := v.ch.Write([]byte(out.Serialize())); err != nil {
		return nil, &Error{Message: "continuous: write service reauth: " + err.Error()}
	}
	return msg, nil
}

// Close releases the loop's channel.
func (v *VerifierLoop) Close() error {
	return v.ch.Close()
}
