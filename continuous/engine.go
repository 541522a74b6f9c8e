// Package continuous implements the post-authentication reauth loop
// (§4.9): a persisted shared key and two independently-tracked
// sequence numbers, ping-ponged between prover and verifier with
// paused/active timeouts and extra-data exchange.
//
// Engine holds the pure protocol state (sequence-number discipline,
// timeout arithmetic) shared by both embodiments named in §9's "dual
// blocking + event-driven APIs" note: ProverLoop and VerifierLoop in
// loop.go are the blocking drivers (§4.9/§5's "single host task performs reads and writes in
// sequence"), and fsm.FsmPico/FsmService's CONTSTARTPICO/PICOREAUTH/
// SERVICEREAUTH states call the same Engine methods from their
// non-blocking event handlers — one seq-discipline implementation,
// two drivers.
package continuous

import (
	"github.com/vertexhub/libpico/jsonvalue"
	"github.com/vertexhub/libpico/messages"
	"github.com/vertexhub/libpico/seqno"
)

// Error is the typed error category for reauth-loop failures,
// including sequence-number mismatch (§7 Sequencing).
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

// ErrSeqMismatch is returned when an incoming reauth message's
// sequence number does not equal the value the engine expected.
var ErrSeqMismatch = &Error{Message: "continuous: sequence number mismatch"}

// Config holds the recognized configuration (§4.9 table).
type Config struct {
	ActiveTimeoutMs int
	PausedTimeoutMs int
	TimeoutLeewayMs int
	SharedKey       []byte
}

// Engine is one side's reauth-loop state: its own outbound sequence
// counter (incremented on every send) and its stored copy of the
// peer's counter (incremented on receive, per §9's surprising
// discipline: "a side increments its 'expected next from peer'
// counter when it has validated one reauth message from that peer").
type Engine struct {
	cfg Config

	ownSeq seqno.SeqNo

	expectedPeerSeq    seqno.SeqNo
	expectedPeerSeqSet bool

	state ReauthPhase
}

// ReauthPhase mirrors messages.ReauthState but as the engine's own
// bookkeeping of where the loop currently stands.
type ReauthPhase int

const (
	PhaseContinue ReauthPhase = iota
	PhasePause
	PhaseStopped
	PhaseError
)

// NewEngine creates an Engine with a freshly randomized outbound
// sequence number and no expectation yet of the peer's counter (set on
// first receive).
func NewEngine(cfg Config) (*Engine, error) {
	own, err := seqno.Random()
	if err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, ownSeq: own, state: PhaseContinue}, nil
}

// Stopped reports whether this side has observed a STOP from the peer
// or entered PhaseStopped/PhaseError itself.
func (e *Engine) Stopped() bool {
	return e.state == PhaseStopped || e.state == PhaseError
}

func waitForState(state ReauthPhase, cfg Config) int {
	if state == PhasePause {
		return cfg.PausedTimeoutMs
	}
	return cfg.ActiveTimeoutMs
}

func toPhase(state messages.ReauthState) ReauthPhase {
	switch state {
	case messages.ReauthPause:
		return PhasePause
	case messages.ReauthStop:
		return PhaseStopped
	case messages.ReauthError:
		return PhaseError
	default:
		return PhaseContinue
	}
}

func toReauthState(phase ReauthPhase) messages.ReauthState {
	switch phase {
	case PhasePause:
		return messages.ReauthPause
	case PhaseStopped:
		return messages.ReauthStop
	case PhaseError:
		return messages.ReauthError
	default:
		return messages.ReauthContinue
	}
}

// checkAndAdvancePeerSeq verifies incoming matches the expected peer
// sequence number (if one has been established yet), then advances the
// expectation to incoming+1.
func (e *Engine) checkAndAdvancePeerSeq(incoming seqno.SeqNo) error {
	if e.expectedPeerSeqSet && !incoming.Equal(e.expectedPeerSeq) {
		return ErrSeqMismatch
	}
	e.expectedPeerSeq = incoming.Next()
	e.expectedPeerSeqSet = true
	return nil
}

// --- Prover side -----------------------------------------------------

// BuildPicoReAuth encodes one outbound PicoReAuth round under the
// engine's current phase and own sequence number, then advances the
// own counter (§4.9 point 3: "Both sides increment their sequence
// numbers on each outbound reauth message").
func (e *Engine) BuildPicoReAuth(extraData []byte) (*jsonvalue.Object, error) {
	msg := &messages.PicoReAuth{
		State:     toReauthState(e.state),
		SeqNo:     e.ownSeq,
		ExtraData: extraData,
	}
	o, err := messages.EncodePicoReAuth(msg, e.cfg.SharedKey)
	if err != nil {
		return nil, err
	}
	e.ownSeq = e.ownSeq.Next()
	return o, nil
}

// HandleServiceReAuth decrypts and validates one inbound
// ServiceReAuth round, advances the peer-sequence expectation, records
// the peer's announced phase, and returns the prover-side wait
// duration to arm before the next round: the verifier-announced
// timeout minus timeout_leeway_ms (§4.9 table), clamped to zero and
// capped at this side's own configured timeout for the newly-entered
// phase, so a verifier cannot stretch the prover's wait past its own
// active/paused policy by announcing an inflated Timeout.
func (e *Engine) HandleServiceReAuth(o *jsonvalue.Object) (msg *messages.ServiceReAuth, waitMs int, err error) {
	msg, err = messages.DecodeServiceReAuth(o, e.cfg.SharedKey)
	if err != nil {
		return nil, 0, err
	}
	if err := e.checkAndAdvancePeerSeq(msg.SeqNo); err != nil {
		return nil, 0, err
	}
	e.state = toPhase(msg.State)

	wait := int(msg.Timeout) - e.cfg.TimeoutLeewayMs
	if wait < 0 {
		wait = 0
	}
	if ceiling := waitForState(e.state, e.cfg); wait > ceiling {
		wait = ceiling
	}
	return msg, wait, nil
}

// --- Verifier side -----------------------------------------------------

// BuildServiceReAuth encodes one outbound ServiceReAuth round,
// choosing the announced timeout from phase (active vs. paused), then
// advances the own counter.
func (e *Engine) BuildServiceReAuth(phase ReauthPhase, extraData []byte) (*jsonvalue.Object, error) {
	e.state = phase
	msg := &messages.ServiceReAuth{
		State:     toReauthState(phase),
		Timeout:   uint32(waitForState(phase, e.cfg)),
		SeqNo:     e.ownSeq,
		ExtraData: extraData,
	}
	o, err := messages.EncodeServiceReAuth(msg, e.cfg.SharedKey)
	if err != nil {
		return nil, err
	}
	e.ownSeq = e.ownSeq.Next()
	return o, nil
}

// HandlePicoReAuth decrypts and validates one inbound PicoReAuth round
// and advances the peer-sequence expectation.
func (e *Engine) HandlePicoReAuth(o *jsonvalue.Object) (*messages.PicoReAuth, error) {
	msg, err := messages.DecodePicoReAuth(o, e.cfg.SharedKey)
	if err != nil {
		return nil, err
	}
	if err := e.checkAndAdvancePeerSeq(msg.SeqNo); err != nil {
		return nil, err
	}
	e.state = toPhase(msg.State)
	return msg, nil
}
