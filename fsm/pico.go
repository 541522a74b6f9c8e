package fsm

import (
	"github.com/vertexhub/libpico/continuous"
	"github.com/vertexhub/libpico/messages"
	"github.com/vertexhub/libpico/picocrypto"
	"github.com/vertexhub/libpico/session"
)

// ProverState enumerates FsmPico's states per §4.8's chain:
// START → SERVICEAUTH → PICOAUTH → STATUS → AUTHENTICATED →
// {FIN, CONTSTARTPICO → PICOREAUTH ↔ SERVICEREAUTH → … → FIN} / ERROR.
type ProverState int

const (
	ProverStart ProverState = iota
	ProverServiceAuth
	ProverPicoAuth
	ProverStatus
	ProverAuthenticated
	ProverContStartPico
	ProverPicoReAuth
	ProverServiceReAuth
	ProverFin
	ProverError
)

func (s ProverState) String() string {
	switch s {
	case ProverStart:
		return "START"
	case ProverServiceAuth:
		return "SERVICEAUTH"
	case ProverPicoAuth:
		return "PICOAUTH"
	case ProverStatus:
		return "STATUS"
	case ProverAuthenticated:
		return "AUTHENTICATED"
	case ProverContStartPico:
		return "CONTSTARTPICO"
	case ProverPicoReAuth:
		return "PICOREAUTH"
	case ProverServiceReAuth:
		return "SERVICEREAUTH"
	case ProverFin:
		return "FIN"
	case ProverError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// PicoCallbacks are the host-supplied hooks FsmPico drives (§4.8).
type PicoCallbacks struct {
	Write              func(msg []byte)
	SetTimeout         func(ms int)
	Reconnect          func()
	Disconnect         func()
	Authenticated      func(status messages.StatusByte, extraData []byte)
	SessionEnded       func()
	StatusUpdate       func(state ProverState)
	Error              func(err error)
}

// FsmPico is the event-driven prover state machine.
type FsmPico struct {
	cb    PicoCallbacks
	cfg   continuous.Config
	state ProverState

	picoIdentity *picocrypto.KeyPair
	st           *session.State
	engine       *continuous.Engine

	outboundExtraData []byte
	receivedExtraData []byte
	startTimeoutMs    int
}

// NewFsmPico constructs a prover FSM in state START. cfg supplies the
// continuous re-auth timing/key configuration used once the run
// reaches CONTSTARTPICO; cfg.SharedKey is filled in from the session's
// derived key at that point and need not be set beforehand.
func NewFsmPico(picoIdentity *picocrypto.KeyPair, cfg continuous.Config, startTimeoutMs int, cb PicoCallbacks) *FsmPico {
	return &FsmPico{cb: cb, cfg: cfg, state: ProverStart, picoIdentity: picoIdentity, startTimeoutMs: startTimeoutMs}
}

// State reports the machine's current state.
func (f *FsmPico) State() ProverState { return f.state }

// SetOutboundExtraData attaches data to the next outgoing PicoAuth or
// PicoReAuth message (§4.8).
func (f *FsmPico) SetOutboundExtraData(data []byte) { f.outboundExtraData = data }

// GetReceivedExtraData returns the extra data most recently received
// from the verifier (a Status or ServiceReAuth payload).
func (f *FsmPico) GetReceivedExtraData() []byte { return f.receivedExtraData }

func (f *FsmPico) enter(state ProverState) {
	f.state = state
	if f.cb.StatusUpdate != nil {
		f.cb.StatusUpdate(state)
	}
}

func (f *FsmPico) fail(err error) {
	f.enter(ProverError)
	if f.cb.Error != nil {
		f.cb.Error(err)
	}
}

// Stop drives the machine to FIN. In the continuous phase it first
// writes one final PicoReAuth built under the engine's current phase;
// that message does not announce STOP. No SetTimeout callback is made,
// so a timer the host armed earlier is not cancelled here.
func (f *FsmPico) Stop() {
	if f.state == ProverPicoReAuth || f.state == ProverServiceReAuth {
		if out, err := f.engine.BuildPicoReAuth(f.outboundExtraData); err == nil && f.cb.Write != nil {
			f.cb.Write([]byte(out.Serialize()))
		}
	}
	if f.cb.Disconnect != nil {
		f.cb.Disconnect()
	}
	f.enter(ProverFin)
}

// Connected is the host event fired once the transport is ready to
// send; only meaningful in state START.
func (f *FsmPico) Connected() error {
	if f.state != ProverStart {
		err := &Error{Message: "fsm: unexpected connected event in state " + f.state.String()}
		f.fail(err)
		return err
	}
	ephemeral, err := session.NewEphemeral()
	if err != nil {
		f.fail(err)
		return err
	}
	nonce, err := session.NewNonce()
	if err != nil {
		f.fail(err)
		return err
	}
	f.st = &session.State{PicoEphemeral: ephemeral, PicoEphemPub: ephemeral.Public(), PicoNonce: nonce}

	out, err := messages.EncodeStart(&messages.Start{PicoVersion: 2, PicoEphemeralPublicKey: ephemeral.Public(), PicoNonce: nonce})
	if err != nil {
		f.fail(err)
		return err
	}
	if f.cb.Write != nil {
		f.cb.Write([]byte(out.Serialize()))
	}
	if f.cb.SetTimeout != nil {
		f.cb.SetTimeout(f.startTimeoutMs)
	}
	f.enter(ProverServiceAuth)
	return nil
}

// Read delivers one inbound frame; its meaning depends on the current
// state.
func (f *FsmPico) Read(data []byte) error {
	switch f.state {
	case ProverServiceAuth:
		return f.handleServiceAuth(data)
	case ProverStatus:
		return f.handleStatus(data)
	case ProverPicoReAuth:
		return f.handleServiceReAuth(data)
	default:
		err := &Error{Message: "fsm: unexpected read in state " + f.state.String()}
		f.fail(err)
		return err
	}
}

func (f *FsmPico) handleServiceAuth(data []byte) error {
	o, err := parseFrame(data)
	if err != nil {
		f.fail(err)
		return err
	}
	pub, nonce, sessionID, err := peekServiceAuthFields(o)
	if err != nil {
		f.fail(err)
		return err
	}
	f.st.ServiceEphemPub = pub
	f.st.ServiceNonce = nonce
	f.st.DeriveKeys(f.st.PicoEphemeral, pub)

	decoded, err := messages.DecodeServiceAuth(o, f.st.PicoNonce, f.st.PicoEphemPub, f.st.VMacKey, f.st.VEncKey)
	if err != nil {
		f.fail(err)
		return err
	}
	f.st.ServiceIdentPub = decoded.ServiceIdentityPub
	f.enter(ProverPicoAuth) // transient: the service's auth step has been consumed, now respond

	out, err := messages.EncodePicoAuth(&messages.PicoAuth{SessionID: sessionID, ExtraData: f.outboundExtraData}, nonce, f.st.PicoEphemPub, f.picoIdentity, f.st.PMacKey, f.st.PEncKey)
	if err != nil {
		f.fail(err)
		return err
	}
	if f.cb.Write != nil {
		f.cb.Write([]byte(out.Serialize()))
	}
	if f.cb.SetTimeout != nil {
		f.cb.SetTimeout(f.startTimeoutMs)
	}
	f.enter(ProverStatus)
	return nil
}

func (f *FsmPico) handleStatus(data []byte) error {
	o, err := parseFrame(data)
	if err != nil {
		f.fail(err)
		return err
	}
	status, err := messages.DecodeStatus(o, f.st.VEncKey)
	if err != nil {
		f.fail(err)
		return err
	}
	f.st.LastStatus = byte(status.Code)
	f.receivedExtraData = status.ExtraData
	f.enter(ProverAuthenticated)
	if f.cb.Authenticated != nil {
		f.cb.Authenticated(status.Code, status.ExtraData)
	}

	if status.Code != messages.StatusOKContinue {
		if f.cb.Disconnect != nil {
			f.cb.Disconnect()
		}
		f.enter(ProverFin)
		return nil
	}
	return f.startContinuous()
}

func (f *FsmPico) startContinuous() error {
	f.enter(ProverContStartPico)
	f.cfg.SharedKey = f.st.SharedKey
	engine, err := continuous.NewEngine(f.cfg)
	if err != nil {
		f.fail(err)
		return err
	}
	f.engine = engine
	return f.sendPicoReAuth()
}

func (f *FsmPico) sendPicoReAuth() error {
	out, err := f.engine.BuildPicoReAuth(f.outboundExtraData)
	if err != nil {
		f.fail(err)
		return err
	}
	if f.cb.Write != nil {
		f.cb.Write([]byte(out.Serialize()))
	}
	if f.cb.SetTimeout != nil {
		f.cb.SetTimeout(f.cfg.ActiveTimeoutMs)
	}
	f.enter(ProverPicoReAuth)
	return nil
}

func (f *FsmPico) handleServiceReAuth(data []byte) error {
	o, err := parseFrame(data)
	if err != nil {
		f.fail(err)
		return err
	}
	msg, waitMs, err := f.engine.HandleServiceReAuth(o)
	if err != nil {
		f.fail(err)
		return err
	}
	f.receivedExtraData = msg.ExtraData
	f.enter(ProverServiceReAuth)

	if f.engine.Stopped() {
		if f.cb.SessionEnded != nil {
			f.cb.SessionEnded()
		}
		if f.cb.Disconnect != nil {
			f.cb.Disconnect()
		}
		f.enter(ProverFin)
		return nil
	}

	out, err := f.engine.BuildPicoReAuth(f.outboundExtraData)
	if err != nil {
		f.fail(err)
		return err
	}
	if f.cb.Write != nil {
		f.cb.Write([]byte(out.Serialize()))
	}
	if f.cb.SetTimeout != nil {
		f.cb.SetTimeout(waitMs)
	}
	f.enter(ProverPicoReAuth)
	return nil
}

// Timeout is the host event fired when the armed timer expires without
// a matching Read. In the continuous phase it re-arms the transport
// (§4.8 "re-arms listen socket"); everywhere else it is fatal.
func (f *FsmPico) Timeout() error {
	if f.state == ProverPicoReAuth {
		if f.cb.Reconnect != nil {
			f.cb.Reconnect()
		}
		if f.cb.SetTimeout != nil {
			f.cb.SetTimeout(f.cfg.ActiveTimeoutMs)
		}
		return nil
	}
	err := &Error{Message: "fsm: timeout in state " + f.state.String()}
	f.fail(err)
	return err
}

// Disconnected is the host event fired when the transport drops.
func (f *FsmPico) Disconnected() error {
	if f.state == ProverFin || f.state == ProverError {
		return nil
	}
	err := &Error{Message: "fsm: transport disconnected in state " + f.state.String()}
	f.fail(err)
	return err
}
