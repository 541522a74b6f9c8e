package fsm

import (
	"github.com/vertexhub/libpico/continuous"
	"github.com/vertexhub/libpico/messages"
	"github.com/vertexhub/libpico/picocrypto"
	"github.com/vertexhub/libpico/session"
	"github.com/vertexhub/libpico/users"
)

// VerifierState enumerates FsmService's states per §4.8's chain:
// CONNECT → START → SERVICEAUTH → PICOAUTH → STATUS →
// AUTHENTICATED/AUTHFAILED → {FIN, CONTSTARTPICO → PICOREAUTH ↔
// SERVICEREAUTH → … → FIN} / ERROR.
type VerifierState int

const (
	VerifierConnect VerifierState = iota
	VerifierStart
	VerifierServiceAuth
	VerifierPicoAuth
	VerifierStatus
	VerifierAuthenticated
	VerifierAuthFailed
	VerifierContStartPico
	VerifierPicoReAuth
	VerifierServiceReAuth
	VerifierFin
	VerifierError
)

func (s VerifierState) String() string {
	switch s {
	case VerifierConnect:
		return "CONNECT"
	case VerifierStart:
		return "START"
	case VerifierServiceAuth:
		return "SERVICEAUTH"
	case VerifierPicoAuth:
		return "PICOAUTH"
	case VerifierStatus:
		return "STATUS"
	case VerifierAuthenticated:
		return "AUTHENTICATED"
	case VerifierAuthFailed:
		return "AUTHFAILED"
	case VerifierContStartPico:
		return "CONTSTARTPICO"
	case VerifierPicoReAuth:
		return "PICOREAUTH"
	case VerifierServiceReAuth:
		return "SERVICEREAUTH"
	case VerifierFin:
		return "FIN"
	case VerifierError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ServiceCallbacks are the host-supplied hooks FsmService drives
// (§4.8). Listen re-arms the transport for the next inbound message
// (the verifier's equivalent of the prover's Reconnect).
type ServiceCallbacks struct {
	Write         func(msg []byte)
	SetTimeout    func(ms int)
	Listen        func()
	Disconnect    func()
	Authenticated func(status messages.StatusByte, extraData []byte)
	SessionEnded  func()
	StatusUpdate  func(state VerifierState)
	Error         func(err error)
}

// FsmService is the event-driven verifier state machine.
type FsmService struct {
	cb    ServiceCallbacks
	cfg   continuous.Config
	state VerifierState

	serviceIdentity *picocrypto.KeyPair
	authorizedUsers *users.Store // nil: admit any identity (pairing mode)
	continuation    bool
	statusExtraData []byte

	st     *session.State
	engine *continuous.Engine

	sessionID         uint32
	nextReauthPhase   continuous.ReauthPhase
	outboundExtraData []byte
	receivedExtraData []byte
	startTimeoutMs    int
}

// NewFsmService constructs a verifier FSM in state CONNECT.
// authorizedUsers == nil admits any successfully authenticating
// identity; continuation selects OK_CONTINUE vs. OK_DONE on success.
func NewFsmService(serviceIdentity *picocrypto.KeyPair, authorizedUsers *users.Store, continuation bool, statusExtraData []byte, cfg continuous.Config, startTimeoutMs int, cb ServiceCallbacks) *FsmService {
	return &FsmService{
		cb:              cb,
		cfg:             cfg,
		state:           VerifierConnect,
		serviceIdentity: serviceIdentity,
		authorizedUsers: authorizedUsers,
		continuation:    continuation,
		statusExtraData: statusExtraData,
		startTimeoutMs:  startTimeoutMs,
		nextReauthPhase: continuous.PhaseContinue,
	}
}

// State reports the machine's current state.
func (f *FsmService) State() VerifierState { return f.state }

// SetOutboundExtraData attaches data to the next outgoing
// ServiceReAuth message.
func (f *FsmService) SetOutboundExtraData(data []byte) { f.outboundExtraData = data }

// GetReceivedExtraData returns the extra data most recently received
// from the prover (a PicoAuth or PicoReAuth payload).
func (f *FsmService) GetReceivedExtraData() []byte { return f.receivedExtraData }

// SetNextReauthPhase chooses the phase (CONTINUE/PAUSE/STOP) announced
// in the next outgoing ServiceReAuth round.
func (f *FsmService) SetNextReauthPhase(phase continuous.ReauthPhase) { f.nextReauthPhase = phase }

func (f *FsmService) enter(state VerifierState) {
	f.state = state
	if f.cb.StatusUpdate != nil {
		f.cb.StatusUpdate(state)
	}
}

func (f *FsmService) fail(err error) {
	f.enter(VerifierError)
	if f.cb.Error != nil {
		f.cb.Error(err)
	}
}

// Stop drives the machine to FIN, emitting a final STOP ServiceReAuth
// if in the continuous phase. No SetTimeout callback is made.
func (f *FsmService) Stop() {
	if f.state == VerifierPicoReAuth || f.state == VerifierServiceReAuth {
		f.nextReauthPhase = continuous.PhaseStopped
		if out, err := f.engine.BuildServiceReAuth(continuous.PhaseStopped, f.outboundExtraData); err == nil && f.cb.Write != nil {
			f.cb.Write([]byte(out.Serialize()))
		}
	}
	if f.cb.Disconnect != nil {
		f.cb.Disconnect()
	}
	f.enter(VerifierFin)
}

// Connected is the host event fired once a prover has connected to
// this transport instance; only meaningful in state CONNECT.
func (f *FsmService) Connected() error {
	if f.state != VerifierConnect {
		err := &Error{Message: "fsm: unexpected connected event in state " + f.state.String()}
		f.fail(err)
		return err
	}
	if f.cb.SetTimeout != nil {
		f.cb.SetTimeout(f.startTimeoutMs)
	}
	f.enter(VerifierStart)
	return nil
}

// Read delivers one inbound frame; its meaning depends on the current
// state.
func (f *FsmService) Read(data []byte) error {
	switch f.state {
	case VerifierStart:
		return f.handleStart(data)
	case VerifierServiceAuth:
		return f.handlePicoAuth(data)
	case VerifierPicoReAuth:
		return f.handlePicoReAuth(data)
	default:
		err := &Error{Message: "fsm: unexpected read in state " + f.state.String()}
		f.fail(err)
		return err
	}
}

func (f *FsmService) handleStart(data []byte) error {
	o, err := parseFrame(data)
	if err != nil {
		f.fail(err)
		return err
	}
	start, err := messages.DecodeStart(o)
	if err != nil {
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
	f.st = &session.State{
		ServiceIdentity:  f.serviceIdentity,
		ServiceIdentPub:  f.serviceIdentity.Public(),
		PicoEphemPub:     start.PicoEphemeralPublicKey,
		ServiceEphemeral: ephemeral,
		ServiceEphemPub:  ephemeral.Public(),
		ServiceNonce:     nonce,
		PicoNonce:        start.PicoNonce,
	}
	f.st.DeriveKeys(ephemeral, start.PicoEphemeralPublicKey)

	sessionID, err := messages.NewSessionID()
	if err != nil {
		f.fail(err)
		return err
	}
	f.sessionID = sessionID

	serviceAuthMsg := &messages.ServiceAuth{ServiceEphemPublicKey: f.st.ServiceEphemPub, ServiceNonce: nonce, SessionID: sessionID}
	out, err := messages.EncodeServiceAuth(serviceAuthMsg, f.st.PicoNonce, f.st.PicoEphemPub, f.serviceIdentity, f.st.VMacKey, f.st.VEncKey)
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
	f.enter(VerifierServiceAuth)
	return nil
}

func (f *FsmService) handlePicoAuth(data []byte) error {
	o, err := parseFrame(data)
	if err != nil {
		f.fail(err)
		return err
	}
	picoAuth, err := messages.DecodePicoAuth(o, f.st.ServiceNonce, f.st.PicoEphemPub, f.st.PMacKey, f.st.PEncKey)
	if err != nil {
		f.fail(err)
		return err
	}
	f.st.PicoIdentPub = picoAuth.PicoIdentityPub
	f.receivedExtraData = picoAuth.ExtraData
	f.enter(VerifierPicoAuth) // transient: PicoAuth consumed, now respond with Status

	authorized := f.isAuthorized(picoAuth.PicoIdentityPub)
	statusCode := messages.StatusRejected
	if authorized {
		if f.continuation {
			statusCode = messages.StatusOKContinue
		} else {
			statusCode = messages.StatusOKDone
		}
	}
	f.st.LastStatus = byte(statusCode)

	out, err := messages.EncodeStatus(&messages.Status{SessionID: f.sessionID, Code: statusCode, ExtraData: f.statusExtraData}, f.st.VEncKey)
	if err != nil {
		f.fail(err)
		return err
	}
	if f.cb.Write != nil {
		f.cb.Write([]byte(out.Serialize()))
	}
	f.enter(VerifierStatus)

	if f.cb.Authenticated != nil {
		f.cb.Authenticated(statusCode, f.statusExtraData)
	}

	if !authorized {
		f.enter(VerifierAuthFailed)
		if f.cb.Disconnect != nil {
			f.cb.Disconnect()
		}
		f.enter(VerifierFin)
		return nil
	}
	f.enter(VerifierAuthenticated)

	if statusCode != messages.StatusOKContinue {
		if f.cb.Disconnect != nil {
			f.cb.Disconnect()
		}
		f.enter(VerifierFin)
		return nil
	}
	return f.startContinuous()
}

func (f *FsmService) startContinuous() error {
	f.enter(VerifierContStartPico)
	f.cfg.SharedKey = f.st.SharedKey
	engine, err := continuous.NewEngine(f.cfg)
	if err != nil {
		f.fail(err)
		return err
	}
	f.engine = engine
	if f.cb.Listen != nil {
		f.cb.Listen()
	}
	if f.cb.SetTimeout != nil {
		f.cb.SetTimeout(f.cfg.ActiveTimeoutMs)
	}
	f.enter(VerifierPicoReAuth)
	return nil
}

func (f *FsmService) handlePicoReAuth(data []byte) error {
	o, err := parseFrame(data)
	if err != nil {
		f.fail(err)
		return err
	}
	msg, err := f.engine.HandlePicoReAuth(o)
	if err != nil {
		f.fail(err)
		return err
	}
	f.receivedExtraData = msg.ExtraData
	f.enter(VerifierServiceReAuth)

	out, err := f.engine.BuildServiceReAuth(f.nextReauthPhase, f.outboundExtraData)
	if err != nil {
		f.fail(err)
		return err
	}
	if f.cb.Write != nil {
		f.cb.Write([]byte(out.Serialize()))
	}

	if f.engine.Stopped() {
		if f.cb.SessionEnded != nil {
			f.cb.SessionEnded()
		}
		if f.cb.Disconnect != nil {
			f.cb.Disconnect()
		}
		f.enter(VerifierFin)
		return nil
	}

	if f.cb.Listen != nil {
		f.cb.Listen()
	}
	if f.cb.SetTimeout != nil {
		f.cb.SetTimeout(f.cfg.ActiveTimeoutMs)
	}
	f.enter(VerifierPicoReAuth)
	return nil
}

// Timeout is the host event fired when the armed timer expires
// without a matching Read. In the continuous phase it re-arms
// listening (§4.8); everywhere else it is fatal.
func (f *FsmService) Timeout() error {
	if f.state == VerifierPicoReAuth {
		if f.cb.Listen != nil {
			f.cb.Listen()
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
func (f *FsmService) Disconnected() error {
	if f.state == VerifierFin || f.state == VerifierError {
		return nil
	}
	err := &Error{Message: "fsm: transport disconnected in state " + f.state.String()}
	f.fail(err)
	return err
}

func (f *FsmService) isAuthorized(picoIdentityPub *picocrypto.PublicKey) bool {
	if f.authorizedUsers == nil {
		return true
	}
	if len(f.authorizedUsers.Entries()) == 0 {
		return false
	}
	_, ok := f.authorizedUsers.Find(picoIdentityPub)
	return ok
}
