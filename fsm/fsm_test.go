package fsm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vertexhub/libpico/continuous"
	"github.com/vertexhub/libpico/fsm"
	"github.com/vertexhub/libpico/messages"
	"github.com/vertexhub/libpico/picocrypto"
	"github.com/vertexhub/libpico/users"
)

// TestFullRunThenReauthRounds wires FsmPico and FsmService together
// through explicit message queues (Write only enqueues; nothing is
// delivered until the test pops it) — the asynchronous host model
// §4.8 assumes, as opposed to a blocking transport. It exercises the
// full handshake through OK_CONTINUE and then the S5 reauth sequence:
// acknowledgements CONTINUE, CONTINUE, PAUSE, CONTINUE, STOP. Every
// timeout the prover arms is checked: the start timeout after Start and
// after PicoAuth, the active timeout after the first PicoReAuth, then
// the announced timeout (after leeway) on the four non-terminal rounds.
func TestFullRunThenReauthRounds(t *testing.T) {
	serviceIdentity, err := picocrypto.GenerateKeyPair()
	require.NoError(t, err)
	picoIdentity, err := picocrypto.GenerateKeyPair()
	require.NoError(t, err)

	commitment, err := picocrypto.Commitment(picoIdentity.Public())
	require.NoError(t, err)
	store := users.New()
	require.NoError(t, store.Add(&users.Entry{Name: "alice", PublicKey: picoIdentity.Public(), Commitment: commitment}))

	cfg := continuous.Config{ActiveTimeoutMs: 1000, PausedTimeoutMs: 5000, TimeoutLeewayMs: 100}

	var toService, toPico [][]byte
	var proverTimeouts []int
	var proverAuthStatus messages.StatusByte
	var proverSessionEnded, verifierSessionEnded bool

	var picoFsm *fsm.FsmPico
	var serviceFsm *fsm.FsmService

	picoFsm = fsm.NewFsmPico(picoIdentity, cfg, 2000, fsm.PicoCallbacks{
		Write:      func(msg []byte) { toService = append(toService, msg) },
		SetTimeout: func(ms int) { proverTimeouts = append(proverTimeouts, ms) },
		Authenticated: func(status messages.StatusByte, extraData []byte) {
			proverAuthStatus = status
		},
		SessionEnded: func() { proverSessionEnded = true },
		Error:        func(err error) { t.Fatalf("prover fsm error: %v", err) },
	})
	serviceFsm = fsm.NewFsmService(serviceIdentity, store, true, []byte("welcome"), cfg, 2000, fsm.ServiceCallbacks{
		Write:        func(msg []byte) { toPico = append(toPico, msg) },
		SessionEnded: func() { verifierSessionEnded = true },
		Error:        func(err error) { t.Fatalf("verifier fsm error: %v", err) },
	})

	pop := func(q *[][]byte) []byte {
		require.NotEmpty(t, *q)
		msg := (*q)[0]
		*q = (*q)[1:]
		return msg
	}

	require.NoError(t, serviceFsm.Connected())
	require.NoError(t, picoFsm.Connected())

	// Start -> ServiceAuth -> PicoAuth -> Status -> PicoReAuth(round 0)
	// -> ServiceReAuth(round 0, implicit CONTINUE) -> PicoReAuth(round 1).
	require.NoError(t, serviceFsm.Read(pop(&toService))) // Start
	require.NoError(t, picoFsm.Read(pop(&toPico)))        // ServiceAuth
	require.NoError(t, serviceFsm.Read(pop(&toService)))  // PicoAuth
	require.NoError(t, picoFsm.Read(pop(&toPico)))        // Status
	require.Equal(t, messages.StatusOKContinue, proverAuthStatus)

	require.NoError(t, serviceFsm.Read(pop(&toService))) // PicoReAuth round 0
	require.NoError(t, picoFsm.Read(pop(&toPico)))        // ServiceReAuth round 0 (implicit CONTINUE)

	phases := []continuous.ReauthPhase{continuous.PhaseContinue, continuous.PhasePause, continuous.PhaseContinue, continuous.PhaseStopped}
	for _, phase := range phases {
		serviceFsm.SetNextReauthPhase(phase)
		require.NoError(t, serviceFsm.Read(pop(&toService))) // PicoReAuth
		require.NoError(t, picoFsm.Read(pop(&toPico)))        // ServiceReAuth
	}

	require.Empty(t, toService)
	require.Empty(t, toPico)
	require.Equal(t, fsm.ProverFin, picoFsm.State())
	require.Equal(t, fsm.VerifierFin, serviceFsm.State())
	require.True(t, proverSessionEnded)
	require.True(t, verifierSessionEnded)

	wantLeeway := cfg.TimeoutLeewayMs
	wantActive := cfg.ActiveTimeoutMs - wantLeeway
	wantPaused := cfg.PausedTimeoutMs - wantLeeway
	require.Equal(t, []int{2000, 2000, cfg.ActiveTimeoutMs, wantActive, wantActive, wantPaused, wantActive}, proverTimeouts)
}

// TestRejectsUnauthorizedIdentity exercises the AUTHFAILED path: a
// non-empty user store that does not contain the prover's identity.
func TestRejectsUnauthorizedIdentity(t *testing.T) {
	serviceIdentity, err := picocrypto.GenerateKeyPair()
	require.NoError(t, err)
	picoIdentity, err := picocrypto.GenerateKeyPair()
	require.NoError(t, err)
	otherIdentity, err := picocrypto.GenerateKeyPair()
	require.NoError(t, err)

	commitment, err := picocrypto.Commitment(otherIdentity.Public())
	require.NoError(t, err)
	store := users.New()
	require.NoError(t, store.Add(&users.Entry{Name: "bob", PublicKey: otherIdentity.Public(), Commitment: commitment}))

	cfg := continuous.Config{ActiveTimeoutMs: 1000, PausedTimeoutMs: 5000, TimeoutLeewayMs: 100}

	var toService, toPico [][]byte
	var proverAuthStatus messages.StatusByte

	picoFsm := fsm.NewFsmPico(picoIdentity, cfg, 2000, fsm.PicoCallbacks{
		Write: func(msg []byte) { toService = append(toService, msg) },
		Authenticated: func(status messages.StatusByte, extraData []byte) {
			proverAuthStatus = status
		},
		Error: func(err error) { t.Fatalf("prover fsm error: %v", err) },
	})
	serviceFsm := fsm.NewFsmService(serviceIdentity, store, true, nil, cfg, 2000, fsm.ServiceCallbacks{
		Write: func(msg []byte) { toPico = append(toPico, msg) },
		Error: func(err error) { t.Fatalf("verifier fsm error: %v", err) },
	})

	pop := func(q *[][]byte) []byte {
		require.NotEmpty(t, *q)
		msg := (*q)[0]
		*q = (*q)[1:]
		return msg
	}

	require.NoError(t, serviceFsm.Connected())
	require.NoError(t, picoFsm.Connected())
	require.NoError(t, serviceFsm.Read(pop(&toService))) // Start
	require.NoError(t, picoFsm.Read(pop(&toPico)))        // ServiceAuth
	require.NoError(t, serviceFsm.Read(pop(&toService)))  // PicoAuth
	require.NoError(t, picoFsm.Read(pop(&toPico)))        // Status

	require.Equal(t, messages.StatusRejected, proverAuthStatus)
	require.Equal(t, fsm.VerifierFin, serviceFsm.State())
	require.Equal(t, fsm.ProverFin, picoFsm.State())
}

// TestReadInWrongStateTransitionsToError exercises the Sequencing
// fault path (§7): an inbound message not expected in the current
// state drives the FSM to ERROR and calls the Error callback.
func TestReadInWrongStateTransitionsToError(t *testing.T) {
	serviceIdentity, err := picocrypto.GenerateKeyPair()
	require.NoError(t, err)

	cfg := continuous.Config{ActiveTimeoutMs: 1000, PausedTimeoutMs: 5000, TimeoutLeewayMs: 100}
	var errored bool
	serviceFsm := fsm.NewFsmService(serviceIdentity, nil, false, nil, cfg, 2000, fsm.ServiceCallbacks{
		Error: func(err error) { errored = true },
	})

	// CONNECT state does not accept Read.
	err = serviceFsm.Read([]byte(`{}`))
	require.Error(t, err)
	require.True(t, errored)
	require.Equal(t, fsm.VerifierError, serviceFsm.State())
}
