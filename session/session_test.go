package session

import "testing"

func TestDeriveKeysMatchBothSides(t *testing.T) {
	proverEph, err := NewEphemeral()
	if err != nil {
		t.Fatalf("prover ephemeral: %v", err)
	}
	serviceEph, err := NewEphemeral()
	if err != nil {
		t.Fatalf("service ephemeral: %v", err)
	}
	pn, _ := NewNonce()
	sn, _ := NewNonce()

	proverSide := &State{PicoNonce: pn, ServiceNonce: sn}
	serviceSide := &State{PicoNonce: pn, ServiceNonce: sn}

	proverSide.DeriveKeys(proverEph, serviceEph.Public())
	serviceSide.DeriveKeys(serviceEph, proverEph.Public())

	if !proverSide.KeysDefined() || !serviceSide.KeysDefined() {
		t.Fatalf("expected both sides to have defined keys")
	}
	if string(proverSide.SharedKey) != string(serviceSide.SharedKey) {
		t.Fatalf("shared key mismatch between sides")
	}
	if string(proverSide.PMacKey) != string(serviceSide.PMacKey) {
		t.Fatalf("pMacKey mismatch between sides")
	}
	if len(proverSide.PMacKey) != 32 || len(proverSide.VMacKey) != 32 {
		t.Fatalf("mac key length wrong")
	}
	if len(proverSide.PEncKey) != 16 || len(proverSide.VEncKey) != 16 || len(proverSide.SharedKey) != 16 {
		t.Fatalf("enc key length wrong")
	}
}

func TestKeysUndefinedBeforeDerive(t *testing.T) {
	s := &State{}
	if s.KeysDefined() {
		t.Fatalf("expected keys undefined before DeriveKeys")
	}
}
