package memchannel

import "testing"

// TestEchoScenario is S1 from the spec: a peer echoes back exactly
// what it read.
func TestEchoScenario(t *testing.T) {
	writer, reader := Pair()

	msg := []byte("HELLO WORLD!")
	if err := writer.Write(msg); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := reader.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := reader.Write(got); err != nil {
		t.Fatalf("echo write: %v", err)
	}

	echoed, err := writer.Read()
	if err != nil {
		t.Fatalf("echo read: %v", err)
	}
	if string(echoed) != "HELLO WORLD!" {
		t.Fatalf("got %q, want %q", echoed, "HELLO WORLD!")
	}
}

func TestReadTimesOutWhenNoMessage(t *testing.T) {
	a, _ := Pair()
	a.SetTimeout(10_000_000) // 10ms in nanoseconds
	if _, err := a.Read(); err == nil {
		t.Fatalf("expected timeout error")
	}
}

func TestClosedChannelRejectsReadWrite(t *testing.T) {
	a, _ := Pair()
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := a.Write([]byte("x")); err == nil {
		t.Fatalf("expected write on closed channel to fail")
	}
	if _, err := a.Read(); err == nil {
		t.Fatalf("expected read on closed channel to fail")
	}
}
