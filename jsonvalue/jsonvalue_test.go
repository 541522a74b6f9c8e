package jsonvalue

import "testing"

func TestSerializeOrderAndEscaping(t *testing.T) {
	o := New()
	o.SetInt("b", 2)
	o.SetString("a", "line\nbreak \"quoted\" \\slash\\")
	got := o.Serialize()
	want := `{"b":2,"a":"line\nbreak \"quoted\" \\slash\\"}`
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestIntegerVsDecimal(t *testing.T) {
	obj, err := Parse(`{"a": 5, "b": 1.000, "c": -3}`)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if n := obj.GetInteger("a"); n != 5 {
		t.Fatalf("a: got %d", n)
	}
	v, _ := obj.Get("b")
	text, ok := v.AsDecimalText()
	if !ok || text != "1.000" {
		t.Fatalf("b: got %q ok=%v", text, ok)
	}
	if n := obj.GetInteger("c"); n != -3 {
		t.Fatalf("c: got %d", n)
	}
}

func TestEmptyAndNullDeserialize(t *testing.T) {
	for _, in := range []string{"", "   ", "null"} {
		obj, err := Parse(in)
		if err != nil {
			t.Fatalf("parse(%q): %v", in, err)
		}
		if obj.Len() != 0 {
			t.Fatalf("expected empty object for %q", in)
		}
	}
}

func TestReassignKeyChangesTypeAndKeepsPosition(t *testing.T) {
	o := New()
	o.SetInt("x", 1)
	o.SetString("y", "keep")
	o.SetString("x", "now a string")
	if got := o.Keys(); len(got) != 2 || got[0] != "x" || got[1] != "y" {
		t.Fatalf("unexpected key order: %v", got)
	}
	s, ok := o.GetString("x")
	if !ok || s != "now a string" {
		t.Fatalf("got %q ok=%v", s, ok)
	}
}

func TestNonThrowingConversions(t *testing.T) {
	o := New()
	o.SetString("s", "hello")
	o.SetInt("n", 5)

	if n := o.GetInteger("s"); n != 0 {
		t.Fatalf("expected 0 for non-integer, got %d", n)
	}
	if v, ok := o.GetString("n"); ok || v != "" {
		t.Fatalf("expected no value for non-string, got %q ok=%v", v, ok)
	}
	if v, ok := o.GetString("missing"); ok || v != "" {
		t.Fatalf("expected no value for missing key")
	}
}

func TestSerializeParseRoundTrip(t *testing.T) {
	o := New()
	o.SetInt("picoVersion", 2)
	o.SetString("picoNonce", "AQIDBAUGBwg=")
	child := New()
	child.SetString("inner", "value")
	o.SetObject("meta", child)

	text := o.Serialize()
	reparsed, err := Parse(text)
	if err != nil {
		t.Fatalf("reparse error: %v", err)
	}
	if reparsed.Serialize() != text {
		t.Fatalf("round trip mismatch: %q vs %q", reparsed.Serialize(), text)
	}
}

func TestWhitespaceTolerance(t *testing.T) {
	obj, err := Parse("  {  \"a\"  :  1 ,\n\t\"b\" : \"x\" }  ")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if obj.GetInteger("a") != 1 {
		t.Fatalf("a mismatch")
	}
	s, _ := obj.GetString("b")
	if s != "x" {
		t.Fatalf("b mismatch: %q", s)
	}
}
