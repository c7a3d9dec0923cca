package commitment_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/gatemint/gatemint/internal/commitment"
)

func TestParseAddress_roundTrip(t *testing.T) {
	in := "0x00112233445566778899aabbccddeeff00112233"
	a, err := commitment.ParseAddress(in)
	if err != nil {
		t.Fatal(err)
	}
	if a.String() != in {
		t.Errorf("round trip: got %q, want %q", a.String(), in)
	}
	if a.IsZero() {
		t.Error("non-zero address reported as zero")
	}
}

func TestParseAddress_malformed(t *testing.T) {
	cases := []string{
		"", // empty
		"00112233445566778899aabbccddeeff00112233", // missing prefix
		"0x0011", // too short
		"0x00112233445566778899aabbccddeeff0011223344", // too long
		"0x00112233445566778899aabbccddeeff001122zz",   // bad hex
	}
	for _, in := range cases {
		if _, err := commitment.ParseAddress(in); !errors.Is(err, commitment.ErrMalformed) {
			t.Errorf("ParseAddress(%q): got %v, want ErrMalformed", in, err)
		}
	}
}

func TestParseRoot_widthEnforced(t *testing.T) {
	ok := "0x" + strings.Repeat("ab", 32)
	r, err := commitment.ParseRoot(ok)
	if err != nil {
		t.Fatal(err)
	}
	if r.String() != ok {
		t.Errorf("round trip: got %q, want %q", r.String(), ok)
	}

	for _, in := range []string{"0x" + strings.Repeat("ab", 31), "0x" + strings.Repeat("ab", 33), "0x"} {
		if _, err := commitment.ParseRoot(in); !errors.Is(err, commitment.ErrMalformed) {
			t.Errorf("ParseRoot(%q): got %v, want ErrMalformed", in, err)
		}
	}
}

func TestRootFromBytes_widthEnforced(t *testing.T) {
	if _, err := commitment.RootFromBytes(make([]byte, 31)); !errors.Is(err, commitment.ErrMalformed) {
		t.Errorf("31 bytes: got %v, want ErrMalformed", err)
	}
	raw := bytes.Repeat([]byte{0x7f}, 32)
	r, err := commitment.RootFromBytes(raw)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(r[:], raw) {
		t.Error("RootFromBytes mangled the value")
	}
}

func TestDigest_deterministic(t *testing.T) {
	a, _ := commitment.ParseAddress("0x00112233445566778899aabbccddeeff00112233")
	d1 := commitment.Digest(a, []byte("credential"))
	d2 := commitment.Digest(a, []byte("credential"))
	if d1 != d2 {
		t.Error("same inputs produced different digests")
	}
	if d1.IsZero() {
		t.Error("digest of real input is the zero sentinel")
	}

	d3 := commitment.Digest(a, []byte("other"))
	if d1 == d3 {
		t.Error("different credentials produced the same digest")
	}

	b, _ := commitment.ParseAddress("0xffeeddccbbaa99887766554433221100ffeeddcc")
	d4 := commitment.Digest(b, []byte("credential"))
	if d1 == d4 {
		t.Error("different actors produced the same digest")
	}
}

func TestAddress_textMarshalling(t *testing.T) {
	a, _ := commitment.ParseAddress("0x00112233445566778899aabbccddeeff00112233")
	text, err := a.MarshalText()
	if err != nil {
		t.Fatal(err)
	}
	var back commitment.Address
	if err := back.UnmarshalText(text); err != nil {
		t.Fatal(err)
	}
	if back != a {
		t.Errorf("text round trip: got %v, want %v", back, a)
	}
}
