// Package commitment defines the fixed-width identity and commitment types
// shared by the registrar, verifier, and ledger, plus the Keccak-256 digest
// that binds an actor to a credential.
//
// All decoding is strict: a value that is not exactly the declared width is
// rejected with ErrMalformed rather than truncated or padded.
package commitment

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// AddressLen is the width of an actor address in bytes.
const AddressLen = 20

// RootLen is the width of a verifier root commitment in bytes.
const RootLen = 32

// ErrMalformed is returned when an address, root, or credential fails its
// structural constraints (wrong width, bad hex, empty payload).
var ErrMalformed = errors.New("malformed input")

// Address is an opaque fixed-width actor identifier.
type Address [AddressLen]byte

// ZeroAddress is the null sentinel meaning "no actor" / "no approval".
var ZeroAddress Address

// Root is a fixed-width commitment published by the admin. A credential is
// accepted when it digests to the current root.
type Root [RootLen]byte

// ZeroRoot is the sentinel value of a root that has never been set.
var ZeroRoot Root

// ParseAddress decodes a 0x-prefixed 40-digit hex string into an Address.
func ParseAddress(s string) (Address, error) {
	raw, err := decodeHex(s, AddressLen)
	if err != nil {
		return ZeroAddress, fmt.Errorf("address %q: %w", s, err)
	}
	var a Address
	copy(a[:], raw)
	return a, nil
}

// AddressFromBytes converts a raw byte slice into an Address,
// enforcing the exact width.
func AddressFromBytes(b []byte) (Address, error) {
	if len(b) != AddressLen {
		return ZeroAddress, fmt.Errorf("address must be %d bytes, got %d: %w", AddressLen, len(b), ErrMalformed)
	}
	var a Address
	copy(a[:], b)
	return a, nil
}

// IsZero reports whether the address is the null sentinel.
func (a Address) IsZero() bool { return a == ZeroAddress }

// String returns the 0x-prefixed lowercase hex form.
func (a Address) String() string { return "0x" + hex.EncodeToString(a[:]) }

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseRoot decodes a 0x-prefixed 64-digit hex string into a Root.
func ParseRoot(s string) (Root, error) {
	raw, err := decodeHex(s, RootLen)
	if err != nil {
		return ZeroRoot, fmt.Errorf("root %q: %w", s, err)
	}
	var r Root
	copy(r[:], raw)
	return r, nil
}

// RootFromBytes converts a raw byte slice into a Root, enforcing the exact width.
func RootFromBytes(b []byte) (Root, error) {
	if len(b) != RootLen {
		return ZeroRoot, fmt.Errorf("root must be %d bytes, got %d: %w", RootLen, len(b), ErrMalformed)
	}
	var r Root
	copy(r[:], b)
	return r, nil
}

// IsZero reports whether the root is the never-set sentinel.
func (r Root) IsZero() bool { return r == ZeroRoot }

// String returns the 0x-prefixed lowercase hex form.
func (r Root) String() string { return "0x" + hex.EncodeToString(r[:]) }

// MarshalText implements encoding.TextMarshaler.
func (r Root) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Root) UnmarshalText(text []byte) error {
	parsed, err := ParseRoot(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Digest computes Keccak-256(address || credential) as a Root. This is the
// combination rule the hash-commitment verifier checks submissions against.
func Digest(addr Address, credential []byte) Root {
	h := sha3.NewLegacyKeccak256()
	h.Write(addr[:])
	h.Write(credential)
	var r Root
	copy(r[:], h.Sum(nil))
	return r
}

// decodeHex strict-decodes a 0x-prefixed hex string of exactly want bytes.
func decodeHex(s string, want int) ([]byte, error) {
	body, ok := strings.CutPrefix(s, "0x")
	if !ok {
		return nil, fmt.Errorf("missing 0x prefix: %w", ErrMalformed)
	}
	if len(body) != want*2 {
		return nil, fmt.Errorf("want %d hex digits, got %d: %w", want*2, len(body), ErrMalformed)
	}
	raw, err := hex.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", ErrMalformed)
	}
	return raw, nil
}
