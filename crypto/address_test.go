package crypto

import (
	"strings"
	"testing"
)

func TestAddressRoundTripBech32(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := key.PubKey().Address()
	encoded := addr.String()
	if !strings.HasPrefix(encoded, string(RefPrefix)+"1") {
		t.Fatalf("expected %s prefix, got %s", RefPrefix, encoded)
	}
	decoded, err := DecodeAddress(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Array() != addr.Array() {
		t.Fatalf("round trip mismatch: %x vs %x", decoded.Bytes(), addr.Bytes())
	}
}

func TestParseAddressAcceptsHexAndBech32(t *testing.T) {
	var raw [AddressLength]byte
	raw[0] = 0xAB
	raw[19] = 0x01
	addr := MustNewAddress(RefPrefix, raw[:])

	fromHex, err := ParseAddress(addr.Hex())
	if err != nil {
		t.Fatalf("parse hex: %v", err)
	}
	if fromHex.Array() != raw {
		t.Fatalf("unexpected hex parse result %x", fromHex.Bytes())
	}
	fromBech, err := ParseAddress("  " + addr.String() + " ")
	if err != nil {
		t.Fatalf("parse bech32: %v", err)
	}
	if fromBech.Array() != raw {
		t.Fatalf("unexpected bech32 parse result %x", fromBech.Bytes())
	}
}

func TestParseAddressRejectsGarbage(t *testing.T) {
	for _, input := range []string{"", "0x1234", "not-an-address"} {
		if _, err := ParseAddress(input); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
}

func TestNewAddressLength(t *testing.T) {
	if _, err := NewAddress(RefPrefix, []byte{1, 2, 3}); err == nil {
		t.Fatalf("expected length error")
	}
	zero := MustNewAddress(RefPrefix, make([]byte, AddressLength))
	if !zero.IsZero() {
		t.Fatalf("expected zero address")
	}
}

func TestPrivateKeyFromBytesDerivesSameAddress(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	restored, err := PrivateKeyFromBytes(key.Bytes())
	if err != nil {
		t.Fatalf("restore key: %v", err)
	}
	if restored.PubKey().Address() != key.PubKey().Address() {
		t.Fatalf("restored key derives a different address")
	}
}
