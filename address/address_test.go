// Copyright (c) 2024 The chialisten developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package address

import (
	"strings"
	"testing"

	"github.com/dig-network/chialisten/chainhash"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	var ph chainhash.Hash
	for i := range ph {
		ph[i] = byte(i)
	}

	addr, err := Encode(HRPMainNet, ph)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.HasPrefix(addr, HRPMainNet+"1") {
		t.Fatalf("expected address to start with %q, got %q", HRPMainNet+"1", addr)
	}

	gotHRP, gotHash, err := Decode(addr)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if gotHRP != HRPMainNet {
		t.Fatalf("hrp mismatch: got %q want %q", gotHRP, HRPMainNet)
	}
	if gotHash != ph {
		t.Fatalf("puzzle hash mismatch: got %x want %x", gotHash, ph)
	}
}

func TestDecodeRejectsCorruptedChecksum(t *testing.T) {
	var ph chainhash.Hash
	addr, err := Encode(HRPTestNet, ph)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	corrupted := []byte(addr)
	last := corrupted[len(corrupted)-1]
	if last == 'q' {
		corrupted[len(corrupted)-1] = 'p'
	} else {
		corrupted[len(corrupted)-1] = 'q'
	}

	if _, _, err := Decode(string(corrupted)); err == nil {
		t.Fatal("expected Decode to reject a corrupted checksum")
	}
}

func TestDecodeRejectsWrongLengthPayload(t *testing.T) {
	encoded, err := EncodeM(HRPMainNet, []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("EncodeM: %v", err)
	}
	if _, _, err := Decode(encoded); err == nil {
		t.Fatal("expected Decode to reject a payload that isn't 32 bytes")
	}
}
