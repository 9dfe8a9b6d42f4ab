// Copyright (c) 2024 The chialisten developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"reflect"
	"testing"

	"github.com/davecgh/go-spew/spew"
)

func TestSimNetHasNoSeeds(t *testing.T) {
	p := SimNetParams()
	if len(p.DNSSeeds) != 0 {
		t.Fatalf("simnet must not carry DNS seeds, got %d", len(p.DNSSeeds))
	}
}

func TestNetworkParamsAreDistinct(t *testing.T) {
	nets := []*Params{MainNetParams(), TestNetParams(), SimNetParams()}
	seen := make(map[string]bool, len(nets))
	for _, p := range nets {
		if p.NetworkID == "" {
			t.Fatalf("%s: empty network_id", p.Name)
		}
		if p.ProtocolVersion == "" {
			t.Fatalf("%s: empty protocol_version", p.Name)
		}
		if p.DefaultPort == "" {
			t.Fatalf("%s: empty default port", p.Name)
		}
		if seen[p.NetworkID] {
			t.Fatalf("duplicate network_id %q across network params", p.NetworkID)
		}
		seen[p.NetworkID] = true
	}
}

func TestMainNetSeedsMatchKnownSet(t *testing.T) {
	want := []DNSSeed{
		{"dns-introducer.chia.net", true},
		{"chia.ctrlaltdel.ch", true},
		{"seeder.dexie.space", true},
	}
	got := MainNetParams().DNSSeeds
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("mainnet seed set does not match the known set - got %v, want %v",
			spew.Sdump(got), spew.Sdump(want))
	}
}

func TestMainNetSeedsAreFullNodes(t *testing.T) {
	p := MainNetParams()
	if len(p.DNSSeeds) == 0 {
		t.Fatal("mainnet must carry at least one DNS seed")
	}
	for _, seed := range p.DNSSeeds {
		if seed.Host == "" {
			t.Fatal("seed with empty host")
		}
		if !seed.HasFullNode {
			t.Fatalf("seed %s: expected HasFullNode true for mainnet bootstrap", seed.Host)
		}
	}
}
