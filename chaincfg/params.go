// Copyright (c) 2024 The chialisten developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

// DNSSeed is a hostname used to bootstrap initial peer addresses.
type DNSSeed struct {
	Host string
	// HasFullNode indicates the seed only returns addresses of nodes
	// believed to be capable of serving full blocks.
	HasFullNode bool
}

// Params defines the parameters a Pool needs to hand a peer session
// before it will consider a connection viable (spec §4.3.1): the
// network it should claim and require of peers, the protocol version it
// advertises, and how to find other peers on first connect.
type Params struct {
	Name string

	// NetworkID and ProtocolVersion are the handshake fields a session
	// requires to match (within ProtocolVersion's compatibility rule)
	// before considering itself viable (spec §4.3.1).
	NetworkID       string
	ProtocolVersion string

	DefaultPort string
	DNSSeeds    []DNSSeed
}

// MainNetParams returns the parameters for the main production network.
func MainNetParams() *Params {
	return &Params{
		Name:            "mainnet",
		NetworkID:       "mainnet",
		ProtocolVersion: "0.0.36",
		DefaultPort:     "8444",
		DNSSeeds: []DNSSeed{
			{"dns-introducer.chia.net", true},
			{"chia.ctrlaltdel.ch", true},
			{"seeder.dexie.space", true},
		},
	}
}

// TestNetParams returns the parameters for the public test network.
func TestNetParams() *Params {
	return &Params{
		Name:            "testnet11",
		NetworkID:       "testnet11",
		ProtocolVersion: "0.0.36",
		DefaultPort:     "58444",
		DNSSeeds: []DNSSeed{
			{"dns-introducer-testnet11.chia.net", true},
		},
	}
}

// SimNetParams returns parameters for a private, seedless network used
// for local integration testing. There must NOT be any seeds.
func SimNetParams() *Params {
	return &Params{
		Name:            "simnet",
		NetworkID:       "simnet",
		ProtocolVersion: "0.0.36",
		DefaultPort:     "18444",
		DNSSeeds:        nil,
	}
}
