// Copyright (c) 2024 The chialisten developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chaincfg defines the per-network parameters a peer session and
// pool need to agree with a remote peer: the network_id and
// protocol_version exchanged during the handshake (spec §4.3.1), the
// default serving port, and the DNS seeds used to bootstrap peer
// discovery.
//
// For main packages, a (typically global) var is assigned one of the
// standard Params vars for use as the application's active network.
//
//	var network = flag.String("network", "mainnet", "network to connect to")
//
//	var params = chaincfg.MainNetParams()
//
//	func main() {
//		flag.Parse()
//		if *network == "testnet" {
//			params = chaincfg.TestNetParams()
//		}
//	}
package chaincfg
