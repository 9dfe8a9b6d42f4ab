// Copyright (c) 2024 The chialisten developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package blockchain implements the block interpreter (spec §4.4): it
// skip-parses a raw FullBlock body, extracts the transactions generator
// and its back-reference heights, runs the generator and each spend's
// puzzle reveal on the clvm VM, and folds the resulting conditions into a
// ParsedBlock describing the block's coin effects.
package blockchain

import (
	"github.com/dig-network/chialisten/amount"
	"github.com/dig-network/chialisten/chainhash"
	"github.com/dig-network/chialisten/clvm"
	"github.com/dig-network/chialisten/math/uint256"
)

// Coin is a triple uniquely identifying a unit of value (spec §3.2).
type Coin struct {
	Parent     chainhash.Hash
	PuzzleHash chainhash.Hash
	Amount     amount.Amount
}

// ID computes coin_id = H(parent || puzzle_hash || amount_be_minimal), the
// coin's identity (spec §3.2).
func (c Coin) ID() chainhash.Hash {
	buf := make([]byte, 0, chainhash.HashSize*2+8)
	buf = append(buf, c.Parent[:]...)
	buf = append(buf, c.PuzzleHash[:]...)
	buf = append(buf, clvm.Uint64ToAtom(uint64(c.Amount))...)
	return chainhash.HashH(buf)
}

// Condition is a puzzle-emitted instruction (spec §4.4.4). Opcode is the
// first element of the condition atom list; Args holds the remaining
// elements as raw clvm Nodes, uninterpreted beyond opcodes this package
// recognizes for coin-effect purposes.
type Condition struct {
	Opcode uint64
	Args   []clvm.Node
}

// Recognized condition opcodes (spec §4.4.4).
const (
	ConditionCreateCoin = uint64(51)
	ConditionReserveFee = uint64(52)
)

// Spend is one coin's consumption together with its reveal, solution, and
// derived effects (spec §3.2).
type Spend struct {
	Coin         Coin
	PuzzleReveal []byte
	Solution     []byte
	CreatedCoins []Coin
	Conditions   []Condition
}

// ParsedBlock is the interpreter's output (spec §3.3).
type ParsedBlock struct {
	Height          uint32
	Weight          uint256.Weight
	HeaderHash      chainhash.Hash
	PrevHeaderHash  chainhash.Hash
	Timestamp       *uint64 // present iff transaction block
	HasGenerator    bool
	GeneratorSize   uint32
	CoinAdditions   []Coin
	CoinRemovals    []Coin
	CoinSpends      []Spend
	RewardClaims    []Coin
	TotalFees       amount.Amount // transactions_info fees (0 if absent) plus every RESERVE_FEE (spec §4.4.4)
}
