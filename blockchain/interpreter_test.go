// Copyright (c) 2024 The chialisten developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"math/big"
	"testing"

	"github.com/dig-network/chialisten/amount"
	"github.com/dig-network/chialisten/chainhash"
	"github.com/dig-network/chialisten/clvm"
	"github.com/dig-network/chialisten/math/uint256"
)

func repeatHash(b byte) chainhash.Hash {
	var h chainhash.Hash
	for i := range h {
		h[i] = b
	}
	return h
}

func intNode(v int64) clvm.Node {
	return clvm.Atom(clvm.IntToAtom(big.NewInt(v)))
}

func baseBlockInput() *FullBlockInput {
	return &FullBlockInput{
		PrevHeaderHash: repeatHash(0x01),
		Height:         100,
		Weight:         uint256.NewFromUint64(42),
		Foliage: FoliageInput{
			PrevHeaderHash:         repeatHash(0x01),
			RewardBlockHash:        repeatHash(0x02),
			FarmerRewardPuzzleHash: repeatHash(0x03),
			ExtensionData:          repeatHash(0x04),
		},
		FoliageTransactionBlock: &FoliageTransactionBlockInput{
			PrevTransactionBlockHash: repeatHash(0x05),
			Timestamp:                1_700_000_000,
		},
	}
}

// S1: an empty-generator block yields no spends and coin_additions equal
// to reward_claims alone.
func TestParseBlockEmptyGenerator(t *testing.T) {
	rewardCoin := Coin{Parent: repeatHash(0xAA), PuzzleHash: repeatHash(0xBB), Amount: 2_000_000_000}
	in := baseBlockInput()
	in.TransactionsInfo = &TransactionsInfoInput{
		GeneratorRoot:     repeatHash(0x06),
		GeneratorRefsRoot: repeatHash(0x07),
		RewardClaims:      []Coin{rewardCoin},
	}

	blockBytes, err := EncodeFullBlock(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	pb, err := ParseBlock(blockBytes, NoBackRefs, 0, 0)
	if err != nil {
		t.Fatalf("ParseBlock: %v", err)
	}
	if pb.HasGenerator {
		t.Fatal("HasGenerator should be false")
	}
	if len(pb.CoinSpends) != 0 || len(pb.CoinRemovals) != 0 {
		t.Fatalf("expected no spends/removals, got %d/%d", len(pb.CoinSpends), len(pb.CoinRemovals))
	}
	if len(pb.CoinAdditions) != 1 || pb.CoinAdditions[0] != rewardCoin {
		t.Fatalf("expected coin_additions == reward_claims, got %#v", pb.CoinAdditions)
	}
}

// S2: a single-spend block whose puzzle, when run, emits exactly one
// CREATE_COIN. The puzzle is (q . conditions), a literal quoted condition
// list - the simplest legal puzzle that always returns the same
// conditions regardless of its solution (see DESIGN.md for why this
// stands in for spec.md's shorthand "(q . 0x80)" puzzle literal).
func TestParseBlockSingleSpend(t *testing.T) {
	parent := repeatHash(0x11)
	createdPuzzleHash := repeatHash(0x22)

	createCoin := clvm.ListOf(intNode(int64(ConditionCreateCoin)), clvm.Atom(createdPuzzleHash[:]), intNode(700))
	conditions := clvm.ListOf(createCoin)
	puzzle := clvm.Cons(intNode(1), conditions) // (q . conditions); opcode 1 == OpQuote
	puzzleBytes, err := clvm.Serialize(puzzle)
	if err != nil {
		t.Fatalf("serialize puzzle: %v", err)
	}

	solutionBytes, err := clvm.Serialize(clvm.Nil)
	if err != nil {
		t.Fatalf("serialize solution: %v", err)
	}

	descriptor := clvm.ListOf(
		clvm.Atom(parent[:]),
		clvm.Atom(puzzleBytes),
		intNode(1000),
		clvm.Atom(solutionBytes),
	)
	generator := clvm.Cons(intNode(1), clvm.ListOf(descriptor)) // (q . (descriptor))
	generatorBytes, err := clvm.Serialize(generator)
	if err != nil {
		t.Fatalf("serialize generator: %v", err)
	}

	in := baseBlockInput()
	in.TransactionsInfo = &TransactionsInfoInput{
		GeneratorRoot:     repeatHash(0x06),
		GeneratorRefsRoot: repeatHash(0x07),
	}
	in.TransactionsGenerator = generatorBytes

	blockBytes, err := EncodeFullBlock(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	pb, err := ParseBlock(blockBytes, NoBackRefs, 0, 0)
	if err != nil {
		t.Fatalf("ParseBlock: %v", err)
	}
	if len(pb.CoinSpends) != 1 {
		t.Fatalf("expected 1 spend, got %d", len(pb.CoinSpends))
	}
	spend := pb.CoinSpends[0]
	wantPuzzleHash := clvm.TreeHash(puzzle)
	if spend.Coin.Parent != parent {
		t.Fatalf("coin.parent mismatch")
	}
	if spend.Coin.PuzzleHash != wantPuzzleHash {
		t.Fatalf("coin.puzzle_hash mismatch: got %s, want %s", spend.Coin.PuzzleHash, wantPuzzleHash)
	}
	if spend.Coin.Amount != 1000 {
		t.Fatalf("coin.amount = %d, want 1000", spend.Coin.Amount)
	}

	if len(spend.CreatedCoins) != 1 {
		t.Fatalf("expected 1 created coin, got %d", len(spend.CreatedCoins))
	}
	created := spend.CreatedCoins[0]
	if created.Parent != spend.Coin.ID() {
		t.Fatalf("created coin parent should be spent coin's id")
	}
	if created.PuzzleHash != createdPuzzleHash {
		t.Fatalf("created coin puzzle_hash mismatch")
	}
	if created.Amount != 700 {
		t.Fatalf("created coin amount = %d, want 700", created.Amount)
	}

	if len(pb.CoinAdditions) != 1 || pb.CoinAdditions[0] != created {
		t.Fatalf("coin_additions should contain exactly the created coin, got %#v", pb.CoinAdditions)
	}
	if len(pb.CoinRemovals) != 1 || pb.CoinRemovals[0] != spend.Coin {
		t.Fatalf("coin_removals should contain exactly the spent coin")
	}
}

// S3: a block whose ref_list names a height the resolver cannot supply
// fails with MissingBackRefError; the same block with a resolver that can
// supply it parses successfully.
func TestParseBlockBackRef(t *testing.T) {
	generator := clvm.Cons(intNode(1), clvm.Nil) // (q . ()): ignores its environment, zero spends
	generatorBytes, err := clvm.Serialize(generator)
	if err != nil {
		t.Fatalf("serialize generator: %v", err)
	}

	in := baseBlockInput()
	in.TransactionsInfo = &TransactionsInfoInput{
		GeneratorRoot:     repeatHash(0x06),
		GeneratorRefsRoot: repeatHash(0x07),
	}
	in.TransactionsGenerator = generatorBytes
	in.GeneratorRefList = []uint32{5}

	blockBytes, err := EncodeFullBlock(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	_, err = ParseBlock(blockBytes, NoBackRefs, 0, 0)
	if err == nil {
		t.Fatal("expected MissingBackRefError")
	}
	bcErr, ok := err.(*Error)
	if !ok || bcErr.Kind != ErrMissingBackRef {
		t.Fatalf("got %v, want ErrMissingBackRef", err)
	}
	if len(bcErr.Heights) != 1 || bcErr.Heights[0] != 5 {
		t.Fatalf("Heights = %v, want [5]", bcErr.Heights)
	}

	resolver := StaticResolver{5: []byte("generator bytes for height 5")}
	pb, err := ParseBlock(blockBytes, resolver, 0, 0)
	if err != nil {
		t.Fatalf("ParseBlock with resolver: %v", err)
	}
	if len(pb.CoinSpends) != 0 {
		t.Fatalf("expected 0 spends, got %d", len(pb.CoinSpends))
	}
}

// I2/I3: for a multi-spend block, coin_removals matches coin_spends 1:1
// and coin_additions is exactly reward_claims plus all created_coins.
func TestParseBlockInvariantsMultiSpend(t *testing.T) {
	rewardCoin := Coin{Parent: repeatHash(0xAA), PuzzleHash: repeatHash(0xBB), Amount: 1_000_000_000}

	buildDescriptor := func(parentByte byte, createdByte byte, amt int64, createdAmt int64) clvm.Node {
		createCoin := clvm.ListOf(intNode(int64(ConditionCreateCoin)), clvm.Atom(repeatHash(createdByte)[:]), intNode(createdAmt))
		puzzle := clvm.Cons(intNode(1), clvm.ListOf(createCoin))
		puzzleBytes, _ := clvm.Serialize(puzzle)
		solutionBytes, _ := clvm.Serialize(clvm.Nil)
		return clvm.ListOf(
			clvm.Atom(repeatHash(parentByte)[:]),
			clvm.Atom(puzzleBytes),
			intNode(amt),
			clvm.Atom(solutionBytes),
		)
	}

	d1 := buildDescriptor(0x11, 0x22, 1000, 700)
	d2 := buildDescriptor(0x33, 0x44, 2000, 1500)
	generator := clvm.Cons(intNode(1), clvm.ListOf(d1, d2))
	generatorBytes, err := clvm.Serialize(generator)
	if err != nil {
		t.Fatalf("serialize generator: %v", err)
	}

	in := baseBlockInput()
	in.TransactionsInfo = &TransactionsInfoInput{
		GeneratorRoot:     repeatHash(0x06),
		GeneratorRefsRoot: repeatHash(0x07),
		RewardClaims:      []Coin{rewardCoin},
	}
	in.TransactionsGenerator = generatorBytes

	blockBytes, err := EncodeFullBlock(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	pb, err := ParseBlock(blockBytes, NoBackRefs, 0, 0)
	if err != nil {
		t.Fatalf("ParseBlock: %v", err)
	}

	if len(pb.CoinSpends) != 2 || len(pb.CoinRemovals) != 2 {
		t.Fatalf("expected 2 spends/removals, got %d/%d", len(pb.CoinSpends), len(pb.CoinRemovals))
	}
	for i, s := range pb.CoinSpends {
		if pb.CoinRemovals[i] != s.Coin {
			t.Fatalf("coin_removals[%d] does not match coin_spends[%d].coin", i, i)
		}
	}

	wantAdditions := len(pb.RewardClaims)
	for _, s := range pb.CoinSpends {
		wantAdditions += len(s.CreatedCoins)
	}
	if len(pb.CoinAdditions) != wantAdditions {
		t.Fatalf("coin_additions has %d entries, want %d", len(pb.CoinAdditions), wantAdditions)
	}
}

// P3: parsing the same bytes with the same back-ref bytes is bit-exact
// deterministic.
func TestParseBlockDeterminism(t *testing.T) {
	generator := clvm.Cons(intNode(1), clvm.Nil)
	generatorBytes, err := clvm.Serialize(generator)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	in := baseBlockInput()
	in.TransactionsInfo = &TransactionsInfoInput{RewardClaims: []Coin{{Parent: repeatHash(0x01), PuzzleHash: repeatHash(0x02), Amount: amount.Amount(5)}}}
	in.TransactionsGenerator = generatorBytes

	blockBytes, err := EncodeFullBlock(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	pb1, err := ParseBlock(blockBytes, NoBackRefs, 0, 0)
	if err != nil {
		t.Fatalf("first parse: %v", err)
	}
	pb2, err := ParseBlock(blockBytes, NoBackRefs, 0, 0)
	if err != nil {
		t.Fatalf("second parse: %v", err)
	}
	if pb1.HeaderHash != pb2.HeaderHash || pb1.Height != pb2.Height || len(pb1.CoinAdditions) != len(pb2.CoinAdditions) {
		t.Fatal("two parses of the same bytes diverged")
	}
}
