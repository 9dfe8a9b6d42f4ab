// Copyright (c) 2024 The chialisten developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"github.com/dig-network/chialisten/amount"
	"github.com/dig-network/chialisten/chainhash"
	"github.com/dig-network/chialisten/clvm"
)

// ParseBlock extracts a ParsedBlock from the raw streamable encoding of a
// FullBlock body (spec §4.4). generatorCostLimit bounds the generator run;
// perSpendCostLimit bounds each individual puzzle-reveal run (spec §4.4.3
// step 3, "per-spend cost budget"). A zero limit means unbounded.
//
// The call either returns a complete, invariant-satisfying ParsedBlock or
// a *Error; partial results are never returned (spec §4.4.7).
func ParseBlock(blockBytes []byte, resolver BackRefResolver, generatorCostLimit, perSpendCostLimit uint64) (*ParsedBlock, error) {
	fields, err := parseBlockFields(blockBytes)
	if err != nil {
		log.Debugf("parse block: structure error: %v", err)
		return nil, err
	}
	log.Tracef("parsed block fields: height=%d has_generator=%v", fields.height, fields.hasGenerator)

	pb := &ParsedBlock{
		Height:         fields.height,
		Weight:         fields.weight,
		HeaderHash:     fields.headerHash(),
		PrevHeaderHash: fields.prevHeaderHash,
		RewardClaims:   fields.rewardClaims,
	}
	if fields.hasFoliageTxBlock {
		ts := fields.timestamp
		pb.Timestamp = &ts
	}
	if fields.hasTransactionsInfo {
		pb.TotalFees = amount.Amount(fields.fees)
	}
	pb.HasGenerator = fields.hasGenerator
	pb.GeneratorSize = fields.generatorSize

	// I1: ¬has_generator ⇒ coin_spends = ∅.
	if !fields.hasGenerator {
		pb.CoinAdditions = append(pb.CoinAdditions, fields.rewardClaims...)
		return pb, nil
	}

	refBytes, missing := resolver.Resolve(fields.refList)
	if len(missing) > 0 {
		return nil, MissingBackRefError(missing)
	}

	env := buildEnvironment(refBytes)

	generatorNode, err := clvm.DeserializeAll(fields.generatorSpan)
	if err != nil {
		return nil, wrapError(ErrBlockStructure, err, "generator bytecode")
	}

	_, result, err := clvm.Run(generatorNode, env, generatorCostLimit)
	if err != nil {
		if vmErr, ok := err.(*clvm.Error); ok && vmErr.Kind == clvm.ErrCostExceeded {
			return nil, newError(ErrCostExceeded, "generator: %s", vmErr.Msg)
		}
		return nil, wrapError(ErrVM, err, "generator run failed")
	}

	descriptors, err := clvm.ToSlice(result)
	if err != nil {
		return nil, wrapError(ErrVM, err, "generator result is not a proper list of spend descriptors")
	}

	coinAdditions := append([]Coin(nil), fields.rewardClaims...)
	var coinRemovals []Coin
	spends := make([]Spend, 0, len(descriptors))

	for i, desc := range descriptors {
		spend, created, err := interpretSpendDescriptor(i, desc, perSpendCostLimit, &pb.TotalFees)
		if err != nil {
			return nil, err
		}
		spends = append(spends, spend)
		coinRemovals = append(coinRemovals, spend.Coin)
		coinAdditions = append(coinAdditions, created...)
	}

	pb.CoinSpends = spends
	pb.CoinRemovals = coinRemovals
	pb.CoinAdditions = coinAdditions

	return pb, nil
}

// buildEnvironment wraps the resolved back-reference generator bodies as a
// proper list of atoms, the environment the current generator is applied
// against (spec §4.4.5).
func buildEnvironment(refBytes [][]byte) clvm.Node {
	items := make([]clvm.Node, len(refBytes))
	for i, b := range refBytes {
		items[i] = clvm.Atom(b)
	}
	return clvm.ListOf(items...)
}

// interpretSpendDescriptor decodes one (parent_coin_id, puzzle_reveal,
// amount, solution) tuple (spec §4.4.3), runs its puzzle, and folds
// conditions into coin effects.
func interpretSpendDescriptor(index int, desc clvm.Node, perSpendCostLimit uint64, totalFees *amount.Amount) (Spend, []Coin, error) {
	parts, err := clvm.ToSlice(desc)
	if err != nil || len(parts) != 4 {
		return Spend{}, nil, newSpendError(ErrVM, index, "spend descriptor is not a 4-element list")
	}

	parentAtom, ok := clvm.AsAtom(parts[0])
	if !ok {
		return Spend{}, nil, newSpendError(ErrVM, index, "parent_coin_id is not an atom")
	}
	puzzleRevealAtom, ok := clvm.AsAtom(parts[1])
	if !ok {
		return Spend{}, nil, newSpendError(ErrVM, index, "puzzle_reveal is not an atom")
	}
	amountAtom, ok := clvm.AsAtom(parts[2])
	if !ok {
		return Spend{}, nil, newSpendError(ErrVM, index, "amount is not an atom")
	}
	solutionAtom, ok := clvm.AsAtom(parts[3])
	if !ok {
		return Spend{}, nil, newSpendError(ErrVM, index, "solution is not an atom")
	}

	parentHash, err := chainhash.NewHash(padOrTrimHash(parentAtom))
	if err != nil {
		return Spend{}, nil, newSpendError(ErrVM, index, "parent_coin_id is not 32 bytes: %v", err)
	}

	puzzleRevealNode, err := clvm.DeserializeAll(puzzleRevealAtom)
	if err != nil {
		return Spend{}, nil, newSpendError(ErrBlockStructure, index, "puzzle_reveal is not valid bytecode: %v", err)
	}
	puzzleHash := clvm.TreeHash(puzzleRevealNode)

	coin := Coin{
		Parent:     parentHash,
		PuzzleHash: puzzleHash,
		Amount:     amount.Amount(clvm.IntFromAtom(amountAtom).Uint64()),
	}
	coinID := coin.ID()

	solutionNode, err := clvm.DeserializeAll(solutionAtom)
	if err != nil {
		return Spend{}, nil, newSpendError(ErrBlockStructure, index, "solution is not valid bytecode: %v", err)
	}

	_, condResult, err := clvm.Run(puzzleRevealNode, solutionNode, perSpendCostLimit)
	if err != nil {
		if vmErr, ok := err.(*clvm.Error); ok && vmErr.Kind == clvm.ErrCostExceeded {
			return Spend{}, nil, newSpendError(ErrCostExceeded, index, "puzzle: %s", vmErr.Msg)
		}
		return Spend{}, nil, newSpendError(ErrVM, index, "puzzle run failed: %v", err)
	}

	condNodes, err := clvm.ToSlice(condResult)
	if err != nil {
		return Spend{}, nil, newSpendError(ErrVM, index, "condition result is not a proper list")
	}

	spend := Spend{
		Coin:         coin,
		PuzzleReveal: []byte(puzzleRevealAtom),
		Solution:     []byte(solutionAtom),
	}
	var created []Coin

	for _, cn := range condNodes {
		condParts, err := clvm.ToSlice(cn)
		if err != nil || len(condParts) == 0 {
			return Spend{}, nil, newSpendError(ErrVM, index, "condition is not a non-empty proper list")
		}
		opAtom, ok := clvm.AsAtom(condParts[0])
		if !ok {
			return Spend{}, nil, newSpendError(ErrVM, index, "condition opcode is not an atom")
		}
		opcode := clvm.IntFromAtom(opAtom).Uint64()
		cond := Condition{Opcode: opcode, Args: condParts[1:]}
		spend.Conditions = append(spend.Conditions, cond)

		switch opcode {
		case ConditionCreateCoin:
			if len(condParts) < 3 {
				return Spend{}, nil, newSpendError(ErrVM, index, "CREATE_COIN missing arguments")
			}
			phAtom, ok := clvm.AsAtom(condParts[1])
			if !ok {
				return Spend{}, nil, newSpendError(ErrVM, index, "CREATE_COIN puzzle_hash is not an atom")
			}
			amtAtom, ok := clvm.AsAtom(condParts[2])
			if !ok {
				return Spend{}, nil, newSpendError(ErrVM, index, "CREATE_COIN amount is not an atom")
			}
			ph, err := chainhash.NewHash(padOrTrimHash(phAtom))
			if err != nil {
				return Spend{}, nil, newSpendError(ErrVM, index, "CREATE_COIN puzzle_hash is not 32 bytes: %v", err)
			}
			newCoin := Coin{
				Parent:     coinID,
				PuzzleHash: ph,
				Amount:     amount.Amount(clvm.IntFromAtom(amtAtom).Uint64()),
			}
			spend.CreatedCoins = append(spend.CreatedCoins, newCoin)
			created = append(created, newCoin)

		case ConditionReserveFee:
			if len(condParts) < 2 {
				return Spend{}, nil, newSpendError(ErrVM, index, "RESERVE_FEE missing argument")
			}
			feeAtom, ok := clvm.AsAtom(condParts[1])
			if !ok {
				return Spend{}, nil, newSpendError(ErrVM, index, "RESERVE_FEE amount is not an atom")
			}
			*totalFees += amount.Amount(clvm.IntFromAtom(feeAtom).Uint64())
		}
	}

	return spend, created, nil
}

// padOrTrimHash left-pads or trims b to exactly chainhash.HashSize bytes,
// the shape a 32-byte hash atom takes after the VM's minimal atom encoding
// has stripped any leading zero bytes.
func padOrTrimHash(b []byte) []byte {
	if len(b) == chainhash.HashSize {
		return b
	}
	out := make([]byte, chainhash.HashSize)
	if len(b) > chainhash.HashSize {
		copy(out, b[len(b)-chainhash.HashSize:])
		return out
	}
	copy(out[chainhash.HashSize-len(b):], b)
	return out
}
