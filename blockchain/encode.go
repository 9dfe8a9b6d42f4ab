// Copyright (c) 2024 The chialisten developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"bytes"

	"github.com/dig-network/chialisten/chainhash"
	"github.com/dig-network/chialisten/math/uint256"
	"github.com/dig-network/chialisten/wire"
)

// FoliageInput is the fixed-width foliage sub-record (block.go layout doc).
type FoliageInput struct {
	PrevHeaderHash         chainhash.Hash
	RewardBlockHash        chainhash.Hash
	FarmerRewardPuzzleHash chainhash.Hash
	ExtensionData          chainhash.Hash
}

// FoliageTransactionBlockInput is present only on transaction blocks.
type FoliageTransactionBlockInput struct {
	PrevTransactionBlockHash chainhash.Hash
	Timestamp                uint64
}

// TransactionsInfoInput is present only on transaction blocks.
type TransactionsInfoInput struct {
	GeneratorRoot     chainhash.Hash
	GeneratorRefsRoot chainhash.Hash
	Fees              uint64
	Cost              uint64
	RewardClaims      []Coin
}

// FullBlockInput is the plain, fully-populated counterpart of the
// streamable FullBlock body (block.go), used to construct test vectors
// and by any caller that already has a peer's well-formed block and wants
// to re-encode it (e.g. for a fixture corpus).
type FullBlockInput struct {
	PrevHeaderHash          chainhash.Hash
	Height                  uint32
	Weight                  uint256.Weight
	Foliage                 FoliageInput
	FoliageTransactionBlock *FoliageTransactionBlockInput
	TransactionsInfo        *TransactionsInfoInput
	TransactionsGenerator   []byte // nil means absent
	GeneratorRefList        []uint32
}

// EncodeFullBlock serializes in into the streamable FullBlock body layout
// documented in block.go.
func EncodeFullBlock(in *FullBlockInput) ([]byte, error) {
	var buf bytes.Buffer
	w := wire.NewWriter(&buf)

	if err := w.WriteHash(in.PrevHeaderHash); err != nil {
		return nil, err
	}
	if err := w.WriteUint32(in.Height); err != nil {
		return nil, err
	}
	if err := w.WriteUint128(in.Weight.Bytes()); err != nil {
		return nil, err
	}
	if err := w.WriteHash(in.Foliage.PrevHeaderHash); err != nil {
		return nil, err
	}
	if err := w.WriteHash(in.Foliage.RewardBlockHash); err != nil {
		return nil, err
	}
	if err := w.WriteHash(in.Foliage.FarmerRewardPuzzleHash); err != nil {
		return nil, err
	}
	if err := w.WriteHash(in.Foliage.ExtensionData); err != nil {
		return nil, err
	}

	if in.FoliageTransactionBlock != nil {
		if err := w.WriteBool(true); err != nil {
			return nil, err
		}
		if err := w.WriteHash(in.FoliageTransactionBlock.PrevTransactionBlockHash); err != nil {
			return nil, err
		}
		if err := w.WriteUint64(in.FoliageTransactionBlock.Timestamp); err != nil {
			return nil, err
		}
	} else {
		if err := w.WriteBool(false); err != nil {
			return nil, err
		}
	}

	if in.TransactionsInfo != nil {
		if err := w.WriteBool(true); err != nil {
			return nil, err
		}
		ti := in.TransactionsInfo
		if err := w.WriteHash(ti.GeneratorRoot); err != nil {
			return nil, err
		}
		if err := w.WriteHash(ti.GeneratorRefsRoot); err != nil {
			return nil, err
		}
		if err := w.WriteUint64(ti.Fees); err != nil {
			return nil, err
		}
		if err := w.WriteUint64(ti.Cost); err != nil {
			return nil, err
		}
		if err := w.WriteUint32(uint32(len(ti.RewardClaims))); err != nil {
			return nil, err
		}
		for _, c := range ti.RewardClaims {
			if err := w.WriteHash(c.Parent); err != nil {
				return nil, err
			}
			if err := w.WriteHash(c.PuzzleHash); err != nil {
				return nil, err
			}
			if err := w.WriteUint64(uint64(c.Amount)); err != nil {
				return nil, err
			}
		}
	} else {
		if err := w.WriteBool(false); err != nil {
			return nil, err
		}
	}

	if in.TransactionsGenerator != nil {
		if err := w.WriteBool(true); err != nil {
			return nil, err
		}
		if err := w.WriteVarBytes(in.TransactionsGenerator); err != nil {
			return nil, err
		}
	} else {
		if err := w.WriteBool(false); err != nil {
			return nil, err
		}
	}

	if err := w.WriteUint32(uint32(len(in.GeneratorRefList))); err != nil {
		return nil, err
	}
	for _, h := range in.GeneratorRefList {
		if err := w.WriteUint32(h); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}
