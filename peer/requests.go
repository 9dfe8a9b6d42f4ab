// Copyright (c) 2024 The chialisten developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peer

import (
	"context"
	"time"

	"github.com/dig-network/chialisten/wire"
)

// RequestBlock sends RequestBlock and returns the decoded response body,
// which is either a *wire.RespondBlock or a *wire.RejectBlock (spec
// §4.5.5); any other decoded type is an UnexpectedMessage error.
func (s *Session) RequestBlock(ctx context.Context, height uint32, includeTxBlock bool, timeout time.Duration) (interface{}, error) {
	req := &wire.RequestBlock{Height: height, IncludeTxBlock: includeTxBlock}
	body, err := s.Request(ctx, wire.MsgRequestBlock, req.Encode, timeout)
	if err != nil {
		return nil, err
	}
	switch body.(type) {
	case *wire.RespondBlock, *wire.RejectBlock:
		return body, nil
	default:
		return nil, newError(ErrUnexpectedMessage, "unexpected response type %T to RequestBlock", body)
	}
}

// RequestBlocks sends RequestBlocks and returns the decoded response
// body, a *wire.RespondBlocks or a *wire.RejectBlocks.
func (s *Session) RequestBlocks(ctx context.Context, startHeight, endHeight uint32, includeTxBlock bool, timeout time.Duration) (interface{}, error) {
	req := &wire.RequestBlocks{StartHeight: startHeight, EndHeight: endHeight, IncludeTxBlock: includeTxBlock}
	body, err := s.Request(ctx, wire.MsgRequestBlocks, req.Encode, timeout)
	if err != nil {
		return nil, err
	}
	switch body.(type) {
	case *wire.RespondBlocks, *wire.RejectBlocks:
		return body, nil
	default:
		return nil, newError(ErrUnexpectedMessage, "unexpected response type %T to RequestBlocks", body)
	}
}
