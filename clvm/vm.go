// Copyright (c) 2024 The chialisten developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package clvm

import (
	"math/big"

	"github.com/dig-network/chialisten/chainhash"
)

// Opcode identifies an operator recognized by Run. Atoms in operator
// position are interpreted as big-endian unsigned integers and looked up
// in this table; anything else is ErrUnknownOperator.
type Opcode uint64

// Operators implemented by this VM (spec §4.4.3: "pair construction/
// decomposition, arithmetic on big integers ..., cryptographic hash ...,
// conditional branching, list quoting, and a bounded-cost apply").
const (
	OpQuote   Opcode = 1
	OpApply   Opcode = 2
	OpIf      Opcode = 3
	OpCons    Opcode = 4
	OpFirst   Opcode = 5
	OpRest    Opcode = 6
	OpListp   Opcode = 7
	OpRaise   Opcode = 8
	OpEq      Opcode = 9
	OpSha256  Opcode = 11
	OpConcat  Opcode = 14
	OpAdd     Opcode = 16
	OpSub     Opcode = 17
	OpMul     Opcode = 18
	OpDivmod  Opcode = 19
	OpGt      Opcode = 21
	OpNot     Opcode = 32
)

// Per-operator base costs. Variable-cost operators additionally charge a
// per-byte surcharge on their operands. These constants are this VM's own
// accounting scheme: Run's contract only requires the cost be deterministic
// and respect costLimit (spec §4.4.3), not that it match any particular
// peer implementation's numbers.
const (
	costCall      uint64 = 40
	costQuote     uint64 = 20
	costApply     uint64 = 90
	costIf        uint64 = 33
	costCons      uint64 = 50
	costFirst     uint64 = 30
	costRest      uint64 = 30
	costListp     uint64 = 19
	costRaise     uint64 = 500
	costEqBase    uint64 = 47
	costHashBase  uint64 = 87
	costConcat    uint64 = 40
	costArithBase uint64 = 99
	costDivmod    uint64 = 300
	costGt        uint64 = 60
	costNot       uint64 = 25
	costPerByte   uint64 = 1
	costPathStep  uint64 = 4
)

// evalState threads the cost accumulator and its limit through recursive
// evaluation.
type evalState struct {
	cost  uint64
	limit uint64
}

func (s *evalState) charge(n uint64) error {
	s.cost += n
	if s.limit != 0 && s.cost > s.limit {
		return NewError(ErrCostExceeded, "cost %d exceeds limit %d", s.cost, s.limit)
	}
	return nil
}

// Run evaluates program against env, the single entry point used both to
// run a block generator (env = the back-reference environment, §4.4.5)
// and to run a puzzle reveal against its solution (env = solution,
// §4.4.3). It returns the total cost consumed and the result tree, or a
// typed *Error.
func Run(program, env Node, costLimit uint64) (uint64, Node, error) {
	s := &evalState{limit: costLimit}
	if err := s.charge(costCall); err != nil {
		return s.cost, nil, err
	}
	result, err := eval(program, env, s)
	return s.cost, result, err
}

func eval(expr, env Node, s *evalState) (Node, error) {
	switch v := expr.(type) {
	case Atom:
		return pathLookup(v, env, s)
	case *Pair:
		opNode := v.First
		opAtom, ok := AsAtom(opNode)
		if !ok {
			return nil, NewError(ErrUnknownOperator, "operator position is not an atom")
		}
		op := Opcode(new(big.Int).SetBytes(opAtom).Uint64())
		if op == OpQuote {
			if err := s.charge(costQuote); err != nil {
				return nil, err
			}
			return v.Rest, nil
		}
		argExprs, err := ToSlice(v.Rest)
		if err != nil {
			return nil, err
		}
		args := make([]Node, len(argExprs))
		for i, a := range argExprs {
			val, err := eval(a, env, s)
			if err != nil {
				return nil, err
			}
			args[i] = val
		}
		return apply(op, args, s)
	default:
		return nil, NewError(ErrBadEncoding, "unreachable node type")
	}
}

// pathLookup resolves an atom used in expression position as an integer
// path into env: the path, read as an unsigned integer whose leading 1 bit
// is a sentinel, selects First (bit 0) or Rest (bit 1) at each step,
// consuming bits from the least significant upward until only the
// sentinel remains. Path 0 (the empty atom) resolves to Nil.
func pathLookup(path Atom, env Node, s *evalState) (Node, error) {
	p := new(big.Int).SetBytes(path)
	if p.Sign() == 0 {
		return Nil, nil
	}
	cur := env
	one := big.NewInt(1)
	for p.Cmp(one) != 0 {
		if err := s.charge(costPathStep); err != nil {
			return nil, err
		}
		bit := new(big.Int).And(p, one)
		pair, ok := AsPair(cur)
		if !ok {
			return nil, NewError(ErrReduction, "path into atom")
		}
		if bit.Sign() == 0 {
			cur = pair.First
		} else {
			cur = pair.Rest
		}
		p.Rsh(p, 1)
	}
	return cur, nil
}

func apply(op Opcode, args []Node, s *evalState) (Node, error) {
	switch op {
	case OpApply:
		if len(args) != 2 {
			return nil, NewError(ErrReduction, "apply takes 2 arguments, got %d", len(args))
		}
		if err := s.charge(costApply); err != nil {
			return nil, err
		}
		return eval(args[0], args[1], s)

	case OpIf:
		if len(args) != 3 {
			return nil, NewError(ErrReduction, "if takes 3 arguments, got %d", len(args))
		}
		if err := s.charge(costIf); err != nil {
			return nil, err
		}
		if truthy(args[0]) {
			return args[1], nil
		}
		return args[2], nil

	case OpCons:
		if len(args) != 2 {
			return nil, NewError(ErrReduction, "cons takes 2 arguments, got %d", len(args))
		}
		if err := s.charge(costCons); err != nil {
			return nil, err
		}
		return Cons(args[0], args[1]), nil

	case OpFirst:
		if len(args) != 1 {
			return nil, NewError(ErrReduction, "first takes 1 argument, got %d", len(args))
		}
		if err := s.charge(costFirst); err != nil {
			return nil, err
		}
		p, ok := AsPair(args[0])
		if !ok {
			return nil, NewError(ErrReduction, "first of an atom")
		}
		return p.First, nil

	case OpRest:
		if len(args) != 1 {
			return nil, NewError(ErrReduction, "rest takes 1 argument, got %d", len(args))
		}
		if err := s.charge(costRest); err != nil {
			return nil, err
		}
		p, ok := AsPair(args[0])
		if !ok {
			return nil, NewError(ErrReduction, "rest of an atom")
		}
		return p.Rest, nil

	case OpListp:
		if len(args) != 1 {
			return nil, NewError(ErrReduction, "listp takes 1 argument, got %d", len(args))
		}
		if err := s.charge(costListp); err != nil {
			return nil, err
		}
		if _, ok := AsPair(args[0]); ok {
			return Atom([]byte{1}), nil
		}
		return Nil, nil

	case OpRaise:
		if err := s.charge(costRaise); err != nil {
			return nil, err
		}
		return nil, NewError(ErrReduction, "raise: %v", args)

	case OpEq:
		if len(args) != 2 {
			return nil, NewError(ErrReduction, "= takes 2 arguments, got %d", len(args))
		}
		a1, ok1 := AsAtom(args[0])
		a2, ok2 := AsAtom(args[1])
		if !ok1 || !ok2 {
			return nil, NewError(ErrReduction, "= on a non-atom")
		}
		if err := s.charge(costEqBase + costPerByte*uint64(len(a1)+len(a2))); err != nil {
			return nil, err
		}
		if bytesEqual(a1, a2) {
			return Atom([]byte{1}), nil
		}
		return Nil, nil

	case OpSha256:
		total := 0
		atoms := make([]Atom, len(args))
		for i, a := range args {
			at, ok := AsAtom(a)
			if !ok {
				return nil, NewError(ErrReduction, "sha256 on a non-atom")
			}
			atoms[i] = at
			total += len(at)
		}
		if err := s.charge(costHashBase + costPerByte*uint64(total)); err != nil {
			return nil, err
		}
		var buf []byte
		for _, a := range atoms {
			buf = append(buf, a...)
		}
		h := chainhash.HashH(buf)
		return Atom(h[:]), nil

	case OpConcat:
		var buf []byte
		for _, a := range args {
			at, ok := AsAtom(a)
			if !ok {
				return nil, NewError(ErrReduction, "concat on a non-atom")
			}
			buf = append(buf, at...)
		}
		if err := s.charge(costConcat + costPerByte*uint64(len(buf))); err != nil {
			return nil, err
		}
		return Atom(buf), nil

	case OpAdd, OpSub, OpMul:
		ints, totalBytes, err := toInts(args)
		if err != nil {
			return nil, err
		}
		if err := s.charge(costArithBase + costPerByte*uint64(totalBytes)); err != nil {
			return nil, err
		}
		acc := new(big.Int)
		switch op {
		case OpAdd:
			for _, v := range ints {
				acc.Add(acc, v)
			}
		case OpMul:
			acc.SetInt64(1)
			for _, v := range ints {
				acc.Mul(acc, v)
			}
		case OpSub:
			if len(ints) == 0 {
				break
			}
			acc.Set(ints[0])
			for _, v := range ints[1:] {
				acc.Sub(acc, v)
			}
		}
		return IntToAtom(acc), nil

	case OpDivmod:
		if len(args) != 2 {
			return nil, NewError(ErrReduction, "divmod takes 2 arguments, got %d", len(args))
		}
		ints, totalBytes, err := toInts(args)
		if err != nil {
			return nil, err
		}
		if err := s.charge(costDivmod + costPerByte*uint64(totalBytes)); err != nil {
			return nil, err
		}
		if ints[1].Sign() == 0 {
			return nil, NewError(ErrReduction, "divmod by zero")
		}
		q, r := new(big.Int), new(big.Int)
		q.QuoRem(ints[0], ints[1], r)
		return Cons(IntToAtom(q), IntToAtom(r)), nil

	case OpGt:
		if len(args) != 2 {
			return nil, NewError(ErrReduction, "> takes 2 arguments, got %d", len(args))
		}
		ints, totalBytes, err := toInts(args)
		if err != nil {
			return nil, err
		}
		if err := s.charge(costGt + costPerByte*uint64(totalBytes)); err != nil {
			return nil, err
		}
		if ints[0].Cmp(ints[1]) > 0 {
			return Atom([]byte{1}), nil
		}
		return Nil, nil

	case OpNot:
		if len(args) != 1 {
			return nil, NewError(ErrReduction, "not takes 1 argument, got %d", len(args))
		}
		if err := s.charge(costNot); err != nil {
			return nil, err
		}
		if truthy(args[0]) {
			return Nil, nil
		}
		return Atom([]byte{1}), nil

	default:
		return nil, NewError(ErrUnknownOperator, "opcode %d", op)
	}
}

func truthy(n Node) bool {
	return !IsNil(n)
}

func bytesEqual(a, b Atom) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func toInts(args []Node) ([]*big.Int, int, error) {
	out := make([]*big.Int, len(args))
	total := 0
	for i, a := range args {
		at, ok := AsAtom(a)
		if !ok {
			return nil, 0, NewError(ErrReduction, "arithmetic on a non-atom")
		}
		out[i] = IntFromAtom(at)
		total += len(at)
	}
	return out, total, nil
}
