// Copyright (c) 2024 The chialisten developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package clvm

import (
	"math/big"
	"testing"
)

func opAtom(op Opcode) Node {
	return Atom(IntToAtom(big.NewInt(int64(op))))
}

func intNode(v int64) Node {
	return Atom(IntToAtom(big.NewInt(v)))
}

// (q . 42) evaluates to the atom 42 unevaluated.
func TestRunQuote(t *testing.T) {
	prog := Cons(opAtom(OpQuote), intNode(42))
	_, result, err := Run(prog, Nil, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, ok := AsAtom(result)
	if !ok || IntFromAtom(a).Int64() != 42 {
		t.Fatalf("got %#v, want atom 42", result)
	}
}

// (+ (q . 2) (q . 3)) evaluates to 5.
func TestRunAdd(t *testing.T) {
	two := Cons(opAtom(OpQuote), intNode(2))
	three := Cons(opAtom(OpQuote), intNode(3))
	prog := ListOf(opAtom(OpAdd), two, three)
	_, result, err := Run(prog, Nil, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, _ := AsAtom(result)
	if IntFromAtom(a).Int64() != 5 {
		t.Fatalf("got %v, want 5", IntFromAtom(a))
	}
}

// (c (q . 1) (q . 2)) evaluates to (1 . 2).
func TestRunCons(t *testing.T) {
	one := Cons(opAtom(OpQuote), intNode(1))
	two := Cons(opAtom(OpQuote), intNode(2))
	prog := ListOf(opAtom(OpCons), one, two)
	_, result, err := Run(prog, Nil, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p, ok := AsPair(result)
	if !ok {
		t.Fatalf("result is not a pair: %#v", result)
	}
	fa, _ := AsAtom(p.First)
	ra, _ := AsAtom(p.Rest)
	if IntFromAtom(fa).Int64() != 1 || IntFromAtom(ra).Int64() != 2 {
		t.Fatalf("got (%v . %v), want (1 . 2)", IntFromAtom(fa), IntFromAtom(ra))
	}
}

// Atom "2" as a whole program (path 2, i.e. binary 10: sentinel then bit 0)
// addresses First of the environment.
func TestPathLookupFirst(t *testing.T) {
	env := Cons(intNode(111), intNode(222))
	path := Atom(IntToAtom(big.NewInt(2)))
	_, result, err := Run(path, env, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, _ := AsAtom(result)
	if IntFromAtom(a).Int64() != 111 {
		t.Fatalf("got %v, want 111", IntFromAtom(a))
	}
}

// Path 3 (binary 11: sentinel then bit 1) addresses Rest of the environment.
func TestPathLookupRest(t *testing.T) {
	env := Cons(intNode(111), intNode(222))
	path := Atom(IntToAtom(big.NewInt(3)))
	_, result, err := Run(path, env, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, _ := AsAtom(result)
	if IntFromAtom(a).Int64() != 222 {
		t.Fatalf("got %v, want 222", IntFromAtom(a))
	}
}

// (i (q . 1) (q . 10) (q . 20)) picks the "then" branch.
func TestRunIf(t *testing.T) {
	cond := Cons(opAtom(OpQuote), intNode(1))
	then := Cons(opAtom(OpQuote), intNode(10))
	els := Cons(opAtom(OpQuote), intNode(20))
	prog := ListOf(opAtom(OpIf), cond, then, els)
	_, result, err := Run(prog, Nil, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, _ := AsAtom(result)
	if IntFromAtom(a).Int64() != 10 {
		t.Fatalf("got %v, want 10", IntFromAtom(a))
	}
}

// A cost budget too small to cover even the call overhead fails closed.
func TestRunCostExceeded(t *testing.T) {
	prog := Cons(opAtom(OpQuote), intNode(1))
	_, _, err := Run(prog, Nil, 1)
	if err == nil {
		t.Fatal("expected a cost error, got nil")
	}
	vmErr, ok := err.(*Error)
	if !ok || vmErr.Kind != ErrCostExceeded {
		t.Fatalf("got %v, want ErrCostExceeded", err)
	}
}

// raise (x) always fails evaluation.
func TestRunRaise(t *testing.T) {
	prog := ListOf(opAtom(OpRaise))
	_, _, err := Run(prog, Nil, 0)
	if err == nil {
		t.Fatal("expected an error from raise")
	}
	vmErr, ok := err.(*Error)
	if !ok || vmErr.Kind != ErrReduction {
		t.Fatalf("got %v, want ErrReduction", err)
	}
}

// A puzzle of the form (q . conditions), where conditions is a literal
// quoted condition list, is the simplest legal puzzle/solution pair that
// exercises CREATE_COIN folding: the puzzle ignores its solution entirely
// and always returns the same condition list.
func TestRunQuotedConditionList(t *testing.T) {
	const opCreateCoin = 51
	puzzleHash := intNode(0xAA)
	amount := intNode(1000)
	createCoin := ListOf(intNode(opCreateCoin), puzzleHash, amount)
	conditions := ListOf(createCoin)
	puzzle := Cons(opAtom(OpQuote), conditions)

	solution := Nil
	_, result, err := Run(puzzle, solution, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items, err := ToSlice(result)
	if err != nil {
		t.Fatalf("condition list is not a proper list: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d conditions, want 1", len(items))
	}
	cond, err := ToSlice(items[0])
	if err != nil {
		t.Fatalf("condition is not a proper list: %v", err)
	}
	if len(cond) != 3 {
		t.Fatalf("got %d condition args, want 3", len(cond))
	}
	opc, _ := AsAtom(cond[0])
	if IntFromAtom(opc).Int64() != opCreateCoin {
		t.Fatalf("got opcode %v, want %d", IntFromAtom(opc), opCreateCoin)
	}
}

// (a (q q . 9) (q . ())) applies the quoted sub-program (q . 9) against
// the nil environment and yields 9.
func TestRunApply(t *testing.T) {
	inner := Cons(opAtom(OpQuote), intNode(9))
	quotedInner := Cons(opAtom(OpQuote), inner)
	prog := ListOf(opAtom(OpApply), quotedInner, Cons(opAtom(OpQuote), Nil))
	_, result, err := Run(prog, Nil, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, _ := AsAtom(result)
	if IntFromAtom(a).Int64() != 9 {
		t.Fatalf("got %v, want 9", IntFromAtom(a))
	}
}
