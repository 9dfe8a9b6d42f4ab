// Copyright (c) 2024 The chialisten developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package clvm

import "github.com/dig-network/chialisten/chainhash"

// Node is a value in the generator VM's tree model: either an Atom (a byte
// string, possibly empty) or a Pair of two Nodes. There is exactly one
// representation for "nil"/the empty list: the zero-length Atom.
type Node interface {
	node()
}

// Atom is a leaf value: an uninterpreted byte string. Arithmetic,
// equality, and hashing operators all start from this representation.
type Atom []byte

func (Atom) node() {}

// Pair is a cons cell: (First . Rest).
type Pair struct {
	First Node
	Rest  Node
}

func (*Pair) node() {}

// Nil is the canonical empty atom, used both as the empty list and as a
// boolean "false".
var Nil Node = Atom(nil)

// IsNil reports whether n is the empty atom.
func IsNil(n Node) bool {
	a, ok := n.(Atom)
	return ok && len(a) == 0
}

// AsAtom returns n's bytes and true if n is an Atom, else nil, false.
func AsAtom(n Node) (Atom, bool) {
	a, ok := n.(Atom)
	return a, ok
}

// AsPair returns n as a *Pair and true if n is a cons cell, else nil, false.
func AsPair(n Node) (*Pair, bool) {
	p, ok := n.(*Pair)
	return p, ok
}

// Cons builds a new Pair, the Node-level equivalent of the VM's "c"
// operator.
func Cons(first, rest Node) Node {
	return &Pair{First: first, Rest: rest}
}

// ListOf builds a canonical proper list ending in Nil from items, the
// shape used for a generator's spend-descriptor list and a puzzle's
// condition list.
func ListOf(items ...Node) Node {
	out := Nil
	for i := len(items) - 1; i >= 0; i-- {
		out = Cons(items[i], out)
	}
	return out
}

// ToSlice flattens a proper list into a Go slice. It returns an error if n
// is not nil-terminated (spec §4.4.3 expects every condition/spend list to
// be a proper list).
func ToSlice(n Node) ([]Node, error) {
	var out []Node
	for {
		if IsNil(n) {
			return out, nil
		}
		p, ok := AsPair(n)
		if !ok {
			return nil, NewError(ErrNotAList, "improper list tail is an atom")
		}
		out = append(out, p.First)
		n = p.Rest
	}
}

// TreeHash computes the puzzle-hash-style hash of n (spec §4.4.3): for an
// atom of bytes b, H(0x01||b); for a cons (l, r), H(0x02||tree_hash(l)||
// tree_hash(r)).
func TreeHash(n Node) chainhash.Hash {
	switch v := n.(type) {
	case Atom:
		return chainhash.HashMerge([]byte{0x01}, v)
	case *Pair:
		lh := TreeHash(v.First)
		rh := TreeHash(v.Rest)
		buf := make([]byte, 0, 1+chainhash.HashSize*2)
		buf = append(buf, 0x02)
		buf = append(buf, lh[:]...)
		buf = append(buf, rh[:]...)
		return chainhash.HashH(buf)
	default:
		panic("clvm: unreachable node type")
	}
}
