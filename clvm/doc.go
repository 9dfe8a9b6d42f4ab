// Copyright (c) 2024 The chialisten developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package clvm implements the Lisp-like, binary-serialized, tree-structured
// bytecode VM that block generators and puzzles are written in (spec
// §4.4.2–§4.4.3): atom/cons tree construction, canonical serialization and
// deserialization, tree hashing, and a bounded-cost evaluator.
//
// The value model admits no cycles (spec §9 "Cyclic structures"): a Node is
// either an Atom (a byte string) or a Pair of two Nodes, built bottom-up
// during deserialization, so there is no way to construct a self-reference
// from within this package.
package clvm
