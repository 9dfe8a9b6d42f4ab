// Copyright (c) 2024 The chialisten developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

// ExtractGeneratorBytes skip-parses blockBytes far enough to return its
// transactions_generator span without running the VM, so a caller
// building a BackRefResolver (spec §4.4.5) over previously-fetched block
// bytes can cache just the generator bytes instead of the whole block
// (spec §C.3 supplemented feature). ok is false if the block carries no
// generator.
func ExtractGeneratorBytes(blockBytes []byte) (generatorBytes []byte, ok bool, err error) {
	fields, err := parseBlockFields(blockBytes)
	if err != nil {
		return nil, false, err
	}
	if !fields.hasGenerator {
		return nil, false, nil
	}
	return fields.generatorSpan, true, nil
}
