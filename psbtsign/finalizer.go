// Copyright (c) 2025 The btcsigner developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package psbtsign

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

const (
	// maxWitnessItemSize is the BIP-141 limit on a single witness stack
	// item.
	maxWitnessItemSize = 10000

	// maxWitnessItems caps the declared item count of a serialized
	// witness. The count is read from untrusted bytes before any item, so
	// it must be bounded before sizing the allocation.
	maxWitnessItems = 500
)

// serializeWitness encodes a witness stack in the format used by the PSBT
// final-witness field: a varint item count followed by var-byte items.
func serializeWitness(witness wire.TxWitness) ([]byte, error) {
	var buf bytes.Buffer

	err := wire.WriteVarInt(&buf, 0, uint64(len(witness)))
	if err != nil {
		return nil, err
	}

	for _, item := range witness {
		if err := wire.WriteVarBytes(&buf, 0, item); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// parseWitness decodes a PSBT final-witness field back into a witness stack.
func parseWitness(raw []byte) (wire.TxWitness, error) {
	r := bytes.NewReader(raw)

	count, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return nil, err
	}
	if count > maxWitnessItems {
		return nil, fmt.Errorf("witness declares %d items, max %d",
			count, maxWitnessItems)
	}

	witness := make(wire.TxWitness, count)
	for i := uint64(0); i < count; i++ {
		item, err := wire.ReadVarBytes(
			r, 0, maxWitnessItemSize, "witness item",
		)
		if err != nil {
			return nil, err
		}

		witness[i] = item
	}

	return witness, nil
}

// buildInputWitness constructs the two-element P2WPKH witness stack
// {signature with sighash flag, compressed public key} for input idx without
// mutating the packet.
func buildInputWitness(packet *psbt.Packet, idx int) (wire.TxWitness, error) {
	in := &packet.Inputs[idx]

	prevOut, err := inputPrevOutput(packet, idx)
	if err != nil {
		return nil, err
	}

	if !txscript.IsPayToWitnessPubKeyHash(prevOut.PkScript) {
		return nil, fmt.Errorf("%w: input %d is locked by %x, only "+
			"v0 p2wpkh can be finalized", ErrUnsupportedScriptType,
			idx, prevOut.PkScript)
	}

	if len(in.PartialSigs) == 0 {
		return nil, fmt.Errorf("%w: input %d", ErrIncompleteInput, idx)
	}

	partialSig := in.PartialSigs[0]

	return wire.TxWitness{partialSig.Signature, partialSig.PubKey}, nil
}

// commitInputWitness attaches a built witness to input idx, clearing the
// partial-signature metadata it replaces.
func commitInputWitness(packet *psbt.Packet, idx int,
	witness wire.TxWitness) error {

	raw, err := serializeWitness(witness)
	if err != nil {
		return fmt.Errorf("unable to serialize witness for input "+
			"%d: %w", idx, err)
	}

	in := &packet.Inputs[idx]
	in.FinalScriptWitness = raw
	in.PartialSigs = nil
	in.SighashType = 0

	return nil
}

// FinalizeInput converts input idx's partial-signature metadata into its
// final witness stack, making the input spend-ready. An input is finalized
// at most once: finalizing an already-finalized input is a deterministic
// no-op that returns the existing witness.
func FinalizeInput(packet *psbt.Packet, idx int) (wire.TxWitness, error) {
	if idx < 0 || idx >= len(packet.Inputs) {
		return nil, fmt.Errorf("input index %d out of range [0, %d)",
			idx, len(packet.Inputs))
	}

	if raw := packet.Inputs[idx].FinalScriptWitness; raw != nil {
		witness, err := parseWitness(raw)
		if err != nil {
			return nil, fmt.Errorf("input %d carries an invalid "+
				"final witness: %w", idx, err)
		}

		return witness, nil
	}

	witness, err := buildInputWitness(packet, idx)
	if err != nil {
		return nil, err
	}

	if err := commitInputWitness(packet, idx, witness); err != nil {
		return nil, err
	}

	return witness, nil
}

// FinalizeAll finalizes every input of the packet. The operation is atomic
// across the transaction: all witnesses are built before any input is
// mutated, so a failure on any input leaves the packet in its exact
// pre-finalization state. A half-finalized packet is never exposed.
func FinalizeAll(packet *psbt.Packet) error {
	witnesses := make([]wire.TxWitness, len(packet.Inputs))
	for idx := range packet.Inputs {
		// Inputs finalized by an earlier call keep their witness.
		if packet.Inputs[idx].FinalScriptWitness != nil {
			continue
		}

		witness, err := buildInputWitness(packet, idx)
		if err != nil {
			return err
		}

		witnesses[idx] = witness
	}

	for idx, witness := range witnesses {
		if witness == nil {
			continue
		}

		if err := commitInputWitness(packet, idx, witness); err != nil {
			return err
		}
	}

	log.Infof("Finalized %d inputs", len(packet.Inputs))

	return nil
}
