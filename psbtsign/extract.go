// Copyright (c) 2025 The btcsigner developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package psbtsign

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/davecgh/go-spew/spew"
)

// FinalTx is a fully finalized transaction extracted from a PSBT. It is
// immutable once extracted.
type FinalTx struct {
	// TxID is the transaction identifier: the double-SHA256 of the
	// non-witness serialization. Witness data is excluded from the id per
	// the segwit rules; hashing the witness-inclusive bytes would
	// mismatch network consensus.
	TxID chainhash.Hash

	// Tx is the finalized wire transaction.
	Tx *wire.MsgTx

	// RawBytes is the canonical segwit wire serialization, the form
	// submitted to a broadcast endpoint.
	RawBytes []byte
}

// Hex returns the hex encoding of the raw transaction bytes.
func (f *FinalTx) Hex() string {
	return hex.EncodeToString(f.RawBytes)
}

// Extract reads a fully finalized packet and serializes it into the canonical
// raw-transaction encoding together with its transaction id. Every input must
// carry its final witness; otherwise ErrNotFullyFinalized is returned and no
// bytes are produced.
func Extract(packet *psbt.Packet) (*FinalTx, error) {
	finalTx := packet.UnsignedTx.Copy()

	for idx := range packet.Inputs {
		in := &packet.Inputs[idx]

		if in.FinalScriptWitness == nil && in.FinalScriptSig == nil {
			return nil, fmt.Errorf("%w: input %d has no final "+
				"witness", ErrNotFullyFinalized, idx)
		}

		if in.FinalScriptSig != nil {
			finalTx.TxIn[idx].SignatureScript = in.FinalScriptSig
		}

		if in.FinalScriptWitness != nil {
			witness, err := parseWitness(in.FinalScriptWitness)
			if err != nil {
				return nil, fmt.Errorf("input %d carries an "+
					"invalid final witness: %w", idx, err)
			}

			finalTx.TxIn[idx].Witness = witness
		}
	}

	var buf bytes.Buffer
	if err := finalTx.Serialize(&buf); err != nil {
		return nil, fmt.Errorf("unable to serialize final "+
			"transaction: %w", err)
	}

	// TxHash serializes without witness data before double hashing, which
	// is exactly the id the network computes.
	txid := finalTx.TxHash()

	log.Debugf("Extracted transaction %v: %v", txid,
		newLogClosure(func() string {
			return spew.Sdump(finalTx)
		}))

	return &FinalTx{
		TxID:     txid,
		Tx:       finalTx,
		RawBytes: buf.Bytes(),
	}, nil
}
