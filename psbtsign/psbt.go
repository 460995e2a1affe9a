// Copyright (c) 2025 The btcsigner developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package psbtsign

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

var (
	// ErrMalformedPsbt is returned when a serialized PSBT violates the
	// BIP-174 structure: bad magic bytes, inconsistent key-value maps, or
	// duplicate keys within a single map.
	ErrMalformedPsbt = errors.New("malformed psbt")

	// ErrMissingPrevoutData is returned when an input lacks the
	// previous-output metadata (witness or non-witness UTXO) required to
	// compute its signature hash. Computing a sighash without it would
	// silently fall back to the wrong digest algorithm, producing a
	// locally "valid" signature the network rejects.
	ErrMissingPrevoutData = errors.New("input is missing prevout data")

	// ErrSigningSkipped is returned by SignInput when the input's locking
	// script does not match the signing key's derived script. This is a
	// soft, per-input condition: a multi-owner packet legitimately
	// contains inputs the current key cannot sign.
	ErrSigningSkipped = errors.New("input not owned by signing key")

	// ErrNoInputsSigned is returned by SignAllInputs when not a single
	// input could be signed. A packet with zero signatures cannot
	// proceed, so this is a hard failure.
	ErrNoInputsSigned = errors.New("no inputs signed")

	// ErrSignatureVerification is returned when independent verification
	// of the attached partial signatures fails. It is session-fatal and
	// must block finalization.
	ErrSignatureVerification = errors.New("signature verification failed")

	// ErrIncompleteInput is returned when finalization is attempted on an
	// input that has no partial signature attached.
	ErrIncompleteInput = errors.New("input has no partial signature")

	// ErrUnsupportedScriptType is returned when an input's locking script
	// is not a version-0 pay-to-witness-pubkey-hash program, the only
	// spend type this signer supports.
	ErrUnsupportedScriptType = errors.New("unsupported script type")

	// ErrNotFullyFinalized is returned when transaction extraction is
	// attempted while at least one input lacks its finalized witness.
	ErrNotFullyFinalized = errors.New("psbt is not fully finalized")
)

// Load parses the binary serialization of a PSBT into a packet. Structural
// violations are reported as ErrMalformedPsbt wrapping the parser's error.
func Load(raw []byte) (*psbt.Packet, error) {
	packet, err := psbt.NewFromRawBytes(bytes.NewReader(raw), false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPsbt, err)
	}

	return packet, nil
}

// LoadBase64 parses the base64 transport encoding of a PSBT into a packet.
func LoadBase64(encoded string) (*psbt.Packet, error) {
	packet, err := psbt.NewFromRawBytes(
		strings.NewReader(strings.TrimSpace(encoded)), true,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPsbt, err)
	}

	return packet, nil
}

// Serialize returns the binary serialization of a packet. Serialization is
// the exact inverse of Load: a packet that has not been mutated round-trips
// byte for byte.
func Serialize(packet *psbt.Packet) ([]byte, error) {
	var buf bytes.Buffer
	if err := packet.Serialize(&buf); err != nil {
		return nil, fmt.Errorf("unable to serialize psbt: %w", err)
	}

	return buf.Bytes(), nil
}

// SerializeBase64 returns the base64 transport encoding of a packet.
func SerializeBase64(packet *psbt.Packet) (string, error) {
	return packet.B64Encode()
}

// inputPrevOutput returns the previous output spent by input idx, taken from
// the input's witness UTXO or, failing that, from the referenced output of
// its full non-witness transaction.
func inputPrevOutput(packet *psbt.Packet, idx int) (*wire.TxOut, error) {
	in := &packet.Inputs[idx]

	if in.WitnessUtxo != nil {
		return in.WitnessUtxo, nil
	}

	if in.NonWitnessUtxo != nil {
		prevIndex := packet.UnsignedTx.TxIn[idx].PreviousOutPoint.Index
		if int(prevIndex) >= len(in.NonWitnessUtxo.TxOut) {
			return nil, fmt.Errorf("%w: input %d references "+
				"output %d of a transaction with %d outputs",
				ErrMissingPrevoutData, idx, prevIndex,
				len(in.NonWitnessUtxo.TxOut))
		}

		return in.NonWitnessUtxo.TxOut[prevIndex], nil
	}

	return nil, fmt.Errorf("%w: input %d", ErrMissingPrevoutData, idx)
}

// prevOutputFetcher builds a previous-output fetcher from the UTXO metadata
// carried in the packet. Every input must carry prevout data before any
// sighash can be computed; a single missing entry fails the whole call.
func prevOutputFetcher(packet *psbt.Packet) (*txscript.MultiPrevOutFetcher,
	error) {

	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for idx, txIn := range packet.UnsignedTx.TxIn {
		prevOut, err := inputPrevOutput(packet, idx)
		if err != nil {
			return nil, err
		}

		fetcher.AddPrevOut(txIn.PreviousOutPoint, prevOut)
	}

	return fetcher, nil
}

// InputSigHash computes the digest that must be signed for input idx, per the
// BIP-143 segwit v0 rules, using the input's declared previous-output value
// and locking script. The legacy sighash algorithm is never used for witness
// programs.
func InputSigHash(packet *psbt.Packet, idx int,
	hashType txscript.SigHashType) ([]byte, error) {

	if idx < 0 || idx >= len(packet.Inputs) {
		return nil, fmt.Errorf("input index %d out of range [0, %d)",
			idx, len(packet.Inputs))
	}

	fetcher, err := prevOutputFetcher(packet)
	if err != nil {
		return nil, err
	}

	prevOut, err := inputPrevOutput(packet, idx)
	if err != nil {
		return nil, err
	}

	sigHashes := txscript.NewTxSigHashes(packet.UnsignedTx, fetcher)
	digest, err := txscript.CalcWitnessSigHash(
		prevOut.PkScript, sigHashes, hashType, packet.UnsignedTx, idx,
		prevOut.Value,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to compute sighash for input "+
			"%d: %w", idx, err)
	}

	return digest, nil
}
