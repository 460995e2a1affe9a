// Copyright (c) 2025 The btcsigner developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package psbtsign

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/globalstake/btcsigner/keychain"
)

// p2wpkhScript returns the version-0 witness program locking to the hash160
// of the given signer's compressed public key.
func p2wpkhScript(signer keychain.DigestSigner) ([]byte, error) {
	pubKeyHash := btcutil.Hash160(signer.PubKey().SerializeCompressed())

	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(pubKeyHash).
		Script()
}

// SignInput computes the BIP-143 sighash for input idx, signs it with the
// given signer, and attaches the resulting partial signature record
// ({compressed public key, DER signature with the sighash flag appended}) to
// the input.
//
// When the input's declared locking script does not match the script derived
// from the signer's key, ErrSigningSkipped is returned. Callers signing a
// multi-owner packet must tolerate skipped inputs.
func SignInput(packet *psbt.Packet, idx int, signer keychain.DigestSigner,
	hashType txscript.SigHashType) error {

	if idx < 0 || idx >= len(packet.Inputs) {
		return fmt.Errorf("input index %d out of range [0, %d)",
			idx, len(packet.Inputs))
	}

	prevOut, err := inputPrevOutput(packet, idx)
	if err != nil {
		return err
	}

	ownScript, err := p2wpkhScript(signer)
	if err != nil {
		return fmt.Errorf("unable to derive script for signing key: %w",
			err)
	}

	// The dominant failure mode in single-key signing is a key, network,
	// or script mismatch, so the skip error carries both scripts.
	if !bytes.Equal(prevOut.PkScript, ownScript) {
		return fmt.Errorf("%w: input %d locked by %x, key derives %x",
			ErrSigningSkipped, idx, prevOut.PkScript, ownScript)
	}

	digest, err := InputSigHash(packet, idx, hashType)
	if err != nil {
		return err
	}

	sig, err := signer.SignDigest(digest)
	if err != nil {
		return fmt.Errorf("unable to sign input %d: %w", idx, err)
	}

	in := &packet.Inputs[idx]
	in.SighashType = hashType

	// Exactly one partial signature per input in this single-signer
	// design. Re-signing replaces the record; the deterministic nonce
	// makes the replacement identical for identical inputs.
	in.PartialSigs = []*psbt.PartialSig{{
		PubKey:    signer.PubKey().SerializeCompressed(),
		Signature: append(sig.Serialize(), byte(hashType)),
	}}

	log.Debugf("Signed input %d (sighash type %v)", idx, hashType)

	return nil
}

// SignAllInputs applies SignInput to every input of the packet and returns
// the number of inputs signed. Inputs not owned by the signing key are
// skipped; if every input was skipped the packet cannot proceed and
// ErrNoInputsSigned is returned. Any error other than a skip aborts
// immediately.
func SignAllInputs(packet *psbt.Packet, signer keychain.DigestSigner,
	hashType txscript.SigHashType) (int, error) {

	var signed int
	for idx := range packet.Inputs {
		err := SignInput(packet, idx, signer, hashType)
		switch {
		case err == nil:
			signed++

		case errors.Is(err, ErrSigningSkipped):
			log.Debugf("Skipping input %d: %v", idx, err)

		default:
			return signed, err
		}
	}

	if signed == 0 {
		return 0, fmt.Errorf("%w: none of the %d inputs are owned by "+
			"the signing key", ErrNoInputsSigned,
			len(packet.Inputs))
	}

	log.Infof("Signed %d of %d inputs", signed, len(packet.Inputs))

	return signed, nil
}
