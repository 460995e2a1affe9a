// Copyright (c) 2025 The btcsigner developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package psbtsign

import (
	"bytes"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
)

// VerifyInputSignature independently re-verifies the partial signature
// attached to input idx against the input's declared previous-output script.
// It recomputes the BIP-143 digest from the packet rather than trusting any
// digest the signer may have cached, and verifies the signature with full
// curve point arithmetic.
//
// Inputs without a partial signature verify trivially: the validator gates
// the signatures that exist, not signing coverage.
func VerifyInputSignature(packet *psbt.Packet, idx int) (bool, error) {
	in := &packet.Inputs[idx]
	if len(in.PartialSigs) == 0 {
		return true, nil
	}

	prevOut, err := inputPrevOutput(packet, idx)
	if err != nil {
		return false, err
	}

	for _, partialSig := range in.PartialSigs {
		// The witness program must commit to the declared public key.
		// Without this binding, a mathematically valid signature from
		// a foreign key would verify here and only be rejected by the
		// network after broadcast.
		if !txscript.IsPayToWitnessPubKeyHash(prevOut.PkScript) ||
			!bytes.Equal(
				btcutil.Hash160(partialSig.PubKey),
				prevOut.PkScript[2:],
			) {

			log.Warnf("Signature on input %d is bound to a key "+
				"the locking script does not commit to", idx)
			return false, nil
		}

		rawSig := partialSig.Signature
		if len(rawSig) < 2 {
			return false, nil
		}

		// The stored signature is DER with the sighash flag appended
		// as its final byte.
		hashType := txscript.SigHashType(rawSig[len(rawSig)-1])
		sig, err := ecdsa.ParseDERSignature(rawSig[:len(rawSig)-1])
		if err != nil {
			return false, nil
		}

		pubKey, err := btcec.ParsePubKey(partialSig.PubKey)
		if err != nil {
			return false, nil
		}

		digest, err := InputSigHash(packet, idx, hashType)
		if err != nil {
			return false, err
		}

		if !sig.Verify(digest, pubKey) {
			log.Warnf("Signature on input %d failed verification",
				idx)
			return false, nil
		}
	}

	return true, nil
}

// VerifyAllSignatures re-verifies every attached partial signature in the
// packet. It returns false, not an error, when any single verification
// fails; a false result is fatal for the signing session and must block
// finalization. Errors are reserved for structural problems such as missing
// prevout metadata.
//
// This is a second computation path, deliberately independent of the signer,
// so that an implementation bug in either path surfaces before a transaction
// reaches the network.
func VerifyAllSignatures(packet *psbt.Packet) (bool, error) {
	for idx := range packet.Inputs {
		ok, err := VerifyInputSignature(packet, idx)
		if err != nil {
			return false, err
		}

		if !ok {
			return false, nil
		}
	}

	return true, nil
}
