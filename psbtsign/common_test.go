// Copyright (c) 2025 The btcsigner developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package psbtsign

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/globalstake/btcsigner/keychain"
	"github.com/globalstake/btcsigner/netparams"
	"github.com/stretchr/testify/require"
)

var (
	// ownerKeyBytes is the fixed private scalar of the key that owns the
	// test inputs.
	ownerKeyBytes = []byte{
		0x2b, 0xd8, 0x06, 0xc9, 0x7f, 0x0e, 0x00, 0xaf,
		0x1a, 0x1f, 0xc3, 0x32, 0x8f, 0xa7, 0x63, 0xa9,
		0x26, 0x97, 0x23, 0xc8, 0xdb, 0x8f, 0xac, 0x4f,
		0x93, 0xaf, 0x71, 0xdb, 0x18, 0x6d, 0x6e, 0x90,
	}

	// foreignKeyBytes is the fixed private scalar of a key that owns none
	// of the test inputs unless a test says otherwise.
	foreignKeyBytes = []byte{
		0xe3, 0xc0, 0x3c, 0x77, 0x9c, 0x1a, 0x54, 0xa8,
		0x6a, 0x67, 0x49, 0x75, 0x58, 0x1c, 0x17, 0x6e,
		0x6e, 0x9b, 0x8e, 0x3a, 0x22, 0x1f, 0x0a, 0x42,
		0x2c, 0x3f, 0x4a, 0x8a, 0x5a, 0x6e, 0x9d, 0x1c,
	}
)

// testKeyPair builds a key pair from a fixed scalar.
func testKeyPair(t *testing.T, keyBytes []byte) *keychain.KeyPair {
	t.Helper()

	keyPair, err := keychain.KeyPairFromBytes(keyBytes)
	require.NoError(t, err)

	return keyPair
}

// scriptFor derives the P2WPKH locking script of a key pair.
func scriptFor(t *testing.T, keyPair *keychain.KeyPair) []byte {
	t.Helper()

	_, pkScript, err := keyPair.P2WPKHAddress(netparams.Regtest)
	require.NoError(t, err)

	return pkScript
}

// testPacket builds an unsigned packet spending one fake previous output per
// entry of prevOuts, paying to txOuts. A nil prevOut entry leaves that
// input's prevout metadata unset.
func testPacket(t *testing.T, prevOuts []*wire.TxOut,
	txOuts []*wire.TxOut) *psbt.Packet {

	t.Helper()

	tx := wire.NewMsgTx(2)
	for i := range prevOuts {
		prevHash := chainhash.Hash{byte(i + 1)}
		tx.AddTxIn(wire.NewTxIn(
			wire.NewOutPoint(&prevHash, uint32(i)), nil, nil,
		))
	}
	for _, txOut := range txOuts {
		tx.AddTxOut(txOut)
	}

	packet, err := psbt.NewFromUnsignedTx(tx)
	require.NoError(t, err)

	for i, prevOut := range prevOuts {
		if prevOut == nil {
			continue
		}
		packet.Inputs[i].WitnessUtxo = prevOut
	}

	return packet
}
