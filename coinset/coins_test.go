// Copyright (c) 2025 The btcsigner developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coinset

import (
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/globalstake/btcsigner/netparams"
	"github.com/globalstake/btcsigner/pkg/btcunit"
	"github.com/stretchr/testify/require"
)

var (
	// testOwnerScript is a syntactically valid v0 witness program used as
	// the owner's locking script.
	testOwnerScript = append(
		[]byte{0x00, 0x14},
		[]byte{
			0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11,
			0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11,
			0x11, 0x11, 0x11, 0x11,
		}...,
	)

	// testForeignScript simulates a script injected by a malicious or
	// buggy data source.
	testForeignScript = append(
		[]byte{0x00, 0x14},
		[]byte{
			0x22, 0x22, 0x22, 0x22, 0x22, 0x22, 0x22, 0x22,
			0x22, 0x22, 0x22, 0x22, 0x22, 0x22, 0x22, 0x22,
			0x22, 0x22, 0x22, 0x22,
		}...,
	)
)

// TestToInputDescriptorsEmptySet tests that an empty UTXO set is rejected
// with ErrEmptyUtxoSet and yields no descriptors.
func TestToInputDescriptorsEmptySet(t *testing.T) {
	t.Parallel()

	descriptors, err := ToInputDescriptors(nil, testOwnerScript)
	require.ErrorIs(t, err, ErrEmptyUtxoSet)
	require.Nil(t, descriptors)

	descriptors, err = ToInputDescriptors([]UTXO{}, testOwnerScript)
	require.ErrorIs(t, err, ErrEmptyUtxoSet)
	require.Nil(t, descriptors)
}

// TestToInputDescriptorsOwnerScript tests that descriptors always carry the
// owner's locking script, never the script reported by the data source.
func TestToInputDescriptorsOwnerScript(t *testing.T) {
	t.Parallel()

	utxos := []UTXO{
		{
			TxID:     chainhash.Hash{1},
			Vout:     0,
			Value:    20_000,
			PkScript: testForeignScript,
		},
		{
			TxID:     chainhash.Hash{2},
			Vout:     3,
			Value:    50_000,
			PkScript: nil,
		},
	}

	descriptors, err := ToInputDescriptors(utxos, testOwnerScript)
	require.NoError(t, err)
	require.Len(t, descriptors, 2)

	for i, desc := range descriptors {
		require.Equal(t, testOwnerScript, desc.PkScript)
		require.Equal(t, utxos[i].TxID, desc.OutPoint.Hash)
		require.Equal(t, utxos[i].Vout, desc.OutPoint.Index)
		require.Equal(t, utxos[i].Value, desc.Value)
		require.EqualValues(
			t, wire.MaxTxInSequenceNum, desc.Sequence,
		)
	}

	// The owner's script is mandatory.
	_, err = ToInputDescriptors(utxos, nil)
	require.ErrorIs(t, err, ErrMissingScript)
}

// TestBuildTransferRequest tests assembly of the builder-service request
// body, including the optional sequence override.
func TestBuildTransferRequest(t *testing.T) {
	t.Parallel()

	// Arrange: Two addresses on testnet and three descriptors: one with
	// the default sequence, one with a nonzero override and one with an
	// explicit zero override.
	destAddr, err := btcutil.NewAddressWitnessPubKeyHash(
		testOwnerScript[2:], &chaincfg.TestNet3Params,
	)
	require.NoError(t, err)

	changeAddr, err := btcutil.NewAddressWitnessPubKeyHash(
		testForeignScript[2:], &chaincfg.TestNet3Params,
	)
	require.NoError(t, err)

	descriptors := []InputDescriptor{
		{
			OutPoint: wire.OutPoint{
				Hash:  chainhash.Hash{1},
				Index: 0,
			},
			Value:    20_000,
			PkScript: testOwnerScript,
			Sequence: wire.MaxTxInSequenceNum,
		},
		{
			OutPoint: wire.OutPoint{
				Hash:  chainhash.Hash{2},
				Index: 1,
			},
			Value:    15_000,
			PkScript: testOwnerScript,
			Sequence: wire.MaxTxInSequenceNum - 2,
		},
		{
			OutPoint: wire.OutPoint{
				Hash:  chainhash.Hash{3},
				Index: 2,
			},
			Value:    15_000,
			PkScript: testOwnerScript,
			Sequence: 0,
		},
	}

	// Act: Assemble the request.
	request, err := BuildTransferRequest(
		netparams.Testnet, descriptors, destAddr, 9_000, changeAddr,
		btcunit.NewSatPerVByte(2),
	)
	require.NoError(t, err)

	// Assert: Top-level fields.
	require.Equal(t, "testnet", request.Network)
	require.Equal(t, destAddr.EncodeAddress(), request.Destination)
	require.Equal(t, changeAddr.EncodeAddress(), request.ChangeAddress)
	require.EqualValues(t, 9_000, request.Amount)
	require.EqualValues(t, 2, request.FeeRate)
	require.Len(t, request.Inputs, 3)

	// Assert: Per-input fields. The default sequence is omitted, the
	// overrides are carried, including the zero override used for
	// absolute-locktime spends.
	first := request.Inputs[0]
	require.Equal(t, descriptors[0].OutPoint.Hash.String(), first.TxID)
	require.EqualValues(t, 20_000, first.Amount)
	require.Equal(
		t, hex.EncodeToString(testOwnerScript), first.PkScript,
	)
	require.Nil(t, first.Sequence)

	second := request.Inputs[1]
	require.EqualValues(t, 1, second.Vout)
	require.NotNil(t, second.Sequence)
	require.EqualValues(
		t, wire.MaxTxInSequenceNum-2, *second.Sequence,
	)

	third := request.Inputs[2]
	require.NotNil(t, third.Sequence)
	require.Zero(t, *third.Sequence)
}

// TestBuildTransferRequestErrors tests the rejection paths.
func TestBuildTransferRequestErrors(t *testing.T) {
	t.Parallel()

	addr, err := btcutil.NewAddressWitnessPubKeyHash(
		testOwnerScript[2:], &chaincfg.TestNet3Params,
	)
	require.NoError(t, err)

	// No descriptors: no request is produced.
	request, err := BuildTransferRequest(
		netparams.Testnet, nil, addr, 9_000, addr,
		btcunit.NewSatPerVByte(2),
	)
	require.ErrorIs(t, err, ErrEmptyUtxoSet)
	require.Nil(t, request)

	// Negative fee rate.
	descriptors := []InputDescriptor{{
		OutPoint: wire.OutPoint{Hash: chainhash.Hash{1}},
		Value:    20_000,
		PkScript: testOwnerScript,
		Sequence: wire.MaxTxInSequenceNum,
	}}
	_, err = BuildTransferRequest(
		netparams.Testnet, descriptors, addr, 9_000, addr,
		btcunit.NewSatPerVByte(-1),
	)
	require.Error(t, err)
}
