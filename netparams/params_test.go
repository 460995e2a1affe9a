// Copyright (c) 2025 The btcsigner developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package netparams

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"
)

// TestParseNetwork tests that every supported identifier parses and that
// anything else fails with ErrUnknownNetwork instead of defaulting.
func TestParseNetwork(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		input       string
		expected    Network
		expectedErr error
	}{
		{
			name:     "mainnet",
			input:    "mainnet",
			expected: Mainnet,
		},
		{
			name:     "testnet",
			input:    "testnet",
			expected: Testnet,
		},
		{
			name:     "signet",
			input:    "signet",
			expected: Signet,
		},
		{
			name:     "regtest",
			input:    "regtest",
			expected: Regtest,
		},
		{
			name:     "case insensitive",
			input:    "MainNet",
			expected: Mainnet,
		},
		{
			name:        "empty string",
			input:       "",
			expectedErr: ErrUnknownNetwork,
		},
		{
			name:        "unknown value",
			input:       "simnet",
			expectedErr: ErrUnknownNetwork,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			net, err := ParseNetwork(tc.input)
			if tc.expectedErr != nil {
				require.ErrorIs(t, err, tc.expectedErr)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.expected, net)
		})
	}
}

// TestChainParams tests the mapping from network identifiers to chaincfg
// parameters.
func TestChainParams(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		net      Network
		expected *chaincfg.Params
	}{
		{Mainnet, &chaincfg.MainNetParams},
		{Testnet, &chaincfg.TestNet3Params},
		{Signet, &chaincfg.SigNetParams},
		{Regtest, &chaincfg.RegressionNetParams},
	}

	for _, tc := range testCases {
		params, err := tc.net.ChainParams()
		require.NoError(t, err)
		require.Equal(t, tc.expected, params)
	}

	// An unknown network must fail rather than default.
	_, err := Network("simnet").ChainParams()
	require.ErrorIs(t, err, ErrUnknownNetwork)
}

// TestDecodeAddressExplicitNetwork tests that address decoding always takes
// an explicit network and rejects addresses belonging to another network.
func TestDecodeAddressExplicitNetwork(t *testing.T) {
	t.Parallel()

	// Arrange: Build the same witness program on two networks.
	pubKeyHash := []byte{
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a,
		0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10, 0x11, 0x12, 0x13, 0x14,
	}

	mainAddr, err := btcutil.NewAddressWitnessPubKeyHash(
		pubKeyHash, &chaincfg.MainNetParams,
	)
	require.NoError(t, err)

	testAddr, err := btcutil.NewAddressWitnessPubKeyHash(
		pubKeyHash, &chaincfg.TestNet3Params,
	)
	require.NoError(t, err)

	// Act + Assert: Decoding for the matching network succeeds.
	decoded, err := DecodeAddress(mainAddr.EncodeAddress(), Mainnet)
	require.NoError(t, err)
	require.Equal(t, mainAddr.EncodeAddress(), decoded.EncodeAddress())

	// Act + Assert: Decoding a testnet address as mainnet fails.
	_, err = DecodeAddress(testAddr.EncodeAddress(), Mainnet)
	require.Error(t, err)

	// Act + Assert: An unknown network fails before any decoding.
	_, err = DecodeAddress(mainAddr.EncodeAddress(), Network("simnet"))
	require.ErrorIs(t, err, ErrUnknownNetwork)
}
