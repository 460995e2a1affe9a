// Copyright (c) 2025 The btcsigner developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package netparams

import (
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
)

// ErrUnknownNetwork is returned when a network identifier is not one of the
// four supported networks. Unrecognized values never fall back to a default.
var ErrUnknownNetwork = errors.New("unknown network")

// ErrAddressWrongNetwork is returned when an address decodes successfully but
// belongs to a different network than the one requested.
var ErrAddressWrongNetwork = errors.New("address is not valid for network")

// Network identifies one of the supported Bitcoin networks. It is chosen once
// per signing session and is immutable afterwards.
type Network string

const (
	// Mainnet is the main Bitcoin network.
	Mainnet Network = "mainnet"

	// Testnet is the test network (version 3).
	Testnet Network = "testnet"

	// Signet is the signature-gated test network.
	Signet Network = "signet"

	// Regtest is the local regression test network.
	Regtest Network = "regtest"
)

// ParseNetwork converts a network identifier string into a Network. It fails
// with ErrUnknownNetwork for any value outside the supported set rather than
// silently defaulting.
func ParseNetwork(s string) (Network, error) {
	switch Network(strings.ToLower(s)) {
	case Mainnet:
		return Mainnet, nil

	case Testnet:
		return Testnet, nil

	case Signet:
		return Signet, nil

	case Regtest:
		return Regtest, nil

	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownNetwork, s)
	}
}

// ChainParams returns the chaincfg parameters for the network. The parameters
// determine the bech32 human-readable prefix used for address encoding.
func (n Network) ChainParams() (*chaincfg.Params, error) {
	switch n {
	case Mainnet:
		return &chaincfg.MainNetParams, nil

	case Testnet:
		return &chaincfg.TestNet3Params, nil

	case Signet:
		return &chaincfg.SigNetParams, nil

	case Regtest:
		return &chaincfg.RegressionNetParams, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownNetwork, string(n))
	}
}

// ExplorerURL returns the default base URL of the esplora-style block
// explorer API for the network. The regtest default assumes a local esplora
// instance.
func (n Network) ExplorerURL() string {
	switch n {
	case Mainnet:
		return "https://blockstream.info/api"

	case Testnet:
		return "https://blockstream.info/testnet/api"

	case Signet:
		return "https://mempool.space/signet/api"

	default:
		return "http://localhost:3002"
	}
}

// DecodeAddress decodes an address string for an explicitly supplied network.
// The network is always required; it is never inferred from the address
// itself, and an address that belongs to a different network is rejected with
// ErrAddressWrongNetwork.
func DecodeAddress(addr string, n Network) (btcutil.Address, error) {
	params, err := n.ChainParams()
	if err != nil {
		return nil, err
	}

	decoded, err := btcutil.DecodeAddress(addr, params)
	if err != nil {
		return nil, fmt.Errorf("unable to decode address %q: %w",
			addr, err)
	}

	if !decoded.IsForNet(params) {
		return nil, fmt.Errorf("%w: %q is not a %s address",
			ErrAddressWrongNetwork, addr, n)
	}

	return decoded, nil
}
