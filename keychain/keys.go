// Copyright (c) 2025 The btcsigner developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keychain

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/globalstake/btcsigner/netparams"
)

// ErrInvalidKey is returned when key material cannot be parsed into a valid
// secp256k1 private key.
var ErrInvalidKey = errors.New("invalid key material")

// privKeyLen is the length of a raw serialized private scalar.
const privKeyLen = 32

// DigestSigner is the capability required by the PSBT signer: produce an
// ECDSA signature over a precomputed 32-byte digest and expose the
// corresponding public key. Modeling this as an interface keeps key material
// swappable (e.g. for a hardware-backed key) without touching the PSBT
// handling code.
type DigestSigner interface {
	// SignDigest signs the given digest with deterministic (RFC6979)
	// nonce generation.
	SignDigest(digest []byte) (*ecdsa.Signature, error)

	// PubKey returns the public key corresponding to the signing key.
	PubKey() *btcec.PublicKey
}

// KeyPair bundles a private scalar with its derived public point. The public
// key is always derived from the private scalar, never supplied
// independently. Key pairs are owned exclusively by the signing session and
// are never persisted.
type KeyPair struct {
	priv *btcec.PrivateKey
}

// A compile time check to ensure that KeyPair implements the DigestSigner
// interface.
var _ DigestSigner = (*KeyPair)(nil)

// NewKeyPair generates a fresh random key pair.
func NewKeyPair() (*KeyPair, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	return &KeyPair{priv: priv}, nil
}

// KeyPairFromBytes constructs a key pair from a raw 32-byte private scalar.
func KeyPairFromBytes(b []byte) (*KeyPair, error) {
	if len(b) != privKeyLen {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d",
			ErrInvalidKey, privKeyLen, len(b))
	}

	priv, _ := btcec.PrivKeyFromBytes(b)

	// A zero scalar has no corresponding public point and must be
	// rejected.
	if priv.Key.IsZero() {
		return nil, fmt.Errorf("%w: zero private scalar", ErrInvalidKey)
	}

	return &KeyPair{priv: priv}, nil
}

// KeyPairFromWIF constructs a key pair from a WIF-encoded private key for the
// given network.
func KeyPairFromWIF(encoded string, net netparams.Network) (*KeyPair, error) {
	params, err := net.ChainParams()
	if err != nil {
		return nil, err
	}

	wif, err := btcutil.DecodeWIF(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	if !wif.IsForNet(params) {
		return nil, fmt.Errorf("%w: WIF is not for network %s",
			ErrInvalidKey, net)
	}

	return &KeyPair{priv: wif.PrivKey}, nil
}

// PubKey returns the public key derived from the private scalar.
func (kp *KeyPair) PubKey() *btcec.PublicKey {
	return kp.priv.PubKey()
}

// SignDigest signs a precomputed 32-byte digest. Nonce generation is
// deterministic per RFC6979, so signing the same digest twice with the same
// key yields the same signature.
func (kp *KeyPair) SignDigest(digest []byte) (*ecdsa.Signature, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("digest must be 32 bytes, got %d",
			len(digest))
	}

	return ecdsa.Sign(kp.priv, digest), nil
}

// P2WPKHAddress derives the pay-to-witness-pubkey-hash address and its
// locking script for the key pair on the given network. The script is the
// version-0 witness program wrapping the hash160 of the compressed public
// key. The result is a pure function of (public key, network).
func (kp *KeyPair) P2WPKHAddress(net netparams.Network) (
	*btcutil.AddressWitnessPubKeyHash, []byte, error) {

	params, err := net.ChainParams()
	if err != nil {
		return nil, nil, err
	}

	pubKeyHash := btcutil.Hash160(kp.PubKey().SerializeCompressed())
	addr, err := btcutil.NewAddressWitnessPubKeyHash(pubKeyHash, params)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	pkScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to build pkScript for "+
			"%s: %w", addr, err)
	}

	return addr, pkScript, nil
}
