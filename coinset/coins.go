// Copyright (c) 2025 The btcsigner developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coinset

import (
	"encoding/hex"
	"errors"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/globalstake/btcsigner/netparams"
	"github.com/globalstake/btcsigner/pkg/btcunit"
)

var (
	// ErrEmptyUtxoSet is returned when input materialization is attempted
	// with zero spendable outputs. A transaction cannot be built without
	// inputs.
	ErrEmptyUtxoSet = errors.New("empty utxo set")

	// ErrMissingScript is returned when the owner's locking script is
	// absent or empty.
	ErrMissingScript = errors.New("missing owner locking script")
)

// UTXO is an unspent transaction output discovered by an external data
// source. It is immutable once fetched and is consumed to build PSBT inputs.
type UTXO struct {
	// TxID is the hash of the transaction that created the output.
	TxID chainhash.Hash

	// Vout is the output's index within that transaction.
	Vout uint32

	// Value is the output's value.
	Value btcutil.Amount

	// PkScript is the locking script as reported by the data source. It
	// is informational only; input materialization always substitutes the
	// owner's own script.
	PkScript []byte
}

// InputDescriptor is the canonical description of a transaction input to be
// spent: the previous outpoint, its value, and the locking script that
// encumbers it.
type InputDescriptor struct {
	// OutPoint references the previous output being spent.
	OutPoint wire.OutPoint

	// Value is the previous output's value.
	Value btcutil.Amount

	// PkScript is the owner's locking script for the previous output.
	PkScript []byte

	// Sequence is the input's sequence number. Defaults to the maximum
	// sequence; callers may override it per input (e.g. to signal RBF).
	Sequence uint32
}

// ToInputDescriptors converts externally-discovered UTXOs into input
// descriptors carrying the owner's locking script.
//
// The descriptors deliberately carry ownerPkScript rather than the script
// reported by the data source. A malicious or buggy explorer response could
// otherwise inject a foreign script, which would later cause the signer to
// skip the input or sign against the wrong script.
func ToInputDescriptors(utxos []UTXO,
	ownerPkScript []byte) ([]InputDescriptor, error) {

	if len(utxos) == 0 {
		return nil, ErrEmptyUtxoSet
	}

	if len(ownerPkScript) == 0 {
		return nil, ErrMissingScript
	}

	descriptors := make([]InputDescriptor, 0, len(utxos))
	for _, utxo := range utxos {
		descriptors = append(descriptors, InputDescriptor{
			OutPoint: wire.OutPoint{
				Hash:  utxo.TxID,
				Index: utxo.Vout,
			},
			Value:    utxo.Value,
			PkScript: ownerPkScript,
			Sequence: wire.MaxTxInSequenceNum,
		})
	}

	return descriptors, nil
}

// TransferInput is the per-input section of a transfer request. Sequence is a
// pointer so that an explicit override of zero, used for absolute-locktime
// spends, stays distinguishable from "no override".
type TransferInput struct {
	TxID     string  `json:"txid"`
	Vout     uint32  `json:"vout"`
	Amount   int64   `json:"amount"`
	PkScript string  `json:"pk_script"`
	Sequence *uint32 `json:"sequence,omitempty"`
}

// TransferRequest is the body submitted to the external transaction-builder
// service. It is unsigned; the builder performs input/output selection,
// change calculation and fee estimation and returns an unsigned PSBT.
type TransferRequest struct {
	Network       string          `json:"network"`
	Destination   string          `json:"destination"`
	Amount        int64           `json:"amount"`
	ChangeAddress string          `json:"change_address"`
	FeeRate       int64           `json:"fee_rate"`
	Inputs        []TransferInput `json:"inputs"`
}

// BuildTransferRequest assembles a transfer request from materialized input
// descriptors and the operator's destination and change addresses. The fee
// rate is expressed in satoshis per virtual byte.
func BuildTransferRequest(net netparams.Network,
	descriptors []InputDescriptor, dest btcutil.Address,
	amount btcutil.Amount, change btcutil.Address,
	feeRate btcunit.SatPerVByte) (*TransferRequest, error) {

	// A transfer request with zero inputs cannot form a transaction.
	if len(descriptors) == 0 {
		return nil, ErrEmptyUtxoSet
	}

	if err := feeRate.Validate(); err != nil {
		return nil, err
	}

	inputs := make([]TransferInput, 0, len(descriptors))
	for _, desc := range descriptors {
		in := TransferInput{
			TxID:     desc.OutPoint.Hash.String(),
			Vout:     desc.OutPoint.Index,
			Amount:   int64(desc.Value),
			PkScript: hex.EncodeToString(desc.PkScript),
		}

		// The default sequence is implied on the builder side; only an
		// explicit override is transmitted.
		if desc.Sequence != wire.MaxTxInSequenceNum {
			seq := desc.Sequence
			in.Sequence = &seq
		}

		inputs = append(inputs, in)
	}

	return &TransferRequest{
		Network:       string(net),
		Destination:   dest.EncodeAddress(),
		Amount:        int64(amount),
		ChangeAddress: change.EncodeAddress(),
		FeeRate:       int64(feeRate),
		Inputs:        inputs,
	}, nil
}
