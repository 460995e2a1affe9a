// Copyright (c) 2025 The btcsigner developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package btcunit provides a set of types for dealing with bitcoin units.
package btcunit

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
)

// SatPerVByte expresses a fee rate in satoshis per virtual byte, the unit the
// transfer-request boundary and the explorer's fee estimates use.
type SatPerVByte int64

// NewSatPerVByte creates a new fee rate in sat/vb.
func NewSatPerVByte(rate int64) SatPerVByte {
	return SatPerVByte(rate)
}

// Validate rejects fee rates that cannot be submitted to a builder service.
func (s SatPerVByte) Validate() error {
	if s < 0 {
		return fmt.Errorf("fee rate cannot be negative: %d", s)
	}

	return nil
}

// FeeForVSize calculates the fee resulting from this fee rate and the given
// transaction size in virtual bytes.
func (s SatPerVByte) FeeForVSize(vbytes int64) btcutil.Amount {
	return btcutil.Amount(int64(s) * vbytes)
}

// String returns a human-readable string of the fee rate.
func (s SatPerVByte) String() string {
	return fmt.Sprintf("%d sat/vb", int64(s))
}
