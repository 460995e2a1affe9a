// Copyright (c) 2025 The btcsigner developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/btcsuite/btclog"
	"github.com/globalstake/btcsigner/builder"
	"github.com/globalstake/btcsigner/explorer"
	"github.com/globalstake/btcsigner/netparams"
	"github.com/globalstake/btcsigner/psbtsign"
)

// options holds the global flags shared by every subcommand. The network is
// always required; it is never inferred or defaulted (decoding an address or
// PSBT for the wrong network is the dominant operator error this tool guards
// against).
type options struct {
	Network string `long:"network" description:"Bitcoin network to operate on (mainnet, testnet, signet, regtest)" required:"true"`

	WIF string `long:"wif" description:"WIF-encoded private key for the signing session"`

	ExplorerURL string `long:"explorerurl" description:"Override the block explorer API base URL"`

	BuilderURL string `long:"builderurl" description:"Transaction builder service base URL"`

	RequestTimeout time.Duration `long:"requesttimeout" description:"Timeout for explorer and builder HTTP requests" default:"30s"`

	DebugLevel string `long:"debuglevel" description:"Logging level (trace, debug, info, warn, error, critical, off)" default:"info"`
}

// cfg is populated by the flag parser before any subcommand executes.
var cfg options

// network parses and validates the configured network identifier.
func (o *options) network() (netparams.Network, error) {
	return netparams.ParseNetwork(o.Network)
}

// explorerClient builds an explorer client for the configured network,
// honoring a URL override.
func (o *options) explorerClient() (*explorer.Client, error) {
	net, err := o.network()
	if err != nil {
		return nil, err
	}

	baseURL := o.ExplorerURL
	if baseURL == "" {
		baseURL = net.ExplorerURL()
	}

	return explorer.NewClient(&explorer.Config{
		BaseURL:        baseURL,
		RequestTimeout: o.RequestTimeout,
		MaxRetries:     2,
	}), nil
}

// builderClient builds a client for the transaction-builder service.
func (o *options) builderClient() (*builder.Client, error) {
	if o.BuilderURL == "" {
		return nil, fmt.Errorf("no builder service configured, " +
			"use --builderurl")
	}

	return builder.NewClient(&builder.Config{
		BaseURL:        o.BuilderURL,
		RequestTimeout: o.RequestTimeout,
	}), nil
}

// setUpLogging wires the btclog backend into the library packages at the
// configured level.
func setUpLogging(level string) error {
	parsedLevel, ok := btclog.LevelFromString(level)
	if !ok {
		return fmt.Errorf("invalid debug level %q", level)
	}

	backend := btclog.NewBackend(os.Stderr)

	sgnr := backend.Logger("SGNR")
	xplr := backend.Logger("XPLR")
	bldr := backend.Logger("BLDR")

	sgnr.SetLevel(parsedLevel)
	xplr.SetLevel(parsedLevel)
	bldr.SetLevel(parsedLevel)

	psbtsign.UseLogger(sgnr)
	explorer.UseLogger(xplr)
	builder.UseLogger(bldr)

	return nil
}
