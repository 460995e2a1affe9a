// Copyright (c) 2025 The btcsigner developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// btcsigner is a client-side pipeline for constructing, inspecting, signing
// and broadcasting single-signature P2WPKH transactions in PSBT form. It
// discovers spendable outputs through a block explorer, delegates transaction
// building to an external builder service, and performs PSBT signing,
// validation, finalization and extraction locally.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/globalstake/btcsigner/coinset"
	"github.com/globalstake/btcsigner/keychain"
	"github.com/globalstake/btcsigner/netparams"
	"github.com/globalstake/btcsigner/pkg/btcunit"
	"github.com/globalstake/btcsigner/psbtsign"
	flags "github.com/jessevdk/go-flags"
)

// sessionKey loads the signing key pair for the session from the --wif flag.
func sessionKey() (*keychain.KeyPair, netparams.Network, error) {
	net, err := cfg.network()
	if err != nil {
		return nil, "", err
	}

	if cfg.WIF == "" {
		return nil, "", fmt.Errorf("no signing key configured, " +
			"use --wif")
	}

	keyPair, err := keychain.KeyPairFromWIF(cfg.WIF, net)
	if err != nil {
		return nil, "", err
	}

	return keyPair, net, nil
}

// utxosCommand lists the spendable outputs for the session key's address.
type utxosCommand struct{}

func (x *utxosCommand) Execute(_ []string) error {
	keyPair, net, err := sessionKey()
	if err != nil {
		return err
	}

	addr, _, err := keyPair.P2WPKHAddress(net)
	if err != nil {
		return err
	}

	client, err := cfg.explorerClient()
	if err != nil {
		return err
	}

	utxos, err := client.GetAddressUTXOs(
		context.Background(), addr.EncodeAddress(),
	)
	if err != nil {
		return err
	}

	fmt.Printf("address: %s\n", addr.EncodeAddress())
	for _, utxo := range utxos {
		fmt.Printf("%s:%d\t%d sat\n", utxo.TxID, utxo.Vout,
			int64(utxo.Value))
	}
	fmt.Printf("total: %d utxos\n", len(utxos))

	return nil
}

// requestCommand assembles a transfer request from the session key's
// spendable outputs and submits it to the builder service, printing the
// unsigned PSBT it returns.
type requestCommand struct {
	Destination string `long:"dest" description:"Destination address" required:"true"`
	Amount      int64  `long:"amount" description:"Amount to send, in satoshis" required:"true"`
	Change      string `long:"change" description:"Change address (defaults to the key's own address)"`
	FeeRate     int64  `long:"feerate" description:"Fee rate in sat/vB" default:"2"`
}

func (x *requestCommand) Execute(_ []string) error {
	keyPair, net, err := sessionKey()
	if err != nil {
		return err
	}

	ownAddr, ownScript, err := keyPair.P2WPKHAddress(net)
	if err != nil {
		return err
	}

	destAddr, err := netparams.DecodeAddress(x.Destination, net)
	if err != nil {
		return err
	}

	var changeAddr btcutil.Address = ownAddr
	if x.Change != "" {
		changeAddr, err = netparams.DecodeAddress(x.Change, net)
		if err != nil {
			return err
		}
	}

	client, err := cfg.explorerClient()
	if err != nil {
		return err
	}

	ctx := context.Background()
	utxos, err := client.GetAddressUTXOs(ctx, ownAddr.EncodeAddress())
	if err != nil {
		return err
	}

	descriptors, err := coinset.ToInputDescriptors(utxos, ownScript)
	if err != nil {
		return err
	}

	request, err := coinset.BuildTransferRequest(
		net, descriptors, destAddr, btcutil.Amount(x.Amount),
		changeAddr, btcunit.NewSatPerVByte(x.FeeRate),
	)
	if err != nil {
		return err
	}

	builderClient, err := cfg.builderClient()
	if err != nil {
		return err
	}

	unsignedPsbt, err := builderClient.BuildPsbt(ctx, request)
	if err != nil {
		return err
	}

	fmt.Println(unsignedPsbt)

	return nil
}

// signCommand signs a PSBT with the session key, independently verifies the
// produced signatures, finalizes every input and extracts the raw
// transaction. Verification failure blocks finalization unconditionally.
type signCommand struct {
	Psbt      string `long:"psbt" description:"PSBT in base64 (alternative to --psbtfile)"`
	PsbtFile  string `long:"psbtfile" description:"Path to a file holding the PSBT in base64"`
	Broadcast bool   `long:"broadcast" description:"Broadcast the extracted transaction"`
}

func (x *signCommand) Execute(_ []string) error {
	keyPair, _, err := sessionKey()
	if err != nil {
		return err
	}

	encoded, err := x.loadEncoded()
	if err != nil {
		return err
	}

	packet, err := psbtsign.LoadBase64(encoded)
	if err != nil {
		return err
	}

	signed, err := psbtsign.SignAllInputs(
		packet, keyPair, txscript.SigHashAll,
	)
	if err != nil {
		return err
	}
	fmt.Printf("signed %d of %d inputs\n", signed, len(packet.Inputs))

	ok, err := psbtsign.VerifyAllSignatures(packet)
	if err != nil {
		return err
	}
	if !ok {
		return psbtsign.ErrSignatureVerification
	}

	if err := psbtsign.FinalizeAll(packet); err != nil {
		return err
	}

	finalTx, err := psbtsign.Extract(packet)
	if err != nil {
		return err
	}

	fmt.Printf("txid: %s\n", finalTx.TxID)
	fmt.Printf("rawtx: %s\n", finalTx.Hex())

	if !x.Broadcast {
		return nil
	}

	client, err := cfg.explorerClient()
	if err != nil {
		return err
	}

	txid, err := client.BroadcastTransaction(
		context.Background(), finalTx.Hex(),
	)
	if err != nil {
		return err
	}

	fmt.Printf("broadcast accepted: %s\n", txid)

	return nil
}

// loadEncoded returns the base64 PSBT from either the inline flag or the
// file flag.
func (x *signCommand) loadEncoded() (string, error) {
	switch {
	case x.Psbt != "" && x.PsbtFile != "":
		return "", fmt.Errorf("--psbt and --psbtfile are mutually " +
			"exclusive")

	case x.Psbt != "":
		return x.Psbt, nil

	case x.PsbtFile != "":
		raw, err := os.ReadFile(x.PsbtFile)
		if err != nil {
			return "", fmt.Errorf("unable to read psbt file: %w",
				err)
		}
		return string(raw), nil

	default:
		return "", fmt.Errorf("either --psbt or --psbtfile is " +
			"required")
	}
}

// broadcastCommand submits an already-extracted raw transaction.
type broadcastCommand struct {
	RawTx string `long:"rawtx" description:"Hex-encoded finalized transaction" required:"true"`
}

func (x *broadcastCommand) Execute(_ []string) error {
	client, err := cfg.explorerClient()
	if err != nil {
		return err
	}

	txid, err := client.BroadcastTransaction(
		context.Background(), x.RawTx,
	)
	if err != nil {
		return err
	}

	fmt.Printf("broadcast accepted: %s\n", txid)

	return nil
}

// decodeCommand inspects a PSBT, printing its inputs and outputs with
// addresses rendered for the explicitly configured network.
type decodeCommand struct {
	Psbt string `long:"psbt" description:"PSBT in base64" required:"true"`
}

func (x *decodeCommand) Execute(_ []string) error {
	net, err := cfg.network()
	if err != nil {
		return err
	}

	params, err := net.ChainParams()
	if err != nil {
		return err
	}

	packet, err := psbtsign.LoadBase64(x.Psbt)
	if err != nil {
		return err
	}

	tx := packet.UnsignedTx
	fmt.Printf("version: %d, locktime: %d\n", tx.Version, tx.LockTime)

	for i, txIn := range tx.TxIn {
		fmt.Printf("input %d: %s:%d", i,
			txIn.PreviousOutPoint.Hash,
			txIn.PreviousOutPoint.Index)

		in := packet.Inputs[i]
		if in.WitnessUtxo != nil {
			fmt.Printf(" value=%d sat", in.WitnessUtxo.Value)
		}
		if len(in.PartialSigs) > 0 {
			fmt.Printf(" [signed]")
		}
		if in.FinalScriptWitness != nil {
			fmt.Printf(" [finalized]")
		}
		fmt.Println()
	}

	for i, txOut := range tx.TxOut {
		_, addrs, _, err := txscript.ExtractPkScriptAddrs(
			txOut.PkScript, params,
		)
		addrStr := fmt.Sprintf("%x", txOut.PkScript)
		if err == nil && len(addrs) > 0 {
			addrStr = addrs[0].EncodeAddress()
		}

		fmt.Printf("output %d: %d sat -> %s\n", i, txOut.Value,
			addrStr)
	}

	return nil
}

func main() {
	parser := flags.NewParser(&cfg, flags.Default)

	commands := []struct {
		name, short, long string
		cmd               interface{}
	}{
		{
			"utxos", "List spendable outputs",
			"List the spendable outputs owned by the session key.",
			&utxosCommand{},
		},
		{
			"request", "Build an unsigned PSBT",
			"Assemble a transfer request and submit it to the " +
				"builder service.",
			&requestCommand{},
		},
		{
			"sign", "Sign, verify, finalize and extract a PSBT",
			"Sign every owned input of a PSBT, independently " +
				"verify the signatures, finalize, and " +
				"extract the raw transaction.",
			&signCommand{},
		},
		{
			"broadcast", "Broadcast a finalized transaction",
			"Submit a hex-encoded finalized transaction to the " +
				"network.",
			&broadcastCommand{},
		},
		{
			"decode", "Inspect a PSBT",
			"Decode a PSBT and print its inputs and outputs " +
				"for the configured network.",
			&decodeCommand{},
		},
	}

	for _, c := range commands {
		_, err := parser.AddCommand(c.name, c.short, c.long, c.cmd)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	// Flags must be parsed before logging can be configured, so command
	// execution is deferred to a second pass via CommandHandler.
	parser.CommandHandler = func(command flags.Commander,
		args []string) error {

		if err := setUpLogging(cfg.DebugLevel); err != nil {
			return err
		}

		return command.Execute(args)
	}

	if _, err := parser.Parse(); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}

		// Flag errors are already printed by the parser; command
		// execution errors are not.
		var flagsErr *flags.Error
		if !errors.As(err, &flagsErr) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
