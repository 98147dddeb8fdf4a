package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"tdcchain/cmd/internal/passphrase"
	"tdcchain/core"
	"tdcchain/crypto"
	"tdcchain/gateway/middleware"
)

func keygen(args []string, out io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: keygen <keystore>")
	}
	secret, err := passphrase.NewSource(envPassphrase).WithConfirmation().Get()
	if err != nil {
		return err
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	if err := crypto.SaveToKeystore(args[0], key, secret); err != nil {
		return fmt.Errorf("save keystore: %w", err)
	}
	fmt.Fprintf(out, "Principal: %s\nKeystore:  %s\n", key.PubKey().Address().String(), args[0])
	return nil
}

func convertAddress(args []string, out io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: address <principal>")
	}
	raw, err := crypto.ParseAddress(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "bech32: %s\nhex:    0x%x\n", crypto.FormatAddress(raw), raw)
	return nil
}

func ledgerAddress(args []string, out io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: ledger-address <name>")
	}
	fmt.Fprintln(out, crypto.FormatAddress(core.LedgerAddress(args[0])))
	return nil
}

func issueToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(out)
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	issuer := fs.String("issuer", "", "issuer claim")
	audience := fs.String("audience", "", "audience claim")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: token [-ttl 1h] <keystore>")
	}
	secret := lookupEnv(envJWTSecret)
	if secret == "" {
		return fmt.Errorf("%s must hold the gateway signing secret", envJWTSecret)
	}
	pass, err := passphrase.NewSource(envPassphrase).Get()
	if err != nil {
		return err
	}
	key, err := crypto.LoadFromKeystore(fs.Arg(0), pass)
	if err != nil {
		return fmt.Errorf("load keystore: %w", err)
	}
	token, err := middleware.IssueToken([]byte(secret), *issuer, *audience, key.PubKey().Address().String(), *ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, token)
	return nil
}
