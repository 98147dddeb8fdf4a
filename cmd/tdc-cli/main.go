package main

import (
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	envGateway    = "TDC_GATEWAY_URL"
	envToken      = "TDC_TOKEN"
	envPassphrase = "TDC_KEYSTORE_PASSPHRASE"
	envJWTSecret  = "TDC_JWT_SECRET"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) < 1 {
		printUsage(out)
		return nil
	}
	command, rest := args[0], args[1:]
	switch command {
	case "keygen":
		return keygen(rest, out)
	case "address":
		return convertAddress(rest, out)
	case "ledger-address":
		return ledgerAddress(rest, out)
	case "token":
		return issueToken(rest, out)
	case "journal-export":
		return exportJournal(rest, out)
	case "journal-verify":
		return verifyJournal(rest, out)
	case "ledgers", "ledger", "supply", "balance", "token-info",
		"mint", "transfer", "redeem", "grant", "revoke", "renounce", "link":
		return gatewayCommand(command, rest, out)
	case "help", "-h", "--help":
		printUsage(out)
		return nil
	default:
		printUsage(out)
		return fmt.Errorf("unknown command %q", command)
	}
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, strings.TrimSpace(`
Usage: tdc-cli <command> [arguments]

Keys:
  keygen <keystore>                         create an encrypted principal key
  address <principal>                       convert between bech32 and 0x forms
  ledger-address <name>                     principal of a ledger deployed as name
  token [-ttl 1h] <keystore>                sign a gateway bearer token (secret from TDC_JWT_SECRET)

Journal:
  journal-export -dsn <db> [-ledger x] [-type t] [-out f]   dump events to parquet
  journal-verify -dsn <db>                  check the journal digest chain

Gateway (TDC_GATEWAY_URL, bearer from TDC_TOKEN):
  ledgers                                   list deployed ledgers
  ledger <ledger>                           show one ledger
  supply <ledger>                           total supply
  balance <ledger> <account>                balance of account
  token-info <ledger> <id>                  owner and state of a token
  mint <ledger> <to> [amount]               mint a token, or coins when amount is given
  transfer <ledger> <from> <to> <id>        move a token
  redeem <ledger> <id>                      redeem a transferred badge for a coin
  grant|revoke <ledger> <role> <account>    change role membership
  renounce <ledger> <role>                  drop a role held by the caller
  link <ledger> collectibles|coins <target> point a badge ledger at a companion ledger
`))
}
