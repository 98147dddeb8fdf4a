package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultGateway = "http://127.0.0.1:8080"

var httpClient = &http.Client{Timeout: 15 * time.Second}

func lookupEnv(name string) string {
	return strings.TrimSpace(os.Getenv(name))
}

func gatewayURL() string {
	if value := lookupEnv(envGateway); value != "" {
		return strings.TrimRight(value, "/")
	}
	return defaultGateway
}

func ledgerPath(ledger string, parts ...string) string {
	segments := []string{"/v1/ledgers", url.PathEscape(ledger)}
	for _, part := range parts {
		segments = append(segments, url.PathEscape(part))
	}
	return strings.Join(segments, "/")
}

func gatewayCommand(command string, args []string, out io.Writer) error {
	need := func(n int, usage string) error {
		if len(args) != n {
			return fmt.Errorf("usage: %s", usage)
		}
		return nil
	}
	switch command {
	case "ledgers":
		return call(out, http.MethodGet, "/v1/ledgers", nil)
	case "ledger":
		if err := need(1, "ledger <ledger>"); err != nil {
			return err
		}
		return call(out, http.MethodGet, ledgerPath(args[0]), nil)
	case "supply":
		if err := need(1, "supply <ledger>"); err != nil {
			return err
		}
		return call(out, http.MethodGet, ledgerPath(args[0], "supply"), nil)
	case "balance":
		if err := need(2, "balance <ledger> <account>"); err != nil {
			return err
		}
		return call(out, http.MethodGet, ledgerPath(args[0], "balances", args[1]), nil)
	case "token-info":
		if err := need(2, "token-info <ledger> <id>"); err != nil {
			return err
		}
		return call(out, http.MethodGet, ledgerPath(args[0], "tokens", args[1]), nil)
	case "mint":
		if len(args) != 2 && len(args) != 3 {
			return errors.New("usage: mint <ledger> <to> [amount]")
		}
		body := map[string]interface{}{"to": args[1]}
		if len(args) == 3 {
			body["amount"] = args[2]
		}
		return call(out, http.MethodPost, ledgerPath(args[0], "mint"), body)
	case "transfer":
		if err := need(4, "transfer <ledger> <from> <to> <id>"); err != nil {
			return err
		}
		id, err := strconv.ParseUint(args[3], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid token id %q", args[3])
		}
		return call(out, http.MethodPost, ledgerPath(args[0], "transfer"), map[string]interface{}{
			"from": args[1], "to": args[2], "tokenId": id,
		})
	case "redeem":
		if err := need(2, "redeem <ledger> <id>"); err != nil {
			return err
		}
		id, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid token id %q", args[1])
		}
		return call(out, http.MethodPost, ledgerPath(args[0], "redeem"), map[string]interface{}{"tokenId": id})
	case "grant", "revoke":
		if err := need(3, command+" <ledger> <role> <account>"); err != nil {
			return err
		}
		return call(out, http.MethodPost, ledgerPath(args[0], "roles", command), map[string]string{
			"role": args[1], "account": args[2],
		})
	case "renounce":
		if err := need(2, "renounce <ledger> <role>"); err != nil {
			return err
		}
		return call(out, http.MethodPost, ledgerPath(args[0], "roles", "renounce"), map[string]string{"role": args[1]})
	case "link":
		if err := need(3, "link <ledger> collectibles|coins <target>"); err != nil {
			return err
		}
		if args[1] != "collectibles" && args[1] != "coins" {
			return fmt.Errorf("link kind must be collectibles or coins, got %q", args[1])
		}
		return call(out, http.MethodPut, ledgerPath(args[0], "links", args[1]), map[string]string{"ledger": args[2]})
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

// call sends one gateway request and prints the JSON response indented.
func call(out io.Writer, method, path string, body interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, gatewayURL()+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := lookupEnv(envToken); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	var pretty bytes.Buffer
	if json.Indent(&pretty, raw, "", "  ") != nil {
		pretty.Reset()
		pretty.Write(raw)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(pretty.String()))
	}
	fmt.Fprintln(out, strings.TrimSpace(pretty.String()))
	return nil
}
