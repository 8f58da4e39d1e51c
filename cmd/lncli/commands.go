package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/urfave/cli"
)

// parseJSONArg decodes a raw JSON literal given on the command line, used
// by pay's route_json argument.
func parseJSONArg(raw string, out interface{}) error {
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("invalid JSON argument: %w", err)
	}
	return nil
}

func addr(ctx *cli.Context) string {
	return ctx.GlobalString("rpcaddr")
}

// peerArgs parses the node_id/ip/port triple every peer-addressed command
// shares, mirroring json_connect's positional convention.
func peerArgs(ctx *cli.Context) ([]interface{}, error) {
	if ctx.NArg() < 3 {
		return nil, fmt.Errorf("usage: %s node_id ip port", ctx.Command.Name)
	}
	port, err := strconv.Atoi(ctx.Args().Get(2))
	if err != nil {
		return nil, fmt.Errorf("invalid port: %w", err)
	}
	return []interface{}{ctx.Args().Get(0), ctx.Args().Get(1), port}, nil
}

func runAndPrint(ctx *cli.Context, method string, params []interface{}) error {
	var result interface{}
	if err := call(addr(ctx), method, params, &result); err != nil {
		return err
	}
	fmt.Printf("%v\n", result)
	return nil
}

var connectCommand = cli.Command{
	Name:      "connect",
	Usage:     "connect to a peer",
	ArgsUsage: "node_id ip port",
	Action: func(ctx *cli.Context) error {
		params, err := peerArgs(ctx)
		if err != nil {
			return err
		}
		return runAndPrint(ctx, "connect", params)
	},
}

var disconnectCommand = cli.Command{
	Name:      "disconnect",
	Usage:     "disconnect from a peer",
	ArgsUsage: "node_id ip port",
	Action: func(ctx *cli.Context) error {
		params, err := peerArgs(ctx)
		if err != nil {
			return err
		}
		return runAndPrint(ctx, "disconnect", params)
	},
}

var getInfoCommand = cli.Command{
	Name:  "getinfo",
	Usage: "print node balance, channel count, and payment state",
	Action: func(ctx *cli.Context) error {
		return runAndPrint(ctx, "getinfo", nil)
	},
}

var fundCommand = cli.Command{
	Name:      "fund",
	Usage:     "open a channel against a fresh funding output",
	ArgsUsage: "node_id ip port txid vout signaddr funding_sat",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() < 7 {
			return fmt.Errorf("usage: fund node_id ip port txid vout signaddr funding_sat")
		}
		peer, err := peerArgs(ctx)
		if err != nil {
			return err
		}
		vout, err := strconv.Atoi(ctx.Args().Get(4))
		if err != nil {
			return fmt.Errorf("invalid vout: %w", err)
		}
		fundingSat, err := strconv.ParseUint(ctx.Args().Get(6), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid funding_sat: %w", err)
		}
		params := append(peer, ctx.Args().Get(3), vout, ctx.Args().Get(5), fundingSat)
		return runAndPrint(ctx, "fund", params)
	},
}

var invoiceCommand = cli.Command{
	Name:      "invoice",
	Usage:     "create an invoice for amount_msat",
	ArgsUsage: "amount_msat",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() < 1 {
			return fmt.Errorf("usage: invoice amount_msat")
		}
		amt, err := strconv.ParseUint(ctx.Args().Get(0), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid amount_msat: %w", err)
		}
		return runAndPrint(ctx, "invoice", []interface{}{amt})
	},
}

var eraseInvoiceCommand = cli.Command{
	Name:      "eraseinvoice",
	Usage:     "erase a single invoice, or all invoices if hash is omitted",
	ArgsUsage: "[hash]",
	Action: func(ctx *cli.Context) error {
		hash := ""
		if ctx.NArg() > 0 {
			hash = ctx.Args().Get(0)
		}
		return runAndPrint(ctx, "eraseinvoice", []interface{}{hash})
	},
}

var listInvoiceCommand = cli.Command{
	Name:  "listinvoice",
	Usage: "list every outstanding invoice hash",
	Action: func(ctx *cli.Context) error {
		return runAndPrint(ctx, "listinvoice", nil)
	},
}

var payCommand = cli.Command{
	Name:      "pay",
	Usage:     "submit an HTLC along an explicit, caller-supplied route",
	ArgsUsage: "hash hop_num route_json",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() < 3 {
			return fmt.Errorf("usage: pay hash hop_num route_json")
		}
		hopNum, err := strconv.Atoi(ctx.Args().Get(1))
		if err != nil {
			return fmt.Errorf("invalid hop_num: %w", err)
		}
		var route interface{}
		if err := parseJSONArg(ctx.Args().Get(2), &route); err != nil {
			return err
		}
		return runAndPrint(ctx, "PAY", []interface{}{ctx.Args().Get(0), hopNum, route})
	},
}

var routePayCommand = cli.Command{
	Name:      "routepay",
	Usage:     "pay an invoice, computing the route via the oracle",
	ArgsUsage: "hash amt_msat payee payer min_final_cltv",
	Action: func(ctx *cli.Context) error {
		return runRoutePay(ctx, "routepay")
	},
}

var routePayContCommand = cli.Command{
	Name:      "routepay_cont",
	Usage:     "retry a previously-attempted routepay without clearing retry state",
	ArgsUsage: "hash amt_msat payee payer min_final_cltv",
	Action: func(ctx *cli.Context) error {
		return runRoutePay(ctx, "routepay_cont")
	},
}

func runRoutePay(ctx *cli.Context, method string) error {
	if ctx.NArg() < 5 {
		return fmt.Errorf("usage: %s hash amt_msat payee payer min_final_cltv", method)
	}
	amt, err := strconv.ParseUint(ctx.Args().Get(1), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid amt_msat: %w", err)
	}
	minFinalCLTV, err := strconv.ParseUint(ctx.Args().Get(4), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid min_final_cltv: %w", err)
	}
	params := []interface{}{
		ctx.Args().Get(0), amt, ctx.Args().Get(2), ctx.Args().Get(3), minFinalCLTV,
	}
	return runAndPrint(ctx, method, params)
}

var closeCommand = cli.Command{
	Name:      "close",
	Usage:     "close the channel with a peer",
	ArgsUsage: "node_id ip port",
	Action: func(ctx *cli.Context) error {
		params, err := peerArgs(ctx)
		if err != nil {
			return err
		}
		return runAndPrint(ctx, "close", params)
	},
}

var getLastErrorCommand = cli.Command{
	Name:      "getlasterror",
	Usage:     "print the last payment failure message for a peer",
	ArgsUsage: "node_id ip port",
	Action: func(ctx *cli.Context) error {
		params, err := peerArgs(ctx)
		if err != nil {
			return err
		}
		return runAndPrint(ctx, "getlasterror", params)
	},
}

var debugCommand = cli.Command{
	Name:      "debug",
	Usage:     "set the operator debug bitmask",
	ArgsUsage: "bitmask",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() < 1 {
			return fmt.Errorf("usage: debug bitmask")
		}
		mask, err := strconv.ParseUint(ctx.Args().Get(0), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid bitmask: %w", err)
		}
		return runAndPrint(ctx, "debug", []interface{}{mask})
	},
}

var getCommitTxCommand = cli.Command{
	Name:      "getcommittx",
	Usage:     "print the current commitment transaction description for a peer's channel",
	ArgsUsage: "node_id ip port",
	Action: func(ctx *cli.Context) error {
		params, err := peerArgs(ctx)
		if err != nil {
			return err
		}
		return runAndPrint(ctx, "getcommittx", params)
	},
}

var disautoconnCommand = cli.Command{
	Name:      "disautoconn",
	Usage:     "toggle automatic peer reconnection",
	ArgsUsage: "0|1",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() < 1 {
			return fmt.Errorf("usage: disautoconn 0|1")
		}
		return runAndPrint(ctx, "disautoconn", []interface{}{ctx.Args().Get(0)})
	},
}

var removeChannelCommand = cli.Command{
	Name:      "removechannel",
	Usage:     "forcibly remove a channel record",
	ArgsUsage: "channel_id_hex",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() < 1 {
			return fmt.Errorf("usage: removechannel channel_id_hex")
		}
		return runAndPrint(ctx, "removechannel", []interface{}{ctx.Args().Get(0)})
	},
}

var setFeerateCommand = cli.Command{
	Name:      "setfeerate",
	Usage:     "override the commitment fee rate",
	ArgsUsage: "feerate_per_kw",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() < 1 {
			return fmt.Errorf("usage: setfeerate feerate_per_kw")
		}
		rate, err := strconv.ParseUint(ctx.Args().Get(0), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid feerate_per_kw: %w", err)
		}
		return runAndPrint(ctx, "setfeerate", []interface{}{rate})
	},
}
