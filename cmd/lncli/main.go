package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

var rpcAddrFlag = cli.StringFlag{
	Name:  "rpcaddr",
	Value: "127.0.0.1:9736",
	Usage: "host:port the JSON-RPC control plane listens on",
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[lncli] %v\n", err)
	os.Exit(1)
}

func main() {
	app := cli.NewApp()
	app.Name = "lncli"
	app.Usage = "control plane CLI for the lndcore JSON-RPC daemon"
	app.Flags = []cli.Flag{rpcAddrFlag}
	app.Commands = []cli.Command{
		connectCommand,
		disconnectCommand,
		getInfoCommand,
		fundCommand,
		invoiceCommand,
		eraseInvoiceCommand,
		listInvoiceCommand,
		payCommand,
		routePayCommand,
		routePayContCommand,
		closeCommand,
		getLastErrorCommand,
		debugCommand,
		getCommitTxCommand,
		disautoconnCommand,
		removeChannelCommand,
		setFeerateCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}
