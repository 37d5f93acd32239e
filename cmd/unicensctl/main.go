// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

/*
unicensctl is a diagnostic CLI for a running unicensd instance's DDA bus:
it watches the telemetry events a daemon publishes, or issues one of the
three remote-controllable actions (setmode, discover, prognode).

For usage details, run unicensctl with the command line flag -h or --help.
*/
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rivo/uniseg"

	"github.com/coatyio/dda/config"
	"github.com/coatyio/dda/dda"
	"github.com/coatyio/dda/services/com/api"

	"github.com/unicens-go/unicens/clog"
	"github.com/unicens-go/unicens/telemetry"
)

func main() {
	var brokerURL string
	var help bool
	var verbose bool

	flag.Usage = usage
	flag.StringVar(&brokerURL, "d", ":8900", "DDA broker URL")
	flag.BoolVar(&help, "h", false, "Show usage information")
	flag.BoolVar(&verbose, "l", false, "Show logging output (for debugging)")
	flag.Parse()

	command := flag.Arg(0)
	if help || command == "" {
		usage()
		os.Exit(0)
	}
	if verbose {
		clog.Enable()
	}

	ddaCfg := config.New()
	ddaCfg.Services.Com.Url = brokerURL
	ddaCfg.Identity.Name = "unicensctl"
	ddaCfg.Apis.Grpc.Disabled = true
	ddaCfg.Apis.GrpcWeb.Disabled = true

	d, err := dda.New(ddaCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unicensctl: %v\n", err)
		os.Exit(1)
	}
	if err := d.Open(0); err != nil {
		fmt.Fprintf(os.Stderr, "unicensctl: %v\n", err)
		os.Exit(1)
	}
	defer d.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	args := flag.Args()[1:]
	switch command {
	case "watch":
		runWatch(ctx, d)
	case "setmode":
		runSetMode(ctx, d, args)
	case "discover":
		runDiscover(ctx, d, args)
	case "prognode":
		runProgramNode(ctx, d, args)
	default:
		fmt.Fprintf(os.Stderr, "unicensctl: unknown command %q\n", command)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Printf(`usage: unicensctl [-h|--help] [-l] [-d brokerURL] command [arguments...]

Commands:
  watch                                     stream telemetry events as they arrive
  setmode    <mode> [packetBw] [proxyBw]    send Supv_SetMode
  discover   [versionLimit]                 send Nd_Start
  prognode   <target> <local> <memId> <addr> <hexData>
                                             send Supv_ProgramNode with one write command

Flags:
`)
	flag.PrintDefaults()
}

// runWatch subscribes to every telemetry event type and prints a
// width-aligned table row per event, as it arrives, until interrupted.
func runWatch(ctx context.Context, d *dda.Dda) {
	types := []string{
		telemetry.EventTypeModeState,
		telemetry.EventTypeFdxDiag,
		telemetry.EventTypeHdxDiag,
		telemetry.EventTypeFallback,
		telemetry.EventTypeProgramming,
	}

	rows := make(chan [3]string, 64)
	for _, t := range types {
		events, err := d.SubscribeEvent(ctx, api.SubscriptionFilter{Type: t})
		if err != nil {
			fmt.Fprintf(os.Stderr, "unicensctl: subscribing %s: %v\n", t, err)
			os.Exit(1)
		}
		go func(eventType string) {
			for evt := range events {
				rows <- [3]string{time.Now().Format("15:04:05"), evt.Source, prettyJSON(evt.Data)}
			}
		}(t)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	fmt.Println(padRow([3]string{"TIME", "INSTANCE", "EVENT"}, []int{8, 16, 0}))
	for {
		select {
		case row := <-rows:
			fmt.Println(padRow(row, []int{8, 16, 0}))
		case <-sigCh:
			return
		}
	}
}

// padRow right-pads each cell to widths[i] terminal cells (uniseg-aware,
// since a node signature or vendor string embedded in a report can carry
// multi-byte grapheme clusters); widths[i] == 0 leaves the cell
// unpadded.
func padRow(cells [3]string, widths []int) string {
	out := ""
	for i, cell := range cells {
		if i > 0 {
			out += "  "
		}
		out += cell
		if widths[i] == 0 {
			continue
		}
		for pad := widths[i] - uniseg.StringWidth(cell); pad > 0; pad-- {
			out += " "
		}
	}
	return out
}

func prettyJSON(data []byte) string {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return string(data)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return string(data)
	}
	return string(out)
}

func runSetMode(ctx context.Context, d *dda.Dda, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "unicensctl: setmode requires a mode name")
		os.Exit(1)
	}
	params := map[string]any{"mode": args[0]}
	if len(args) > 1 {
		params["packetBandwidth"] = parseUint16(args[1])
	}
	if len(args) > 2 {
		params["proxyChannelBw"] = parseUint16(args[2])
	}
	publishAndPrint(ctx, d, telemetry.ActionTypeSetMode, params)
}

func runDiscover(ctx context.Context, d *dda.Dda, args []string) {
	var versionLimit uint16
	if len(args) > 0 {
		versionLimit = parseUint16(args[0])
	}
	publishAndPrint(ctx, d, telemetry.ActionTypeStartDiscovery, map[string]any{"versionLimit": versionLimit})
}

func runProgramNode(ctx context.Context, d *dda.Dda, args []string) {
	if len(args) < 5 {
		fmt.Fprintln(os.Stderr, "unicensctl: prognode requires target local memId addr hexData")
		os.Exit(1)
	}
	target := parseUint16(args[0])
	local := args[1] == "true"
	memID := parseUint16(args[2])
	addr := parseUint16(args[3])
	params := map[string]any{
		"target": target,
		"local":  local,
		"commands": []map[string]any{
			{"memId": memID, "address": addr, "data": args[4]},
		},
	}
	publishAndPrint(ctx, d, telemetry.ActionTypeProgramNode, params)
}

func publishAndPrint(ctx context.Context, d *dda.Dda, actionType string, params map[string]any) {
	data, err := json.Marshal(params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unicensctl: %v\n", err)
		os.Exit(1)
	}
	results, err := d.PublishAction(ctx, api.Action{Type: actionType, Params: data})
	if err != nil {
		fmt.Fprintf(os.Stderr, "unicensctl: publishing %s: %v\n", actionType, err)
		os.Exit(1)
	}
	select {
	case res := <-results:
		if len(res.Data) > 0 {
			fmt.Printf("%s -> %s: %s\n", actionType, res.Context, res.Data)
		} else {
			fmt.Printf("%s -> %s: ok\n", actionType, res.Context)
		}
	case <-time.After(5 * time.Second):
		fmt.Fprintf(os.Stderr, "unicensctl: %s: no response within 5s\n", actionType)
		os.Exit(1)
	}
}

func parseUint16(s string) uint16 {
	n, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unicensctl: invalid number %q: %v\n", s, err)
		os.Exit(1)
	}
	return uint16(n)
}
