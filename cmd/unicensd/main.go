// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

/*
Starts the unicens network supervisor daemon for one local INIC device: it
loads the node catalog and route list, brings the device up in the
configured initial mode, and (optionally) exposes the instance on a DDA bus
for remote control and reporting.

For usage details, run unicensd with the command line flag -h or --help.
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/unicens-go/unicens/clog"
	"github.com/unicens-go/unicens/config"
	"github.com/unicens-go/unicens/model"
	"github.com/unicens-go/unicens/netstarter"
	"github.com/unicens-go/unicens/supervisor"
	"github.com/unicens-go/unicens/telemetry"
)

func main() {
	var configPath string
	var instanceName string
	var brokerURL string
	var help bool
	var verbose bool

	flag.Usage = usage
	flag.StringVar(&configPath, "c", "unicens.yaml", "path to the instance configuration file")
	flag.StringVar(&instanceName, "n", "unicens0", "instance name (identifies this device on the DDA bus and in logs)")
	flag.StringVar(&brokerURL, "d", "", "DDA broker URL; when empty, no telemetry.Gateway is opened")
	flag.BoolVar(&help, "h", false, "Show usage information")
	flag.BoolVar(&verbose, "l", false, "Show logging output (for debugging)")
	flag.Parse()

	if help {
		usage()
		os.Exit(0)
	}
	if verbose {
		clog.Enable()
	}

	log := clog.New("unicensd")

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unicensd: %v\n", err)
		os.Exit(1)
	}
	catalog, err := config.LoadNodeCatalog(cfg.Supv.NodesListPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unicensd: %v\n", err)
		os.Exit(1)
	}
	routeList, err := config.LoadRouteList(cfg.Supv.RoutesListPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unicensd: %v\n", err)
		os.Exit(1)
	}

	client := newSimulatedClient(instanceName)
	routeMgr := newStaticRouteManager(routeList)

	inst := supervisor.New(client, cfg, catalog, routeMgr, supervisor.Callbacks{
		OnModeState: func(ms model.ModeState) {
			log.Printf("mode -> %s/%s", ms.Mode, ms.State)
		},
	})

	params := netstarter.Params{
		PacketBandwidth: cfg.Supv.PacketBandwidth,
		ProxyChannelBW:  cfg.Supv.ProxyChannelBW,
	}
	if err := inst.Init(params); err != nil {
		fmt.Fprintf(os.Stderr, "unicensd: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var gw *telemetry.Gateway
	if brokerURL != "" {
		gw, err = telemetry.New(instanceName, inst, telemetry.Config{
			BrokerURL:    brokerURL,
			IdentityName: instanceName,
			IdentityID:   instanceName,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "unicensd: opening telemetry gateway: %v\n", err)
			os.Exit(1)
		}
		if err := gw.Open(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "unicensd: %v\n", err)
			os.Exit(1)
		}
		log.Printf("telemetry gateway open on %s as %q", brokerURL, instanceName)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	fmt.Printf("unicensd: %s running (mode=%s), press Ctrl-C to stop\n", instanceName, cfg.Supv.Mode)
	sig := <-sigCh
	fmt.Printf("unicensd: terminating on signal %v...\n", sig)

	cancel()
	if gw != nil {
		gw.Close()
	}
	inst.Stop()
}

func usage() {
	fmt.Printf(`usage: unicensd [-h|--help] [-l] [-c configPath] [-n instanceName] [-d brokerURL]

Starts the unicens network supervisor daemon for one local INIC device.

Flags:
`)
	flag.PrintDefaults()
}
