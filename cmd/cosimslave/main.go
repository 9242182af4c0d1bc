// Copyright 2025 The go-cosim Authors
// This file is part of go-cosim.
//
// go-cosim is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// go-cosim is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with go-cosim. If not, see <http://www.gnu.org/licenses/>.

// cosimslave runs a single standalone slave hosting one of the built-in
// instances, for executions whose scenario names slaves by endpoint.
package main

import (
	"fmt"
	"os"

	log "github.com/inconshreveable/log15"
	"gopkg.in/urfave/cli.v1"

	"github.com/oceanbed/go-cosim/net"
	"github.com/oceanbed/go-cosim/slave"
)

var (
	controlFlag = cli.StringFlag{
		Name:  "control",
		Usage: "Endpoint to serve control requests on",
		Value: "tcp://127.0.0.1:*",
	}
	dataPubFlag = cli.StringFlag{
		Name:  "datapub",
		Usage: "Endpoint to publish variable data on",
		Value: "tcp://127.0.0.1:*",
	}
	instanceFlag = cli.StringFlag{
		Name:  "instance",
		Usage: "Built-in instance to host: gain or echo",
		Value: "gain",
	}
	gainFlag = cli.Float64Flag{
		Name:  "gain",
		Usage: "Gain of the gain instance",
		Value: 1.0,
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "cosimslave"
	app.Usage = "standalone co-simulation slave"
	app.Flags = []cli.Flag{controlFlag, dataPubFlag, instanceFlag, gainFlag}
	app.Action = runSlave
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		code := 3
		if ec, ok := err.(cli.ExitCoder); ok {
			code = ec.ExitCode()
		}
		os.Exit(code)
	}
}

func runSlave(ctx *cli.Context) error {
	var instance slave.Instance
	switch ctx.String(instanceFlag.Name) {
	case "gain":
		instance = slave.NewGainInstance(ctx.Float64(gainFlag.Name))
	case "echo":
		instance = slave.NewEchoInstance()
	default:
		return cli.NewExitError(fmt.Sprintf("unknown instance %q", ctx.String(instanceFlag.Name)), 1)
	}
	control, err := net.ParseEndpoint(ctx.String(controlFlag.Name))
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	dataPub, err := net.ParseEndpoint(ctx.String(dataPubFlag.Name))
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	runner, err := slave.NewRunner(instance, control, dataPub)
	if err != nil {
		return cli.NewExitError(err.Error(), 2)
	}
	log.Info("Slave running",
		"instance", ctx.String(instanceFlag.Name),
		"control", runner.BoundControlEndpoint(),
		"datapub", runner.BoundDataPubEndpoint())
	if err := runner.Run(); err != nil {
		return cli.NewExitError(err.Error(), 2)
	}
	return nil
}
