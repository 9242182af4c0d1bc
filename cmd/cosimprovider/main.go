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

// cosimprovider publishes the built-in slave types and instantiates them
// on request.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/inconshreveable/log15"
	"gopkg.in/urfave/cli.v1"

	"github.com/oceanbed/go-cosim/net"
	"github.com/oceanbed/go-cosim/provider"
	"github.com/oceanbed/go-cosim/slave"
)

var (
	bindFlag = cli.StringFlag{
		Name:  "bind",
		Usage: "Endpoint to serve the directory on",
		Value: "tcp://127.0.0.1:10500",
	}
	slaveBindFlag = cli.StringFlag{
		Name:  "slave-bind",
		Usage: "Endpoint template new slaves bind to",
		Value: "tcp://127.0.0.1:*",
	}
	gainFlag = cli.Float64Flag{
		Name:  "gain",
		Usage: "Gain of newly instantiated gain slaves",
		Value: 1.0,
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "cosimprovider"
	app.Usage = "co-simulation slave provider"
	app.Flags = []cli.Flag{bindFlag, slaveBindFlag, gainFlag}
	app.Action = runProvider
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		code := 3
		if ec, ok := err.(cli.ExitCoder); ok {
			code = ec.ExitCode()
		}
		os.Exit(code)
	}
}

func runProvider(ctx *cli.Context) error {
	bind, err := net.ParseEndpoint(ctx.String(bindFlag.Name))
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	slaveBind, err := net.ParseEndpoint(ctx.String(slaveBindFlag.Name))
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	gain := ctx.Float64(gainFlag.Name)

	server, err := provider.NewServer(
		provider.ServerConfig{Bind: bind, SlaveBind: slaveBind},
		&provider.FactorySlaveType{
			Desc:    slave.NewGainInstance(gain).TypeDescription(),
			Factory: func() (slave.Instance, error) { return slave.NewGainInstance(gain), nil },
		},
		&provider.FactorySlaveType{
			Desc:    slave.NewEchoInstance().TypeDescription(),
			Factory: func() (slave.Instance, error) { return slave.NewEchoInstance(), nil },
		},
	)
	if err != nil {
		return cli.NewExitError(err.Error(), 2)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigc
		log.Info("Shutting down", "signal", sig)
		server.Stop()
	}()

	if err := server.Run(); err != nil {
		return cli.NewExitError(err.Error(), 2)
	}
	return nil
}
