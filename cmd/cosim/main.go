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

// cosim is the co-simulation master: it runs a simulation scenario against
// a set of slaves, which it either instantiates through slave providers or
// reaches at preconfigured endpoints.
package main

import (
	"fmt"
	"os"
	"time"

	log "github.com/inconshreveable/log15"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/urfave/cli.v1"

	"github.com/oceanbed/go-cosim/master"
	"github.com/oceanbed/go-cosim/model"
	"github.com/oceanbed/go-cosim/net"
	"github.com/oceanbed/go-cosim/provider"
)

const (
	exitOK          = 0
	exitConfigError = 1
	exitExecFailed  = 2
	exitUnhandled   = 3
)

var (
	verbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity: 0=error, 1=warn, 2=info, 3=debug",
		Value: 2,
	}
	runCommand = cli.Command{
		Action:    runScenario,
		Name:      "run",
		Usage:     "Run a simulation scenario",
		ArgsUsage: "<scenario.toml>",
		Description: `The run command loads a TOML scenario file, admits the slaves it names,
wires their variable connections, steps the execution from StartTime to
StopTime and terminates all slaves.`,
	}
	listCommand = cli.Command{
		Action:    listSlaveTypes,
		Name:      "list-slave-types",
		Usage:     "List the slave types published by a provider",
		ArgsUsage: "<provider-endpoint>",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "cosim"
	app.Usage = "distributed co-simulation master"
	app.Flags = []cli.Flag{verbosityFlag}
	app.Commands = []cli.Command{runCommand, listCommand}
	app.Before = func(ctx *cli.Context) error {
		setupLogging(ctx.GlobalInt(verbosityFlag.Name))
		return nil
	}
	if err := app.Run(os.Args); err != nil {
		code := exitUnhandled
		if ec, ok := err.(cli.ExitCoder); ok {
			code = ec.ExitCode()
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(code)
	}
}

func setupLogging(verbosity int) {
	lvl := log.LvlInfo
	switch {
	case verbosity <= 0:
		lvl = log.LvlError
	case verbosity == 1:
		lvl = log.LvlWarn
	case verbosity >= 3:
		lvl = log.LvlDebug
	}
	log.Root().SetHandler(log.LvlFilterHandler(lvl, log.StderrHandler))
}

func runScenario(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.NewExitError("run needs exactly one scenario file", exitConfigError)
	}
	cfg, err := loadScenario(ctx.Args().First())
	if err != nil {
		return cli.NewExitError(err.Error(), exitConfigError)
	}

	commTimeout := time.Duration(cfg.CommTimeoutMS) * time.Millisecond
	stepTimeout := time.Duration(cfg.StepTimeoutMS) * time.Millisecond

	added, err := resolveSlaves(cfg, commTimeout)
	if err != nil {
		return cli.NewExitError(err.Error(), exitConfigError)
	}

	exec, err := master.NewExecution(cfg.Name, master.ExecutionOptions{
		StartTime:                cfg.StartTime,
		MaxTime:                  cfg.StopTime,
		SlaveVariableRecvTimeout: time.Duration(cfg.VariableRecvTimeoutMS) * time.Millisecond,
	})
	if err != nil {
		return cli.NewExitError(err.Error(), exitConfigError)
	}
	defer exec.Terminate()

	ids, err := exec.Reconstitute(added, commTimeout)
	if err != nil {
		return cli.NewExitError(err.Error(), exitExecFailed)
	}
	log.Info("Slaves admitted", "count", len(ids))

	configs, err := buildSlaveConfigs(cfg, exec, ids)
	if err != nil {
		return cli.NewExitError(err.Error(), exitConfigError)
	}
	if len(configs) > 0 {
		if err := exec.Reconfigure(configs, commTimeout); err != nil {
			return cli.NewExitError(err.Error(), exitExecFailed)
		}
	}

	steps := 0
	for exec.CurrentTime()+cfg.StepSize <= cfg.StopTime+cfg.StepSize/2 {
		if err := exec.Step(cfg.StepSize, stepTimeout); err != nil {
			return cli.NewExitError(fmt.Sprintf("at t=%g: %v", exec.CurrentTime(), err), exitExecFailed)
		}
		steps++
	}
	log.Info("Simulation finished", "t", exec.CurrentTime(), "steps", steps)
	return nil
}

// resolveSlaves turns scenario slave entries into concrete locators,
// instantiating provider-based slaves along the way.
func resolveSlaves(cfg scenarioConfig, commTimeout time.Duration) ([]master.AddedSlave, error) {
	clients := make(map[string]*provider.Client)
	defer func() {
		for _, c := range clients {
			c.Close()
		}
	}()
	added := make([]master.AddedSlave, 0, len(cfg.Slaves))
	for _, s := range cfg.Slaves {
		if s.Provider == "" {
			control, err := net.ParseEndpoint(s.Control)
			if err != nil {
				return nil, fmt.Errorf("slave %q: %v", s.Name, err)
			}
			added = append(added, master.AddedSlave{
				Locator: net.SlaveLocator{Control: control},
				Name:    s.Name,
			})
			continue
		}
		ep, err := net.ParseEndpoint(s.Provider)
		if err != nil {
			return nil, fmt.Errorf("slave %q: %v", s.Name, err)
		}
		client, ok := clients[s.Provider]
		if !ok {
			client, err = provider.NewClient(ep, commTimeout)
			if err != nil {
				return nil, fmt.Errorf("connecting to provider %s: %v", s.Provider, err)
			}
			clients[s.Provider] = client
		}
		uuid, err := resolveTypeUUID(client, s.Type)
		if err != nil {
			return nil, fmt.Errorf("slave %q: %v", s.Name, err)
		}
		locator, err := client.InstantiateSlave(uuid, commTimeout)
		if err != nil {
			return nil, fmt.Errorf("slave %q: %v", s.Name, err)
		}
		log.Info("Slave instantiated", "name", s.Name, "type", s.Type, "control", locator.Control)
		added = append(added, master.AddedSlave{Locator: locator, Name: s.Name})
	}
	return added, nil
}

// resolveTypeUUID accepts either a type UUID or a type name.
func resolveTypeUUID(client *provider.Client, typeRef string) (string, error) {
	types, err := client.SlaveTypes()
	if err != nil {
		return "", err
	}
	for _, t := range types {
		if t.UUID == typeRef || t.Name == typeRef {
			return t.UUID, nil
		}
	}
	return "", fmt.Errorf("provider has no slave type %q", typeRef)
}

// buildSlaveConfigs translates named initial values and connections into
// per-slave variable settings.
func buildSlaveConfigs(cfg scenarioConfig, exec *master.Execution, ids []model.SlaveID) ([]master.SlaveConfig, error) {
	byName := make(map[string]model.SlaveID, len(ids))
	for i, s := range cfg.Slaves {
		byName[s.Name] = ids[i]
	}
	lookup := func(slaveName, variableName string) (model.SlaveID, model.VariableDescription, error) {
		id, ok := byName[slaveName]
		if !ok {
			return 0, model.VariableDescription{}, fmt.Errorf("unknown slave %q", slaveName)
		}
		desc, err := exec.Manager().SlaveDescription(id)
		if err != nil {
			return 0, model.VariableDescription{}, err
		}
		vd, err := desc.VariableByName(variableName)
		if err != nil {
			return 0, model.VariableDescription{}, err
		}
		return id, vd, nil
	}

	settings := make(map[model.SlaveID][]model.VariableSetting)
	for _, init := range cfg.Initial {
		id, vd, err := lookup(init.Slave, init.Variable)
		if err != nil {
			return nil, err
		}
		var value model.ScalarValue
		switch {
		case init.Real != nil:
			value = model.RealValue(*init.Real)
		case init.Integer != nil:
			value = model.IntegerValue(*init.Integer)
		case init.Boolean != nil:
			value = model.BooleanValue(*init.Boolean)
		case init.String != nil:
			value = model.StringValue(*init.String)
		default:
			return nil, fmt.Errorf("initial value for %s.%s has no value", init.Slave, init.Variable)
		}
		settings[id] = append(settings[id], model.NewValueSetting(vd.ID, value))
	}
	for _, conn := range cfg.Connections {
		srcSlave, srcVar, _ := splitVariableRef(conn.Source)
		dstSlave, dstVar, _ := splitVariableRef(conn.Target)
		srcID, svd, err := lookup(srcSlave, srcVar)
		if err != nil {
			return nil, fmt.Errorf("connection %s -> %s: %v", conn.Source, conn.Target, err)
		}
		dstID, dvd, err := lookup(dstSlave, dstVar)
		if err != nil {
			return nil, fmt.Errorf("connection %s -> %s: %v", conn.Source, conn.Target, err)
		}
		settings[dstID] = append(settings[dstID], model.NewConnectionSetting(
			dvd.ID, model.Variable{Slave: srcID, ID: svd.ID}))
	}

	configs := make([]master.SlaveConfig, 0, len(settings))
	for id, s := range settings {
		configs = append(configs, master.SlaveConfig{SlaveID: id, Settings: s})
	}
	return configs, nil
}

func listSlaveTypes(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.NewExitError("list-slave-types needs a provider endpoint", exitConfigError)
	}
	ep, err := net.ParseEndpoint(ctx.Args().First())
	if err != nil {
		return cli.NewExitError(err.Error(), exitConfigError)
	}
	client, err := provider.NewClient(ep, 5*time.Second)
	if err != nil {
		return cli.NewExitError(err.Error(), exitExecFailed)
	}
	defer client.Close()
	types, err := client.SlaveTypes()
	if err != nil {
		return cli.NewExitError(err.Error(), exitExecFailed)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Name", "UUID", "Version", "Variables", "Description"})
	for _, t := range types {
		table.Append([]string{t.Name, t.UUID, t.Version, fmt.Sprint(len(t.Variables)), t.Description})
	}
	table.Render()
	return nil
}
