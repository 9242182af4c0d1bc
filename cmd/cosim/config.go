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

package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/naoina/toml"
)

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

// slaveEntry names one slave of the scenario. A slave either comes from a
// provider (Provider + Type) or is already running (Control). DataPub is
// accepted for a running slave but not used: the master learns the data
// endpoint from the slave's HELLO_ACK.
type slaveEntry struct {
	Name     string
	Provider string `toml:",omitempty"`
	Type     string `toml:",omitempty"`
	Control  string `toml:",omitempty"`
	DataPub  string `toml:",omitempty"`
}

// connectionEntry wires a source output to a target input, both named as
// "slave.variable".
type connectionEntry struct {
	Source string
	Target string
}

// initialEntry assigns an initial value to a named variable. Exactly one
// of the value fields must be present.
type initialEntry struct {
	Slave    string
	Variable string
	Real     *float64 `toml:",omitempty"`
	Integer  *int32   `toml:",omitempty"`
	Boolean  *bool    `toml:",omitempty"`
	String   *string  `toml:",omitempty"`
}

// scenarioConfig is the TOML scenario file driving one simulation.
type scenarioConfig struct {
	Name                  string
	StartTime             float64
	StopTime              float64
	StepSize              float64
	StepTimeoutMS         int64
	CommTimeoutMS         int64
	VariableRecvTimeoutMS int64

	Slaves      []slaveEntry
	Connections []connectionEntry
	Initial     []initialEntry
}

func defaultScenarioConfig() scenarioConfig {
	return scenarioConfig{
		StartTime:             0,
		StopTime:              1,
		StepSize:              0.01,
		StepTimeoutMS:         1000,
		CommTimeoutMS:         1000,
		VariableRecvTimeoutMS: 1000,
	}
}

func loadScenario(file string) (scenarioConfig, error) {
	cfg := defaultScenarioConfig()
	f, err := os.Open(file)
	if err != nil {
		return cfg, err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(&cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	if err != nil {
		return cfg, err
	}
	return cfg, validateScenario(&cfg)
}

func validateScenario(cfg *scenarioConfig) error {
	if cfg.StepSize <= 0 {
		return fmt.Errorf("StepSize must be positive, got %g", cfg.StepSize)
	}
	if cfg.StopTime < cfg.StartTime {
		return fmt.Errorf("StopTime %g is before StartTime %g", cfg.StopTime, cfg.StartTime)
	}
	if len(cfg.Slaves) == 0 {
		return errors.New("scenario names no slaves")
	}
	seen := make(map[string]bool)
	for _, s := range cfg.Slaves {
		if s.Name == "" {
			return errors.New("every slave needs a Name")
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate slave name %q", s.Name)
		}
		seen[s.Name] = true
		fromProvider := s.Provider != "" || s.Type != ""
		direct := s.Control != "" || s.DataPub != ""
		switch {
		case fromProvider && direct:
			return fmt.Errorf("slave %q mixes provider and direct endpoints", s.Name)
		case fromProvider && (s.Provider == "" || s.Type == ""):
			return fmt.Errorf("slave %q needs both Provider and Type", s.Name)
		case direct && s.Control == "":
			return fmt.Errorf("slave %q needs a Control endpoint", s.Name)
		case !fromProvider && !direct:
			return fmt.Errorf("slave %q has no source", s.Name)
		}
	}
	for _, c := range cfg.Connections {
		if _, _, err := splitVariableRef(c.Source); err != nil {
			return fmt.Errorf("connection source: %v", err)
		}
		if _, _, err := splitVariableRef(c.Target); err != nil {
			return fmt.Errorf("connection target: %v", err)
		}
	}
	return nil
}

// splitVariableRef splits a "slave.variable" reference.
func splitVariableRef(ref string) (slaveName, variableName string, err error) {
	i := strings.Index(ref, ".")
	if i <= 0 || i == len(ref)-1 {
		return "", "", fmt.Errorf("malformed variable reference %q, want \"slave.variable\"", ref)
	}
	return ref[:i], ref[i+1:], nil
}
