package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// inputSpec describes one positional method input a run config
// supplies in its YAML file rather than computing it, since nnrt-run
// has no host frontend generating real inputs.
type inputSpec struct {
	Shape []int     `yaml:"shape"`
	Data  []float32 `yaml:"data"`
}

// runConfig is the YAML document -config points at: which program and
// optional external-data file to load, which method to run, and the
// input tensors to feed it.
type runConfig struct {
	Model  string      `yaml:"model"`
	Data   string      `yaml:"data"`
	Method string      `yaml:"method"`
	Inputs []inputSpec `yaml:"inputs"`
}

func loadRunConfig(path string) (*runConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open run config: %w", err)
	}
	defer f.Close()

	var cfg runConfig
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode run config: %w", err)
	}
	return &cfg, nil
}
