// Command nnrt-run loads a program file and drives one of its methods
// to completion, printing the resulting output tensors.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/itohio/nnrt/pkg/core/datamap"
	"github.com/itohio/nnrt/pkg/core/dtype"
	"github.com/itohio/nnrt/pkg/core/kernel"
	"github.com/itohio/nnrt/pkg/core/module"
	"github.com/itohio/nnrt/pkg/core/program"
	"github.com/itohio/nnrt/pkg/core/storage"
	"github.com/itohio/nnrt/pkg/core/tensor"
	"github.com/itohio/nnrt/pkg/core/value"
	"github.com/itohio/nnrt/pkg/delegate/tflite"
	"github.com/itohio/nnrt/pkg/kernel/arith"
)

var log = zlog.With().Caller().Logger().Output(zerolog.ConsoleWriter{Out: os.Stderr})

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	modelPath := flag.String("model", "", "path to a program (.pte) file")
	dataPath := flag.String("data", "", "path to an external named data map (.ptd) file")
	method := flag.String("method", "forward", "method name to run")
	config := flag.String("config", "", "path to a YAML run config (overrides -model/-data/-method/inputs)")
	mlock := flag.String("mlock", "none", "mmap lock mode for -model: none, lock, lock-ignore")
	verify := flag.String("verify", "internal", "program verification depth: minimal, internal")
	tfliteBackend := flag.String("tflite-backend", "", "if set, register a TFLite delegate under this backend name")
	threads := flag.Int("threads", 0, "TFLite delegate thread count (0 = runtime default)")

	flag.Parse()

	cfg := &runConfig{Model: *modelPath, Data: *dataPath, Method: *method}
	if *config != "" {
		loaded, err := loadRunConfig(*config)
		if err != nil {
			log.Fatal().Err(err).Msg("load run config")
		}
		cfg = loaded
		if cfg.Method == "" {
			cfg.Method = "forward"
		}
	}
	if cfg.Model == "" {
		log.Fatal().Msg("no model: pass -model or -config")
	}

	loader, err := openLoader(cfg.Model, *mlock)
	if err != nil {
		log.Fatal().Err(err).Str("model", cfg.Model).Msg("open model")
	}
	defer loader.Close()

	kernels := kernel.NewRegistry()
	if err := arith.Register(kernels); err != nil {
		log.Fatal().Err(err).Msg("register kernels")
	}

	delegates := kernel.NewDelegateRegistry()
	if *tfliteBackend != "" {
		d := &tflite.Delegate{NumThreads: *threads}
		delegates.Register(*tfliteBackend, d)
	}

	opts := []module.Option{module.WithDelegates(delegates)}
	if cfg.Data != "" {
		dataLoader, err := openLoader(cfg.Data, "none")
		if err != nil {
			log.Fatal().Err(err).Str("data", cfg.Data).Msg("open external data")
		}
		defer dataLoader.Close()
		dm, err := datamap.Load(dataLoader)
		if err != nil {
			log.Fatal().Err(err).Msg("load external data map")
		}
		opts = append(opts, module.WithExternalData(dm))
	}

	mod := module.New(loader, kernels, opts...)
	if err := mod.Load(parseVerification(*verify)); err != nil {
		log.Fatal().Err(err).Msg("load program")
	}

	inputs, err := buildInputs(cfg.Inputs)
	if err != nil {
		log.Fatal().Err(err).Msg("build inputs")
	}

	outputs, err := mod.Execute(cfg.Method, inputs)
	if err != nil {
		log.Fatal().Err(err).Str("method", cfg.Method).Msg("execute")
	}

	for i, out := range outputs {
		printOutput(i, out)
	}
}

func openLoader(path, mlock string) (storage.Loader, error) {
	return storage.NewMmapLoader(path, parseMlock(mlock))
}

func parseMlock(s string) storage.MlockMode {
	switch s {
	case "lock":
		return storage.UseMlock
	case "lock-ignore":
		return storage.UseMlockIgnoreErrors
	default:
		return storage.NoMlock
	}
}

func parseVerification(s string) program.Verification {
	if s == "minimal" {
		return program.Minimal
	}
	return program.InternalConsistency
}

func buildInputs(specs []inputSpec) ([]value.Value, error) {
	inputs := make([]value.Value, len(specs))
	for i, spec := range specs {
		t, err := buildInputTensor(spec)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		inputs[i] = value.NewTensor(t)
	}
	return inputs, nil
}

func buildInputTensor(spec inputSpec) (tensor.Tensor, error) {
	dimOrder := make([]int, len(spec.Shape))
	strides := make([]int, len(spec.Shape))
	stride := 1
	for i := len(spec.Shape) - 1; i >= 0; i-- {
		dimOrder[i] = i
		strides[i] = stride
		stride *= spec.Shape[i]
	}
	impl, err := tensor.NewImpl(dtype.Float, spec.Shape, dimOrder, strides, append([]float32(nil), spec.Data...), tensor.Static)
	if err != nil {
		return tensor.Tensor{}, err
	}
	return tensor.NewTensor(impl, tensor.ImmutableView), nil
}

func printOutput(i int, v value.Value) {
	if v.Tag() != value.TensorTag {
		log.Info().Int("output", i).Str("tag", v.Tag().String()).Msg("non-tensor output")
		return
	}
	t, err := v.AsTensor()
	if err != nil {
		log.Error().Err(err).Int("output", i).Msg("read output tensor")
		return
	}
	impl := t.Impl()
	n := impl.Numel()
	data := make([]float64, n)
	for j := 0; j < n; j++ {
		data[j], _ = impl.At(flatCoords(impl.Sizes(), j)...)
	}
	log.Info().Int("output", i).Ints("shape", impl.Sizes()).Floats64("data", data).Msg("result")
}

func flatCoords(sizes []int, idx int) []int {
	coords := make([]int, len(sizes))
	for i := len(sizes) - 1; i >= 0; i-- {
		if sizes[i] == 0 {
			continue
		}
		coords[i] = idx % sizes[i]
		idx /= sizes[i]
	}
	return coords
}
