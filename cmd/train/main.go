// ffnet-train: trains a three-layer network and writes it in the native
// binary format.
//
// Usage:
//
//	ffnet-train -topology="2 8 1" -gate=xor -iterations=40000 -model=xor.dat
//	ffnet-train -config=train.yaml -data=points.csv -normalize -json=points.json
//	ffnet-train -gate=and -topology="2 2 1" -model=and.dat -reuse
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"ffnet/dataset"
	"ffnet/nn"
	"ffnet/trainer"
	"ffnet/utils"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
)

var (
	configFile   = flag.String("config", "", "YAML config file")
	topology     = flag.String("topology", "2 8 1", "Layer sizes: input hidden output")
	learningRate = flag.Float64("rate", 0.1, "Learning rate")
	iterations   = flag.Int("iterations", 40000, "Number of training steps")
	seed         = flag.Uint64("seed", 1, "Random seed for weights and shuffling")
	dataFile     = flag.String("data", "", "CSV training data (inputs then targets per row)")
	gate         = flag.String("gate", "xor", "Logic gate to learn when -data is empty: and, or, xor, nand")
	normalize    = flag.Bool("normalize", false, "Standardise input features of -data (statistics are kept only in the -json export)")
	reuse        = flag.Bool("reuse", false, "Load -model instead of training when it already exists")
	modelFile    = flag.String("model", "brain.dat", "Output network file")
	jsonFile     = flag.String("json", "", "Optional JSON weights export")
	verbose      = flag.Bool("verbose", false, "Progress bar and timing statistics")
)

func main() {
	flag.Parse()

	config, err := loadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := utils.ValidateConfig(&config); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	utils.Verbose = config.Verbose

	fmt.Printf("\nConfiguration:\n")
	fmt.Printf("  Topology:      %s\n", config.Topology)
	fmt.Printf("  Learning Rate: %.4f\n", config.LearningRate)
	fmt.Printf("  Iterations:    %d\n", config.Iterations)
	fmt.Printf("  Seed:          %d\n", config.Seed)
	fmt.Println()

	stats := &utils.TimingStats{}
	totalStart := time.Now()

	start := time.Now()
	lines, norm, err := loadLines(config)
	if err != nil {
		log.Fatalf("loading data: %v", err)
	}
	dataset.Shuffle(lines, rand.NewSource(config.Seed))
	stats.DataLoadingTime = time.Since(start)
	fmt.Printf("Loaded %d examples\n", len(lines))

	tc := trainer.Config{
		Iterations:   config.Iterations,
		LearningRate: config.LearningRate,
		Label:        "Training",
	}
	if config.Verbose {
		tc.Progress = os.Stdout
		tc.Logger = log.Default()
	}

	var before float64
	var run trainer.Stats
	train := func(net *nn.Network) error {
		stats.ModelInitTime = time.Since(start)
		before = mse(net, lines)
		var err error
		run, err = trainer.Run(net, lines, tc)
		return err
	}

	start = time.Now()
	var net *nn.Network
	var loaded bool
	if *reuse {
		net, loaded, err = trainer.LoadOrTrain(config.ModelPath, config.Topology, config.Seed, train)
		if err != nil {
			log.Fatalf("loading or training: %v", err)
		}
		if loaded {
			fmt.Printf("Reusing network from %s\n", config.ModelPath)
			stats.ModelInitTime = time.Since(start)
		}
	} else {
		if net, err = nn.NewFromTopology(config.Topology); err != nil {
			log.Fatalf("creating network: %v", err)
		}
		if err := net.InitSeed(config.Seed); err != nil {
			log.Fatalf("initialising network: %v", err)
		}
		if err := train(net); err != nil {
			log.Fatalf("training: %v", err)
		}
	}
	defer net.Release()
	stats.TrainingTime = run.Duration

	start = time.Now()
	after := mse(net, lines)
	stats.EvaluationTime = time.Since(start)
	if run.Iterations > 0 {
		fmt.Printf("MSE: %.6f -> %.6f\n", before, after)
	} else {
		fmt.Printf("MSE: %.6f\n", after)
	}

	start = time.Now()
	if !*reuse {
		if err := net.SaveFile(config.ModelPath); err != nil {
			log.Fatalf("saving network: %v", err)
		}
	}
	if !loaded {
		fmt.Printf("Saved network to %s\n", config.ModelPath)
	}
	if *jsonFile != "" {
		mw := utils.ExportWeights(net)
		mw.Normalization = norm
		if err := utils.SaveWeights(*jsonFile, mw); err != nil {
			log.Fatalf("exporting weights: %v", err)
		}
		fmt.Printf("Exported weights to %s\n", *jsonFile)
	} else if norm != nil {
		log.Printf("warning: %s expects standardised inputs; use -json to keep the statistics", config.ModelPath)
	}
	stats.PersistenceTime = time.Since(start)

	stats.TotalTime = time.Since(totalStart)
	utils.PrintTimingStats(stats, run.Iterations)
}

// loadConfig starts from the config file, if any, and applies the flags
// given on the command line on top.
func loadConfig() (utils.Config, error) {
	config := utils.DefaultConfig()
	if *configFile != "" {
		var err error
		if config, err = utils.LoadConfig(*configFile); err != nil {
			return config, err
		}
	}

	var err error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "topology":
			config.Architecture = *topology
			if t, perr := utils.ParseTopology(*topology); perr != nil {
				err = perr
			} else {
				config.Topology = t
			}
		case "rate":
			config.LearningRate = *learningRate
		case "iterations":
			config.Iterations = *iterations
		case "seed":
			config.Seed = *seed
		case "data":
			config.DataPath = *dataFile
		case "model":
			config.ModelPath = *modelFile
		case "verbose":
			config.Verbose = *verbose
		}
	})
	return config, err
}

func loadLines(config utils.Config) (dataset.Lines, *utils.Normalization, error) {
	if config.DataPath == "" {
		lines, err := dataset.Logic(*gate)
		if err != nil {
			return nil, nil, err
		}
		if config.Topology.Input != 2 || config.Topology.Output != 1 {
			return nil, nil, errors.Errorf("gate %s needs a 2-n-1 topology, got %s", *gate, config.Topology)
		}
		return lines, nil, nil
	}

	f, err := os.Open(config.DataPath)
	if err != nil {
		return nil, nil, errors.Wrap(err, "opening data")
	}
	defer f.Close()
	lines, err := dataset.GetLines(f, config.Topology.Input, config.Topology.Output)
	if err != nil {
		return nil, nil, err
	}
	if len(lines) == 0 {
		return nil, nil, errors.Errorf("%s has no examples", config.DataPath)
	}
	if !*normalize {
		return lines, nil, nil
	}
	norm := &utils.Normalization{
		Mean:   dataset.CalculateMean(lines),
		StdDev: dataset.CalculateStdDev(lines),
	}
	return dataset.NormalizeLines(lines, norm.StdDev, norm.Mean), norm, nil
}

func mse(net *nn.Network, lines dataset.Lines) float64 {
	v, err := trainer.MeanSquaredError(net, lines)
	if err != nil {
		log.Fatalf("evaluating: %v", err)
	}
	return v
}
