// ffnet-infer: runs a trained network on one input, optionally with the
// hidden layer evaluated on the encrypted input.
//
// Usage:
//
//	ffnet-infer -model=xor.dat -input=1,0
//	ffnet-infer -weights=xor.json -input=1,0 -encrypted -logN=13
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"ffnet/core/ckkswrapper"
	"ffnet/nn"
	"ffnet/split"
	"ffnet/utils"

	"github.com/pkg/errors"
)

var (
	modelFile   = flag.String("model", "brain.dat", "Network file in the native binary format")
	weightsFile = flag.String("weights", "", "JSON weights file, used instead of -model when set; its stored input normalization is applied")
	input       = flag.String("input", "", "Comma-separated input values")
	encrypted   = flag.Bool("encrypted", false, "Evaluate the hidden layer on the encrypted input")
	logN        = flag.Int("logN", ckkswrapper.DefaultLogN, "Ring dimension log2")
	verbose     = flag.Bool("verbose", false, "Verbose output")
)

func main() {
	flag.Parse()
	utils.Verbose = *verbose

	net, norm, err := loadNetwork()
	if err != nil {
		log.Fatalf("loading network: %v", err)
	}
	defer net.Release()

	x, err := parseInput(*input)
	if err != nil {
		log.Fatalf("parsing input: %v", err)
	}
	if norm != nil {
		if x, err = norm.Apply(x); err != nil {
			log.Fatalf("normalizing input: %v", err)
		}
	}

	start := time.Now()
	var out []float64
	if *encrypted {
		out, err = predictEncrypted(net, x)
	} else {
		out, err = net.Predict(x)
	}
	if err != nil {
		log.Fatalf("inference: %v", err)
	}
	if *verbose {
		log.Printf("%s inference took %.0fus", net.Topology(), utils.DurationUS(time.Since(start)))
	}

	strs := make([]string, len(out))
	for i, v := range out {
		strs[i] = strconv.FormatFloat(v, 'f', 6, 64)
	}
	fmt.Println(strings.Join(strs, ","))
}

// loadNetwork prefers the JSON export, which also carries the input
// normalization the network was trained with.
func loadNetwork() (*nn.Network, *utils.Normalization, error) {
	if *weightsFile != "" {
		mw, err := utils.LoadWeights(*weightsFile)
		if err != nil {
			return nil, nil, err
		}
		net, err := utils.ImportWeights(mw)
		return net, mw.Normalization, err
	}
	net, err := nn.LoadFile(*modelFile)
	return net, nil, err
}

func parseInput(s string) ([]float64, error) {
	fields := strings.Split(s, ",")
	x := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "value %d", i)
		}
		x[i] = v
	}
	return x, nil
}

// predictEncrypted plays both parties in one process: the server goroutine
// only ever sees ciphertexts and evaluation keys.
func predictEncrypted(net *nn.Network, x []float64) ([]float64, error) {
	start := time.Now()
	he, err := ckkswrapper.NewHeContext(*logN, net.Topology().Input)
	if err != nil {
		return nil, err
	}
	server, err := split.NewServer(he.GenServerKit(), net)
	if err != nil {
		return nil, err
	}
	if *verbose {
		log.Printf("HE initialization: %.0fus", utils.DurationUS(time.Since(start)))
	}

	toServer, fromClient := io.Pipe()
	toClient, fromServer := io.Pipe()
	defer fromClient.Close()
	defer fromServer.Close()

	done := make(chan error, 1)
	go func() { done <- server.Serve(split.NewProtocol(toServer, fromServer)) }()

	client := split.NewClient(he, net, split.NewProtocol(toClient, fromClient))
	out, err := client.Predict(x)
	if err != nil {
		return nil, err
	}
	if err := client.Close(); err != nil {
		return nil, err
	}
	return out, <-done
}
