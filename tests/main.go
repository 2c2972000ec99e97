// Command jira-mock serves an in-memory Jira seeded from a YAML file, for running
// relbot locally without a Jira instance.
package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/containeroo/tinyflags"
	"github.com/gi8lino/relbot/internal/jira/jiramock"
	"gopkg.in/yaml.v3"
)

func main() {
	var (
		flagSeedPath    string
		flagLogBody     bool
		flagRandomDelay bool
	)

	tf := tinyflags.NewFlagSet("jira-mock", tinyflags.ExitOnError)
	tf.StringVar(&flagSeedPath, "seed", "", "Path to seed YAML (required)").Value()
	listenAddr := tf.TCPAddr("listen-address", &net.TCPAddr{Port: 8081}, "Listen address").
		Placeholder("ADDR:PORT").
		Value()
	tf.BoolVar(&flagLogBody, "log-body", false, "Log request bodies").Value()
	tf.BoolVar(&flagRandomDelay, "random-delay", false, "Delay every response by 200-1000ms").Value()

	if err := tf.Parse(os.Args[1:]); err != nil {
		log.Fatal("flag parse error:", err)
	}
	if flagSeedPath == "" {
		log.Fatal("missing required --seed=<path to yaml>")
	}

	seed, err := loadSeed(flagSeedPath)
	if err != nil {
		log.Fatalf("seed error: %v", err)
	}

	mock := jiramock.New(seed)
	mock.OnRequest(func(r jiramock.Request) {
		if flagRandomDelay {
			applyRandomDelay(200, 1000)
		}
		logRequest(r, flagLogBody)
	})

	addr := (*listenAddr).String()
	log.Printf("Jira mock listening on %s (%d issues)", addr, len(seed.Issues))
	log.Fatal(http.ListenAndServe(addr, mock.Handler()))
}

// loadSeed reads the seed file. Unknown keys are rejected.
func loadSeed(path string) (jiramock.Seed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return jiramock.Seed{}, err
	}
	var seed jiramock.Seed
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil && !errors.Is(err, io.EOF) {
		return jiramock.Seed{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if len(seed.Fields) == 0 {
		return jiramock.Seed{}, fmt.Errorf("%s: at least the fixVersions field is required", path)
	}
	return seed, nil
}

// applyRandomDelay sleeps for a random duration between minMs and maxMs.
func applyRandomDelay(minMs, maxMs int) {
	d := time.Duration(minMs+rand.Intn(maxMs-minMs+1)) * time.Millisecond
	time.Sleep(d)
}

// logRequest prints a recorded request.
func logRequest(r jiramock.Request, withBody bool) {
	line := r.Method + " " + r.Path
	if r.Query != "" {
		line += "?" + r.Query
	}
	if withBody && r.Body != "" {
		line += " body=" + r.Body
	}
	log.Print(line)
}
