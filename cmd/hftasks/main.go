// hftasks prepares NLP task data for transformer models: token classification (NER, POS) and
// language modeling.
//
// Usage:
//
//	hftasks archs [--arch bert]
//	hftasks ner --tokenizer google-bert/bert-base-cased --data train.parquet --chunk --show 5
//	hftasks chunk --tokenizer tokenizer.json --words "a long document ..." --max-length 16
//	hftasks lm --tokenizer tiktoken:cl100k_base --text corpus.txt --chunk-size 128 --objective causal
//
// Environment variables: HF_TOKEN (for gated repositories), HF_HOME, HFTASKS_CACHE_DIR,
// HFTASKS_VERBOSITY and HFTASKS_MAX_PARALLEL_DOWNLOADS.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/caarlos0/env/v10"
	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"
)

// UI contains the output streams for the application.
// Used for injecting buffers during testing.
type UI struct {
	Out io.Writer
	Err io.Writer
}

// Config is read from the environment.
type Config struct {
	HFToken              string `env:"HF_TOKEN"`
	CacheDir             string `env:"HFTASKS_CACHE_DIR"`
	Verbosity            int    `env:"HFTASKS_VERBOSITY" envDefault:"0"`
	MaxParallelDownloads int    `env:"HFTASKS_MAX_PARALLEL_DOWNLOADS" envDefault:"4"`
}

// LoadConfig reads the configuration from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func main() {
	ui := UI{Out: os.Stdout, Err: os.Stderr}
	cfg, err := LoadConfig()
	if err != nil {
		fprintErr(ui.Err, err)
		os.Exit(1)
	}
	initKlog(cfg.Verbosity)
	defer klog.Flush()

	if err := newApp(cfg, ui).RunContext(context.Background(), os.Args); err != nil {
		fprintErr(ui.Err, err)
		os.Exit(1)
	}
}

func fprintErr(w io.Writer, err error) {
	_, _ = fmt.Fprintf(w, "hftasks: %v\n", err)
}

// initKlog sets klog's verbosity, without exposing its flags on the command line.
func initKlog(verbosity int) {
	fs := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(fs)
	_ = fs.Set("v", strconv.Itoa(verbosity))
	_ = fs.Set("logtostderr", "true")
}

func newApp(cfg Config, ui UI) *cli.App {
	return &cli.App{
		Name:      "hftasks",
		Usage:     "prepare NLP task data for transformer models",
		Writer:    ui.Out,
		ErrWriter: ui.Err,
		Commands: []*cli.Command{
			archsCommand(ui),
			nerCommand(cfg, ui),
			chunkCommand(cfg, ui),
			lmCommand(cfg, ui),
		},
	}
}
