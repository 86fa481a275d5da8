package main

import (
	"os"
	"strings"

	"github.com/gomlx/hftasks/hub"
	"github.com/gomlx/hftasks/tokenizers"
	"github.com/gomlx/hftasks/tokenizers/api"
	"github.com/gomlx/hftasks/tokenizers/tiktoken"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"
)

const tiktokenPrefix = "tiktoken:"

func tokenizerFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "tokenizer",
		Usage:    "local tokenizer.json or SentencePiece .model file, HuggingFace model id, or tiktoken:<encoding>",
		Required: true,
	}
}

// newRepo returns the hub repository for the model id, configured from the environment.
func newRepo(cfg Config, id string) *hub.Repo {
	repo := hub.New(id).WithAuth(cfg.HFToken)
	if cfg.CacheDir != "" {
		repo = repo.WithCacheDir(cfg.CacheDir)
	}
	if cfg.MaxParallelDownloads > 0 {
		repo.MaxParallelDownload = cfg.MaxParallelDownloads
	}
	return repo
}

// loadTokenizer creates the tokenizer given by source. The repo returned is nil unless the
// tokenizer was loaded from the hub.
func loadTokenizer(cfg Config, source string) (api.WordTokenizer, *hub.Repo, error) {
	if encoding, found := strings.CutPrefix(source, tiktokenPrefix); found {
		tok, err := tiktoken.New(encoding)
		return tok, nil, err
	}
	if _, err := os.Stat(source); err == nil {
		klog.V(1).Infof("loading tokenizer from file %q", source)
		tok, err := tokenizers.NewFromFile(source)
		return tok, nil, err
	}
	klog.V(1).Infof("loading tokenizer from repo %q", source)
	repo := newRepo(cfg, source)
	tok, err := tokenizers.NewRegistry().NewWordTokenizer(repo)
	if err != nil {
		return nil, nil, errors.WithMessagef(err, "tokenizer %q is neither a local file nor a loadable repo", source)
	}
	return tok, repo, nil
}
