// Package tokenizers creates tokenizers from HuggingFace models.
//
// Given a HuggingFace repository (see hub.New to create one), a Registry uses its "tokenizer_config.json"
// to pick the implementation for the tokenizer class, and falls back to "tokenizer.json" when
// the class is not registered.
package tokenizers

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/gomlx/hftasks/hub"
	"github.com/gomlx/hftasks/tokenizers/api"
	"github.com/gomlx/hftasks/tokenizers/hftokenizer"
	"github.com/gomlx/hftasks/tokenizers/sentencepiece"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Tokenizer interface allows one convert test to "tokens" (integer ids) and back.
type Tokenizer = api.Tokenizer

// WordTokenizer is a Tokenizer that keeps track of the words each token came from.
type WordTokenizer = api.WordTokenizer

// Config struct to hold HuggingFace's tokenizer_config.json contents.
type Config = api.Config

// TokenizerConstructor is used by Tokenizer implementations to provide implementations for different
// tokenizer classes.
type TokenizerConstructor func(config *api.Config, repo *hub.Repo) (api.Tokenizer, error)

// Registry maps tokenizer class names (the "tokenizer_class" in tokenizer_config.json) to
// their constructors.
//
// It is not safe for concurrent registration, but once configured it can be used concurrently.
type Registry struct {
	classes map[string]TokenizerConstructor
}

// NewRegistry returns a Registry with the default classes registered: the ones with a
// "tokenizer.json" use hftokenizer, and the SentencePiece based ones use sentencepiece.
func NewRegistry() *Registry {
	r := &Registry{classes: make(map[string]TokenizerConstructor)}
	for _, className := range []string{
		"BertTokenizer", "DistilBertTokenizer", "ElectraTokenizer", "RobertaTokenizer",
		"XLMRobertaTokenizer", "CamembertTokenizer", "DebertaV2Tokenizer", "DebertaTokenizer",
		"GPT2Tokenizer", "BartTokenizer", "LongformerTokenizer", "MPNetTokenizer",
		"PreTrainedTokenizer",
	} {
		r.Register(className, hftokenizer.New)
	}
	for _, className := range []string{"GemmaTokenizer", "LlamaTokenizer", "T5Tokenizer"} {
		r.Register(className, sentencepiece.New)
	}
	return r
}

// Register the constructor for the tokenizer class. It replaces any previous registration.
// It returns itself, so calls can be cascaded.
func (r *Registry) Register(className string, constructor TokenizerConstructor) *Registry {
	r.classes[className] = constructor
	return r
}

// Classes returns the registered class names, sorted.
func (r *Registry) Classes() []string {
	names := make([]string, 0, len(r.classes))
	for name := range r.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New creates a new tokenizer from the given HuggingFace repo (see hub.New).
//
// The "Fast" suffix of class names (e.g. "BertTokenizerFast") is ignored when looking up the class.
// If the class is not registered (or there is no tokenizer_config.json), but the repo has a
// "tokenizer.json" file, an hftokenizer is created.
func (r *Registry) New(repo *hub.Repo) (api.Tokenizer, error) {
	if err := repo.DownloadInfo(false); err != nil {
		return nil, err
	}
	var config *api.Config
	if repo.HasFile("tokenizer_config.json") {
		var err error
		config, err = GetConfig(repo)
		if err != nil {
			return nil, err
		}
		className := config.TokenizerClass
		for _, name := range []string{className, strings.TrimSuffix(className, "Fast")} {
			if constructor, found := r.classes[name]; found {
				return constructor(config, repo)
			}
		}
		klog.V(1).Infof("tokenizers: class %q of repo %q not registered, trying tokenizer.json", className, repo.ID)
	}
	if repo.HasFile("tokenizer.json") {
		return hftokenizer.New(config, repo)
	}
	if config != nil {
		return nil, errors.Errorf("unknown tokenizer class %q for repo %q", config.TokenizerClass, repo.ID)
	}
	return nil, errors.Errorf("repo %q has neither tokenizer_config.json nor tokenizer.json", repo.ID)
}

// NewWordTokenizer is like New, but requires the tokenizer to implement api.WordTokenizer, needed
// for token classification.
func (r *Registry) NewWordTokenizer(repo *hub.Repo) (api.WordTokenizer, error) {
	tok, err := r.New(repo)
	if err != nil {
		return nil, err
	}
	wordTok, ok := tok.(api.WordTokenizer)
	if !ok {
		return nil, errors.Errorf("tokenizer %T for repo %q can't encode split words", tok, repo.ID)
	}
	return wordTok, nil
}

// GetConfig returns the parsed "tokenizer_config.json" Config object for the repo.
func GetConfig(repo *hub.Repo) (*api.Config, error) {
	localConfigFile, err := repo.DownloadFile("tokenizer_config.json")
	if err != nil {
		return nil, err
	}
	return api.ParseConfigFile(localConfigFile)
}

// NewFromFile creates a tokenizer from a local file: a "tokenizer.json" (any name ending in ".json")
// or a SentencePiece ".model" file.
//
// If a "tokenizer_config.json" exists in the same directory, it is used as configuration.
func NewFromFile(filePath string) (api.WordTokenizer, error) {
	var config *api.Config
	configPath := filepath.Join(filepath.Dir(filePath), "tokenizer_config.json")
	if configPath != filePath {
		if parsed, err := api.ParseConfigFile(configPath); err == nil {
			config = parsed
		}
	}
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".json":
		tok, err := hftokenizer.NewFromFile(config, filePath)
		if err != nil {
			return nil, err
		}
		return tok, nil
	case ".model":
		tok, err := sentencepiece.NewFromFile(config, filePath)
		if err != nil {
			return nil, err
		}
		return tok, nil
	default:
		return nil, errors.Errorf("don't know how to create a tokenizer from %q: expected a .json or .model file", filePath)
	}
}
