package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gomlx/hftasks/arch"
	"github.com/gomlx/hftasks/collate"
	"github.com/gomlx/hftasks/datasets"
	"github.com/gomlx/hftasks/display"
	"github.com/gomlx/hftasks/hub"
	"github.com/gomlx/hftasks/labeling"
	"github.com/gomlx/hftasks/preprocess"
	"github.com/gomlx/hftasks/tokenizers/api"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"
)

func nerCommand(cfg Config, ui UI) *cli.Command {
	defaults := preprocess.DefaultConfig()
	return &cli.Command{
		Name:  "ner",
		Usage: "preprocess a token classification dataset (a parquet file with tokens and ner_tags)",
		Flags: []cli.Flag{
			tokenizerFlag(),
			&cli.StringFlag{Name: "data", Usage: "local parquet file"},
			&cli.StringFlag{Name: "dataset", Usage: "HuggingFace dataset id, used with --file instead of --data"},
			&cli.StringFlag{Name: "file", Usage: "parquet file in the --dataset repo", Value: "train.parquet"},
			&cli.IntFlag{Name: "max-length", Usage: "maximum number of tokens per sequence", Value: defaults.MaxLength},
			&cli.BoolFlag{Name: "chunk", Usage: "split long examples into chunks instead of truncating them"},
			&cli.IntFlag{Name: "stride", Usage: "number of words consecutive chunks overlap by", Value: defaults.WordStride},
			&cli.StringFlag{Name: "strategy", Usage: "label alignment: first, same or bi", Value: "first"},
			&cli.StringSliceFlag{Name: "labels", Usage: "label names, in id order (default: the model's id2label)"},
			&cli.IntFlag{Name: "batch-size", Usage: "size of the collated batch reported", Value: 8},
			&cli.StringFlag{Name: "out", Usage: "save the first collated batch to this .safetensors file"},
			&cli.IntFlag{Name: "show", Usage: "number of processed examples to display", Value: 5},
		},
		Action: func(c *cli.Context) error {
			tok, repo, err := loadTokenizer(cfg, c.String("tokenizer"))
			if err != nil {
				return err
			}
			rows, err := readRows(c, cfg)
			if err != nil {
				return err
			}
			examples, err := datasets.Examples(rows)
			if err != nil {
				return err
			}

			strategy, err := labeling.ParseStrategy(c.String("strategy"))
			if err != nil {
				return err
			}
			config := defaults
			config.MaxLength = c.Int("max-length")
			config.ChunkExamples = c.Bool("chunk")
			config.WordStride = c.Int("stride")
			config.Strategy = strategy
			config.LabelNames, err = labelNames(c.StringSlice("labels"), repo)
			if err != nil {
				return err
			}

			tc, err := preprocess.NewTokenClassification(tok, config)
			if err != nil {
				return err
			}
			train, valid := datasets.Split(examples)
			processed, vocab, err := tc.Process(c.Context, train, valid)
			if err != nil {
				return err
			}
			if vocab == nil {
				vocab, err = numericVocab(processed, config.IgnoreID)
				if err != nil {
					return err
				}
			}
			_, _ = fmt.Fprintf(ui.Out, "%d examples (%d train, %d valid) processed into %d sequences, %d labels\n",
				len(examples), len(train), len(valid), len(processed), vocab.Len())

			if err := reportBatch(ui, tok, processed, config, c.Int("batch-size"), c.String("out")); err != nil {
				return err
			}
			return showWordLabels(ui, processed, vocab, config.IgnoreID, c.Int("show"))
		},
	}
}

func readRows(c *cli.Context, cfg Config) ([]datasets.TokenClassificationRow, error) {
	if path := c.String("data"); path != "" {
		return datasets.ReadTokenClassification(path)
	}
	if id := c.String("dataset"); id != "" {
		repo := newRepo(cfg, id).WithType(hub.RepoTypeDataset)
		return datasets.ReadTokenClassificationFromRepo(c.Context, repo, c.String("file"))
	}
	return nil, errors.New("either --data or --dataset must be given")
}

// labelNames returns the names given, or else those in the model's configuration if the tokenizer
// came from a repo that has one.
func labelNames(names []string, repo *hub.Repo) ([]string, error) {
	if len(names) > 0 || repo == nil || !repo.HasFile("config.json") {
		return names, nil
	}
	config, err := arch.LoadModelConfig(repo)
	if err != nil {
		return nil, err
	}
	klog.V(1).Infof("model %q: architecture %q", repo.ID, arch.NewRegistry().Architecture(config))
	return config.LabelNames()
}

// numericVocab names the labels by their ids, for datasets without label names.
func numericVocab(processed []preprocess.Processed, ignoreID int) (*labeling.Vocab, error) {
	maxID := -1
	for _, p := range processed {
		for _, id := range p.AlignedLabels {
			if id != ignoreID {
				maxID = max(maxID, id)
			}
		}
	}
	names := make([]string, maxID+1)
	for i := range names {
		names[i] = strconv.Itoa(i)
	}
	return labeling.NewVocab(names)
}

// reportBatch collates the first processed sequences and prints the shape of the batch tensors.
// If outPath is set, the batch is saved to it.
func reportBatch(ui UI, tok api.WordTokenizer, processed []preprocess.Processed, config preprocess.Config, batchSize int, outPath string) error {
	if len(processed) == 0 || batchSize <= 0 {
		return nil
	}
	padID, err := tok.SpecialTokenID(api.TokPad)
	if err != nil {
		padID = 0
	}
	samples := make([]collate.Sample, 0, batchSize)
	for _, p := range processed[:min(batchSize, len(processed))] {
		samples = append(samples, collate.Sample{InputIDs: p.InputIDs, Labels: p.AlignedLabels})
	}
	collator := collate.Collator{PadID: padID, IgnoreID: config.IgnoreID, MaxLength: config.MaxLength}
	batch, err := collator.Collate(samples)
	if err != nil {
		return err
	}
	inputIDs, _, labels := batch.Tensors()
	_, _ = fmt.Fprintf(ui.Out, "first batch: input_ids %v, labels %v\n", inputIDs.Shape(), labels.Shape())
	if outPath == "" {
		return nil
	}
	ids := make([]string, batch.Size())
	for i, p := range processed[:batch.Size()] {
		ids[i] = p.ID
	}
	metadata := map[string]string{"task": "token_classification", "ids": strings.Join(ids, ",")}
	if err := batch.Save(outPath, metadata); err != nil {
		return err
	}
	klog.V(1).Infof("batch saved to %q", outPath)
	return nil
}

func showWordLabels(ui UI, processed []preprocess.Processed, vocab *labeling.Vocab, ignoreID, n int) error {
	var examples [][]labeling.WordLabel
	for _, p := range processed[:min(n, len(processed))] {
		pairs, err := labeling.WordLabels(p.Words, p.WordIDs, p.AlignedLabels, vocab, ignoreID)
		if err != nil {
			return errors.WithMessagef(err, "example %q", p.ID)
		}
		examples = append(examples, pairs)
	}
	if len(examples) > 0 {
		_, _ = fmt.Fprintln(ui.Out, display.WordLabels(examples, n, 60))
	}
	return nil
}
