package main

import (
	"bufio"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/gomlx/hftasks/collate"
	"github.com/gomlx/hftasks/display"
	"github.com/gomlx/hftasks/labeling"
	"github.com/gomlx/hftasks/lm"
	"github.com/gomlx/hftasks/tokenizers/api"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"
)

func lmCommand(cfg Config, ui UI) *cli.Command {
	return &cli.Command{
		Name:  "lm",
		Usage: "build language modeling samples from a text file, one text per line",
		Flags: []cli.Flag{
			tokenizerFlag(),
			&cli.StringFlag{Name: "text", Usage: "text file, one text per line", Required: true},
			&cli.IntFlag{Name: "chunk-size", Usage: "number of tokens per sample, special tokens included", Value: 128},
			&cli.StringFlag{Name: "objective", Usage: "causal or mlm", Value: "causal"},
			&cli.StringFlag{Name: "separator", Usage: "text inserted between concatenated texts"},
			&cli.IntFlag{Name: "vocab-size", Usage: "vocabulary size, for tokenizers that don't report it"},
			&cli.Uint64Flag{Name: "seed", Usage: "seed of the random masking", Value: 42},
			&cli.IntFlag{Name: "show", Usage: "number of samples to display", Value: 3},
		},
		Action: func(c *cli.Context) error {
			objective, err := lm.ParseObjective(c.String("objective"))
			if err != nil {
				return err
			}
			texts, err := readLines(c.String("text"))
			if err != nil {
				return err
			}
			wordTok, _, err := loadTokenizer(cfg, c.String("tokenizer"))
			if err != nil {
				return err
			}
			tok, ok := wordTok.(lm.Tokenizer)
			if !ok {
				return errors.Errorf("tokenizer %T doesn't report token spans, required to chunk texts", wordTok)
			}

			chunks, err := lm.ChunkTexts(tok, texts, lm.ChunkOptions{
				ChunkSize: c.Int("chunk-size"),
				Separator: c.String("separator"),
			})
			if err != nil {
				return err
			}
			if len(chunks) == 0 {
				return errors.Errorf("texts too short for a chunk of %d tokens", c.Int("chunk-size"))
			}
			klog.V(1).Infof("lm: %d texts chunked into %d chunks", len(texts), len(chunks))

			vocabSize := c.Int("vocab-size")
			if sized, ok := wordTok.(interface{ VocabSize() int }); ok && vocabSize == 0 {
				vocabSize = sized.VocabSize()
			}
			seed := c.Uint64("seed")
			builder, err := lm.NewBuilder(wordTok, objective, labeling.DefaultIgnoreID, vocabSize,
				rand.New(rand.NewPCG(seed, seed)))
			if err != nil {
				return err
			}
			encoded := make([][]int, len(chunks))
			for i, chunk := range chunks {
				encoded[i] = wordTok.WithSpecialTokens(wordTok.Encode(chunk))
			}
			samples, err := builder.BuildBatch(encoded)
			if err != nil {
				return err
			}
			return reportLM(ui, wordTok, objective, samples, c.Int("show"))
		},
	}
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %q", path)
	}
	defer func() { _ = f.Close() }()
	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading %q", path)
	}
	return lines, nil
}

func reportLM(ui UI, tok api.WordTokenizer, objective lm.Objective, samples []lm.Sample, show int) error {
	batchSamples := make([]collate.Sample, len(samples))
	inputIDs := make([][]int, len(samples))
	labels := make([][]int, len(samples))
	for i, s := range samples {
		batchSamples[i] = collate.Sample{InputIDs: s.InputIDs, Labels: s.Labels}
		inputIDs[i], labels[i] = s.InputIDs, s.Labels
	}
	padID, err := tok.SpecialTokenID(api.TokPad)
	if err != nil {
		padID = 0
	}
	batch, err := collate.Collator{PadID: padID, IgnoreID: labeling.DefaultIgnoreID}.Collate(batchSamples)
	if err != nil {
		return err
	}
	ids, _, _ := batch.Tensors()
	_, _ = fmt.Fprintf(ui.Out, "%s (%s): %d samples, input_ids %v\n", objective, objective.Type(), batch.Size(), ids.Shape())
	if show <= 0 {
		return nil
	}
	if objective == lm.BertMLM {
		_, _ = fmt.Fprintln(ui.Out, display.MaskedLM(tok, inputIDs, labels, labeling.DefaultIgnoreID, show, 80))
		return nil
	}
	for _, s := range samples[:min(show, len(samples))] {
		_, _ = fmt.Fprintln(ui.Out, tok.Decode(s.InputIDs))
	}
	return nil
}
