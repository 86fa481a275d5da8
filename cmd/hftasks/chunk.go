package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/gomlx/hftasks/chunking"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

func chunkCommand(cfg Config, ui UI) *cli.Command {
	return &cli.Command{
		Name:  "chunk",
		Usage: "split a document into chunks of whole words that fit the model's maximum length",
		Flags: []cli.Flag{
			tokenizerFlag(),
			&cli.StringFlag{Name: "words", Usage: "document text, split into words by white space"},
			&cli.StringFlag{Name: "file", Usage: "file with the document text, instead of --words"},
			&cli.IntFlag{Name: "max-length", Usage: "maximum number of tokens per chunk, special tokens included", Value: 512},
			&cli.IntFlag{Name: "stride", Usage: "number of words consecutive chunks overlap by", Value: 2},
		},
		Action: func(c *cli.Context) error {
			text := c.String("words")
			if path := c.String("file"); path != "" {
				content, err := os.ReadFile(path)
				if err != nil {
					return errors.Wrapf(err, "reading %q", path)
				}
				text = string(content)
			}
			words := strings.Fields(text)
			if len(words) == 0 {
				return errors.New("no words to chunk: use --words or --file")
			}
			tok, _, err := loadTokenizer(cfg, c.String("tokenizer"))
			if err != nil {
				return err
			}
			spans, err := chunking.Split(words, tok, chunking.Options{
				MaxLength:  c.Int("max-length"),
				WordStride: c.Int("stride"),
			})
			if err != nil {
				return err
			}
			for _, span := range spans {
				_, _ = fmt.Fprintf(ui.Out, "[%d, %d) %s\n", span.Start, span.End,
					strings.Join(chunking.Slice(span, words), " "))
			}
			return nil
		},
	}
}
