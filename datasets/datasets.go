// Package datasets reads and writes token classification datasets stored as Parquet files, in the
// layout used by HuggingFace datasets (e.g. "conll2003"): one row per sentence, with the list of
// words ("tokens") and their integer labels ("ner_tags").
package datasets

import (
	"context"
	"strconv"

	"github.com/gomlx/hftasks/hub"
	"github.com/gomlx/hftasks/labeling"
	"github.com/gomlx/hftasks/preprocess"
	"github.com/parquet-go/parquet-go"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// TokenClassificationRow is one example of a token classification dataset.
type TokenClassificationRow struct {
	ID      string   `parquet:"id"`
	Tokens  []string `parquet:"tokens,list"`
	NERTags []int64  `parquet:"ner_tags,list"`
	IsValid bool     `parquet:"is_valid"`
}

// ReadTokenClassification reads the rows of a Parquet file.
func ReadTokenClassification(filePath string) ([]TokenClassificationRow, error) {
	rows, err := parquet.ReadFile[TokenClassificationRow](filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "reading token classification rows from %q", filePath)
	}
	klog.V(1).Infof("datasets: read %d rows from %q", len(rows), filePath)
	return rows, nil
}

// WriteTokenClassification writes the rows to a Parquet file.
func WriteTokenClassification(filePath string, rows []TokenClassificationRow) error {
	if err := parquet.WriteFile(filePath, rows); err != nil {
		return errors.Wrapf(err, "writing %d token classification rows to %q", len(rows), filePath)
	}
	return nil
}

// ReadTokenClassificationFromRepo downloads the Parquet file from the HuggingFace dataset repo
// (see hub.New and hub.RepoTypeDataset) and reads its rows.
func ReadTokenClassificationFromRepo(ctx context.Context, repo *hub.Repo, fileName string) ([]TokenClassificationRow, error) {
	localPath, err := repo.DownloadFileContext(ctx, fileName)
	if err != nil {
		return nil, err
	}
	return ReadTokenClassification(localPath)
}

// Examples converts rows to preprocess.Examples, with integer labels. Rows without an ID get
// their index as ID.
func Examples(rows []TokenClassificationRow) ([]preprocess.Example, error) {
	examples := make([]preprocess.Example, len(rows))
	for i, row := range rows {
		if len(row.Tokens) != len(row.NERTags) {
			return nil, errors.Errorf("row #%d has %d tokens but %d tags", i, len(row.Tokens), len(row.NERTags))
		}
		labels := make([]labeling.Label, len(row.NERTags))
		for j, tag := range row.NERTags {
			labels[j] = labeling.ID(int(tag))
		}
		id := row.ID
		if id == "" {
			id = strconv.Itoa(i)
		}
		examples[i] = preprocess.Example{
			ID:      id,
			Words:   row.Tokens,
			Labels:  labels,
			IsValid: row.IsValid,
		}
	}
	return examples, nil
}

// Split separates the training and validation examples.
func Split(examples []preprocess.Example) (train, valid []preprocess.Example) {
	for _, ex := range examples {
		if ex.IsValid {
			valid = append(valid, ex)
		} else {
			train = append(train, ex)
		}
	}
	return
}
