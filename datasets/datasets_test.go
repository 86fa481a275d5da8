package datasets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/hftasks/hub"
	"github.com/gomlx/hftasks/labeling"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rows = []TokenClassificationRow{
	{ID: "0", Tokens: []string{"EU", "rejects", "German", "call"}, NERTags: []int64{3, 0, 7, 0}},
	{ID: "1", Tokens: []string{"Peter", "Blackburn"}, NERTags: []int64{1, 2}, IsValid: true},
	{Tokens: []string{"BRUSSELS"}, NERTags: []int64{5}},
}

func TestParquetFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.parquet")
	require.NoError(t, WriteTokenClassification(path, rows))
	got, err := ReadTokenClassification(path)
	require.NoError(t, err)
	assert.Equal(t, rows, got)

	_, err = ReadTokenClassification(filepath.Join(t.TempDir(), "missing.parquet"))
	assert.Error(t, err)
}

func TestExamples(t *testing.T) {
	examples, err := Examples(rows)
	require.NoError(t, err)
	require.Len(t, examples, 3)
	assert.Equal(t, "0", examples[0].ID)
	assert.Equal(t, labeling.IDs(3, 0, 7, 0), examples[0].Labels)
	assert.Equal(t, "2", examples[2].ID)

	train, valid := Split(examples)
	assert.Len(t, train, 2)
	require.Len(t, valid, 1)
	assert.Equal(t, []string{"Peter", "Blackburn"}, valid[0].Words)

	_, err = Examples([]TokenClassificationRow{{Tokens: []string{"a"}}})
	assert.Error(t, err)
}

func TestReadFromRepo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.parquet")
	require.NoError(t, WriteTokenClassification(path, rows))
	content, err := os.ReadFile(path)
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/datasets/acme/ner/resolve/main/data/train.parquet", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(content)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	repo := hub.New("acme/ner").WithType(hub.RepoTypeDataset).WithEndpoint(server.URL).WithCacheDir(t.TempDir())
	got, err := ReadTokenClassificationFromRepo(context.Background(), repo, "data/train.parquet")
	require.NoError(t, err)
	assert.Len(t, got, len(rows))
}
