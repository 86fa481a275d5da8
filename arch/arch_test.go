package arch

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gomlx/hftasks/hub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskOf(t *testing.T) {
	for className, want := range map[string]string{
		"BertForTokenClassification":     "TokenClassification",
		"T5ForConditionalGeneration":     "ConditionalGeneration",
		"BertModel":                      "",
		"GPT2LMHeadModel":                "",
		"CLIPTextModelWithProjection":    "Projection",
		"ForwardModel":                   "",
		"XLMRobertaForQuestionAnswering": "QuestionAnswering",
	} {
		assert.Equal(t, want, TaskOf(className), className)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Contains(t, r.Architectures(), "bert")
	assert.Contains(t, r.Architectures(), "xlm_roberta")
	assert.Contains(t, r.Tasks(""), "TokenClassification")
	assert.Equal(t, []string{"ConditionalGeneration", "QuestionAnswering", "SequenceClassification", "TokenClassification"},
		r.Tasks("t5"))
	assert.Equal(t, []string{"DistilBertForTokenClassification"}, r.Models("distilbert", "TokenClassification"))
	assert.Contains(t, r.Models("gpt2", ""), "GPT2LMHeadModel")
	assert.Empty(t, r.Models("unknown", ""))

	arch, found := r.ModelArchitecture("RobertaForMaskedLM")
	assert.True(t, found)
	assert.Equal(t, "roberta", arch)
	_, found = r.ModelArchitecture("NopeForNothing")
	assert.False(t, found)

	r.Register("modernbert", "ModernBertForTokenClassification")
	assert.Contains(t, r.Architectures(), "modernbert")
	assert.Equal(t, []string{"TokenClassification"}, r.Tasks("modernbert"))
}

func TestNeedsPrefixSpace(t *testing.T) {
	assert.True(t, NeedsPrefixSpace("FacebookAI/roberta-base"))
	assert.True(t, NeedsPrefixSpace("openai-community/GPT2"))
	assert.True(t, NeedsPrefixSpace("facebook/bart-large"))
	assert.False(t, NeedsPrefixSpace("google-bert/bert-base-cased"))
}

const configJSON = `{
  "architectures": ["BertForTokenClassification"],
  "model_type": "bert",
  "max_position_embeddings": 512,
  "id2label": {"0": "O", "1": "B-PER", "2": "I-PER"},
  "label2id": {"O": 0, "B-PER": 1, "I-PER": 2},
  "pad_token_id": 0
}`

func TestModelConfig(t *testing.T) {
	config, err := ParseModelConfig([]byte(configJSON))
	require.NoError(t, err)
	assert.Equal(t, 512, config.MaxPositionEmbeddings)
	require.NotNil(t, config.PadTokenID)
	assert.Equal(t, 0, *config.PadTokenID)
	names, err := config.LabelNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"O", "B-PER", "I-PER"}, names)
	assert.Equal(t, "bert", NewRegistry().Architecture(config))

	config.ID2Label = map[string]string{"0": "O", "5": "B-PER"}
	_, err = config.LabelNames()
	assert.Error(t, err)
	config.ID2Label = map[string]string{"zero": "O"}
	_, err = config.LabelNames()
	assert.Error(t, err)
	config.ID2Label = nil
	names, err = config.LabelNames()
	require.NoError(t, err)
	assert.Nil(t, names)

	config = &ModelConfig{ModelType: "mystery", Architectures: []string{"MysteryModel"}}
	assert.Equal(t, "mystery", NewRegistry().Architecture(config))

	_, err = ParseModelConfig([]byte("{"))
	assert.Error(t, err)
}

func TestLoadModelConfig(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/acme/ner/resolve/main/config.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(configJSON))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	repo := hub.New("acme/ner").WithEndpoint(server.URL).WithCacheDir(t.TempDir())
	config, err := LoadModelConfig(repo)
	require.NoError(t, err)
	assert.Equal(t, "bert", config.ModelType)
	assert.Equal(t, []string{"BertForTokenClassification"}, config.Architectures)
}
