package arch

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/gomlx/hftasks/hub"
	"github.com/pkg/errors"
)

// ModelConfig holds the fields of a model's "config.json" used for preprocessing.
type ModelConfig struct {
	ModelType             string            `json:"model_type"`
	Architectures         []string          `json:"architectures"`
	MaxPositionEmbeddings int               `json:"max_position_embeddings"`
	ID2Label              map[string]string `json:"id2label"`
	Label2ID              map[string]int    `json:"label2id"`
	PadTokenID            *int              `json:"pad_token_id"`
}

// ParseModelConfig parses the contents of a "config.json" file.
func ParseModelConfig(content []byte) (*ModelConfig, error) {
	config := &ModelConfig{}
	if err := json.Unmarshal(content, config); err != nil {
		return nil, errors.Wrap(err, "parsing model config")
	}
	return config, nil
}

// LoadModelConfig downloads and parses the "config.json" of the repo.
func LoadModelConfig(repo *hub.Repo) (*ModelConfig, error) {
	localPath, err := repo.DownloadFile("config.json")
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(localPath)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %q", localPath)
	}
	config, err := ParseModelConfig(content)
	if err != nil {
		return nil, errors.WithMessagef(err, "repo %q", repo.ID)
	}
	return config, nil
}

// LabelNames returns the names of the labels ordered by id, from "id2label". It returns nil if the
// configuration has no labels.
func (c *ModelConfig) LabelNames() ([]string, error) {
	if len(c.ID2Label) == 0 {
		return nil, nil
	}
	names := make([]string, len(c.ID2Label))
	for key, name := range c.ID2Label {
		id, err := strconv.Atoi(key)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid label id %q in id2label", key)
		}
		if id < 0 || id >= len(names) {
			return nil, errors.Errorf("label id %d in id2label out of range: ids must be 0 to %d", id, len(names)-1)
		}
		names[id] = name
	}
	return names, nil
}

// Architecture returns the architecture of the first model class in the configuration registered
// in r, or else the configuration's model type.
func (r *Registry) Architecture(config *ModelConfig) string {
	for _, className := range config.Architectures {
		if arch, found := r.ModelArchitecture(className); found {
			return arch
		}
	}
	return config.ModelType
}
