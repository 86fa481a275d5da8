package api

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// Config struct to hold HuggingFace's tokenizer_config.json contents.
// There is no formal schema for this file, but these are some common fields that may be of use.
// Specific tokenizer classes are free to implement additional features as they see fit.
//
// The extra field ConfigFile holds the path to the file with the full config.
type Config struct {
	ConfigFile     string
	TokenizerClass string `json:"tokenizer_class"`

	ModelMaxLength int    `json:"-"`
	PaddingSide    string `json:"padding_side"`
	AddPrefixSpace bool   `json:"add_prefix_space"`
	AddBosToken    *bool  `json:"add_bos_token"`
	AddEosToken    *bool  `json:"add_eos_token"`
	DoLowerCase    bool   `json:"do_lower_case"`

	BosToken  string `json:"-"`
	EosToken  string `json:"-"`
	UnkToken  string `json:"-"`
	SepToken  string `json:"-"`
	PadToken  string `json:"-"`
	ClsToken  string `json:"-"`
	MaskToken string `json:"-"`
}

// tokenField accepts both `"[CLS]"` and `{"content": "[CLS]", ...}` forms.
type tokenField string

func (f *tokenField) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = tokenField(s)
		return nil
	}
	var obj struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return errors.Wrapf(err, "special token must be a string or an object with \"content\", got %s", data)
	}
	*f = tokenField(obj.Content)
	return nil
}

// ParseConfigContent parses the contents of a tokenizer_config.json file.
func ParseConfigContent(content []byte) (*Config, error) {
	config := &Config{}
	if err := json.Unmarshal(content, config); err != nil {
		return nil, errors.Wrap(err, "failed to parse tokenizer config")
	}
	var extra struct {
		ModelMaxLength float64    `json:"model_max_length"`
		BosToken       tokenField `json:"bos_token"`
		EosToken       tokenField `json:"eos_token"`
		UnkToken       tokenField `json:"unk_token"`
		SepToken       tokenField `json:"sep_token"`
		PadToken       tokenField `json:"pad_token"`
		ClsToken       tokenField `json:"cls_token"`
		MaskToken      tokenField `json:"mask_token"`
	}
	if err := json.Unmarshal(content, &extra); err != nil {
		return nil, errors.Wrap(err, "failed to parse tokenizer config special tokens")
	}
	// Some configs use a huge float (1e30) to say "no limit".
	if extra.ModelMaxLength > 0 && extra.ModelMaxLength < 1<<31 {
		config.ModelMaxLength = int(extra.ModelMaxLength)
	}
	config.BosToken = string(extra.BosToken)
	config.EosToken = string(extra.EosToken)
	config.UnkToken = string(extra.UnkToken)
	config.SepToken = string(extra.SepToken)
	config.PadToken = string(extra.PadToken)
	config.ClsToken = string(extra.ClsToken)
	config.MaskToken = string(extra.MaskToken)
	return config, nil
}

// ParseConfigFile parses the given tokenizer_config.json file.
func ParseConfigFile(filePath string) (*Config, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read tokenizer config %q", filePath)
	}
	config, err := ParseConfigContent(content)
	if err != nil {
		return nil, errors.WithMessagef(err, "in file %q", filePath)
	}
	config.ConfigFile = filePath
	return config, nil
}
