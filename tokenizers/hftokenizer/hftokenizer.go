// Package hftokenizer implements a tokenizer for HuggingFace's tokenizer.json format.
// This format is used by the HuggingFace Tokenizers library (the "fast" tokenizers)
// and supports WordPiece (BERT), BPE (GPT-2, RoBERTa), and Unigram models.
//
// Besides plain encoding, it implements api.WordTokenizer (encoding of text already split into
// words, with the word index of each token, which token classification needs) and
// api.TokenizerWithSpans.
package hftokenizer

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/edsrzf/mmap-go"
	"github.com/gomlx/hftasks/hub"
	"github.com/gomlx/hftasks/tokenizers/api"
	"github.com/pkg/errors"
)

// TokenizerJSON represents the structure of HuggingFace's tokenizer.json file.
type TokenizerJSON struct {
	Version       string          `json:"version"`
	Truncation    json.RawMessage `json:"truncation"`
	Padding       json.RawMessage `json:"padding"`
	AddedTokens   []AddedToken    `json:"added_tokens"`
	Normalizer    *Normalizer     `json:"normalizer"`
	PreTokenizer  *PreTokenizer   `json:"pre_tokenizer"`
	PostProcessor *PostProcessor  `json:"post_processor"`
	Decoder       *Decoder        `json:"decoder"`
	Model         Model           `json:"model"`
}

// AddedToken represents a special token added to the vocabulary.
type AddedToken struct {
	ID         int    `json:"id"`
	Content    string `json:"content"`
	SingleWord bool   `json:"single_word"`
	Lstrip     bool   `json:"lstrip"`
	Rstrip     bool   `json:"rstrip"`
	Normalized bool   `json:"normalized"`
	Special    bool   `json:"special"`
}

// Normalizer represents the normalizer configuration.
type Normalizer struct {
	Type         string       `json:"type"`
	Lowercase    bool         `json:"lowercase"`
	StripAccents *bool        `json:"strip_accents"`
	Normalizers  []Normalizer `json:"normalizers"`
	Pattern      *Pattern     `json:"pattern"`
	Content      string       `json:"content"`
	Prepend      string       `json:"prepend"`
	Left         bool         `json:"left"`
	Right        bool         `json:"right"`
}

// Pattern for regex-based operations.
type Pattern struct {
	Regex  string `json:"Regex,omitempty"`
	String string `json:"String,omitempty"`
}

// PreTokenizer represents the pre-tokenizer configuration.
type PreTokenizer struct {
	Type           string         `json:"type"`
	AddPrefixSpace bool           `json:"add_prefix_space"`
	PreTokenizers  []PreTokenizer `json:"pretokenizers"`
	Pattern        *Pattern       `json:"pattern"`
	Behavior       string         `json:"behavior"`
	Invert         bool           `json:"invert"`
	UseRegex       *bool          `json:"use_regex"`
	PrependScheme  string         `json:"prepend_scheme"`
}

// PostProcessor represents the post-processor configuration: it defines the special tokens
// added around an encoded sequence.
type PostProcessor struct {
	Type          string                          `json:"type"`
	Single        []PostProcItem                  `json:"single"`
	Pair          []PostProcItem                  `json:"pair"`
	SpecialTokens map[string]PostProcSpecialToken `json:"special_tokens"`
	Sep           *SpecialTokenPair               `json:"sep"`
	Cls           *SpecialTokenPair               `json:"cls"`
	Processors    []PostProcessor                 `json:"processors"`
}

// PostProcItem is an item in post-processing template.
type PostProcItem struct {
	SpecialToken *struct {
		ID     string `json:"id"`
		TypeID int    `json:"type_id"`
	} `json:"SpecialToken,omitempty"`
	Sequence *struct {
		ID     string `json:"id"`
		TypeID int    `json:"type_id"`
	} `json:"Sequence,omitempty"`
}

// PostProcSpecialToken defines a special token for post-processing.
type PostProcSpecialToken struct {
	ID     string   `json:"id"`
	IDs    []int    `json:"ids"`
	Tokens []string `json:"tokens"`
}

// SpecialTokenPair is the `["[SEP]", 102]` form used by BertProcessing and RobertaProcessing.
type SpecialTokenPair struct {
	Token string
	ID    int
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *SpecialTokenPair) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrapf(err, "special token pair must be a [token, id] list, got %s", data)
	}
	if len(raw) != 2 {
		return errors.Errorf("special token pair must have 2 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &p.Token); err != nil {
		return errors.Wrap(err, "special token pair token")
	}
	if err := json.Unmarshal(raw[1], &p.ID); err != nil {
		return errors.Wrap(err, "special token pair id")
	}
	return nil
}

// Decoder represents the decoder configuration.
type Decoder struct {
	Type           string    `json:"type"`
	Prefix         string    `json:"prefix"`
	Suffix         string    `json:"suffix"`
	Decoders       []Decoder `json:"decoders"`
	Pattern        *Pattern  `json:"pattern"`
	Content        string    `json:"content"`
	Start          int       `json:"start"`
	Stop           int       `json:"stop"`
	AddPrefixSpace bool      `json:"add_prefix_space"`
	PrependScheme  string    `json:"prepend_scheme"`
}

// Model represents the tokenizer model (WordPiece, BPE, or Unigram).
type Model struct {
	Type                    string   `json:"type"`
	Vocab                   Vocab    `json:"vocab"`
	Merges                  Merges   `json:"merges"`
	UnkToken                string   `json:"unk_token"`
	UnkID                   *int     `json:"unk_id"`
	ContinuingSubwordPrefix string   `json:"continuing_subword_prefix"`
	MaxInputCharsPerWord    int      `json:"max_input_chars_per_word"`
	FuseUnk                 bool     `json:"fuse_unk"`
	ByteFallback            bool     `json:"byte_fallback"`
	Dropout                 *float64 `json:"dropout"`
	EndOfWordSuffix         string   `json:"end_of_word_suffix"`
}

// Vocab maps token to id. Unigram models store it as a list of [piece, score] pairs, in
// which case the id is the position in the list.
type Vocab map[string]int

// UnmarshalJSON implements json.Unmarshaler.
func (v *Vocab) UnmarshalJSON(data []byte) error {
	var asMap map[string]int
	if err := json.Unmarshal(data, &asMap); err == nil {
		*v = asMap
		return nil
	}
	var asList [][]json.RawMessage
	if err := json.Unmarshal(data, &asList); err != nil {
		return errors.Wrap(err, "vocab must be either a map or a list of [piece, score]")
	}
	*v = make(Vocab, len(asList))
	for id, entry := range asList {
		if len(entry) == 0 {
			continue
		}
		var piece string
		if err := json.Unmarshal(entry[0], &piece); err != nil {
			return errors.Wrapf(err, "vocab entry #%d", id)
		}
		(*v)[piece] = id
	}
	return nil
}

// Merges for BPE, in either the "a b" or the ["a", "b"] format.
type Merges []string

// UnmarshalJSON implements json.Unmarshaler.
func (m *Merges) UnmarshalJSON(data []byte) error {
	var asStrings []string
	if err := json.Unmarshal(data, &asStrings); err == nil {
		*m = asStrings
		return nil
	}
	var asPairs [][2]string
	if err := json.Unmarshal(data, &asPairs); err != nil {
		return errors.Wrap(err, "merges must be a list of strings or of pairs")
	}
	*m = make(Merges, len(asPairs))
	for i, pair := range asPairs {
		(*m)[i] = pair[0] + " " + pair[1]
	}
	return nil
}

// Tokenizer implements the api.Tokenizer interface for HuggingFace tokenizer.json files.
type Tokenizer struct {
	config     *api.Config
	tokenizer  *TokenizerJSON
	idToToken  map[int]string
	mergeRanks map[string]int // For BPE: maps "token1 token2" to merge priority

	// Special token IDs, -1 if not defined.
	unkID  int
	padID  int
	bosID  int
	eosID  int
	clsID  int
	sepID  int
	maskID int

	// Added tokens lookup (content -> id), and their contents sorted longest first for matching.
	addedTokens   map[string]int
	addedContents []string
	specialIDs    map[int]bool

	// Special tokens added around a single sequence by the post-processor.
	prefixIDs, suffixIDs []int

	// byteLevel is set if the pre-tokenizer maps bytes to unicode (GPT-2 style).
	byteLevel bool
	// metaspace is set if the pre-tokenizer replaces spaces by "▁".
	metaspace bool
	// addPrefixSpace is set if a space is prepended to the text when it doesn't start with one.
	addPrefixSpace bool
}

// Compile time assert that Tokenizer implements the api interfaces.
var (
	_ api.Tokenizer          = &Tokenizer{}
	_ api.WordTokenizer      = &Tokenizer{}
	_ api.TokenizerWithSpans = &Tokenizer{}
)

// New creates a HuggingFace tokenizer from the tokenizer.json file.
// It implements a tokenizers.TokenizerConstructor function signature.
func New(config *api.Config, repo *hub.Repo) (api.Tokenizer, error) {
	if !repo.HasFile("tokenizer.json") {
		return nil, errors.Errorf("\"tokenizer.json\" file not found in repo %q", repo.ID)
	}
	tokenizerFile, err := repo.DownloadFile("tokenizer.json")
	if err != nil {
		return nil, errors.Wrapf(err, "can't download tokenizer.json file")
	}
	return NewFromFile(config, tokenizerFile)
}

// NewFromFile creates a HuggingFace tokenizer from a local tokenizer.json file path.
// The file is memory-mapped while parsing: tokenizer.json files of large vocabularies can have
// tens of megabytes.
func NewFromFile(config *api.Config, filePath string) (*Tokenizer, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open tokenizer.json file %q", filePath)
	}
	defer func() { _ = f.Close() }()
	stat, err := f.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat %q", filePath)
	}
	if stat.Size() == 0 {
		return nil, errors.Errorf("tokenizer.json file %q is empty", filePath)
	}
	content, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to memory-map %q", filePath)
	}
	defer func() { _ = content.Unmap() }()
	tok, err := NewFromContent(config, content)
	if err != nil {
		return nil, errors.WithMessagef(err, "in file %q", filePath)
	}
	return tok, nil
}

// NewFromContent creates a HuggingFace tokenizer from tokenizer.json content.
// config (from tokenizer_config.json) is optional, and can be nil.
func NewFromContent(config *api.Config, content []byte) (*Tokenizer, error) {
	var tj TokenizerJSON
	if err := json.Unmarshal(content, &tj); err != nil {
		return nil, errors.Wrapf(err, "failed to parse tokenizer.json")
	}

	t := &Tokenizer{
		config:      config,
		tokenizer:   &tj,
		idToToken:   make(map[int]string),
		addedTokens: make(map[string]int),
		specialIDs:  make(map[int]bool),
		unkID:       -1,
		padID:       -1,
		bosID:       -1,
		eosID:       -1,
		clsID:       -1,
		sepID:       -1,
		maskID:      -1,
	}

	for token, id := range tj.Model.Vocab {
		t.idToToken[id] = token
	}
	for _, at := range tj.AddedTokens {
		t.addedTokens[at.Content] = at.ID
		t.idToToken[at.ID] = at.Content
		if at.Special {
			t.specialIDs[at.ID] = true
		}
		if at.Content != "" {
			t.addedContents = append(t.addedContents, at.Content)
		}
	}
	sort.SliceStable(t.addedContents, func(i, j int) bool {
		return len(t.addedContents[i]) > len(t.addedContents[j])
	})

	if tj.Model.Type == "BPE" {
		t.mergeRanks = make(map[string]int, len(tj.Model.Merges))
		for i, merge := range tj.Model.Merges {
			t.mergeRanks[merge] = i
		}
	}

	if tj.PreTokenizer != nil {
		if pt := findPreTokenizer(tj.PreTokenizer, "ByteLevel"); pt != nil {
			t.byteLevel = true
			t.addPrefixSpace = pt.AddPrefixSpace
		} else if pt := findPreTokenizer(tj.PreTokenizer, "Metaspace"); pt != nil {
			t.metaspace = true
			t.addPrefixSpace = pt.AddPrefixSpace || pt.PrependScheme == "always" || pt.PrependScheme == "first"
		}
	}

	t.resolveSpecialTokens()

	var err error
	t.prefixIDs, t.suffixIDs, err = t.postProcessorTemplate(tj.PostProcessor)
	if err != nil {
		return nil, err
	}
	for _, id := range t.prefixIDs {
		t.specialIDs[id] = true
	}
	for _, id := range t.suffixIDs {
		t.specialIDs[id] = true
	}
	return t, nil
}

// findPreTokenizer returns the first pre-tokenizer of the given type, searching through sequences.
func findPreTokenizer(pt *PreTokenizer, preTokenizerType string) *PreTokenizer {
	if pt.Type == preTokenizerType {
		return pt
	}
	for i := range pt.PreTokenizers {
		if found := findPreTokenizer(&pt.PreTokenizers[i], preTokenizerType); found != nil {
			return found
		}
	}
	return nil
}

// resolveSpecialTokens maps special tokens from config to their IDs.
func (t *Tokenizer) resolveSpecialTokens() {
	if t.tokenizer.Model.UnkToken != "" {
		if id, ok := t.TokenToID(t.tokenizer.Model.UnkToken); ok {
			t.unkID = id
		}
	} else if t.tokenizer.Model.UnkID != nil {
		t.unkID = *t.tokenizer.Model.UnkID
	}

	for _, at := range t.tokenizer.AddedTokens {
		if !at.Special {
			continue
		}
		switch at.Content {
		case "[UNK]", "<unk>":
			t.unkID = at.ID
		case "[PAD]", "<pad>":
			t.padID = at.ID
		case "[CLS]", "<s>":
			t.clsID = at.ID
		case "[SEP]", "</s>":
			t.sepID = at.ID
		case "[MASK]", "<mask>":
			t.maskID = at.ID
		}
	}

	if t.config == nil {
		return
	}
	// Configuration, when given, has the final word.
	for _, entry := range []struct {
		token string
		id    *int
	}{
		{t.config.UnkToken, &t.unkID},
		{t.config.PadToken, &t.padID},
		{t.config.ClsToken, &t.clsID},
		{t.config.SepToken, &t.sepID},
		{t.config.MaskToken, &t.maskID},
		{t.config.BosToken, &t.bosID},
		{t.config.EosToken, &t.eosID},
	} {
		if entry.token == "" {
			continue
		}
		if id, ok := t.TokenToID(entry.token); ok {
			*entry.id = id
			t.specialIDs[id] = true
		}
	}
}

// postProcessorTemplate returns the special tokens to prepend and append to a single sequence.
func (t *Tokenizer) postProcessorTemplate(pp *PostProcessor) (prefix, suffix []int, err error) {
	if pp == nil {
		return nil, nil, nil
	}
	switch pp.Type {
	case "TemplateProcessing":
		seenSequence := false
		for _, item := range pp.Single {
			switch {
			case item.Sequence != nil:
				seenSequence = true
			case item.SpecialToken != nil:
				ids, err := t.templateSpecialIDs(pp, item.SpecialToken.ID)
				if err != nil {
					return nil, nil, err
				}
				if seenSequence {
					suffix = append(suffix, ids...)
				} else {
					prefix = append(prefix, ids...)
				}
			}
		}
	case "BertProcessing", "RobertaProcessing":
		if pp.Cls != nil {
			prefix = []int{pp.Cls.ID}
		}
		if pp.Sep != nil {
			suffix = []int{pp.Sep.ID}
		}
	case "Sequence":
		for i := range pp.Processors {
			p, s, err := t.postProcessorTemplate(&pp.Processors[i])
			if err != nil {
				return nil, nil, err
			}
			prefix = append(prefix, p...)
			suffix = append(s, suffix...)
		}
	}
	return prefix, suffix, nil
}

func (t *Tokenizer) templateSpecialIDs(pp *PostProcessor, name string) ([]int, error) {
	if st, ok := pp.SpecialTokens[name]; ok && len(st.IDs) > 0 {
		return st.IDs, nil
	}
	if id, ok := t.TokenToID(name); ok {
		return []int{id}, nil
	}
	return nil, errors.Errorf("post-processor special token %q not found in vocabulary", name)
}

// SpecialTokenID returns the ID for a given special token.
func (t *Tokenizer) SpecialTokenID(token api.SpecialToken) (int, error) {
	switch token {
	case api.TokUnknown:
		if t.unkID >= 0 {
			return t.unkID, nil
		}
	case api.TokPad:
		if t.padID >= 0 {
			return t.padID, nil
		}
	case api.TokBeginningOfSentence:
		if t.bosID >= 0 {
			return t.bosID, nil
		}
		// Fall back to CLS for BERT-style models
		if t.clsID >= 0 {
			return t.clsID, nil
		}
	case api.TokEndOfSentence:
		if t.eosID >= 0 {
			return t.eosID, nil
		}
		// Fall back to SEP for BERT-style models
		if t.sepID >= 0 {
			return t.sepID, nil
		}
	case api.TokMask:
		if t.maskID >= 0 {
			return t.maskID, nil
		}
	case api.TokClassification:
		if t.clsID >= 0 {
			return t.clsID, nil
		}
	}
	return 0, errors.Errorf("special token %s not found", token)
}

// NumSpecialTokensToAdd returns the number of special tokens the post-processor adds to a
// single sequence. It implements api.WordTokenizer.
func (t *Tokenizer) NumSpecialTokensToAdd() int {
	return len(t.prefixIDs) + len(t.suffixIDs)
}

// IsSpecialID reports whether id is a special token. It implements api.WordTokenizer.
func (t *Tokenizer) IsSpecialID(id int) bool {
	return t.specialIDs[id]
}

// SpecialIDs returns the sorted list of special token ids.
func (t *Tokenizer) SpecialIDs() []int {
	ids := make([]int, 0, len(t.specialIDs))
	for id := range t.specialIDs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// VocabSize returns the size of the vocabulary, added tokens included.
func (t *Tokenizer) VocabSize() int {
	return len(t.idToToken)
}

// GetVocab returns the full vocabulary mapping.
func (t *Tokenizer) GetVocab() map[string]int {
	vocab := make(map[string]int, len(t.tokenizer.Model.Vocab)+len(t.tokenizer.AddedTokens))
	for k, v := range t.tokenizer.Model.Vocab {
		vocab[k] = v
	}
	for _, at := range t.tokenizer.AddedTokens {
		vocab[at.Content] = at.ID
	}
	return vocab
}

// GetTokenizerType returns the model type (WordPiece, BPE, Unigram).
func (t *Tokenizer) GetTokenizerType() string {
	return t.tokenizer.Model.Type
}

// TokenToID converts a token string to its ID.
func (t *Tokenizer) TokenToID(token string) (int, bool) {
	if id, ok := t.addedTokens[token]; ok {
		return id, true
	}
	id, ok := t.tokenizer.Model.Vocab[token]
	return id, ok
}

// IDToToken converts a token ID to its string.
func (t *Tokenizer) IDToToken(id int) (string, bool) {
	token, ok := t.idToToken[id]
	return token, ok
}

// AddedTokensList returns the list of added tokens sorted by ID.
func (t *Tokenizer) AddedTokensList() []AddedToken {
	result := make([]AddedToken, len(t.tokenizer.AddedTokens))
	copy(result, t.tokenizer.AddedTokens)
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result
}
