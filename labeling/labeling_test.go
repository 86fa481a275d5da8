package labeling

import (
	"testing"

	"github.com/gomlx/hftasks/tokenizers/api"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ign = DefaultIgnoreID

func mustVocab(t *testing.T, names ...string) *Vocab {
	v, err := NewVocab(names)
	require.NoError(t, err)
	return v
}

func TestAlign(t *testing.T) {
	nerVocab := mustVocab(t, "O", "B-PER", "I-PER", "B-LOC")
	testCases := []struct {
		name     string
		strategy Strategy
		wordIDs  []int
		labels   []Label
		vocab    *Vocab
		want     []int
	}{
		{"first/ids", OnlyFirstToken, []int{api.NoWord, 0, 0, 1, api.NoWord}, IDs(3, 5), nil,
			[]int{ign, 3, ign, 5, ign}},
		{"first/names", OnlyFirstToken, []int{api.NoWord, 0, 1, 1, 1, api.NoWord}, Names("B-PER", "O"), nerVocab,
			[]int{ign, 1, 0, ign, ign, ign}},
		{"first/sentinel-resets-word", OnlyFirstToken, []int{0, api.NoWord, 0}, IDs(2), nil,
			[]int{2, ign, 2}},
		{"first/consecutive-sentinels", OnlyFirstToken, []int{api.NoWord, api.NoWord}, IDs(), nil,
			[]int{ign, ign}},
		{"same/names", SameLabel, []int{api.NoWord, 0, 0, 1, api.NoWord}, Names("B-PER", "O"), nerVocab,
			[]int{ign, 1, 1, 0, ign}},
		{"same/ids", SameLabel, []int{0, 0, 0}, IDs(7), nil,
			[]int{7, 7, 7}},
		{"bi/names", BeginInside, []int{api.NoWord, 0, 0, 0, 1, 1, api.NoWord}, Names("B-PER", "O"), nerVocab,
			[]int{ign, 1, 2, 2, 0, ign, ign}},
		{"bi/inside-label", BeginInside, []int{0, 0, 1, 1}, Names("B-PER", "I-PER"), nerVocab,
			[]int{1, 2, 2, 2}},
		{"bi/missing-inside-variant", BeginInside, []int{0, 0}, Names("B-LOC"), nerVocab,
			[]int{3, ign}},
		{"bi/ids-with-vocab", BeginInside, []int{0, 0}, IDs(1), nerVocab,
			[]int{1, 2}},
		{"bi/ids-without-vocab", BeginInside, []int{0, 0}, IDs(1), nil,
			[]int{1, ign}},
		{"bi/short-name", BeginInside, []int{0, 0}, Names("X"), mustVocab(t, "X", "I-"),
			[]int{0, ign}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NewAligner(tc.strategy).Align(tc.wordIDs, tc.labels, tc.vocab)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Len(t, got, len(tc.wordIDs))
		})
	}
}

func TestAlignEmpty(t *testing.T) {
	for _, strategy := range []Strategy{OnlyFirstToken, SameLabel, BeginInside} {
		got, err := NewAligner(strategy).Align(nil, nil, nil)
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	}
}

func TestAlignCustomIgnoreID(t *testing.T) {
	aligner := Aligner{Strategy: OnlyFirstToken, IgnoreID: -1}
	got, err := aligner.Align([]int{api.NoWord, 0, 0}, IDs(4), nil)
	require.NoError(t, err)
	assert.Equal(t, []int{-1, 4, -1}, got)
}

func TestAlignErrors(t *testing.T) {
	vocab := mustVocab(t, "O", "B-PER", "I-PER")
	aligner := NewAligner(SameLabel)

	_, err := aligner.Align([]int{0}, Names("B-ORG"), vocab)
	assert.True(t, errors.Is(err, ErrUnknownLabel), "got %v", err)

	_, err = aligner.Align([]int{0}, Names("O"), nil)
	assert.True(t, errors.Is(err, ErrUnknownLabel), "got %v", err)

	_, err = aligner.Align([]int{0}, IDs(3), vocab)
	assert.True(t, errors.Is(err, ErrUnknownLabel), "got %v", err)

	_, err = aligner.Align([]int{0, 1, 2}, IDs(0, 0), nil)
	assert.True(t, errors.Is(err, ErrWordIndexOutOfRange), "got %v", err)

	_, err = aligner.Align([]int{-2}, IDs(0), nil)
	assert.True(t, errors.Is(err, ErrWordIndexOutOfRange), "got %v", err)

	_, err = Aligner{Strategy: Strategy(7)}.Align([]int{0}, IDs(0), nil)
	assert.True(t, errors.Is(err, ErrUnknownStrategy), "got %v", err)
}

func TestAlignDoesNotChangeVocab(t *testing.T) {
	vocab := mustVocab(t, "O", "B-PER", "I-PER")
	_, err := NewAligner(BeginInside).Align([]int{0, 0, 1}, Names("B-PER", "O"), vocab)
	require.NoError(t, err)
	assert.Equal(t, []string{"O", "B-PER", "I-PER"}, vocab.Names())
}

func TestParseStrategy(t *testing.T) {
	for name, want := range map[string]Strategy{
		"first":            OnlyFirstToken,
		"OnlyFirstToken":   OnlyFirstToken,
		"only_first_token": OnlyFirstToken,
		"same":             SameLabel,
		"same-label":       SameLabel,
		"BI":               BeginInside,
		"BeginInside":      BeginInside,
	} {
		got, err := ParseStrategy(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
	_, err := ParseStrategy("last")
	assert.True(t, errors.Is(err, ErrUnknownStrategy))
	assert.Equal(t, "SameLabel", SameLabel.String())
	assert.Equal(t, "Strategy(9)", Strategy(9).String())
}

func TestVocab(t *testing.T) {
	vocab := mustVocab(t, "O", "B-PER", "I-PER")
	assert.Equal(t, 3, vocab.Len())
	idx, found := vocab.Index("I-PER")
	assert.True(t, found)
	assert.Equal(t, 2, idx)
	_, found = vocab.Index("B-LOC")
	assert.False(t, found)
	name, found := vocab.Name(1)
	assert.True(t, found)
	assert.Equal(t, "B-PER", name)
	_, found = vocab.Name(3)
	assert.False(t, found)
	_, found = vocab.Name(-1)
	assert.False(t, found)

	ids, err := vocab.Encode([]string{"B-PER", "I-PER", "O"})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 0}, ids)
	_, err = vocab.Encode([]string{"B-MISC"})
	assert.True(t, errors.Is(err, ErrUnknownLabel))

	names, err := vocab.Decode([]int{ign, 1, 2, ign, 0}, ign)
	require.NoError(t, err)
	assert.Equal(t, []string{"B-PER", "I-PER", "O"}, names)
	_, err = vocab.Decode([]int{5}, ign)
	assert.True(t, errors.Is(err, ErrUnknownLabel))

	_, err = NewVocab([]string{"O", "B-PER", "O"})
	assert.True(t, errors.Is(err, ErrDuplicateLabel))
}

func TestVocabFromSequences(t *testing.T) {
	vocab := VocabFromSequences([][]string{
		{"O", "B-PER", "I-PER", "O"},
		{"B-LOC", "O"},
		nil,
	})
	assert.Equal(t, []string{"B-LOC", "B-PER", "I-PER", "O"}, vocab.Names())
	assert.Equal(t, 0, VocabFromSequences(nil).Len())
}

// fakeTokenizer has token i named tokens[i], and id 0 as its only special token.
type fakeTokenizer struct {
	tokens []string
}

func (f fakeTokenizer) Encode(string) []int                          { return nil }
func (f fakeTokenizer) Decode([]int) string                          { return "" }
func (f fakeTokenizer) SpecialTokenID(api.SpecialToken) (int, error) { return 0, nil }
func (f fakeTokenizer) EncodeWords([]string, api.EncodeOptions) api.WordEncoding {
	return api.WordEncoding{}
}
func (f fakeTokenizer) NumSpecialTokensToAdd() int        { return 1 }
func (f fakeTokenizer) WithSpecialTokens(ids []int) []int { return append([]int{0}, ids...) }
func (f fakeTokenizer) IsSpecialID(id int) bool           { return id == 0 }
func (f fakeTokenizer) IDToToken(id int) (string, bool) {
	if id < 0 || id >= len(f.tokens) {
		return "", false
	}
	return f.tokens[id], true
}

func TestTokenLabels(t *testing.T) {
	tok := fakeTokenizer{tokens: []string{"<s>", "ĠWay", "de", "Ġloves", "ĠHug", "ging"}}
	vocab := mustVocab(t, "O", "B-PER", "I-PER", "B-ORG")
	got, err := TokenLabels(tok, []int{0, 1, 2, 3, 4, 5}, []int{ign, 1, ign, 0, 3, ign}, vocab, ign, DefaultIgnoreToken)
	require.NoError(t, err)
	assert.Equal(t, []TokenLabel{
		{"ĠWay", "B-PER"}, {"de", DefaultIgnoreToken}, {"Ġloves", "O"}, {"ĠHug", "B-ORG"}, {"ging", DefaultIgnoreToken},
	}, got)

	_, err = TokenLabels(tok, []int{1, 2}, []int{1}, vocab, ign, DefaultIgnoreToken)
	assert.Error(t, err)
	_, err = TokenLabels(tok, []int{9}, []int{1}, vocab, ign, DefaultIgnoreToken)
	assert.Error(t, err)
	_, err = TokenLabels(tok, []int{1}, []int{9}, vocab, ign, DefaultIgnoreToken)
	assert.True(t, errors.Is(err, ErrUnknownLabel))
}

func TestWordLabels(t *testing.T) {
	vocab := mustVocab(t, "O", "B-PER", "I-PER")
	words := []string{"Wayde", "Gilliam", "loves", "tea"}
	wordIDs := []int{api.NoWord, 0, 0, 1, 1, 2, api.NoWord}
	labels, err := NewAligner(BeginInside).Align(wordIDs, Names("B-PER", "I-PER", "O", "O"), vocab)
	require.NoError(t, err)

	got, err := WordLabels(words, wordIDs, labels, vocab, ign)
	require.NoError(t, err)
	// "tea" was truncated away.
	assert.Equal(t, []WordLabel{{"Wayde", "B-PER"}, {"Gilliam", "I-PER"}, {"loves", "O"}}, got)

	_, err = WordLabels(words[:1], wordIDs, labels, vocab, ign)
	assert.True(t, errors.Is(err, ErrWordIndexOutOfRange))
	_, err = WordLabels(words, wordIDs, labels[:2], vocab, ign)
	assert.Error(t, err)
}

func TestLabelsWithoutVocab(t *testing.T) {
	wordIDs := []int{api.NoWord, 0, 1, api.NoWord}
	labels, err := NewAligner(OnlyFirstToken).Align(wordIDs, IDs(0, 1), nil)
	require.NoError(t, err)

	words, err := WordLabels([]string{"Wayde", "loves"}, wordIDs, labels, nil, ign)
	require.NoError(t, err)
	assert.Equal(t, []WordLabel{{"Wayde", "0"}, {"loves", "1"}}, words)

	tok := fakeTokenizer{tokens: []string{"<s>", "ĠWay", "de", "Ġloves"}}
	tokens, err := TokenLabels(tok, []int{0, 1, 2, 3}, []int{ign, 2, ign, 0}, nil, ign, DefaultIgnoreToken)
	require.NoError(t, err)
	assert.Equal(t, []TokenLabel{{"ĠWay", "2"}, {"de", DefaultIgnoreToken}, {"Ġloves", "0"}}, tokens)

	_, err = WordLabels([]string{"Wayde"}, []int{0}, []int{-5}, nil, ign)
	assert.True(t, errors.Is(err, ErrUnknownLabel))

	var vocab *Vocab
	assert.Equal(t, 0, vocab.Len())
	assert.Nil(t, vocab.Names())
	_, found := vocab.Index("O")
	assert.False(t, found)
	_, found = vocab.Name(0)
	assert.False(t, found)
	_, err = vocab.Encode([]string{"O"})
	assert.True(t, errors.Is(err, ErrUnknownLabel))
}
