// Package arch maps HuggingFace transformer model classes (e.g. "BertForTokenClassification") to
// their architecture ("bert") and task ("TokenClassification"), and reads model configurations.
//
// Lookups go through a Registry, created with NewRegistry and extended with Register.
package arch

import (
	"sort"
	"strings"
)

// Registry of model classes. Once configured, it's safe for concurrent lookups.
type Registry struct {
	archOf map[string]string
}

// defaultClasses lists, per architecture, the class name prefix and the task suffixes of its
// model classes. Each architecture also has a "<prefix>Model" class, without task.
var defaultClasses = []struct {
	arch, prefix string
	tasks        []string
}{
	{"albert", "Albert", []string{"MaskedLM", "MultipleChoice", "PreTraining", "QuestionAnswering", "SequenceClassification", "TokenClassification"}},
	{"bart", "Bart", []string{"CausalLM", "ConditionalGeneration", "QuestionAnswering", "SequenceClassification"}},
	{"bert", "Bert", []string{"CausalLM", "MaskedLM", "MultipleChoice", "NextSentencePrediction", "PreTraining", "QuestionAnswering", "SequenceClassification", "TokenClassification"}},
	{"camembert", "Camembert", []string{"CausalLM", "MaskedLM", "MultipleChoice", "QuestionAnswering", "SequenceClassification", "TokenClassification"}},
	{"deberta", "Deberta", []string{"MaskedLM", "QuestionAnswering", "SequenceClassification", "TokenClassification"}},
	{"deberta_v2", "DebertaV2", []string{"MaskedLM", "MultipleChoice", "QuestionAnswering", "SequenceClassification", "TokenClassification"}},
	{"distilbert", "DistilBert", []string{"MaskedLM", "MultipleChoice", "QuestionAnswering", "SequenceClassification", "TokenClassification"}},
	{"electra", "Electra", []string{"CausalLM", "MaskedLM", "MultipleChoice", "PreTraining", "QuestionAnswering", "SequenceClassification", "TokenClassification"}},
	{"gemma", "Gemma", []string{"CausalLM", "SequenceClassification", "TokenClassification"}},
	{"gpt2", "GPT2", []string{"QuestionAnswering", "SequenceClassification", "TokenClassification"}},
	{"llama", "Llama", []string{"CausalLM", "QuestionAnswering", "SequenceClassification", "TokenClassification"}},
	{"longformer", "Longformer", []string{"MaskedLM", "MultipleChoice", "QuestionAnswering", "SequenceClassification", "TokenClassification"}},
	{"mpnet", "MPNet", []string{"MaskedLM", "MultipleChoice", "QuestionAnswering", "SequenceClassification", "TokenClassification"}},
	{"roberta", "Roberta", []string{"CausalLM", "MaskedLM", "MultipleChoice", "QuestionAnswering", "SequenceClassification", "TokenClassification"}},
	{"t5", "T5", []string{"ConditionalGeneration", "QuestionAnswering", "SequenceClassification", "TokenClassification"}},
	{"xlm_roberta", "XLMRoberta", []string{"CausalLM", "MaskedLM", "MultipleChoice", "QuestionAnswering", "SequenceClassification", "TokenClassification"}},
}

// NewRegistry returns a Registry with the common architectures registered.
func NewRegistry() *Registry {
	r := &Registry{archOf: make(map[string]string)}
	for _, def := range defaultClasses {
		classes := []string{def.prefix + "Model"}
		for _, task := range def.tasks {
			classes = append(classes, def.prefix+"For"+task)
		}
		r.Register(def.arch, classes...)
	}
	r.Register("gpt2", "GPT2LMHeadModel", "GPT2DoubleHeadsModel")
	r.Register("t5", "T5EncoderModel")
	return r
}

// Register model classes of the architecture. It returns itself, so calls can be cascaded.
func (r *Registry) Register(arch string, classNames ...string) *Registry {
	for _, name := range classNames {
		r.archOf[name] = arch
	}
	return r
}

// TaskOf returns the task of a model class name: what follows the last "With" in the name, or
// else the last "For". It returns "" for classes without task, e.g. "BertModel".
func TaskOf(className string) string {
	if idx := strings.LastIndex(className, "With"); idx > 0 {
		return className[idx+len("With"):]
	}
	if idx := strings.LastIndex(className, "For"); idx > 0 {
		return className[idx+len("For"):]
	}
	return ""
}

// Architectures returns the sorted list of registered architectures.
func (r *Registry) Architectures() []string {
	set := make(map[string]bool)
	for _, arch := range r.archOf {
		set[arch] = true
	}
	return sortedKeys(set)
}

// Tasks returns the sorted list of tasks of the architecture, or of all architectures if arch is "".
func (r *Registry) Tasks(arch string) []string {
	set := make(map[string]bool)
	for className, classArch := range r.archOf {
		if arch != "" && classArch != arch {
			continue
		}
		if task := TaskOf(className); task != "" {
			set[task] = true
		}
	}
	return sortedKeys(set)
}

// Models returns the sorted model class names, filtered by architecture and task if not empty.
func (r *Registry) Models(arch, task string) []string {
	set := make(map[string]bool)
	for className, classArch := range r.archOf {
		if arch != "" && classArch != arch {
			continue
		}
		if task != "" && TaskOf(className) != task {
			continue
		}
		set[className] = true
	}
	return sortedKeys(set)
}

// ModelArchitecture returns the architecture of the model class.
func (r *Registry) ModelArchitecture(className string) (string, bool) {
	arch, found := r.archOf[className]
	return arch, found
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// prefixSpaceModels are the model families whose byte-level tokenizers need a space before the
// first word when encoding text already split into words.
var prefixSpaceModels = []string{"gpt2", "roberta", "bart", "longformer"}

// NeedsPrefixSpace returns whether the tokenizer of the model (a HuggingFace model id, like
// "FacebookAI/roberta-base") should add a prefix space when encoding pre-split words.
func NeedsPrefixSpace(modelID string) bool {
	modelID = strings.ToLower(modelID)
	for _, name := range prefixSpaceModels {
		if strings.Contains(modelID, name) {
			return true
		}
	}
	return false
}
