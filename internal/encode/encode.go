// Package encode renders (snapshot, engagement) emissions into prompt and
// completion strings using a stable user→index vocabulary.
package encode

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/MikeSquared-Agency/pythia/internal/normalize"
	"github.com/MikeSquared-Agency/pythia/internal/window"
)

// Fixed markers of the prompt/completion format. The fine-tuned model is
// trained against these exact strings, so they never change between runs.
const (
	PromptStart = "start -> "
	PromptEnd   = " \n\n###\n\n"
	eventSep    = "\n"

	CompletionNone = " none"
	CompletionEnd  = " END"
)

// Example is one serialized training record.
type Example struct {
	Prompt     string `json:"prompt"`
	Completion string `json:"completion"`
}

// UnknownUserError reports an engaged user absent from the vocabulary. It
// indicates the vocabulary was built from a different corpus than the
// examples and is fatal for the batch.
type UnknownUserError struct {
	User string
}

func (e *UnknownUserError) Error() string {
	return fmt.Sprintf("user %q not in vocabulary", e.User)
}

// Prompt renders a snapshot as "<author> --> <text>" lines between the fixed
// start and end markers. Snapshot order is chronological and preserved.
func Prompt(snapshot []normalize.Event) string {
	var sb strings.Builder
	sb.WriteString(PromptStart)
	for i, ev := range snapshot {
		if i > 0 {
			sb.WriteString(eventSep)
		}
		sb.WriteString(ev.Author)
		sb.WriteString(" --> ")
		sb.WriteString(ev.Text)
	}
	sb.WriteString(PromptEnd)
	return sb.String()
}

// Vocabulary is a bijection between user IDs and small integer indices,
// assigned in first-seen order so identical corpora yield identical files.
type Vocabulary struct {
	users []string
	index map[string]int
}

// NewVocabulary restores a vocabulary from its persisted user list.
func NewVocabulary(users []string) *Vocabulary {
	v := &Vocabulary{index: make(map[string]int, len(users))}
	for _, u := range users {
		v.add(u)
	}
	return v
}

// BuildVocabulary collects every engaged user across all emissions, in
// emission order, assigning indices first-seen.
func BuildVocabulary(emissions []window.Emission) *Vocabulary {
	v := &Vocabulary{index: make(map[string]int)}
	for _, em := range emissions {
		for _, u := range em.Engaged {
			v.add(u)
		}
	}
	return v
}

func (v *Vocabulary) add(user string) {
	if _, ok := v.index[user]; ok {
		return
	}
	v.index[user] = len(v.users)
	v.users = append(v.users, user)
}

// Users returns the user IDs in index order. Index is implied by position.
func (v *Vocabulary) Users() []string {
	out := make([]string, len(v.users))
	copy(out, v.users)
	return out
}

func (v *Vocabulary) Len() int { return len(v.users) }

// Completion encodes an engagement set as the sorted indices of its users,
// or the sentinel when nobody engaged.
func (v *Vocabulary) Completion(engaged []string) (string, error) {
	if len(engaged) == 0 {
		return CompletionNone, nil
	}
	indices := make([]int, 0, len(engaged))
	for _, u := range engaged {
		idx, ok := v.index[u]
		if !ok {
			return "", &UnknownUserError{User: u}
		}
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	var sb strings.Builder
	for _, idx := range indices {
		sb.WriteString(" ")
		sb.WriteString(strconv.Itoa(idx))
	}
	sb.WriteString(CompletionEnd)
	return sb.String(), nil
}

// Decode inverts Completion, recovering the engagement set from a completion
// string. Used for round-trip verification of persisted datasets.
func (v *Vocabulary) Decode(completion string) ([]string, error) {
	if completion == CompletionNone {
		return nil, nil
	}
	body, ok := strings.CutSuffix(completion, CompletionEnd)
	if !ok {
		return nil, fmt.Errorf("completion missing end marker: %q", completion)
	}
	var users []string
	for _, field := range strings.Fields(body) {
		idx, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("bad completion index %q: %w", field, err)
		}
		if idx < 0 || idx >= len(v.users) {
			return nil, fmt.Errorf("completion index %d out of range (vocabulary size %d)", idx, len(v.users))
		}
		users = append(users, v.users[idx])
	}
	return users, nil
}

// EncodeAll builds the vocabulary from the full emission corpus and renders
// one example per emission. The vocabulary is built first so encoding can
// never hit an unknown user.
func EncodeAll(emissions []window.Emission) ([]Example, *Vocabulary, error) {
	vocab := BuildVocabulary(emissions)
	examples := make([]Example, 0, len(emissions))
	for _, em := range emissions {
		completion, err := vocab.Completion(em.Engaged)
		if err != nil {
			return nil, nil, fmt.Errorf("encode example at %s: %w", em.At.Format("2006-01-02T15:04:05.000Z07:00"), err)
		}
		examples = append(examples, Example{
			Prompt:     Prompt(em.Snapshot),
			Completion: completion,
		})
	}
	return examples, vocab, nil
}
