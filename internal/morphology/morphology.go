// Package morphology reduces English and Russian words to base forms and
// recognizes function words that carry no search value.
package morphology

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"
	"github.com/kljensen/snowball/russian"
)

// PartOfSpeech is the coarse word class reported by Classify.
type PartOfSpeech string

// Word classes. Everything except Content is a function word.
const (
	Content      PartOfSpeech = "content"
	Conjunction  PartOfSpeech = "conjunction"
	Preposition  PartOfSpeech = "preposition"
	Particle     PartOfSpeech = "particle"
	Pronoun      PartOfSpeech = "pronoun"
	Interjection PartOfSpeech = "interjection"
	Article      PartOfSpeech = "article"
)

// Analyzer is the contract consumed by the indexer and searcher.
type Analyzer interface {
	// Normalize returns the base form of word, or false when the word
	// belongs to no supported vocabulary.
	Normalize(word string) (string, bool)
	// Classify returns the word class, or false when unrecognized.
	Classify(word string) (PartOfSpeech, bool)
}

type vocabulary struct {
	name          string
	accepts       func(r rune) bool
	fold          func(word string) string
	stem          func(word string) string
	functionWords map[string]PartOfSpeech
}

// Service implements Analyzer over a fixed set of vocabularies.
// It holds only read-only state after New and is safe for concurrent use.
type Service struct {
	vocabularies []vocabulary
}

// New builds the English and Russian analyzers.
func New() *Service {
	return &Service{
		vocabularies: []vocabulary{
			{
				name:          "english",
				accepts:       isLatin,
				fold:          func(w string) string { return w },
				stem:          func(w string) string { return english.Stem(w, true) },
				functionWords: englishFunctionWords,
			},
			{
				name:          "russian",
				accepts:       isCyrillic,
				fold:          func(w string) string { return strings.ReplaceAll(w, "ё", "е") },
				stem:          func(w string) string { return russian.Stem(w, true) },
				functionWords: russianFunctionWords,
			},
		},
	}
}

// Normalize implements Analyzer.
func (s *Service) Normalize(word string) (string, bool) {
	voc, w, ok := s.lookup(word)
	if !ok {
		return "", false
	}
	stem := voc.stem(w)
	if stem == "" {
		return "", false
	}
	return stem, true
}

// Classify implements Analyzer.
func (s *Service) Classify(word string) (PartOfSpeech, bool) {
	voc, w, ok := s.lookup(word)
	if !ok {
		return "", false
	}
	if pos, found := voc.functionWords[w]; found {
		return pos, true
	}
	return Content, true
}

func (s *Service) lookup(word string) (vocabulary, string, bool) {
	w := strings.ToLower(strings.TrimSpace(word))
	if w == "" {
		return vocabulary{}, "", false
	}
	for _, voc := range s.vocabularies {
		if allRunes(w, voc.accepts) {
			return voc, voc.fold(w), true
		}
	}
	return vocabulary{}, "", false
}

// IsFunctionWord reports whether pos is excluded from indexing.
func IsFunctionWord(pos PartOfSpeech) bool {
	return pos != Content
}

// Tokenize splits text into letter runs, preserving case.
func Tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool { return !unicode.IsLetter(r) })
}

// Lemma returns the indexable base form of a single token.
func Lemma(a Analyzer, token string) (string, bool) {
	if len([]rune(token)) < 2 {
		return "", false
	}
	pos, ok := a.Classify(token)
	if !ok || IsFunctionWord(pos) {
		return "", false
	}
	return a.Normalize(token)
}

// CountLemmas maps each indexable lemma in text to its occurrence count.
func CountLemmas(a Analyzer, text string) map[string]int {
	counts := make(map[string]int)
	for _, token := range Tokenize(text) {
		if lemma, ok := Lemma(a, token); ok {
			counts[lemma]++
		}
	}
	return counts
}

func allRunes(s string, accept func(rune) bool) bool {
	for _, r := range s {
		if !accept(r) {
			return false
		}
	}
	return true
}

func isLatin(r rune) bool {
	return r >= 'a' && r <= 'z'
}

func isCyrillic(r rune) bool {
	return unicode.Is(unicode.Cyrillic, r)
}
