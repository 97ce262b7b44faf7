package search

import (
	"strings"
	"unicode"

	xhtml "golang.org/x/net/html"

	"github.com/ozemskikh/SearchEngine/internal/morphology"
)

const (
	windowBefore = 80
	windowAfter  = 160
	fragmentSep  = " ... "
)

var skippedElements = map[string]struct{}{
	"script":   {},
	"style":    {},
	"noscript": {},
}

// textSegments returns the whitespace-collapsed text nodes of an HTML
// document in document order.
func textSegments(content string) []string {
	doc, err := xhtml.Parse(strings.NewReader(content))
	if err != nil {
		return nil
	}
	var segments []string
	var walk func(n *xhtml.Node)
	walk = func(n *xhtml.Node) {
		if n.Type == xhtml.ElementNode {
			if _, skip := skippedElements[n.Data]; skip {
				return
			}
		}
		if n.Type == xhtml.TextNode {
			if text := strings.Join(strings.Fields(n.Data), " "); text != "" {
				segments = append(segments, text)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return segments
}

type token struct {
	text    string
	start   int
	end     int
	word    bool
	matched bool
}

// tokenize splits s into alternating word and separator tokens with rune
// offsets.
func tokenize(s string) []token {
	var tokens []token
	runes := []rune(s)
	for i := 0; i < len(runes); {
		j := i
		word := unicode.IsLetter(runes[i])
		for j < len(runes) && unicode.IsLetter(runes[j]) == word {
			j++
		}
		tokens = append(tokens, token{text: string(runes[i:j]), start: i, end: j, word: word})
		i = j
	}
	return tokens
}

// buildSnippet highlights words whose lemma is in lemmas. Each text node with
// a match yields one fragment cut around its first match; at most
// maxFragments fragments are kept. An empty result means nothing matched.
func buildSnippet(a morphology.Analyzer, content string, lemmas map[string]struct{}, maxFragments int) string {
	var fragments []string
	for _, segment := range textSegments(content) {
		if len(fragments) >= maxFragments {
			break
		}
		if fragment, ok := highlight(a, segment, lemmas); ok {
			fragments = append(fragments, fragment)
		}
	}
	return strings.Join(fragments, fragmentSep)
}

func highlight(a morphology.Analyzer, segment string, lemmas map[string]struct{}) (string, bool) {
	tokens := tokenize(segment)
	first := -1
	for i := range tokens {
		if !tokens[i].word {
			continue
		}
		lemma, ok := morphology.Lemma(a, tokens[i].text)
		if !ok {
			continue
		}
		if _, hit := lemmas[lemma]; hit {
			tokens[i].matched = true
			if first < 0 {
				first = i
			}
		}
	}
	if first < 0 {
		return "", false
	}

	from := tokens[first].start - windowBefore
	to := tokens[first].end + windowAfter
	var b strings.Builder
	for _, tok := range tokens {
		if tok.start < from || tok.end > to {
			continue
		}
		if tok.matched {
			b.WriteString("<b>")
			b.WriteString(xhtml.EscapeString(tok.text))
			b.WriteString("</b>")
			continue
		}
		b.WriteString(xhtml.EscapeString(tok.text))
	}
	return strings.TrimSpace(b.String()), true
}
