package index

import (
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
)

const (
	minCorrectableLen = 3
	maxFrequencyBonus = 20
	lengthPenalty     = 2
)

// Correction describes a rewritten query.
type Correction struct {
	Original  string
	Corrected string
}

// Corrector rewrites query tokens that match nothing into the closest
// known vocabulary token.
type Corrector struct {
	vocab map[string]int
	words []string
}

// NewCorrector builds a corrector over the merged vocabularies.
func NewCorrector(vocabs ...map[string]int) *Corrector {
	merged := make(map[string]int)
	for _, v := range vocabs {
		for tok, n := range v {
			merged[tok] += n
		}
	}
	words := make([]string, 0, len(merged))
	for tok := range merged {
		words = append(words, tok)
	}
	sort.Strings(words)
	return &Corrector{vocab: merged, words: words}
}

// CorrectToken returns the best replacement for tok, or false when there is
// no convincing candidate. Short tokens are never corrected.
func (c *Corrector) CorrectToken(tok string) (string, bool) {
	if len([]rune(tok)) < minCorrectableLen || len(c.words) == 0 {
		return tok, false
	}
	if _, ok := c.vocab[tok]; ok {
		return tok, false
	}

	type candidate struct {
		word  string
		score int
	}
	var candidates []candidate
	for _, m := range fuzzy.Find(tok, c.words) {
		if m.Str[0] != tok[0] {
			continue
		}
		score := m.Score + min(c.vocab[m.Str]*2, maxFrequencyBonus)
		score -= abs(len(m.Str)-len(tok)) * lengthPenalty
		candidates = append(candidates, candidate{word: m.Str, score: score})
	}
	if len(candidates) == 0 {
		return tok, false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].word < candidates[j].word
	})
	return candidates[0].word, true
}

// Correct rewrites each token of query for which known returns false.
// It reports false when nothing changed.
func (c *Corrector) Correct(query string, known func(string) bool) (Correction, bool) {
	tokens := Tokenize(query)
	changed := false
	for i, tok := range tokens {
		if known(tok) {
			continue
		}
		if fixed, ok := c.CorrectToken(tok); ok {
			tokens[i] = fixed
			changed = true
		}
	}
	if !changed {
		return Correction{Original: query, Corrected: query}, false
	}
	return Correction{Original: query, Corrected: strings.Join(tokens, " ")}, true
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
