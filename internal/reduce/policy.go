package reduce

import (
	"unicode"
	"unicode/utf8"
)

// stopwords are common function words that carry no topic.
var stopwords = []string{
	"的", "了", "在", "是", "有", "和", "就", "不", "到", "说",
	"要", "去", "你", "会", "着", "没有", "看", "好", "还", "把",
	"那", "这", "来", "很", "从", "被", "让", "给", "对", "向",
	"以", "所", "为", "而", "也", "都", "能", "下", "自己", "什么",
	"怎么", "可以", "如果", "因为", "所以", "但是", "然后", "现在", "已经", "一个",
	"这个", "那个", "我们", "他们", "她们", "它们",
}

// Policy is the filtering and retention table applied after segmentation.
type Policy struct {
	// MinRunes is the shortest token kept, measured in characters.
	MinRunes  int
	Stopwords map[string]struct{}
	// DistinctThreshold is the number of distinct tokens above which the
	// corpus gets pruned down to tokens seen at least MinCount times.
	DistinctThreshold int
	MinCount          int
}

func DefaultPolicy() Policy {
	set := make(map[string]struct{}, len(stopwords))
	for _, w := range stopwords {
		set[w] = struct{}{}
	}
	return Policy{
		MinRunes:          2,
		Stopwords:         set,
		DistinctThreshold: 100,
		MinCount:          2,
	}
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.Is(unicode.Mn, r)
}

func isNumeric(token string) bool {
	for _, r := range token {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return token != ""
}

// isPunctuation reports whether token has no word characters at all.
func isPunctuation(token string) bool {
	for _, r := range token {
		if isWordRune(r) {
			return false
		}
	}
	return true
}

// Keep reports whether a trimmed token survives filtering.
func (p Policy) Keep(token string) bool {
	if utf8.RuneCountInString(token) < p.MinRunes {
		return false
	}
	if isNumeric(token) || isPunctuation(token) {
		return false
	}
	_, stop := p.Stopwords[token]
	return !stop
}

// Frequencies counts every token.
func Frequencies(tokens []string) map[string]int {
	freq := make(map[string]int, len(tokens))
	for _, t := range tokens {
		freq[t]++
	}
	return freq
}

// Retain applies the retention rule. at or below DistinctThreshold distinct
// tokens everything is kept as is. above it, each token occurring at least
// MinCount times is kept once, in order of first occurrence.
func (p Policy) Retain(tokens []string, freq map[string]int) (retained []string, pruned bool) {
	if len(freq) <= p.DistinctThreshold {
		return tokens, false
	}

	retained = []string{}
	seen := make(map[string]struct{}, len(freq))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if freq[t] >= p.MinCount {
			retained = append(retained, t)
		}
	}
	return retained, true
}
