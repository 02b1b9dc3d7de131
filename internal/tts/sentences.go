package tts

import (
	"strings"
	"unicode"
)

// MaxChunkChars is the OpenAI speech input limit.
const MaxChunkChars = 4096

var commonAbbreviations = map[string]struct{}{
	"mr": {}, "mrs": {}, "ms": {}, "dr": {}, "prof": {}, "sr": {}, "jr": {},
	"st": {}, "mt": {}, "vs": {}, "etc": {}, "no": {}, "vol": {}, "rev": {},
	"fig": {}, "al": {}, "inc": {}, "ltd": {}, "co": {}, "dept": {}, "est": {},
	"jan": {}, "feb": {}, "mar": {}, "apr": {}, "jun": {}, "jul": {}, "aug": {},
	"sep": {}, "sept": {}, "oct": {}, "nov": {}, "dec": {},
	"a.m": {}, "p.m": {}, "e.g": {}, "i.e": {}, "u.s": {}, "u.k": {},
}

// SplitSentences splits text into sentence-like chunks of at most maxChars
// runes, falling back to clause-level splits for oversized sentences.
// CJK terminators end a sentence without needing a following space.
func SplitSentences(text string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = MaxChunkChars
	}
	runes := []rune(normalizeText(text))
	if len(runes) == 0 {
		return nil
	}

	var segments []string
	emit := func(chunk []rune) {
		if s := strings.TrimSpace(string(chunk)); s != "" {
			segments = append(segments, splitLongSegment(s, maxChars)...)
		}
	}

	start := 0
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case isCJKTerminator(r):
			end := i + 1
			for end < len(runes) && (isCJKTerminator(runes[end]) || isSentencePunctuation(runes[end]) || isClosingPunctuation(runes[end])) {
				end++
			}
			emit(runes[start:end])
			start = end
			i = end - 1
		case isSentencePunctuation(r):
			if r == '.' && shouldSkipPeriodSplit(runes, i) {
				continue
			}
			if !isBoundary(runes, i) {
				continue
			}
			emit(runes[start : i+1])
			start = i + 1
		}
	}
	emit(runes[start:])

	return segments
}

func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	// Collapse whitespace/newlines so sentence scanning has stable boundaries.
	return strings.Join(strings.Fields(text), " ")
}

func isSentencePunctuation(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isCJKTerminator(r rune) bool {
	switch r {
	case '。', '！', '？':
		return true
	default:
		return false
	}
}

func shouldSkipPeriodSplit(text []rune, idx int) bool {
	// Ellipsis
	if (idx > 0 && text[idx-1] == '.') || (idx+1 < len(text) && text[idx+1] == '.') {
		return true
	}

	// Decimal numbers
	if idx > 0 && idx+1 < len(text) && isDigit(text[idx-1]) && isDigit(text[idx+1]) {
		return true
	}

	token := tokenBeforePeriod(text, idx)
	if token == "" {
		return false
	}

	// Initials and single-letter abbreviations (e.g., "A.")
	if tr := []rune(token); len(tr) == 1 && isAlpha(tr[0]) {
		return true
	}

	if _, ok := commonAbbreviations[strings.ToLower(token)]; ok {
		return true
	}
	return false
}

func tokenBeforePeriod(text []rune, idx int) string {
	i := idx - 1
	for i >= 0 && !isTokenBoundary(text[i]) {
		i--
	}
	return string(text[i+1 : idx])
}

func isBoundary(text []rune, punctIdx int) bool {
	i := punctIdx + 1
	for i < len(text) && isClosingPunctuation(text[i]) {
		i++
	}
	if i >= len(text) {
		return true
	}
	if !unicode.IsSpace(text[i]) {
		return false
	}
	for i < len(text) && unicode.IsSpace(text[i]) {
		i++
	}
	if i >= len(text) {
		return true
	}
	return isLikelySentenceStart(text, i)
}

func isLikelySentenceStart(text []rune, idx int) bool {
	if idx >= len(text) {
		return false
	}
	startsSentence := func(r rune) bool {
		return unicode.IsUpper(r) || unicode.IsDigit(r) || isCJK(r)
	}
	if startsSentence(text[idx]) {
		return true
	}
	if isOpeningQuoteOrBracket(text[idx]) {
		j := idx + 1
		for j < len(text) && isOpeningQuoteOrBracket(text[j]) {
			j++
		}
		if j < len(text) {
			return startsSentence(text[j])
		}
	}
	return false
}

func isCJK(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul)
}

func splitLongSegment(segment string, maxChars int) []string {
	segment = strings.TrimSpace(segment)
	if segment == "" {
		return nil
	}
	runes := []rune(segment)
	if len(runes) <= maxChars {
		return []string{segment}
	}

	var out []string
	start := 0
	for start < len(runes) {
		remaining := len(runes) - start
		if remaining <= maxChars {
			part := strings.TrimSpace(string(runes[start:]))
			if part != "" {
				out = append(out, part)
			}
			break
		}

		cut := start + maxChars
		if boundary := findClauseBoundary(runes, start+maxChars/2, cut); boundary > start {
			cut = boundary + 1
		} else if boundary := findClauseBoundaryForward(runes, cut, min(start+maxChars+maxChars/4, len(runes))); boundary > start && boundary+1-start <= maxChars {
			cut = boundary + 1
		}

		part := strings.TrimSpace(string(runes[start:cut]))
		if part != "" {
			out = append(out, part)
		}
		start = cut
	}
	return out
}

func findClauseBoundary(runes []rune, from, to int) int {
	if to > len(runes) {
		to = len(runes)
	}
	for i := to - 1; i >= from && i >= 0; i-- {
		if isClauseBoundaryRune(runes[i]) {
			return i
		}
	}
	return -1
}

func findClauseBoundaryForward(runes []rune, from, to int) int {
	if from < 0 {
		from = 0
	}
	if to > len(runes) {
		to = len(runes)
	}
	for i := from; i < to; i++ {
		if isClauseBoundaryRune(runes[i]) {
			return i
		}
	}
	return -1
}

func isClauseBoundaryRune(r rune) bool {
	switch r {
	case ',', ';', ':', '—', '-', '，', '；', '：', '、':
		return true
	default:
		return false
	}
}

func isTokenBoundary(r rune) bool {
	return unicode.IsSpace(r) || isOpeningQuoteOrBracket(r) || isClosingPunctuation(r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isAlpha(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isClosingPunctuation(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '}', '”', '’', '」', '』', '）', '】', '》':
		return true
	default:
		return false
	}
}

func isOpeningQuoteOrBracket(r rune) bool {
	switch r {
	case '"', '\'', '(', '[', '{', '“', '‘', '「', '『', '（', '【', '《':
		return true
	default:
		return false
	}
}
