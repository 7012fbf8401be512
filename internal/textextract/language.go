package textextract

import (
	"sort"
	"strings"
	"unicode"
)

/*
DetectLanguage is the stdlib-only fallback used when a page carries no
<html lang> attribute. There is no language-detection library anywhere
in the example pack (the closest candidate, abadojack/whatlanggo, is not
a dependency of any repo in it), so this is one of the few places the
core intentionally stays on the standard library - see DESIGN.md.

The method is a small trigram-overlap comparison: take the most frequent
trigrams of the input text and count how many of them appear in each of
a handful of hard-coded reference profiles (rank order is not compared) for the languages this
pipeline is expected to see. It is deliberately coarse - good enough to
route a document to an approximately-correct analyzer, not a general
purpose classifier.
*/

var referenceProfiles = map[string][]string{
	// Ranked most-to-least frequent trigrams, trimmed to a short list.
	"en": {" th", "the", "he ", " an", "ing", "and", "ion", " of", "of ", "tio", " to", "ed ", "is ", " in", "er "},
	"es": {" de", "de ", " la", " el", "ción", "ent", "ión", " en", " qu", "que", "ar ", " co", "ado", "la ", " un"},
	"fr": {" de", " la", "ent", "les", "de ", " et", "ion", " le", "es ", " du", "que", " un", "tio", "nt ", "our"},
	"de": {"en ", "der", " de", "ich", "sch", "die", " di", "und", "ten", " un", "che", "ein", "cht", " ge", "in "},
	"pt": {" de", "de ", "ão ", " a ", "ent", " co", " qu", "que", "ção", " da", " do", "os ", "ar ", " pa", "com"},
}

// DetectLanguage returns a best-effort BCP-47-ish language tag (just the
// primary subtag: "en", "es", ...) for text, or "" if text is too short
// to classify reliably.
func DetectLanguage(text string) string {
	trigrams := topTrigrams(text, 15)
	if len(trigrams) == 0 {
		return ""
	}

	bestLang := ""
	bestScore := -1
	for lang, profile := range referenceProfiles {
		score := rankSimilarity(trigrams, profile)
		if score > bestScore {
			bestScore = score
			bestLang = lang
		}
	}
	return bestLang
}

// topTrigrams returns the n most frequent lowercase trigrams in text,
// most frequent first.
func topTrigrams(text string, n int) []string {
	text = strings.ToLower(text)
	var b strings.Builder
	prevSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if prevSpace {
				continue
			}
			prevSpace = true
			b.WriteRune(' ')
			continue
		}
		if unicode.IsLetter(r) {
			prevSpace = false
			b.WriteRune(r)
		}
	}
	norm := strings.TrimSpace(b.String())
	if len(norm) < 3 {
		return nil
	}

	counts := make(map[string]int)
	runes := []rune(norm)
	for i := 0; i+3 <= len(runes); i++ {
		counts[string(runes[i:i+3])]++
	}

	type kv struct {
		k string
		v int
	}
	all := make([]kv, 0, len(counts))
	for k, v := range counts {
		all = append(all, kv{k, v})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].v != all[j].v {
			return all[i].v > all[j].v
		}
		return all[i].k < all[j].k
	})

	if n > len(all) {
		n = len(all)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = all[i].k
	}
	return out
}

// rankSimilarity counts how many of sample's trigrams also appear
// anywhere in profile - a cheap overlap score, higher is more similar.
func rankSimilarity(sample, profile []string) int {
	inProfile := make(map[string]struct{}, len(profile))
	for _, t := range profile {
		inProfile[t] = struct{}{}
	}
	score := 0
	for _, t := range sample {
		if _, ok := inProfile[t]; ok {
			score++
		}
	}
	return score
}
