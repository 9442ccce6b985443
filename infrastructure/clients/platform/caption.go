package platform

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// NormalizeHashtags trims every tag, ensures a single leading '#', drops empties
// and removes case-insensitive duplicates while preserving first-seen order.
// Applying it twice yields the same result.
func NormalizeHashtags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimLeft(strings.TrimSpace(t), "#")
		t = strings.Join(strings.Fields(t), "")
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, "#"+t)
	}
	return out
}

// JoinHashtags normalizes tags and joins them with single spaces.
func JoinHashtags(tags []string) string {
	return strings.Join(NormalizeHashtags(tags), " ")
}

// NormalizeMentions ensures a single leading '@' on every handle.
func NormalizeMentions(mentions []string) []string {
	out := make([]string, 0, len(mentions))
	for _, m := range mentions {
		m = strings.TrimLeft(strings.TrimSpace(m), "@")
		if m == "" {
			continue
		}
		out = append(out, "@"+m)
	}
	return out
}

// ExtractHashtags returns the lower-cased #tags found in text, in order of first appearance.
func ExtractHashtags(text string) []string {
	var out []string
	seen := map[string]struct{}{}
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		if runes[i] != '#' {
			continue
		}
		j := i + 1
		for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_') {
			j++
		}
		if j > i+1 {
			tag := strings.ToLower(string(runes[i:j]))
			if _, ok := seen[tag]; !ok {
				seen[tag] = struct{}{}
				out = append(out, tag)
			}
		}
		i = j - 1
	}
	return out
}

// RankTags counts tag occurrences across texts and returns the top n, most
// frequent first. Ties keep alphabetical order so results are stable.
func RankTags(texts []string, n int) []string {
	counts := map[string]int{}
	for _, t := range texts {
		for _, tag := range ExtractHashtags(t) {
			counts[tag]++
		}
	}
	tags := make([]string, 0, len(counts))
	for tag := range counts {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool {
		if counts[tags[i]] != counts[tags[j]] {
			return counts[tags[i]] > counts[tags[j]]
		}
		return tags[i] < tags[j]
	})
	if n > 0 && len(tags) > n {
		tags = tags[:n]
	}
	return tags
}

// TruncateRunes cuts s to at most limit runes. When it has to cut, the result
// ends with "..." and is exactly limit runes long.
func TruncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	if limit <= 3 {
		return string([]rune(s)[:limit])
	}
	return string([]rune(s)[:limit-3]) + "..."
}
