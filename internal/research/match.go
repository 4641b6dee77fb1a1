package research

import "strings"

// MatchRank records how a model-reported field name was matched to a known
// field key. The fallback path is explicit so it can be tested.
type MatchRank int

const (
	MatchExact MatchRank = iota
	MatchSubstring
	MatchNone
)

// MatchFieldName resolves a field name from model output against a known
// field key and label, tolerating paraphrasing. Ranked: exact key or label
// match first, then case-insensitive substring containment either way.
func MatchFieldName(name, key, label string) MatchRank {
	n := strings.ToLower(strings.TrimSpace(name))
	k := strings.ToLower(key)
	l := strings.ToLower(label)

	if n == k || n == l {
		return MatchExact
	}
	if n == "" {
		return MatchNone
	}
	if strings.Contains(n, k) || strings.Contains(k, n) ||
		strings.Contains(n, l) || strings.Contains(l, n) {
		return MatchSubstring
	}
	return MatchNone
}

// bestMatch picks the first decision whose field name matches the key/label,
// preferring exact matches over substring matches.
func bestMatch[T any](key, label string, items []T, name func(T) string) (T, bool) {
	var zero T
	var substring *T
	for i := range items {
		switch MatchFieldName(name(items[i]), key, label) {
		case MatchExact:
			return items[i], true
		case MatchSubstring:
			if substring == nil {
				substring = &items[i]
			}
		}
	}
	if substring != nil {
		return *substring, true
	}
	return zero, false
}
