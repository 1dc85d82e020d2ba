// Package tgtext holds small text helpers for Telegram payloads.
package tgtext

// MaxMessageLen is Telegram's per-message text limit in characters.
const MaxMessageLen = 4096

// TruncRunes returns s truncated to at most n runes. When truncation
// happens the last kept rune is replaced with an ellipsis, so the result
// never exceeds n runes.
func TruncRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// Split breaks s into chunks of at most limit runes, preferring newline
// boundaries so message formatting survives the split.
func Split(s string, limit int) []string {
	if limit <= 0 {
		limit = MaxMessageLen
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return []string{s}
	}

	var chunks []string
	for len(runes) > limit {
		cut := limit
		for i := limit - 1; i > limit/2; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}
