package news

import "strings"

// CategoryGeneral is the fallback category when classification finds no match.
const CategoryGeneral = "general"

// Classifier assigns a category from a fixed vocabulary by keyword matching.
// It is pure: same inputs always yield the same category, and the earliest
// vocabulary entry wins ties.
type Classifier struct {
	vocabulary []string
}

func NewClassifier(vocabulary []string) *Classifier {
	vocab := make([]string, 0, len(vocabulary))
	for _, v := range vocabulary {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			vocab = append(vocab, v)
		}
	}
	return &Classifier{vocabulary: vocab}
}

// Classify returns the first vocabulary category that appears in the keyword
// set, the title, or the body (case-insensitive), or CategoryGeneral.
func (c *Classifier) Classify(title, body string, keywords []string) string {
	kw := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		kw[strings.ToLower(strings.TrimSpace(k))] = struct{}{}
	}
	titleLower := strings.ToLower(title)
	bodyLower := strings.ToLower(body)

	for _, cat := range c.vocabulary {
		if _, ok := kw[cat]; ok {
			return cat
		}
		if strings.Contains(titleLower, cat) || strings.Contains(bodyLower, cat) {
			return cat
		}
	}
	return CategoryGeneral
}

// Vocabulary returns the match-priority category order.
func (c *Classifier) Vocabulary() []string {
	return append([]string(nil), c.vocabulary...)
}
