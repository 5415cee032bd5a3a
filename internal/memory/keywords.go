package memory

import (
	"strings"

	"github.com/lifestream/lifestream/internal/event"
)

// typeRule maps question vocabulary to event types. Questions are
// bilingual in practice (Russian mobile clients, English elsewhere), so
// both vocabularies live in one table.
type typeRule struct {
	words []string
	types []event.Type
}

var typeRules = []typeRule{
	{
		words: []string{"где", "был", "место", "адрес", "локация", "where", "place", "location"},
		types: []event.Type{event.TypeGeo},
	},
	{
		words: []string{"обедал", "ел", "кафе", "ресторан", "еда", "lunch", "ate", "cafe", "restaurant"},
		types: []event.Type{event.TypeGeo, event.TypePurchase},
	},
	{
		words: []string{"кем", "встреча", "встречался", "person", "met", "meeting"},
		types: []event.Type{event.TypeSocial},
	},
	{
		words: []string{"потратил", "купил", "покупка", "деньги", "оплата", "spend", "spent", "buy", "bought", "pay", "paid"},
		types: []event.Type{event.TypePurchase},
	},
	{
		words: []string{"шагов", "сон", "пульс", "здоровье", "активность", "steps", "sleep", "health"},
		types: []event.Type{event.TypeHealth},
	},
}

// InferEventTypes maps a question to the event types worth querying.
// No match means no type filter.
func InferEventTypes(question string) []event.Type {
	q := strings.ToLower(question)

	seen := make(map[event.Type]bool)
	var types []event.Type
	for _, rule := range typeRules {
		for _, w := range rule.words {
			if strings.Contains(q, w) {
				for _, t := range rule.types {
					if !seen[t] {
						seen[t] = true
						types = append(types, t)
					}
				}
				break
			}
		}
	}
	return types
}

var stopWords = map[string]bool{
	"я": true, "мы": true, "с": true, "кем": true, "где": true,
	"когда": true, "как": true, "сколько": true, "в": true, "на": true,
	"за": true, "по": true, "был": true, "была": true, "были": true,
	"что": true,
	"the": true, "a": true, "is": true, "was": true, "were": true,
	"with": true, "who": true, "where": true, "what": true, "did": true,
}

// ExtractKeywords returns the question's searchable words: stopwords
// dropped, short tokens dropped, order preserved.
func ExtractKeywords(question string) []string {
	var keywords []string
	for _, w := range strings.Fields(strings.ToLower(question)) {
		w = strings.Trim(w, "?!.,;:\"'")
		if len([]rune(w)) > 2 && !stopWords[w] {
			keywords = append(keywords, w)
		}
	}
	return keywords
}
