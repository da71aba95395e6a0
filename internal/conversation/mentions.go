package conversation

import (
	"regexp"
	"strconv"
	"strings"
)

type mentionPattern struct {
	name        string
	expr        *regexp.Regexp
	countGroup  int
	phraseGroup int
}

// Order matters: when two patterns normalize to the same entity type the
// later pattern wins. The phrase group is a greedy run of letters and
// whitespace, so "There are 12 contracts in California." yields the type
// "contracts in california". That over-capture is part of the contract.
var mentionPatterns = []mentionPattern{
	{name: "there_are", expr: regexp.MustCompile(`(?i)There (?:are|were) (\d+) ([a-zA-Z\s]+)`), countGroup: 1, phraseGroup: 2},
	{name: "found", expr: regexp.MustCompile(`(?i)Found (\d+) ([a-zA-Z\s]+)`), countGroup: 1, phraseGroup: 2},
	{name: "identified", expr: regexp.MustCompile(`(?i)Identified (\d+) ([a-zA-Z\s]+)`), countGroup: 1, phraseGroup: 2},
	{name: "were_found", expr: regexp.MustCompile(`(?i)(\d+) ([a-zA-Z\s]+) (?:are|were) found`), countGroup: 1, phraseGroup: 2},
	{name: "total_of", expr: regexp.MustCompile(`(?i)total of (\d+) ([a-zA-Z\s]+)`), countGroup: 1, phraseGroup: 2},
}

type Mention struct {
	EntityType string `json:"entity_type"`
	Count      int    `json:"count"`
}

// ExtractMentions scans text for quantified entity statements. Entries keep
// the position of their first occurrence and the count of their last one.
func ExtractMentions(text string) []Mention {
	var out []Mention
	index := map[string]int{}
	for _, pattern := range mentionPatterns {
		for _, match := range pattern.expr.FindAllStringSubmatch(text, -1) {
			count, err := strconv.Atoi(match[pattern.countGroup])
			if err != nil {
				continue
			}
			entityType := NormalizeEntityType(match[pattern.phraseGroup])
			if pos, ok := index[entityType]; ok {
				out[pos].Count = count
				continue
			}
			index[entityType] = len(out)
			out = append(out, Mention{EntityType: entityType, Count: count})
		}
	}
	return out
}

// Extract is ExtractMentions as a map keyed by entity type.
func Extract(text string) map[string]int {
	mentions := ExtractMentions(text)
	out := make(map[string]int, len(mentions))
	for _, mention := range mentions {
		out[mention.EntityType] = mention.Count
	}
	return out
}

// NormalizeEntityType trims, lowercases and drops a single trailing "s".
// It is not a dictionary singularizer: "address" becomes "addres".
func NormalizeEntityType(phrase string) string {
	normalized := strings.ToLower(strings.TrimSpace(phrase))
	return strings.TrimSuffix(normalized, "s")
}
