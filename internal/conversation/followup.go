package conversation

import "regexp"

// Continuation requests ("list those contracts", "name the 5 agencies").
// The families are deliberately loose: "what" followed by any words matches,
// so "What is the total obligation for CA?" counts as a follow-up. The signal
// only offers the prior filter to the generator, it never forces it.
var followUpPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:list|show|give|display)(?:\s+me)?(?:\s+the)?(?:\s+all)?(?:\s+those)?(?:\s+(\d+))?(?:\s+([a-zA-Z\s]+))`),
	regexp.MustCompile(`(?i)what(?:\s+are)?(?:\s+those)?(?:\s+(\d+))?(?:\s+([a-zA-Z\s]+))`),
	regexp.MustCompile(`(?i)name(?:\s+the)?(?:\s+(\d+))?(?:\s+([a-zA-Z\s]+))`),
}

func IsFollowUp(question string) bool {
	for _, pattern := range followUpPatterns {
		if pattern.MatchString(question) {
			return true
		}
	}
	return false
}
