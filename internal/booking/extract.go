package booking

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	reAffirmative = regexp.MustCompile(`^(yes|yeah|yea|yep|yup|y|sure|ok|okay|confirm|confirmed|correct|please do|go ahead|sounds good|perfect|great|that works|works for me|book it|absolutely|definitely|of course)\b`)
	reNegative    = regexp.MustCompile(`^(no|nope|nah|n|not really|not that|don'?t|do not|neither)\b|\b(another|different|other|later|earlier) (time|day|slot|one)\b`)
	reRestart     = regexp.MustCompile(`^(restart|start over|reset|never ?mind|forget it)\b`)
	reThanks      = regexp.MustCompile(`\b(thanks|thank you|thx|cheers|great|perfect|awesome|ok|okay)\b`)
	reAnyone      = regexp.MustCompile(`\b(anyone|anybody|any (dentist|doctor|practitioner|of them)|no preference|don'?t mind|doesn'?t matter|whoever|either)\b`)
	reBareAny     = regexp.MustCompile(`^any\b`)
	reName        = regexp.MustCompile(`\b(?i:my name is|my name's|name is|i am|i'm|im)\s+([A-Z][a-zA-Z'-]+(?:\s+[A-Z][a-zA-Z'-]+)?)`)
	reTeeth       = regexp.MustCompile(`\b(\d{1,2}|one|two|three|four|five|six|seven|eight|nine|ten)\s+(teeth|tooth|fillings?|cavities|cavity)\b`)
	reBareCount   = regexp.MustCompile(`^(\d{1,2}|one|two|three|four|five|six|seven|eight|nine|ten)\b`)
	reTrimEdges   = regexp.MustCompile(`^[^a-z0-9']+|[^a-z0-9']+$`)
)

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

const maxTeeth = 32

func normalizeText(text string) string {
	lower := strings.ToLower(strings.TrimSpace(text))
	lower = strings.ReplaceAll(lower, "’", "'")
	return reTrimEdges.ReplaceAllString(lower, "")
}

func isAffirmative(lower string) bool { return reAffirmative.MatchString(lower) }

func isNegative(lower string) bool { return reNegative.MatchString(lower) }

func isRestart(lower string) bool { return reRestart.MatchString(lower) }

func isThanks(lower string) bool { return reThanks.MatchString(lower) }

// isAnyPractitioner accepts a bare "any" only as the answer to the practitioner question.
func isAnyPractitioner(lower string, asked bool) bool {
	return reAnyone.MatchString(lower) || (asked && reBareAny.MatchString(lower))
}

func extractName(text string) string {
	m := reName.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// extractToothCount reads "3 teeth" anywhere, or a bare leading number when the
// question was just asked.
func extractToothCount(lower string, asked bool) (int, bool) {
	var raw string
	if m := reTeeth.FindStringSubmatch(lower); m != nil {
		raw = m[1]
	} else if asked {
		if m := reBareCount.FindStringSubmatch(lower); m != nil {
			raw = m[1]
		}
	}
	if raw == "" {
		return 0, false
	}
	n, ok := numberWords[raw]
	if !ok {
		var err error
		if n, err = strconv.Atoi(raw); err != nil {
			return 0, false
		}
	}
	if n < 1 || n > maxTeeth {
		return 0, false
	}
	return n, true
}
