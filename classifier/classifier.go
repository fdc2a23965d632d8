package classifier

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/acarl005/stripansi"
)

// defaultTimeout is assumed when a timeout failure carries no parseable
// duration. Tunable only in the sense that the rule table owns it; the
// value mirrors the common framework default.
const defaultTimeout = 30 * time.Second

// rule pairs a match predicate with an extractor. The rule list below is
// evaluated top to bottom and the first match wins: rules are not mutually
// exclusive, so the order encodes priority and must not be reshuffled.
type rule struct {
	kind  Kind
	match func(errorText string) bool
	build func(errorText, stackTrace string) FailureVariant
}

var (
	assertionRe = regexp.MustCompile(`(?i)expected:|actual:|\bassert`)
	expectedRe  = regexp.MustCompile(`(?i)expected:[ \t]*([^\n]*)`)
	actualRe    = regexp.MustCompile(`(?i)actual:[ \t]*([^\n]*)`)

	nullRe         = regexp.MustCompile(`(?i)\bnull\b`)
	nullCallRe     = regexp.MustCompile(`(?i)nosuchmethoderror|called on null|null check operator|the (getter|method) '`)
	nullVariableRe = regexp.MustCompile(`(?i)the (?:getter|method) '([^']+)' was called on null`)

	timeoutRe         = regexp.MustCompile(`(?i)timed out|timeout`)
	timeoutDurationRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(seconds|ms)`)

	rangeRe      = regexp.MustCompile(`(?i)rangeerror|out of range|index out of bounds`)
	rangeIndexRe = regexp.MustCompile(`(?i)index:\s*(\d+)`)
	rangeSpanRe  = regexp.MustCompile(`(?i)range:[ \t]*([^\n]+)`)

	typeRe        = regexp.MustCompile(`(?i)is not a subtype|\bcast\b`)
	subtypeRe     = regexp.MustCompile(`(?i)type '([^']+)' is not a subtype of type '([^']+)'`)
	quotedTokenRe = regexp.MustCompile(`'([^']+)'`)

	ioRe      = regexp.MustCompile(`(?i)file.{0,10}not.{0,10}found|no such file|permission denied|ioexception|filesystemexception`)
	pathRe    = regexp.MustCompile(`'([^']+)'|"([^"]+)"`)
	ioReadRe  = regexp.MustCompile(`(?i)\bread`)
	ioWriteRe = regexp.MustCompile(`(?i)\bwrit`)
	ioOpenRe  = regexp.MustCompile(`(?i)\bopen`)

	networkRe  = regexp.MustCompile(`(?i)socket|http|connection|econnrefused|network`)
	httpVerbRe = regexp.MustCompile(`(?i)\b(GET|POST|PUT|DELETE|PATCH|HEAD)\b`)
	endpointRe = regexp.MustCompile(`(?i)https?://[^\s"']+`)
	statusRe   = regexp.MustCompile(`(?i)status:\s*(\d+)`)

	locationRe = regexp.MustCompile(`(?i)([\w./\\-]+\.dart):(\d+)`)
)

// rules is the ordered classification table. First match wins.
var rules = []rule{
	{kind: KindAssertion, match: assertionRe.MatchString, build: buildAssertion},
	{kind: KindNullReference, match: matchNullReference, build: buildNullReference},
	{kind: KindTimeout, match: timeoutRe.MatchString, build: buildTimeout},
	{kind: KindRange, match: rangeRe.MatchString, build: buildRange},
	{kind: KindTypeMismatch, match: typeRe.MatchString, build: buildTypeMismatch},
	{kind: KindIO, match: ioRe.MatchString, build: buildIO},
	{kind: KindNetwork, match: networkRe.MatchString, build: buildNetwork},
}

// Classify maps raw failure output to exactly one FailureVariant. It never
// fails; input matching no rule yields UnknownFailure.
func Classify(errorText, stackTrace string) FailureVariant {
	text := stripansi.Strip(errorText)
	stack := stripansi.Strip(stackTrace)

	for _, r := range rules {
		if r.match(text) {
			return r.build(text, stack)
		}
	}
	return UnknownFailure{RawMessage: text}
}

func buildAssertion(text, stack string) FailureVariant {
	return AssertionFailure{
		Message:  firstLine(text),
		Expected: firstSubmatch(expectedRe, text, ""),
		Actual:   firstSubmatch(actualRe, text, ""),
		Location: extractLocation(stack),
	}
}

func matchNullReference(text string) bool {
	return nullRe.MatchString(text) && nullCallRe.MatchString(text)
}

func buildNullReference(text, stack string) FailureVariant {
	return NullReferenceError{
		Variable: firstSubmatch(nullVariableRe, text, "variable"),
		Location: extractLocation(stack),
	}
}

func buildTimeout(text, stack string) FailureVariant {
	duration := defaultTimeout
	if m := timeoutDurationRe.FindStringSubmatch(text); m != nil {
		if value, err := strconv.ParseFloat(m[1], 64); err == nil {
			if strings.EqualFold(m[2], "ms") {
				duration = time.Duration(value * float64(time.Millisecond))
			} else {
				duration = time.Duration(value * float64(time.Second))
			}
		}
	}

	operation := "operation"
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "async"):
		operation = "async operation"
	case strings.Contains(lower, "stream"):
		operation = "stream operation"
	}

	return TimeoutFailure{Duration: duration, Operation: operation}
}

func buildRange(text, stack string) FailureVariant {
	index := -1
	if m := rangeIndexRe.FindStringSubmatch(text); m != nil {
		if parsed, err := strconv.Atoi(m[1]); err == nil {
			index = parsed
		}
	}
	return RangeError{
		Index:      index,
		ValidRange: firstSubmatch(rangeSpanRe, text, "unknown"),
		Location:   extractLocation(stack),
	}
}

func buildTypeMismatch(text, stack string) FailureVariant {
	expected, actual := "unknown", "unknown"
	if m := subtypeRe.FindStringSubmatch(text); m != nil {
		actual, expected = m[1], m[2]
	} else if tokens := quotedTokenRe.FindAllStringSubmatch(text, 2); len(tokens) == 2 {
		actual, expected = tokens[0][1], tokens[1][1]
	}
	return TypeMismatch{
		ExpectedType: expected,
		ActualType:   actual,
		Location:     extractLocation(stack),
	}
}

func buildIO(text, stack string) FailureVariant {
	operation := "file operation"
	switch {
	case ioReadRe.MatchString(text):
		operation = "read"
	case ioWriteRe.MatchString(text):
		operation = "write"
	case ioOpenRe.MatchString(text):
		operation = "open"
	}

	path := "unknown"
	if m := pathRe.FindStringSubmatch(text); m != nil {
		if m[1] != "" {
			path = m[1]
		} else {
			path = m[2]
		}
	}
	return IOError{Operation: operation, Path: path}
}

func buildNetwork(text, stack string) FailureVariant {
	operation := "HTTP request"
	if m := httpVerbRe.FindString(text); m != "" {
		operation = strings.ToUpper(m)
	}

	endpoint := "unknown"
	if m := endpointRe.FindString(text); m != "" {
		endpoint = m
	}

	var statusCode *int
	if m := statusRe.FindStringSubmatch(text); m != nil {
		if parsed, err := strconv.Atoi(m[1]); err == nil {
			statusCode = &parsed
		}
	}
	return NetworkError{Operation: operation, Endpoint: endpoint, StatusCode: statusCode}
}

// extractLocation returns the first <file>.dart:<line> token found anywhere
// in the stack trace, or "unknown" when none is present.
func extractLocation(stackTrace string) string {
	if m := locationRe.FindStringSubmatch(stackTrace); m != nil {
		return m[1] + ":" + m[2]
	}
	return "unknown"
}

func firstSubmatch(re *regexp.Regexp, s, fallback string) string {
	if m := re.FindStringSubmatch(s); m != nil {
		if trimmed := strings.TrimSpace(m[1]); trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}
