package engine

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Date resolution: relative terms resolve against now, absolute tokens are
// tried against a small set of layouts. Anything else is an error; the
// extractor decides whether to default to today (only when NO token was
// written at all).

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday,
	"friday": time.Friday, "saturday": time.Saturday,
}

var absoluteLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"02/01/06",
	"2/1",
	"02/01",
	"Jan 2 2006",
	"January 2 2006",
	"Jan 2",
	"January 2",
	"2 Jan",
	"2 January",
}

// ResolveDate maps a date token to a calendar day in now's location.
func ResolveDate(token string, now time.Time) (time.Time, error) {
	s := strings.ToLower(strings.TrimSpace(token))
	s = strings.TrimPrefix(s, "on ")
	s = strings.TrimPrefix(s, "last ")
	s = strings.TrimSuffix(s, ".")

	switch s {
	case "today", "now", "tonight":
		return dayOf(now), nil
	case "yesterday":
		return dayOf(now).AddDate(0, 0, -1), nil
	}

	if wd, ok := weekdays[s]; ok {
		// Most recent occurrence, today included.
		d := dayOf(now)
		for d.Weekday() != wd {
			d = d.AddDate(0, 0, -1)
		}
		return d, nil
	}

	// Title-case month names so "jan 5" parses with "Jan 2".
	titled := titleMonths(s)
	for _, layout := range absoluteLayouts {
		t, err := time.ParseInLocation(layout, titled, now.Location())
		if err != nil {
			continue
		}
		if t.Year() == 0 {
			t = time.Date(now.Year(), t.Month(), t.Day(), 0, 0, 0, 0, now.Location())
		}
		return dayOf(t), nil
	}

	return time.Time{}, fmt.Errorf("I couldn't understand the date %q", token)
}

func titleMonths(s string) string {
	fields := strings.Fields(s)
	for i, f := range fields {
		if len(f) >= 3 {
			fields[i] = strings.ToUpper(f[:1]) + f[1:]
		}
	}
	return strings.Join(fields, " ")
}

// Patterns a date token can take inside a longer directive. Ordered: the
// first match wins, so the more specific forms come first.
var dateTokenPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b\d{4}-\d{2}-\d{2}\b`),
	regexp.MustCompile(`(?i)\b\d{1,2}/\d{1,2}(?:/\d{2,4})?\b`),
	regexp.MustCompile(`(?i)\b(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\s+\d{1,2}(?:\s+\d{4})?\b`),
	regexp.MustCompile(`(?i)\b\d{1,2}\s+(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\b`),
	regexp.MustCompile(`(?i)\b(?:last\s+)?(?:sunday|monday|tuesday|wednesday|thursday|friday|saturday)\b`),
	regexp.MustCompile(`(?i)\byesterday\b`),
	regexp.MustCompile(`(?i)\btoday\b`),
}

// extractDateToken finds the first date-like token in text and returns the
// token plus the text with it removed. found is false when nothing date-like
// was written.
func extractDateToken(text string) (token, rest string, found bool) {
	for _, re := range dateTokenPatterns {
		if loc := re.FindStringIndex(text); loc != nil {
			token = strings.TrimSpace(text[loc[0]:loc[1]])
			rest = strings.TrimSpace(text[:loc[0]] + " " + text[loc[1]:])
			return token, rest, true
		}
	}
	return "", text, false
}
