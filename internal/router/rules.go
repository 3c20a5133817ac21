package router

import (
	"regexp"
	"strings"
	"unicode"
)

// Intent is the classified purpose of a command.
type Intent string

const (
	IntentWeather   Intent = "weather"
	IntentCalculate Intent = "calculate"
	IntentNews      Intent = "news"
	IntentSearch    Intent = "search"
	IntentReminder  Intent = "reminder"
	IntentClock     Intent = "clock"
	IntentFarewell  Intent = "farewell"
	IntentAI        Intent = "ai"
)

// Rule maps a matching command to a tool or a fixed reply. Rules are
// evaluated in order and the first match wins.
type Rule struct {
	Intent Intent
	// Match decides whether the rule applies to the whole command.
	Match *regexp.Regexp
	// Extract captures the argument in its first non-empty group. Nil
	// means the rule takes no argument.
	Extract *regexp.Regexp
	// Clean normalizes the captured argument. Nil means trimArg.
	Clean func(string) string
	// Default replaces an empty argument. When both are empty and
	// Clarify is set, Clarify is the reply and no tool runs.
	Default string
	Clarify string
	// Tool names the registry tool to call. Empty means Reply is used.
	Tool  string
	Reply string
}

// DefaultRules returns the built-in rule table.
func DefaultRules() []Rule {
	return []Rule{
		{
			Intent:  IntentWeather,
			Match:   regexp.MustCompile(`(?i)\bweather\b`),
			Extract: regexp.MustCompile(`(?i)\bweather(?:\s+like)?(?:\s+(?:in|at|for))?\s+(.+)$`),
			Clean:   cleanLocation,
			Clarify: "Which city would you like the weather for?",
			Tool:    "weather",
		},
		{
			Intent: IntentCalculate,
			// Only a leading verb counts, so "remind me to compute taxes"
			// stays a reminder.
			Match:   regexp.MustCompile(`(?i)^\W*(?:(?:hey\s+)?jarvis\W+)?(?:please\s+)?(?:calculate|compute)\b|^[\d\s.()+\-*/]*\d[\d\s.()+\-*/]*$`),
			Extract: regexp.MustCompile(`(?i)\b(?:calculate|compute)\s+(.+)$|^([\d\s.()+\-*/]+)$`),
			Clarify: "What would you like me to calculate?",
			Tool:    "calculate",
		},
		{
			Intent:  IntentNews,
			Match:   regexp.MustCompile(`(?i)\b(?:news|headlines)\b`),
			Extract: regexp.MustCompile(`(?i)\b(?:news|headlines)\s+(?:about|on|for|regarding)\s+(.+)$`),
			Default: "technology",
			Tool:    "news",
		},
		{
			Intent:  IntentSearch,
			Match:   regexp.MustCompile(`(?i)\b(?:search\s+for|search\s+about|look\s+up|find\s+information)\b`),
			Extract: regexp.MustCompile(`(?i)\b(?:search\s+(?:for|about)|look\s+up|find\s+information(?:\s+(?:on|about))?)\s+(.+)$`),
			Clarify: "What would you like me to search for?",
			Tool:    "search",
		},
		{
			Intent:  IntentReminder,
			Match:   regexp.MustCompile(`(?i)\bremind\s+me\s+to\b`),
			Extract: regexp.MustCompile(`(?i)\bremind\s+me\s+to\s+(.+)$`),
			Clarify: "What would you like me to remind you about?",
			Tool:    "reminder",
		},
		{
			Intent: IntentClock,
			Match:  regexp.MustCompile(`(?i)\b(?:what\s+time\s+is\s+it|what(?:['’]s|\s+is)\s+the\s+(?:time|date)|today['’]s\s+date)\b`),
			Tool:   "clock",
		},
		{
			Intent: IntentFarewell,
			Match:  regexp.MustCompile(`(?i)\b(?:good\s*bye|stop\s+jarvis)\b`),
			Reply:  "Goodbye! Just say my name if you need anything.",
		},
	}
}

// Classification is the result of matching a command against a rule
// table.
type Classification struct {
	Intent Intent
	Arg    string
	Rule   *Rule // nil for IntentAI
}

// Classify returns the first rule matching text, with its extracted
// argument. Unmatched text classifies as IntentAI.
func Classify(rules []Rule, text string) Classification {
	for i := range rules {
		rule := &rules[i]
		if !rule.Match.MatchString(text) {
			continue
		}
		c := Classification{Intent: rule.Intent, Rule: rule}
		if rule.Extract != nil {
			clean := rule.Clean
			if clean == nil {
				clean = trimArg
			}
			c.Arg = clean(firstGroup(rule.Extract.FindStringSubmatch(text)))
		}
		if c.Arg == "" {
			c.Arg = rule.Default
		}
		return c
	}
	return Classification{Intent: IntentAI}
}

func firstGroup(m []string) string {
	for _, g := range m[min(1, len(m)):] {
		if g != "" {
			return g
		}
	}
	return ""
}

// trimArg trims whitespace and trailing sentence punctuation, keeping
// symbols that carry meaning such as "C++" or ".NET".
func trimArg(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), " \t.!?,")
}

// weatherFiller are words that follow "weather" without naming a place.
var weatherFiller = map[string]bool{
	"like": true, "today": true, "now": true, "outside": true,
	"forecast": true, "please": true, "report": true,
	"in": true, "at": true, "for": true,
}

// cleanLocation strips all surrounding punctuation and symbols from a
// place name and drops filler words.
func cleanLocation(s string) string {
	loc := cleanArg(s)
	if weatherFiller[strings.ToLower(loc)] {
		return ""
	}
	return loc
}

// cleanArg trims whitespace and leading or trailing punctuation.
func cleanArg(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
}
