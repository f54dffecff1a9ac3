package main

import (
	"fmt"
	"regexp"
	"strconv"
)

// CompilePatterns compiles metric regexes with case-insensitive multiline
// matching, the mode backends are scraped under.
func CompilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		re, err := regexp.Compile("(?im)" + pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid metric regex '%v': %w", pattern, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// ExtractMetric tries patterns in declaration order against the combined
// process output and returns the first capture group that parses as a float.
// A match whose capture is non-numeric counts as a non-match. No match at all
// returns nil, never an error.
func ExtractMetric(text string, patterns []*regexp.Regexp) *float64 {
	for _, re := range patterns {
		match := re.FindStringSubmatch(text)
		if len(match) < 2 {
			continue
		}
		value, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			continue
		}
		return &value
	}
	return nil
}

// ExtractAuxMetrics runs the named auxiliary rule sets independently; any
// subset may be absent.
func ExtractAuxMetrics(text string, rules map[string][]*regexp.Regexp) map[string]float64 {
	aux := make(map[string]float64)
	for key, patterns := range rules {
		if value := ExtractMetric(text, patterns); value != nil {
			aux[key] = *value
		}
	}
	return aux
}
