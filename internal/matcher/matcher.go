// Package matcher ranks knowledge rows against a user query using layered
// match strategies: exact field equality, bidirectional substring
// containment, then a similarity-ratio threshold.
package matcher

import (
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"github.com/hrlight/shopbot/internal/knowledge"
)

type Strategy string

const (
	StrategyExact    Strategy = "exact"
	StrategyContains Strategy = "contains"
	StrategyRatio    Strategy = "ratio"
)

// RatioFunc scores two normalized strings in [0,1].
type RatioFunc func(a, b string) float64

// LevenshteinRatio is the default similarity score: normalized edit distance.
func LevenshteinRatio(a, b string) float64 {
	return strutil.Similarity(a, b, metrics.NewLevenshtein())
}

type Config struct {
	// Field is the column holding the canonical name / keyword tokens.
	Field string
	// Strategies are tried in order; the first one that yields rows wins, so
	// an exact hit is never diluted by a longer similarity list.
	Strategies []Strategy
	// Threshold must be strictly exceeded for a ratio match. Zero falls back
	// to the default.
	Threshold float64
	Ratio     RatioFunc
	// DedupeBy collapses matches sharing a column value, keeping the first.
	// Defaults to Field.
	DedupeBy string
}

const defaultThreshold = 0.6

// Entry is one matched row together with the strategy that found it.
type Entry struct {
	Row      knowledge.Row
	Column   string
	Strategy Strategy
}

type Result []Entry

// keyword fields may hold several tokens joined by common delimiters.
var tokenDelimiters = []string{"、", "，", ",", "/", "｜"}

func splitTokens(field string) []string {
	parts := []string{field}
	for _, delimiter := range tokenDelimiters {
		var next []string
		for _, part := range parts {
			next = append(next, strings.Split(part, delimiter)...)
		}
		parts = next
	}
	tokens := parts[:0]
	for _, part := range parts {
		if token := strings.TrimSpace(part); token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// Match evaluates rows in source order and returns the matches produced by
// the first strategy that finds anything. The empty query matches nothing.
func Match(query string, rows []knowledge.Row, cfg Config) Result {
	q := normalize(query)
	if q == "" || cfg.Field == "" {
		return nil
	}
	strategies := cfg.Strategies
	if len(strategies) == 0 {
		strategies = []Strategy{StrategyExact, StrategyContains, StrategyRatio}
	}
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	ratio := cfg.Ratio
	if ratio == nil {
		ratio = LevenshteinRatio
	}

	for _, strategy := range strategies {
		var result Result
		for _, row := range rows {
			field := row.Get(cfg.Field)
			if field == "" {
				continue
			}
			if matchRow(q, field, strategy, threshold, ratio) {
				result = append(result, Entry{Row: row, Column: cfg.Field, Strategy: strategy})
			}
		}
		if len(result) > 0 {
			return dedupe(result, cfg)
		}
	}
	return nil
}

func matchRow(q, field string, strategy Strategy, threshold float64, ratio RatioFunc) bool {
	switch strategy {
	case StrategyExact:
		for _, token := range splitTokens(field) {
			if normalize(token) == q {
				return true
			}
		}
	case StrategyContains:
		for _, token := range splitTokens(field) {
			t := normalize(token)
			if strings.Contains(t, q) || strings.Contains(q, t) {
				return true
			}
		}
	case StrategyRatio:
		return ratio(q, normalize(field)) > threshold
	}
	return false
}

func dedupe(result Result, cfg Config) Result {
	key := cfg.DedupeBy
	if key == "" {
		key = cfg.Field
	}
	seen := make(map[string]bool, len(result))
	deduped := result[:0]
	for _, match := range result {
		value := normalize(match.Row.Get(key))
		if value != "" && seen[value] {
			continue
		}
		seen[value] = true
		deduped = append(deduped, match)
	}
	return deduped
}
