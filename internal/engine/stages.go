package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/hrlight/shopbot/internal/matcher"
)

// resolveFAQ answers from the canned keyword/reply sheet. Similarity matching
// is deliberately excluded here: an FAQ trigger either appears in the message
// or it does not.
func (e *Engine) resolveFAQ(ctx context.Context, turn *turnState) (string, error) {
	rows, err := e.store.Rows(ctx, e.cfg.FAQSheet)
	if err != nil {
		return "", err
	}
	matches := matcher.Match(turn.text, rows, matcher.Config{
		Field:      columnKeyword,
		Strategies: []matcher.Strategy{matcher.StrategyExact, matcher.StrategyContains},
	})
	if len(matches) == 0 {
		return "", nil
	}
	return matches[0].Row.Get(columnAnswer), nil
}

// resolveCatalog looks the message up against the product sheet. One match
// gets the detailed reply with the stock-check reminder; several matches get
// a compact list and a clarifying question instead.
func (e *Engine) resolveCatalog(ctx context.Context, turn *turnState) (string, error) {
	rows, err := e.store.Rows(ctx, e.cfg.ProductSheet)
	if err != nil {
		return "", err
	}
	matches := matcher.Match(turn.text, rows, matcher.Config{
		Field:     columnName,
		Threshold: e.cfg.RatioThreshold,
		Ratio:     e.cfg.Ratio,
	})
	switch len(matches) {
	case 0:
		return "", nil
	case 1:
		row := matches[0].Row
		return fmt.Sprintf("【%s】目前的價格是 %s 元。%s", row.Get(columnName), row.Get(columnPrice), replyReminder), nil
	default:
		var builder strings.Builder
		builder.WriteString("為您找到這些相關的品項：\n")
		for _, match := range matches {
			builder.WriteString(fmt.Sprintf("・%s：%s 元\n", match.Row.Get(columnName), match.Row.Get(columnPrice)))
		}
		builder.WriteString(replyClarify)
		return builder.String(), nil
	}
}
