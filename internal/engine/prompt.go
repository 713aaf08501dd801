package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hrlight/shopbot/internal/knowledge"
	"github.com/hrlight/shopbot/internal/llm"
)

const defaultPersona = "你是一位語氣活潑親切又專業的女生，是 H.R燈藝 的 LINE 客服助理。" +
	"請使用繁體中文回覆，不要使用 emoji。" +
	"品牌資訊：H.R燈藝，地址：桃園市中壢區南園二路435號，營業時間為 10:30～21:00，週四公休，週日18:00提早打烊。" +
	"請根據客戶提問，自然融入這些資訊並提供親切清楚的回答。"

const visionPrompt = "請用繁體中文簡短描述這張圖片中的商品或零件，聚焦在車燈與烤漆相關的細節。"

const maxPromptFacts = 8

// resolveFallback builds the persona prompt, folds in rows gathered from the
// generic knowledge sheets plus any pending image description, and asks the
// completion capability for a free-text answer. The pending description is
// consumed here, not earlier: a turn answered by a structured stage leaves it
// parked for the user's next free-text question.
func (e *Engine) resolveFallback(ctx context.Context, turn *turnState) (string, error) {
	if turn.imageContext == "" {
		turn.imageContext, _ = e.sessions.TakePendingImage(turn.userID)
	}

	system := strings.Builder{}
	system.WriteString(e.cfg.Persona)

	if facts := e.gatherFacts(ctx, turn.text); len(facts) > 0 {
		system.WriteString("\n\n以下是店內資料，回答時請以這些為準：\n")
		for _, fact := range facts {
			system.WriteString("- ")
			system.WriteString(fact)
			system.WriteString("\n")
		}
	}
	if turn.imageContext != "" {
		system.WriteString("\n\n客人剛剛傳了一張圖片，內容是：")
		system.WriteString(turn.imageContext)
		system.WriteString("\n請結合這張圖片的內容回答客人的問題。")
	}

	reply, err := e.completer.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: system.String()},
		{Role: llm.RoleUser, Content: turn.text},
	})
	if err != nil {
		return "", fmt.Errorf("generative fallback: %w", err)
	}
	return strings.TrimSpace(reply), nil
}

// gatherFacts scans sheets outside the structured ones for rows mentioning
// the query, rendered as compact facts for the system prompt. Store failures
// here are not fatal: the fallback still works without extra grounding.
func (e *Engine) gatherFacts(ctx context.Context, query string) []string {
	sheets, err := e.store.ListSheets(ctx)
	if err != nil {
		if !errors.Is(err, knowledge.ErrUnavailable) {
			e.logger.Warn("fact gathering failed", "error", err)
		}
		return nil
	}

	structured := map[string]bool{
		e.cfg.FAQSheet:     true,
		e.cfg.PaintSheet:   true,
		e.cfg.ColorSheet:   true,
		e.cfg.ProductSheet: true,
	}
	normalized := strings.ToLower(strings.TrimSpace(query))

	var facts []string
	for _, sheet := range sheets {
		if structured[sheet] || len(facts) >= maxPromptFacts {
			continue
		}
		rows, err := e.store.Rows(ctx, sheet)
		if err != nil {
			e.logger.Warn("sheet skipped during fact gathering", "sheet", sheet, "error", err)
			continue
		}
		for _, row := range rows {
			if len(facts) >= maxPromptFacts {
				break
			}
			if rowMentions(row, normalized) {
				facts = append(facts, renderFact(row))
			}
		}
	}
	return facts
}

func rowMentions(row knowledge.Row, query string) bool {
	if query == "" {
		return false
	}
	for _, value := range row.Columns {
		v := strings.ToLower(strings.TrimSpace(value))
		if len(v) < 2 {
			continue
		}
		if strings.Contains(v, query) || strings.Contains(query, v) {
			return true
		}
	}
	return false
}

// renderFact flattens a row into "sheet: col=value; …" with sorted columns so
// prompt content is deterministic.
func renderFact(row knowledge.Row) string {
	columns := make([]string, 0, len(row.Columns))
	for name := range row.Columns {
		columns = append(columns, name)
	}
	sort.Strings(columns)

	parts := make([]string, 0, len(columns))
	for _, name := range columns {
		value := strings.TrimSpace(row.Columns[name])
		if value == "" {
			continue
		}
		parts = append(parts, name+"="+value)
	}
	return row.Sheet + ": " + strings.Join(parts, "；")
}
