package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/hrlight/shopbot/internal/knowledge"
)

// resolvePricing quotes a paint job when the message names a known vehicle
// model. A recognized special color adds the surcharge row on top of the base
// row; without a color the base price is quoted with an invitation to pick
// one.
func (e *Engine) resolvePricing(ctx context.Context, turn *turnState) (string, error) {
	paintRows, err := e.store.Rows(ctx, e.cfg.PaintSheet)
	if err != nil {
		return "", err
	}
	colorRows, err := e.store.Rows(ctx, e.cfg.ColorSheet)
	if err != nil {
		return "", err
	}

	vehicle := detectVehicle(turn.text, paintRows)
	if vehicle == "" {
		return "", nil
	}
	base := findPaintRow(paintRows, vehicle, itemBasePaint)
	if base == nil {
		return "", nil
	}
	basePrice, ok := parsePrice(base.Get(columnPrice))
	if !ok {
		return "", nil
	}

	color := detectColor(turn.text, colorRows)
	if color == nil {
		return fmt.Sprintf("「%s」基本烤漆為 %d 元起，請問您想烤哪個顏色呢？跟我說顏色可以幫您算更精準的報價喔！", vehicle, basePrice), nil
	}

	total := basePrice
	if strings.Contains(color.Get(columnCategory), categorySpecial) {
		surcharge := findPaintRow(paintRows, vehicle, itemSpecialSurcharge)
		if surcharge == nil {
			surcharge = findPaintRow(paintRows, "", itemSpecialSurcharge)
		}
		if surcharge != nil {
			if extra, ok := parsePrice(surcharge.Get(columnPrice)); ok {
				total += extra
			}
		}
	}
	return fmt.Sprintf("「%s」烤漆「%s」的報價約為 %d 元，若是多色或特殊設計，實際費用需要到店現場跟師傅確認喔！", vehicle, color.Get(columnColor), total), nil
}

// detectVehicle returns the first sheet vehicle whose name appears in the
// message, scanning in source order for determinism.
func detectVehicle(text string, paintRows []knowledge.Row) string {
	normalized := strings.ToLower(text)
	seen := map[string]bool{}
	for _, row := range paintRows {
		vehicle := row.Get(columnVehicle)
		if vehicle == "" || seen[vehicle] {
			continue
		}
		seen[vehicle] = true
		if strings.Contains(normalized, strings.ToLower(vehicle)) {
			return vehicle
		}
	}
	return ""
}

func detectColor(text string, colorRows []knowledge.Row) *knowledge.Row {
	normalized := strings.ToLower(text)
	for i := range colorRows {
		color := colorRows[i].Get(columnColor)
		if color == "" {
			continue
		}
		if strings.Contains(normalized, strings.ToLower(color)) {
			return &colorRows[i]
		}
	}
	return nil
}

// findPaintRow matches by (vehicle, item); an empty vehicle matches any row
// with the wanted item, used as a sheet-wide surcharge fallback.
func findPaintRow(paintRows []knowledge.Row, vehicle, item string) *knowledge.Row {
	for i := range paintRows {
		if paintRows[i].Get(columnItem) != item {
			continue
		}
		if vehicle != "" && !strings.EqualFold(paintRows[i].Get(columnVehicle), vehicle) {
			continue
		}
		return &paintRows[i]
	}
	return nil
}

func parsePrice(raw string) (int, bool) {
	cleaned := strings.NewReplacer(",", "", "元", "", " ", "", "　", "").Replace(strings.TrimSpace(raw))
	if cleaned == "" {
		return 0, false
	}
	price, err := strconv.Atoi(cleaned)
	if err != nil || price < 0 {
		return 0, false
	}
	return price, true
}
