package exporter

import (
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var amountPrinter = message.NewPrinter(language.English)

// formatFloat formats a float64 for CSV output with exactly 2 decimal places
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

// formatExact formats a float64 with the fewest digits that round-trip.
func formatExact(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// formatAmount renders f with thousands separators and 2 decimal places.
func formatAmount(f float64) string {
	return amountPrinter.Sprintf("%.2f", f)
}

// sortedMix returns the product types of mix, largest share first.
func sortedMix(mix map[string]float64) []string {
	keys := make([]string, 0, len(mix))
	for k := range mix {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if mix[keys[i]] != mix[keys[j]] {
			return mix[keys[i]] > mix[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

// formatMix renders a product mix as "equity:0.6;option:0.4".
func formatMix(mix map[string]float64) string {
	parts := make([]string, 0, len(mix))
	for _, k := range sortedMix(mix) {
		parts = append(parts, k+":"+formatExact(mix[k]))
	}
	return strings.Join(parts, ";")
}

// formatMixPercent renders a product mix as "equity 60.0%, option 40.0%".
func formatMixPercent(mix map[string]float64) string {
	if len(mix) == 0 {
		return "n/a"
	}
	parts := make([]string, 0, len(mix))
	for _, k := range sortedMix(mix) {
		parts = append(parts, k+" "+strconv.FormatFloat(mix[k]*100, 'f', 1, 64)+"%")
	}
	return strings.Join(parts, ", ")
}

// truncateList joins the first limit items and notes how many were left out.
func truncateList(items []string, limit int) string {
	if len(items) == 0 {
		return "none"
	}
	if len(items) <= limit {
		return strings.Join(items, ", ")
	}
	return strings.Join(items[:limit], ", ") + " ... and " + strconv.Itoa(len(items)-limit) + " more"
}
