/*
report.go - Text rendering for amounts, dates, and the overdue report

PURPOSE:
  All user-visible formatting of calculator output lives here: two-decimal
  amounts with the currency suffix, DD.MM.YYYY dates, the overdue report
  layout, and chunking of long reports to the transport's message limit.
*/
package debt

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MaxMessageLen is the transport's safe message-size boundary.
const MaxMessageLen = 4096

// FormatAmount renders an amount with two decimal places and the currency
// suffix: "1000.50 руб.".
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2) + " руб."
}

// FormatDate renders a date as DD.MM.YYYY.
func FormatDate(t time.Time) string {
	return t.Format("02.01.2006")
}

// RenderOverdueReport produces the full overdue report text. Returns "" for
// an empty report; the caller decides on the "no overdue debts" message.
func RenderOverdueReport(report []ClientOverdue) string {
	if len(report) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("⚠️ Просроченные долги:\n\n")
	for _, entry := range report {
		fmt.Fprintf(&b, "👤 Клиент: %s\n", entry.Client.Name)
		fmt.Fprintf(&b, "📱 Телефон: %s\n", entry.Client.Phone)
		fmt.Fprintf(&b, "💰 Общий долг: %s\n", FormatAmount(entry.TotalBilled))
		fmt.Fprintf(&b, "💵 Оплачено: %s\n", FormatAmount(entry.TotalPaid))
		fmt.Fprintf(&b, "📊 Остаток: %s\n\n", FormatAmount(entry.Outstanding))
		b.WriteString("Просроченные чеки:\n")
		for _, line := range entry.Receipts {
			fmt.Fprintf(&b, "- %s (просрочка %d дней)\n", FormatAmount(line.Amount), line.DaysOverdue)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// ChunkMessage splits text into pieces no longer than limit runes, preferring
// to break at line boundaries. A single line longer than the limit is split
// mid-line.
func ChunkMessage(text string, limit int) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var chunks []string
	var current []rune
	// A chunk opened by a blank line must keep it, so emptiness of current
	// cannot stand in for "no lines consumed yet".
	started := false
	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, string(current))
		}
		current = current[:0]
		started = false
	}

	for _, line := range strings.Split(text, "\n") {
		lr := []rune(line)
		oversized := len(lr) > limit
		for len(lr) > limit {
			// Oversized line: hard split.
			flush()
			chunks = append(chunks, string(lr[:limit]))
			lr = lr[limit:]
		}
		if oversized && len(lr) == 0 {
			continue
		}
		// +1 for the newline separator
		if started && len(current)+1+len(lr) > limit {
			flush()
		}
		if started {
			current = append(current, '\n')
		}
		current = append(current, lr...)
		started = true
	}
	flush()
	return chunks
}
