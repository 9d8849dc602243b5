package http

import (
	"html/template"
	"strconv"

	"github.com/shopspring/decimal"

	"expensia/internal/core"
)

func (s *Server) templateFuncs() template.FuncMap {
	return template.FuncMap{
		"money": core.FormatCurrency,
		"moneyPtr": func(m *core.Money, currency string) string {
			if m == nil {
				return core.FormatCurrency(core.Zero(), currency)
			}
			return core.FormatCurrency(*m, currency)
		},
		"intPtr": func(n *int) int {
			if n == nil {
				return 0
			}
			return *n
		},
		"percent": core.FormatPercent,
		"percentWidth": func(p decimal.Decimal) string {
			return p.StringFixed(1)
		},
		"date":         core.FormatDate,
		"relativeDate": core.RelativeDate,
		"monthName":    core.MonthName,
		"shortMonth":   core.ShortMonthName,
		"typeLabel":    core.TransactionTypeLabel,
		"countdown":    core.FormatCountdown,
		"months": func() []int {
			return []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
		},
		"years": func(selected int) []int {
			current := s.now().Year()
			out := make([]int, 0, 6)
			for y := current - 4; y <= current+1; y++ {
				out = append(out, y)
			}
			if selected < current-4 || selected > current+1 {
				out = append([]int{selected}, out...)
			}
			return out
		},
		"add":   func(a, b int) int { return a + b },
		"itoa":  strconv.Itoa,
		"id":    func(n int64) string { return strconv.FormatInt(n, 10) },
		"dict":  dict,
		"title": func(f core.Frequency) string { return f.Display() },
	}
}

// dict builds a map from alternating keys and values so a template can pass
// several values to a nested template.
func dict(kv ...any) map[string]any {
	m := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			m[k] = kv[i+1]
		}
	}
	return m
}
