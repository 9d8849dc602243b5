package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"CNY": "CN¥",
	"INR": "₹",
	"AUD": "A$",
	"CAD": "CA$",
}

// zero-decimal currencies
var wholeUnitCurrencies = map[string]bool{"JPY": true}

// SupportedCurrencies lists the currencies offered in settings.
var SupportedCurrencies = []string{"USD", "EUR", "GBP", "JPY", "CNY", "INR", "AUD", "CAD"}

// SupportedTimezones lists the time zones offered in settings.
var SupportedTimezones = []string{
	"UTC", "America/New_York", "America/Chicago", "America/Denver", "America/Los_Angeles",
	"Europe/London", "Europe/Paris", "Europe/Berlin", "Asia/Tokyo", "Asia/Shanghai",
	"Asia/Kolkata", "Australia/Sydney",
}

// FormatCurrency renders m in en-US style for the given ISO currency code,
// e.g. "$1,234.50" or "-€12.00". Unknown codes are prefixed with the code.
func FormatCurrency(m Money, currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = DefaultCurrency
	}
	symbol, ok := currencySymbols[currency]
	if !ok {
		symbol = currency + " "
	}

	places := int32(2)
	if wholeUnitCurrencies[currency] {
		places = 0
	}

	d := m.Decimal.Round(places)
	neg := d.IsNegative()
	if neg {
		d = d.Neg()
	}

	s := d.StringFixed(places)
	intPart, frac, _ := strings.Cut(s, ".")
	out := symbol + groupThousands(intPart)
	if frac != "" {
		out += "." + frac
	}
	if neg {
		return "-" + out
	}
	return out
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// FormatPercent renders a percentage with one decimal place.
func FormatPercent(p decimal.Decimal) string {
	return p.StringFixed(1) + "%"
}

var monthNames = []string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// MonthName returns the full English month name, or "" when out of range.
func MonthName(month int) string {
	if month < 1 || month > 12 {
		return ""
	}
	return monthNames[month-1]
}

// ShortMonthName returns the three-letter month abbreviation.
func ShortMonthName(month int) string {
	name := MonthName(month)
	if name == "" {
		return ""
	}
	return name[:3]
}

// TransactionTypeLabel maps backend type names to display labels.
func TransactionTypeLabel(name string) string {
	switch name {
	case TypeNameIncome:
		return "Income"
	case TypeNameExpense:
		return "Expense"
	}
	return name
}

// UsernameFromEmail returns the local part of an email address.
func UsernameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}

// FormatCountdown renders seconds as m:ss.
func FormatCountdown(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
