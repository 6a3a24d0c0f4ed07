// Package size converts the human readable size strings printed by Exchange
// ("1.2 GB (1,288,490,188 bytes)", "512 MB", "340 KB") into megabytes.
package size

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// NotAvailable is the display text for a size that could not be read.
const NotAvailable = "N/A"

type unitRule struct {
	unit    string
	pattern *regexp.Regexp
	toMB    func(float64) float64
	display func(raw string, mb float64) string
}

// unitPattern matches a whole number followed by unit. The number must not be
// the tail of a longer token, so ".5 GB", "1e3 MB" and "-200 MB" do not match.
func unitPattern(unit string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:^|[^\w.,+\-])(\d+(?:,\d{3})*(?:\.\d+)?)\s+` + unit + `\b`)
}

// rules are evaluated in order. A string such as "1 GB (1,024 MB)" must be read
// as gigabytes, so GB is tried before MB and MB before KB.
var rules = []unitRule{
	{
		unit:    "GB",
		pattern: unitPattern("GB"),
		toMB:    func(v float64) float64 { return Round(v * 1024) },
		display: func(raw string, _ float64) string { return raw + " GB" },
	},
	{
		unit:    "MB",
		pattern: unitPattern("MB"),
		toMB:    Round,
		display: func(_ string, mb float64) string { return FormatMB(mb) + " MB" },
	},
	{
		unit:    "KB",
		pattern: unitPattern("KB"),
		toMB:    func(v float64) float64 { return Round(v / 1024) },
		display: func(raw string, _ float64) string { return raw + " KB" },
	},
}

// Parse reads the first number followed by a GB, MB or KB unit. Anything else,
// including "0 B" and "3 TB", yields (0, "N/A"). Parse never fails.
func Parse(raw string) (float64, string) {
	for _, r := range rules {
		m := r.pattern.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil {
			return 0, NotAvailable
		}
		mb := r.toMB(v)
		return mb, r.display(m[1], mb)
	}
	return 0, NotAvailable
}

// Round rounds half away from zero to two decimal places. It rounds the
// shortest decimal form of v, so 1.005 becomes 1.01.
func Round(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// FormatMB prints a megabyte value without trailing zeros.
func FormatMB(mb float64) string {
	return strconv.FormatFloat(Round(mb), 'f', -1, 64)
}

var grouping = message.NewPrinter(language.English)

// Format renders a byte count the way Exchange prints ByteQuantifiedSize,
// e.g. "1.5 GB (1,610,612,736 bytes)". Units stop at GB.
func Format(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	units := []string{"B", "KB", "MB", "GB"}
	v := float64(bytes)
	i := 0
	for v >= 1024 && i < len(units)-1 {
		v /= 1024
		i++
	}
	num := strconv.FormatFloat(math.Round(v*1000)/1000, 'f', -1, 64)
	return grouping.Sprintf("%s %s (%d bytes)", num, units[i], bytes)
}
