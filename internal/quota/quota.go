// Package quota resolves mailbox quota settings against their database-level
// defaults and computes the remaining headroom.
package quota

import (
	"strings"

	"github.com/FranLegon/mailbox-usage-report/internal/size"
)

// UnsetText is how an unset quota is shown to the user.
const UnsetText = "Default (N/A)"

// Setting is either unset (no limit configured at this level) or a
// non-negative size in megabytes. The zero value is unset.
type Setting struct {
	mb  float64
	set bool
}

// Unset returns a setting with no limit configured.
func Unset() Setting {
	return Setting{}
}

// MB returns a setting of mb megabytes. Negative values are clamped to zero.
func MB(mb float64) Setting {
	if mb < 0 {
		mb = 0
	}
	return Setting{mb: mb, set: true}
}

// Bytes returns a setting from a byte count, rounded to two decimals of a megabyte.
func Bytes(b int64) Setting {
	return MB(size.Round(float64(b) / 1024 / 1024))
}

// ParseSetting reads a quota as printed by Exchange. Empty text, "Unlimited",
// "Default (N/A)" and anything the size parser cannot read are unset.
func ParseSetting(text string) Setting {
	t := strings.TrimSpace(text)
	if t == "" || strings.EqualFold(t, "unlimited") || strings.EqualFold(t, UnsetText) {
		return Unset()
	}
	mb, display := size.Parse(t)
	if display == size.NotAvailable {
		return Unset()
	}
	return MB(mb)
}

// IsSet reports whether a limit is configured.
func (s Setting) IsSet() bool {
	return s.set
}

// Value returns the limit in megabytes and whether it is set.
func (s Setting) Value() (float64, bool) {
	return s.mb, s.set
}

func (s Setting) String() string {
	if !s.set {
		return UnsetText
	}
	return size.FormatMB(s.mb) + " MB"
}

// Resolve returns primary when it is set, otherwise fallback when it is set,
// otherwise an unset setting.
func Resolve(primary, fallback Setting) Setting {
	if primary.set {
		return primary
	}
	if fallback.set {
		return fallback
	}
	return Unset()
}

// NotComputable is how headroom without a prohibit-send quota is shown.
const NotComputable = "Not computable"

// Headroom is the space left before a quota is reached. It is either a number
// of megabytes, negative when the mailbox is over its limit, or not computable.
type Headroom struct {
	mb         float64
	computable bool
}

// FreeSpace returns prohibitSend minus usedMB. It is not computable when
// prohibitSend is unset. Negative results are kept as they are.
func FreeSpace(prohibitSend Setting, usedMB float64) Headroom {
	limit, ok := prohibitSend.Value()
	if !ok {
		return Headroom{}
	}
	return Headroom{mb: size.Round(limit - usedMB), computable: true}
}

// Value returns the headroom in megabytes and whether it could be computed.
func (h Headroom) Value() (float64, bool) {
	return h.mb, h.computable
}

// Computable reports whether a limit was available to compute against.
func (h Headroom) Computable() bool {
	return h.computable
}

// OverQuota reports whether usage exceeds the limit.
func (h Headroom) OverQuota() bool {
	return h.computable && h.mb < 0
}

func (h Headroom) String() string {
	if !h.computable {
		return NotComputable
	}
	return size.FormatMB(h.mb) + " MB"
}

// PercentUsed returns usedMB as a percentage of limit. It is not available
// when limit is unset or zero.
func PercentUsed(limit Setting, usedMB float64) (float64, bool) {
	v, ok := limit.Value()
	if !ok || v == 0 {
		return 0, false
	}
	return size.Round(usedMB / v * 100), true
}

// State classifies usage against the warning and send limits.
type State string

const (
	StateOK             State = "OK"
	StateWarning        State = "Warning"
	StateSendProhibited State = "SendProhibited"
	StateUnknown        State = "Unknown"
)

// Classify reports the quota state for usedMB. With neither limit set the
// state is unknown.
func Classify(issueWarning, prohibitSend Setting, usedMB float64) State {
	if !issueWarning.IsSet() && !prohibitSend.IsSet() {
		return StateUnknown
	}
	if v, ok := prohibitSend.Value(); ok && usedMB >= v {
		return StateSendProhibited
	}
	if v, ok := issueWarning.Value(); ok && usedMB >= v {
		return StateWarning
	}
	return StateOK
}
