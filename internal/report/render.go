package report

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/FranLegon/mailbox-usage-report/internal/quota"
	"github.com/FranLegon/mailbox-usage-report/internal/size"
	"github.com/fatih/color"
)

// Options control rendering.
type Options struct {
	// Top limits the folder table to the largest N folders. Zero shows all.
	Top   int
	Color bool
}

type palette struct {
	header, bad, warn, good, muted *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		header: color.New(color.Bold),
		bad:    color.New(color.FgRed, color.Bold),
		warn:   color.New(color.FgYellow),
		good:   color.New(color.FgGreen),
		muted:  color.New(color.Faint),
	}
	for _, c := range []*color.Color{p.header, p.bad, p.warn, p.good, p.muted} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// Render writes the folder table followed by the quota summary.
func Render(w io.Writer, r *Report, opts Options) error {
	p := newPalette(opts.Color)

	name := r.Identity
	if r.DisplayName != "" {
		name = r.DisplayName
	}
	if r.Address != "" {
		name += " <" + r.Address + ">"
	}
	fmt.Fprintln(w, p.header.Sprintf("Mailbox usage report: %s", name))
	if r.Database != "" {
		fmt.Fprintf(w, "Database: %s\n", r.Database)
	}
	fmt.Fprintf(w, "Generated: %s\n\n", r.GeneratedAt.Format("2006-01-02 15:04:05"))

	folders := r.Folders
	if opts.Top > 0 && opts.Top < len(folders) {
		folders = folders[:opts.Top]
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FOLDER\tTYPE\tITEMS\tITEMS (WITH SUBFOLDERS)\tSIZE\tSIZE (MB)")
	for _, f := range folders {
		mb := size.NotAvailable
		if f.Parsed() {
			mb = size.FormatMB(f.SizeMB)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n", f.Path, f.Type, f.ItemCount, f.SubfolderItemCount, f.SizeDisplay, mb)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(folders) < len(r.Folders) {
		fmt.Fprintln(w, p.muted.Sprintf("(showing %d of %d folders)", len(folders), len(r.Folders)))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, p.header.Sprint("Quota summary"))
	line := func(label, value string) {
		fmt.Fprintf(w, "  %-28s %s\n", label+":", value)
	}
	line("Total used (computed)", size.FormatMB(r.TotalUsedMB)+" MB")
	line("Total item size (server)", r.ServerTotalItemSize)
	line("Issue warning quota", settingText(p, r.IssueWarning))
	line("Prohibit send quota", settingText(p, r.ProhibitSend))
	line("Prohibit send/receive quota", settingText(p, r.ProhibitSendReceive))
	line("Free space", headroomText(p, r.FreeSpace))
	if pct, ok := quota.PercentUsed(r.ProhibitSend, r.TotalUsedMB); ok {
		line("Used of prohibit send quota", strconv.FormatFloat(pct, 'f', 2, 64)+"%")
	}
	line("State", stateText(p, r.State))
	return nil
}

func settingText(p palette, s quota.Setting) string {
	if !s.IsSet() {
		return p.muted.Sprint(s.String())
	}
	return s.String()
}

func headroomText(p palette, h quota.Headroom) string {
	switch {
	case !h.Computable():
		return p.muted.Sprint(h.String())
	case h.OverQuota():
		return p.bad.Sprint(h.String() + " (over quota)")
	default:
		return p.good.Sprint(h.String())
	}
}

func stateText(p palette, s quota.State) string {
	switch s {
	case quota.StateSendProhibited:
		return p.bad.Sprint(string(s))
	case quota.StateWarning:
		return p.warn.Sprint(string(s))
	case quota.StateOK:
		return p.good.Sprint(string(s))
	default:
		return p.muted.Sprint(string(s))
	}
}
