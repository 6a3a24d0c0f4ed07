package microsoft

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
)

// usageRow is one line of the mailbox usage detail report. Quotas are -1
// when the report leaves them empty.
type usageRow struct {
	UserPrincipalName   string
	ItemCount           int64
	StorageUsed         int64
	IssueWarning        int64
	ProhibitSend        int64
	ProhibitSendReceive int64
}

const (
	colUPN                 = "User Principal Name"
	colItemCount           = "Item Count"
	colStorageUsed         = "Storage Used (Byte)"
	colIssueWarning        = "Issue Warning Quota (Byte)"
	colProhibitSend        = "Prohibit Send Quota (Byte)"
	colProhibitSendReceive = "Prohibit Send/Receive Quota (Byte)"
)

// parseUsageReport reads the CSV returned by reports/getMailboxUsageDetail,
// keyed by lower-cased user principal name.
func parseUsageReport(data []byte) (map[string]usageRow, error) {
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse mailbox usage report: %w", err)
	}
	if len(records) == 0 {
		return map[string]usageRow{}, nil
	}

	index := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		index[strings.TrimSpace(name)] = i
	}
	if _, ok := index[colUPN]; !ok {
		return nil, fmt.Errorf("mailbox usage report has no %q column", colUPN)
	}

	field := func(rec []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	number := func(rec []string, col string) int64 {
		v, err := strconv.ParseInt(field(rec, col), 10, 64)
		if err != nil {
			return -1
		}
		return v
	}

	rows := make(map[string]usageRow, len(records)-1)
	for _, rec := range records[1:] {
		upn := field(rec, colUPN)
		if upn == "" {
			continue
		}
		rows[strings.ToLower(upn)] = usageRow{
			UserPrincipalName:   upn,
			ItemCount:           number(rec, colItemCount),
			StorageUsed:         number(rec, colStorageUsed),
			IssueWarning:        number(rec, colIssueWarning),
			ProhibitSend:        number(rec, colProhibitSend),
			ProhibitSendReceive: number(rec, colProhibitSendReceive),
		}
	}
	return rows, nil
}

// namesConcealed reports whether the usage report hides user names. Tenants
// with "Display concealed user, group, and site names in all reports" turned
// on return hashes instead of user principal names.
func namesConcealed(rows map[string]usageRow) bool {
	if len(rows) == 0 {
		return false
	}
	for upn := range rows {
		if strings.Contains(upn, "@") {
			return false
		}
	}
	return true
}
