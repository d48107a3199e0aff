package metrics

import "strings"

// statementLabel keeps label cardinality bounded by the leading SQL keyword.
func statementLabel(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "unknown"
	}
	switch kw := strings.ToLower(fields[0]); kw {
	case "select", "insert", "update", "delete", "with", "create":
		return kw
	default:
		return "other"
	}
}
