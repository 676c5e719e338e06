// Package normalize maps the heterogeneous status labels carried by listing
// data onto a closed canonical enumeration and derives the prices to display
// from it. Raw labels come from two legacy systems, one Chinese and one
// English, and must never be used directly.
package normalize

import "strings"

// Status is the canonical listing status. It is derived, never stored.
type Status string

const (
	StatusForSale Status = "FOR_SALE"
	StatusSold    Status = "SOLD"
	StatusOther   Status = "OTHER"
)

// statusSynonyms maps every known legacy spelling onto a canonical bucket.
// Lookup is case-sensitive; callers that miss retry with the uppercased input.
var statusSynonyms = map[string]Status{
	// Chinese labels
	"在售":  StatusForSale,
	"出售中": StatusForSale,
	"挂牌":  StatusForSale,
	"待售":  StatusForSale,
	"成交":  StatusSold,
	"已成交": StatusSold,
	"已售":  StatusSold,
	"售出":  StatusSold,
	"下架":  StatusOther,
	"已下架": StatusOther,
	"暂停":  StatusOther,
	"待定":  StatusOther,

	// English labels
	"FOR_SALE":       StatusForSale,
	"LISTED":         StatusForSale,
	"ON_MARKET":      StatusForSale,
	"AVAILABLE":      StatusForSale,
	"ACTIVE":         StatusForSale,
	"SOLD":           StatusSold,
	"CLOSED":         StatusSold,
	"COMPLETED":      StatusSold,
	"WITHDRAWN":      StatusOther,
	"CANCELLED":      StatusOther,
	"PENDING":        StatusOther,
	"UNDER_CONTRACT": StatusOther,
	"OFF_MARKET":     StatusOther,
	"SUSPENDED":      StatusOther,
}

// NormalizeStatus canonicalizes a raw status label. It is total: unknown,
// empty, or whitespace-only input degrades to StatusOther rather than erroring.
func NormalizeStatus(raw string) Status {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return StatusOther
	}
	if s, ok := statusSynonyms[raw]; ok {
		return s
	}
	if s, ok := statusSynonyms[strings.ToUpper(raw)]; ok {
		return s
	}
	return StatusOther
}
