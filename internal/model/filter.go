package model

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 50
	MaxQueryLength  = 200
)

// DocumentFilter narrows a user's document list. Zero Page and PageSize mean
// "use the default"; explicit out-of-range values are rejected by Validate.
type DocumentFilter struct {
	Page            int
	PageSize        int
	Query           string
	Type            string
	ExpiresBefore   *time.Time
	ExpiresAfter    *time.Time
	IncludeNoExpiry bool
}

type DocumentPage struct {
	Page     int        `json:"page"`
	PageSize int        `json:"pageSize"`
	Total    int        `json:"total"`
	Items    []Document `json:"items"`
}

// Offset of the first row of the page.
func (f DocumentFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

func (f DocumentFilter) HasExpiryBound() bool {
	return f.ExpiresBefore != nil || f.ExpiresAfter != nil
}

// Validate trims the text filters and checks the list rules.
func (f *DocumentFilter) Validate() error {
	var errs ValidationErrors

	if f.Page < 1 {
		errs.add("page", "must be >= 1")
	}
	if f.PageSize < 1 || f.PageSize > MaxPageSize {
		errs.add("pageSize", "must be between 1 and 50")
	}

	f.Query = strings.TrimSpace(f.Query)
	if utf8.RuneCountInString(f.Query) > MaxQueryLength {
		errs.add("q", "is too long")
	}
	f.Type = strings.TrimSpace(f.Type)
	if utf8.RuneCountInString(f.Type) > MaxTypeLength {
		errs.add("type", "is too long")
	}

	if f.ExpiresBefore != nil {
		d := DateOf(*f.ExpiresBefore)
		f.ExpiresBefore = &d
	}
	if f.ExpiresAfter != nil {
		d := DateOf(*f.ExpiresAfter)
		f.ExpiresAfter = &d
	}
	if f.ExpiresBefore != nil && f.ExpiresAfter != nil && f.ExpiresAfter.After(*f.ExpiresBefore) {
		errs.add("expiresAfter", "must be <= expiresBefore")
	}
	if f.IncludeNoExpiry && !f.HasExpiryBound() {
		errs.add("includeNoExpiry", "only makes sense when expiresAfter and/or expiresBefore is provided")
	}

	return errs.err()
}

// Matches applies the filter to one document in memory, for stores that
// cannot express it in SQL.
func (f DocumentFilter) Matches(d *Document) bool {
	if f.Query != "" && !strings.Contains(strings.ToLower(d.Title), strings.ToLower(f.Query)) {
		return false
	}
	if f.Type != "" && !strings.EqualFold(d.Type, f.Type) {
		return false
	}
	if !f.HasExpiryBound() {
		return true
	}
	if d.ExpiresOn == nil {
		return f.IncludeNoExpiry
	}
	if f.ExpiresBefore != nil && d.ExpiresOn.After(*f.ExpiresBefore) {
		return false
	}
	if f.ExpiresAfter != nil && d.ExpiresOn.Before(*f.ExpiresAfter) {
		return false
	}
	return true
}
