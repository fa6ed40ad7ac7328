package bank

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Date windows accepted by WindowStart.
const (
	WindowAll   = "all"
	WindowToday = "today"
	WindowWeek  = "week"
	WindowMonth = "month"
)

// TypeAll matches every transaction type.
const TypeAll = "all"

// TransactionFilter selects transactions. Zero fields match everything.
type TransactionFilter struct {
	// Query matches account numbers as a substring, and emails and the
	// description case-insensitively. Single-account records (withdrawals,
	// deposits) match on their own account and email.
	Query string
	// Type is a transaction kind or TypeAll.
	Type string
	// Since drops transactions created before it.
	Since time.Time
}

// WindowStart returns the earliest creation time window admits, relative
// to now. "today" starts at midnight UTC; WindowAll and "" return the zero
// time.
func WindowStart(window string, now time.Time) (time.Time, error) {
	now = now.UTC()
	switch window {
	case "", WindowAll:
		return time.Time{}, nil
	case WindowToday:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	case WindowWeek:
		return now.AddDate(0, 0, -7), nil
	case WindowMonth:
		return now.AddDate(0, -1, 0), nil
	default:
		return time.Time{}, fmt.Errorf("unknown date window %q", window)
	}
}

// Match reports whether tx passes f.
func (f TransactionFilter) Match(tx Transaction) bool {
	if f.Type != "" && f.Type != TypeAll && tx.Kind() != f.Type {
		return false
	}
	if !f.Since.IsZero() && tx.CreatedAt.Before(f.Since) {
		return false
	}
	if f.Query == "" {
		return true
	}

	for _, number := range []string{tx.SenderAccountNumber, tx.RecipientAccountNumber, tx.AccountNumber} {
		if strings.Contains(number, f.Query) {
			return true
		}
	}
	q := strings.ToLower(f.Query)
	for _, field := range []string{tx.SenderEmail, tx.RecipientEmail, tx.Email, tx.Description} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// FilterTransactions returns the transactions matching f, in input order.
func FilterTransactions(txs []Transaction, f TransactionFilter) []Transaction {
	out := make([]Transaction, 0, len(txs))
	for _, tx := range txs {
		if f.Match(tx) {
			out = append(out, tx)
		}
	}
	return out
}

// Timestamped is a record with a time it was last touched.
type Timestamped interface {
	Timestamp() time.Time
}

// Timestamp returns the creation time.
func (t Transaction) Timestamp() time.Time { return t.CreatedAt }

// Timestamp returns the creation time.
func (a Account) Timestamp() time.Time { return a.CreatedAt }

// Timestamp returns the application date.
func (l LoanApplication) Timestamp() time.Time { return l.ApplicationDate }

// Timestamp returns the request date.
func (r ChequeBookRequest) Timestamp() time.Time { return r.RequestDate }

// Timestamp returns the last status change, or the creation time.
func (r MoneyRequest) Timestamp() time.Time {
	if !r.UpdatedAt.IsZero() {
		return r.UpdatedAt
	}
	return r.CreatedAt
}

// NewestFirst returns a copy of items sorted by descending Timestamp.
// Records with equal times keep their relative order.
func NewestFirst[T Timestamped](items []T) []T {
	out := append([]T(nil), items...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp().After(out[j].Timestamp())
	})
	return out
}
