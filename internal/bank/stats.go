package bank

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/vyrodovalexey/avabank/internal/observability"
)

// CurrencyPrefix is printed before formatted amounts.
const CurrencyPrefix = "TK "

// DateLayout is the key format of the per-day series.
const DateLayout = "2006-01-02"

// Totals is a count and amount pair.
type Totals struct {
	Count  int
	Amount float64
}

// DayTotals is the activity of one calendar day (UTC).
type DayTotals struct {
	Date string
	Totals
}

// RecentLimit is how many transactions Summary.Recent holds.
const RecentLimit = 5

// Summary is the admin dashboard overview.
type Summary struct {
	Total Totals
	// ByType covers send-money, withdraw and deposit only. Other kinds
	// count towards Total.
	ByType        map[string]Totals
	Daily         []DayTotals
	Recent        []Transaction
	Loans         map[Status]int
	LoanAmounts   LoanAmounts
	ChequeBooks   map[Status]int
	MoneyRequests map[Status]int
}

// LoanAmounts sums requested loan amounts.
type LoanAmounts struct {
	Requested float64
	Approved  float64
	Pending   float64
}

// Activity is the raw data a Summary is computed from.
type Activity struct {
	Transactions  []Transaction
	Loans         []LoanApplication
	ChequeBooks   []ChequeBookRequest
	MoneyRequests []MoneyRequest
}

// Summarize computes dashboard statistics. The per-day series is sorted by
// date; transactions without a timestamp are counted in the totals only.
func Summarize(a Activity) Summary {
	s := Summary{
		ByType:        map[string]Totals{TypeSendMoney: {}, TypeWithdraw: {}, TypeDeposit: {}},
		Loans:         make(map[Status]int),
		ChequeBooks:   make(map[Status]int),
		MoneyRequests: make(map[Status]int),
	}

	days := make(map[string]*DayTotals)
	for _, tx := range a.Transactions {
		s.Total.Count++
		s.Total.Amount += tx.Amount

		if t, ok := s.ByType[tx.Kind()]; ok {
			t.Count++
			t.Amount += tx.Amount
			s.ByType[tx.Kind()] = t
		}

		if tx.CreatedAt.IsZero() {
			continue
		}
		key := tx.CreatedAt.UTC().Format(DateLayout)
		d, ok := days[key]
		if !ok {
			d = &DayTotals{Date: key}
			days[key] = d
		}
		d.Count++
		d.Amount += tx.Amount
	}

	s.Daily = make([]DayTotals, 0, len(days))
	for _, d := range days {
		s.Daily = append(s.Daily, *d)
	}
	sort.Slice(s.Daily, func(i, j int) bool { return s.Daily[i].Date < s.Daily[j].Date })

	s.Recent = NewestFirst(a.Transactions)
	if len(s.Recent) > RecentLimit {
		s.Recent = s.Recent[:RecentLimit]
	}

	for _, l := range a.Loans {
		st := displayStatus(l.Status)
		s.Loans[st]++
		s.LoanAmounts.Requested += l.LoanAmount
		switch st {
		case StatusApproved:
			s.LoanAmounts.Approved += l.LoanAmount
		case StatusPending:
			s.LoanAmounts.Pending += l.LoanAmount
		}
	}
	for _, c := range a.ChequeBooks {
		s.ChequeBooks[displayStatus(c.Status)]++
	}
	for _, r := range a.MoneyRequests {
		s.MoneyRequests[displayStatus(r.Status)]++
	}

	return s
}

// LastDays returns the trailing n entries of the per-day series.
func (s Summary) LastDays(n int) []DayTotals {
	if n <= 0 || n >= len(s.Daily) {
		return s.Daily
	}
	return s.Daily[len(s.Daily)-n:]
}

// FormatAmount renders amount with grouping separators for tag, for
// example "TK 1,234.50".
func FormatAmount(tag language.Tag, amount float64) string {
	return CurrencyPrefix + message.NewPrinter(tag).Sprintf("%.2f", amount)
}

// Report renders the summary as plain text for tag.
func (s Summary) Report(tag language.Tag, days int) string {
	p := message.NewPrinter(tag)
	var b strings.Builder

	fmt.Fprintf(&b, "Transactions: %s, total %s\n",
		p.Sprintf("%d", s.Total.Count), FormatAmount(tag, s.Total.Amount))

	types := make([]string, 0, len(s.ByType))
	for k := range s.ByType {
		types = append(types, k)
	}
	sort.Strings(types)
	for _, k := range types {
		t := s.ByType[k]
		fmt.Fprintf(&b, "  %-12s %6s  %s\n", k, p.Sprintf("%d", t.Count), FormatAmount(tag, t.Amount))
	}

	if daily := s.LastDays(days); len(daily) > 0 {
		b.WriteString("Daily:\n")
		for _, d := range daily {
			fmt.Fprintf(&b, "  %s %6s  %s\n", d.Date, p.Sprintf("%d", d.Count), FormatAmount(tag, d.Amount))
		}
	}

	if len(s.Recent) > 0 {
		b.WriteString("Recent:\n")
		for _, tx := range s.Recent {
			fmt.Fprintf(&b, "  %s %-12s %s\n",
				tx.CreatedAt.UTC().Format(DateLayout), tx.Kind(), FormatAmount(tag, tx.Amount))
		}
	}

	writeStatuses(&b, "Loans", s.Loans)
	if len(s.Loans) > 0 {
		fmt.Fprintf(&b, "Loan amounts: requested %s, approved %s, pending %s\n",
			FormatAmount(tag, s.LoanAmounts.Requested),
			FormatAmount(tag, s.LoanAmounts.Approved),
			FormatAmount(tag, s.LoanAmounts.Pending))
	}
	writeStatuses(&b, "Cheque books", s.ChequeBooks)
	writeStatuses(&b, "Balance requests", s.MoneyRequests)

	return b.String()
}

func writeStatuses(b *strings.Builder, title string, counts map[Status]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[Status(k)]))
	}
	fmt.Fprintf(b, "%s: %s\n", title, strings.Join(parts, " "))
}

// Dashboard fetches all activity concurrently and summarizes it. Admin
// only. The first failure cancels the remaining requests.
func (c *Client) Dashboard(ctx context.Context) (Summary, error) {
	var a Activity

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		a.Transactions, err = c.AllTransactions(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		a.Loans, err = c.AllLoans(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		a.ChequeBooks, err = c.AllChequeRequests(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		a.MoneyRequests, err = c.AllMoneyRequests(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return Summary{}, fmt.Errorf("dashboard: %w", err)
	}

	c.logger.Debug("dashboard fetched",
		observability.Int("transactions", len(a.Transactions)),
		observability.Int("loans", len(a.Loans)),
		observability.Int("cheque_books", len(a.ChequeBooks)),
		observability.Int("money_requests", len(a.MoneyRequests)),
	)
	return Summarize(a), nil
}
