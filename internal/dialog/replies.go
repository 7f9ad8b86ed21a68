package dialog

import (
	"fmt"
	"sort"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/subhatanay/expenseapp/internal/domain"
)

const (
	replyFailure        = "❌ Something went wrong, please try again."
	replyMissingUser    = "❌ Could not identify the sender."
	replyNoContext      = "❌ No context selected. Use 'switch <name>' first."
	replyNoContexts     = "📂 You have no contexts yet. Send 'create <name>' to start one."
	replyBatchStarted   = "📝 Send one '<item> <amount>' per message. Send 'done' to save them."
	replyBufferFormat   = "❌ Expected '<item> <amount>', or 'done' to save."
	replyEmptyBatch     = "ℹ️ Nothing to save."
	replyBadAmount      = "❌ Amount must be a number, e.g. 'add tea 10'."
	replyNothingPending = "✅ No pending transactions."
	replyNoPendingList  = "❌ No pending list to tag from. Send 'show pending' first."
	replyTagUsage       = "❌ Use 'tag <number> <category>'."
	replyBadDate        = "❌ Dates look like 2024-06-01."
	replyBadMonth       = "❌ Months look like 2024-06."
	replySummaryUsage   = "❌ Use 'summary', 'summary date YYYY-MM-DD' or 'summary month YYYY-MM'."
	replyShowUsage      = "❌ Use 'show' or 'show date YYYY-MM-DD'."
)

const replyHelp = `👋 Welcome to Expense Bot!
Use:
• create <name> / list / switch <name>
• add <item> <amount>
• add, then '<item> <amount>' lines, then done
• show pending / tag <number> <category>
• summary [date YYYY-MM-DD | month YYYY-MM]
• show [date YYYY-MM-DD]`

func money(d decimal.Decimal) string {
	return "₹" + d.StringFixed(2)
}

func label(tx *domain.Transaction) string {
	if !tx.Pending() {
		return *tx.Item
	}
	return tx.Merchant
}

func formatContexts(contexts []*domain.LedgerContext, current string) string {
	var b strings.Builder
	b.WriteString("📂 Your contexts:")
	for _, c := range contexts {
		marker := ""
		if c.ID == current {
			marker = " (current)"
		}
		fmt.Fprintf(&b, "\n• %s%s", c.Name, marker)
	}
	return b.String()
}

func formatPending(pending []*domain.Transaction) string {
	var b strings.Builder
	b.WriteString("🕒 Pending transactions:")
	for i, tx := range pending {
		fmt.Fprintf(&b, "\n%d. %s %s %s (%s)", i+1, tx.Date, tx.Merchant, money(tx.Amount), tx.Action)
	}
	b.WriteString("\nReply 'tag <number> <category>'.")
	return b.String()
}

// totals splits rows into the debit total and the credit total.
func totals(txs []*domain.Transaction) (debits, credits decimal.Decimal) {
	for _, tx := range txs {
		if tx.Action == domain.ActionCredit {
			credits = credits.Add(tx.Amount)
		} else {
			debits = debits.Add(tx.Amount)
		}
	}
	return debits, credits
}

func writeTotals(b *strings.Builder, txs []*domain.Transaction) {
	debits, credits := totals(txs)
	fmt.Fprintf(b, "\nTotal: %s", money(debits))
	if credits.IsPositive() {
		fmt.Fprintf(b, "\nCredits: %s", money(credits))
	}
}

// formatDaySummary groups debits by item.
func formatDaySummary(contextName string, d civil.Date, txs []*domain.Transaction) string {
	if len(txs) == 0 {
		return fmt.Sprintf("📊 No expenses in '%s' on %s.", contextName, d)
	}

	sums := make(map[string]decimal.Decimal)
	var order []string
	for _, tx := range txs {
		if tx.Action == domain.ActionCredit {
			continue
		}
		l := label(tx)
		if _, ok := sums[l]; !ok {
			order = append(order, l)
		}
		sums[l] = sums[l].Add(tx.Amount)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 '%s' on %s:", contextName, d)
	for _, l := range order {
		fmt.Fprintf(&b, "\n• %s: %s", l, money(sums[l]))
	}
	writeTotals(&b, txs)
	return b.String()
}

// formatMonthSummary groups debits by date.
func formatMonthSummary(contextName, month string, txs []*domain.Transaction) string {
	if len(txs) == 0 {
		return fmt.Sprintf("📊 No expenses in '%s' for %s.", contextName, month)
	}

	sums := make(map[civil.Date]decimal.Decimal)
	for _, tx := range txs {
		if tx.Action == domain.ActionCredit {
			continue
		}
		sums[tx.Date] = sums[tx.Date].Add(tx.Amount)
	}
	dates := make([]civil.Date, 0, len(sums))
	for d := range sums {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	var b strings.Builder
	fmt.Fprintf(&b, "📊 '%s' for %s:", contextName, month)
	for _, d := range dates {
		fmt.Fprintf(&b, "\n• %s: %s", d, money(sums[d]))
	}
	writeTotals(&b, txs)
	return b.String()
}

func formatListing(contextName string, d civil.Date, txs []*domain.Transaction) string {
	if len(txs) == 0 {
		return fmt.Sprintf("📄 No transactions in '%s' on %s.", contextName, d)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📄 '%s' on %s:", contextName, d)
	for i, tx := range txs {
		fmt.Fprintf(&b, "\n%d. %s %s (%s)", i+1, label(tx), money(tx.Amount), tx.Action)
	}
	return b.String()
}
