package intake

import (
	"strings"
	"time"

	"github.com/brickdatalab/clear-scrub-sub001/internal/model"
)

// feeKeywords reclassify a withdrawal as a fee when any of them appears in
// the description (case-insensitive).
var feeKeywords = []string{"NSF", "FEE", "OVERDRAFT", "SERVICE", "CHARGE"}

// reversalKeywords mark credits that are not revenue (returned payments,
// fee reversals) and are excluded from true revenue.
var reversalKeywords = []string{"REFUND", "REVERSAL", "RETURN"}

func containsAny(description string, keywords []string) bool {
	upper := strings.ToUpper(description)
	for _, kw := range keywords {
		if strings.Contains(upper, kw) {
			return true
		}
	}
	return false
}

// classify determines the transaction kind from the signed amount and the
// description. Sign wins first: credits are deposits; debits are withdrawals
// unless the description marks them as a fee.
func classify(amount float64, description string) model.TransactionKind {
	if amount >= 0 {
		return model.KindDeposit
	}
	if containsAny(description, feeKeywords) {
		return model.KindFee
	}
	return model.KindWithdrawal
}

// buildTransactions converts validated line items into model rows, assigning
// stable sequence numbers from input order. Dates were already validated.
func buildTransactions(items []TransactionItem) []model.Transaction {
	out := make([]model.Transaction, 0, len(items))
	for i, item := range items {
		date, _ := time.Parse(dateLayout, item.Date)
		out = append(out, model.Transaction{
			Date:           date,
			Description:    item.Description,
			Amount:         item.Amount,
			RunningBalance: item.RunningBalance,
			Kind:           classify(item.Amount, item.Description),
			Sequence:       i + 1,
		})
	}
	return out
}

// computeMetrics derives the statement quality metrics from classified
// transactions. Negative-balance days count distinct dates on which the
// running balance dipped below zero. True revenue is total deposits minus
// reversal-like credits.
func computeMetrics(transactions []model.Transaction) StatementMetrics {
	var m StatementMetrics
	negativeDates := map[string]bool{}

	for _, tx := range transactions {
		if tx.Kind == model.KindDeposit {
			m.DepositCount++
			if !containsAny(tx.Description, reversalKeywords) {
				m.TrueRevenue += tx.Amount
			}
		}
		if containsAny(tx.Description, []string{"NSF"}) {
			m.NSFCount++
		}
		if tx.RunningBalance < 0 {
			negativeDates[tx.Date.Format(dateLayout)] = true
		}
	}

	m.NegativeBalanceDays = len(negativeDates)
	return m
}
