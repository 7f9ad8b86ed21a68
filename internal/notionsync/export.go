package notionsync

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jomei/notionapi"

	"github.com/subhatanay/expenseapp/internal/domain"
	"github.com/subhatanay/expenseapp/internal/logger"
)

// ExportRequest selects the ledger rows to export.
type ExportRequest struct {
	UserID     string
	Context    string // context name
	From, To   civil.Date
	DatabaseID string
	DryRun     bool
}

// ExportResult counts what an export did (or would do, in a dry run).
type ExportResult struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Archived  int `json:"archived"`
	Failed    int `json:"failed"`
}

// ExportContext mirrors one context's transactions in [From, To] into a
// Notion database. Pages are matched on the Transaction ID property: new
// rows are created, rows whose item changed are updated, and pages of the
// same context whose row is gone from the window are archived. Failures on
// single pages are logged and counted; the export continues.
func ExportContext(ctx context.Context, contexts domain.ContextRepository, ledger domain.Ledger, db Database, req ExportRequest) (ExportResult, error) {
	log := logger.FromContext(ctx).With().
		Str("user_id", req.UserID).
		Str("context", req.Context).
		Bool("dry_run", req.DryRun).
		Logger()

	var res ExportResult

	lc, err := contexts.FindContext(ctx, req.UserID, req.Context)
	if err != nil {
		return res, fmt.Errorf("ExportContext: finding context: %w", err)
	}

	txs, err := ledger.QueryByContextAndDate(ctx, req.UserID, lc.ID, req.From, req.To)
	if err != nil {
		return res, fmt.Errorf("ExportContext: querying transactions: %w", err)
	}
	log.Info().Int("transaction_count", len(txs)).Msg("Retrieved transactions")

	pages, err := db.Rows(ctx, req.DatabaseID)
	if err != nil {
		return res, fmt.Errorf("ExportContext: listing pages: %w", err)
	}

	existing := make(map[string]notionapi.Page)
	for _, page := range pages {
		if pageSelect(page, propContext) != lc.Name {
			continue
		}
		if txID := pageText(page, propTransactionID); txID != "" {
			existing[txID] = page
		}
	}

	wanted := make(map[string]bool, len(txs))
	for _, tx := range txs {
		wanted[tx.ID] = true
		txLog := log.With().Str("transaction_id", tx.ID).Logger()
		props := TransactionToProperties(tx, lc.Name)

		page, found := existing[tx.ID]
		switch {
		case found && pageText(page, propItem) == itemOf(tx):
			res.Unchanged++
		case found:
			if !req.DryRun {
				if err := db.Patch(ctx, string(page.ID), props); err != nil {
					txLog.Warn().Err(err).Msg("Failed to update Notion page")
					res.Failed++
					continue
				}
			}
			txLog.Info().Str("page_id", string(page.ID)).Msg("Updated Notion page")
			res.Updated++
		default:
			if !req.DryRun {
				pageID, err := db.Insert(ctx, req.DatabaseID, props)
				if err != nil {
					txLog.Warn().Err(err).Msg("Failed to create Notion page")
					res.Failed++
					continue
				}
				txLog = txLog.With().Str("page_id", pageID).Logger()
			}
			txLog.Info().Msg("Created Notion page")
			res.Created++
		}
	}

	for txID, page := range existing {
		if wanted[txID] || !inWindow(page, req.From, req.To) {
			continue
		}
		if !req.DryRun {
			if err := db.Archive(ctx, string(page.ID)); err != nil {
				log.Warn().Err(err).Str("page_id", string(page.ID)).Msg("Failed to archive stale Notion page")
				res.Failed++
				continue
			}
		}
		log.Info().Str("transaction_id", txID).Str("page_id", string(page.ID)).Msg("Archived stale Notion page")
		res.Archived++
	}

	log.Info().
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("unchanged", res.Unchanged).
		Int("archived", res.Archived).
		Int("failed", res.Failed).
		Msg("Notion export completed")

	return res, nil
}

func itemOf(tx *domain.Transaction) string {
	if tx.Item == nil {
		return ""
	}
	return *tx.Item
}

// inWindow reports whether a page's Date lies in [from, to]. Pages without
// a date are treated as inside.
func inWindow(page notionapi.Page, from, to civil.Date) bool {
	prop, ok := page.Properties[propDate].(*notionapi.DateProperty)
	if !ok || prop.Date == nil || prop.Date.Start == nil {
		return true
	}
	d := civil.DateOf(*(*time.Time)(prop.Date.Start))
	return !d.Before(from) && !d.After(to)
}
