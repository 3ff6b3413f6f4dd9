package core

import (
	"context"
	"fmt"
	"time"
)

// DocumentType is both the kind of a sales document and the prefix of its number.
type DocumentType string

const (
	DocQuote   DocumentType = "QUO"
	DocOrder   DocumentType = "ORD"
	DocInvoice DocumentType = "INV"
)

// FormatDocumentNumber renders a tenant-unique number such as INV-2026-00042.
func FormatDocumentNumber(t DocumentType, year int, seq int64) string {
	return fmt.Sprintf("%s-%d-%05d", t, year, seq)
}

// nextDocumentNumber draws the next gapless number for the document type in the
// year of at. It runs inside the caller's transaction so a rollback releases nothing.
func nextDocumentNumber(ctx context.Context, tx SequenceStore, tenantID int64, t DocumentType, at time.Time) (string, error) {
	seq, err := tx.NextSequence(ctx, tenantID, string(t), at.Year())
	if err != nil {
		return "", fmt.Errorf("failed to generate %s number: %w", t, err)
	}
	return FormatDocumentNumber(t, at.Year(), seq), nil
}
