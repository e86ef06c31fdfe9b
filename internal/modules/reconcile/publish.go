package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"tolovpay.uz/app/internal/mailer"
	"tolovpay.uz/app/internal/shared/money"
	"tolovpay.uz/app/internal/storage"
)

// Publisher archives a finished report and mails a summary to finance.
// Both collaborators are optional; a nil one is skipped.
type Publisher struct {
	archive  storage.Storage
	mail     mailer.Service
	fromAddr string
	toAddr   string
	logger   *slog.Logger
}

func NewPublisher(archive storage.Storage, mail mailer.Service, fromAddr, toAddr string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{archive: archive, mail: mail, fromAddr: fromAddr, toAddr: toAddr, logger: logger}
}

// Publish stores the JSON report and sends the summary. Archival failure is
// returned; mail failure is only logged, a lost summary must not fail the
// reconciliation run.
func (p *Publisher) Publish(ctx context.Context, r Report) (string, error) {
	var archivedURL string

	if p.archive != nil {
		body, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return "", fmt.Errorf("reconcile: encode report: %w", err)
		}
		key := fmt.Sprintf("reconciliation/%s/report-%s.json",
			r.From.UTC().Format("2006-01-02"), r.GeneratedAt.UTC().Format("150405"))
		res, err := p.archive.Put(ctx, bytes.NewReader(body), storage.PutInput{
			Key:         key,
			ContentType: "application/json",
		})
		if err != nil {
			return "", fmt.Errorf("reconcile: archive report: %w", err)
		}
		archivedURL = res.URL
		p.logger.InfoContext(ctx, "reconciliation report archived", "key", res.Key)
	}

	if p.mail != nil && p.toAddr != "" {
		subject := fmt.Sprintf("Reconciliation %s: %d discrepancies",
			r.From.UTC().Format("2006-01-02"), len(r.Discrepancies))
		err := p.mail.Send(ctx, mailer.Email{
			From:     p.fromAddr,
			FromName: "Tolovpay Reconciliation",
			To:       []string{p.toAddr},
			Subject:  subject,
			TextBody: summaryText(r, archivedURL),
		})
		if err != nil {
			p.logger.ErrorContext(ctx, "reconciliation summary mail failed", "err", err)
		}
	}

	return archivedURL, nil
}

func summaryText(r Report, archivedURL string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Window: %s .. %s\n", r.From.UTC().Format("2006-01-02 15:04"), r.To.UTC().Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Intents checked: %d\n\n", r.IntentsChecked)

	statuses := make([]string, 0, len(r.TotalsByStatus))
	for s := range r.TotalsByStatus {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)
	for _, s := range statuses {
		t := r.TotalsByStatus[s]
		fmt.Fprintf(&b, "%-20s %5d  %s UZS\n", s, t.Count, money.FormatTiyin(t.AmountTiyin))
	}

	if len(r.Discrepancies) == 0 {
		b.WriteString("\nNo discrepancies.\n")
	} else {
		fmt.Fprintf(&b, "\nDiscrepancies (%d):\n", len(r.Discrepancies))
		for _, d := range r.Discrepancies {
			fmt.Fprintf(&b, "- [%s] %s %s intent=%s diff=%s UZS %s\n",
				d.Kind, d.Provider, d.ProviderRef, d.IntentID, money.FormatTiyin(d.DiffTiyin), d.Detail)
		}
	}
	if archivedURL != "" {
		fmt.Fprintf(&b, "\nFull report: %s\n", archivedURL)
	}
	return b.String()
}
