// Package notify defines the notification interface, its webhook
// implementations, and the dispatcher that delivers qualifying products with
// bounded retry.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/donaldgifford/discount-notifier/internal/config"
	domain "github.com/donaldgifford/discount-notifier/pkg/types"
)

// Notifier delivers one envelope to one destination. A single Send is one
// attempt; retrying is the Dispatcher's job.
type Notifier interface {
	Name() string
	Send(ctx context.Context, env *domain.NotificationEnvelope) error
}

// SummarySender is implemented by notifiers that can post a run summary.
type SummarySender interface {
	SendSummary(ctx context.Context, s *Summary) error
}

// Tester is implemented by notifiers that can post a connectivity test.
type Tester interface {
	SendTest(ctx context.Context) error
}

// Summary is the optional end-of-run report.
type Summary struct {
	RunID           string
	ProductsScraped int
	Qualifying      int
	Notified        int
	Retailers       []string
	Failed          []string
	FinishedAt      time.Time
}

// NewFromConfig builds the notifiers for the destinations selected by the
// configured mode. With dryRun set every destination is replaced by a
// NoOpNotifier of the same name.
func NewFromConfig(cfg *config.NotificationsConfig, dryRun bool, log *slog.Logger) ([]Notifier, error) {
	if log == nil {
		log = slog.Default()
	}
	client := &http.Client{Timeout: cfg.Timeout}

	var out []Notifier
	for _, d := range cfg.Selected() {
		if dryRun {
			out = append(out, NewNoOpNotifier(d.Name, log))
			continue
		}
		switch d.Kind {
		case config.DestinationDiscord:
			out = append(out, NewDiscordNotifier(d.Name, d.URL,
				WithHTTPClient(client),
				WithUsername(cfg.Username),
			))
		case config.DestinationWebhook:
			out = append(out, NewWebhookNotifier(d.Name, d.URL,
				WithWebhookHTTPClient(client),
				WithHeaders(d.Headers),
			))
		default:
			return nil, fmt.Errorf("destination %s: unknown kind %q", d.Name, d.Kind)
		}
	}

	if len(out) == 0 && dryRun {
		out = append(out, NewNoOpNotifier("dry-run", log))
	}
	return out, nil
}

var currencySymbols = map[string]string{
	"GBP": "£",
	"USD": "$",
	"EUR": "€",
}

// formatMoney renders an amount with its currency symbol, falling back to
// the ISO code.
func formatMoney(currency string, amount decimal.Decimal) string {
	if currency == "" {
		currency = domain.DefaultCurrency
	}
	if sym, ok := currencySymbols[currency]; ok {
		return sym + amount.StringFixed(2)
	}
	return currency + " " + amount.StringFixed(2)
}

// discountLabel renders the discount as a whole-number percentage.
func discountLabel(p *domain.Product) string {
	pct, ok := p.DiscountPercent()
	if !ok {
		return "?"
	}
	return pct.Round(0).String()
}
