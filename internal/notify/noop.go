package notify

import (
	"context"
	"log/slog"

	domain "github.com/donaldgifford/discount-notifier/pkg/types"
)

// NoOpNotifier implements Notifier by logging discarded notifications. It
// stands in for real destinations on dry runs.
type NoOpNotifier struct {
	name string
	log  *slog.Logger
}

// NewNoOpNotifier creates a notifier that discards messages with a log line.
func NewNoOpNotifier(name string, log *slog.Logger) *NoOpNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &NoOpNotifier{name: name, log: log}
}

// Name returns the destination name.
func (n *NoOpNotifier) Name() string { return n.name }

// Send logs and discards the envelope.
func (n *NoOpNotifier) Send(_ context.Context, env *domain.NotificationEnvelope) error {
	for i := range env.Products {
		p := &env.Products[i]
		pct, _ := p.DiscountPercent()
		n.log.Info("dry run: would notify",
			"destination", n.name,
			"retailer", p.Retailer,
			"product", p.Name,
			"discount", pct.String(),
			"url", p.URL,
		)
	}
	return nil
}

// SendSummary logs and discards the summary.
func (n *NoOpNotifier) SendSummary(_ context.Context, s *Summary) error {
	n.log.Info("dry run: would send summary",
		"destination", n.name,
		"qualifying", s.Qualifying,
		"scraped", s.ProductsScraped,
	)
	return nil
}

// SendTest logs and discards the test message.
func (n *NoOpNotifier) SendTest(context.Context) error {
	n.log.Info("dry run: would send test message", "destination", n.name)
	return nil
}
