package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/donaldgifford/discount-notifier/internal/notify"
)

func testWebhookCmd() *cobra.Command {
	var opts appOptions

	cmd := &cobra.Command{
		Use:   "test-webhook",
		Short: "Send a test message to the selected destinations",
		Example: `  discount-notifier test-webhook
  DN_WEBHOOK_URL=https://discord.com/api/webhooks/... discount-notifier test-webhook
  discount-notifier test-webhook --dev`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			log := newLogger(cfg)

			notifiers, err := notify.NewFromConfig(&cfg.Notifications, false, log)
			if err != nil {
				return fmt.Errorf("building notifiers: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			failures := notify.TestAll(ctx, notifiers)
			if err := printTestResults(stdout, destinationNames(notifiers), failures); err != nil {
				return err
			}
			if len(failures) > 0 {
				return fmt.Errorf("%d of %d destination(s) failed", len(failures), len(notifiers))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.dev, "dev", false, "test the dev destinations")
	return cmd
}
