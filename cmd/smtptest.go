package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/arxiv-digest/internal/config"
	"github.com/user/arxiv-digest/internal/logging"
	"github.com/user/arxiv-digest/internal/notifier"
)

var smtptestCmd = &cobra.Command{
	Use:   "smtptest",
	Short: "Send a test email to validate SMTP settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger := logging.Setup(cfg.LogDir())

		notif, err := notifier.New(cfg, logger.With("component", "notifier"))
		if err != nil {
			return err
		}
		if err := notif.SendTest(cmd.Context()); err != nil {
			return fmt.Errorf("smtp test failed: %w", err)
		}
		fmt.Printf("Test email sent to %s\n", cfg.NotificationEmailTo)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(smtptestCmd)
}
