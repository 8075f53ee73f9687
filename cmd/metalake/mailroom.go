package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lakeops/metalake/internal/collector"
	"github.com/lakeops/metalake/internal/config"
	"github.com/lakeops/metalake/internal/logging"
	"github.com/lakeops/metalake/internal/mailroom"
)

var mailroomFlags struct {
	bucket string
	key    string
	event  string
}

var mailroomCmd = &cobra.Command{
	Use:   "mailroom",
	Short: "Process one inbound email object",
	RunE:  runMailroom,
}

func init() {
	f := mailroomCmd.Flags()
	f.StringVar(&mailroomFlags.bucket, "bucket", "", "Bucket holding the email object")
	f.StringVar(&mailroomFlags.key, "key", "", "Key of the email object")
	f.StringVar(&mailroomFlags.event, "event", "", "Notification payload file, '-' for stdin")
	rootCmd.AddCommand(mailroomCmd)
}

func runMailroom(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := logging.WithCorrelationID(cmd.Context(), logging.GenerateCorrelationID())

	ref, err := resolveObjectRef(mailroomFlags.bucket, mailroomFlags.key, mailroomFlags.event)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	opts := mailroomOptions(cfg)
	responder, err := mailroom.NewResponder(store, opts, cfg.Mailroom.Responder)
	if err != nil {
		return err
	}

	room := mailroom.New(store, collector.New(store, store), responder, opts)

	outcome, err := room.ProcessObject(ctx, ref)
	if err != nil {
		return err
	}

	status := "rejected"
	if outcome.Success {
		status = "ok"
	}
	fmt.Printf("%s %s: %s\n", outcome.Route, status, outcome.Message)
	return nil
}

func mailroomOptions(cfg *config.Config) mailroom.Options {
	return mailroom.Options{
		UploadPrefix:   cfg.Mailroom.UploadPrefix,
		OutboundPrefix: cfg.Mailroom.OutboundPrefix,
		MaxAttachment:  cfg.Mailroom.MaxAttachment,
		AllowedTypes:   cfg.Mailroom.AllowedTypes,
	}
}
