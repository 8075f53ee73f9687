package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lakeops/metalake/internal/generator"
	"github.com/lakeops/metalake/internal/llm"
	"github.com/lakeops/metalake/internal/logging"
)

var generateFlags struct {
	bucket string
	key    string
	event  string
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a metadata sidecar for one object",
	RunE:  runGenerate,
}

func init() {
	f := generateCmd.Flags()
	f.StringVar(&generateFlags.bucket, "bucket", "", "Bucket holding the object")
	f.StringVar(&generateFlags.key, "key", "", "Key of the object")
	f.StringVar(&generateFlags.event, "event", "", "Notification payload file, '-' for stdin")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := logging.WithCorrelationID(cmd.Context(), logging.GenerateCorrelationID())

	ref, err := resolveObjectRef(generateFlags.bucket, generateFlags.key, generateFlags.event)
	if err != nil {
		return err
	}

	rules, err := generator.LoadRules(cfg.Generator.RulesPath)
	if err != nil {
		return err
	}

	// The generator's model settings live in the rules file, alongside the
	// fields it extracts; provider and model name fall back to the
	// service-wide model section.
	provider := rules.Model.Provider
	if provider == "" {
		provider = cfg.Model.Provider
	}
	name := rules.Model.Model
	if name == "" {
		name = cfg.Model.Name
	}
	model, err := llm.New(llm.Config{
		Provider:    provider,
		Model:       name,
		APIKey:      apiKeyFor(provider),
		BaseURL:     cfg.Model.BaseURL,
		MaxTokens:   rules.Model.MaxTokens,
		Temperature: rules.Model.Temperature,
	})
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	gen := generator.New(rules, model, store, cfg.Generator.MaxReadBytes)

	result, err := gen.Process(ctx, ref)
	switch {
	case errors.Is(err, generator.ErrSidecarExists):
		fmt.Printf("Skipped: %s already has a sidecar\n", ref.Key)
		return nil
	case errors.Is(err, generator.ErrSidecarObject):
		fmt.Printf("Skipped: %s is itself a sidecar\n", ref.Key)
		return nil
	case errors.Is(err, generator.ErrNoMatchingRule):
		fmt.Printf("Skipped: no rule matches %s\n", ref.Key)
		return nil
	case err != nil:
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
