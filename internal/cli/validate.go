package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/quizguard/internal/config"
	"github.com/felixgeelhaar/quizguard/internal/domain"
	"github.com/felixgeelhaar/quizguard/internal/permission"
	"github.com/felixgeelhaar/quizguard/internal/validator"
)

// NewValidateCmd builds the subcommand that validates a quiz document at a
// creator tier
func NewValidateCmd(configPath *string) *cobra.Command {
	var tierName string
	var creatorID string

	cmd := &cobra.Command{
		Use:   "validate <quiz.yaml|quiz.json>",
		Short: "Validate a quiz document against a creator tier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			tier, err := domain.ParseTier(tierName)
			if err != nil {
				return err
			}
			doc, err := loadDocument(args[0])
			if err != nil {
				return err
			}

			v := validator.New(cfg)
			if creatorID != "" {
				v = v.ForCreator(creatorID)
			}
			result := v.Validate(doc, tier)

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			if !result.Valid() {
				return fmt.Errorf("document rejected at tier %s", tier)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&tierName, "tier", "", "creator tier (defaults to RESTRICTED)")
	cmd.Flags().StringVar(&creatorID, "creator", "", "creator id for per-creator allowlists")
	return cmd
}

// NewRequirementsCmd builds the subcommand that prints a document's
// capability manifest without validating it
func NewRequirementsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "requirements <quiz.yaml|quiz.json>",
		Short: "Print the capability manifest a quiz document needs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadDocument(args[0])
			if err != nil {
				return err
			}
			req := permission.Analyzer{}.Requirements(doc)
			out, err := json.MarshalIndent(req, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		cfg := config.FromEnv(config.Default())
		return cfg, cfg.Validate()
	}
	return config.Load(path)
}

func loadDocument(path string) (*domain.Quiz, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return validator.Parse(data)
}
