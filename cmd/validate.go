package main

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var validateCategories []string

var validateCmd = &cobra.Command{
	Use:   "validate <profile-id>",
	Short: "Run a validation batch against a master profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		profileID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return eris.Wrapf(err, "invalid profile id %q", args[0])
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Orchestrator.Validate(ctx, profileID, validateCategories)
		if err != nil {
			return err
		}

		zap.L().Info("validation complete",
			zap.Int64("profile_id", profileID),
			zap.String("batch_id", result.BatchID),
			zap.Float64("overall_confidence", result.OverallConfidence),
			zap.String("status", string(result.Status)),
		)

		return json.NewEncoder(os.Stdout).Encode(result)
	},
}

func init() {
	validateCmd.Flags().StringSliceVar(&validateCategories, "categories", nil, "restrict to validation categories (basic_info, financial, personnel)")
	rootCmd.AddCommand(validateCmd)
}
