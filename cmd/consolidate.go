package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/profile-consolidator/internal/consolidate"
	"github.com/sells-group/profile-consolidator/internal/profile"
)

var consolidateUser string

var consolidateCmd = &cobra.Command{
	Use:   "consolidate <analysis.json>",
	Short: "Merge one analysis file into its master profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		raw, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "read %s", args[0])
		}

		var req consolidate.Request
		if err := json.Unmarshal(raw, &req); err != nil {
			return eris.Wrapf(err, "parse %s", args[0])
		}
		if consolidateUser != "" {
			req.UserID = consolidateUser
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Engine.Consolidate(ctx, req)
		if eris.Is(err, profile.ErrAmbiguous) {
			zap.L().Warn("ambiguous company match, not merging",
				zap.String("analysis_id", req.AnalysisID),
				zap.Int64s("candidates", result.Candidates),
			)
			return err
		}
		if err != nil {
			return err
		}

		zap.L().Info("consolidation complete",
			zap.String("analysis_id", req.AnalysisID),
			zap.Int64("profile_id", result.ProfileID),
			zap.Bool("created", result.Created),
			zap.Strings("fields_updated", result.FieldsUpdated),
			zap.Int("conflicts_resolved", result.ConflictsResolved),
		)

		return json.NewEncoder(os.Stdout).Encode(result)
	},
}

func init() {
	consolidateCmd.Flags().StringVar(&consolidateUser, "user", "", "acting user id (required unless set in the file)")
	rootCmd.AddCommand(consolidateCmd)
}
