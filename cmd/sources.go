package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/profile-consolidator/internal/profile"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Manage trusted validation sources",
}

// sourceSeed is the YAML shape for one trusted source entry.
type sourceSeed struct {
	Name            string   `yaml:"name"`
	SourceType      string   `yaml:"source_type"`
	AuthorityWeight float64  `yaml:"authority_weight"`
	RateLimitPerMin int      `yaml:"rate_limit_per_min"`
	Active          *bool    `yaml:"active"`
	Categories      []string `yaml:"categories"`
}

var sourcesSeedCmd = &cobra.Command{
	Use:   "seed <sources.yaml>",
	Short: "Upsert trusted sources from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		raw, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "read %s", args[0])
		}

		var doc struct {
			Sources []sourceSeed `yaml:"sources"`
		}
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return eris.Wrapf(err, "parse %s", args[0])
		}
		if len(doc.Sources) == 0 {
			return eris.Errorf("%s defines no sources", args[0])
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		for _, seed := range doc.Sources {
			if seed.Name == "" {
				return eris.New("source entry missing name")
			}
			active := true
			if seed.Active != nil {
				active = *seed.Active
			}
			src := &profile.TrustedSource{
				Name:            seed.Name,
				SourceType:      seed.SourceType,
				AuthorityWeight: seed.AuthorityWeight,
				RateLimitPerMin: seed.RateLimitPerMin,
				Active:          active,
				Categories:      seed.Categories,
			}
			if err := env.Store.UpsertSource(ctx, src); err != nil {
				return eris.Wrapf(err, "upsert source %s", seed.Name)
			}
			zap.L().Info("source upserted",
				zap.String("name", src.Name),
				zap.Float64("authority_weight", src.AuthorityWeight),
				zap.Bool("active", src.Active),
			)
		}

		return nil
	},
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active trusted sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		sources, err := env.Store.ListActiveSources(ctx)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sources)
	},
}

func init() {
	sourcesCmd.AddCommand(sourcesSeedCmd)
	sourcesCmd.AddCommand(sourcesListCmd)
	rootCmd.AddCommand(sourcesCmd)
}
