package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/port-research/internal/model"
)

// seedFacility is the YAML shape of one seed record.
type seedFacility struct {
	Name       string   `yaml:"name"`
	Type       string   `yaml:"type"`
	Country    string   `yaml:"country"`
	Locode     string   `yaml:"locode"`
	Operator   string   `yaml:"operator"`
	Governance string   `yaml:"governance"`
	AnnualTEU  *int64   `yaml:"annual_teu"`
	BerthCount *int     `yaml:"berth_count"`
	MaxDraftM  *float64 `yaml:"max_draft_m"`
	Latitude   *float64 `yaml:"latitude"`
	Longitude  *float64 `yaml:"longitude"`
	Notes      string   `yaml:"notes"`
}

type seedFile struct {
	Facilities []seedFacility `yaml:"facilities"`
}

var seedCmd = &cobra.Command{
	Use:   "seed <file.yaml>",
	Short: "Run migrations and load facility records from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrap(err, "read seed file")
		}
		var seed seedFile
		if err := yaml.Unmarshal(data, &seed); err != nil {
			return eris.Wrap(err, "parse seed file")
		}

		st, err := openStore(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer st.Close()

		if err := st.Migrate(cmd.Context()); err != nil {
			return eris.Wrap(err, "migrate")
		}

		for _, s := range seed.Facilities {
			if s.Name == "" {
				return eris.New("seed record without a name")
			}
			f := model.Facility{
				Name:       s.Name,
				Type:       model.FacilityType(s.Type),
				Country:    s.Country,
				Locode:     s.Locode,
				Operator:   s.Operator,
				Governance: model.NormalizeGovernance(s.Governance),
				AnnualTEU:  s.AnnualTEU,
				BerthCount: s.BerthCount,
				MaxDraftM:  s.MaxDraftM,
				Latitude:   s.Latitude,
				Longitude:  s.Longitude,
				Notes:      s.Notes,
			}
			if f.Type == "" {
				f.Type = model.FacilityPort
			}
			if err := st.CreateFacility(cmd.Context(), &f); err != nil {
				return eris.Wrapf(err, "create %s", s.Name)
			}
			zap.L().Info("seed: created facility",
				zap.String("id", f.ID), zap.String("name", f.Name))
		}

		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d facilities\n", len(seed.Facilities))
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer st.Close()
		return st.Migrate(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(migrateCmd)
}
