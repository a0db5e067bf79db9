package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Skufu/vetdiag/internal/export"
	"github.com/Skufu/vetdiag/internal/treatment"
)

var (
	etlInput    string
	etlOut      string
	etlTop      int
	etlMinCount int
	etlRules    string
)

func init() {
	etlCmd.Flags().StringVarP(&etlInput, "input", "i", "data", "treatment log CSV file or directory")
	etlCmd.Flags().StringVarP(&etlOut, "out", "o", "out", "output directory")
	etlCmd.Flags().IntVar(&etlTop, "top", 10, "diagnoses kept in top and trend tables (0 = all)")
	etlCmd.Flags().IntVar(&etlMinCount, "min-count", treatment.DefaultMinClassCount, "drop diagnoses with fewer cases (default: rules file, else 5)")
	etlCmd.Flags().StringVar(&etlRules, "rules", "", "YAML extraction rules (default: built-in)")
}

// etlCmd runs extraction, cleaning and aggregation over treatment logs.
var etlCmd = &cobra.Command{
	Use:   "etl",
	Short: "Clean treatment logs and write summary tables",
	Long: `Read treatment-log CSV files, extract species, head count and month, drop
blank, healthy and rare diagnoses, then write the aggregated tables.

Outputs (in --out):
  top_diagnoses.csv  species.csv  trends.csv  report.xlsx

Examples:
  vetdiag etl --input data/ --out reports/
  vetdiag etl -i data/2023.csv -o reports/ --top 5 --min-count 10`,
	Args: cobra.NoArgs,
	RunE: runETL,
}

func runETL(cmd *cobra.Command, args []string) error {
	if etlMinCount < 1 {
		return fmt.Errorf("--min-count must be at least 1")
	}
	if etlTop < 0 {
		return fmt.Errorf("--top must not be negative")
	}

	rules := treatment.DefaultRules()
	if etlRules != "" {
		var err error
		if rules, err = treatment.LoadRules(etlRules); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("min-count") {
		rules = rules.WithMinClassCount(etlMinCount)
	}

	raws, err := treatment.LoadDir(cmd.Context(), etlInput)
	if err != nil {
		return err
	}
	recs, clean := rules.Clean(raws)
	report := export.BuildReport(recs, clean, etlTop)

	written, err := export.WriteDir(etlOut, report)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "rows read:        %d\n", clean.InputRows)
	fmt.Fprintf(out, "blank diagnosis:  %d\n", clean.DroppedBlank)
	fmt.Fprintf(out, "not sick:         %d\n", clean.DroppedSentinel)
	fmt.Fprintf(out, "rare (<%d cases): %d\n", clean.MinClassCount, clean.DroppedRare)
	fmt.Fprintf(out, "kept:             %d rows, %d diagnoses\n", clean.KeptRows, clean.KeptClasses)
	for _, path := range written {
		fmt.Fprintf(out, "wrote %s\n", path)
	}
	return nil
}
