package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Show the price of one image",
	RunE:  runEstimate,
}

func init() {
	rootCmd.AddCommand(estimateCmd)

	estimateCmd.Flags().StringP("quality", "q", "", "Quality tier (standard, hd); all tiers when empty")
}

func runEstimate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	quality, _ := cmd.Flags().GetString("quality")
	out := cmd.OutOrStdout()

	if quality != "" {
		gen, store, err := initGenerator(cfg, nil, nil, newLogger(cfg))
		if err != nil {
			return err
		}
		defer store.Close()

		est, err := gen.Estimate(quality)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: $%.2f %s per image\n", est.Quality, est.Cost, est.Currency)
		return nil
	}

	table, err := initPricing(cfg)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "QUALITY\tPRICE/IMAGE\tCURRENCY\n")
	for _, t := range table.Tiers() {
		fmt.Fprintf(w, "%s\t$%.2f\t%s\n", t.Quality, t.PricePerImage, table.Currency())
	}
	return w.Flush()
}
