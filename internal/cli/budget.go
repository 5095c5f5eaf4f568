package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Inspect the monthly budget",
}

var budgetStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current month budget status",
	RunE:  runBudgetStatus,
}

func init() {
	rootCmd.AddCommand(budgetCmd)
	budgetCmd.AddCommand(budgetStatusCmd)
}

func runBudgetStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	gen, store, err := initGenerator(cfg, nil, nil, newLogger(cfg))
	if err != nil {
		return err
	}
	defer store.Close()

	s := gen.Status(cmd.Context())

	state := "OPEN"
	if s.IsLimited {
		state = "EXHAUSTED"
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "MONTH\tLIMIT\tSPENT\tREMAINING\tUSAGE\tIMAGES\tSTATE\n")
	fmt.Fprintf(w, "%s\t$%.2f\t$%.2f\t$%.2f\t%.1f%%\t%d\t%s\n",
		s.Month, s.Limit, s.Spent, s.Remaining, s.Percentage, s.GenerationCount, state,
	)
	return w.Flush()
}
