package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/garyjia/expense-approval/internal/application/service"
	"github.com/spf13/cobra"
)

var (
	reportUser     string
	reportScope    string
	reportCurrency string
	reportOutDir   string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Build a spend report and export it to Excel",
	Long: `Aggregate approved spend visible to --user under --scope, converted
into --currency (default: the company base currency), and write it to an
.xlsx workbook.

Example:
  expensectl report --user user-1 --scope company --currency EUR --out reports`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportUser, "user", "", "acting user id (required)")
	reportCmd.Flags().StringVar(&reportScope, "scope", "own", "own, team or company")
	reportCmd.Flags().StringVar(&reportCurrency, "currency", "", "target currency")
	reportCmd.Flags().StringVar(&reportOutDir, "out", "", "output directory (default report.output_dir)")
	_ = reportCmd.MarkFlagRequired("user")
}

func runReport(cmd *cobra.Command, args []string) error {
	scope, err := service.ParseScope(reportScope)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	app, err := startContainer(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	req := service.ReportRequest{ActorID: reportUser, Scope: scope, Currency: reportCurrency}
	reports := app.Services().Report

	report, err := reports.Generate(ctx, req)
	if err != nil {
		return err
	}

	dir := reportOutDir
	if dir == "" {
		dir = app.Config().Report.OutputDir
	}
	path, err := reports.ExportFile(ctx, req, dir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Currency\t%s\n", report.Currency)
	fmt.Fprintf(tw, "Submissions\t%d\n", report.TotalSubmissions)
	fmt.Fprintf(tw, "Approved\t%d (%d converted)\n", report.ApprovedCount, report.ConvertedCount)
	fmt.Fprintf(tw, "Pending / Rejected\t%d / %d\n", report.PendingCount, report.RejectedCount)
	fmt.Fprintf(tw, "Total\t%s\n", report.Total.StringFixed(2))
	fmt.Fprintf(tw, "Average\t%s\n", report.Average.StringFixed(2))
	if len(report.UnconvertibleCurrencies) > 0 {
		fmt.Fprintf(tw, "Unconvertible\t%v\n", report.UnconvertibleCurrencies)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nWorkbook written to %s\n", path)
	return nil
}
