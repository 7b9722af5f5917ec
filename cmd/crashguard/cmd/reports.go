package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hugo-lorenzo-mato/crashguard/internal/config"
	"github.com/hugo-lorenzo-mato/crashguard/internal/crashpad"
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "List stored crash reports",
	RunE:  runReportsList,
}

var reportsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one crash report with its annotations",
	Args:  cobra.ExactArgs(1),
	RunE:  runReportsShow,
}

var reportsDatabase string

func init() {
	rootCmd.AddCommand(reportsCmd)
	reportsCmd.AddCommand(reportsShowCmd)
	reportsCmd.PersistentFlags().StringVar(&reportsDatabase, "database", "",
		"report database directory (default: from config)")
}

// cmdContext returns the command's context; cobra only attaches one inside
// Execute, so a directly invoked runner falls back to Background.
func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func openReportDatabase() (*crashpad.Database, error) {
	dir := reportsDatabase
	if dir == "" {
		loader := config.NewLoaderWithViper(viper.GetViper())
		if cfgFile != "" {
			loader.WithConfigFile(cfgFile)
		}
		cfg, err := loader.Load()
		if err != nil {
			return nil, err
		}
		dir = cfg.Crashpad.Database
	}
	return crashpad.OpenDatabase(dir)
}

func runReportsList(cmd *cobra.Command, _ []string) error {
	db, err := openReportDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	reports, err := db.ListReports(cmdContext(cmd))
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		fmt.Println("No crash reports stored.")
		return nil
	}

	fmt.Printf("%-36s  %-20s  %-8s  %s\n", "ID", "CREATED", "UPLOADED", "REASON")
	for _, r := range reports {
		uploaded := "no"
		if r.Uploaded {
			uploaded = "yes"
		}
		fmt.Printf("%-36s  %-20s  %-8s  %s\n",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), uploaded, r.Reason)
	}
	return nil
}

func runReportsShow(cmd *cobra.Command, args []string) error {
	db, err := openReportDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	report, err := db.GetReport(cmdContext(cmd), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Report %s\n", report.ID)
	fmt.Printf("  created:  %s\n", report.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("  reason:   %s\n", report.Reason)
	fmt.Printf("  uploaded: %v\n", report.Uploaded)
	fmt.Println("  annotations:")

	keys := make([]string, 0, len(report.Annotations))
	for k := range report.Annotations {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("    %s: %s\n", k, report.Annotations[k])
	}
	return nil
}
