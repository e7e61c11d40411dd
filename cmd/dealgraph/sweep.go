package dealgraph

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dealgraph/dealgraph/pkg/config"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep <tenant-id>",
	Short: "Run a contradiction sweep for a tenant",
	Long: `Run a contradiction sweep over the tenant's current findings.

The sweep groups findings by domain, compares candidate pairs with the
configured language model, and records contradictions above the confidence
threshold. An interrupted sweep writes a checkpoint and resumes from the next
unswept domain on the following run.`,
	Args: cobra.ExactArgs(1),
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)

	sweepCmd.Flags().String("db-driver", "neo4j", "Database driver (neo4j, memory)")
	sweepCmd.Flags().String("db-uri", "bolt://localhost:7687", "Database URI")
	sweepCmd.Flags().String("db-username", "neo4j", "Database username")
	sweepCmd.Flags().String("db-password", "", "Database password")
	sweepCmd.Flags().String("db-database", "neo4j", "Database name")
	sweepCmd.Flags().String("nlp-api-key", "", "Language model API key")
	sweepCmd.Flags().String("checkpoint-dir", "", "Directory for sweep checkpoints")
}

func runSweep(cmd *cobra.Command, args []string) error {
	tenantID := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	overrideSweepFlags(cmd, cfg)

	if cfg.NLP.APIKey == "" {
		return fmt.Errorf("a language model API key is required to run a sweep")
	}

	graph, err := initializeGraph(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize DealGraph: %w", err)
	}
	defer graph.Close(context.Background())

	// Ctrl-C cancels the sweep; the checkpoint preserves completed domains.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	result, err := graph.RunContradictionSweep(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	fmt.Fprintf(os.Stdout, "Sweep complete for %s\n", result.TenantID)
	fmt.Fprintf(os.Stdout, "  domains swept:        %d\n", result.DomainsSwept)
	fmt.Fprintf(os.Stdout, "  pairs compared:       %d\n", result.PairsCompared)
	fmt.Fprintf(os.Stdout, "  contradictions found: %d\n", result.ContradictionsFound)
	if result.Resumed {
		fmt.Fprintln(os.Stdout, "  resumed from checkpoint")
	}
	return nil
}

func overrideSweepFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("db-driver") {
		cfg.Database.Driver, _ = cmd.Flags().GetString("db-driver")
	}
	if cmd.Flags().Changed("db-uri") {
		cfg.Database.URI, _ = cmd.Flags().GetString("db-uri")
	}
	if cmd.Flags().Changed("db-username") {
		cfg.Database.Username, _ = cmd.Flags().GetString("db-username")
	}
	if cmd.Flags().Changed("db-password") {
		cfg.Database.Password, _ = cmd.Flags().GetString("db-password")
	}
	if cmd.Flags().Changed("db-database") {
		cfg.Database.Database, _ = cmd.Flags().GetString("db-database")
	}
	if cmd.Flags().Changed("nlp-api-key") {
		cfg.NLP.APIKey, _ = cmd.Flags().GetString("nlp-api-key")
	}
	if cmd.Flags().Changed("checkpoint-dir") {
		cfg.Checkpoint.Dir, _ = cmd.Flags().GetString("checkpoint-dir")
	}
}
