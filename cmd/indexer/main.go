package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/goran-ethernal/TzIndexor/internal/common"
	"github.com/goran-ethernal/TzIndexor/internal/ingest"
	"github.com/goran-ethernal/TzIndexor/internal/metrics"
	"github.com/goran-ethernal/TzIndexor/internal/reorg"
	pkgconfig "github.com/goran-ethernal/TzIndexor/pkg/config"
	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	version = "1.0.0"
	banner  = `
╔═══════════════════════════════════════════╗
║            TzIndexor v%s               ║
║      Reversible Tezos Ledger Indexer      ║
╚═══════════════════════════════════════════╝
`
	shutdownTimeout = 10 * time.Second
)

var (
	configPath  string
	stopAtLevel int64
	revertTo    int64
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "indexer",
	Short: "TzIndexor - reversible Tezos ledger indexer",
	Long: `TzIndexor follows a Tezos node block by block and maintains a relational
ledger of blocks, accounts and operations. Every block is applied as a single
transaction and can be reverted exactly, so the ledger follows the node across
chain reorganizations.`,
	Version: version,
	RunE:    runIndexer,
}

var revertCmd = &cobra.Command{
	Use:   "revert",
	Short: "Revert the ledger down to a level",
	Long:  `Revert blocks one at a time, newest first, until the ledger head is at the given level.`,
	RunE:  runRevert,
}

var protocolsCmd = &cobra.Command{
	Use:   "protocols",
	Short: "List known protocols",
	Long:  `List the bootstrap protocols and every protocol stored in the ledger, with their constants.`,
	RunE:  runProtocols,
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of the configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		schema := new(jsonschema.Reflector).Reflect(&pkgconfig.Config{})
		out, err := json.MarshalIndent(schema, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode schema: %w", err)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to configuration file")
	rootCmd.Flags().Int64Var(&stopAtLevel, "stop-at", -1, "stop once the ledger head reaches this level (-1 follows the node forever)")
	revertCmd.Flags().Int64Var(&revertTo, "to", 0, "level the ledger head is reverted to (-1 reverts everything)")
	_ = revertCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(revertCmd, protocolsCmd, schemaCmd)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			fmt.Println("\n\nShutting down gracefully...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

func runIndexer(cmd *cobra.Command, args []string) error {
	fmt.Printf(banner, version)

	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.close()

	log := componentLogger(a.cfg, common.ComponentSyncer)

	detector := reorg.NewReorgDetector(a.node, componentLogger(a.cfg, common.ComponentReorgDetector))
	defer detector.Close()

	syncCfg := ingest.SyncerConfigFromNode(a.cfg.Node)
	syncCfg.StopAtLevel = stopAtLevel
	syncer := ingest.NewSyncer(a.node, a.pipeline, detector, syncCfg, log)

	metricsServer := metrics.NewServer(a.cfg.Metrics, log)
	if err := metricsServer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}
	if a.cfg.Metrics != nil && a.cfg.Metrics.Enabled {
		log.Infof("Metrics server started on %s%s", metricsServer.Addr(), a.cfg.Metrics.Path)
	}

	if err := a.maintenance.Start(ctx); err != nil {
		return fmt.Errorf("failed to start maintenance: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// a stopped syncer ends the process, so it releases the other goroutines
		defer cancel()
		return syncer.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		return a.maintenance.Stop()
	})
	g.Go(func() error {
		<-gctx.Done()
		stopCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stop()
		return metricsServer.Stop(stopCtx)
	})

	log.Info("Starting TzIndexor...")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("indexer failed: %w", err)
	}

	log.Info("TzIndexor stopped successfully")
	return nil
}

func runRevert(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.close()

	log := componentLogger(a.cfg, common.ComponentPipeline)

	n, err := a.pipeline.RevertTo(ctx, revertTo)
	if err != nil {
		return fmt.Errorf("reverted %d blocks, then failed: %w", n, err)
	}

	state, err := a.pipeline.Head(ctx)
	if err != nil {
		return err
	}

	log.Infof("Reverted %d blocks, head is now %d", n, state.Level)
	return nil
}

func runProtocols(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.close()

	protocols, err := a.registry.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list protocols: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0) //nolint:mnd
	fmt.Fprintln(w, "CODE\tHASH\tFIRST LEVEL\tBLOCKS/CYCLE\tPRESERVED\tBLOCK REWARD\tREVELATION REWARD")
	for _, p := range protocols {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\t%d\t%d\n",
			p.Code, p.Hash, p.FirstLevel, p.BlocksPerCycle, p.PreservedCycles, p.BlockReward0, p.RevelationReward)
	}

	return w.Flush()
}
