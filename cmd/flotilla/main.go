package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cuemby/flotilla/pkg/api"
	"github.com/cuemby/flotilla/pkg/config"
	"github.com/cuemby/flotilla/pkg/driver"
	"github.com/cuemby/flotilla/pkg/events"
	"github.com/cuemby/flotilla/pkg/log"
	"github.com/cuemby/flotilla/pkg/metrics"
	"github.com/cuemby/flotilla/pkg/scheduler"
	"github.com/cuemby/flotilla/pkg/storage"
	"github.com/cuemby/flotilla/pkg/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "flotilla",
	Short: "Flotilla - plan-driven service scheduler",
	Long: `Flotilla deploys and maintains a declarative service specification
against a cluster resource manager. Given a service spec describing pods
and their resource and placement requirements, it reconciles live cluster
state to the specification: accepting resource offers, launching and
relaunching tasks, detecting permanent failures, and cleaning up leaked
reservations.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Flotilla version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	runCmd.Flags().String("spec", "service.yaml", "Path to the service specification file")
	runCmd.Flags().String("data-dir", "/var/lib/flotilla", "Directory for framework state")
	runCmd.Flags().String("api-addr", ":8480", "Operator API listen address")
	runCmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
	runCmd.Flags().Bool("log-json", false, "Emit JSON logs")
	runCmd.Flags().Duration("permanent-failure-timeout", 20*time.Minute,
		"How long a task may stay failed before recovery turns destructive (0 disables)")
	runCmd.Flags().Duration("destructive-recovery-delay", 10*time.Minute,
		"Minimum delay between destructive recovery launches")
	runCmd.Flags().Bool("exit-on-reregistration", true, "Treat re-registration as fatal")
	runCmd.Flags().Bool("exit-on-offer-rescinded", true, "Treat offer rescinds as fatal")

	viper.SetEnvPrefix("FLOTILLA")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	_ = viper.BindPFlags(runCmd.Flags())

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduler",
	Long: `Run the scheduler against the given service specification.

State is persisted under the data directory so the framework reattaches to
its tasks across restarts. The operator API serves plan and task state and
accepts plan control operations.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log.Init(log.Config{
			Level:      log.Level(viper.GetString("log-level")),
			JSONOutput: viper.GetBool("log-json"),
		})
		metrics.Init()

		spec, err := loadSpec(viper.GetString("spec"))
		if err != nil {
			return err
		}

		dataDir := viper.GetString("data-dir")
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
		store, err := storage.NewBoltStore(dataDir)
		if err != nil {
			return fmt.Errorf("failed to open state store: %w", err)
		}
		defer store.Close()

		broker := events.NewBroker()
		broker.Start()
		defer broker.Stop()

		sched := scheduler.New(spec, store, config.NewStore(store), broker, scheduler.Config{
			PermanentFailureTimeout:  viper.GetDuration("permanent-failure-timeout"),
			DestructiveRecoveryDelay: viper.GetDuration("destructive-recovery-delay"),
			ExitOnReregistration:     viper.GetBool("exit-on-reregistration"),
			ExitOnOfferRescinded:     viper.GetBool("exit-on-offer-rescinded"),
		})
		defer sched.Stop()

		// The driver binding dispatches callbacks into the scheduler. The
		// log driver stands in until a resource manager binding registers.
		d := driver.NewLogDriver()
		sched.Registered(d, "", "")

		// The operator API needs the plan managers, which exist once
		// registration-time initialization finishes.
		apiErrCh := make(chan error, 1)
		go func() {
			select {
			case <-sched.Ready():
			case <-cmd.Context().Done():
				return
			}
			server := api.NewServer(sched.Managers(), store, sched.Killer())
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = server.Shutdown(ctx)
			}()
			if err := server.Start(viper.GetString("api-addr")); err != nil {
				apiErrCh <- fmt.Errorf("api server error: %w", err)
			}
		}()

		log.Info("Scheduler is running. Press Ctrl+C to stop.")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case fatal := <-sched.Fatal():
			log.Errorf("fatal scheduler error", fatal)
			os.Exit(int(fatal.Code))
		case err := <-apiErrCh:
			return err
		case sig := <-sigCh:
			log.Info(fmt.Sprintf("Received signal %v, shutting down", sig))
		}
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate [spec file]",
	Short: "Validate a service specification file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		spec, err := loadSpec(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("✓ %s: %d pods\n", spec.Name, len(spec.Pods))
		return nil
	},
}

func loadSpec(path string) (*types.ServiceSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read spec file: %w", err)
	}
	var spec types.ServiceSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse spec file: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}
