package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cme-labs/cme-init/internal/boot"
	"github.com/cme-labs/cme-init/internal/hw"
	"github.com/cme-labs/cme-init/internal/marker"
	"github.com/cme-labs/cme-init/internal/monitor"
	"github.com/cme-labs/cme-init/internal/reset"
	"github.com/cme-labs/cme-init/internal/runtime"
	"github.com/cme-labs/cme-init/internal/shutdown"
	"github.com/cme-labs/cme-init/internal/supervisor"
	"github.com/cme-labs/cme-init/pkg/consts"
	"github.com/cme-labs/cme-init/pkg/logger"
	"github.com/cme-labs/cme-init/pkg/protocol"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "cme-init",
	Short: "cme-init: boot and recovery controller",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the boot controller",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		logger.InitLogger(cfg.Observability.LogLevel, cfg.Paths.BootLog)
		if cfg.Observability.MetricsPort != "" {
			monitor.InitMetrics(cfg.Observability.MetricsPort)
		}

		logger.Log.Info("CME system software starting", "controller", cfg.Controller.Name)
		runController(cfg)
	},
}

var requestRecoveryCmd = &cobra.Command{
	Use:   "request-recovery",
	Short: "Mark the next boot to enter recovery mode",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		store, err := marker.NewStore(cfg.Paths.MarkerDir)
		if err != nil {
			fmt.Printf("Error opening marker store: %v\n", err)
			os.Exit(1)
		}
		if err := store.Set(consts.RecoveryMarker); err != nil {
			fmt.Printf("Error writing recovery marker: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Recovery mode requested for next boot.")
	},
}

// loadConfig reads and validates the config file. Configuration errors are
// fatal here, before any hardware is claimed or the pipeline entered.
func loadConfig() *protocol.Config {
	data, err := os.ReadFile(cfgFile)
	if err != nil {
		fmt.Printf("Error reading config: %v\n", err)
		os.Exit(1)
	}
	var cfg protocol.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		fmt.Printf("Error parsing config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid config: %v\n", err)
		os.Exit(1)
	}
	return &cfg
}

// runController wires the hardware panel, markers, reset watcher, supervisor
// and pipeline together and runs one boot. Whatever happens inside the
// pipeline, control ends at the shutdown coordinator so the hardware lines
// are never left in an undefined state.
func runController(cfg *protocol.Config) {
	timings, err := cfg.Timings()
	if err != nil {
		fmt.Printf("Invalid config: %v\n", err)
		os.Exit(1)
	}

	gpio := hw.NewSysfsGPIO()
	solid, err := gpio.Output(cfg.GPIO.StatusSolid, false) // boot blinking
	if err != nil {
		fatalSetup("status solid line", err)
	}
	green, err := gpio.Output(cfg.GPIO.StatusGreen, true) // boot green
	if err != nil {
		fatalSetup("status color line", err)
	}
	standby, err := gpio.Output(cfg.GPIO.Standby, false) // power stays on
	if err != nil {
		fatalSetup("standby line", err)
	}
	panel := hw.NewPanel(solid, green, standby, logger.Log)

	markers, err := marker.NewStore(cfg.Paths.MarkerDir)
	if err != nil {
		fatalSetup("marker store", err)
	}

	edges, button, err := gpio.Button(cfg.GPIO.ResetN, consts.DefaultDebounce)
	if err != nil {
		fatalSetup("reset button line", err)
	}

	coord := shutdown.New(panel, markers, []io.Closer{edges})

	// Anything unexpected below converts into a normal teardown, never an
	// abrupt crash that would leave the indicator or power lines undefined.
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Error("Panic in boot pipeline", "panic", r)
			coord.Trigger("panic")
		}
	}()

	classifier, err := reset.NewClassifier(timings, reset.SystemClock{}, button, panel)
	if err != nil {
		fatalSetup("hold classifier", err)
	}
	restarter := reset.NewSystemRestarter(markers, cfg.Reset.RebootCommand, cfg.Reset.HaltCommand)
	watcher := reset.NewWatcher(edges, classifier, restarter)

	ctx := context.Background()
	watcher.Start(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Log.Info("Signal: stop received", "signal", sig.String())
		coord.Trigger("signal " + sig.String())
	}()

	rt := runtime.NewDockerCLI()
	group := supervisor.New(cfg, rt, rt)

	pipeline, err := boot.New(cfg, markers, panel, group, recoveryRunner(cfg))
	if err != nil {
		logger.Log.Error("Pipeline assembly failed", "err", err)
		coord.Trigger("pipeline assembly failed")
		return
	}

	if err := pipeline.Run(ctx); err != nil {
		logger.Log.Error("Pipeline ended with error", "err", err)
	}
	coord.Trigger("pipeline finished")
}

// recoveryRunner blocks on the recovery application until it exits.
func recoveryRunner(cfg *protocol.Config) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		argv := cfg.Recovery.Command
		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		return cmd.Run()
	}
}

func fatalSetup(what string, err error) {
	fmt.Printf("Error claiming %s: %v\n", what, err)
	os.Exit(1)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "/etc/cme-init.yaml", "config file path")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(requestRecoveryCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
