package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"DevPanel/pkg/config"
	"DevPanel/pkg/logger"
	"DevPanel/pkg/toolchain"
	"DevPanel/pkg/types"
)

var (
	// Global flags
	cfgFile  string
	platform string
	verbose  bool

	// Loaded in PersistentPreRunE
	cfgLoader *config.Loader
	cfg       *config.Config

	mcpConfirm  bool
	devicesJSON bool
)

// rootCmd opens the desktop panel when run without a subcommand
var rootCmd = &cobra.Command{
	Use:   "devpanel",
	Short: "Desktop panel for device command-line tools",
	Long: `devpanel lists attached Android or iOS devices and drives adb, scrcpy and
libimobiledevice against the selected one: mirroring, recording, backups,
installs, log streaming, screenshots and reboots.

Run without a subcommand to open the desktop window.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := NewApp(Version, cfg, cfgLoader)
		return runDesktop(app)
	},
}

// Execute runs the command line
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: config.yaml in the settings directory)")
	rootCmd.PersistentFlags().StringVarP(&platform, "platform", "p", "", "device platform: android or ios (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	mcpCmd.Flags().BoolVar(&mcpConfirm, "confirm", false, "ask the client to confirm uninstall and reboot")
	devicesCmd.Flags().BoolVar(&devicesJSON, "json", false, "output machine-readable JSON")

	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	l, err := config.NewLoader(cfgFile)
	if err != nil {
		return err
	}
	c, err := l.Config()
	if err != nil {
		return err
	}
	if platform != "" {
		c.Platform = platform
		if err := config.Validate(c); err != nil {
			return err
		}
	}
	if verbose {
		c.Logging.Level = "debug"
	}
	if err := logger.InitLogger(c.LogConfig()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	cfgLoader, cfg = l, c
	logger.LogDebug("cli").Str("config", l.ConfigFile()).Str("platform", c.Platform).Msg("Configuration loaded")
	return nil
}

// newHeadlessApp starts a panel without the Wails runtime
func newHeadlessApp(ctx context.Context) *App {
	app := NewApp(Version, cfg, cfgLoader)
	app.headless = true
	app.startup(ctx)
	return app
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the panel over MCP on stdio",
	Long: `Start a Model Context Protocol server on stdin/stdout so AI clients can list
devices and run operations. Logs go to stderr and the log file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := newHeadlessApp(context.Background())
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			app.Shutdown(ctx)
			logger.CloseLogger()
		}()
		return StartMCPServer(app, mcpConfirm)
	},
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Poll once and print attached devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app := NewApp(Version, cfg, cfgLoader)
		app.headless = true
		if err := app.initPanel(); err != nil {
			return err
		}
		defer app.Shutdown(context.Background())

		res := app.poller.PollOnce(ctx)
		if res.Err != nil {
			return fmt.Errorf("device listing failed: %w", res.Err)
		}

		if devicesJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res.Devices)
		}
		if len(res.Devices) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No devices connected")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tMODEL\tSTATUS")
		for _, d := range res.Devices {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.ID, d.Name, d.Model, d.Status)
		}
		return w.Flush()
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that the platform's tools can be started",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := NewApp(Version, cfg, cfgLoader)
		app.headless = true
		if err := app.initPanel(); err != nil {
			return err
		}
		defer app.Shutdown(context.Background())

		missing := 0
		for _, st := range app.CheckDependencies() {
			mark := "ok"
			detail := st.Version
			if !st.Available {
				mark, detail = "missing", st.Error
				missing++
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-8s %-20s %s\n", mark, st.Name, detail)
		}
		if missing > 0 {
			return fmt.Errorf("%d tool(s) not available; %s", missing, installHint(app.tc))
		}
		return nil
	},
}

func installHint(tc toolchain.Toolchain) string {
	if tc.Platform() == types.PlatformIOS {
		return "install libimobiledevice and ideviceinstaller"
	}
	return "install Android platform-tools and scrcpy, or set tools.dirs"
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "devpanel %s\n", Version)
		fmt.Fprintf(cmd.OutOrStdout(), "  Build time: %s\n", BuildTime)
		fmt.Fprintf(cmd.OutOrStdout(), "  Git commit: %s\n", GitCommit)
	},
}
