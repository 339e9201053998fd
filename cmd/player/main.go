// usbloop: kiosk player that loops the videos found on an inserted USB
// drive, fullscreen and unattended.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"usbloop/internal/api"
	"usbloop/internal/app"
	"usbloop/internal/config"
	"usbloop/internal/input"
	"usbloop/internal/logging"
	"usbloop/internal/playlist"
	"usbloop/internal/prefs"
	"usbloop/internal/rotation"
	"usbloop/internal/storage"
	"usbloop/internal/system"
	"usbloop/internal/vlc"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// Build-time variables, set with -ldflags "-X main.version=...".
var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	labelStyle = lipgloss.NewStyle().Width(18).Foreground(lipgloss.Color("245"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// globalFlags are shared by every command.
type globalFlags struct {
	configPath string
	logLevel   string
}

func main() {
	var gf globalFlags

	rootCmd := &cobra.Command{
		Use:          "usbloop",
		Short:        "usbloop: loop the videos on a USB drive, fullscreen",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&gf.configPath, "config", "c", config.DefaultPath, "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&gf.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	rootCmd.AddCommand(runCmd(&gf))
	rootCmd.AddCommand(scanCmd(&gf))
	rootCmd.AddCommand(rotateCmd(&gf))
	rootCmd.AddCommand(checkCmd(&gf))
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the config, applies the command's overrides and then the
// global ones, validates and builds the root logger. override may be nil.
func setup(gf *globalFlags, override func(*config.Config)) (config.Config, *log.Logger, error) {
	cfg, err := config.Load(gf.configPath)
	if err != nil {
		return cfg, nil, err
	}
	if override != nil {
		override(&cfg)
	}
	if gf.logLevel != "" {
		cfg.LogLevel = gf.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return cfg, nil, fmt.Errorf("config: %w", err)
	}

	logger, err := logging.New(os.Stderr, cfg.LogLevel)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, logger, nil
}

func newLocator(cfg config.Config, logger *log.Logger) *storage.Locator {
	return storage.NewLocator(storage.NewSysfsSource(), cfg.FallbackDir, logger)
}

// runFlags are the run command's overrides of config file values.
type runFlags struct {
	fallbackDir string
	backend     string
	inputDevice string
	prefsDir    string
	retryDelay  string
	rescan      bool
}

// register binds the flags to cmd.
func (rf *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&rf.fallbackDir, "fallback", "f", "", "Directory to use when no USB drive is found")
	cmd.Flags().StringVarP(&rf.backend, "backend", "b", "", "Player backend (cvlc, libvlc)")
	cmd.Flags().StringVarP(&rf.inputDevice, "input", "i", "", "evdev device for the remote control, e.g. /dev/input/event0")
	cmd.Flags().StringVar(&rf.prefsDir, "prefs-dir", "", "Directory for persisted settings")
	cmd.Flags().StringVar(&rf.retryDelay, "retry-delay", "", "Delay before the next video, e.g. 1s")
	cmd.Flags().BoolVar(&rf.rescan, "rescan", false, "Reload the playlist when the video folder changes")
}

// apply copies the flags that were set on cmd into cfg.
func (rf *runFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("fallback") {
		cfg.FallbackDir = rf.fallbackDir
	}
	if flags.Changed("backend") {
		cfg.Backend = rf.backend
	}
	if flags.Changed("input") {
		cfg.InputDevice = rf.inputDevice
	}
	if flags.Changed("prefs-dir") {
		cfg.PrefsDir = rf.prefsDir
	}
	if flags.Changed("retry-delay") {
		cfg.RetryDelay = rf.retryDelay
	}
	if flags.Changed("rescan") {
		cfg.Rescan = rf.rescan
	}
}

// runCmd starts discovery, the playback loop, the remote control and
// the optional heartbeat, and runs until SIGINT or SIGTERM.
func runCmd(gf *globalFlags) *cobra.Command {
	var rf runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the player",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(gf, func(cfg *config.Config) { rf.apply(cmd, cfg) })
			if err != nil {
				return err
			}
			logger.Info("usbloop starting", "version", version, "built", buildTime, "backend", cfg.Backend)

			delay, _ := cfg.Delay()

			player, err := vlc.New(cfg.Backend, logger)
			if err != nil {
				return fmt.Errorf("player init: %w", err)
			}
			defer player.Release()

			var keys input.Source
			if cfg.InputDevice != "" {
				keys = input.NewEvdevSource(cfg.InputDevice, logger)
			} else {
				logger.Info("no input device configured, rotation key disabled")
			}

			a := app.New(
				newLocator(cfg, logger),
				player,
				prefs.NewFileStore(cfg.PrefsDir),
				keys,
				app.Options{RetryDelay: delay, Rescan: cfg.Rescan, Settle: playlist.DefaultSettle},
				logger,
			)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if cfg.HeartbeatEnabled() {
				hb := api.NewClient(cfg.Heartbeat, version, func() api.Status {
					st := a.Status()
					return api.Status{
						Folder:   st.Folder,
						State:    st.State,
						Index:    st.Index,
						File:     st.File,
						Total:    st.Total,
						Rotation: st.Rotation,
					}
				}, logger)
				go hb.Run(ctx)
			}

			if err := a.Run(ctx); err != nil {
				return err
			}
			logger.Info("shutdown complete")
			return nil
		},
	}

	rf.register(cmd)

	return cmd
}

// scanCmd runs discovery once and prints what would be played.
func scanCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Locate storage and print the playlist",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(gf, nil)
			if err != nil {
				return err
			}

			begin := time.Now()
			root, ok := newLocator(cfg, logger).Locate()
			if !ok {
				fmt.Println(warnStyle.Render("No storage found"))
				return nil
			}

			folder := playlist.ResolveFolder(root)
			files := playlist.List(folder, logger.WithPrefix("scanner"))

			fmt.Println(titleStyle.Render("Playlist"))
			fmt.Println(labelStyle.Render("Storage") + root)
			fmt.Println(labelStyle.Render("Folder") + folder)
			fmt.Println(labelStyle.Render("Videos") + fmt.Sprintf("%d", len(files)))
			fmt.Println(labelStyle.Render("Took") + logging.Since(begin))
			if len(files) == 0 {
				fmt.Println(warnStyle.Render("No playable videos"))
				return nil
			}
			for i, f := range files {
				fmt.Printf("%s %s\n", dimStyle.Render(fmt.Sprintf("%3d", i+1)), filepath.Base(f))
			}
			return nil
		},
	}
}

// rotateCmd flips the persisted rotation. A running player picks it up
// on its next start.
func rotateCmd(gf *globalFlags) *cobra.Command {
	var prefsDir string

	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Toggle the saved output rotation between 0° and 90°",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(gf, func(cfg *config.Config) {
				if cmd.Flags().Changed("prefs-dir") {
					cfg.PrefsDir = prefsDir
				}
			})
			if err != nil {
				return err
			}

			toggle := rotation.New(prefs.NewFileStore(cfg.PrefsDir), nopOutput{}, logger)
			toggle.Restore()
			toggle.Toggle()
			if err := toggle.Persist(); err != nil {
				return err
			}

			fmt.Println(labelStyle.Render("Rotation") + fmt.Sprintf("%d°", toggle.Angle()))
			fmt.Println(dimStyle.Render("Applied on next start"))
			return nil
		},
	}
	cmd.Flags().StringVar(&prefsDir, "prefs-dir", "", "Directory for persisted settings")
	return cmd
}

// nopOutput satisfies rotation.Output when no player is running.
type nopOutput struct{}

func (nopOutput) SetTransform(int) error    { return nil }
func (nopOutput) SetViewRotation(int) error { return nil }

func checkCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run a system health check",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(gf, nil)
			if err != nil {
				return err
			}

			volume, ok := newLocator(cfg, logger).Locate()
			if !ok {
				volume = "/"
			}
			h := system.NewChecker(logger).Check(volume)

			fmt.Println(titleStyle.Render("Health"))
			fmt.Println(labelStyle.Render("Volume") + h.Volume)
			fmt.Println(labelStyle.Render("CPU Temperature") + fmt.Sprintf("%.1f°C", h.CPUTempC))
			fmt.Println(labelStyle.Render("Disk Usage") + fmt.Sprintf("%.1f%%", h.DiskUsedPct))
			fmt.Println(labelStyle.Render("Disk Free") + fmt.Sprintf("%d MB", h.DiskFreeBytes/1024/1024))
			fmt.Println(labelStyle.Render("Throttled") + fmt.Sprintf("%v", h.Throttled))
			for name, err := range h.Errors {
				fmt.Println(warnStyle.Render(fmt.Sprintf("%s: %v", name, err)))
			}
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("usbloop %s\nBuilt: %s\n", version, buildTime)
		},
	}
}
