// Package main provides the entry point for the tribunal CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/tribunal-tts/internal/config"
	"github.com/dgnsrekt/tribunal-tts/internal/metrics"
	"github.com/dgnsrekt/tribunal-tts/internal/source"
	"github.com/dgnsrekt/tribunal-tts/internal/speech"
	"github.com/dgnsrekt/tribunal-tts/internal/transcript"
	"github.com/dgnsrekt/tribunal-tts/ui"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile  string
	headless    bool
	watch       bool
	mute        bool
	mouse       bool
	metricsAddr string
	width       uint

	// cfg is loaded before any command runs.
	cfg config.Config

	rootCmd = &cobra.Command{
		Use:   "tribunal [SOURCE]",
		Short: "Read multi-speaker transcripts aloud",
		Long: paragraph(
			fmt.Sprintf("\nRead %s transcripts aloud, one voice per speaker.", keyword("[Speaker] text")),
		),
		Example: paragraph("tribunal debate.md\ncat debate.txt | tribunal --headless\ntribunal https://example.com/acta.md --engine gtts"),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return nil, cobra.ShellCompDirectiveDefault
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

func validateOptions(cmd *cobra.Command) error {
	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}

	headless = viper.GetBool("headless")
	watch = viper.GetBool("watch")
	mute = viper.GetBool("mute")
	mouse = viper.GetBool("mouse")
	width = viper.GetUint("width")
	metricsAddr = viper.GetString("metrics_addr")

	var err error
	cfg, err = config.Load(viper.GetViper())
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	isTerminal := term.IsTerminal(int(os.Stdout.Fd()))
	if !isTerminal && !cmd.Flags().Changed("headless") {
		headless = true
	}

	if !cmd.Flags().Changed("width") {
		if isTerminal && width == 0 {
			w, _, err := term.GetSize(int(os.Stdout.Fd()))
			if err == nil {
				width = uint(w) //nolint:gosec
			}
			if width > 120 {
				width = 120
			}
		}
		if width == 0 {
			width = 80
		}
	}
	return nil
}

func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to open file: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

// sourceArg picks the transcript source: the argument, or stdin when it is
// piped.
func sourceArg(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if yes, err := stdinIsPipe(); err != nil {
		return "", err
	} else if yes {
		return "-", nil
	}
	return "", errors.New("missing transcript source")
}

func execute(cmd *cobra.Command, args []string) error {
	arg, err := sourceArg(args)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	src, err := source.Load(ctx, arg)
	if err != nil {
		return err //nolint:wrapcheck
	}

	s, err := newStack(cfg, mute)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.Warn("Shutdown", "err", err)
		}
	}()

	if !s.synth.Available() {
		return fmt.Errorf("speech synthesis unavailable: %w", s.engine.Validate())
	}

	go func() {
		if err := s.controller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Playback loop stopped", "err", err)
		}
	}()

	if metricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, metricsAddr); err != nil {
				log.Error("Metrics server stopped", "err", err)
			}
		}()
	}

	if headless {
		if watch {
			log.Warn("--watch is only supported in the TUI")
		}
		return runHeadless(ctx, s.controller, src.Text, cmd.OutOrStdout())
	}
	return runTUI(src, s.controller, s.engine.Name())
}

// runHeadless plays text to the end, printing each segment as it starts.
func runHeadless(ctx context.Context, c *speech.Controller, text string, w io.Writer) error {
	done := make(chan struct{})
	var once sync.Once
	finish := func() { once.Do(func() { close(done) }) }

	c.OnSegmentChange(func(_ int, seg transcript.Segment) {
		fmt.Fprintf(w, "%s: %s\n", seg.Speaker, seg.Speakable()) //nolint:errcheck
	})
	c.OnStateChange(func(isPlaying bool) {
		if !isPlaying && c.State() == speech.StateIdle {
			finish()
		}
	})

	c.Submit(text)
	if c.State() == speech.StateIdle {
		finish()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		c.Stop()
		return nil
	}
}

func runTUI(src *source.Source, c *speech.Controller, engine string) error {
	// Read environment to get debugging stuff
	uiCfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %w", err)
	}

	uiCfg.Name = src.Name
	uiCfg.Path = src.Path
	uiCfg.Watch = watch
	uiCfg.Engine = engine
	uiCfg.EnableMouse = mouse
	uiCfg.GlamourMaxWidth = width
	if s := viper.GetString("style"); s != "" {
		uiCfg.GlamourStyle = s
	}

	if _, err := ui.NewProgram(uiCfg, c, src.Text).Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().StringP("engine", "e", "", "speech engine (piper, gtts, mock)")
	rootCmd.Flags().BoolVarP(&headless, "headless", "H", false, "play without the TUI and exit when done")
	rootCmd.Flags().BoolVarP(&watch, "watch", "W", false, "replay the transcript when the file changes")
	rootCmd.Flags().BoolVarP(&mute, "mute", "M", false, "synthesize without opening the audio device")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	rootCmd.Flags().UintVarP(&width, "width", "w", 0, "word-wrap the current segment at width")
	rootCmd.Flags().StringP("style", "s", "auto", "glamour style name")
	rootCmd.Flags().BoolVarP(&mouse, "mouse", "m", false, "enable mouse wheel (TUI-mode only)")
	_ = rootCmd.Flags().MarkHidden("mouse")

	// Config bindings
	_ = viper.BindPFlag("tts.engine", rootCmd.PersistentFlags().Lookup("engine"))
	_ = viper.BindPFlag("headless", rootCmd.Flags().Lookup("headless"))
	_ = viper.BindPFlag("watch", rootCmd.Flags().Lookup("watch"))
	_ = viper.BindPFlag("mute", rootCmd.Flags().Lookup("mute"))
	_ = viper.BindPFlag("metrics_addr", rootCmd.Flags().Lookup("metrics-addr"))
	_ = viper.BindPFlag("width", rootCmd.Flags().Lookup("width"))
	_ = viper.BindPFlag("style", rootCmd.Flags().Lookup("style"))
	_ = viper.BindPFlag("mouse", rootCmd.Flags().Lookup("mouse"))

	viper.SetDefault("style", "auto")
	viper.SetDefault("width", 0)
	config.SetDefaults(viper.GetViper())

	rootCmd.AddCommand(configCmd, manCmd, parseCmd, voicesCmd, cacheCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, config.AppName)
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, config.AppName)}, dirs...)
	}

	if c := os.Getenv("TRIBUNAL_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName(config.AppName)
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix(config.AppName)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], config.AppName+".yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
