package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sagechat/sage/pkg/api"
	"github.com/sagechat/sage/pkg/config"
	"github.com/sagechat/sage/pkg/headless"
	"github.com/sagechat/sage/pkg/logger"
	"github.com/sagechat/sage/pkg/prefs"
	"github.com/sagechat/sage/pkg/state"
	"github.com/sagechat/sage/pkg/tui"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "sage",
	Short: "Terminal client for the Sage study assistant",
	Long: `Chat with the Sage study assistant from the terminal: streamed
answers, quizzes, diagrams, video recommendations, and per-chat
knowledge files.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		client := api.NewClient(cfg.Server.URL, api.WithTimeout(cfg.Server.Timeout))
		st := state.New(viper.GetString("chat"))

		modes := prefs.NewStore(config.BuildSettingsPath("modes.json"))
		if err := modes.Load(); err != nil {
			logger.WithComponent("cmd").Warn("could not load mode preferences", "error", err)
		}

		if viper.GetBool("headless") || viper.GetString("prompt") != "" {
			rag, diagram, youtube := modes.Active().Flags()
			return headless.Run(cmd.Context(), headless.Options{
				Client:      client,
				State:       st,
				Prompt:      viper.GetString("prompt"),
				FilePath:    viper.GetString("file"),
				Modes:       modeOverrides(rag, diagram, youtube),
				IdleTimeout: cfg.Stream.IdleTimeout,
			})
		}

		app, err := tui.New(client, st, modes, cfg)
		if err != nil {
			return fmt.Errorf("failed to create application: %w", err)
		}
		return app.Run()
	},
}

// modeOverrides applies the per-invocation mode flags on top of the
// persisted preference.
func modeOverrides(rag, diagram, youtube bool) api.ModeFlags {
	m := api.ModeFlags{RAG: rag, Diagram: diagram, Youtube: youtube}
	if viper.GetBool("rag") {
		m = api.ModeFlags{RAG: true}
	}
	if viper.GetBool("diagram") {
		m = api.ModeFlags{Diagram: true}
	}
	if viper.GetBool("youtube") {
		m = api.ModeFlags{Youtube: true}
	}
	return m
}

// Execute runs the root command.
func Execute() {
	defer logger.Close()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is .sage/settings.yaml)")

	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level")
	viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.PersistentFlags().String("server", "", "backend server URL")
	viper.BindPFlag("server.url", rootCmd.PersistentFlags().Lookup("server"))

	rootCmd.PersistentFlags().String("chat", "", "open an existing chat by ID")
	viper.BindPFlag("chat", rootCmd.PersistentFlags().Lookup("chat"))

	rootCmd.Flags().StringP("prompt", "p", "", "execute a prompt directly without entering the TUI")
	viper.BindPFlag("prompt", rootCmd.Flags().Lookup("prompt"))

	rootCmd.Flags().BoolP("headless", "H", false, "run without the TUI (requires --prompt)")
	viper.BindPFlag("headless", rootCmd.Flags().Lookup("headless"))

	rootCmd.Flags().String("file", "", "attach a file to the prompt")
	viper.BindPFlag("file", rootCmd.Flags().Lookup("file"))

	rootCmd.Flags().Bool("rag", false, "answer using the chat's knowledge files")
	viper.BindPFlag("rag", rootCmd.Flags().Lookup("rag"))

	rootCmd.Flags().Bool("diagram", false, "ask for a diagram alongside the answer")
	viper.BindPFlag("diagram", rootCmd.Flags().Lookup("diagram"))

	rootCmd.Flags().Bool("youtube", false, "ask for video recommendations alongside the answer")
	viper.BindPFlag("youtube", rootCmd.Flags().Lookup("youtube"))
}
