package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/DrSkyle/vitool/pkg/config"
	"github.com/DrSkyle/vitool/pkg/version"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "vitool",
	Short: "Interactive operator shell",
	Long: `vitool - Operator Utility Shell

Query databases, verify STS keys and encrypt configuration secrets
from one prompt.`,
	Version:       version.Current,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
		return runShell(cmd.Context(), cfg)
	},
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default $HOME/"+config.FileName+")")
	flags.String("log-level", config.DefaultLogLevel, "log level: debug, info, warn or error")
	flags.Bool("json-logs", false, "write logs as JSON")
	flags.String("otel-endpoint", "", "OTLP HTTP endpoint for traces")
	flags.String("history-file", "", "readline history file")
	flags.BoolP("verbose", "v", false, "log every cloud API call")

	bind(flags, config.KeyLogLevel, "log-level")
	bind(flags, config.KeyLogJSON, "json-logs")
	bind(flags, config.KeyOTelEndpoint, "otel-endpoint")
	bind(flags, config.KeyHistoryFile, "history-file")
	bind(flags, config.KeyVerbose, "verbose")

	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		renderHelp(cmd)
	})

	rootCmd.AddCommand(versionCmd)
}

func bind(flags *pflag.FlagSet, key, name string) {
	if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
		panic(err)
	}
}

func initConfig() {
	config.Prepare(viper.GetViper(), cfgFile)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the vitool version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", version.AppName, version.Current)
	},
}

func renderHelp(cmd *cobra.Command) {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FFD75F")).
		MarginBottom(1)

	flagStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA"))

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("VITOOL %s", version.Current)))
	fmt.Fprintln(out, cmd.Short+".")
	fmt.Fprintln(out)

	fmt.Fprintln(out, titleStyle.Render("USAGE"))
	fmt.Fprintf(out, "  %s\n\n", cmd.UseLine())

	if cmd.HasAvailableSubCommands() {
		fmt.Fprintln(out, titleStyle.Render("COMMANDS"))
		for _, c := range cmd.Commands() {
			if c.IsAvailableCommand() {
				fmt.Fprintf(out, "  %-12s %s\n", c.Name(), c.Short)
			}
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintln(out, titleStyle.Render("FLAGS"))
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		line := fmt.Sprintf("  --%-15s %s", f.Name, f.Usage)
		if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" {
			line += fmt.Sprintf(" (default %s)", f.DefValue)
		}
		fmt.Fprintln(out, flagStyle.Render(line))
	})
	fmt.Fprintln(out)
}
