package main

import (
	"fmt"
	"os"
	"tgmed/internal/di"
	"tgmed/internal/structures"

	"github.com/spf13/cobra"
)

func main() {
	flags := &structures.CliFlags{}

	rootCmd := &cobra.Command{
		Use:           "tgmed",
		Short:         "Backend for the Telegram health mini app",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := di.InitApp(flags)
			if err != nil {
				return err
			}
			defer cleanup()
			return app.Run()
		},
	}
	rootCmd.Flags().StringVar(&flags.ConfigPath, "config", "./config", "path to the config file")
	rootCmd.Flags().BoolVar(&flags.DebugMode, "debug", false, "log at debug level to the console as well")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
