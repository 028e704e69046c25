package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/memohai/immich-bridge/internal/config"
	"github.com/memohai/immich-bridge/internal/immich"
	"github.com/memohai/immich-bridge/internal/logger"
	"github.com/memohai/immich-bridge/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:          "immich-bridge",
		Short:        "Telegram bot that uploads received photos and videos to Immich",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			newApp(resolveConfigPath(configPath)).Run()
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to the TOML config file (default $CONFIG_PATH or "+config.DefaultConfigPath+")")

	root.AddCommand(versionCmd())
	root.AddCommand(checkCmd(&configPath))
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "immich-bridge %s\n", version.GetInfo())
		},
	}
}

func checkCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and test the Immich connection",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath(*configPath))
			if err != nil {
				return err
			}
			logger.Init(cfg.Log.Level, cfg.Log.Format, logger.WithOutput(cmd.ErrOrStderr()))
			client, err := immich.NewClientFromConfig(logger.L, cfg)
			if err != nil {
				return err
			}
			report := client.Check(context.Background())
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, report.StatusLine())
			fmt.Fprintf(out, "Logged in as %s\n", report.Identity.String())
			fmt.Fprintf(out, "Allowed users: %d, max file size: %d MB\n",
				len(cfg.Telegram.AllowedUserIDs), cfg.MaxFileSize()/(1024*1024))
			if !report.Status.Reachable {
				return errors.New("immich is not reachable")
			}
			return nil
		},
	}
}

func resolveConfigPath(flagValue string) string {
	if p := strings.TrimSpace(flagValue); p != "" {
		return p
	}
	return strings.TrimSpace(os.Getenv("CONFIG_PATH"))
}
