// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Command hioselect runs a line-oriented echo server or client on top of the
// select-style reactor.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version of the hioselect tool.
const Version = "0.3.0"

// EnvPrefix prefixes environment overrides, e.g. HIOSELECT_LISTEN=:9400.
const EnvPrefix = "hioselect"

var (
	rootCmd = &cobra.Command{
		Use:   "hioselect",
		Short: "select-style reactor echo server and client",
		Long: fmt.Sprintf(`hioselect (v%s)

A single-threaded readiness reactor driving buffered, delimiter-framed
sockets. Flags can also be set as %s_<FLAG> environment variables or in
.env / .env.local files.`, Version, strings.ToUpper(EnvPrefix)),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of hioselect",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hioselect v%s\n", Version)
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.AddCommand(newServeCmd(), newClientCmd(), versionCmd)
}

func initConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// bindFlags makes cmd's flags visible through viper.
func bindFlags(cmd *cobra.Command, _ []string) error {
	return viper.BindPFlags(cmd.Flags())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
