// Package cmd wires the crewlink command line: the server, its schema migration and
// a few client tools for poking at a running instance.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"

	"crewlink/internal/config"
)

// v holds every setting. Flags are bound onto it so that flag, env and file values
// resolve through one place.
var v = config.New()

// Execute runs the root command. It is called once by main.main.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "crewlink",
	Short:        "Crew connection requests, direct chat and notifications",
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "",
		"Path to a config file (yaml, json or toml)")

	rootCmd.PersistentFlags().StringP("log-level", "v", "info",
		"Log level: trace, debug, info, warn or error")
	_ = v.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	path, _ := rootCmd.PersistentFlags().GetString("config")
	if err := config.ReadFile(v, path); err != nil {
		jww.FATAL.Panicf("failed to read config %s: %+v", path, err)
	}
	config.InitLog(v.GetString("log.level"))
}
