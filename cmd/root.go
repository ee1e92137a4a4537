package cmd

import (
	"fmt"
	"os"

	"github.com/dream-factory-code/go-tolar/cmd/env"
	"github.com/dream-factory-code/go-tolar/cmd/group"
	"github.com/dream-factory-code/go-tolar/cmd/key"
	"github.com/dream-factory-code/go-tolar/cmd/probe"
	"github.com/dream-factory-code/go-tolar/cmd/receipt"
	"github.com/dream-factory-code/go-tolar/cmd/send"
	"github.com/dream-factory-code/go-tolar/internal/config"
	"github.com/dream-factory-code/go-tolar/internal/util/command"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Version: config.GetFormattedBuildArgs(),
	Use:     "tolar",
	Short:   config.ModuleName,
	Long: fmt.Sprintf(`%v

A client for Tolar HashNet and Besu nodes: signs, submits and confirms
transactions and manages on-chain privacy groups.
Requires configuration through ENV (TOLAR_*), optionally overlaid by --profile.`, config.ModuleName),
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	command.RegisterProfileFlag(rootCmd)

	// attach the subcommands
	rootCmd.AddCommand(
		env.New(),
		group.New(),
		key.New(),
		probe.New(),
		receipt.New(),
		send.New(),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Failed to execute root command")
		os.Exit(1)
	}
}
