package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"hyperbench/config"
	"hyperbench/global"
)

var (
	cfgFile string
	v       = config.New()
	conf    *config.Config
)

// The root command describes the tool and defaults to printing the help
// message.
var rootCmd = &cobra.Command{
	Use:          "hyperbench",
	Short:        "Provision Hyperledger Fabric networks for benchmarking",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml)")

	rootCmd.AddCommand(deployCmd())
	rootCmd.AddCommand(teardownCmd())
	rootCmd.AddCommand(hostsCmd())
	rootCmd.AddCommand(profileCmd())
	rootCmd.AddCommand(serveCmd())
}

// prepare binds the flags of cmd to their config keys and loads the config.
// Flags are bound per command since several commands share a key.
func prepare(cmd *cobra.Command, keys map[string]string) error {
	for key, flag := range keys {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return err
		}
	}
	return loadConfig(v)
}

func loadConfig(v *viper.Viper) error {
	c, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	if err := global.InitLogger(c.Log.Level, c.Log.Development); err != nil {
		return err
	}
	conf = c
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func Execute() error {
	return rootCmd.Execute()
}
