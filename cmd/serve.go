package cmd

import (
	"fmt"

	"github.com/fvbock/endless"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"hyperbench/api"
	"hyperbench/global"
	"hyperbench/router"
	"hyperbench/service"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().String("addr", "0.0.0.0:8080", "listen address")
	keys := map[string]string{"server.addr": "addr"}

	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		return prepare(cmd, keys)
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) (err error) {
		deps, closeStore, err := newDeps(conf)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, closeStore()) }()

		h := api.NewHandler(service.NewNetworkService(deps), api.Defaults{
			Base:    conf.Base,
			Channel: conf.Network.Channel,
			Params:  conf.Network.Topology,
		})
		global.Logger.Info(fmt.Sprintf("[Serve %s]", conf.Server.Addr))
		s := endless.NewServer(conf.Server.Addr, router.GetRouter(h))
		if err := s.ListenAndServe(); err != nil {
			global.Logger.Error("server stopped", zap.Error(err))
			return err
		}
		return nil
	}
	return cmd
}
