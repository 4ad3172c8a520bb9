package cmd

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"

	"hyperbench/service"
	"hyperbench/service/factory"
)

func nameFlags(flags *pflag.FlagSet) map[string]string {
	flags.String("name", "hyperbench", "network name")
	return map[string]string{"network.name": "name"}
}

func topologyFlags(flags *pflag.FlagSet) map[string]string {
	keys := nameFlags(flags)
	flags.Int("n-orgs", 2, "number of peer organizations")
	flags.Int("n-peer-per-org", 2, "number of peers per organization")
	flags.Int("n-orderers", 1, "number of orderers")
	flags.Int("starting-port", 7160, "ports are handed out after this one")
	flags.String("topology", "", "topology file, replaces the generated topology")
	keys["network.orgs"] = "n-orgs"
	keys["network.peersPerOrg"] = "n-peer-per-org"
	keys["network.orderers"] = "n-orderers"
	keys["network.startingPort"] = "starting-port"
	keys["network.topologyFile"] = "topology"
	return keys
}

var trafficKeys = map[string]string{
	"traffic.throughput": "throughput",
	"traffic.delay":      "delay",
	"traffic.jitter":     "jitter",
	"traffic.loss":       "loss",
}

func deployCmd() *cobra.Command {
	var profileFormat string
	cmd := &cobra.Command{
		Use:     "deploy",
		Aliases: []string{"d"},
		Short:   "Deploy a network and optionally a chaincode on its channel",
		Args:    cobra.NoArgs,
	}

	flags := cmd.Flags()
	keys := topologyFlags(flags)
	flags.String("channel", "hyperbench-channel", "application channel name")
	flags.String("smart-contract-name", "", "chaincode name, no chaincode when empty")
	flags.String("smart-contract-path", "", "chaincode source directory")
	flags.String("smart-contract-version", "1.0", "chaincode version")
	flags.Int("throughput", 1000000, "egress rate in mbit")
	flags.Int("delay", 0, "egress delay in ms")
	flags.Int("jitter", 0, "delay jitter in ms")
	flags.Float64("loss", 0, "packet loss in percent")
	flags.StringVar(&profileFormat, "profile-format", "json", "connection profile format, json or yaml")
	keys["network.channel"] = "channel"
	keys["chaincode.name"] = "smart-contract-name"
	keys["chaincode.path"] = "smart-contract-path"
	keys["chaincode.version"] = "smart-contract-version"
	for k, f := range trafficKeys {
		keys[k] = f
	}

	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		for _, f := range trafficKeys {
			if cmd.Flags().Changed(f) {
				v.Set("traffic.enabled", true)
			}
		}
		return prepare(cmd, keys)
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) (err error) {
		topo, err := topology(conf)
		if err != nil {
			return err
		}
		deps, closeStore, err := newDeps(conf)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, closeStore()) }()

		ctx, cancel := signalContext()
		defer cancel()

		req := &service.DeployRequest{
			Name:          conf.Network.Name,
			Base:          conf.Base,
			Channel:       conf.Network.Channel,
			Topology:      topo,
			Quorum:        conf.Chaincode.QuorumPolicy,
			ProfileFormat: profileFormat,
		}
		if conf.Chaincode.Enabled() {
			req.Chaincode = conf.Chaincode.Source()
		}
		if _, err := service.NewNetworkService(deps).Deploy(ctx, req); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "network %s is running on channel %s\n", req.Name, req.Channel)
		return nil
	}
	return cmd
}

func teardownCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "teardown",
		Aliases: []string{"t"},
		Short:   "Remove every recorded node of a network",
		Args:    cobra.NoArgs,
	}
	keys := nameFlags(cmd.Flags())
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		return prepare(cmd, keys)
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) (err error) {
		deps, closeStore, err := newDeps(conf)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, closeStore()) }()

		ctx, cancel := signalContext()
		defer cancel()
		return service.NewNetworkService(deps).Teardown(ctx, conf.Network.Name)
	}
	return cmd
}

func hostsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hosts",
		Short: "Print the hosts file entries of a topology",
		Args:  cobra.NoArgs,
	}
	keys := topologyFlags(cmd.Flags())
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		return prepare(cmd, keys)
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		topo, err := topology(conf)
		if err != nil {
			return err
		}
		net, err := factory.NewNetworkFactory(conf.Base).NewNetwork(conf.Network.Name, topo)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(service.NewProfileService(net).Hosts())
		return err
	}
	return cmd
}

func profileCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Print the connection profile of a deployed network",
		Args:  cobra.NoArgs,
	}
	keys := nameFlags(cmd.Flags())
	cmd.Flags().StringVar(&format, "format", "json", "json or yaml")
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if format != "json" && format != "yaml" {
			return errors.Errorf("unknown profile format %q", format)
		}
		return prepare(cmd, keys)
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) (err error) {
		deps, closeStore, err := newDeps(conf)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, closeStore()) }()

		raw, err := service.NewNetworkService(deps).Profile(conf.Network.Name, format)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(raw)
		return err
	}
	return cmd
}
