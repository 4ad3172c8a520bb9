package cmd

import (
	"io/ioutil"

	"github.com/pkg/errors"

	"hyperbench/config"
	"hyperbench/dao"
	"hyperbench/global"
	"hyperbench/model"
	"hyperbench/model/docker"
	"hyperbench/model/kubernetes"
	"hyperbench/service"
	"hyperbench/service/factory"
	"hyperbench/service/factory/sdk"
)

func newRuntime(c *config.Config) (service.Runtime, error) {
	switch c.Runtime.Driver {
	case config.RuntimeKubernetes:
		k := c.Runtime.Kubernetes
		clientset, restConfig, err := global.NewK8sClient(k.Kubeconfig)
		if err != nil {
			return nil, err
		}
		return kubernetes.NewRuntime(clientset, restConfig, k.Namespace, k.NFSServer, k.NFSPath), nil
	default:
		client, err := global.NewDockerClient(c.Runtime.Docker.Endpoint)
		if err != nil {
			return nil, err
		}
		return docker.NewRuntime(client, c.Base), nil
	}
}

func newStore(c *config.Config) (dao.Store, error) {
	if c.Store.Driver == config.StoreMySQL {
		store, err := dao.OpenMySQL(c.Store.DSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	store, err := dao.OpenBadger(c.Store.Path)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// newDeps wires the collaborators described by c. The returned func closes
// the store.
func newDeps(c *config.Config) (*service.Deps, func() error, error) {
	rt, err := newRuntime(c)
	if err != nil {
		return nil, nil, err
	}
	store, err := newStore(c)
	if err != nil {
		return nil, nil, err
	}

	containers := factory.NewContainerFactory(factory.Images{
		CA:      c.Images.CA,
		Peer:    c.Images.Peer,
		Orderer: c.Images.Orderer,
	}, c.Runtime.Docker.Network)
	containers.User = c.Runtime.Docker.User
	containers.CPUs = c.Runtime.Docker.CPUs

	sdkConfigs := sdk.NewSDKConfigFactory(c.Log.Level)
	traffic := c.Traffic

	deps := &service.Deps{
		Runtime:    rt,
		CAs:        sdk.NewCAClientFactory(sdkConfigs),
		Peers:      sdk.NewPeerAdminFactory(sdkConfigs),
		Orderers:   sdk.NewOSNAdmin(),
		Genesis:    factory.NewGenesisFactory(),
		Store:      store,
		Containers: containers,
		Waiter: service.Waiter{
			Timeout:     c.Readiness.Timeout,
			Interval:    c.Readiness.Interval,
			MaxInterval: c.Readiness.MaxInterval,
			ProbePorts:  c.Readiness.ProbePorts,
		},
		Scheduler:  service.NewScheduler(c.Scheduler.Workers),
		OnExisting: c.Registration.OnExisting,
		Traffic:    &traffic,
	}
	return deps, store.Close, nil
}

// topology reads the configured topology file or generates one from the
// network parameters.
func topology(c *config.Config) (*model.TopologyDefinition, error) {
	if c.Network.TopologyFile == "" {
		return model.GenerateTopology(c.Network.Topology)
	}
	raw, err := ioutil.ReadFile(c.Network.TopologyFile)
	if err != nil {
		return nil, errors.WithMessage(err, "fail to read topology file")
	}
	return model.ParseTopology(raw)
}
