package config

import (
	"strings"
	"time"

	"github.com/hashicorp/go-version"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"hyperbench/model"
)

const EnvPrefix = "HYPERBENCH"

// MinFabricVersion is the first release with the channel participation API.
const MinFabricVersion = "2.3"

type Config struct {
	// Base is where network material is stored. Every container mounts it.
	Base          string               `mapstructure:"base"`
	FabricVersion string               `mapstructure:"fabricVersion"`
	Runtime       RuntimeConfig        `mapstructure:"runtime"`
	Images        ImagesConfig         `mapstructure:"images"`
	Scheduler     SchedulerConfig      `mapstructure:"scheduler"`
	Readiness     ReadinessConfig      `mapstructure:"readiness"`
	Registration  RegistrationConfig   `mapstructure:"registration"`
	Store         StoreConfig          `mapstructure:"store"`
	Server        ServerConfig         `mapstructure:"server"`
	Log           LogConfig            `mapstructure:"log"`
	Network       NetworkConfig        `mapstructure:"network"`
	Chaincode     ChaincodeConfig      `mapstructure:"chaincode"`
	Traffic       model.TrafficShaping `mapstructure:"traffic"`
}

const (
	RuntimeDocker     = "docker"
	RuntimeKubernetes = "kubernetes"
)

type RuntimeConfig struct {
	Driver     string           `mapstructure:"driver"`
	Docker     DockerConfig     `mapstructure:"docker"`
	Kubernetes KubernetesConfig `mapstructure:"kubernetes"`
}

type DockerConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Network  string `mapstructure:"network"`
	// User runs containers as this uid when set.
	User string  `mapstructure:"user"`
	CPUs float64 `mapstructure:"cpus"`
}

type KubernetesConfig struct {
	Kubeconfig string `mapstructure:"kubeconfig"`
	Namespace  string `mapstructure:"namespace"`
	NFSServer  string `mapstructure:"nfsServer"`
	// NFSPath is the exported directory that holds Base.
	NFSPath string `mapstructure:"nfsPath"`
}

type ImagesConfig struct {
	CA      string `mapstructure:"ca"`
	Peer    string `mapstructure:"peer"`
	Orderer string `mapstructure:"orderer"`
}

type SchedulerConfig struct {
	Workers int `mapstructure:"workers"`
}

type ReadinessConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	Interval    time.Duration `mapstructure:"interval"`
	MaxInterval time.Duration `mapstructure:"maxInterval"`
	ProbePorts  bool          `mapstructure:"probePorts"`
}

const (
	OnExistingSkip  = "skip"
	OnExistingError = "error"
)

type RegistrationConfig struct {
	OnExisting string `mapstructure:"onExisting"`
}

const (
	StoreBadger = "badger"
	StoreMySQL  = "mysql"
)

type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
	DSN    string `mapstructure:"dsn"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type NetworkConfig struct {
	Name     string               `mapstructure:"name"`
	Channel  string               `mapstructure:"channel"`
	Topology model.TopologyParams `mapstructure:",squash"`
	// TopologyFile replaces the generated topology when set.
	TopologyFile string `mapstructure:"topologyFile"`
}

type ChaincodeConfig struct {
	Name              string `mapstructure:"name"`
	Path              string `mapstructure:"path"`
	Version           string `mapstructure:"version"`
	Kind              string `mapstructure:"kind"`
	EndorsementPolicy string `mapstructure:"endorsementPolicy"`
	QuorumPolicy      string `mapstructure:"quorumPolicy"`
	// Address is the chaincode server endpoint of an external package.
	Address string `mapstructure:"address"`
}

func (c ChaincodeConfig) Enabled() bool {
	return c.Name != ""
}

func (c ChaincodeConfig) Source() *model.ChaincodeSource {
	return &model.ChaincodeSource{
		Name:              c.Name,
		Version:           c.Version,
		Kind:              model.ChaincodeKind(c.Kind),
		Path:              c.Path,
		Address:           c.Address,
		EndorsementPolicy: c.EndorsementPolicy,
		QuorumPolicy:      c.QuorumPolicy,
	}
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("base", "/var/hyperbench")
	v.SetDefault("fabricVersion", "2.4")
	v.SetDefault("runtime.driver", RuntimeDocker)
	v.SetDefault("runtime.docker.endpoint", "unix:///var/run/docker.sock")
	v.SetDefault("runtime.docker.network", "fabric_network")
	v.SetDefault("runtime.kubernetes.namespace", "default")
	v.SetDefault("runtime.kubernetes.nfsServer", "nfs-server")
	v.SetDefault("runtime.kubernetes.nfsPath", "/var/hyperbench")
	v.SetDefault("images.ca", "hyperledger/fabric-ca:1.5")
	v.SetDefault("images.peer", "hyperledger/fabric-peer:2.4")
	v.SetDefault("images.orderer", "hyperledger/fabric-orderer:2.4")
	v.SetDefault("scheduler.workers", 8)
	v.SetDefault("readiness.timeout", 60*time.Second)
	v.SetDefault("readiness.interval", 500*time.Millisecond)
	v.SetDefault("readiness.maxInterval", 5*time.Second)
	v.SetDefault("readiness.probePorts", true)
	v.SetDefault("registration.onExisting", OnExistingSkip)
	v.SetDefault("store.driver", StoreBadger)
	v.SetDefault("store.path", "/var/hyperbench/store")
	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", true)
	v.SetDefault("network.name", "hyperbench")
	v.SetDefault("network.channel", "hyperbench-channel")
	v.SetDefault("network.orgs", 2)
	v.SetDefault("network.peersPerOrg", 2)
	v.SetDefault("network.orderers", 1)
	v.SetDefault("network.startingPort", 7160)
	v.SetDefault("chaincode.version", "1.0")
	v.SetDefault("chaincode.kind", string(model.ChaincodeGolang))
	v.SetDefault("chaincode.quorumPolicy", model.QuorumMajority)
	v.SetDefault("traffic.throughput", model.DefaultThroughput)
}

// New returns a viper instance with defaults and HYPERBENCH_* bindings.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads file when given and decodes v into a validated Config.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.WithMessagef(err, "fail to read config %s", file)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.WithMessage(err, "fail to decode config")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Default is the configuration without file or environment overrides.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	var c Config
	_ = v.Unmarshal(&c)
	return &c
}

func (c *Config) Validate() error {
	if c.Base == "" {
		return errors.New("base must be set")
	}
	want, _ := version.NewVersion(MinFabricVersion)
	got, err := version.NewVersion(c.FabricVersion)
	if err != nil {
		return errors.WithMessagef(err, "bad fabricVersion %q", c.FabricVersion)
	}
	if got.LessThan(want) {
		return errors.Errorf("fabricVersion %s is older than %s", c.FabricVersion, MinFabricVersion)
	}
	switch c.Runtime.Driver {
	case RuntimeDocker, RuntimeKubernetes:
	default:
		return errors.Errorf("unknown runtime driver %q", c.Runtime.Driver)
	}
	switch c.Store.Driver {
	case StoreBadger:
	case StoreMySQL:
		if c.Store.DSN == "" {
			return errors.New("store.dsn is required for mysql")
		}
	default:
		return errors.Errorf("unknown store driver %q", c.Store.Driver)
	}
	switch c.Registration.OnExisting {
	case OnExistingSkip, OnExistingError:
	default:
		return errors.Errorf("registration.onExisting must be %s or %s", OnExistingSkip, OnExistingError)
	}
	if c.Scheduler.Workers < 1 {
		return errors.New("scheduler.workers must be positive")
	}
	if c.Readiness.Timeout <= 0 || c.Readiness.Interval <= 0 {
		return errors.New("readiness timeout and interval must be positive")
	}
	if c.Chaincode.Enabled() {
		switch model.ChaincodeKind(c.Chaincode.Kind) {
		case model.ChaincodeGolang:
			if c.Chaincode.Path == "" {
				return errors.New("chaincode.path is required for golang chaincode")
			}
		case model.ChaincodeExternal:
			if c.Chaincode.Address == "" {
				return errors.New("chaincode.address is required for external chaincode")
			}
		default:
			return errors.Errorf("unknown chaincode kind %q", c.Chaincode.Kind)
		}
	}
	if c.Traffic.Loss < 0 || c.Traffic.Loss > 100 {
		return errors.Errorf("traffic.loss %v out of range", c.Traffic.Loss)
	}
	return nil
}
