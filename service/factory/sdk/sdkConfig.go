package sdk

// SDKConfig is the connection config consumed by fabsdk.
type SDKConfig struct {
	Version string `yaml:"version"`

	Client *SDKConfigClient `yaml:"client"`

	Organizations map[string]*SDKConfigOrganization `yaml:"organizations"`

	Orderers map[string]*SDKConfigNode `yaml:"orderers,omitempty"`

	Peers map[string]*SDKConfigNode `yaml:"peers,omitempty"`

	Channels map[string]*SDKConfigChannel `yaml:"channels,omitempty"`

	CertificateAuthorities map[string]*SDKConfigCA `yaml:"certificateAuthorities,omitempty"`
}

type SDKConfigClient struct {
	Organization string `yaml:"organization"`
	Logging      struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
	CredentialStore struct {
		Path        string `yaml:"path"`
		CryptoStore struct {
			Path string `yaml:"path"`
		} `yaml:"cryptoStore"`
	} `yaml:"credentialStore"`
}

type SDKConfigOrganization struct {
	Mspid                  string                                `yaml:"mspid"`
	CryptoPath             string                                `yaml:"cryptoPath,omitempty"`
	Peers                  []string                              `yaml:"peers,omitempty"`
	Users                  map[string]*SDKConfigOrganizationUser `yaml:"users,omitempty"`
	CertificateAuthorities []string                              `yaml:"certificateAuthorities,omitempty"`
}

type SDKConfigOrganizationUser struct {
	Key  SDKConfigPem `yaml:"key"`
	Cert SDKConfigPem `yaml:"cert"`
}

type SDKConfigPem struct {
	Pem string `yaml:"pem"`
}

type SDKConfigNode struct {
	URL         string                 `yaml:"url"`
	GRPCOptions map[string]interface{} `yaml:"grpcOptions,omitempty"`
	TLSCACerts  SDKConfigPem           `yaml:"tlsCACerts"`
}

type SDKConfigChannelPeer struct {
	EndorsingPeer  bool `yaml:"endorsingPeer"`
	ChaincodeQuery bool `yaml:"chaincodeQuery"`
	LedgerQuery    bool `yaml:"ledgerQuery"`
	EventSource    bool `yaml:"eventSource"`
}

type SDKConfigChannel struct {
	Orderers []string                         `yaml:"orderers,omitempty"`
	Peers    map[string]*SDKConfigChannelPeer `yaml:"peers"`
}

type SDKConfigCA struct {
	URL        string `yaml:"url"`
	CAName     string `yaml:"caName,omitempty"`
	TLSCACerts struct {
		Pem []string `yaml:"pem"`
	} `yaml:"tlsCACerts"`
	Registrar struct {
		EnrollID     string `yaml:"enrollId"`
		EnrollSecret string `yaml:"enrollSecret"`
	} `yaml:"registrar"`
}
