package factory

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"hyperbench/model"
)

const (
	caHome     = "/tmp/hyperledger/fabric-ca"
	fabricHome = "/etc/hyperledger/fabric"
)

type Images struct {
	CA      string
	Peer    string
	Orderer string
}

// ContainerFactory renders the container specs of CAs and nodes.
type ContainerFactory struct {
	Images  Images
	Network string
	User    string
	CPUs    float64
}

func NewContainerFactory(images Images, network string) *ContainerFactory {
	return &ContainerFactory{Images: images, Network: network}
}

func (cf *ContainerFactory) base(net *model.Network, name, image, home, target string, ports ...int) *model.ContainerSpec {
	spec := &model.ContainerSpec{
		Name:     name,
		Network:  cf.Network,
		Image:    image,
		Ports:    ports,
		Mounts:   []model.Mount{{Source: net.Layout.Rel(home), Target: target}},
		NetAdmin: true,
		User:     cf.User,
		Labels: map[string]string{
			"app": "hyperbench",
			"net": net.Name,
		},
	}
	if cf.CPUs > 0 {
		spec.NanoCPUs = int64(cf.CPUs * 1e9)
	}
	return spec
}

func (cf *ContainerFactory) NewCA(net *model.Network, ca *model.CertificateAuthority) *model.ContainerSpec {
	spec := cf.base(net, ca.CommonName, cf.Images.CA, ca.HomeDir, caHome, ca.Port)
	spec.Labels["tier"] = "ca"
	if ca.OrgName != "" {
		spec.Labels["org"] = ca.OrgName
	}
	spec.Command = []string{"sh", "-c", fmt.Sprintf("fabric-ca-server start -d -b %s:%s --port %d",
		ca.Admin.ID, ca.Admin.Secret, ca.Port)}
	spec.Env = map[string]string{
		"FABRIC_CA_SERVER_CA_NAME":     ca.CommonName,
		"FABRIC_CA_SERVER_HOME":        caHome,
		"FABRIC_CA_SERVER_TLS_ENABLED": "true",
		"FABRIC_CA_SERVER_CSR_CN":      ca.CommonName,
		"FABRIC_CA_SERVER_CSR_HOSTS":   "0.0.0.0,127.0.0.1," + ca.CommonName,
		"FABRIC_CA_SERVER_DEBUG":       "true",
	}
	return spec
}

func (cf *ContainerFactory) NewPeer(net *model.Network, p *model.Peer) *model.ContainerSpec {
	spec := cf.base(net, p.Name, cf.Images.Peer, p.Identity.HomeDir, fabricHome, p.Port)
	spec.Labels["tier"] = "peer"
	spec.Labels["org"] = p.OrgName
	spec.Command = []string{"peer", "node", "start"}
	spec.Env = map[string]string{
		"FABRIC_LOGGING_SPEC":                         "grpc=debug:info",
		"CORE_VM_ENDPOINT":                            "unix:///var/run/docker.sock",
		"CORE_VM_DOCKER_HOSTCONFIG_NETWORKMODE":       cf.Network,
		"CORE_PEER_TLS_ENABLED":                       "true",
		"CORE_PEER_GOSSIP_USELEADERELECTION":          "true",
		"CORE_PEER_GOSSIP_ORGLEADER":                  "false",
		"CORE_PEER_MSPCONFIGPATH":                     path.Join(fabricHome, "msp"),
		"CORE_PEER_TLS_CERT_FILE":                     path.Join(fabricHome, "tls", "signcerts", "cert.pem"),
		"CORE_PEER_TLS_KEY_FILE":                      path.Join(fabricHome, "tls", "keystore", "key.pem"),
		"CORE_PEER_TLS_ROOTCERT_FILE":                 path.Join(fabricHome, "tls", "tlscacerts", "tlscacert.pem"),
		"CORE_CHAINCODE_LOGGING_LEVEL":                "INFO",
		"CORE_CHAINCODE_EXECUTETIMEOUT":               "30s",
		"CORE_PEER_ID":                                p.Name,
		"CORE_PEER_ADDRESS":                           p.Address(),
		"CORE_PEER_LISTENADDRESS":                     "0.0.0.0:" + strconv.Itoa(p.Port),
		"CORE_PEER_GOSSIP_BOOTSTRAP":                  strings.Join(p.GossipBootstrap, " "),
		"CORE_PEER_GOSSIP_EXTERNALENDPOINT":           p.GossipExternalEndpoint,
		"CORE_PEER_LOCALMSPID":                        p.MSPID,
		"CORE_PEER_LIMITS_CONCURRENCY_GATEWAYSERVICE": "3500",
	}
	return spec
}

func (cf *ContainerFactory) NewOrderer(net *model.Network, o *model.Orderer) *model.ContainerSpec {
	spec := cf.base(net, o.Name, cf.Images.Orderer, o.Identity.HomeDir, fabricHome, o.Port, o.AdminPort)
	spec.Labels["tier"] = "orderer"
	spec.Labels["org"] = o.OrgName

	tlsCert := path.Join(fabricHome, "tls", "signcerts", "cert.pem")
	tlsKey := path.Join(fabricHome, "tls", "keystore", "key.pem")
	tlsRoots := "[" + path.Join(fabricHome, "tls", "tlscacerts", "tlscacert.pem") + "]"

	spec.Command = []string{"orderer", "start"}
	spec.Env = map[string]string{
		"FABRIC_LOGGING_SPEC":                  "grpc=debug:info",
		"ORDERER_HOME":                         fabricHome,
		"ORDERER_GENERAL_LISTENADDRESS":        "0.0.0.0",
		"ORDERER_GENERAL_LISTENPORT":           strconv.Itoa(o.Port),
		"ORDERER_GENERAL_BOOTSTRAPMETHOD":      "none",
		"ORDERER_CHANNELPARTICIPATION_ENABLED": "true",
		"ORDERER_GENERAL_LOCALMSPID":           o.MSPID,
		"ORDERER_GENERAL_LOCALMSPDIR":          path.Join(fabricHome, "msp"),
		"ORDERER_GENERAL_TLS_ENABLED":          "true",
		"ORDERER_GENERAL_TLS_CERTIFICATE":      tlsCert,
		"ORDERER_GENERAL_TLS_PRIVATEKEY":       tlsKey,
		"ORDERER_GENERAL_TLS_ROOTCAS":          tlsRoots,
		"ORDERER_ADMIN_LISTENADDRESS":          "0.0.0.0:" + strconv.Itoa(o.AdminPort),
		"ORDERER_ADMIN_TLS_ENABLED":            "true",
		"ORDERER_ADMIN_TLS_CERTIFICATE":        tlsCert,
		"ORDERER_ADMIN_TLS_PRIVATEKEY":         tlsKey,
		"ORDERER_ADMIN_TLS_CLIENTAUTHREQUIRED": "true",
		"ORDERER_ADMIN_TLS_CLIENTROOTCAS":      tlsRoots,
	}
	return spec
}
