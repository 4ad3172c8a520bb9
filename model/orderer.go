package model

import (
	"net"
	"strconv"
)

// ConsenterDescriptor is one member of the etcdraft consenter set.
type ConsenterDescriptor struct {
	Host          string `json:"host"`
	Port          int    `json:"port"`
	ClientTLSCert string `json:"clientTlsCert"`
	ServerTLSCert string `json:"serverTlsCert"`
}

type Orderer struct {
	Name      string              `json:"name"`
	Port      int                 `json:"port"`
	AdminPort int                 `json:"adminPort"`
	OrgName   string              `json:"org"`
	MSPID     string              `json:"mspId"`
	Identity  Identity            `json:"identity"`
	Consenter ConsenterDescriptor `json:"consenter"`
}

func (o *Orderer) Address() string {
	return net.JoinHostPort(o.Name, strconv.Itoa(o.Port))
}

func (o *Orderer) AdminAddress() string {
	return net.JoinHostPort(o.Name, strconv.Itoa(o.AdminPort))
}

func (o *Orderer) URL() string {
	return "grpcs://" + o.Address()
}

// NewConsenter describes o as a raft member. Both TLS certificates are the
// orderer's transport signcert.
func NewConsenter(o *Orderer) ConsenterDescriptor {
	cert := o.Identity.TLS().SignCert()
	return ConsenterDescriptor{
		Host:          o.Name,
		Port:          o.Port,
		ClientTLSCert: cert,
		ServerTLSCert: cert,
	}
}
