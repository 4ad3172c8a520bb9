package model

type IdentityKind string

const (
	KindAdmin   IdentityKind = "admin"
	KindPeer    IdentityKind = "peer"
	KindOrderer IdentityKind = "orderer"
	KindUser    IdentityKind = "client"
)

// Identity is a principal enrolled twice: against its organization CA for the
// membership tree and against the transport CA for the TLS tree.
type Identity struct {
	Kind    IdentityKind `json:"kind"`
	Name    string       `json:"name"`
	Secret  string       `json:"-"`
	Host    string       `json:"host"`
	HomeDir string       `json:"homeDir"`
}

func (id *Identity) MSP() MSPDir {
	return MSPOf(id.HomeDir)
}

func (id *Identity) TLS() TLSDir {
	return TLSOf(id.HomeDir)
}

func (id *Identity) CertPath() string {
	return id.MSP().SignCert()
}

func (id *Identity) KeyPath() string {
	return id.MSP().Key()
}

// SANs are embedded in transport certificates so TLS validates under both
// container and host addressing.
func (id *Identity) SANs() []string {
	hosts := []string{"0.0.0.0", "127.0.0.1"}
	if id.Host != "" {
		hosts = append(hosts, id.Host)
	}
	return hosts
}

// RegistrationRequest is what a CA admin submits for a new principal.
type RegistrationRequest struct {
	Name   string
	Secret string
	Type   IdentityKind
}

// EnrollmentRequest asks a CA to sign a certificate for Name.
type EnrollmentRequest struct {
	Name    string
	Secret  string
	Profile string
	Hosts   []string
}

// Enrollment is the material returned by a CA. Key is PEM encoded.
type Enrollment struct {
	Cert    []byte
	Key     []byte
	CAChain []byte
}

const ProfileTLS = "tls"
