package service

import (
	"context"
	"io/ioutil"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"k8s.io/utils/keymutex"

	"hyperbench/global"
	"hyperbench/model"
)

const caLockBuckets = 32

// EnrollService registers principals with a CA and stores their enrollments
// under the identity home.
type EnrollService struct {
	net   *model.Network
	deps  *Deps
	pki   *PKIService
	locks keymutex.KeyMutex
	mu    sync.Mutex
	known map[string]bool
}

func NewEnrollService(net *model.Network, deps *Deps, pki *PKIService) *EnrollService {
	return &EnrollService{
		net:   net,
		deps:  deps,
		pki:   pki,
		locks: keymutex.NewHashed(caLockBuckets),
		known: map[string]bool{},
	}
}

func registrationKey(ca *model.CertificateAuthority, name string) string {
	return ca.CommonName + "/" + name
}

// Register signs id up with ca as its bootstrap administrator. Calls for the
// same CA and identity are serialized.
func (s *EnrollService) Register(ctx context.Context, ca *model.CertificateAuthority, id *model.Identity) error {
	if !s.pki.BootstrapAdminEnrolled(ca) {
		return model.NewError(model.ErrProvisioning, nil, "bootstrap admin of %s is not enrolled", ca.CommonName)
	}

	key := registrationKey(ca, id.Name)
	s.locks.LockKey(key)
	defer func() { _ = s.locks.UnlockKey(key) }()

	exists, err := s.exists(ctx, ca, id, key)
	if err != nil {
		return err
	}
	if !exists {
		client, err := s.pki.clients.get(ca)
		if err != nil {
			return model.NewError(model.ErrProvisioning, err, "fail to reach %s", ca.CommonName)
		}
		err = client.Register(ctx, &model.RegistrationRequest{Name: id.Name, Secret: id.Secret, Type: id.Kind})
		switch {
		case err == nil:
			s.remember(key)
			global.Logger.Info("identity registered", zap.String("ca", ca.CommonName), zap.String("id", id.Name))
			return nil
		case errors.Is(err, model.ErrDuplicateRegistration):
			s.remember(key)
		default:
			return model.NewError(model.ErrProvisioning, err, "fail to register %s with %s", id.Name, ca.CommonName)
		}
	}

	if s.deps.OnExisting == OnExistingError {
		return model.NewError(model.ErrDuplicateRegistration, nil, "%s is already registered with %s", id.Name, ca.CommonName)
	}
	global.Logger.Debug("identity already registered", zap.String("ca", ca.CommonName), zap.String("id", id.Name))
	return nil
}

func (s *EnrollService) exists(ctx context.Context, ca *model.CertificateAuthority, id *model.Identity, key string) (bool, error) {
	s.mu.Lock()
	known := s.known[key]
	s.mu.Unlock()
	if known {
		return true, nil
	}

	client, err := s.pki.clients.get(ca)
	if err != nil {
		return false, model.NewError(model.ErrProvisioning, err, "fail to reach %s", ca.CommonName)
	}
	found, err := client.Lookup(ctx, id.Name)
	if err != nil {
		return false, model.NewError(model.ErrProvisioning, err, "fail to look up %s on %s", id.Name, ca.CommonName)
	}
	if found {
		s.remember(key)
	}
	return found, nil
}

func (s *EnrollService) remember(key string) {
	s.mu.Lock()
	s.known[key] = true
	s.mu.Unlock()
}

// Enroll exchanges the secret of id for its certificate. The tls profile
// fills the transport tree, anything else the membership tree.
func (s *EnrollService) Enroll(ctx context.Context, ca *model.CertificateAuthority, id *model.Identity, profile string, hosts []string) error {
	if !s.pki.Ready(ca) {
		return model.NewError(model.ErrProvisioning, nil, "CA %s is not imported yet", ca.CommonName)
	}
	client, err := s.pki.clients.get(ca)
	if err != nil {
		return model.NewError(model.ErrProvisioning, err, "fail to reach %s", ca.CommonName)
	}

	enrollment, err := client.Enroll(ctx, &model.EnrollmentRequest{
		Name:    id.Name,
		Secret:  id.Secret,
		Profile: profile,
		Hosts:   hosts,
	})
	if err != nil {
		return model.NewError(model.ErrProvisioning, err, "fail to enroll %s with %s", id.Name, ca.CommonName)
	}

	if profile == model.ProfileTLS {
		err = writeTransport(id.TLS(), enrollment, ca.MSP().CACert())
	} else {
		err = writeMembership(id.MSP(), enrollment, ca.MSP().CACert())
		if err == nil {
			err = copyFile(s.net.TransportCA.MSP().CACert(), id.MSP().TLSCACert())
		}
	}
	if err != nil {
		return model.NewError(model.ErrProvisioning, err, "fail to store enrollment of %s", id.Name)
	}
	return nil
}

// EnrollIdentity registers and enrolls id with both trust roots: the org CA
// for its membership and the transport CA for TLS.
func (s *EnrollService) EnrollIdentity(ctx context.Context, org *model.Organization, id *model.Identity) error {
	transport := s.net.TransportCA
	if err := s.Register(ctx, org.CA, id); err != nil {
		return err
	}
	if err := s.Register(ctx, transport, id); err != nil {
		return err
	}
	if err := s.Enroll(ctx, org.CA, id, "", nil); err != nil {
		return err
	}
	return s.Enroll(ctx, transport, id, model.ProfileTLS, id.SANs())
}

// PlaceAdminCert copies the admin signcert of org into msp/admincerts of
// every target home.
func (s *EnrollService) PlaceAdminCert(org *model.Organization, targets ...string) error {
	src := org.Admin.CertPath()
	if !fileExists(src) {
		return model.NewError(model.ErrProvisioning, nil, "admin of %s has no signcert", org.Name)
	}
	for _, home := range targets {
		dst := filepath.Join(model.MSPOf(home).AdminCertDir(), org.Admin.Name+"-cert.pem")
		if err := copyFile(src, dst); err != nil {
			return model.NewError(model.ErrProvisioning, err, "fail to place admin cert of %s", org.Name)
		}
	}
	return nil
}

func writeMembership(dir model.MSPDir, e *model.Enrollment, caCertFile string) error {
	if err := writeChain(dir.CACert(), e, caCertFile); err != nil {
		return err
	}
	if err := writeFile(dir.SignCert(), e.Cert, 0644); err != nil {
		return err
	}
	return writeFile(dir.Key(), e.Key, 0600)
}

func writeTransport(dir model.TLSDir, e *model.Enrollment, caCertFile string) error {
	if err := writeChain(dir.CACert(), e, caCertFile); err != nil {
		return err
	}
	if err := writeFile(dir.SignCert(), e.Cert, 0644); err != nil {
		return err
	}
	return writeFile(dir.Key(), e.Key, 0600)
}

// writeChain falls back to the imported CA certificate when the CA returned
// no chain.
func writeChain(dst string, e *model.Enrollment, caCertFile string) error {
	chain := e.CAChain
	if len(chain) == 0 {
		data, err := ioutil.ReadFile(caCertFile)
		if err != nil {
			return errors.WithMessagef(err, "fail to read %s", caCertFile)
		}
		chain = data
	}
	return writeFile(dst, chain, 0644)
}
