package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"hyperbench/dao"
	"hyperbench/enum"
	"hyperbench/global"
	"hyperbench/model"
)

// caClients caches one client per CA.
type caClients struct {
	factory CAClientFactory
	mu      sync.Mutex
	clients map[string]CAClient
}

func newCAClients(f CAClientFactory) *caClients {
	return &caClients{factory: f, clients: map[string]CAClient{}}
}

func (c *caClients) get(ca *model.CertificateAuthority) (CAClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[ca.CommonName]; ok {
		return client, nil
	}
	client, err := c.factory.NewCAClient(ca)
	if err != nil {
		return nil, errors.WithMessagef(err, "fail to create client of %s", ca.CommonName)
	}
	c.clients[ca.CommonName] = client
	return client, nil
}

// PKIService starts the CA hierarchy: the transport CA first, then one CA per
// organization trusting it.
type PKIService struct {
	net     *model.Network
	deps    *Deps
	clients *caClients
}

func NewPKIService(net *model.Network, deps *Deps) *PKIService {
	return &PKIService{
		net:     net,
		deps:    deps,
		clients: newCAClients(deps.CAs),
	}
}

// StartCA launches ca, waits until it published its certificate and imports it.
func (s *PKIService) StartCA(ctx context.Context, ca *model.CertificateAuthority) error {
	global.Logger.Info(fmt.Sprintf("[Start CA %s]", ca.CommonName))
	defer global.Logger.Info(fmt.Sprintf("[Start CA %s] done!", ca.CommonName))

	if !ca.IsTransport() {
		transport := s.net.TransportCA
		if !s.Ready(transport) {
			return model.NewError(model.ErrProvisioning, nil,
				"transport CA %s must be imported before %s", transport.CommonName, ca.CommonName)
		}
		global.Logger.Info("├── copy transport root")
		for _, dst := range []string{ca.TransportCertFile(), ca.TransportCertInMSP()} {
			if err := copyFile(transport.MSP().CACert(), dst); err != nil {
				return model.NewError(model.ErrProvisioning, err, "fail to hand transport root to %s", ca.CommonName)
			}
		}
	}

	if err := s.deps.recordNode(s.net.Name, ca.CommonName, dao.NodeCA, ca.OrgName, enum.StatusStarting, nil); err != nil {
		return err
	}

	global.Logger.Info("├── start container")
	spec := s.deps.Containers.NewCA(s.net, ca)
	if err := s.deps.Runtime.Start(ctx, spec); err != nil {
		_ = s.deps.recordNode(s.net.Name, ca.CommonName, dao.NodeCA, ca.OrgName, enum.StatusError, err)
		return model.NewError(model.ErrProvisioning, err, "fail to start CA %s", ca.CommonName)
	}

	global.Logger.Info("├── wait for certificate")
	preds := []Predicate{ContainerRunning(s.deps.Runtime, ca.CommonName), FileExists(ca.SelfCertFile())}
	preds = append(preds, s.deps.Waiter.Port(ca.Host(), ca.Port)...)
	if err := s.deps.Waiter.WaitFor(ctx, "CA "+ca.CommonName, preds...); err != nil {
		_ = s.deps.recordNode(s.net.Name, ca.CommonName, dao.NodeCA, ca.OrgName, enum.StatusError, err)
		return err
	}

	global.Logger.Info("└── import certificate")
	if err := copyFile(ca.SelfCertFile(), ca.MSP().CACert()); err != nil {
		return model.NewError(model.ErrProvisioning, err, "fail to import certificate of %s", ca.CommonName)
	}
	if err := NewTrafficService(s.deps.Runtime, s.deps.Traffic).Apply(ctx, ca.CommonName); err != nil {
		return err
	}

	return s.deps.recordNode(s.net.Name, ca.CommonName, dao.NodeCA, ca.OrgName, enum.StatusRunning, nil)
}

// Ready reports whether the certificate of ca was imported.
func (s *PKIService) Ready(ca *model.CertificateAuthority) bool {
	return fileExists(ca.MSP().CACert())
}

func (s *PKIService) BootstrapAdminEnrolled(ca *model.CertificateAuthority) bool {
	return fileExists(model.MSPOf(ca.BootstrapAdminHome()).SignCert())
}

// EnrollBootstrapAdmin enrolls the pre-shared administrator of ca. Repeated
// calls do nothing.
func (s *PKIService) EnrollBootstrapAdmin(ctx context.Context, ca *model.CertificateAuthority) error {
	if !s.Ready(ca) {
		return model.NewError(model.ErrProvisioning, nil, "CA %s is not imported yet", ca.CommonName)
	}
	if s.BootstrapAdminEnrolled(ca) {
		return nil
	}

	client, err := s.clients.get(ca)
	if err != nil {
		return model.NewError(model.ErrProvisioning, err, "fail to reach %s", ca.CommonName)
	}
	enrollment, err := client.Enroll(ctx, &model.EnrollmentRequest{
		Name:   ca.Admin.ID,
		Secret: ca.Admin.Secret,
	})
	if err != nil {
		return model.NewError(model.ErrProvisioning, err, "fail to enroll bootstrap admin of %s", ca.CommonName)
	}

	dir := model.MSPOf(ca.BootstrapAdminHome())
	if err := writeMembership(dir, enrollment, ca.MSP().CACert()); err != nil {
		return model.NewError(model.ErrProvisioning, err, "fail to store bootstrap admin of %s", ca.CommonName)
	}
	global.Logger.Info("bootstrap admin enrolled", zap.String("ca", ca.CommonName), zap.String("id", ca.Admin.ID))
	return nil
}
