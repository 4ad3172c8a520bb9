package service

import (
	"context"
	"fmt"

	"hyperbench/global"
	"hyperbench/model"
)

type OrganizationService struct {
	net    *model.Network
	pki    *PKIService
	enroll *EnrollService
}

func NewOrganizationService(net *model.Network, pki *PKIService, enroll *EnrollService) *OrganizationService {
	return &OrganizationService{
		net:    net,
		pki:    pki,
		enroll: enroll,
	}
}

// BootstrapTransport starts the transport CA and enrolls its administrator.
func (orgSvc *OrganizationService) BootstrapTransport(ctx context.Context) error {
	ca := orgSvc.net.TransportCA
	global.Logger.Info(fmt.Sprintf("[Bootstrap transport CA %s]", ca.CommonName))
	defer global.Logger.Info(fmt.Sprintf("[Bootstrap transport CA %s] done!", ca.CommonName))

	if err := orgSvc.pki.StartCA(ctx, ca); err != nil {
		return err
	}
	return orgSvc.pki.EnrollBootstrapAdmin(ctx, ca)
}

// Bootstrap brings up the CA of org and its admin identity. The transport CA
// must be bootstrapped already.
func (orgSvc *OrganizationService) Bootstrap(ctx context.Context, org *model.Organization) error {
	global.Logger.Info(fmt.Sprintf("[Bootstrap %s]", org.Name))
	defer global.Logger.Info(fmt.Sprintf("[Bootstrap %s] done!", org.Name))

	// 1. org CA
	global.Logger.Info("1. Start " + org.CA.CommonName)
	if err := orgSvc.pki.StartCA(ctx, org.CA); err != nil {
		return err
	}
	if err := orgSvc.pki.EnrollBootstrapAdmin(ctx, org.CA); err != nil {
		return err
	}

	// 2. admin identity
	global.Logger.Info("2. Enroll " + org.Admin.Name)
	if err := orgSvc.enroll.EnrollIdentity(ctx, org, org.Admin); err != nil {
		return err
	}

	// 3. admincerts
	global.Logger.Info("3. Place admin cert")
	return orgSvc.enroll.PlaceAdminCert(org, org.CA.HomeDir, org.Admin.HomeDir)
}

// Ready reports whether nodes of org can be provisioned.
func (orgSvc *OrganizationService) Ready(org *model.Organization) bool {
	return orgSvc.pki.Ready(org.CA) &&
		orgSvc.pki.BootstrapAdminEnrolled(org.CA) &&
		fileExists(org.Admin.CertPath())
}
