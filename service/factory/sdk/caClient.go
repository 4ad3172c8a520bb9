package sdk

import (
	"context"
	"encoding/hex"
	"io/ioutil"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hyperledger/fabric-sdk-go/pkg/client/msp"
	"github.com/hyperledger/fabric-sdk-go/pkg/core/config"
	"github.com/hyperledger/fabric-sdk-go/pkg/fabsdk"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"hyperbench/global"
	"hyperbench/model"
	"hyperbench/service"
)

// CAClientFactory opens msp clients against fabric-ca servers.
type CAClientFactory struct {
	configs *SDKConfigFactory
}

func NewCAClientFactory(configs *SDKConfigFactory) *CAClientFactory {
	return &CAClientFactory{configs: configs}
}

func (f *CAClientFactory) NewCAClient(ca *model.CertificateAuthority) (service.CAClient, error) {
	sdkconfig, err := f.configs.NewCAConfig(ca)
	if err != nil {
		return nil, err
	}
	raw, err := Marshal(sdkconfig, CAStoreDir(ca), "sdk")
	if err != nil {
		return nil, err
	}
	sdk, err := fabsdk.New(config.FromRaw(raw, "yaml"))
	if err != nil {
		return nil, errors.WithMessage(err, "fail to get sdk")
	}
	mspClient, err := msp.New(sdk.Context(), msp.WithCAInstance(ca.CommonName), msp.WithOrg(caOrgName(ca)))
	if err != nil {
		sdk.Close()
		return nil, errors.WithMessage(err, "fail to get msp client")
	}
	return &CAClient{
		sdk:      sdk,
		client:   mspClient,
		keystore: sdkconfig.Client.CredentialStore.CryptoStore.Path,
	}, nil
}

// CAClient serializes calls since one msp client shares its user store.
type CAClient struct {
	mu       sync.Mutex
	sdk      *fabsdk.FabricSDK
	client   *msp.Client
	keystore string
}

func (c *CAClient) Register(ctx context.Context, req *model.RegistrationRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := c.client.Register(&msp.RegistrationRequest{
		Name:   req.Name,
		Type:   string(req.Type),
		Secret: req.Secret,
	})
	if err != nil {
		if isAlreadyRegistered(err) {
			return model.NewError(model.ErrDuplicateRegistration, err, "%s", req.Name)
		}
		return errors.WithMessage(err, "fail to register "+req.Name)
	}
	return nil
}

func (c *CAClient) Lookup(ctx context.Context, name string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := c.client.GetIdentity(name)
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, errors.WithMessage(err, "fail to look up "+name)
}

func (c *CAClient) Enroll(ctx context.Context, req *model.EnrollmentRequest) (*model.Enrollment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := []msp.EnrollmentOption{
		msp.WithSecret(req.Secret),
		msp.WithCSR(&msp.CSRInfo{CN: req.Name, Hosts: req.Hosts}),
	}
	if req.Profile != "" {
		opts = append(opts, msp.WithProfile(req.Profile))
	}
	if err := c.client.Enroll(req.Name, opts...); err != nil {
		return nil, errors.WithMessage(err, "fail to enroll "+req.Name)
	}

	id, err := c.client.GetSigningIdentity(req.Name)
	if err != nil {
		return nil, errors.WithMessage(err, "fail to get identity")
	}
	key, err := id.PrivateKey().Bytes()
	if err != nil || len(key) == 0 {
		// software keys are not exportable; the keystore holds them as pem
		key, err = c.readKey(id.PrivateKey().SKI())
		if err != nil {
			return nil, errors.WithMessage(err, "fail to get private key")
		}
	}
	info, err := c.client.GetCAInfo()
	if err != nil {
		return nil, errors.WithMessage(err, "fail to get cacert")
	}

	return &model.Enrollment{
		Cert:    id.EnrollmentCertificate(),
		Key:     key,
		CAChain: info.CAChain,
	}, nil
}

func (c *CAClient) readKey(ski []byte) ([]byte, error) {
	name := hex.EncodeToString(ski) + "_sk"
	for _, p := range []string{
		filepath.Join(c.keystore, "keystore", name),
		filepath.Join(c.keystore, name),
	} {
		if b, err := ioutil.ReadFile(p); err == nil {
			return b, nil
		}
	}
	return nil, errors.Errorf("key %s not found in %s", name, c.keystore)
}

func (c *CAClient) Close() {
	c.sdk.Close()
}

func isAlreadyRegistered(err error) bool {
	s := err.Error()
	return strings.Contains(s, "already registered") || strings.Contains(s, "Code: 74")
}

func isNotFound(err error) bool {
	s := err.Error()
	found := strings.Contains(s, "not found") || strings.Contains(s, "does not exist") || strings.Contains(s, "Code: 63")
	if !found {
		global.Logger.Debug("identity lookup failed", zap.Error(err))
	}
	return found
}
