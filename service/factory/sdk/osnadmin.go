package sdk

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"hyperbench/global"
	"hyperbench/model"
)

const participationURL = "/participation/v1/channels"

type channelInfoShort struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type channelList struct {
	SystemChannel *channelInfoShort  `json:"systemChannel"`
	Channels      []channelInfoShort `json:"channels"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// OSNAdmin talks to the channel participation API of orderers using the
// transport identity of the orderer organization admin.
type OSNAdmin struct {
	Timeout time.Duration
	// Endpoint returns the base url of the admin listener of o.
	Endpoint func(o *model.Orderer) string
	// TLSConfig builds the mutual TLS config for org talking to o.
	TLSConfig func(org *model.Organization, o *model.Orderer) (*tls.Config, error)
}

func NewOSNAdmin() *OSNAdmin {
	return &OSNAdmin{
		Timeout: 30 * time.Second,
		Endpoint: func(o *model.Orderer) string {
			return "https://" + o.AdminAddress()
		},
		TLSConfig: AdminTLSConfig,
	}
}

// AdminTLSConfig trusts the transport root and presents the admin's
// transport certificate.
func AdminTLSConfig(org *model.Organization, o *model.Orderer) (*tls.Config, error) {
	if org.Admin == nil {
		return nil, errors.Errorf("organization %s has no admin", org.Name)
	}
	tlsDir := org.Admin.TLS()
	root, err := ioutil.ReadFile(tlsDir.CACert())
	if err != nil {
		return nil, errors.WithMessage(err, "fail to read transport root")
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(root) {
		return nil, errors.Errorf("no certificate in %s", tlsDir.CACert())
	}
	cert, err := tls.LoadX509KeyPair(tlsDir.SignCert(), tlsDir.Key())
	if err != nil {
		return nil, errors.WithMessage(err, "fail to load admin transport identity")
	}
	return &tls.Config{
		RootCAs:      pool,
		Certificates: []tls.Certificate{cert},
		ServerName:   o.Name,
	}, nil
}

func (a *OSNAdmin) client(org *model.Organization, o *model.Orderer) (*http.Client, error) {
	tlsConfig, err := a.TLSConfig(org, o)
	if err != nil {
		return nil, err
	}
	return &http.Client{
		Timeout:   a.Timeout,
		Transport: &http.Transport{TLSClientConfig: tlsConfig},
	}, nil
}

func (a *OSNAdmin) JoinChannel(ctx context.Context, org *model.Organization, o *model.Orderer, channel string, block []byte) error {
	global.Logger.Info(fmt.Sprintf("[Join %s to %s]", o.Name, channel))

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("config-block", channel+".block")
	if err != nil {
		return errors.WithMessage(err, "fail to build join request")
	}
	if _, err := part.Write(block); err != nil {
		return errors.WithMessage(err, "fail to build join request")
	}
	if err := w.Close(); err != nil {
		return errors.WithMessage(err, "fail to build join request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.Endpoint(o)+participationURL, &body)
	if err != nil {
		return errors.WithMessage(err, "fail to build join request")
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	status, payload, err := a.do(org, o, req)
	if err != nil {
		return err
	}
	switch {
	case status == http.StatusCreated:
		return nil
	case status == http.StatusMethodNotAllowed, alreadyExists(payload):
		global.Logger.Info("channel already exists on orderer", zap.String("orderer", o.Name), zap.String("channel", channel))
		return nil
	default:
		return errors.Errorf("fail to join %s to %s: %d %s", o.Name, channel, status, errorMessage(payload))
	}
}

func (a *OSNAdmin) ListChannels(ctx context.Context, org *model.Organization, o *model.Orderer) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.Endpoint(o)+participationURL, nil)
	if err != nil {
		return nil, errors.WithMessage(err, "fail to build list request")
	}
	req.Header.Set("Accept", "application/json")

	status, payload, err := a.do(org, o, req)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, errors.Errorf("fail to list channels of %s: %d %s", o.Name, status, errorMessage(payload))
	}
	var list channelList
	if err := json.Unmarshal(payload, &list); err != nil {
		return nil, errors.WithMessage(err, "fail to decode channel list")
	}
	out := make([]string, 0, len(list.Channels))
	for _, c := range list.Channels {
		out = append(out, c.Name)
	}
	return out, nil
}

func (a *OSNAdmin) do(org *model.Organization, o *model.Orderer, req *http.Request) (int, []byte, error) {
	c, err := a.client(org, o)
	if err != nil {
		return 0, nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return 0, nil, errors.WithMessagef(err, "fail to reach admin endpoint of %s", o.Name)
	}
	defer resp.Body.Close()
	payload, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, errors.WithMessage(err, "fail to read response")
	}
	return resp.StatusCode, payload, nil
}

func alreadyExists(payload []byte) bool {
	return strings.Contains(errorMessage(payload), "already exists")
}

func errorMessage(payload []byte) string {
	var e errorResponse
	if err := json.Unmarshal(payload, &e); err == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(payload))
}
