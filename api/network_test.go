package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hyperbench/api"
	"hyperbench/dao"
	"hyperbench/enum"
	"hyperbench/model"
	"hyperbench/router"
	"hyperbench/service"
)

type fakeNetworks struct {
	records    map[string]*dao.NetworkRecord
	deployed   []*service.DeployRequest
	chaincodes []*model.ChaincodeSource
	deployErr  error
	delay      time.Duration
	torn       []string
}

func newFakeNetworks() *fakeNetworks {
	return &fakeNetworks{records: map[string]*dao.NetworkRecord{}}
}

func (f *fakeNetworks) Deploy(_ context.Context, req *service.DeployRequest) (*model.Network, error) {
	f.deployed = append(f.deployed, req)
	time.Sleep(f.delay)
	if f.deployErr != nil {
		return nil, f.deployErr
	}
	f.records[req.Name] = &dao.NetworkRecord{Name: req.Name, Channel: req.Channel, Status: enum.StatusRunning}
	return &model.Network{Name: req.Name}, nil
}

func (f *fakeNetworks) List() ([]dao.NetworkRecord, error) {
	var out []dao.NetworkRecord
	for _, r := range f.records {
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeNetworks) Load(name string) (*model.Network, *dao.NetworkRecord, error) {
	rec, ok := f.records[name]
	if !ok {
		return nil, nil, errors.WithMessagef(dao.ErrNotFound, "fail to find network %s", name)
	}
	return &model.Network{Name: name}, rec, nil
}

func (f *fakeNetworks) Nodes(name string) ([]dao.NodeRecord, error) {
	return []dao.NodeRecord{{Network: name, Name: "tls.ca", Kind: dao.NodeCA, Status: enum.StatusRunning}}, nil
}

func (f *fakeNetworks) Profile(name, format string) ([]byte, error) {
	if _, _, err := f.Load(name); err != nil {
		return nil, err
	}
	if format == "yaml" {
		return []byte("name: " + name + "\n"), nil
	}
	return []byte(`{"name":"` + name + `"}`), nil
}

func (f *fakeNetworks) DeployChaincode(_ context.Context, name string, src *model.ChaincodeSource) (*model.ChaincodeDefinition, error) {
	f.chaincodes = append(f.chaincodes, src)
	if name == "quorum" {
		return nil, model.NewError(model.ErrQuorumNotReached, nil, "1 of 2 orgs approved")
	}
	return &model.ChaincodeDefinition{Name: src.Name, Version: src.Version, Sequence: 1, Phase: model.PhaseCommitted}, nil
}

func (f *fakeNetworks) Teardown(_ context.Context, name string) error {
	f.torn = append(f.torn, name)
	delete(f.records, name)
	return nil
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Payload json.RawMessage `json:"payload"`
}

func newServer(t *testing.T, f *fakeNetworks) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return router.GetRouter(api.NewHandler(f, api.Defaults{
		Base:    t.TempDir(),
		Channel: "hyperbench-channel",
		Params:  model.TopologyParams{Orgs: 2, PeersPerOrg: 2, Orderers: 1, StartingPort: 7160},
	}))
}

func do(t *testing.T, r http.Handler, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w.Code, env
}

func TestCreateNetwork(t *testing.T) {
	f := newFakeNetworks()
	r := newServer(t, f)

	status, env := do(t, r, http.MethodPost, "/network/", map[string]interface{}{"name": "net1", "orgs": 3})
	require.Equal(t, http.StatusOK, status, env.Message)
	assert.Equal(t, enum.CodeOk, env.Code)

	require.Len(t, f.deployed, 1)
	req := f.deployed[0]
	assert.Equal(t, "hyperbench-channel", req.Channel)
	assert.Len(t, req.Topology.PeerOrgs(), 3)
	assert.Len(t, req.Topology.PeerOrgs()[0].Peers, 2)

	var detail struct {
		Name  string `json:"name"`
		Nodes []struct {
			Name string `json:"name"`
		} `json:"nodes"`
	}
	require.NoError(t, json.Unmarshal(env.Payload, &detail))
	assert.Equal(t, "net1", detail.Name)
	assert.Equal(t, "tls.ca", detail.Nodes[0].Name)

	status, env = do(t, r, http.MethodPost, "/network/", map[string]interface{}{"name": "net1"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, enum.CodeErrConflict, env.Code)
	assert.Len(t, f.deployed, 1)
}

func TestCreateNetworkConcurrently(t *testing.T) {
	f := newFakeNetworks()
	f.delay = 50 * time.Millisecond
	r := newServer(t, f)

	statuses := make([]int, 2)
	var wg sync.WaitGroup
	for i := range statuses {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			statuses[i], _ = do(t, r, http.MethodPost, "/network/", map[string]interface{}{"name": "net1"})
		}(i)
	}
	wg.Wait()

	assert.ElementsMatch(t, []int{http.StatusOK, http.StatusConflict}, statuses)
	assert.Len(t, f.deployed, 1)
}

func TestCreateNetworkBadRequest(t *testing.T) {
	tests := []struct {
		name string
		body map[string]interface{}
		code int
	}{
		{"missing name", map[string]interface{}{"orgs": 1}, enum.CodeErrMissingArgument},
		{"bad topology", map[string]interface{}{"name": "n", "topology": "- kind: nope"}, enum.CodeErrBadArgument},
		{"bad chaincode", map[string]interface{}{"name": "n", "chaincode": map[string]string{"name": "cc"}}, enum.CodeErrBadArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeNetworks()
			status, env := do(t, newServer(t, f), http.MethodPost, "/network/", tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, tt.code, env.Code)
			assert.Empty(t, f.deployed)
		})
	}
}

func TestCreateNetworkFailure(t *testing.T) {
	f := newFakeNetworks()
	f.deployErr = model.NewError(model.ErrStartupTimeout, nil, "peer1.org1.org")

	status, env := do(t, newServer(t, f), http.MethodPost, "/network/", map[string]interface{}{"name": "net1"})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, enum.CodeErrBlockchainNetworkError, env.Code)
	assert.Contains(t, env.Message, "StartupTimeout")
}

func TestGetNetworkNotFound(t *testing.T) {
	status, env := do(t, newServer(t, newFakeNetworks()), http.MethodGet, "/network/nope", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, enum.CodeErrNotFound, env.Code)
}

func TestListNetworks(t *testing.T) {
	f := newFakeNetworks()
	f.records["net1"] = &dao.NetworkRecord{Name: "net1", Status: enum.StatusRunning}

	status, env := do(t, newServer(t, f), http.MethodGet, "/network/", nil)
	require.Equal(t, http.StatusOK, status)
	var nets []struct {
		Name   string `json:"name"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Payload, &nets))
	require.Len(t, nets, 1)
	assert.Equal(t, enum.StatusRunning, nets[0].Status)
}

func TestGetProfile(t *testing.T) {
	f := newFakeNetworks()
	f.records["net1"] = &dao.NetworkRecord{Name: "net1"}
	r := newServer(t, f)

	status, env := do(t, r, http.MethodGet, "/network/net1/profile", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"name":"net1"}`, string(env.Payload))

	status, env = do(t, r, http.MethodGet, "/network/net1/profile?format=yaml", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `"name: net1\n"`, string(env.Payload))

	status, _ = do(t, r, http.MethodGet, "/network/net1/profile?format=xml", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestDeployChaincode(t *testing.T) {
	f := newFakeNetworks()
	r := newServer(t, f)
	body := map[string]string{"name": "basic", "path": "/src/basic"}

	status, env := do(t, r, http.MethodPost, "/network/net1/chaincode", body)
	require.Equal(t, http.StatusOK, status, env.Message)
	require.Len(t, f.chaincodes, 1)
	assert.Equal(t, "1.0", f.chaincodes[0].Version)
	assert.Equal(t, model.ChaincodeGolang, f.chaincodes[0].Kind)

	status, env = do(t, r, http.MethodPost, "/network/quorum/chaincode", body)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, enum.CodeErrQuorumNotReached, env.Code)
}

func TestDeleteNetwork(t *testing.T) {
	f := newFakeNetworks()
	f.records["net1"] = &dao.NetworkRecord{Name: "net1"}
	r := newServer(t, f)

	status, _ := do(t, r, http.MethodDelete, "/network/net1", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"net1"}, f.torn)

	status, _ = do(t, r, http.MethodDelete, "/network/net1", nil)
	assert.Equal(t, http.StatusNotFound, status)
}
