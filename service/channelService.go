package service

import (
	"context"
	"fmt"
	"io/ioutil"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"hyperbench/dao"
	"hyperbench/global"
	"hyperbench/model"
)

type ChannelService struct {
	net  *model.Network
	deps *Deps
	// Quorum is the lifecycle endorsement of channels created by the service,
	// a quorum shorthand or a policy expression. Empty means majority.
	Quorum string
	mu     sync.Mutex
}

func NewChannelService(net *model.Network, deps *Deps) *ChannelService {
	return &ChannelService{
		net:  net,
		deps: deps,
	}
}

// CreateGenesis renders and stores the genesis block of channel. A channel is
// created once: a recorded name or an existing artifact is refused.
func (cs *ChannelService) CreateGenesis(ctx context.Context, channel string) (*model.Channel, error) {
	global.Logger.Info(fmt.Sprintf("[Create genesis of %s]", channel))
	defer global.Logger.Info(fmt.Sprintf("[Create genesis of %s] done!", channel))

	if _, err := cs.deps.Store.FindChannel(cs.net.Name, channel); err == nil {
		return nil, model.NewError(model.ErrChannelAlreadyExists, nil, "channel %s is recorded", channel)
	} else if !errors.Is(err, dao.ErrNotFound) {
		return nil, errors.WithMessage(err, "fail to look up channel")
	}

	path := cs.net.Layout.ChannelArtifact(channel)
	if fileExists(path) {
		return nil, model.NewError(model.ErrChannelAlreadyExists, nil, "genesis block %s exists", path)
	}

	var mspIDs []string
	for _, org := range cs.net.PeerOrgs() {
		mspIDs = append(mspIDs, org.MSPID)
	}
	quorum, err := model.ResolvePolicy(cs.Quorum, mspIDs)
	if err != nil {
		return nil, errors.WithMessage(err, "fail to resolve channel quorum")
	}

	block, err := cs.deps.Genesis.Build(cs.net, channel, quorum)
	if err != nil {
		return nil, errors.WithMessagef(err, "fail to build genesis block of %s", channel)
	}
	if err := writeFile(path, block, 0644); err != nil {
		return nil, err
	}

	rec := &dao.ChannelRecord{Network: cs.net.Name, Name: channel, GenesisPath: path, Quorum: quorum.String()}
	if err := cs.deps.Store.SaveChannel(rec); err != nil {
		return nil, errors.WithMessage(err, "fail to record channel")
	}
	return rec.Channel(), nil
}

func (cs *ChannelService) load(channel string) (*dao.ChannelRecord, []byte, error) {
	rec, err := cs.deps.Store.FindChannel(cs.net.Name, channel)
	if err != nil {
		return nil, nil, errors.WithMessagef(err, "fail to find channel %s", channel)
	}
	block, err := ioutil.ReadFile(rec.GenesisPath)
	if err != nil {
		return nil, nil, errors.WithMessagef(err, "fail to read genesis block of %s", channel)
	}
	return rec, block, nil
}

// JoinOrderers joins every orderer through the channel participation API.
func (cs *ChannelService) JoinOrderers(ctx context.Context, channel string) error {
	global.Logger.Info(fmt.Sprintf("[Join orderers to %s]", channel))
	defer global.Logger.Info(fmt.Sprintf("[Join orderers to %s] done!", channel))

	rec, block, err := cs.load(channel)
	if err != nil {
		return err
	}

	var tasks []Task
	for _, org := range cs.net.OrdererOrgs() {
		for _, o := range org.Orderers {
			org, o := org, o
			if contains(rec.JoinedOrderers, o.Name) {
				continue
			}
			tasks = append(tasks, Task{Name: o.Name, Run: func(ctx context.Context) error {
				if err := cs.deps.Orderers.JoinChannel(ctx, org, o, channel, block); err != nil {
					return err
				}
				cs.mu.Lock()
				rec.JoinedOrderers = append(rec.JoinedOrderers, o.Name)
				cs.mu.Unlock()
				return nil
			}})
		}
	}

	runErr := cs.deps.scheduler().Run(ctx, tasks...)
	sort.Strings(rec.JoinedOrderers)
	if err := cs.deps.Store.SaveChannel(rec); err != nil {
		return errors.WithMessage(err, "fail to record orderer joins")
	}
	return runErr
}

// JoinPeers joins every peer with the block served by the first orderer. All
// orderers must have joined.
func (cs *ChannelService) JoinPeers(ctx context.Context, channel string) error {
	global.Logger.Info(fmt.Sprintf("[Join peers to %s]", channel))
	defer global.Logger.Info(fmt.Sprintf("[Join peers to %s] done!", channel))

	rec, _, err := cs.load(channel)
	if err != nil {
		return err
	}
	orderers := cs.net.Orderers()
	if len(orderers) == 0 {
		return errors.New("network has no orderer")
	}
	for _, o := range orderers {
		if !contains(rec.JoinedOrderers, o.Name) {
			return model.NewError(model.ErrProvisioning, nil, "orderer %s has not joined %s", o.Name, channel)
		}
	}

	var tasks []Task
	for _, org := range cs.net.PeerOrgs() {
		admin, err := cs.deps.Peers.NewPeerAdmin(cs.net, org)
		if err != nil {
			return errors.WithMessagef(err, "fail to act as admin of %s", org.Name)
		}
		defer admin.Close()

		for _, p := range org.Peers {
			p := p
			if contains(rec.JoinedPeers, p.Name) {
				continue
			}
			tasks = append(tasks, Task{Name: p.Name, Run: func(ctx context.Context) error {
				if err := admin.JoinChannel(ctx, channel, p, orderers[0]); err != nil {
					return err
				}
				cs.mu.Lock()
				rec.JoinedPeers = append(rec.JoinedPeers, p.Name)
				cs.mu.Unlock()
				return nil
			}})
		}
	}

	runErr := cs.deps.scheduler().Run(ctx, tasks...)
	sort.Strings(rec.JoinedPeers)
	if err := cs.deps.Store.SaveChannel(rec); err != nil {
		return errors.WithMessage(err, "fail to record peer joins")
	}
	return runErr
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
