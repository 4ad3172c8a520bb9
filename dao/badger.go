package dao

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"hyperbench/global"
)

type BadgerStore struct {
	db *badger.DB
}

// badgerLogger adapts zap to badger's logger interface.
type badgerLogger struct {
	*zap.SugaredLogger
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.Warnf(format, args...)
}

// OpenBadger opens the store at path. An empty path keeps everything in memory.
func OpenBadger(path string) (*BadgerStore, error) {
	opt := badger.DefaultOptions(path)
	if path == "" {
		opt = opt.WithInMemory(true)
	}
	opt.Logger = badgerLogger{global.Logger.Named("badger").Sugar()}

	db, err := badger.Open(opt)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open store at '%s'", path)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error {
	return errors.Wrap(s.db.Close(), "could not close store")
}

func networkKey(name string) []byte {
	return []byte("net/" + name)
}

func nodePrefix(network string) []byte {
	return []byte("node/" + network + "/")
}

func channelKey(network, name string) []byte {
	return []byte("chan/" + network + "/" + name)
}

func chaincodePrefix(network, name string) []byte {
	return []byte("cc/" + network + "/" + name + "/")
}

func (s *BadgerStore) put(key []byte, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "could not marshal %s", key)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, raw)
	})
}

func (s *BadgerStore) get(key []byte, v interface{}) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return errors.Wrapf(err, "could not read %s", key)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
}

// scan calls fn with the value of every key below prefix.
func (s *BadgerStore) scan(prefix []byte, fn func(val []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := it.Item().Value(fn); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BadgerStore) deletePrefix(prefix []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		var keys [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BadgerStore) SaveNetwork(r *NetworkRecord) error {
	now := time.Now()
	var old NetworkRecord
	if err := s.get(networkKey(r.Name), &old); err == nil {
		r.CreatedAt = old.CreatedAt
	} else if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	return s.put(networkKey(r.Name), r)
}

func (s *BadgerStore) FindNetwork(name string) (*NetworkRecord, error) {
	var r NetworkRecord
	if err := s.get(networkKey(name), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *BadgerStore) ListNetworks() ([]NetworkRecord, error) {
	var out []NetworkRecord
	err := s.scan([]byte("net/"), func(val []byte) error {
		var r NetworkRecord
		if err := json.Unmarshal(val, &r); err != nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	return out, errors.WithMessage(err, "fail to list networks")
}

func (s *BadgerStore) DeleteNetwork(name string) error {
	prefixes := [][]byte{
		nodePrefix(name),
		[]byte("chan/" + name + "/"),
		[]byte("cc/" + name + "/"),
	}
	for _, p := range prefixes {
		if err := s.deletePrefix(p); err != nil {
			return errors.Wrapf(err, "fail to delete records of %s", name)
		}
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(networkKey(name))
	})
}

func (s *BadgerStore) SaveNode(r *NodeRecord) error {
	key := append(nodePrefix(r.Network), r.Name...)
	now := time.Now()
	var old NodeRecord
	if err := s.get(key, &old); err == nil {
		r.CreatedAt = old.CreatedAt
	} else if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	return s.put(key, r)
}

// FindNodes returns nodes in the order they were first recorded.
func (s *BadgerStore) FindNodes(network string) ([]NodeRecord, error) {
	var out []NodeRecord
	err := s.scan(nodePrefix(network), func(val []byte) error {
		var r NodeRecord
		if err := json.Unmarshal(val, &r); err != nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	if err != nil {
		return nil, errors.WithMessage(err, "fail to find nodes")
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *BadgerStore) DeleteNode(network, name string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(append(nodePrefix(network), name...))
	})
}

func (s *BadgerStore) SaveChannel(r *ChannelRecord) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	return s.put(channelKey(r.Network, r.Name), r)
}

func (s *BadgerStore) FindChannel(network, name string) (*ChannelRecord, error) {
	var r ChannelRecord
	if err := s.get(channelKey(network, name), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *BadgerStore) SaveChaincode(r *ChaincodeRecord) error {
	r.UpdatedAt = time.Now()
	key := append(chaincodePrefix(r.Network, r.Name), fmt.Sprintf("%020d", r.Sequence)...)
	return s.put(key, r)
}

func (s *BadgerStore) FindChaincodes(network, name string) ([]ChaincodeRecord, error) {
	var out []ChaincodeRecord
	err := s.scan(chaincodePrefix(network, name), func(val []byte) error {
		var r ChaincodeRecord
		if err := json.Unmarshal(val, &r); err != nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	return out, errors.WithMessage(err, "fail to find chaincodes")
}
