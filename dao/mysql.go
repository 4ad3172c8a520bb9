package dao

import (
	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLStore keeps records in MySQL for deployments that share one store
// between several orchestrator instances.
type SQLStore struct {
	db *gorm.DB
}

func OpenMySQL(dsn string) (*SQLStore, error) {
	db, err := gorm.Open(mysql.New(mysql.Config{DSN: dsn}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, errors.WithMessage(err, "Get database error")
	}
	return NewSQLStore(db)
}

// NewSQLStore migrates the record tables on db.
func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	err := db.AutoMigrate(
		&NetworkRecord{},
		&NodeRecord{},
		&ChannelRecord{},
		&ChaincodeRecord{},
	)
	if err != nil {
		return nil, errors.WithMessage(err, "create tables failed")
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *SQLStore) SaveNetwork(r *NetworkRecord) error {
	return errors.WithMessage(s.db.Save(r).Error, "fail to save network")
}

func (s *SQLStore) FindNetwork(name string) (*NetworkRecord, error) {
	var r NetworkRecord
	if err := s.db.Where("name = ?", name).First(&r).Error; err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

func (s *SQLStore) ListNetworks() ([]NetworkRecord, error) {
	nets := []NetworkRecord{}
	if err := s.db.Order("created_at").Find(&nets).Error; err != nil {
		return nil, errors.WithMessage(err, "Fail to query all nets")
	}
	return nets, nil
}

func (s *SQLStore) DeleteNetwork(name string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, m := range []interface{}{&NodeRecord{}, &ChannelRecord{}, &ChaincodeRecord{}} {
			if err := tx.Where("network = ?", name).Delete(m).Error; err != nil {
				return err
			}
		}
		return tx.Where("name = ?", name).Delete(&NetworkRecord{}).Error
	})
}

func (s *SQLStore) SaveNode(r *NodeRecord) error {
	return errors.WithMessage(s.db.Save(r).Error, "fail to save node")
}

func (s *SQLStore) FindNodes(network string) ([]NodeRecord, error) {
	nodes := []NodeRecord{}
	if err := s.db.Where("network = ?", network).Order("created_at").Find(&nodes).Error; err != nil {
		return nil, errors.WithMessage(err, "fail to find nodes")
	}
	return nodes, nil
}

func (s *SQLStore) DeleteNode(network, name string) error {
	return s.db.Where("network = ? AND name = ?", network, name).Delete(&NodeRecord{}).Error
}

func (s *SQLStore) SaveChannel(r *ChannelRecord) error {
	return errors.WithMessage(s.db.Save(r).Error, "fail to save channel")
}

func (s *SQLStore) FindChannel(network, name string) (*ChannelRecord, error) {
	var r ChannelRecord
	if err := s.db.Where("network = ? AND name = ?", network, name).First(&r).Error; err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

func (s *SQLStore) SaveChaincode(r *ChaincodeRecord) error {
	return errors.WithMessage(s.db.Save(r).Error, "fail to save chaincode")
}

func (s *SQLStore) FindChaincodes(network, name string) ([]ChaincodeRecord, error) {
	ccs := []ChaincodeRecord{}
	err := s.db.Where("network = ? AND name = ?", network, name).Order("sequence").Find(&ccs).Error
	return ccs, errors.WithMessage(err, "fail to find chaincodes")
}
