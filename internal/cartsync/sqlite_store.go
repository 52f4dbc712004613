package cartsync

import (
	"context"
	"errors"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Skotchmaster/crochet_shop/internal/cart"
)

// localCart is the single row a device keeps.
type localCart struct {
	ID        uint        `gorm:"primaryKey"`
	Items     []cart.Item `gorm:"serializer:json"`
	Shipping  Shipping    `gorm:"serializer:json"`
	UpdatedAt time.Time
}

func (localCart) TableName() string { return "local_cart" }

const localCartID = 1

// SQLiteStore keeps the cart in a SQLite file so it survives restarts.
type SQLiteStore struct {
	db *gorm.DB
}

func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).AutoMigrate(&localCart{}); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context) (State, error) {
	var row localCart
	err := s.db.WithContext(ctx).First(&row, localCartID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return State{Items: []cart.Item{}}, nil
	}
	if err != nil {
		return State{}, err
	}
	return State{Items: row.Items, Shipping: row.Shipping}.clone(), nil
}

func (s *SQLiteStore) Save(ctx context.Context, st State) error {
	st = st.clone()
	return s.db.WithContext(ctx).Save(&localCart{ID: localCartID, Items: st.Items, Shipping: st.Shipping}).Error
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
