package invoice

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const invoiceBucket = "invoices"

// ErrInvoiceNotFound is returned when an invoice ID has no record. Handlers
// use it to tell a missing invoice apart from a validation failure.
var ErrInvoiceNotFound = errors.New("invoice not found")

// DB defines the interface for database operations
type DB interface {
	// SaveInvoice saves an invoice to the database
	SaveInvoice(inv *Invoice) error

	// GetInvoice retrieves an invoice by ID
	GetInvoice(id string) (*Invoice, error)

	// ListInvoices returns all invoices
	ListInvoices() ([]*Invoice, error)

	// DeleteInvoice removes an invoice from the database
	DeleteInvoice(id string) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(invoiceBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveInvoice saves an invoice to the database
func (b *BoltDB) SaveInvoice(inv *Invoice) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(invoiceBucket))
		data, err := json.Marshal(inv)
		if err != nil {
			return fmt.Errorf("marshaling invoice: %w", err)
		}
		return bucket.Put([]byte(inv.ID), data)
	})
}

// GetInvoice retrieves an invoice by ID
func (b *BoltDB) GetInvoice(id string) (*Invoice, error) {
	var inv *Invoice
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(invoiceBucket))
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrInvoiceNotFound, id)
		}
		return json.Unmarshal(data, &inv)
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// ListInvoices returns all invoices
func (b *BoltDB) ListInvoices() ([]*Invoice, error) {
	invoices := make([]*Invoice, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(invoiceBucket))
		return bucket.ForEach(func(k, v []byte) error {
			var inv Invoice
			if err := json.Unmarshal(v, &inv); err != nil {
				return fmt.Errorf("unmarshaling invoice: %w", err)
			}
			invoices = append(invoices, &inv)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

// DeleteInvoice removes an invoice from the database
func (b *BoltDB) DeleteInvoice(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(invoiceBucket))
		return bucket.Delete([]byte(id))
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
