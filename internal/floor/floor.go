// Package floor tracks table occupancy. Transitions are a pure function of
// the bound order's status and cart emptiness, never timer-driven; the
// service persists Table documents through the shared store so every
// terminal sees the same floor.
package floor

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/kiwari-pos/terminal/internal/enum"
	"github.com/kiwari-pos/terminal/internal/model"
	"github.com/kiwari-pos/terminal/internal/store"
	"github.com/sirupsen/logrus"
)

// Errors returned by floor operations.
var (
	ErrTableExists   = errors.New("table number already exists")
	ErrTableNotFound = errors.New("table not found")
	ErrTableBusy     = errors.New("table is not available")
	ErrInvalidNumber = errors.New("table number must be > 0")
)

// DeriveStatus is the pure occupancy rule: a table is Available iff no
// unsettled order references it, which happens when the order settled or
// when a draft (no bill number yet) emptied out.
func DeriveStatus(orderStatus string, cartEmpty, hasBillNo bool) string {
	if orderStatus == enum.OrderStatusSettled {
		return enum.TableStatusAvailable
	}
	if cartEmpty && !hasBillNo {
		return enum.TableStatusAvailable
	}
	return enum.TableStatusOccupied
}

// Service persists table documents and enforces the reopen guard.
type Service struct {
	store store.DocumentStore
	log   *logrus.Entry
}

// NewService creates a floor service over the shared document store.
func NewService(st store.DocumentStore, log *logrus.Logger) *Service {
	return &Service{store: st, log: log.WithField("component", "floor")}
}

// Create adds a table with a unique display number, initially Available.
func (s *Service) Create(ctx context.Context, number int) (model.Table, error) {
	if number <= 0 {
		return model.Table{}, ErrInvalidNumber
	}
	tables, err := s.List(ctx)
	if err != nil {
		return model.Table{}, err
	}
	for _, t := range tables {
		if t.Number == number {
			return model.Table{}, ErrTableExists
		}
	}
	table := model.Table{
		ID:     uuid.NewString(),
		Number: number,
		Status: enum.TableStatusAvailable,
	}
	if err := s.store.Put(ctx, store.CollectionTables, table.ID, table); err != nil {
		return model.Table{}, fmt.Errorf("persist table: %w", err)
	}
	return table, nil
}

// List returns every table on the floor.
func (s *Service) List(ctx context.Context) ([]model.Table, error) {
	docs, err := s.store.ListAll(ctx, store.CollectionTables)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return store.DecodeAll[model.Table](docs)
}

// Get resolves one table by id.
func (s *Service) Get(ctx context.Context, id string) (model.Table, error) {
	var t model.Table
	err := s.store.Get(ctx, store.CollectionTables, id, &t)
	if errors.Is(err, store.ErrNotFound) {
		return model.Table{}, ErrTableNotFound
	}
	if err != nil {
		return model.Table{}, fmt.Errorf("get table: %w", err)
	}
	return t, nil
}

// Bind points the table at an order and marks it Occupied. A table forced
// to Billing by a reopen keeps that status until re-settled.
func (s *Service) Bind(ctx context.Context, tableID, orderID string) error {
	t, err := s.Get(ctx, tableID)
	if err != nil {
		return err
	}
	status := enum.TableStatusOccupied
	if t.Status == enum.TableStatusBilling {
		status = enum.TableStatusBilling
	}
	return s.transition(ctx, tableID, status, orderID)
}

// Release frees the table: Available, no bound order.
func (s *Service) Release(ctx context.Context, tableID string) error {
	return s.transition(ctx, tableID, enum.TableStatusAvailable, "")
}

// Reopen binds a previously billed or settled order back to its table for
// correction, forcing Billing until re-settled. Rejected unless the table is
// currently Available: another session may already be editing it.
func (s *Service) Reopen(ctx context.Context, tableID, orderID string) error {
	t, err := s.Get(ctx, tableID)
	if err != nil {
		return err
	}
	if t.Status != enum.TableStatusAvailable {
		return ErrTableBusy
	}
	return s.transition(ctx, tableID, enum.TableStatusBilling, orderID)
}

func (s *Service) transition(ctx context.Context, tableID, status, orderID string) error {
	t, err := s.Get(ctx, tableID)
	if err != nil {
		return err
	}
	if t.Status == status && t.CurrentOrderID == orderID {
		return nil
	}
	s.log.WithFields(logrus.Fields{
		"table":    t.Number,
		"from":     t.Status,
		"to":       status,
		"order_id": orderID,
	}).Info("table transition")
	t.Status = status
	t.CurrentOrderID = orderID
	if err := s.store.Put(ctx, store.CollectionTables, t.ID, t); err != nil {
		return fmt.Errorf("persist table: %w", err)
	}
	return nil
}
