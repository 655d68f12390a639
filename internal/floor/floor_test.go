package floor

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/kiwari-pos/terminal/internal/enum"
	"github.com/kiwari-pos/terminal/internal/store"
	"github.com/sirupsen/logrus"
)

func newTestService() *Service {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewService(store.NewMemory(), log)
}

func TestDeriveStatus(t *testing.T) {
	cases := []struct {
		name        string
		orderStatus string
		cartEmpty   bool
		hasBillNo   bool
		want        string
	}{
		{"pending with items", enum.OrderStatusPending, false, false, enum.TableStatusOccupied},
		{"billed with items", enum.OrderStatusBilled, false, true, enum.TableStatusOccupied},
		{"settled", enum.OrderStatusSettled, false, true, enum.TableStatusAvailable},
		{"discarded draft", enum.OrderStatusPending, true, false, enum.TableStatusAvailable},
		{"emptied after billing", enum.OrderStatusBilled, true, true, enum.TableStatusOccupied},
	}
	for _, tc := range cases {
		if got := DeriveStatus(tc.orderStatus, tc.cartEmpty, tc.hasBillNo); got != tc.want {
			t.Errorf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}

func TestCreate_Duplicate(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.Create(ctx, 5); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Create(ctx, 5); !errors.Is(err, ErrTableExists) {
		t.Fatalf("expected ErrTableExists, got %v", err)
	}
}

func TestCreate_InvalidNumber(t *testing.T) {
	svc := newTestService()
	if _, err := svc.Create(context.Background(), 0); !errors.Is(err, ErrInvalidNumber) {
		t.Fatalf("expected ErrInvalidNumber, got %v", err)
	}
}

func TestBind_OccupiesAvailableTable(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	table, _ := svc.Create(ctx, 5)

	if err := svc.Bind(ctx, table.ID, "o1"); err != nil {
		t.Fatalf("bind: %v", err)
	}
	got, _ := svc.Get(ctx, table.ID)
	if got.Status != enum.TableStatusOccupied || got.CurrentOrderID != "o1" {
		t.Fatalf("expected occupied by o1, got %+v", got)
	}
}

func TestBind_PreservesBilling(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	table, _ := svc.Create(ctx, 5)

	if err := svc.Reopen(ctx, table.ID, "o1"); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	// Edits after a reopen must not downgrade Billing to Occupied.
	if err := svc.Bind(ctx, table.ID, "o1"); err != nil {
		t.Fatalf("bind: %v", err)
	}
	got, _ := svc.Get(ctx, table.ID)
	if got.Status != enum.TableStatusBilling {
		t.Fatalf("expected Billing preserved, got %s", got.Status)
	}
}

func TestRelease_FreesTable(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	table, _ := svc.Create(ctx, 5)
	svc.Bind(ctx, table.ID, "o1")

	if err := svc.Release(ctx, table.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	got, _ := svc.Get(ctx, table.ID)
	if got.Status != enum.TableStatusAvailable || got.CurrentOrderID != "" {
		t.Fatalf("expected available with no order, got %+v", got)
	}
}

func TestReopen_RejectsBusyTable(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	table, _ := svc.Create(ctx, 5)
	svc.Bind(ctx, table.ID, "o1")

	if err := svc.Reopen(ctx, table.ID, "o2"); !errors.Is(err, ErrTableBusy) {
		t.Fatalf("expected ErrTableBusy, got %v", err)
	}
}

func TestReopen_UnknownTable(t *testing.T) {
	svc := newTestService()
	if err := svc.Reopen(context.Background(), "nope", "o1"); !errors.Is(err, ErrTableNotFound) {
		t.Fatalf("expected ErrTableNotFound, got %v", err)
	}
}
