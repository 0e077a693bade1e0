package realtime

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// TableOrders is the table the status watchers listen on.
const TableOrders = "orders"

var (
	// OrderStatuses are the delivery states reported by WatchOrderStatus.
	OrderStatuses = []string{"processing", "shipped", "out_for_delivery", "delivered", "cancelled"}
	// PaymentStatuses are the payment states reported by WatchPaymentStatus.
	PaymentStatuses = []string{"paid", "failed", "refunded"}
)

// Group name prefixes derived from an owner id.
const (
	GroupProfile       = "profile-"
	GroupSubscriptions = "subscriptions-"
	GroupAddresses     = "addresses-"
	GroupHealth        = "health-"
	GroupOrders        = "orders-"
	GroupPayments      = "payments-"
)

func inFilter(column string, values []string) string {
	return column + "=in.(" + strings.Join(values, ",") + ")"
}

// OrderStatusFilter is the predicate used by WatchOrderStatus.
func OrderStatusFilter() string { return inFilter("status", OrderStatuses) }

// PaymentStatusFilter is the predicate used by WatchPaymentStatus.
func PaymentStatusFilter() string { return inFilter("payment_status", PaymentStatuses) }

// WatchOrderStatus subscribes handler to delivery state transitions in its own group.
func (m *Multiplexer) WatchOrderStatus(ctx context.Context, ownerID string, handler Handler) (Registration, error) {
	return m.Subscribe(ctx, GroupOrders+ownerID, TableOrders, EventUpdate, OrderStatusFilter(), handler)
}

// WatchPaymentStatus subscribes handler to payment state transitions in its own group.
func (m *Multiplexer) WatchPaymentStatus(ctx context.Context, ownerID string, handler Handler) (Registration, error) {
	return m.Subscribe(ctx, GroupPayments+ownerID, TableOrders, EventUpdate, PaymentStatusFilter(), handler)
}

// OwnerGroups returns the groups torn down by CleanupOwner, in teardown order.
func OwnerGroups(ownerID string) []string {
	return []string{
		GroupProfile + ownerID,
		GroupSubscriptions + ownerID,
		GroupAddresses + ownerID,
		GroupHealth + ownerID,
		GroupOrders + ownerID,
	}
}

// CleanupOwner closes every group in OwnerGroups. Each group is attempted even when an
// earlier one fails; groups that were never registered are skipped.
func (m *Multiplexer) CleanupOwner(ownerID string) error {
	return cleanup(OwnerGroups(ownerID), m.Close, m.logger)
}

func cleanup(groups []string, closeGroup func(string) error, logger *zap.Logger) error {
	var errs []error
	for _, name := range groups {
		err := closeGroup(name)
		switch {
		case err == nil:
		case errors.Is(err, ErrGroupNotFound):
			logger.Debug("cleanup skipped unknown group", zap.String("group", name))
		default:
			logger.Warn("cleanup failed to close group", zap.String("group", name), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
