// Package ports declares what the HTTP layer needs from the order and
// notification components.
package ports

import (
	"context"

	"github.com/jcmexdev/storefront-core/internal/coordinator"
	"github.com/jcmexdev/storefront-core/internal/coordinator/sagalog"
	"github.com/jcmexdev/storefront-core/internal/devicetoken"
	"github.com/jcmexdev/storefront-core/internal/notification"
	"github.com/jcmexdev/storefront-core/internal/notification/history"
)

type OrderSubmitter interface {
	Submit(ctx context.Context, req coordinator.OrderRequest) (*coordinator.SubmissionResult, error)
	LatestAttempt(ctx context.Context, orderNumber string) (*sagalog.SagaLog, error)
}

type DeviceRegistry interface {
	Upsert(token string, attrs devicetoken.Attributes) (devicetoken.Record, error)
	Unregister(token string) (bool, error)
	List() []devicetoken.Record
	Count() int
}

type NotificationDispatcher interface {
	Dispatch(ctx context.Context, req notification.Request) (*notification.Result, error)
}

type NotificationHistory interface {
	RecordReceived(r history.Received) (history.Entry, error)
	ByToken(token string) ([]history.Entry, error)
	ByUser(userID string) ([]history.Entry, error)
	Count() int
}
