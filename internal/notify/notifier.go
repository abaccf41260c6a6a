package notify

import (
	"context"
	"log"

	"dukapos/backend/internal/domain"
)

// Notifier delivers a receipt to the customer after a completed sale.
// Delivery is best effort: a failed notification never fails the sale.
type Notifier interface {
	SendReceipt(ctx context.Context, receipt domain.SaleReceipt) error
}

type Noop struct{}

func (Noop) SendReceipt(_ context.Context, _ domain.SaleReceipt) error {
	return nil
}

// LogNotifier writes receipts to the process log. It stands in for an SMS
// or printer integration in dev/demo mode.
type LogNotifier struct{}

func (LogNotifier) SendReceipt(_ context.Context, receipt domain.SaleReceipt) error {
	log.Printf("[notify] receipt %s: %d line(s), total %d cents, paid via %s",
		receipt.ReceiptNumber, len(receipt.Lines), receipt.TotalCents, receipt.PaymentMethod)
	return nil
}
