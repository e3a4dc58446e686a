package reconcile

import (
	"context"
	"time"

	logger "github.com/sirupsen/logrus"
)

// RunRecovery re-drives orders stuck in "archiving": a success callback
// claimed them but the archive sequence never finished, typically because
// the storage upload failed or the process died mid-way. The receipt was
// persisted at claim time, so the sequence can resume from the claim.
func (r *Reconciler) RunRecovery(ctx context.Context, interval time.Duration) {
	go func(ctx context.Context) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.Info("Context cancel, stopping recovery loop")
				return
			case <-ticker.C:
				r.recoverStuck(ctx, interval)
			}
		}
	}(ctx)
}

func (r *Reconciler) recoverStuck(ctx context.Context, olderThan time.Duration) {

	orders, err := r.database.GetStuckArchivingOrders(ctx, olderThan)
	if err != nil {
		logger.Errorf("Failed to fetch stuck orders: %s", err.Error())
		return
	}

	for _, order := range orders {
		logger.Infof("Recovering stuck order %s", order.Filename)

		receipt := ""
		if order.MpesaReceipt != nil {
			receipt = *order.MpesaReceipt
		}

		if err := r.archive(ctx, &order, receipt); err != nil {
			logger.Errorf("Recovery of %s failed: %s", order.Filename, err.Error())
		}
	}
}
