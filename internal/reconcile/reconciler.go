package reconcile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/jkuat-robotics/printdesk/internal/db"
	"github.com/jkuat-robotics/printdesk/internal/mpesa"
	"github.com/jkuat-robotics/printdesk/internal/types"
)

const collectionWindow = 14 * 24 * time.Hour

type Database interface {
	GetOrder(ctx context.Context, filename string) (*types.Order, error)
	ClaimPendingOrder(ctx context.Context, filename string, receipt string, checkoutRequestID string) error
	MarkOrderUploaded(ctx context.Context, filename string, storageURL string, deadline time.Time) error
	MarkOrderFailed(ctx context.Context, filename string, reason string, checkoutRequestID string) error
	GetStuckArchivingOrders(ctx context.Context, olderThan time.Duration) ([]types.Order, error)
}

type FileStore interface {
	UploadFile(ctx context.Context, key string, localPath string, contentType string) (string, error)
}

type EmailSender interface {
	SendOrderConfirmation(to string, filename string, receipt string, deadline time.Time) error
}

// Reconciler applies asynchronous gateway results to orders. Each result is
// applied at most once: the success path first claims the order with a
// conditional pending->archiving update, so a duplicate callback finds
// nothing to claim and becomes a logged no-op.
type Reconciler struct {
	database Database
	files    FileStore
	mail     EmailSender
}

func NewReconciler(database Database, files FileStore, mail EmailSender) *Reconciler {
	return &Reconciler{
		database: database,
		files:    files,
		mail:     mail,
	}
}

// ProcessCallback handles one gateway result for the order identified by
// filename. The HTTP layer has already acknowledged the gateway; errors
// returned here are only ever logged.
func (r *Reconciler) ProcessCallback(ctx context.Context, filename string, result *mpesa.StkCallback) error {

	order, err := r.database.GetOrder(ctx, filename)
	if err != nil {
		var notFound *db.OrderNotFoundError
		if errors.As(err, &notFound) {
			return fmt.Errorf("no order for callback: %w", err)
		}
		return fmt.Errorf("looking up order %s: %w", filename, err)
	}

	if result.ResultCode == 0 {
		return r.confirm(ctx, order, result)
	}
	return r.fail(ctx, order, result)
}

func (r *Reconciler) confirm(ctx context.Context, order *types.Order, result *mpesa.StkCallback) error {

	err := r.database.ClaimPendingOrder(ctx, order.Filename, result.ReceiptNumber(), result.CheckoutRequestID)
	if err != nil {
		if errors.Is(err, db.ErrOrderNotPending) {
			logger.Warnf("Order %s already reconciled, ignoring duplicate callback", order.Filename)
			return nil
		}
		return fmt.Errorf("claiming order %s: %w", order.Filename, err)
	}

	// from here on the order is in "archiving"; if we crash or the upload
	// fails, the recovery loop picks the order up later
	return r.archive(ctx, order, result.ReceiptNumber())
}

func (r *Reconciler) archive(ctx context.Context, order *types.Order, receipt string) error {

	storageURL, err := r.files.UploadFile(ctx, order.Filename, order.LocalPath, order.Mimetype)
	if err != nil {
		return fmt.Errorf("archiving %s: %w", order.Filename, err)
	}
	logger.Infof("Archived %s to durable storage", order.Filename)

	deadline := time.Now().Add(collectionWindow)

	err = r.database.MarkOrderUploaded(ctx, order.Filename, storageURL, deadline)
	if err != nil {
		if errors.Is(err, db.ErrOrderNotPending) {
			logger.Warnf("Order %s reconciled concurrently, skipping", order.Filename)
			return nil
		}
		return fmt.Errorf("updating order %s: %w", order.Filename, err)
	}

	err = r.mail.SendOrderConfirmation(order.Email, order.Filename, receipt, deadline)
	if err != nil {
		logger.Errorf("Failed to send confirmation email to %s: %s", order.Email, err.Error())
	} else {
		logger.Infof("Confirmation email sent to %s", order.Email)
	}

	r.removeLocalFile(order.LocalPath)
	return nil
}

func (r *Reconciler) fail(ctx context.Context, order *types.Order, result *mpesa.StkCallback) error {

	logger.Warnf("Payment failed for %s, code %d: %s", order.Filename, result.ResultCode, result.ResultDesc)

	err := r.database.MarkOrderFailed(ctx, order.Filename, result.ResultDesc, result.CheckoutRequestID)
	if err != nil {
		if errors.Is(err, db.ErrOrderNotPending) {
			logger.Warnf("Order %s already reconciled, ignoring duplicate failure callback", order.Filename)
			return nil
		}
		return fmt.Errorf("updating order %s: %w", order.Filename, err)
	}

	r.removeLocalFile(order.LocalPath)
	return nil
}

func (r *Reconciler) removeLocalFile(path string) {
	if err := os.Remove(path); err != nil {
		logger.Errorf("Failed to delete local file %s: %s", path, err.Error())
		return
	}
	logger.Infof("Deleted local file %s", path)
}
