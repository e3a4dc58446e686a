package reconcile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jkuat-robotics/printdesk/internal/db"
	"github.com/jkuat-robotics/printdesk/internal/mpesa"
	"github.com/jkuat-robotics/printdesk/internal/types"
)

type fakeDatabase struct {
	orders map[string]*types.Order
}

func (f *fakeDatabase) GetOrder(_ context.Context, filename string) (*types.Order, error) {
	order, ok := f.orders[filename]
	if !ok {
		return nil, &db.OrderNotFoundError{Filename: filename}
	}
	copied := *order
	return &copied, nil
}

func (f *fakeDatabase) ClaimPendingOrder(_ context.Context, filename string, receipt string, checkoutRequestID string) error {
	order := f.orders[filename]
	if order.Status != types.PendingStatus {
		return db.ErrOrderNotPending
	}
	order.Status = types.ArchivingStatus
	order.MpesaReceipt = &receipt
	order.CheckoutRequestID = &checkoutRequestID
	return nil
}

func (f *fakeDatabase) MarkOrderUploaded(_ context.Context, filename string, storageURL string, deadline time.Time) error {
	order := f.orders[filename]
	if order.Status != types.ArchivingStatus {
		return db.ErrOrderNotPending
	}
	order.Paid = true
	order.Status = types.UploadedStatus
	order.StorageURL = &storageURL
	order.CollectionDeadline = &deadline
	return nil
}

func (f *fakeDatabase) MarkOrderFailed(_ context.Context, filename string, reason string, checkoutRequestID string) error {
	order := f.orders[filename]
	if order.Status != types.PendingStatus {
		return db.ErrOrderNotPending
	}
	order.Paid = false
	order.Status = types.PaymentFailedStatus
	order.FailureReason = &reason
	order.CheckoutRequestID = &checkoutRequestID
	return nil
}

func (f *fakeDatabase) GetStuckArchivingOrders(_ context.Context, _ time.Duration) ([]types.Order, error) {
	var stuck []types.Order
	for _, order := range f.orders {
		if order.Status == types.ArchivingStatus {
			stuck = append(stuck, *order)
		}
	}
	return stuck, nil
}

type fakeFiles struct {
	uploaded []string
	err      error
}

func (f *fakeFiles) UploadFile(_ context.Context, key string, _ string, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.uploaded = append(f.uploaded, key)
	return "https://storage.example.com/prints/" + key, nil
}

type sentMail struct {
	to       string
	filename string
	receipt  string
	deadline time.Time
}

type fakeMail struct {
	sent []sentMail
	err  error
}

func (f *fakeMail) SendOrderConfirmation(to string, filename string, receipt string, deadline time.Time) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{to: to, filename: filename, receipt: receipt, deadline: deadline})
	return nil
}

func makeTempFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "1712000000000_part.stl")
	require.NoError(t, os.WriteFile(path, []byte("solid part"), 0o644))
	return path
}

func pendingOrder(localPath string) *types.Order {
	return &types.Order{
		Filename:  "1712000000000_part.stl",
		LocalPath: localPath,
		Mimetype:  "model/stl",
		Email:     "student@example.com",
		Phone:     "254712345678",
		Status:    types.PendingStatus,
	}
}

func successCallback() *mpesa.StkCallback {
	return &mpesa.StkCallback{
		CheckoutRequestID: "ws_CO_1",
		ResultCode:        0,
		ResultDesc:        "The service request is processed successfully.",
		CallbackMetadata: &mpesa.CallbackMetadata{
			Item: []mpesa.MetadataItem{
				{Name: "Amount", Value: float64(100)},
				{Name: "MpesaReceiptNumber", Value: "NLJ7RT61SV"},
			},
		},
	}
}

func TestProcessCallbackSuccess(t *testing.T) {

	localPath := makeTempFile(t)
	order := pendingOrder(localPath)
	database := &fakeDatabase{orders: map[string]*types.Order{order.Filename: order}}
	files := &fakeFiles{}
	mail := &fakeMail{}

	r := NewReconciler(database, files, mail)

	err := r.ProcessCallback(context.Background(), order.Filename, successCallback())
	assert.NoError(t, err)

	assert.True(t, order.Paid)
	assert.Equal(t, types.UploadedStatus, order.Status)
	require.NotNil(t, order.MpesaReceipt)
	assert.Equal(t, "NLJ7RT61SV", *order.MpesaReceipt)
	require.NotNil(t, order.CheckoutRequestID)
	assert.Equal(t, "ws_CO_1", *order.CheckoutRequestID)
	require.NotNil(t, order.StorageURL)
	assert.Equal(t, "https://storage.example.com/prints/"+order.Filename, *order.StorageURL)

	require.NotNil(t, order.CollectionDeadline)
	assert.WithinDuration(t, time.Now().Add(14*24*time.Hour), *order.CollectionDeadline, time.Minute)

	assert.Equal(t, []string{order.Filename}, files.uploaded)

	require.Len(t, mail.sent, 1)
	assert.Equal(t, "student@example.com", mail.sent[0].to)
	assert.Equal(t, "NLJ7RT61SV", mail.sent[0].receipt)

	assert.NoFileExists(t, localPath)
}

func TestProcessCallbackDuplicateSuccess(t *testing.T) {

	localPath := makeTempFile(t)
	order := pendingOrder(localPath)
	database := &fakeDatabase{orders: map[string]*types.Order{order.Filename: order}}
	files := &fakeFiles{}
	mail := &fakeMail{}

	r := NewReconciler(database, files, mail)

	assert.NoError(t, r.ProcessCallback(context.Background(), order.Filename, successCallback()))
	// a second identical callback finds no pending order and is a no-op:
	// no re-upload, no second email, no second delete
	assert.NoError(t, r.ProcessCallback(context.Background(), order.Filename, successCallback()))

	assert.Len(t, files.uploaded, 1)
	assert.Len(t, mail.sent, 1)
	assert.Equal(t, types.UploadedStatus, order.Status)
}

func TestProcessCallbackFailure(t *testing.T) {

	localPath := makeTempFile(t)
	order := pendingOrder(localPath)
	database := &fakeDatabase{orders: map[string]*types.Order{order.Filename: order}}
	files := &fakeFiles{}
	mail := &fakeMail{}

	r := NewReconciler(database, files, mail)

	callback := &mpesa.StkCallback{
		CheckoutRequestID: "ws_CO_2",
		ResultCode:        1032,
		ResultDesc:        "Request cancelled by user",
	}

	err := r.ProcessCallback(context.Background(), order.Filename, callback)
	assert.NoError(t, err)

	assert.False(t, order.Paid)
	assert.Equal(t, types.PaymentFailedStatus, order.Status)
	require.NotNil(t, order.FailureReason)
	assert.Equal(t, "Request cancelled by user", *order.FailureReason)

	assert.Empty(t, files.uploaded)
	assert.Empty(t, mail.sent)
	assert.NoFileExists(t, localPath)
}

func TestProcessCallbackUnknownOrder(t *testing.T) {

	database := &fakeDatabase{orders: map[string]*types.Order{}}
	files := &fakeFiles{}
	mail := &fakeMail{}

	r := NewReconciler(database, files, mail)

	err := r.ProcessCallback(context.Background(), "nope.stl", successCallback())

	var notFound *db.OrderNotFoundError
	assert.ErrorAs(t, err, &notFound)
	assert.Empty(t, files.uploaded)
	assert.Empty(t, mail.sent)
}

func TestProcessCallbackEmailFailureDoesNotFailReconciliation(t *testing.T) {

	localPath := makeTempFile(t)
	order := pendingOrder(localPath)
	database := &fakeDatabase{orders: map[string]*types.Order{order.Filename: order}}
	files := &fakeFiles{}
	mail := &fakeMail{err: errors.New("smtp unreachable")}

	r := NewReconciler(database, files, mail)

	err := r.ProcessCallback(context.Background(), order.Filename, successCallback())
	assert.NoError(t, err)

	assert.Equal(t, types.UploadedStatus, order.Status)
	assert.NoFileExists(t, localPath)
}

func TestRecoveryAfterStorageFailure(t *testing.T) {

	localPath := makeTempFile(t)
	order := pendingOrder(localPath)
	database := &fakeDatabase{orders: map[string]*types.Order{order.Filename: order}}
	files := &fakeFiles{err: errors.New("bucket unreachable")}
	mail := &fakeMail{}

	r := NewReconciler(database, files, mail)

	err := r.ProcessCallback(context.Background(), order.Filename, successCallback())
	assert.Error(t, err)

	// claim persisted, upload did not: the order sits in archiving with the
	// receipt recorded, and the local file is untouched
	assert.Equal(t, types.ArchivingStatus, order.Status)
	assert.False(t, order.Paid)
	assert.FileExists(t, localPath)

	// storage comes back; the recovery sweep finishes the sequence
	files.err = nil
	r.recoverStuck(context.Background(), time.Minute)

	assert.True(t, order.Paid)
	assert.Equal(t, types.UploadedStatus, order.Status)
	assert.Equal(t, []string{order.Filename}, files.uploaded)
	require.Len(t, mail.sent, 1)
	assert.Equal(t, "NLJ7RT61SV", mail.sent[0].receipt)
	assert.NoFileExists(t, localPath)
}
