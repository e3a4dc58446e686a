package types

import "time"

type Status string

const (
	PendingStatus       Status = "pending"
	ArchivingStatus     Status = "archiving"
	UploadedStatus      Status = "uploaded"
	PaymentFailedStatus Status = "payment_failed"
)

// Order correlates one uploaded file, one payer and one payment outcome.
// Filename is the join key between the local temp file, the database row
// and the object in durable storage.
type Order struct {
	ID                 int        `db:"id"`
	Filename           string     `db:"filename"`
	LocalPath          string     `db:"local_path"`
	Mimetype           string     `db:"mimetype"`
	Email              string     `db:"email"`
	Phone              string     `db:"phone"`
	Paid               bool       `db:"paid"`
	Status             Status     `db:"status"`
	StorageURL         *string    `db:"storage_url"`
	MpesaReceipt       *string    `db:"mpesa_receipt"`
	CheckoutRequestID  *string    `db:"checkout_request_id"`
	FailureReason      *string    `db:"failure_reason"`
	CollectionDeadline *time.Time `db:"collection_deadline"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
}
