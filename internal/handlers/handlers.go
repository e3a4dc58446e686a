package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"github.com/jkuat-robotics/printdesk/internal/config"
	"github.com/jkuat-robotics/printdesk/internal/db"
	"github.com/jkuat-robotics/printdesk/internal/mpesa"
	"github.com/jkuat-robotics/printdesk/internal/phone"
	"github.com/jkuat-robotics/printdesk/internal/types"
)

const signedURLExpiry = 15 * time.Minute

type OrderStore interface {
	CreateOrder(ctx context.Context, order types.Order) error
	DeleteOrder(ctx context.Context, filename string) error
	GetOrder(ctx context.Context, filename string) (*types.Order, error)
	GetOrders(ctx context.Context) ([]types.Order, error)
}

type PaymentClient interface {
	STKPush(ctx context.Context, push mpesa.PushRequest) (*mpesa.PushResponse, error)
}

type FileSigner interface {
	SignedURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

type CallbackProcessor interface {
	ProcessCallback(ctx context.Context, filename string, result *mpesa.StkCallback) error
}

type HandlerSet struct {
	database   OrderStore
	payments   PaymentClient
	files      FileSigner
	reconciler CallbackProcessor
	baseURL    string
	uploadDir  string
	price      int
}

func NewHandlerSet(database OrderStore, payments PaymentClient, files FileSigner, reconciler CallbackProcessor, conf *config.ServerConfig) *HandlerSet {
	return &HandlerSet{
		database:   database,
		payments:   payments,
		files:      files,
		reconciler: reconciler,
		baseURL:    conf.BaseURL,
		uploadDir:  conf.UploadDir,
		price:      conf.PrintPrice,
	}
}

func (h *HandlerSet) HandleUploadForm(w http.ResponseWriter, req *http.Request) {
	h.render(w, "upload.html", nil)
}

// HandleUpload stores the file locally, creates a pending order and fires
// the STK push. The file only reaches durable storage after the payment
// callback confirms.
func (h *HandlerSet) HandleUpload(w http.ResponseWriter, req *http.Request) {

	file, header, err := req.FormFile("file")
	if err != nil {
		http.Error(w, "No file uploaded", http.StatusBadRequest)
		return
	}
	defer file.Close()

	normalized := phone.Normalize(req.FormValue("phone"))
	if !phone.Valid(normalized) {
		http.Error(w, "Invalid phone number", http.StatusBadRequest)
		return
	}

	// millisecond timestamp prefix keeps repeated uploads of the same
	// source file distinct; this is the correlation key everywhere
	filename := fmt.Sprintf("%d_%s", time.Now().UnixMilli(), filepath.Base(header.Filename))
	localPath := filepath.Join(h.uploadDir, filename)

	if err := h.saveLocalFile(file, localPath); err != nil {
		logger.Error(err)
		http.Error(w, "Something went wrong", http.StatusInternalServerError)
		return
	}

	order := types.Order{
		Filename:  filename,
		LocalPath: localPath,
		Mimetype:  header.Header.Get("Content-Type"),
		Email:     req.FormValue("email"),
		Phone:     normalized,
		Status:    types.PendingStatus,
	}

	if err := h.database.CreateOrder(req.Context(), order); err != nil {
		logger.Error(err)
		h.removeLocalFile(localPath)
		http.Error(w, "Something went wrong", http.StatusInternalServerError)
		return
	}

	callbackURL := fmt.Sprintf("%s/api/mpesa/callback?file=%s", h.baseURL, url.QueryEscape(filename))

	_, err = h.payments.STKPush(req.Context(), mpesa.PushRequest{
		Phone:            normalized,
		Amount:           h.price,
		AccountReference: filename,
		CallbackURL:      callbackURL,
		Description:      "3D print payment",
	})
	if err != nil {
		logger.Errorf("M-Pesa STK push error for %s: %s", filename, err.Error())
		h.cleanupFailedInitiation(req.Context(), filename, localPath)
		http.Error(w, "Payment initiation failed. Please check the phone number and try again.",
			http.StatusInternalServerError)
		return
	}

	http.Redirect(w, req, "/status/"+url.PathEscape(filename), http.StatusFound)
}

func (h *HandlerSet) saveLocalFile(src io.Reader, localPath string) error {
	dst, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", localPath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		h.removeLocalFile(localPath)
		return fmt.Errorf("writing %s: %w", localPath, err)
	}
	return nil
}

// cleanupFailedInitiation is best-effort: failures are logged, never
// surfaced, and the caller still reports the initiation failure.
func (h *HandlerSet) cleanupFailedInitiation(ctx context.Context, filename string, localPath string) {
	h.removeLocalFile(localPath)
	if err := h.database.DeleteOrder(ctx, filename); err != nil {
		logger.Errorf("Failed to delete order %s after STK push failure: %s", filename, err.Error())
	}
}

func (h *HandlerSet) removeLocalFile(localPath string) {
	if err := os.Remove(localPath); err != nil {
		logger.Errorf("Failed to delete local file %s: %s", localPath, err.Error())
	}
}

func (h *HandlerSet) HandleStatusCheck(w http.ResponseWriter, req *http.Request) {

	filename := chi.URLParam(req, "filename")

	order, err := h.database.GetOrder(req.Context(), filename)
	if err != nil {
		var notFound *db.OrderNotFoundError
		if errors.As(err, &notFound) {
			h.writeJSON(w, http.StatusNotFound, map[string]string{"status": "not_found"})
			return
		}
		logger.Error(err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error"})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":   string(order.Status),
		"filename": order.Filename,
	})
}

func (h *HandlerSet) HandleStatusPage(w http.ResponseWriter, req *http.Request) {
	h.render(w, "status.html", struct{ Filename string }{Filename: chi.URLParam(req, "filename")})
}

// HandleMpesaCallback acknowledges the gateway first and reconciles after:
// the gateway requires a synchronous success response regardless of the
// business outcome, so processing errors are only ever logged.
func (h *HandlerSet) HandleMpesaCallback(w http.ResponseWriter, req *http.Request) {

	var envelope mpesa.CallbackEnvelope
	decodeErr := json.NewDecoder(req.Body).Decode(&envelope)

	h.writeJSON(w, http.StatusOK, mpesa.Accepted())

	if decodeErr != nil {
		logger.Errorf("Could not parse M-Pesa callback body: %s", decodeErr.Error())
		return
	}

	callback := envelope.Body.StkCallback
	if callback == nil {
		logger.Error("Invalid M-Pesa callback structure received")
		return
	}

	filename := req.URL.Query().Get("file")
	if filename == "" {
		logger.Error("M-Pesa callback missing file parameter")
		return
	}

	// the request context dies when the ack is flushed
	go func() {
		if err := h.reconciler.ProcessCallback(context.Background(), filename, callback); err != nil {
			logger.Errorf("Error processing M-Pesa callback for %s: %s", filename, err.Error())
		}
	}()
}

type adminFileView struct {
	Name               string
	Email              string
	Paid               string
	Status             string
	MpesaReference     string
	CollectionDeadline string
}

func (h *HandlerSet) HandleAdminFiles(w http.ResponseWriter, req *http.Request) {

	orders, err := h.database.GetOrders(req.Context())
	if err != nil {
		logger.Error(err)
		http.Error(w, "Database error: Could not retrieve order data.",
			http.StatusInternalServerError)
		return
	}

	views := make([]adminFileView, 0, len(orders))
	for _, order := range orders {
		views = append(views, adminFileView{
			Name:               order.Filename,
			Email:              orDash(order.Email),
			Paid:               fmt.Sprintf("%t", order.Paid),
			Status:             string(order.Status),
			MpesaReference:     orDashPtr(order.MpesaReceipt),
			CollectionDeadline: deadlineISO(order.CollectionDeadline),
		})
	}

	h.render(w, "admin.html", struct{ Files []adminFileView }{Files: views})
}

func (h *HandlerSet) HandleAdminDownload(w http.ResponseWriter, req *http.Request) {

	name := chi.URLParam(req, "name")

	order, err := h.database.GetOrder(req.Context(), name)
	if err != nil {
		var notFound *db.OrderNotFoundError
		if errors.As(err, &notFound) {
			http.Error(w, "Order not found", http.StatusNotFound)
			return
		}
		logger.Error(err)
		http.Error(w, "Something went wrong", http.StatusInternalServerError)
		return
	}

	if order.Status != types.UploadedStatus {
		http.Error(w, "File not paid for", http.StatusForbidden)
		return
	}

	signedURL, err := h.files.SignedURL(req.Context(), name, signedURLExpiry)
	if err != nil {
		logger.Errorf("Error generating signed URL for %s: %s", name, err.Error())
		http.Error(w, "Could not generate download link.", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, req, signedURL, http.StatusFound)
}

func (h *HandlerSet) writeJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Could not serialize result", http.StatusInternalServerError)
		return
	}
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		logger.Error(err)
	}
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}

func orDashPtr(value *string) string {
	if value == nil || *value == "" {
		return "-"
	}
	return *value
}

func deadlineISO(deadline *time.Time) string {
	if deadline == nil {
		return "-"
	}
	return deadline.UTC().Format(time.RFC3339)
}
