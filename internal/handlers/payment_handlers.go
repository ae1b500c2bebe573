package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"bizrent_ledger/internal/ledger"
	"bizrent_ledger/internal/middleware"
	"bizrent_ledger/internal/models"
	"bizrent_ledger/internal/services"
)

const (
	// IdempotencyHeader lets clients safely retry a payment submission
	IdempotencyHeader  = "Idempotency-Key"
	idempotencyTTL     = 24 * time.Hour
	idempotencyLockTTL = 30 * time.Second
)

// proofFields are the multipart fields a proof upload may arrive in
var proofFields = []string{"proofFile", "proof"}

// PaymentHandler serves payment submission and review endpoints
type PaymentHandler struct {
	ledger       *ledger.Ledger
	cache        *services.RedisCache
	maxProofSize int64
}

// NewPaymentHandler creates a PaymentHandler. cache may be nil, which disables Idempotency-Key replay.
func NewPaymentHandler(l *ledger.Ledger, cache *services.RedisCache, maxProofSize int64) *PaymentHandler {
	if maxProofSize <= 0 {
		maxProofSize = ledger.DefaultMaxProofSize
	}
	return &PaymentHandler{ledger: l, cache: cache, maxProofSize: maxProofSize}
}

type reviewRequest struct {
	Notes string `json:"notes" validate:"max=1000"`
}

func idempotencyKey(tenantID uint, key string) string {
	return fmt.Sprintf("idempotency:payment:%d:%s", tenantID, key)
}

// SubmitPayment accepts a multipart form with transactionId and an optional proof file.
// The invoice comes from the :id path parameter or, on POST /tenant/payments, the invoiceId field.
func (h *PaymentHandler) SubmitPayment(c echo.Context) error {
	ctx := c.Request().Context()
	session := middleware.Session(c)
	if session == nil {
		return ledger.ErrUnauthenticated
	}

	invoiceID, err := submittedInvoiceID(c)
	if err != nil {
		return err
	}

	// 1. Replay a previous response for the same Idempotency-Key
	key := strings.TrimSpace(c.Request().Header.Get(IdempotencyHeader))
	if key != "" {
		if previous := h.replay(c, session.UserID(), key, invoiceID); previous != nil {
			return respond(c, http.StatusCreated, previous, "Payment submitted")
		}

		// Only one request per key runs at a time
		lock := idempotencyKey(session.UserID(), key) + ":lock"
		acquired, err := h.cache.SetNX(ctx, lock, invoiceID, idempotencyLockTTL)
		if err != nil {
			log.Warnf("idempotency lock failed: %v", err)
		} else if !acquired {
			return fmt.Errorf("%w: a request with this %s is already in progress", ledger.ErrInvalidState, IdempotencyHeader)
		} else {
			defer func() {
				if err := h.cache.Delete(context.WithoutCancel(ctx), lock); err != nil {
					log.Warnf("idempotency unlock failed: %v", err)
				}
			}()
			// the holder before us may have finished between the lookup and the lock
			if previous := h.replay(c, session.UserID(), key, invoiceID); previous != nil {
				return respond(c, http.StatusCreated, previous, "Payment submitted")
			}
		}
	}

	// 2. Read the optional proof file
	proof, err := h.readProof(c)
	if err != nil {
		return err
	}

	// 3. Submit
	payment, err := h.ledger.SubmitPayment(ctx, session, ledger.SubmitPaymentRequest{
		InvoiceID:     invoiceID,
		TransactionID: c.FormValue("transactionId"),
		Proof:         proof,
	})
	if err != nil {
		return err
	}

	if key != "" {
		if err := h.cache.Set(ctx, idempotencyKey(session.UserID(), key), payment, idempotencyTTL); err != nil {
			log.Warnf("idempotency store failed: %v", err)
		}
	}
	return respond(c, http.StatusCreated, payment, "Payment submitted")
}

// replay returns the payment stored for an Idempotency-Key, if it was for the same invoice
func (h *PaymentHandler) replay(c echo.Context, tenantID uint, key string, invoiceID uint) *models.Payment {
	var previous models.Payment
	err := h.cache.Get(c.Request().Context(), idempotencyKey(tenantID, key), &previous)
	if err != nil {
		if !errors.Is(err, services.ErrCacheMiss) {
			log.Warnf("idempotency lookup failed: %v", err)
		}
		return nil
	}
	if previous.InvoiceID != invoiceID {
		return nil
	}
	return &previous
}

func submittedInvoiceID(c echo.Context) (uint, error) {
	if c.Param("id") != "" {
		return paramID(c, "id")
	}
	raw := strings.TrimSpace(c.FormValue("invoiceId"))
	if raw == "" {
		return 0, &ledger.ValidationError{Field: "invoiceId", Message: "invoiceId is required"}
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, &ledger.ValidationError{Field: "invoiceId", Message: "invalid invoiceId"}
	}
	return uint(id), nil
}

func (h *PaymentHandler) readProof(c echo.Context) (*ledger.ProofFile, error) {
	var fh *multipart.FileHeader
	for _, field := range proofFields {
		f, err := c.FormFile(field)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		if err != nil {
			return nil, &ledger.ValidationError{Field: field, Message: "could not read uploaded file"}
		}
		fh = f
		break
	}
	if fh == nil {
		return nil, nil
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open proof upload: %w", err)
	}
	defer f.Close()

	// Oversized files are rejected by the ledger from the reported size
	data, err := io.ReadAll(io.LimitReader(f, h.maxProofSize+1))
	if err != nil {
		return nil, fmt.Errorf("read proof upload: %w", err)
	}
	return &ledger.ProofFile{Filename: fh.Filename, Size: fh.Size, Data: data}, nil
}

// ListPayments returns the caller's payments (?status=)
func (h *PaymentHandler) ListPayments(c echo.Context) error {
	payments, err := h.ledger.ListPayments(c.Request().Context(), middleware.Session(c), ledger.PaymentFilter{
		Status: models.PaymentStatus(c.QueryParam("status")),
	})
	if err != nil {
		return err
	}
	return ok(c, payments)
}

// ApprovePayment settles the invoice and issues a receipt
func (h *PaymentHandler) ApprovePayment(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req reviewRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	result, err := h.ledger.ApprovePayment(c.Request().Context(), middleware.Session(c), id, req.Notes)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, result, "Payment approved")
}

// RejectPayment rejects a pending payment; notes are required
func (h *PaymentHandler) RejectPayment(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req reviewRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	result, err := h.ledger.RejectPayment(c.Request().Context(), middleware.Session(c), id, req.Notes)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, result, "Payment rejected")
}

// PaymentReceipt returns the receipt minted for an approved payment
func (h *PaymentHandler) PaymentReceipt(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	receipt, err := h.ledger.ReceiptForPayment(c.Request().Context(), middleware.Session(c), id)
	if err != nil {
		return err
	}
	return ok(c, receipt)
}

// ListReceipts returns the caller's receipts
func (h *PaymentHandler) ListReceipts(c echo.Context) error {
	receipts, err := h.ledger.ListReceipts(c.Request().Context(), middleware.Session(c))
	if err != nil {
		return err
	}
	return ok(c, receipts)
}
