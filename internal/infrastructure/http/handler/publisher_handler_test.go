package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/oscar-duarte/sifen-worker/internal/domain/entity"
	"github.com/oscar-duarte/sifen-worker/internal/infrastructure/messaging/rabbitmq"
)

type fakePublisher struct {
	err error
}

func (f *fakePublisher) Submit(ctx context.Context, id entity.FiscalDocumentId) error { return f.err }
func (f *fakePublisher) Poll(ctx context.Context, id entity.FiscalDocumentId) error   { return f.err }
func (f *fakePublisher) Cancel(ctx context.Context, id entity.FiscalDocumentId, reason string) error {
	return f.err
}

func newTestContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "1"}}
	return c, rec
}

func TestCancel_ReasonTooShortReturns422(t *testing.T) {
	h := NewPublisherHandler(&fakePublisher{err: rabbitmq.ErrReasonTooShort})
	c, rec := newTestContext(http.MethodPost, "/fiscal-documents/1/cancel", []byte(`{"motivo":"bad"}`))

	h.Cancel(c)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCancel_TransportErrorReturns500(t *testing.T) {
	h := NewPublisherHandler(&fakePublisher{err: context.DeadlineExceeded})
	c, rec := newTestContext(http.MethodPost, "/fiscal-documents/1/cancel", []byte(`{"motivo":"duplicate invoice"}`))

	h.Cancel(c)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCancel_SuccessReturns202(t *testing.T) {
	h := NewPublisherHandler(&fakePublisher{})
	c, rec := newTestContext(http.MethodPost, "/fiscal-documents/1/cancel", []byte(`{"motivo":"duplicate invoice"}`))

	h.Cancel(c)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCancel_MissingReasonIsBadRequest(t *testing.T) {
	h := NewPublisherHandler(&fakePublisher{})
	c, rec := newTestContext(http.MethodPost, "/fiscal-documents/1/cancel", []byte(`{}`))

	h.Cancel(c)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSubmit_InvalidIDIsBadRequest(t *testing.T) {
	h := NewPublisherHandler(&fakePublisher{})
	c, rec := newTestContext(http.MethodPost, "/fiscal-documents/abc/submit", nil)
	c.Params = gin.Params{{Key: "id", Value: "abc"}}

	h.Submit(c)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSubmit_SuccessReturns202(t *testing.T) {
	h := NewPublisherHandler(&fakePublisher{})
	c, rec := newTestContext(http.MethodPost, "/fiscal-documents/1/submit", nil)

	h.Submit(c)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
}
