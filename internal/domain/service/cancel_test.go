package service

import (
	"context"
	"testing"

	"github.com/oscar-duarte/sifen-worker/internal/domain/entity"
	"github.com/oscar-duarte/sifen-worker/internal/infrastructure/sifen/credential"
)

type fakeCancelBuilder struct {
	xml []byte
	err error
}

func (f *fakeCancelBuilder) BuildCancelEvent(ctx context.Context, cdc, reason string, mat *credential.Material) ([]byte, error) {
	return f.xml, f.err
}

func signedEmissionWithCDC(cdc string) *entity.EmissionRecord {
	return &entity.EmissionRecord{
		ID:        1,
		XMLSigned: `<DE Id="` + cdc + `"><gCamFuFD/></DE>`,
	}
}

func TestHandleCancel_SuccessUpdatesEmissionAndHeader(t *testing.T) {
	store := &fakeStore{}
	soap := &fakeSOAPClient{submitEventResp: `<r><dCodRes>0500</dCodRes><dEstRes>Aprobado</dEstRes></r>`}
	d := newTestDispatcher(store, &fakeScheduler{}, soap)
	d.CancelBuilder = &fakeCancelBuilder{xml: []byte("<rGesEve/>")}

	decision := d.handleCancel(context.Background(), entity.ActionMessage{ID: 1, Kind: entity.ActionCancel, Reason: "duplicate invoice"}, signedEmissionWithCDC("cdc-1"))

	if decision != Ack {
		t.Fatalf("expected Ack, got %v", decision)
	}
	if store.emissionUpdates[0]["cod_status"] != "0500" {
		t.Fatalf("got %+v", store.emissionUpdates[0])
	}
	if store.headerCode == nil || *store.headerCode != 600 {
		t.Fatalf("expected header code 600, got %v", store.headerCode)
	}
}

func TestHandleCancel_FailureRecordedButStillAcked(t *testing.T) {
	store := &fakeStore{}
	soap := &fakeSOAPClient{submitEventResp: `<r><dCodRes>0420</dCodRes><dMsgRes>Evento no procesado</dMsgRes></r>`}
	d := newTestDispatcher(store, &fakeScheduler{}, soap)
	d.CancelBuilder = &fakeCancelBuilder{xml: []byte("<rGesEve/>")}

	decision := d.handleCancel(context.Background(), entity.ActionMessage{ID: 1, Kind: entity.ActionCancel, Reason: "duplicate invoice"}, signedEmissionWithCDC("cdc-1"))

	if decision != Ack {
		t.Fatalf("expected Ack even on business rejection, got %v", decision)
	}
	if store.headerCode != nil {
		t.Fatal("expected no header mutation on cancellation failure")
	}
	desc, _ := store.emissionUpdates[0]["desc_status"].(string)
	if desc != "Falha no cancelamento: Evento no procesado" {
		t.Fatalf("got %q", desc)
	}
}

func TestHandleCancel_BuilderErrorNacksWithoutRequeue(t *testing.T) {
	store := &fakeStore{}
	d := newTestDispatcher(store, &fakeScheduler{}, &fakeSOAPClient{})
	d.CancelBuilder = &fakeCancelBuilder{err: errShortReason}

	decision := d.handleCancel(context.Background(), entity.ActionMessage{ID: 1, Kind: entity.ActionCancel, Reason: "bad"}, signedEmissionWithCDC("cdc-1"))

	if decision != NackNoRequeue {
		t.Fatalf("expected NackNoRequeue, got %v", decision)
	}
}

func TestHandleCancel_MissingCDCNacksWithoutRequeue(t *testing.T) {
	store := &fakeStore{}
	d := newTestDispatcher(store, &fakeScheduler{}, &fakeSOAPClient{})

	decision := d.handleCancel(context.Background(), entity.ActionMessage{ID: 1, Kind: entity.ActionCancel, Reason: "duplicate invoice"}, &entity.EmissionRecord{ID: 1, XMLSigned: "<DE></DE>"})

	if decision != NackNoRequeue {
		t.Fatalf("expected NackNoRequeue when no CDC can be recovered, got %v", decision)
	}
}

var errShortReason = &cancelBuilderError{}

type cancelBuilderError struct{}

func (*cancelBuilderError) Error() string { return "cancellation reason too short" }
