package service

import (
	"context"
	"testing"

	"github.com/oscar-duarte/sifen-worker/internal/domain/entity"
)

func TestDispatch_MissingIDAcksAndDrops(t *testing.T) {
	d := newTestDispatcher(&fakeStore{}, &fakeScheduler{}, &fakeSOAPClient{})
	decision := d.Dispatch(context.Background(), []byte(`{"acao":"enviar"}`))
	if decision != Ack {
		t.Fatalf("expected Ack, got %v", decision)
	}
}

func TestDispatch_UnknownActionAcksAndDrops(t *testing.T) {
	d := newTestDispatcher(&fakeStore{}, &fakeScheduler{}, &fakeSOAPClient{})
	decision := d.Dispatch(context.Background(), []byte(`{"id_fatura":1,"acao":"bogus"}`))
	if decision != Ack {
		t.Fatalf("expected Ack, got %v", decision)
	}
}

func TestDispatch_MalformedBodyNacksWithoutRequeue(t *testing.T) {
	d := newTestDispatcher(&fakeStore{}, &fakeScheduler{}, &fakeSOAPClient{})
	decision := d.Dispatch(context.Background(), []byte(`not json`))
	if decision != NackNoRequeue {
		t.Fatalf("expected NackNoRequeue, got %v", decision)
	}
}

func TestDispatch_StoreLoadErrorNacksWithoutRequeue(t *testing.T) {
	store := &fakeStore{loadEmissionErr: assertErr}
	d := newTestDispatcher(store, &fakeScheduler{}, &fakeSOAPClient{})
	decision := d.Dispatch(context.Background(), []byte(`{"id_fatura":1,"acao":"enviar"}`))
	if decision != NackNoRequeue {
		t.Fatalf("expected NackNoRequeue, got %v", decision)
	}
}

func TestDispatch_VanishedEmissionAcksAndDrops(t *testing.T) {
	store := &fakeStore{emission: nil}
	d := newTestDispatcher(store, &fakeScheduler{}, &fakeSOAPClient{})
	decision := d.Dispatch(context.Background(), []byte(`{"id_fatura":1,"acao":"enviar"}`))
	if decision != Ack {
		t.Fatalf("expected Ack, got %v", decision)
	}
}

func TestDispatch_VanishedHeaderAcksAndDrops(t *testing.T) {
	store := &fakeStore{emission: &entity.EmissionRecord{ID: 1}, header: nil}
	d := newTestDispatcher(store, &fakeScheduler{}, &fakeSOAPClient{})
	decision := d.Dispatch(context.Background(), []byte(`{"id_fatura":1,"acao":"enviar"}`))
	if decision != Ack {
		t.Fatalf("expected Ack, got %v", decision)
	}
}

func TestDispatch_RoutesPollToHandlePoll(t *testing.T) {
	store := &fakeStore{
		emission: &entity.EmissionRecord{ID: 1, Protocol: "123"},
		header:   &entity.DocumentHeader{ID: 1},
	}
	soap := &fakeSOAPClient{queryResp: `<r><dEstRes>Aprobado</dEstRes><dCodRes>0201</dCodRes></r>`}
	d := newTestDispatcher(store, &fakeScheduler{}, soap)
	decision := d.Dispatch(context.Background(), []byte(`{"id_fatura":1,"acao":"consultar","tentativas":1}`))
	if decision != Ack {
		t.Fatalf("expected Ack, got %v", decision)
	}
	if len(store.emissionUpdates) != 1 || store.emissionUpdates[0]["cod_status"] != "0201" {
		t.Fatalf("expected approved status persisted, got %+v", store.emissionUpdates)
	}
}

func TestDispatch_RoutesSubmitToHandleSubmit(t *testing.T) {
	store := &fakeStore{
		emission: &entity.EmissionRecord{ID: 1, XMLOriginal: `<DE Id="cdc-orig"></DE>`},
		header:   &entity.DocumentHeader{ID: 1},
	}
	soap := &fakeSOAPClient{submitBatchResp: `<r><dProtConsLote>998877</dProtConsLote></r>`}
	d := newTestDispatcher(store, &fakeScheduler{}, soap)

	decision := d.Dispatch(context.Background(), []byte(`{"id_fatura":1,"acao":"enviar"}`))

	if decision != Ack {
		t.Fatalf("expected Ack, got %v", decision)
	}
	if len(store.emissionUpdates) != 1 || store.emissionUpdates[0]["protocolo"] != "998877" {
		t.Fatalf("expected submit success persisted, got %+v", store.emissionUpdates)
	}
}

func TestDispatch_RoutesCancelToHandleCancel(t *testing.T) {
	store := &fakeStore{
		emission: &entity.EmissionRecord{ID: 1, XMLSigned: `<DE Id="cdc-signed"><gCamFuFD/></DE>`},
		header:   &entity.DocumentHeader{ID: 1},
	}
	soap := &fakeSOAPClient{submitEventResp: `<r><dCodRes>0500</dCodRes></r>`}
	d := newTestDispatcher(store, &fakeScheduler{}, soap)

	decision := d.Dispatch(context.Background(), []byte(`{"id_fatura":1,"acao":"cancelar","motivo":"duplicate invoice"}`))

	if decision != Ack {
		t.Fatalf("expected Ack, got %v", decision)
	}
	if len(store.emissionUpdates) != 1 || store.emissionUpdates[0]["cod_status"] != "0500" {
		t.Fatalf("expected cancel success persisted, got %+v", store.emissionUpdates)
	}
}

var assertErr = &storeLoadError{}

type storeLoadError struct{}

func (*storeLoadError) Error() string { return "boom" }
