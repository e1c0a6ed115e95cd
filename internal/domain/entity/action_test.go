package entity

import "testing"

func TestParseActionMessage_Submit(t *testing.T) {
	msg, err := ParseActionMessage([]byte(`{"id_fatura":42,"acao":"Enviar"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Kind != ActionSubmit || msg.ID != 42 {
		t.Fatalf("got %+v", msg)
	}
}

func TestParseActionMessage_PollDefaultsAttemptsToOne(t *testing.T) {
	msg, err := ParseActionMessage([]byte(`{"id_fatura":7,"acao":"consultar"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Kind != ActionPoll || msg.Attempts != 1 {
		t.Fatalf("got %+v", msg)
	}
}

func TestParseActionMessage_PollKeepsExplicitAttempts(t *testing.T) {
	msg, err := ParseActionMessage([]byte(`{"id_fatura":7,"acao":"consultar","tentativas":4}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Attempts != 4 {
		t.Fatalf("got %+v", msg)
	}
}

func TestParseActionMessage_Cancel(t *testing.T) {
	msg, err := ParseActionMessage([]byte(`{"id_fatura":7,"acao":"cancelar","motivo":"error in totals"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Kind != ActionCancel || msg.Reason != "error in totals" {
		t.Fatalf("got %+v", msg)
	}
}

func TestParseActionMessage_MissingID(t *testing.T) {
	_, err := ParseActionMessage([]byte(`{"acao":"enviar"}`))
	if err != ErrMissingID {
		t.Fatalf("expected ErrMissingID, got %v", err)
	}
}

func TestParseActionMessage_UnknownAction(t *testing.T) {
	_, err := ParseActionMessage([]byte(`{"id_fatura":1,"acao":"desconocido"}`))
	if err != ErrUnknownAction {
		t.Fatalf("expected ErrUnknownAction, got %v", err)
	}
}

func TestParseActionMessage_DecodeError(t *testing.T) {
	_, err := ParseActionMessage([]byte(`not json`))
	if err == nil || err == ErrMissingID || err == ErrUnknownAction {
		t.Fatalf("expected a decode error, got %v", err)
	}
}

func TestMarshalPoll_RoundTrips(t *testing.T) {
	body, err := MarshalPoll(99, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	msg, err := ParseActionMessage(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Kind != ActionPoll || msg.ID != 99 || msg.Attempts != 3 {
		t.Fatalf("got %+v", msg)
	}
}

func TestMarshalCancel_RoundTrips(t *testing.T) {
	body, err := MarshalCancel(5, "duplicate invoice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	msg, err := ParseActionMessage(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Kind != ActionCancel || msg.Reason != "duplicate invoice" {
		t.Fatalf("got %+v", msg)
	}
}
