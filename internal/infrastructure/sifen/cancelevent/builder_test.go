package cancelevent

import (
	"context"
	"testing"
)

func TestBuildCancelEvent_RejectsShortReason(t *testing.T) {
	b := NewBuilder(nil)
	_, err := b.BuildCancelEvent(context.Background(), "cdc1", "bad", nil)
	if err == nil {
		t.Fatal("expected an error for a reason shorter than the minimum length")
	}
}

func TestBuildCancelEvent_RejectsEmptyCDC(t *testing.T) {
	b := NewBuilder(nil)
	_, err := b.BuildCancelEvent(context.Background(), "", "valid reason text", nil)
	if err == nil {
		t.Fatal("expected an error for a missing CDC")
	}
}

func TestBuildUnsignedEnvelope_FixedEventID(t *testing.T) {
	el := buildUnsignedEnvelope("cdc1", "valid reason text")
	if got := el.SelectAttrValue("Id", ""); got != fixedEventID {
		t.Fatalf("expected fixed event Id %q, got %q", fixedEventID, got)
	}
	if el.Tag != "rEve" {
		t.Fatalf("expected root element rEve, got %s", el.Tag)
	}
	if got := el.SelectAttrValue("xmlns:xsi", ""); got != xsiNS {
		t.Fatalf("expected rEve to carry the xsi namespace, got %q", got)
	}
}

func TestBuildUnsignedEnvelope_CarriesCDCAndReason(t *testing.T) {
	el := buildUnsignedEnvelope("cdc-value", "motivo de prueba")
	gGroup := el.SelectElement("gGroupTiEvt")
	if gGroup == nil {
		t.Fatal("expected gGroupTiEvt child")
	}
	rGeVeCan := gGroup.SelectElement("rGeVeCan")
	if rGeVeCan == nil {
		t.Fatal("expected rGeVeCan child")
	}
	if got := rGeVeCan.SelectElement("Id").Text(); got != "cdc-value" {
		t.Fatalf("got %q", got)
	}
	if got := rGeVeCan.SelectElement("mOtEve").Text(); got != "motivo de prueba" {
		t.Fatalf("got %q", got)
	}
}
