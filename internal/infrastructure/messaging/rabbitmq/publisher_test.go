package rabbitmq

import (
	"context"
	"testing"
)

func TestPublisher_Cancel_RejectsShortReason(t *testing.T) {
	p := NewPublisher(nil, "faturas_para_processar")
	err := p.Cancel(context.Background(), 1, "bad")
	if err == nil {
		t.Fatal("expected an error for a reason shorter than the minimum length")
	}
}

