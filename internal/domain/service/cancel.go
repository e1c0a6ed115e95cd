package service

import (
	"context"

	"github.com/oscar-duarte/sifen-worker/internal/domain/entity"
	"github.com/oscar-duarte/sifen-worker/internal/infrastructure/sifen/sifenresponse"
	"github.com/oscar-duarte/sifen-worker/pkg/logger"
)

var cancelSuccessCodes = map[string]bool{
	"0500": true,
	"0501": true,
	"0600": true,
}

// handleCancel is the Cancel Handler (C10): recover the CDC, build and
// submit a signed cancellation event, classify the response.
func (d *Dispatcher) handleCancel(ctx context.Context, msg entity.ActionMessage, emission *entity.EmissionRecord) Decision {
	cdc, err := findCDCFromSignedXML(emission.XMLSigned)
	if err != nil {
		d.Log.Error("extract CDC for cancellation failed", logger.F("id", msg.ID), logger.F("error", err.Error()))
		return NackNoRequeue
	}

	mat, err := d.Materializer.Load(emission.CertPath, emission.CertPassword)
	if err != nil {
		d.Log.Error("load credential failed", logger.F("id", msg.ID), logger.F("error", err.Error()))
		return NackNoRequeue
	}

	eventXML, err := d.CancelBuilder.BuildCancelEvent(ctx, cdc, msg.Reason, mat)
	if err != nil {
		d.Log.Error("build cancellation event failed", logger.F("id", msg.ID), logger.F("error", err.Error()))
		return NackNoRequeue
	}

	respBody, err := d.SOAPClient.SubmitEvent(ctx, d.Endpoints.EventURL, string(eventXML), mat)
	if err != nil {
		d.Log.Error("SIFEN event submit call failed", logger.F("id", msg.ID), logger.F("error", err.Error()))
		return NackNoRequeue
	}

	codeRes := sifenresponse.Field(respBody, "dCodRes", "")
	msgRes := sifenresponse.Field(respBody, "dMsgRes", defaultSifenMsg)
	estRes := sifenresponse.Field(respBody, "dEstRes", "")

	if cancelSuccessCodes[codeRes] || estRes == "Aprobado" {
		if err := d.Store.UpdateEmission(ctx, msg.ID, map[string]interface{}{
			"xml_cancelamento_envio":    string(eventXML),
			"xml_cancelamento_retorno": respBody,
			"cod_status":               codeRes,
			"desc_status":              "Nota Cancelada",
		}); err != nil {
			d.Log.Error("persist cancel success on emission failed", logger.F("id", msg.ID), logger.F("error", err.Error()))
			return NackNoRequeue
		}
		code := 600
		desc := "Nota Cancelada"
		if err := d.Store.UpdateHeader(ctx, msg.ID, &code, &desc); err != nil {
			d.Log.Error("persist cancel success on header failed", logger.F("id", msg.ID), logger.F("error", err.Error()))
			return NackNoRequeue
		}
		return Ack
	}

	if err := d.Store.UpdateEmission(ctx, msg.ID, map[string]interface{}{
		"xml_cancelamento_envio":    string(eventXML),
		"xml_cancelamento_retorno": respBody,
		"cod_status":               codeRes,
		"desc_status":              "Falha no cancelamento: " + msgRes,
	}); err != nil {
		d.Log.Error("persist cancel failure failed", logger.F("id", msg.ID), logger.F("error", err.Error()))
		return NackNoRequeue
	}
	return Ack
}
