package service

import (
	"context"
	"strings"

	"github.com/oscar-duarte/sifen-worker/internal/domain/entity"
	"github.com/oscar-duarte/sifen-worker/internal/infrastructure/sifen/sifenresponse"
	"github.com/oscar-duarte/sifen-worker/pkg/logger"
)

const (
	codeTransientMalformed = "0160"
	msgTransientMalformed  = "XML Mal Formado."
)

// handlePoll is the Poll Handler (C9): query, classify, transition or
// reschedule bounded by the configured attempt limit.
func (d *Dispatcher) handlePoll(ctx context.Context, msg entity.ActionMessage, emission *entity.EmissionRecord) Decision {
	mat, err := d.Materializer.Load(emission.CertPath, emission.CertPassword)
	if err != nil {
		d.Log.Error("load credential failed", logger.F("id", msg.ID), logger.F("error", err.Error()))
		return NackNoRequeue
	}

	respBody, err := d.SOAPClient.QueryBatchStatus(ctx, d.Endpoints.QueryURL, emission.Protocol, mat)
	if err != nil {
		d.Log.Error("SIFEN query-batch call failed", logger.F("id", msg.ID), logger.F("error", err.Error()))
		return NackNoRequeue
	}

	estRes := sifenresponse.Field(respBody, "dEstRes", "")
	msgResLot := sifenresponse.Field(respBody, "dMsgResLot", "")
	msgRes := sifenresponse.Field(respBody, "dMsgRes", "")
	codeRes := sifenresponse.Field(respBody, "dCodRes", "")
	if codeRes == "" {
		codeRes = sifenresponse.Field(respBody, "dCodResLot", "")
	}

	maxAttempts := d.Endpoints.MaxPollAttempts
	if maxAttempts <= 0 {
		maxAttempts = entity.MaxPollAttemptsDefault
	}

	switch {
	case codeRes == codeTransientMalformed && msgResLot == msgTransientMalformed:
		if err := d.Store.UpdateEmission(ctx, msg.ID, map[string]interface{}{
			"xml_retorno": respBody,
			"cod_status":  entity.StatusAwaitingPoll,
			"desc_status": "Reprocessing",
		}); err != nil {
			d.Log.Error("persist reprocessing state failed", logger.F("id", msg.ID), logger.F("error", err.Error()))
			return NackNoRequeue
		}
		return d.reschedulePoll(ctx, msg, maxAttempts)

	case estRes == "Aprobado":
		code := codeRes
		if code == "" {
			code = entity.StatusApprovedDefault
		}
		if err := d.Store.UpdateEmission(ctx, msg.ID, map[string]interface{}{
			"xml_retorno": respBody,
			"cod_status":  code,
			"desc_status": "Aprobado exitosamente.",
		}); err != nil {
			d.Log.Error("persist approved state failed", logger.F("id", msg.ID), logger.F("error", err.Error()))
			return NackNoRequeue
		}
		if err := d.updateHeaderCode(ctx, msg.ID, code, "Aprobado exitosamente."); err != nil {
			d.Log.Error("persist approved header failed", logger.F("id", msg.ID), logger.F("error", err.Error()))
			return NackNoRequeue
		}
		return Ack

	case estRes == "Rechazado" || strings.Contains(msgRes, "Cancelado") || strings.Contains(msgRes, "Rechazado"):
		code := codeRes
		if code == "" {
			code = entity.StatusRejectedDefault
		}
		desc := "Rejected: " + msgRes
		if err := d.Store.UpdateEmission(ctx, msg.ID, map[string]interface{}{
			"xml_retorno": respBody,
			"cod_status":  code,
			"desc_status": desc,
		}); err != nil {
			d.Log.Error("persist rejected state failed", logger.F("id", msg.ID), logger.F("error", err.Error()))
			return NackNoRequeue
		}
		if err := d.updateHeaderCode(ctx, msg.ID, code, desc); err != nil {
			d.Log.Error("persist rejected header failed", logger.F("id", msg.ID), logger.F("error", err.Error()))
			return NackNoRequeue
		}
		return Ack

	default:
		if msg.Attempts < maxAttempts {
			return d.reschedulePoll(ctx, msg, maxAttempts)
		}
		if err := d.Store.UpdateEmission(ctx, msg.ID, map[string]interface{}{
			"cod_status":  entity.StatusRetriesExhausted,
			"desc_status": "exceeded retries",
		}); err != nil {
			d.Log.Error("persist exhausted state failed", logger.F("id", msg.ID), logger.F("error", err.Error()))
			return NackNoRequeue
		}
		if err := d.updateHeaderCode(ctx, msg.ID, entity.StatusRetriesExhausted, "exceeded retries"); err != nil {
			d.Log.Error("persist exhausted header failed", logger.F("id", msg.ID), logger.F("error", err.Error()))
			return NackNoRequeue
		}
		return Ack
	}
}

func (d *Dispatcher) reschedulePoll(ctx context.Context, msg entity.ActionMessage, maxAttempts int) Decision {
	if msg.Attempts >= maxAttempts {
		if err := d.Store.UpdateEmission(ctx, msg.ID, map[string]interface{}{
			"cod_status":  entity.StatusRetriesExhausted,
			"desc_status": "exceeded retries",
		}); err != nil {
			d.Log.Error("persist exhausted state failed", logger.F("id", msg.ID), logger.F("error", err.Error()))
			return NackNoRequeue
		}
		if err := d.updateHeaderCode(ctx, msg.ID, entity.StatusRetriesExhausted, "exceeded retries"); err != nil {
			d.Log.Error("persist exhausted header failed", logger.F("id", msg.ID), logger.F("error", err.Error()))
			return NackNoRequeue
		}
		return Ack
	}
	if err := d.Scheduler.SchedulePoll(ctx, msg.ID, msg.Attempts+1); err != nil {
		d.Log.Error("schedule next poll failed", logger.F("id", msg.ID), logger.F("error", err.Error()))
		return NackNoRequeue
	}
	return Ack
}
