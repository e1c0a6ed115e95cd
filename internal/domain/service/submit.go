package service

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/oscar-duarte/sifen-worker/internal/domain/entity"
	"github.com/oscar-duarte/sifen-worker/internal/infrastructure/sifen/sifenresponse"
	"github.com/oscar-duarte/sifen-worker/pkg/logger"
)

const defaultSifenMsg = "unspecified"
const defaultSubmitErrCode = "999"

// handleSubmit is the Submit Handler (C8): sign, wrap, zip, submit, persist.
func (d *Dispatcher) handleSubmit(ctx context.Context, msg entity.ActionMessage, emission *entity.EmissionRecord) Decision {
	if err := d.Validator.ValidateDocument(ctx, []byte(emission.XMLOriginal)); err != nil {
		d.Log.Error("unsigned document failed schema validation", logger.F("id", msg.ID), logger.F("error", err.Error()))
		return NackNoRequeue
	}

	mat, err := d.Materializer.Load(emission.CertPath, emission.CertPassword)
	if err != nil {
		d.Log.Error("load credential failed", logger.F("id", msg.ID), logger.F("error", err.Error()))
		return NackNoRequeue
	}

	signed, err := d.Signer.SignEnveloped(ctx, []byte(emission.XMLOriginal), mat)
	if err != nil {
		d.Log.Error("sign document failed", logger.F("id", msg.ID), logger.F("error", err.Error()))
		return NackNoRequeue
	}

	fields := qrExtract(signed, emission.CSCID)
	qrURL, err := d.QR.BuildURL(fields, emission.CSC, d.Endpoints.QRBaseURL)
	if err != nil {
		d.Log.Error("build QR url failed", logger.F("id", msg.ID), logger.F("error", err.Error()))
		return NackNoRequeue
	}

	finalXML, err := insertQR(signed.SignedXML, qrURL)
	if err != nil {
		d.Log.Error("insert QR token failed", logger.F("id", msg.ID), logger.F("error", err.Error()))
		return NackNoRequeue
	}

	if err := d.Validator.ValidateDocument(ctx, finalXML); err != nil {
		d.Log.Error("signed document failed schema validation", logger.F("id", msg.ID), logger.F("error", err.Error()))
		return NackNoRequeue
	}

	wrapped := "<rLoteDE>" + stripXMLDecl(string(finalXML)) + "</rLoteDE>"

	zipB64, err := deflateZipBase64("documento.xml", wrapped)
	if err != nil {
		d.Log.Error("zip document failed", logger.F("id", msg.ID), logger.F("error", err.Error()))
		return NackNoRequeue
	}

	respBody, err := d.SOAPClient.SubmitBatch(ctx, d.Endpoints.SubmitURL, zipB64, mat)
	if err != nil {
		d.Log.Error("SIFEN submit-batch call failed", logger.F("id", msg.ID), logger.F("error", err.Error()))
		return NackNoRequeue
	}

	protocol := strings.TrimSpace(sifenresponse.Field(respBody, "dProtConsLote", ""))

	if protocol != "" && protocol != "0" {
		if err := d.Store.UpdateEmission(ctx, msg.ID, map[string]interface{}{
			"xml_assinado": wrapped,
			"xml_retorno":  respBody,
			"protocolo":    protocol,
			"cod_status":   entity.StatusAwaitingPoll,
			"desc_status":  "awaiting poll",
		}); err != nil {
			d.Log.Error("persist submit success failed", logger.F("id", msg.ID), logger.F("error", err.Error()))
			return NackNoRequeue
		}
		if err := d.Scheduler.SchedulePoll(ctx, msg.ID, 1); err != nil {
			d.Log.Error("schedule first poll failed", logger.F("id", msg.ID), logger.F("error", err.Error()))
			return NackNoRequeue
		}
		return Ack
	}

	msgRes := sifenresponse.Field(respBody, "dMsgRes", defaultSifenMsg)
	codeRes := sifenresponse.Field(respBody, "dCodRes", defaultSubmitErrCode)
	desc := "Falha no envio: " + msgRes

	if err := d.Store.UpdateEmission(ctx, msg.ID, map[string]interface{}{
		"xml_retorno": respBody,
		"cod_status":  codeRes,
		"desc_status": desc,
	}); err != nil {
		d.Log.Error("persist submit failure on emission failed", logger.F("id", msg.ID), logger.F("error", err.Error()))
		return NackNoRequeue
	}
	if err := d.updateHeaderCode(ctx, msg.ID, codeRes, desc); err != nil {
		d.Log.Error("persist submit failure on header failed", logger.F("id", msg.ID), logger.F("error", err.Error()))
		return NackNoRequeue
	}
	return Ack
}

// updateHeaderCode mirrors a lifecycle transition onto the external-facing
// DocumentHeader. "900" is never mirrored: it is an internal waiting state,
// not an external-facing resting state.
func (d *Dispatcher) updateHeaderCode(ctx context.Context, id entity.FiscalDocumentId, code, description string) error {
	if !isTerminal(code) {
		return nil
	}
	codeInt, err := strconv.Atoi(strings.TrimLeft(code, "0"))
	if err != nil || strings.TrimLeft(code, "0") == "" {
		codeInt = 0
	}
	return d.Store.UpdateHeader(ctx, id, &codeInt, &description)
}

func stripXMLDecl(s string) string {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "<?xml") {
		if idx := strings.Index(trimmed, "?>"); idx >= 0 {
			return strings.TrimSpace(trimmed[idx+2:])
		}
	}
	return trimmed
}

// deflateZipBase64 zips a single named entry with the deflate method used by
// the SIFEN batch transport and returns the base64 encoding of the archive.
func deflateZipBase64(entryName, content string) (string, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.CreateHeader(&zip.FileHeader{Name: entryName, Method: zip.Deflate})
	if err != nil {
		return "", err
	}
	if _, err := w.Write([]byte(content)); err != nil {
		return "", err
	}
	if err := zw.Close(); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
