// Package soapclient implements the SIFEN SOAP Client (C4): a single mTLS
// POST primitive plus three envelope-template operations.
package soapclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/oscar-duarte/sifen-worker/internal/domain/errs"
	"github.com/oscar-duarte/sifen-worker/internal/infrastructure/sifen/credential"
)

const soapContentType = "application/soap+xml;charset=UTF-8"

// Client wraps the SOAP primitive and the three higher-level operations.
type Client interface {
	SubmitBatch(ctx context.Context, url string, zipBase64 string, mat *credential.Material) (string, error)
	QueryBatchStatus(ctx context.Context, url string, protocol string, mat *credential.Material) (string, error)
	SubmitEvent(ctx context.Context, url string, eventXML string, mat *credential.Material) (string, error)
}

type client struct {
	timeout      time.Duration
	materializer credential.Materializer
}

func NewClient(timeout time.Duration, materializer credential.Materializer) Client {
	return &client{timeout: timeout, materializer: materializer}
}

func (c *client) SubmitBatch(ctx context.Context, url, zipBase64 string, mat *credential.Material) (string, error) {
	body := fmt.Sprintf(
		`<rEnvioLote xmlns="http://ekuatia.set.gov.py/sifen/xsd"><dId>%d</dId><xDE>%s</xDE></rEnvioLote>`,
		nowMillis(), zipBase64)
	return c.post(ctx, url, body, mat)
}

func (c *client) QueryBatchStatus(ctx context.Context, url, protocol string, mat *credential.Material) (string, error) {
	body := fmt.Sprintf(
		`<rEnviConsLoteDe xmlns="http://ekuatia.set.gov.py/sifen/xsd"><dId>%d</dId><dProtConsLote>%s</dProtConsLote></rEnviConsLoteDe>`,
		nowMillis(), protocol)
	return c.post(ctx, url, body, mat)
}

func (c *client) SubmitEvent(ctx context.Context, url, eventXML string, mat *credential.Material) (string, error) {
	body := fmt.Sprintf(
		`<rEnviEventoDe xmlns="http://ekuatia.set.gov.py/sifen/xsd"><dId>%d</dId><dEvReg>%s</dEvReg></rEnviEventoDe>`,
		nowMillis(), stripXMLDecl(eventXML))
	return c.post(ctx, url, body, mat)
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

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// post performs the single mTLS POST primitive: wraps the operation body in
// a SOAP 1.2 envelope, provisions scoped mTLS files from the credential
// material, and always removes them before returning.
func (c *client) post(ctx context.Context, url, soapBody string, mat *credential.Material) (string, error) {
	mtlsFiles, err := c.materializer.ProvisionMTLSFiles(mat)
	if err != nil {
		return "", err
	}
	defer mtlsFiles.Close()

	cert, err := tls.LoadX509KeyPair(mtlsFiles.CertPath, mtlsFiles.KeyPath)
	if err != nil {
		return "", errs.NewCredentialError("load mTLS key pair", err)
	}

	httpClient := &http.Client{
		Timeout: c.timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
			},
		},
	}

	envelope := wrapEnvelope(soapBody)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader([]byte(envelope)))
	if err != nil {
		return "", errs.NewTransportError("build SOAP request", err)
	}
	req.Header.Set("Content-Type", soapContentType)

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", errs.NewTransportError("SOAP POST failed", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errs.NewTransportError("read SOAP response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if looksLikeXML(responseBody) {
			return string(responseBody), nil
		}
		return "", errs.NewTransportError(
			fmt.Sprintf("SIFEN returned HTTP %d with no parseable body", resp.StatusCode), nil)
	}

	return string(responseBody), nil
}

func looksLikeXML(body []byte) bool {
	trimmed := strings.TrimSpace(string(body))
	for _, prefix := range []string{"<?xml", "<env:Envelope", "<soap:Envelope", "<Envelope"} {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}

func wrapEnvelope(body string) string {
	return fmt.Sprintf(
		`<?xml version="1.0" encoding="UTF-8"?><soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope"><soap:Body>%s</soap:Body></soap:Envelope>`,
		body)
}
