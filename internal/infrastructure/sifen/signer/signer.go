// Package signer implements the signing half of the XML Signer & QR Builder
// (C2): locating the CDC-bearing DE element, producing an enveloped XMLDSig
// signature, and exposing the values the QR builder needs.
package signer

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/oscar-duarte/sifen-worker/internal/domain/errs"
	"github.com/oscar-duarte/sifen-worker/internal/infrastructure/sifen/credential"
	"github.com/oscar-duarte/sifen-worker/pkg/logger"
)

const (
	nsExclusiveC14N = "http://www.w3.org/2001/10/xml-exc-c14n#"
	nsC14N10        = "http://www.w3.org/TR/2001/REC-xml-c14n-20010315"
	nsRSASHA256     = "http://www.w3.org/2000/09/xmldsig#rsa-sha256"
	nsSHA256Digest  = "http://www.w3.org/2001/04/xmlenc#sha256"
	nsEnveloped     = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"
	nsDsig          = "http://www.w3.org/2000/09/xmldsig#"
)

// Result carries the signed document plus the fields the QR builder needs
// that are only known after signing (the CDC and the DigestValue hex form).
type Result struct {
	SignedXML    []byte
	CDC          string
	DigestHex    string
	SignedTree   *etree.Element // the DE element, post-signature, for QR field extraction
}

// Signer encapsulates XMLDSig enveloped signature logic for SIFEN documents.
type Signer interface {
	SignEnveloped(ctx context.Context, unsignedXML []byte, mat *credential.Material) (*Result, error)
}

type signer struct {
	log logger.Logger
}

func NewSigner(log logger.Logger) Signer {
	return &signer{log: log}
}

func (s *signer) SignEnveloped(ctx context.Context, unsignedXML []byte, mat *credential.Material) (*Result, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(unsignedXML); err != nil {
		return nil, errs.NewMalformedDocumentError("parse unsigned XML", err)
	}

	de := findSignTarget(doc.Root())
	if de == nil {
		return nil, errs.NewMalformedDocumentError("no signable element (DE or Id-bearing root) found", nil)
	}

	if de.Tag == "DE" {
		if fecFirma := findByLocalName(de, "dFecFirma"); fecFirma != nil {
			fecFirma.SetText(time.Now().Format("2006-01-02T15:04:05"))
		}
	}

	idAttr := de.SelectAttr("Id")
	if idAttr == nil || idAttr.Value == "" {
		return nil, errs.NewMalformedDocumentError("signable element missing Id attribute", nil)
	}
	cdc := idAttr.Value

	if de.Tag == "DE" {
		if tiDE := findByLocalName(de, "iTiDE"); tiDE != nil && tiDE.Text() == "7" {
			if findByLocalName(de, "gTransp") == nil {
				// SIFEN allows a type-7 (remission) document without gTransp in
				// some profiles; this is surfaced, not fatal.
				s.log.Warn("iTiDE=7 without gTransp", logger.F("cdc", cdc))
			}
		}
	}

	signature, digestHex, err := s.createSignature(de, mat)
	if err != nil {
		return nil, errs.NewSignatureError("create enveloped signature", err)
	}
	de.AddChild(signature)

	signedXML, err := doc.WriteToBytes()
	if err != nil {
		return nil, errs.NewSignatureError("serialize signed XML", err)
	}

	return &Result{SignedXML: signedXML, CDC: cdc, DigestHex: digestHex, SignedTree: de}, nil
}

// findSignTarget locates the element to sign: a descendant DE for ordinary
// documents, or the root itself when it already carries an Id attribute (the
// cancellation event's <rEve Id="1">).
func findSignTarget(root *etree.Element) *etree.Element {
	if root == nil {
		return nil
	}
	if root.Tag == "DE" {
		return root
	}
	if de := findByLocalName(root, "DE"); de != nil {
		return de
	}
	if root.SelectAttr("Id") != nil {
		return root
	}
	return nil
}

func findByLocalName(el *etree.Element, name string) *etree.Element {
	if el == nil {
		return nil
	}
	if el.Tag == name {
		return el
	}
	for _, child := range el.ChildElements() {
		if found := findByLocalName(child, name); found != nil {
			return found
		}
	}
	return nil
}

// createSignature builds the <Signature> element per §4.2 and returns the
// DigestValue converted to hex per the load-bearing quirk: hex-encoding the
// bytes of the base64 digest *text*, not the decoded digest bytes.
func (s *signer) createSignature(elementToSign *etree.Element, mat *credential.Material) (*etree.Element, string, error) {
	canonicalized := canonicalize(elementToSign)
	digest := sha256.Sum256(canonicalized)
	digestBase64 := base64.StdEncoding.EncodeToString(digest[:])
	digestHex := fmt.Sprintf("%x", []byte(digestBase64))

	signedInfo := buildSignedInfo(elementToSign.SelectAttr("Id").Value, digestBase64)
	signedInfoCanonicalized := canonicalizeExclusive(signedInfo)

	signatureValue, err := signData(signedInfoCanonicalized, mat.PrivateKey)
	if err != nil {
		return nil, "", err
	}

	signature := etree.NewElement("Signature")
	signature.CreateAttr("xmlns", nsDsig)
	signature.AddChild(signedInfo)
	signature.AddChild(buildSignatureValue(signatureValue))
	signature.AddChild(buildKeyInfo(mat.Certificate))

	return signature, digestHex, nil
}

func buildSignedInfo(referenceID, digestBase64 string) *etree.Element {
	signedInfo := etree.NewElement("SignedInfo")

	canon := etree.NewElement("CanonicalizationMethod")
	canon.CreateAttr("Algorithm", nsExclusiveC14N)
	signedInfo.AddChild(canon)

	sigMethod := etree.NewElement("SignatureMethod")
	sigMethod.CreateAttr("Algorithm", nsRSASHA256)
	signedInfo.AddChild(sigMethod)

	reference := etree.NewElement("Reference")
	reference.CreateAttr("URI", "#"+referenceID)

	transforms := etree.NewElement("Transforms")
	enveloped := etree.NewElement("Transform")
	enveloped.CreateAttr("Algorithm", nsEnveloped)
	transforms.AddChild(enveloped)

	c14n := etree.NewElement("Transform")
	c14n.CreateAttr("Algorithm", nsC14N10)
	transforms.AddChild(c14n)
	reference.AddChild(transforms)

	digestMethod := etree.NewElement("DigestMethod")
	digestMethod.CreateAttr("Algorithm", nsSHA256Digest)
	reference.AddChild(digestMethod)

	digestValue := etree.NewElement("DigestValue")
	digestValue.SetText(digestBase64)
	reference.AddChild(digestValue)

	signedInfo.AddChild(reference)
	return signedInfo
}

func signData(data []byte, privateKey *rsa.PrivateKey) (string, error) {
	hashed := sha256.Sum256(data)
	signature, err := rsa.SignPKCS1v15(rand.Reader, privateKey, crypto.SHA256, hashed[:])
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(signature), nil
}

func buildSignatureValue(signature string) *etree.Element {
	el := etree.NewElement("SignatureValue")
	el.SetText(signature)
	return el
}

func buildKeyInfo(cert *x509.Certificate) *etree.Element {
	keyInfo := etree.NewElement("KeyInfo")
	x509Data := etree.NewElement("X509Data")
	x509Cert := etree.NewElement("X509Certificate")
	x509Cert.SetText(base64.StdEncoding.EncodeToString(cert.Raw))
	x509Data.AddChild(x509Cert)
	keyInfo.AddChild(x509Data)
	return keyInfo
}

var collapseWhitespace = regexp.MustCompile(`>\s+<`)

// canonicalize approximates Canonical XML 1.0 for the reference transform.
// A real C14N implementation sorts attributes, resolves namespace inheritance
// and normalizes character references; this collapses inter-element
// whitespace and normalizes attribute values, matching this codebase's
// existing approach to canonicalization elsewhere.
func canonicalize(element *etree.Element) []byte {
	var buf strings.Builder
	element.WriteTo(&buf, &etree.WriteSettings{CanonicalText: true, CanonicalAttrVal: true})
	xmlStr := collapseWhitespace.ReplaceAllString(buf.String(), "><")
	return []byte(strings.TrimSpace(xmlStr))
}

// canonicalizeExclusive approximates Exclusive XML Canonicalization for the
// SignedInfo element signed over.
func canonicalizeExclusive(element *etree.Element) []byte {
	return canonicalize(element)
}
