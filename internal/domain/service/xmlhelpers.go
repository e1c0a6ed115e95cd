package service

import (
	"github.com/beevik/etree"

	"github.com/oscar-duarte/sifen-worker/internal/domain/errs"
	"github.com/oscar-duarte/sifen-worker/internal/infrastructure/sifen/qr"
	"github.com/oscar-duarte/sifen-worker/internal/infrastructure/sifen/signer"
)

func qrExtract(signed *signer.Result, cscID string) qr.Fields {
	return qr.ExtractFields(signed.SignedTree, signed.CDC, signed.DigestHex, cscID)
}

// insertQR parses the signed XML, inserts <gCamFuFD><dCarQR>{qrURL}</dCarQR>
// </gCamFuFD> as the sibling immediately after <Signature>, and
// re-serializes with a UTF-8 XML declaration, per §4.2 step 11.
func insertQR(signedXML []byte, qrURL string) ([]byte, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(signedXML); err != nil {
		return nil, errs.NewMalformedDocumentError("parse signed XML before QR insertion", err)
	}

	de := findSignatureParent(doc.Root())
	if de == nil {
		return nil, errs.NewMalformedDocumentError("no <Signature> element found for QR insertion", nil)
	}

	gCamFuFD := etree.NewElement("gCamFuFD")
	dCarQR := etree.NewElement("dCarQR")
	dCarQR.SetText(qrURL)
	gCamFuFD.AddChild(dCarQR)

	var signatureEl *etree.Element
	for _, el := range de.ChildElements() {
		if el.Tag == "Signature" {
			signatureEl = el
			break
		}
	}
	if signatureEl == nil {
		return nil, errs.NewMalformedDocumentError("Signature child not found under its parent", nil)
	}

	var nextSibling etree.Token
	for i, t := range de.Child {
		if t == signatureEl && i+1 < len(de.Child) {
			nextSibling = de.Child[i+1]
			break
		}
	}
	if nextSibling != nil {
		de.InsertChild(nextSibling, gCamFuFD)
	} else {
		de.AddChild(gCamFuFD)
	}

	doc.Indent(0)
	final := etree.NewDocument()
	final.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	final.SetRoot(doc.Root())
	final.WriteSettings.UseCRLF = false
	out, err := final.WriteToBytes()
	if err != nil {
		return nil, errs.NewSignatureError("serialize XML after QR insertion", err)
	}
	return out, nil
}

func findSignatureParent(el *etree.Element) *etree.Element {
	if el == nil {
		return nil
	}
	for _, child := range el.ChildElements() {
		if child.Tag == "Signature" {
			return el
		}
	}
	for _, child := range el.ChildElements() {
		if found := findSignatureParent(child); found != nil {
			return found
		}
	}
	return nil
}

// findCDCFromSignedXML locates any element with local name DE and returns
// its Id attribute, used by the Cancel Handler (C10) to recover the CDC.
func findCDCFromSignedXML(xml string) (string, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(xml); err != nil {
		return "", errs.NewMalformedDocumentError("parse signed XML to extract CDC", err)
	}
	de := findByLocalNameDoc(doc.Root(), "DE")
	if de == nil {
		return "", errs.NewMalformedDocumentError("no DE element found in signed XML", nil)
	}
	attr := de.SelectAttr("Id")
	if attr == nil || attr.Value == "" {
		return "", errs.NewMalformedDocumentError("DE element missing Id attribute", nil)
	}
	return attr.Value, nil
}

func findByLocalNameDoc(el *etree.Element, name string) *etree.Element {
	if el == nil {
		return nil
	}
	if el.Tag == name {
		return el
	}
	for _, child := range el.ChildElements() {
		if found := findByLocalNameDoc(child, name); found != nil {
			return found
		}
	}
	return nil
}
