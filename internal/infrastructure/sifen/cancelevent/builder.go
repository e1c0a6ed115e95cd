// Package cancelevent implements the Cancellation Event Builder (C3):
// producing a signed, WSDL-shaped cancellation event fragment for a
// previously approved fiscal document.
package cancelevent

import (
	"context"
	"fmt"
	"time"

	"github.com/beevik/etree"

	"github.com/oscar-duarte/sifen-worker/internal/domain/errs"
	"github.com/oscar-duarte/sifen-worker/internal/infrastructure/sifen/credential"
	"github.com/oscar-duarte/sifen-worker/internal/infrastructure/sifen/signer"
)

const (
	sifenNS       = "http://ekuatia.set.gov.py/sifen/xsd"
	xsiNS         = "http://www.w3.org/2001/XMLSchema-instance"
	schemaLocation = "http://ekuatia.set.gov.py/sifen/xsd siRecepEvento_v150.xsd"
	eventVersion  = "150"
	// fixedEventID is the literal Id required by SIFEN correction 0141: the
	// signature reference URI is "#1", never the CDC.
	fixedEventID = "1"
)

const minReasonLength = 5

// Builder produces signed cancellation events.
type Builder interface {
	BuildCancelEvent(ctx context.Context, cdc, reason string, mat *credential.Material) ([]byte, error)
}

type builder struct {
	signer signer.Signer
}

func NewBuilder(s signer.Signer) Builder {
	return &builder{signer: s}
}

// BuildCancelEvent returns the UTF-8 XML fragment rooted at <gGroupGesEve>,
// with no XML declaration, containing <rGesEve> whose children are the
// signed <rEve> followed by its detached <Signature> sibling.
func (b *builder) BuildCancelEvent(ctx context.Context, cdc, reason string, mat *credential.Material) ([]byte, error) {
	if len(reason) < minReasonLength {
		return nil, errs.NewMalformedDocumentError(
			fmt.Sprintf("cancellation reason must be at least %d characters", minReasonLength), nil)
	}
	if cdc == "" {
		return nil, errs.NewMalformedDocumentError("CDC is required to build a cancellation event", nil)
	}

	unsigned := buildUnsignedEnvelope(cdc, reason)
	doc := etree.NewDocument()
	doc.SetRoot(unsigned)
	unsignedBytes, err := doc.WriteToBytes()
	if err != nil {
		return nil, errs.NewSignatureError("serialize unsigned cancellation event", err)
	}

	result, err := b.signer.SignEnveloped(ctx, unsignedBytes, mat)
	if err != nil {
		return nil, err
	}

	signedDoc := etree.NewDocument()
	if err := signedDoc.ReadFromBytes(result.SignedXML); err != nil {
		return nil, errs.NewSignatureError("reparse signed cancellation event", err)
	}
	rEve := signedDoc.Root()
	sigEl := rEve.SelectElement("Signature")
	if sigEl == nil {
		return nil, errs.NewSignatureError("signature element missing after signing", nil)
	}
	rEve.RemoveChild(sigEl)

	gGroupGesEve := etree.NewElement("gGroupGesEve")
	gGroupGesEve.CreateAttr("xmlns", sifenNS)
	gGroupGesEve.CreateAttr("xmlns:xsi", xsiNS)
	gGroupGesEve.CreateAttr("xsi:schemaLocation", schemaLocation)

	rGesEve := etree.NewElement("rGesEve")
	rGesEve.CreateAttr("xmlns", sifenNS)
	rGesEve.CreateAttr("xmlns:xsi", xsiNS)
	rGesEve.CreateAttr("xsi:schemaLocation", schemaLocation)

	rGesEve.AddChild(rEve)
	rGesEve.AddChild(sigEl)
	gGroupGesEve.AddChild(rGesEve)

	out := etree.NewDocument()
	out.SetRoot(gGroupGesEve)
	out.WriteSettings.UseCRLF = false
	b64, err := out.WriteToBytes()
	if err != nil {
		return nil, errs.NewSignatureError("serialize cancellation event", err)
	}
	return b64, nil
}

func buildUnsignedEnvelope(cdc, reason string) *etree.Element {
	rEve := etree.NewElement("rEve")
	rEve.CreateAttr("Id", fixedEventID)
	rEve.CreateAttr("xmlns", sifenNS)
	rEve.CreateAttr("xmlns:xsi", xsiNS)

	dFecFirma := etree.NewElement("dFecFirma")
	dFecFirma.SetText(time.Now().Format("2006-01-02T15:04:05"))
	rEve.AddChild(dFecFirma)

	dVerFor := etree.NewElement("dVerFor")
	dVerFor.SetText(eventVersion)
	rEve.AddChild(dVerFor)

	gGroupTiEvt := etree.NewElement("gGroupTiEvt")
	rGeVeCan := etree.NewElement("rGeVeCan")

	id := etree.NewElement("Id")
	id.SetText(cdc)
	rGeVeCan.AddChild(id)

	mOtEve := etree.NewElement("mOtEve")
	mOtEve.SetText(reason)
	rGeVeCan.AddChild(mOtEve)

	gGroupTiEvt.AddChild(rGeVeCan)
	rEve.AddChild(gGroupTiEvt)

	return rEve
}
