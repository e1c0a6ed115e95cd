// Package qr implements the QR Builder half of C2: extracting the QR source
// fields from the signed document and composing the SIFEN cHashQR-sealed
// URL. Inserting that URL into the signed document is done by the submit
// handler, not by this package.
package qr

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/oscar-duarte/sifen-worker/internal/domain/errs"
)

const sifenVersion = "150"

// Fields are the values extracted from the signed document tree that feed
// the QR query string, per §4.2 steps 7-8.
type Fields struct {
	CDC         string
	DFeEmiDE    string
	DRucRec     string
	DTotGralOpe string
	DTotIVA     string
	CItems      string
	DigestHex   string
	CSCID       string
}

// Generator builds the QR token URL embedded in <dCarQR>.
type Generator interface {
	BuildURL(fields Fields, cscSecret, baseURL string) (string, error)
}

type generator struct{}

func NewGenerator() Generator {
	return &generator{}
}

// ExtractFields walks the signed DE subtree collecting the QR source fields.
// Missing text defaults to "0" as required by §4.2 step 7.
func ExtractFields(de *etree.Element, cdc, digestHex, cscID string) Fields {
	return Fields{
		CDC:         cdc,
		DFeEmiDE:    hexText(findText(de, "dFeEmiDE")),
		DRucRec:     defaultZero(findText(de, "dRucRec")),
		DTotGralOpe: defaultZero(findText(de, "dTotGralOpe")),
		DTotIVA:     defaultZero(findText(de, "dTotIVA")),
		CItems:      strconv.Itoa(countByLocalName(de, "gCamItem")),
		DigestHex:   digestHex,
		CSCID:       cscID,
	}
}

func findText(el *etree.Element, name string) string {
	found := findByLocalName(el, name)
	if found == nil {
		return ""
	}
	return found.Text()
}

func defaultZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

func hexText(s string) string {
	if s == "" {
		return defaultZero(s)
	}
	return hex.EncodeToString([]byte(s))
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

func countByLocalName(el *etree.Element, name string) int {
	count := 0
	for _, child := range el.ChildElements() {
		if child.Tag == name {
			count++
		}
		count += countByLocalName(child, name)
	}
	return count
}

// BuildURL composes the base query string in the exact field order required
// by §4.2 step 8, computes cHashQR = sha256(base_query + csc_secret), and
// prefixes the configured QR base URL.
func (g *generator) BuildURL(f Fields, cscSecret, baseURL string) (string, error) {
	if f.CDC == "" || f.CSCID == "" {
		return "", errs.NewMalformedDocumentError("qr fields missing CDC or IdCSC", nil)
	}

	baseQuery := BuildBaseQuery(f)
	hash := ComputeHashQR(baseQuery, cscSecret)

	return fmt.Sprintf("%s?%s&cHashQR=%s", strings.TrimRight(baseURL, "/"), baseQuery, hash), nil
}

// BuildBaseQuery composes the ampersand-joined, unescaped query string in
// the fixed field order (nVersion, Id, dFeEmiDE, dRucRec, dTotGralOpe,
// dTotIVA, cItems, DigestValue, IdCSC).
func BuildBaseQuery(f Fields) string {
	parts := []string{
		"nVersion=" + sifenVersion,
		"Id=" + f.CDC,
		"dFeEmiDE=" + f.DFeEmiDE,
		"dRucRec=" + f.DRucRec,
		"dTotGralOpe=" + f.DTotGralOpe,
		"dTotIVA=" + f.DTotIVA,
		"cItems=" + f.CItems,
		"DigestValue=" + f.DigestHex,
		"IdCSC=" + f.CSCID,
	}
	return strings.Join(parts, "&")
}

// ComputeHashQR implements cHashQR = lowercase_hex(SHA-256(base_query + csc))
// with csc whitespace-stripped, per §4.2 step 9.
func ComputeHashQR(baseQuery, cscSecret string) string {
	sum := sha256.Sum256([]byte(baseQuery + strings.TrimSpace(cscSecret)))
	return hex.EncodeToString(sum[:])
}
