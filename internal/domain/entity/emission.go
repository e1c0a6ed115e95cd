package entity

import "time"

// FiscalDocumentId identifies the business document an EmissionRecord and
// DocumentHeader belong to. It is opaque to this core beyond being a lookup
// key.
type FiscalDocumentId int64

// EmissionRecord is the working state of one emission attempt for a fiscal
// document. When multiple rows share a FiscalDocumentId, the newest one
// (largest ID) is authoritative.
type EmissionRecord struct {
	ID                 int64            `gorm:"column:id;primaryKey"`
	FiscalDocumentId   FiscalDocumentId `gorm:"column:id_docfis;index"`
	XMLOriginal        string           `gorm:"column:xml"`
	XMLSigned          string           `gorm:"column:xml_assinado"`
	XMLResponse        string           `gorm:"column:xml_retorno"`
	XMLCancelRequest   string           `gorm:"column:xml_cancelamento_envio"`
	XMLCancelResponse  string           `gorm:"column:xml_cancelamento_retorno"`
	Protocol           string           `gorm:"column:protocolo"`
	StatusCode         string           `gorm:"column:cod_status"`
	StatusDescription  string           `gorm:"column:desc_status"`
	CertPath           string           `gorm:"column:caminho_certificado"`
	CertPassword       string           `gorm:"column:senha"`
	CSC                string           `gorm:"column:csc"`
	CSCID              string           `gorm:"column:id_csc"`
	DocumentType       string           `gorm:"column:tipo_docto"`
	CreatedAt          time.Time        `gorm:"column:created_at"`
}

// TableName pins the GORM model to the schema named in the store's logical
// data model.
func (EmissionRecord) TableName() string { return "tb_de_emissao" }

// DocumentHeader is the external-facing status record for a fiscal document.
// Only StatusCode and StatusDescription are mutated by this core.
type DocumentHeader struct {
	ID                FiscalDocumentId `gorm:"column:id_doc;primaryKey"`
	StatusCode        int              `gorm:"column:cod_status"`
	StatusDescription string           `gorm:"column:desc_status"`
}

func (DocumentHeader) TableName() string { return "tb_de_documento" }
