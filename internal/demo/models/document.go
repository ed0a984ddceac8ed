package models

import (
	"fmt"
	"time"
)

// DocumentType identifies the kind of identity document.
type DocumentType string

const (
	DocumentTypePassport       DocumentType = "passport"
	DocumentTypeDriversLicense DocumentType = "drivers-license"
	DocumentTypeIDCard         DocumentType = "id-card"
	DocumentTypeProofOfAddress DocumentType = "proof-of-address"
)

// DocumentTypes lists every type in catalog order.
var DocumentTypes = []DocumentType{
	DocumentTypePassport,
	DocumentTypeDriversLicense,
	DocumentTypeIDCard,
	DocumentTypeProofOfAddress,
}

func (t DocumentType) IsValid() bool {
	switch t {
	case DocumentTypePassport, DocumentTypeDriversLicense, DocumentTypeIDCard, DocumentTypeProofOfAddress:
		return true
	}
	return false
}

func (t DocumentType) String() string {
	return string(t)
}

// ParseDocumentType validates s as a document type.
func ParseDocumentType(s string) (DocumentType, error) {
	t := DocumentType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("unknown document type: %q", s)
	}
	return t, nil
}

// DocumentStatus tracks a document through the simulated verification pipeline.
//
// Transitions: uploaded -> processing -> verified. Rejected is reachable only
// through stored data; the simulation never produces it.
type DocumentStatus string

const (
	DocumentStatusUploaded   DocumentStatus = "uploaded"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusVerified   DocumentStatus = "verified"
	DocumentStatusRejected   DocumentStatus = "rejected"

	// DocumentStatusNotUploaded is the lookup sentinel for a type with no document.
	// It is never stored on a document.
	DocumentStatusNotUploaded DocumentStatus = "not-uploaded"
)

func (s DocumentStatus) IsValid() bool {
	switch s {
	case DocumentStatusUploaded, DocumentStatusProcessing, DocumentStatusVerified, DocumentStatusRejected:
		return true
	}
	return false
}

// ExtractedData is the canned result of simulated document analysis.
type ExtractedData struct {
	Name           string `json:"name"`
	DocumentNumber string `json:"documentNumber"`
	ExpiryDate     string `json:"expiryDate"`
	IssueDate      string `json:"issueDate"`
}

// DemoDocument is one uploaded identity document.
type DemoDocument struct {
	ID            string         `json:"id"`
	Type          DocumentType   `json:"type"`
	Filename      string         `json:"filename"`
	Status        DocumentStatus `json:"status"`
	AIConfidence  int            `json:"aiConfidence"`
	ExtractedData *ExtractedData `json:"extractedData,omitempty"`
	UploadedAt    time.Time      `json:"uploadedAt"`
}

// NewDemoDocument builds a freshly uploaded document.
func NewDemoDocument(id string, docType DocumentType, filename string, now time.Time) DemoDocument {
	return DemoDocument{
		ID:         id,
		Type:       docType,
		Filename:   filename,
		Status:     DocumentStatusUploaded,
		UploadedAt: now,
	}
}

// Validate checks enum membership and the confidence range.
func (d DemoDocument) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("document id is required")
	}
	if !d.Type.IsValid() {
		return fmt.Errorf("document %s: unknown type %q", d.ID, d.Type)
	}
	if !d.Status.IsValid() {
		return fmt.Errorf("document %s: unknown status %q", d.ID, d.Status)
	}
	if d.AIConfidence < 0 || d.AIConfidence > 100 {
		return fmt.Errorf("document %s: confidence %d out of range", d.ID, d.AIConfidence)
	}
	return nil
}

// Clone returns a copy that shares no pointers with d.
func (d DemoDocument) Clone() DemoDocument {
	if d.ExtractedData != nil {
		data := *d.ExtractedData
		d.ExtractedData = &data
	}
	return d
}

// CannedExtractedData returns the simulated analysis output for docType.
func CannedExtractedData(docType DocumentType) *ExtractedData {
	number := "DL987654321"
	if docType == DocumentTypePassport {
		number = "P12345678"
	}
	return &ExtractedData{
		Name:           DemoName,
		DocumentNumber: number,
		ExpiryDate:     "2029-12-31",
		IssueDate:      "2024-01-15",
	}
}
