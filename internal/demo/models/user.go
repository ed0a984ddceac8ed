package models

import (
	"fmt"
	"time"
)

// Seed values for the demo account.
const (
	DemoUserID        = "demo-user-001"
	DemoEmail         = "demo@decentrakyc.com"
	DemoName          = "Alex Johnson"
	DemoWalletAddress = "0x742d35Cc6635C0532925a3b8D23C8C0b8E0"
)

// Verification milestones. The step only moves forward outside of a reset.
const (
	StepInitial          = 1
	StepDocumentUploaded = 2
	StepWalletConnected  = 3
	StepKycComplete      = 4
)

// KycStatus is the overall verification state of a DemoUser.
type KycStatus string

const (
	KycStatusPending    KycStatus = "pending"
	KycStatusInProgress KycStatus = "in-progress"
	KycStatusVerified   KycStatus = "verified"
	KycStatusRejected   KycStatus = "rejected"
)

func (s KycStatus) IsValid() bool {
	switch s {
	case KycStatusPending, KycStatusInProgress, KycStatusVerified, KycStatusRejected:
		return true
	}
	return false
}

// ParseKycStatus validates s as a KYC status.
func ParseKycStatus(s string) (KycStatus, error) {
	status := KycStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("unknown kyc status: %q", s)
	}
	return status, nil
}

// DemoUser is the single simulated account of a browser profile.
//
// Invariants:
//   - VerificationStep is in [1,4]
//   - Documents are in upload order and hold at most one entry per type once
//     an upload has settled
//   - CreatedAt is set once
type DemoUser struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	Name             string         `json:"name"`
	WalletAddress    string         `json:"walletAddress"`
	KycStatus        KycStatus      `json:"kycStatus"`
	Documents        []DemoDocument `json:"documents"`
	VerificationStep int            `json:"verificationStep"`
	CreatedAt        time.Time      `json:"createdAt"`
}

// NewDefaultDemoUser synthesizes the seed account.
func NewDefaultDemoUser(now time.Time) *DemoUser {
	return &DemoUser{
		ID:               DemoUserID,
		Email:            DemoEmail,
		Name:             DemoName,
		KycStatus:        KycStatusPending,
		Documents:        []DemoDocument{},
		VerificationStep: StepInitial,
		CreatedAt:        now,
	}
}

// HasWallet reports whether a wallet address is connected.
func (u *DemoUser) HasWallet() bool {
	return u.WalletAddress != ""
}

// RaiseStep moves the verification step to at least step.
func (u *DemoUser) RaiseStep(step int) {
	u.VerificationStep = max(u.VerificationStep, step)
}

// FindDocument returns the index of the document with id, or -1.
func (u *DemoUser) FindDocument(id string) int {
	for i := range u.Documents {
		if u.Documents[i].ID == id {
			return i
		}
	}
	return -1
}

// LatestDocument returns the most recently uploaded document of docType.
func (u *DemoUser) LatestDocument(docType DocumentType) (DemoDocument, bool) {
	for i := len(u.Documents) - 1; i >= 0; i-- {
		if u.Documents[i].Type == docType {
			return u.Documents[i], true
		}
	}
	return DemoDocument{}, false
}

// ReplaceDocument swaps in doc for the document with the same id, keeping its
// upload position. Unknown ids are appended.
func (u *DemoUser) ReplaceDocument(doc DemoDocument) {
	if i := u.FindDocument(doc.ID); i >= 0 {
		u.Documents[i] = doc
		return
	}
	u.Documents = append(u.Documents, doc)
}

// IsLatestDocument reports whether id is the most recently uploaded document.
func (u *DemoUser) IsLatestDocument(id string) bool {
	return len(u.Documents) > 0 && u.Documents[len(u.Documents)-1].ID == id
}

// RemoveDocumentsOfType drops every document of docType and returns their ids.
func (u *DemoUser) RemoveDocumentsOfType(docType DocumentType) []string {
	var removed []string
	kept := make([]DemoDocument, 0, len(u.Documents))
	for _, d := range u.Documents {
		if d.Type == docType {
			removed = append(removed, d.ID)
			continue
		}
		kept = append(kept, d)
	}
	u.Documents = kept
	return removed
}

// Validate checks the invariants a stored record must satisfy.
func (u *DemoUser) Validate() error {
	if u.ID == "" {
		return fmt.Errorf("user id is required")
	}
	if !u.KycStatus.IsValid() {
		return fmt.Errorf("unknown kyc status %q", u.KycStatus)
	}
	if u.VerificationStep < StepInitial || u.VerificationStep > StepKycComplete {
		return fmt.Errorf("verification step %d out of range", u.VerificationStep)
	}
	for _, d := range u.Documents {
		if err := d.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a deep copy.
func (u *DemoUser) Clone() *DemoUser {
	if u == nil {
		return nil
	}
	c := *u
	c.Documents = make([]DemoDocument, len(u.Documents))
	for i, d := range u.Documents {
		c.Documents[i] = d.Clone()
	}
	return &c
}
