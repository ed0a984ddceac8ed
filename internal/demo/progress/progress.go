// Package progress derives the read-only progress figures the views show.
// Every function accepts a nil user and returns the zero answer.
package progress

import "decentrakyc/internal/demo/models"

// OverallProgress is the dashboard percentage: step/4 of the way, capped at 100.
func OverallProgress(user *models.DemoUser) int {
	if user == nil {
		return 0
	}
	return min(100, user.VerificationStep*100/models.StepKycComplete)
}

// DocumentStatus returns the status of the most recent document of docType,
// or DocumentStatusNotUploaded.
func DocumentStatus(user *models.DemoUser, docType models.DocumentType) models.DocumentStatus {
	if user == nil {
		return models.DocumentStatusNotUploaded
	}
	doc, ok := user.LatestDocument(docType)
	if !ok {
		return models.DocumentStatusNotUploaded
	}
	return doc.Status
}

// RequiredCounts returns how many required document types are verified and
// how many are required.
func RequiredCounts(user *models.DemoUser) (verified, required int) {
	for _, t := range models.RequiredTypes() {
		required++
		if DocumentStatus(user, t) == models.DocumentStatusVerified {
			verified++
		}
	}
	return verified, required
}

// DocumentProgress is the share of required documents already verified.
func DocumentProgress(user *models.DemoUser) int {
	verified, required := RequiredCounts(user)
	if required == 0 {
		return 0
	}
	return verified * 100 / required
}

// IsKycComplete reports whether every required document type is verified.
func IsKycComplete(user *models.DemoUser) bool {
	if user == nil {
		return false
	}
	verified, required := RequiredCounts(user)
	return verified == required
}

// Summary is the admin panel overview of a demo user.
type Summary struct {
	TotalDocuments      int              `json:"totalDocuments"`
	VerifiedDocuments   int              `json:"verifiedDocuments"`
	ProcessingDocuments int              `json:"processingDocuments"`
	KycStatus           models.KycStatus `json:"kycStatus"`
	VerificationStep    int              `json:"verificationStep"`
	HasWallet           bool             `json:"hasWallet"`
}

// Stats counts documents by status for the admin panel.
func Stats(user *models.DemoUser) Summary {
	if user == nil {
		return Summary{}
	}
	s := Summary{
		TotalDocuments:   len(user.Documents),
		KycStatus:        user.KycStatus,
		VerificationStep: user.VerificationStep,
		HasWallet:        user.HasWallet(),
	}
	for _, d := range user.Documents {
		switch d.Status {
		case models.DocumentStatusVerified:
			s.VerifiedDocuments++
		case models.DocumentStatusProcessing:
			s.ProcessingDocuments++
		}
	}
	return s
}

// DocumentView pairs a catalog entry with the user's status for that type.
type DocumentView struct {
	models.DocumentSpec
	Status   models.DocumentStatus `json:"status"`
	Document *models.DemoDocument  `json:"document,omitempty"`
}

// Documents lists the catalog in display order with each type's current state.
func Documents(user *models.DemoUser) []DocumentView {
	views := make([]DocumentView, 0, len(models.Catalog))
	for _, spec := range models.Catalog {
		v := DocumentView{DocumentSpec: spec, Status: models.DocumentStatusNotUploaded}
		if user != nil {
			if doc, ok := user.LatestDocument(spec.Type); ok {
				doc = doc.Clone()
				v.Status = doc.Status
				v.Document = &doc
			}
		}
		views = append(views, v)
	}
	return views
}
