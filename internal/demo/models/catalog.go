package models

// DocumentSpec is the display metadata of a document type.
type DocumentSpec struct {
	Type           DocumentType `json:"id"`
	Name           string       `json:"name"`
	Description    string       `json:"description"`
	Required       bool         `json:"required"`
	SampleFilename string       `json:"sampleFilename"`
}

// Catalog lists the supported documents in display order.
var Catalog = []DocumentSpec{
	{
		Type:           DocumentTypePassport,
		Name:           "Passport",
		Description:    "Government issued passport",
		Required:       true,
		SampleFilename: "sample-passport.pdf",
	},
	{
		Type:           DocumentTypeDriversLicense,
		Name:           "Driver's License",
		Description:    "Valid driver's license",
		SampleFilename: "sample-drivers-license.jpg",
	},
	{
		Type:           DocumentTypeIDCard,
		Name:           "National ID",
		Description:    "National identity card",
		SampleFilename: "sample-national-id.jpg",
	},
	{
		Type:           DocumentTypeProofOfAddress,
		Name:           "Proof of Address",
		Description:    "Utility bill or bank statement",
		Required:       true,
		SampleFilename: "sample-utility-bill.pdf",
	},
}

// Spec returns the catalog entry for docType.
func Spec(docType DocumentType) (DocumentSpec, bool) {
	for _, s := range Catalog {
		if s.Type == docType {
			return s, true
		}
	}
	return DocumentSpec{}, false
}

// RequiredTypes returns the types that must be verified for KYC completion.
func RequiredTypes() []DocumentType {
	var types []DocumentType
	for _, s := range Catalog {
		if s.Required {
			types = append(types, s.Type)
		}
	}
	return types
}
