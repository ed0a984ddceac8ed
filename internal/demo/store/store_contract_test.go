package store_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"

	"decentrakyc/internal/demo/models"
	"decentrakyc/internal/demo/store"
	"decentrakyc/pkg/platform/sentinel"
)

// rawWriter plants bytes directly in a backend so corrupt-record handling can
// be exercised through Load.
type rawWriter func(profile string, data []byte)

// StoreContractSuite holds the behaviour every Store backend must share.
// Backend suites embed it and fill in store and writeRaw.
type StoreContractSuite struct {
	suite.Suite
	store    store.Store
	writeRaw rawWriter
}

func sampleUser() *models.DemoUser {
	now := time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)
	u := models.NewDefaultDemoUser(now)
	u.WalletAddress = models.DemoWalletAddress
	u.KycStatus = models.KycStatusVerified
	u.VerificationStep = models.StepKycComplete

	verified := models.NewDemoDocument("doc-1", models.DocumentTypePassport, "sample-passport.pdf", now.Add(time.Minute))
	verified.Status = models.DocumentStatusVerified
	verified.AIConfidence = 93
	verified.ExtractedData = models.CannedExtractedData(models.DocumentTypePassport)
	u.ReplaceDocument(verified)
	u.ReplaceDocument(models.NewDemoDocument("doc-2", models.DocumentTypeProofOfAddress, "sample-utility-bill.pdf", now.Add(2*time.Minute)))
	return u
}

func (s *StoreContractSuite) TestRoundTrip() {
	ctx := context.Background()

	s.Run("load returns a deep-equal copy of the saved record", func() {
		u := sampleUser()
		s.Require().NoError(s.store.Save(ctx, "profile-roundtrip", u))

		loaded, err := s.store.Load(ctx, "profile-roundtrip")
		s.Require().NoError(err)
		s.Equal(u, loaded)
	})

	s.Run("fresh default user round-trips with empty documents", func() {
		u := models.NewDefaultDemoUser(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
		s.Require().NoError(s.store.Save(ctx, "profile-default", u))

		loaded, err := s.store.Load(ctx, "profile-default")
		s.Require().NoError(err)
		s.Equal(u, loaded)
		s.NotNil(loaded.Documents)
	})
}

func (s *StoreContractSuite) TestSaveOverwrites() {
	ctx := context.Background()
	first := sampleUser()
	s.Require().NoError(s.store.Save(ctx, "profile-overwrite", first))

	second := models.NewDefaultDemoUser(first.CreatedAt)
	s.Require().NoError(s.store.Save(ctx, "profile-overwrite", second))

	loaded, err := s.store.Load(ctx, "profile-overwrite")
	s.Require().NoError(err)
	s.Equal(second, loaded)
}

func (s *StoreContractSuite) TestProfilesAreIsolated() {
	ctx := context.Background()
	s.Require().NoError(s.store.Save(ctx, "profile-a", sampleUser()))

	_, err := s.store.Load(ctx, "profile-b")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *StoreContractSuite) TestClear() {
	ctx := context.Background()

	s.Run("removes the record", func() {
		s.Require().NoError(s.store.Save(ctx, "profile-clear", sampleUser()))
		s.Require().NoError(s.store.Clear(ctx, "profile-clear"))

		_, err := s.store.Load(ctx, "profile-clear")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("is idempotent", func() {
		s.Require().NoError(s.store.Clear(ctx, "profile-never-saved"))
		s.Require().NoError(s.store.Clear(ctx, "profile-never-saved"))
	})
}

func (s *StoreContractSuite) TestCorruptRecords() {
	ctx := context.Background()
	cases := map[string]string{
		"malformed json":    `{"id":`,
		"bad timestamp":     `{"id":"demo-user-001","kycStatus":"pending","verificationStep":1,"createdAt":"yesterday"}`,
		"unknown status":    `{"id":"demo-user-001","kycStatus":"approved","verificationStep":1,"createdAt":"2024-01-15T09:30:00Z"}`,
		"step out of range": `{"id":"demo-user-001","kycStatus":"pending","verificationStep":9,"createdAt":"2024-01-15T09:30:00Z"}`,
	}
	for name, raw := range cases {
		s.Run(name, func() {
			profile := "profile-corrupt-" + name
			s.writeRaw(profile, []byte(raw))

			_, err := s.store.Load(ctx, profile)
			s.Require().ErrorIs(err, sentinel.ErrCorrupt)
		})
	}
}

func (s *StoreContractSuite) TestSaveRequiresProfile() {
	s.Error(s.store.Save(context.Background(), "", sampleUser()))
}
