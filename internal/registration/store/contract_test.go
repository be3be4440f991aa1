package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/suite"

	"formintake/internal/registration/models"
	"formintake/internal/registration/store"
	id "formintake/pkg/domain"
	"formintake/pkg/platform/sentinel"
)

// registrationStore is the surface every implementation must honour.
type registrationStore interface {
	Insert(ctx context.Context, reg *models.Registration) error
	FindByID(ctx context.Context, regID id.RegistrationID) (*models.Registration, error)
	ExistsByReference(ctx context.Context, code models.ReferenceCode) (bool, error)
	Ping(ctx context.Context) error
}

// contractSuite runs the same behavioural checks against each store. Embedders
// set newStore in SetupTest.
type contractSuite struct {
	suite.Suite
	store registrationStore
}

func ptr[T any](v T) *T { return &v }

func newRegistration(ref string) *models.Registration {
	return models.NewRegistration(
		id.NewRegistrationID(),
		models.ReferenceCode(ref),
		models.Submission{
			FormType:         models.FormTypeAD01,
			PenColourNotUsed: models.PenColourBlue,
			GuidanceRead:     models.GuidanceReadYes,
		},
		time.Date(2024, 3, 14, 9, 26, 53, 589000000, time.UTC),
	)
}

func (s *contractSuite) TestInsertAndFind() {
	ctx := context.Background()
	reg := newRegistration("ABCD1234")
	reg.FormType = models.FormTypeOther
	reg.FormTypeOtherText = ptr("Z99")
	reg.ReceiptPreference = ptr(models.ReceiptPreferenceEmail)
	reg.EmailAddress = ptr("a@b.co")

	s.Require().NoError(s.store.Insert(ctx, reg))

	got, err := s.store.FindByID(ctx, reg.ID)
	s.Require().NoError(err)
	s.Equal(reg.ID, got.ID)
	s.Equal(reg.ReferenceNumber, got.ReferenceNumber)
	s.Equal(models.FormTypeOther, got.FormType)
	s.Equal("Z99", *got.FormTypeOtherText)
	s.Equal(models.ReceiptPreferenceEmail, *got.ReceiptPreference)
	s.Equal("a@b.co", *got.EmailAddress)
	s.Nil(got.MobilePhoneNumber)
	s.True(reg.CreatedAt.Equal(got.CreatedAt), "createdAt %v != %v", reg.CreatedAt, got.CreatedAt)
}

func (s *contractSuite) TestOptionalFieldsRoundTripAsNil() {
	ctx := context.Background()
	reg := newRegistration("NOOPT123")
	s.Require().NoError(s.store.Insert(ctx, reg))

	got, err := s.store.FindByID(ctx, reg.ID)
	s.Require().NoError(err)
	s.Nil(got.FormTypeOtherText)
	s.Nil(got.ReceiptPreference)
	s.Nil(got.EmailAddress)
	s.Nil(got.MobilePhoneNumber)
}

func (s *contractSuite) TestFindMissing() {
	_, err := s.store.FindByID(context.Background(), id.NewRegistrationID())
	s.Require().ErrorIs(err, store.ErrNotFound)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *contractSuite) TestDuplicateReference() {
	ctx := context.Background()
	s.Require().NoError(s.store.Insert(ctx, newRegistration("DUPE0001")))

	err := s.store.Insert(ctx, newRegistration("DUPE0001"))
	var dup *store.DuplicateKeyError
	s.Require().ErrorAs(err, &dup)
	s.Equal(store.KeyReferenceNumber, dup.Field)
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *contractSuite) TestDuplicateID() {
	ctx := context.Background()
	first := newRegistration("FIRST001")
	s.Require().NoError(s.store.Insert(ctx, first))

	second := newRegistration("SECOND01")
	second.ID = first.ID
	err := s.store.Insert(ctx, second)
	var dup *store.DuplicateKeyError
	s.Require().ErrorAs(err, &dup)
	s.Equal(store.KeyID, dup.Field)
}

func (s *contractSuite) TestExistsByReference() {
	ctx := context.Background()
	exists, err := s.store.ExistsByReference(ctx, "EXIST001")
	s.Require().NoError(err)
	s.False(exists)

	s.Require().NoError(s.store.Insert(ctx, newRegistration("EXIST001")))

	exists, err = s.store.ExistsByReference(ctx, "EXIST001")
	s.Require().NoError(err)
	s.True(exists)
}

func (s *contractSuite) TestReturnedRecordIsACopy() {
	ctx := context.Background()
	reg := newRegistration("COPY0001")
	reg.FormTypeOtherText = ptr("original")
	s.Require().NoError(s.store.Insert(ctx, reg))
	*reg.FormTypeOtherText = "mutated by caller"

	got, err := s.store.FindByID(ctx, reg.ID)
	s.Require().NoError(err)
	*got.FormTypeOtherText = "mutated again"

	again, err := s.store.FindByID(ctx, reg.ID)
	s.Require().NoError(err)
	s.Equal("original", *again.FormTypeOtherText)
}

// TestConcurrentSameReference verifies the store, not application code, decides
// which of many racing inserts wins a reference.
func (s *contractSuite) TestConcurrentSameReference() {
	ctx := context.Background()
	const goroutines = 20

	var wg sync.WaitGroup
	var successes, conflicts atomic.Int32
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.Insert(ctx, newRegistration("RACE0001"))
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successes.Load(), "exactly one insert should win")
	s.Equal(int32(goroutines-1), conflicts.Load())
}

func (s *contractSuite) TestPing() {
	s.NoError(s.store.Ping(context.Background()))
}
