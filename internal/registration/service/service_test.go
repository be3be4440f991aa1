package service_test

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,EventPublisher

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"formintake/internal/registration/metrics"
	"formintake/internal/registration/models"
	"formintake/internal/registration/reference"
	"formintake/internal/registration/service"
	"formintake/internal/registration/service/mocks"
	"formintake/internal/registration/store"
	"formintake/internal/registration/validation"
	id "formintake/pkg/domain"
	dErrors "formintake/pkg/domain-errors"
	"formintake/pkg/platform/sentinel"
	"formintake/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	store     *mocks.MockStore
	publisher *mocks.MockEventPublisher
	metrics   *metrics.Metrics
	service   *service.Service
	now       time.Time
	ctx       context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockStore(s.ctrl)
	s.publisher = mocks.NewMockEventPublisher(s.ctrl)
	s.metrics = metrics.NewWithRegisterer(prometheus.NewRegistry())
	s.service = service.New(s.store,
		service.WithMetrics(s.metrics),
		service.WithPublisher(s.publisher),
	)
	s.now = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func validBody() map[string]any {
	return map[string]any{
		"formType":         "AD01",
		"penColourNotUsed": "BLUE",
		"guidanceRead":     "YES",
	}
}

func (s *ServiceSuite) submissions(outcome string) float64 {
	return promtest.ToFloat64(s.metrics.Submissions.WithLabelValues(outcome))
}

func (s *ServiceSuite) TestSubmit_Accepted() {
	var inserted *models.Registration
	s.store.EXPECT().ExistsByReference(gomock.Any(), gomock.Any()).Return(false, nil)
	s.store.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, reg *models.Registration) error {
		inserted = reg
		return nil
	})
	s.publisher.EXPECT().PublishAccepted(gomock.Any(), gomock.Any()).Return(nil)

	receipt, err := s.service.Submit(s.ctx, validBody())
	s.Require().NoError(err)
	s.Require().NotNil(inserted)
	s.Equal(inserted.ID, receipt.ID)
	s.Equal(inserted.ReferenceNumber, receipt.ReferenceNumber)
	s.True(receipt.ReferenceNumber.Valid())
	s.Equal(s.now, inserted.CreatedAt)
	s.Equal(models.FormTypeAD01, inserted.FormType)
	s.InDelta(1, s.submissions(metrics.OutcomeAccepted), 0)
}

func (s *ServiceSuite) TestSubmit_ValidationFailureTouchesNothing() {
	body := validBody()
	delete(body, "guidanceRead")

	_, err := s.service.Submit(s.ctx, body)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	var failure *validation.Failure
	s.Require().ErrorAs(err, &failure)
	s.Equal([]validation.Violation{{Field: "guidanceRead", Reason: validation.ReasonRequired}}, failure.Violations)
	s.InDelta(1, s.submissions(metrics.OutcomeRejected), 0)
}

func (s *ServiceSuite) TestSubmit_RetriesAfterReferenceCollision() {
	gomock.InOrder(
		s.store.EXPECT().ExistsByReference(gomock.Any(), gomock.Any()).Return(true, nil),
		s.store.EXPECT().ExistsByReference(gomock.Any(), gomock.Any()).Return(false, nil),
		s.store.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil),
	)
	s.publisher.EXPECT().PublishAccepted(gomock.Any(), gomock.Any()).Return(nil)

	_, err := s.service.Submit(s.ctx, validBody())
	s.Require().NoError(err)
	s.InDelta(1, promtest.ToFloat64(s.metrics.ReferenceCollisions), 0)
}

func (s *ServiceSuite) TestSubmit_AllocationExhaustedAfterFiveChecks() {
	s.store.EXPECT().ExistsByReference(gomock.Any(), gomock.Any()).Return(true, nil).Times(5)

	_, err := s.service.Submit(s.ctx, validBody())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	s.ErrorIs(err, reference.ErrExhausted)
	s.InDelta(1, s.submissions(metrics.OutcomeExhausted), 0)
}

func (s *ServiceSuite) TestSubmit_DuplicateOnInsertRetriesWithFreshIdentity() {
	var attempts []*models.Registration
	s.store.EXPECT().ExistsByReference(gomock.Any(), gomock.Any()).Return(false, nil).Times(2)
	gomock.InOrder(
		s.store.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, reg *models.Registration) error {
			attempts = append(attempts, reg)
			return &store.DuplicateKeyError{Field: store.KeyReferenceNumber}
		}),
		s.store.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, reg *models.Registration) error {
			attempts = append(attempts, reg)
			return nil
		}),
	)
	s.publisher.EXPECT().PublishAccepted(gomock.Any(), gomock.Any()).Return(nil)

	receipt, err := s.service.Submit(s.ctx, validBody())
	s.Require().NoError(err)
	s.Require().Len(attempts, 2)
	s.NotEqual(attempts[0].ID, attempts[1].ID)
	s.Equal(attempts[1].ID, receipt.ID)
	s.InDelta(1, promtest.ToFloat64(s.metrics.InsertRetries), 0)
}

func (s *ServiceSuite) TestSubmit_InsertConflictsExhaust() {
	s.store.EXPECT().ExistsByReference(gomock.Any(), gomock.Any()).Return(false, nil).Times(service.MaxInsertAttempts)
	s.store.EXPECT().Insert(gomock.Any(), gomock.Any()).
		Return(&store.DuplicateKeyError{Field: store.KeyID}).Times(service.MaxInsertAttempts)

	_, err := s.service.Submit(s.ctx, validBody())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	s.ErrorIs(err, reference.ErrExhausted)
}

func (s *ServiceSuite) TestSubmit_StorageUnavailableOnInsert() {
	s.store.EXPECT().ExistsByReference(gomock.Any(), gomock.Any()).Return(false, nil)
	s.store.EXPECT().Insert(gomock.Any(), gomock.Any()).
		Return(fmt.Errorf("insert registration: %w: %w", sentinel.ErrUnavailable, errors.New("disk full")))

	_, err := s.service.Submit(s.ctx, validBody())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	s.ErrorIs(err, sentinel.ErrUnavailable)
	s.InDelta(1, s.submissions(metrics.OutcomeUnavailable), 0)
}

func (s *ServiceSuite) TestSubmit_StorageUnavailableOnCheck() {
	s.store.EXPECT().ExistsByReference(gomock.Any(), gomock.Any()).
		Return(false, fmt.Errorf("check reference: %w", sentinel.ErrUnavailable))

	_, err := s.service.Submit(s.ctx, validBody())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	s.NotErrorIs(err, reference.ErrExhausted)
}

func (s *ServiceSuite) TestSubmit_PublishFailureDoesNotFailSubmission() {
	s.store.EXPECT().ExistsByReference(gomock.Any(), gomock.Any()).Return(false, nil)
	s.store.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil)
	s.publisher.EXPECT().PublishAccepted(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))

	receipt, err := s.service.Submit(s.ctx, validBody())
	s.Require().NoError(err)
	s.NotNil(receipt)
}

func (s *ServiceSuite) TestSubmit_WithoutPublisher() {
	svc := service.New(s.store)
	s.store.EXPECT().ExistsByReference(gomock.Any(), gomock.Any()).Return(false, nil)
	s.store.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil)

	_, err := svc.Submit(s.ctx, validBody())
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestGet_MalformedIDSkipsStore() {
	for _, raw := range []string{"", "not-a-uuid", "{0b9e3c1e-7b53-4a53-9a70-2f1f0b6f3f11}"} {
		_, err := s.service.Get(s.ctx, raw)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound), "id %q", raw)
	}
}

func (s *ServiceSuite) TestGet_NotFound() {
	s.store.EXPECT().FindByID(gomock.Any(), gomock.Any()).Return(nil, store.ErrNotFound)

	_, err := s.service.Get(s.ctx, id.NewRegistrationID().String())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestGet_Unavailable() {
	s.store.EXPECT().FindByID(gomock.Any(), gomock.Any()).
		Return(nil, fmt.Errorf("find: %w", sentinel.ErrUnavailable))

	_, err := s.service.Get(s.ctx, id.NewRegistrationID().String())
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func (s *ServiceSuite) TestGet_Found() {
	regID := id.NewRegistrationID()
	want := &models.Registration{ID: regID, ReferenceNumber: "ABCD1234"}
	s.store.EXPECT().FindByID(gomock.Any(), regID).Return(want, nil)

	got, err := s.service.Get(s.ctx, regID.String())
	s.Require().NoError(err)
	s.Equal(want, got)
}

// TestSubmit_AgainstMemoryStore runs the workflow end to end on a real store:
// every accepted submission can be read back with the same reference.
func TestSubmit_AgainstMemoryStore(t *testing.T) {
	st := store.NewInMemory()
	svc := service.New(st)
	ctx := context.Background()
	seen := map[models.ReferenceCode]bool{}

	for range 50 {
		receipt, err := svc.Submit(ctx, validBody())
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		if seen[receipt.ReferenceNumber] {
			t.Fatalf("reference %s issued twice", receipt.ReferenceNumber)
		}
		seen[receipt.ReferenceNumber] = true

		got, err := svc.Get(ctx, receipt.ID.String())
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.ReferenceNumber != receipt.ReferenceNumber {
			t.Fatalf("reference mismatch %s != %s", got.ReferenceNumber, receipt.ReferenceNumber)
		}
	}
}
