package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/hypecast/kolport/internal/config"
	"github.com/hypecast/kolport/internal/models"
	"github.com/hypecast/kolport/internal/service"
)

func newPaymentService(t *testing.T) (*service.PaymentService, *gorm.DB, *fakeGateway) {
	t.Helper()
	db := newTestDB(t)
	gateway := &fakeGateway{}
	cfg := &config.PaymentConfig{MinPayout: 100000}
	svc := service.NewPaymentService(db, cfg, gateway, &fakeAdmin{}, testLogger())
	return svc, db, gateway
}

func TestCreateRequestPayment_SnapshotsAndZeroesApproved(t *testing.T) {
	svc, db, gateway := newPaymentService(t)
	kol := seedKol(t, db, models.Kol{Income: models.KolIncome{Approved: 150000}})

	request, err := svc.CreateRequestPayment(context.Background(), kol.ID)
	require.NoError(t, err)

	assert.Equal(t, models.PaymentRequestRaw, request.Status)
	assert.Equal(t, int64(150000), request.Price)

	after := reloadKol(t, db, kol.ID)
	assert.Zero(t, after.Income.Approved, "approved is withdrawn at request time")

	var action models.HistoryAction
	require.NoError(t, db.Where("kol_id = ?", kol.ID).First(&action).Error)
	assert.Equal(t, "payout_requested", action.Action)
	require.NotNil(t, action.PaymentRequestID)
	assert.Equal(t, request.ID, *action.PaymentRequestID)

	assert.Equal(t, models.MailPayoutRequested, gateway.LastKind())
}

func TestCreateRequestPayment_BelowThreshold(t *testing.T) {
	svc, db, _ := newPaymentService(t)
	kol := seedKol(t, db, models.Kol{Income: models.KolIncome{Approved: 100000}})

	// The balance must strictly exceed the minimum.
	_, err := svc.CreateRequestPayment(context.Background(), kol.ID)
	require.Error(t, err)
	assert.Equal(t, service.KindForbidden, service.KindOf(err))
	assert.Equal(t, service.CodeBelowThreshold, service.CodeOf(err))

	assert.Equal(t, int64(100000), reloadKol(t, db, kol.ID).Income.Approved)
}

func TestCreateRequestPayment_SecondRawRequestForbidden(t *testing.T) {
	svc, db, _ := newPaymentService(t)
	kol := seedKol(t, db, models.Kol{Income: models.KolIncome{Approved: 150000}})

	_, err := svc.CreateRequestPayment(context.Background(), kol.ID)
	require.NoError(t, err)

	// Refill the balance; the pending request still blocks a new one.
	require.NoError(t, db.Model(&models.Kol{}).Where("id = ?", kol.ID).
		Update("income_approved", 500000).Error)

	_, err = svc.CreateRequestPayment(context.Background(), kol.ID)
	require.Error(t, err)
	assert.Equal(t, service.CodePayoutPending, service.CodeOf(err))
}

func TestCreateRequestPayment_MailIsBestEffort(t *testing.T) {
	svc, db, gateway := newPaymentService(t)
	gateway.Fail = true
	kol := seedKol(t, db, models.Kol{Income: models.KolIncome{Approved: 150000}})

	request, err := svc.CreateRequestPayment(context.Background(), kol.ID)
	require.NoError(t, err, "a failed KOL mail does not fail the request")
	assert.Equal(t, models.PaymentRequestRaw, request.Status)
	assert.Zero(t, reloadKol(t, db, kol.ID).Income.Approved)
}

func TestAcceptRequest_SettlesWithoutLedgerChange(t *testing.T) {
	svc, db, gateway := newPaymentService(t)
	kol := seedKol(t, db, models.Kol{Income: models.KolIncome{Approved: 150000}})

	request, err := svc.CreateRequestPayment(context.Background(), kol.ID)
	require.NoError(t, err)

	accepted, err := svc.AcceptRequest(context.Background(), causerID, request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentRequestAccept, accepted.Status)
	assert.Equal(t, models.MailPayoutAccepted, gateway.LastKind())

	assert.Zero(t, reloadKol(t, db, kol.ID).Income.Approved, "balance was already withdrawn at request time")
}

func TestRejectRequest_RestoresSnapshot(t *testing.T) {
	svc, db, gateway := newPaymentService(t)
	kol := seedKol(t, db, models.Kol{Income: models.KolIncome{Approved: 150000}})

	request, err := svc.CreateRequestPayment(context.Background(), kol.ID)
	require.NoError(t, err)
	assert.Zero(t, reloadKol(t, db, kol.ID).Income.Approved)

	rejected, err := svc.RejectRequest(context.Background(), causerID, request.ID, "fraud")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentRequestReject, rejected.Status)
	assert.Equal(t, "fraud", rejected.Reason)
	assert.Equal(t, models.MailPayoutRejected, gateway.LastKind())

	assert.Equal(t, int64(150000), reloadKol(t, db, kol.ID).Income.Approved)
}

func TestRejectRequest_RestoreIsAdditive(t *testing.T) {
	svc, db, _ := newPaymentService(t)
	kol := seedKol(t, db, models.Kol{Income: models.KolIncome{Approved: 150000}})

	request, err := svc.CreateRequestPayment(context.Background(), kol.ID)
	require.NoError(t, err)

	// New income approved while the request awaited review.
	require.NoError(t, db.Model(&models.Kol{}).Where("id = ?", kol.ID).
		Update("income_approved", 20000).Error)

	_, err = svc.RejectRequest(context.Background(), causerID, request.ID, "incomplete bank details")
	require.NoError(t, err)

	assert.Equal(t, int64(170000), reloadKol(t, db, kol.ID).Income.Approved,
		"snapshot is added back, income earned meanwhile is kept")
}

func TestRejectRequest_RequiresReason(t *testing.T) {
	svc, db, _ := newPaymentService(t)
	kol := seedKol(t, db, models.Kol{Income: models.KolIncome{Approved: 150000}})
	request, err := svc.CreateRequestPayment(context.Background(), kol.ID)
	require.NoError(t, err)

	_, err = svc.RejectRequest(context.Background(), causerID, request.ID, "")
	require.Error(t, err)
	assert.Equal(t, service.CodeReasonRequired, service.CodeOf(err))
}

func TestAcceptRequest_NonRawIsForbidden(t *testing.T) {
	svc, db, _ := newPaymentService(t)
	kol := seedKol(t, db, models.Kol{Income: models.KolIncome{Approved: 150000}})
	request, err := svc.CreateRequestPayment(context.Background(), kol.ID)
	require.NoError(t, err)

	_, err = svc.AcceptRequest(context.Background(), causerID, request.ID)
	require.NoError(t, err)

	_, err = svc.AcceptRequest(context.Background(), causerID, request.ID)
	require.Error(t, err)
	assert.Equal(t, service.CodeStateNotAllowed, service.CodeOf(err))

	_, err = svc.RejectRequest(context.Background(), causerID, request.ID, "too late")
	require.Error(t, err)
	assert.Equal(t, service.CodeStateNotAllowed, service.CodeOf(err))
}

func TestRejectRequest_GatewayFailureRollsBack(t *testing.T) {
	svc, db, gateway := newPaymentService(t)
	kol := seedKol(t, db, models.Kol{Income: models.KolIncome{Approved: 150000}})
	request, err := svc.CreateRequestPayment(context.Background(), kol.ID)
	require.NoError(t, err)

	gateway.Fail = true
	_, err = svc.RejectRequest(context.Background(), causerID, request.ID, "fraud")
	require.Error(t, err)
	assert.Equal(t, service.KindInternal, service.KindOf(err))

	var after models.PaymentRequest
	require.NoError(t, db.First(&after, request.ID).Error)
	assert.Equal(t, models.PaymentRequestRaw, after.Status, "request stays raw when the mail fails")
	assert.Zero(t, reloadKol(t, db, kol.ID).Income.Approved, "no restore without a confirmed notification")
}

func TestAcceptRequest_MissingRequest(t *testing.T) {
	svc, _, _ := newPaymentService(t)

	_, err := svc.AcceptRequest(context.Background(), causerID, 404)
	require.Error(t, err)
	assert.Equal(t, service.KindNotFound, service.KindOf(err))
	assert.Equal(t, service.CodeRequestNotFound, service.CodeOf(err))
}

func TestCountPendingRequests(t *testing.T) {
	svc, db, _ := newPaymentService(t)
	a := seedKol(t, db, models.Kol{Email: "a@example.com", Income: models.KolIncome{Approved: 150000}})
	b := seedKol(t, db, models.Kol{Email: "b@example.com", Income: models.KolIncome{Approved: 200000}})

	_, err := svc.CreateRequestPayment(context.Background(), a.ID)
	require.NoError(t, err)
	reqB, err := svc.CreateRequestPayment(context.Background(), b.ID)
	require.NoError(t, err)

	count, err := svc.CountPendingRequests(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	_, err = svc.AcceptRequest(context.Background(), causerID, reqB.ID)
	require.NoError(t, err)

	count, err = svc.CountPendingRequests(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
