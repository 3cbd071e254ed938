package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/hypecast/kolport/internal/models"
	"github.com/hypecast/kolport/internal/service"
)

func newInviteService(t *testing.T) (*service.InviteService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	svc := service.NewInviteService(db, &fakeAdmin{}, testLogger())
	return svc, db
}

func answersFor(t *testing.T, db *gorm.DB, jobID uint) []service.JoinAnswer {
	t.Helper()
	var questions []models.JobQuestion
	require.NoError(t, db.Where("job_id = ?", jobID).Find(&questions).Error)

	answers := make([]service.JoinAnswer, 0, len(questions))
	for _, q := range questions {
		answers = append(answers, service.JoinAnswer{QuestionID: q.ID, Answer: "yes"})
	}
	return answers
}

func TestJoinJob_HappyPath(t *testing.T) {
	svc, db := newInviteService(t)
	kol := seedKol(t, db, models.Kol{JobStats: models.KolJobStats{InviteCount: 1}})
	job, slot := seedJob(t, db, 1, "do you own the account?")
	invite := seedInvite(t, db, kol.ID, job.ID, 50000)

	kolJob, err := svc.JoinJob(context.Background(), kol.ID, invite.ID, service.JoinJobInput{
		TimeSlotID: slot.ID,
		Answers:    answersFor(t, db, job.ID),
	})
	require.NoError(t, err)

	assert.Equal(t, models.JobActive, kolJob.Status)
	assert.Equal(t, models.PostRaw, kolJob.Post.Status)
	assert.Equal(t, int64(50000), kolJob.Price)

	var inviteAfter models.Invite
	require.NoError(t, db.First(&inviteAfter, invite.ID).Error)
	assert.Equal(t, models.InviteJoin, inviteAfter.Status)

	assert.Equal(t, 1, reloadSlot(t, db, slot.ID).JoinCount)

	kolAfter := reloadKol(t, db, kol.ID)
	assert.Equal(t, 0, kolAfter.JobStats.InviteCount)
	assert.Equal(t, 1, kolAfter.JobStats.RunningCount)
	assert.Equal(t, int64(50000), kolAfter.Income.Pending, "agreed price enters the pending bucket")

	var jobHistory models.JobKolHistory
	require.NoError(t, db.Where("job_id = ? AND kol_id = ?", job.ID, kol.ID).First(&jobHistory).Error)
	assert.Equal(t, "kol_accepted_invite", jobHistory.Action)
}

func TestJoinJob_UnknownInvite(t *testing.T) {
	svc, db := newInviteService(t)
	kol := seedKol(t, db, models.Kol{})

	_, err := svc.JoinJob(context.Background(), kol.ID, 4242, service.JoinJobInput{TimeSlotID: 1})
	require.Error(t, err)
	assert.Equal(t, service.KindNotFound, service.KindOf(err))
}

func TestJoinJob_WrongOwner(t *testing.T) {
	svc, db := newInviteService(t)
	owner := seedKol(t, db, models.Kol{Email: "owner@example.com"})
	other := seedKol(t, db, models.Kol{Email: "other@example.com"})
	job, slot := seedJob(t, db, 1)
	invite := seedInvite(t, db, owner.ID, job.ID, 50000)

	_, err := svc.JoinJob(context.Background(), other.ID, invite.ID, service.JoinJobInput{TimeSlotID: slot.ID})
	require.Error(t, err)
	assert.Equal(t, service.CodeNotInviteOwner, service.CodeOf(err))
}

func TestJoinJob_AlreadyJoined(t *testing.T) {
	svc, db := newInviteService(t)
	kol := seedKol(t, db, models.Kol{JobStats: models.KolJobStats{InviteCount: 1}})
	job, slot := seedJob(t, db, 2)
	invite := seedInvite(t, db, kol.ID, job.ID, 50000)

	input := service.JoinJobInput{TimeSlotID: slot.ID}
	_, err := svc.JoinJob(context.Background(), kol.ID, invite.ID, input)
	require.NoError(t, err)

	_, err = svc.JoinJob(context.Background(), kol.ID, invite.ID, input)
	require.Error(t, err)
	assert.Equal(t, service.CodeInviteNotRaw, service.CodeOf(err))
}

func TestJoinJob_UnansweredQuestionFailsWholeCall(t *testing.T) {
	svc, db := newInviteService(t)
	kol := seedKol(t, db, models.Kol{JobStats: models.KolJobStats{InviteCount: 1}})
	job, slot := seedJob(t, db, 1, "first question", "second question")
	invite := seedInvite(t, db, kol.ID, job.ID, 50000)

	answers := answersFor(t, db, job.ID)[:1]
	_, err := svc.JoinJob(context.Background(), kol.ID, invite.ID, service.JoinJobInput{
		TimeSlotID: slot.ID,
		Answers:    answers,
	})
	require.Error(t, err)
	assert.Equal(t, service.CodeQuestionUnanswered, service.CodeOf(err))

	// Nothing moved.
	assert.Zero(t, reloadSlot(t, db, slot.ID).JoinCount)
	var kolJobCount int64
	require.NoError(t, db.Model(&models.KolJob{}).Count(&kolJobCount).Error)
	assert.Zero(t, kolJobCount)
	assert.Equal(t, 1, reloadKol(t, db, kol.ID).JobStats.InviteCount)
}

func TestJoinJob_UnknownSlot(t *testing.T) {
	svc, db := newInviteService(t)
	kol := seedKol(t, db, models.Kol{})
	job, _ := seedJob(t, db, 1)
	invite := seedInvite(t, db, kol.ID, job.ID, 50000)

	_, err := svc.JoinJob(context.Background(), kol.ID, invite.ID, service.JoinJobInput{TimeSlotID: 999})
	require.Error(t, err)
	assert.Equal(t, service.CodeSlotNotFound, service.CodeOf(err))
}

func TestJoinJob_FullSlotIsRejectedAndCounterUnchanged(t *testing.T) {
	svc, db := newInviteService(t)
	first := seedKol(t, db, models.Kol{Email: "first@example.com"})
	second := seedKol(t, db, models.Kol{Email: "second@example.com"})
	job, slot := seedJob(t, db, 1)
	firstInvite := seedInvite(t, db, first.ID, job.ID, 50000)
	secondInvite := seedInvite(t, db, second.ID, job.ID, 60000)

	// First joiner takes the last unit; the counter lands exactly on capacity.
	_, err := svc.JoinJob(context.Background(), first.ID, firstInvite.ID, service.JoinJobInput{TimeSlotID: slot.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, reloadSlot(t, db, slot.ID).JoinCount)

	_, err = svc.JoinJob(context.Background(), second.ID, secondInvite.ID, service.JoinJobInput{TimeSlotID: slot.ID})
	require.Error(t, err)
	assert.Equal(t, service.KindForbidden, service.KindOf(err))
	assert.Equal(t, service.CodeTimeEmpty, service.CodeOf(err))

	assert.Equal(t, 1, reloadSlot(t, db, slot.ID).JoinCount)

	var secondInviteAfter models.Invite
	require.NoError(t, db.First(&secondInviteAfter, secondInvite.ID).Error)
	assert.Equal(t, models.InviteRaw, secondInviteAfter.Status, "failed join leaves the invite raw")
}

func TestRejectInvite_RequiresReason(t *testing.T) {
	svc, db := newInviteService(t)
	kol := seedKol(t, db, models.Kol{})
	job, _ := seedJob(t, db, 1)
	invite := seedInvite(t, db, kol.ID, job.ID, 50000)

	_, err := svc.RejectInvite(context.Background(), kol.ID, invite.ID, "")
	require.Error(t, err)
	assert.Equal(t, service.CodeReasonRequired, service.CodeOf(err))
}

func TestRejectInvite_HappyPath(t *testing.T) {
	svc, db := newInviteService(t)
	kol := seedKol(t, db, models.Kol{JobStats: models.KolJobStats{InviteCount: 2}})
	job, _ := seedJob(t, db, 1)
	invite := seedInvite(t, db, kol.ID, job.ID, 50000)

	updated, err := svc.RejectInvite(context.Background(), kol.ID, invite.ID, "rates too low")
	require.NoError(t, err)
	assert.Equal(t, models.InviteReject, updated.Status)

	assert.Equal(t, 1, reloadKol(t, db, kol.ID).JobStats.InviteCount)

	var history models.InviteHistory
	require.NoError(t, db.Where("invite_id = ?", invite.ID).First(&history).Error)
	assert.Equal(t, "rates too low", history.Reason)

	// Terminal: a second decision is refused.
	_, err = svc.RejectInvite(context.Background(), kol.ID, invite.ID, "still no")
	require.Error(t, err)
	assert.Equal(t, service.CodeInviteNotRaw, service.CodeOf(err))
}

func TestRejectInvite_InviteCountFloorsAtZero(t *testing.T) {
	svc, db := newInviteService(t)
	kol := seedKol(t, db, models.Kol{})
	job, _ := seedJob(t, db, 1)
	invite := seedInvite(t, db, kol.ID, job.ID, 50000)

	_, err := svc.RejectInvite(context.Background(), kol.ID, invite.ID, "no time")
	require.NoError(t, err)
	assert.Zero(t, reloadKol(t, db, kol.ID).JobStats.InviteCount)
}
