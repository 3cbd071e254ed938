package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/hypecast/kolport/internal/models"
	"github.com/hypecast/kolport/internal/service"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	// A single connection keeps every session on the same in-memory database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, service.Migrate(db))
	return db
}

type sentMail struct {
	CauserID    uint
	RecipientID uint
	Kind        models.MailKind
	Params      map[string]any
}

// fakeGateway stands in for the AMQP mailer. With Fail set it refuses every
// dispatch, which must roll back any transition it gates.
type fakeGateway struct {
	mu   sync.Mutex
	Fail bool
	Sent []sentMail
}

func (g *fakeGateway) Send(_ context.Context, tx *gorm.DB, causerID, recipientID uint, kind models.MailKind, params map[string]any) (*service.DispatchReceipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.Fail {
		return nil, errors.New("mail relay unavailable")
	}

	messageID := fmt.Sprintf("msg-%d", len(g.Sent)+1)
	dispatch := models.MailDispatch{
		MessageID:   messageID,
		CauserID:    causerID,
		RecipientID: recipientID,
		Kind:        kind,
		Params:      "{}",
	}
	if err := tx.Create(&dispatch).Error; err != nil {
		return nil, err
	}

	g.Sent = append(g.Sent, sentMail{
		CauserID:    causerID,
		RecipientID: recipientID,
		Kind:        kind,
		Params:      params,
	})
	return &service.DispatchReceipt{MessageID: messageID}, nil
}

func (g *fakeGateway) LastKind() models.MailKind {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.Sent) == 0 {
		return ""
	}
	return g.Sent[len(g.Sent)-1].Kind
}

type fakeAdmin struct {
	mu       sync.Mutex
	Messages []string
}

func (a *fakeAdmin) PushAdminNotify(_ context.Context, message, _ string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Messages = append(a.Messages, message)
}

var kolSeq atomic.Uint64

func seedKol(t *testing.T, db *gorm.DB, kol models.Kol) models.Kol {
	t.Helper()
	if kol.Name == "" {
		kol.Name = "kol"
	}
	if kol.Email == "" {
		kol.Email = fmt.Sprintf("kol-%d@example.com", kolSeq.Add(1))
	}
	require.NoError(t, db.Create(&kol).Error)
	return kol
}

func seedJob(t *testing.T, db *gorm.DB, capacity int, questions ...string) (models.Job, models.TimeSlot) {
	t.Helper()
	job := models.Job{Title: "spring campaign", Brand: "acme"}
	require.NoError(t, db.Create(&job).Error)

	slot := models.TimeSlot{JobID: job.ID, CapacityLimit: capacity}
	require.NoError(t, db.Create(&slot).Error)

	for _, text := range questions {
		q := models.JobQuestion{JobID: job.ID, Text: text}
		require.NoError(t, db.Create(&q).Error)
	}
	return job, slot
}

func seedInvite(t *testing.T, db *gorm.DB, kolID, jobID uint, price int64) models.Invite {
	t.Helper()
	invite := models.Invite{KolID: kolID, JobID: jobID, Price: price}
	require.NoError(t, db.Create(&invite).Error)
	return invite
}

func seedKolJob(t *testing.T, db *gorm.DB, kj models.KolJob) models.KolJob {
	t.Helper()
	if kj.Status == "" {
		kj.Status = models.JobActive
	}
	if kj.Post.Status == "" {
		kj.Post.Status = models.PostRaw
	}
	require.NoError(t, db.Create(&kj).Error)
	return kj
}

func reloadKol(t *testing.T, db *gorm.DB, id uint) models.Kol {
	t.Helper()
	var kol models.Kol
	require.NoError(t, db.First(&kol, id).Error)
	return kol
}

func reloadKolJob(t *testing.T, db *gorm.DB, id uint) models.KolJob {
	t.Helper()
	var kj models.KolJob
	require.NoError(t, db.First(&kj, id).Error)
	return kj
}

func reloadSlot(t *testing.T, db *gorm.DB, id uint) models.TimeSlot {
	t.Helper()
	var slot models.TimeSlot
	require.NoError(t, db.First(&slot, id).Error)
	return slot
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}
