package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"docplain/internal/store"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return &Store{db: db}, mock
}

func jobRows(jobs ...*store.Job) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "document_ref", "state", "current_step_index", "target_language",
		"attempt", "cancel_requested", "error_kind", "error_message",
		"created_at", "started_at", "completed_at",
	})
	for _, j := range jobs {
		rows.AddRow(j.ID, j.DocumentRef, j.State, j.CurrentStepIndex, j.TargetLanguage,
			j.Attempt, j.CancelRequested, j.ErrorKind, j.ErrorMessage,
			j.CreatedAt, j.StartedAt, j.CompletedAt)
	}
	return rows
}

func TestCreateJob(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	lang := "de"
	job := &store.Job{
		ID:             uuid.New(),
		DocumentRef:    "s3://bucket/report.pdf",
		TargetLanguage: &lang,
		CreatedAt:      time.Now(),
	}

	mock.ExpectExec(`INSERT INTO jobs`).
		WithArgs(job.ID, job.DocumentRef, store.JobStateQueued, job.TargetLanguage, job.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.CreateJob(context.Background(), nil, job); err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestGetJobByID_NotFound(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	id := uuid.New()
	mock.ExpectQuery(`SELECT .* FROM jobs WHERE id`).
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetJobByID(context.Background(), id)
	if err != sql.ErrNoRows {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestClaimBatch_Success(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	job1 := &store.Job{ID: uuid.New(), DocumentRef: "doc1", State: store.JobStateQueued, CreatedAt: time.Now()}
	job2 := &store.Job{ID: uuid.New(), DocumentRef: "doc2", State: store.JobStateQueued, CreatedAt: time.Now()}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM jobs .* FOR UPDATE SKIP LOCKED`).
		WithArgs(store.JobStateQueued, 5).
		WillReturnRows(jobRows(job1, job2))
	mock.ExpectExec(`UPDATE jobs`).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	claimed, err := s.ClaimBatch(context.Background(), 5)
	if err != nil {
		t.Fatalf("ClaimBatch failed: %v", err)
	}
	if len(claimed) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(claimed))
	}
	for _, j := range claimed {
		if j.State != store.JobStateRunning {
			t.Errorf("job %s state = %v, want RUNNING", j.ID, j.State)
		}
		if j.Attempt != 1 {
			t.Errorf("job %s attempt = %d, want 1", j.ID, j.Attempt)
		}
		if j.StartedAt == nil {
			t.Errorf("job %s has no started_at", j.ID)
		}
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestClaimBatch_ClaimableQueryStructure(t *testing.T) {
	// Verify the generated SQL keeps the visibility window and FIFO ordering.
	s, mock := newMockStore(t)
	defer s.db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM jobs\s+WHERE state = \$1 AND visible_after <= NOW\(\)\s+ORDER BY created_at ASC\s+FOR UPDATE SKIP LOCKED`).
		WithArgs(store.JobStateQueued, 1).
		WillReturnRows(jobRows())
	mock.ExpectRollback()

	jobs, err := s.ClaimBatch(context.Background(), 1)
	if err != nil {
		t.Fatalf("ClaimBatch failed: %v", err)
	}
	if len(jobs) != 0 {
		t.Errorf("expected 0 jobs, got %d", len(jobs))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestClaimBatch_LimitDefaultsToOne(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM jobs`).
		WithArgs(store.JobStateQueued, 1).
		WillReturnRows(jobRows())
	mock.ExpectRollback()

	if _, err := s.ClaimBatch(context.Background(), 0); err != nil {
		t.Fatalf("ClaimBatch failed: %v", err)
	}
}

func TestComplete_Success(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	jobID := uuid.New()
	mock.ExpectExec(`UPDATE jobs`).
		WithArgs(store.JobStateCompleted, jobID, store.JobStateRunning).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.Complete(context.Background(), nil, jobID); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
}

func TestComplete_NotRunning(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	jobID := uuid.New()
	// Guard clause matched no rows: job already terminal or claimed elsewhere.
	mock.ExpectExec(`UPDATE jobs`).
		WithArgs(store.JobStateCompleted, jobID, store.JobStateRunning).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := s.Complete(context.Background(), nil, jobID); err == nil {
		t.Error("expected error when job is not RUNNING")
	}
}

func TestFail_RetryableRequeuesWithBackoff(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	jobID := uuid.New()
	attempt := 2 // below MaxAttempts

	mock.ExpectQuery(`SELECT attempt FROM jobs`).
		WithArgs(jobID, store.JobStateRunning).
		WillReturnRows(sqlmock.NewRows([]string{"attempt"}).AddRow(attempt))

	// Exponential backoff: 10 * 2^2 = 40 seconds.
	expectedBackoff := (BackoffBase * (1 << attempt)).Seconds()
	mock.ExpectExec(`UPDATE jobs`).
		WithArgs(store.JobStateQueued, expectedBackoff, "model", "status 503", jobID, store.JobStateRunning).
		WillReturnResult(sqlmock.NewResult(0, 1))

	requeued, err := s.Fail(context.Background(), nil, jobID, "model", "status 503", true)
	if err != nil {
		t.Fatalf("Fail failed: %v", err)
	}
	if !requeued {
		t.Error("expected job to be requeued")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestFail_BudgetExhaustedIsTerminal(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	jobID := uuid.New()

	mock.ExpectQuery(`SELECT attempt FROM jobs`).
		WithArgs(jobID, store.JobStateRunning).
		WillReturnRows(sqlmock.NewRows([]string{"attempt"}).AddRow(MaxAttempts))

	mock.ExpectExec(`UPDATE jobs`).
		WithArgs(store.JobStateFailed, "model", "still down", jobID, store.JobStateRunning).
		WillReturnResult(sqlmock.NewResult(0, 1))

	requeued, err := s.Fail(context.Background(), nil, jobID, "model", "still down", true)
	if err != nil {
		t.Fatalf("Fail failed: %v", err)
	}
	if requeued {
		t.Error("expected terminal failure after attempt budget")
	}
}

func TestFail_NonRetryableIsTerminal(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	jobID := uuid.New()

	mock.ExpectQuery(`SELECT attempt FROM jobs`).
		WithArgs(jobID, store.JobStateRunning).
		WillReturnRows(sqlmock.NewRows([]string{"attempt"}).AddRow(1))

	mock.ExpectExec(`UPDATE jobs`).
		WithArgs(store.JobStateFailed, "validation", "label not allowed", jobID, store.JobStateRunning).
		WillReturnResult(sqlmock.NewResult(0, 1))

	requeued, err := s.Fail(context.Background(), nil, jobID, "validation", "label not allowed", false)
	if err != nil {
		t.Fatalf("Fail failed: %v", err)
	}
	if requeued {
		t.Error("non-retryable failure must not be requeued")
	}
}

func TestFail_JobNotRunning(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	jobID := uuid.New()
	mock.ExpectQuery(`SELECT attempt FROM jobs`).
		WithArgs(jobID, store.JobStateRunning).
		WillReturnError(sql.ErrNoRows)

	if _, err := s.Fail(context.Background(), nil, jobID, "model", "x", true); err == nil {
		t.Error("expected error when job is not RUNNING")
	}
}

func TestMarkTimeout(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	jobID := uuid.New()
	mock.ExpectExec(`UPDATE jobs`).
		WithArgs(store.JobStateTimeout, "job exceeded 15m0s ceiling", jobID, store.JobStateRunning).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.MarkTimeout(context.Background(), nil, jobID, "job exceeded 15m0s ceiling"); err != nil {
		t.Fatalf("MarkTimeout failed: %v", err)
	}
}

func TestRequestCancel_QueuedJobCancelledImmediately(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	jobID := uuid.New()
	mock.ExpectExec(`UPDATE jobs`).
		WithArgs(store.JobStateCancelled, jobID, store.JobStateQueued).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := s.RequestCancel(context.Background(), jobID)
	if err != nil {
		t.Fatalf("RequestCancel failed: %v", err)
	}
	if !ok {
		t.Error("expected cancellation to be accepted")
	}
}

func TestRequestCancel_RunningJobFlagged(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	jobID := uuid.New()
	// Not QUEUED, so the first update matches nothing.
	mock.ExpectExec(`UPDATE jobs`).
		WithArgs(store.JobStateCancelled, jobID, store.JobStateQueued).
		WillReturnResult(sqlmock.NewResult(0, 0))
	// Falls through to flagging the RUNNING job.
	mock.ExpectExec(`UPDATE jobs`).
		WithArgs(jobID, store.JobStateRunning).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := s.RequestCancel(context.Background(), jobID)
	if err != nil {
		t.Fatalf("RequestCancel failed: %v", err)
	}
	if !ok {
		t.Error("expected RUNNING job to accept the cancel flag")
	}
}

func TestRequestCancel_TerminalJobRejected(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	jobID := uuid.New()
	mock.ExpectExec(`UPDATE jobs`).
		WithArgs(store.JobStateCancelled, jobID, store.JobStateQueued).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`UPDATE jobs`).
		WithArgs(jobID, store.JobStateRunning).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := s.RequestCancel(context.Background(), jobID)
	if err != nil {
		t.Fatalf("RequestCancel failed: %v", err)
	}
	if ok {
		t.Error("terminal job must reject cancellation")
	}
}

func TestCountQueued(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM jobs`).
		WithArgs(store.JobStateQueued).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := s.CountQueued(context.Background())
	if err != nil {
		t.Fatalf("CountQueued failed: %v", err)
	}
	if count != 7 {
		t.Errorf("count = %d, want 7", count)
	}
}
