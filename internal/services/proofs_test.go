package services_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	stdmultipart "mime/multipart"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LucsL0pes/mini-gymatch/internal/classifier"
	"github.com/LucsL0pes/mini-gymatch/internal/models"
	"github.com/LucsL0pes/mini-gymatch/internal/services"
	"github.com/LucsL0pes/mini-gymatch/internal/utils"
)

type fakeRepo struct {
	records map[string]*models.ProofRecord
	nextID  int
	upserts int
	updates int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: make(map[string]*models.ProofRecord)}
}

func (r *fakeRepo) UpsertByUser(_ context.Context, userID string, fields models.ProofFields) (*models.ProofRecord, error) {
	r.upserts++

	record, ok := r.records[userID]
	if !ok {
		r.nextID++
		record = &models.ProofRecord{
			ID:        fmt.Sprintf("rec-%d", r.nextID),
			UserID:    userID,
			CreatedAt: time.Now(),
		}
		r.records[userID] = record
	}

	record.Status = fields.Status
	record.Reason = fields.Reason
	record.FileURL = fields.FileURL
	record.OcrText = fields.OcrText
	record.UpdatedAt = time.Now()

	copied := *record
	return &copied, nil
}

func (r *fakeRepo) UpdateDecisionByUser(_ context.Context, userID, status string, reason, ocrText *string) error {
	r.updates++

	record, ok := r.records[userID]
	if !ok {
		return errors.New("no record for user")
	}
	record.Status = status
	record.Reason = reason
	record.OcrText = ocrText
	record.UpdatedAt = time.Now()
	return nil
}

func (r *fakeRepo) FindByUser(_ context.Context, userID string) (*models.ProofRecord, error) {
	record, ok := r.records[userID]
	if !ok {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

type fakeStorage struct {
	puts    int
	lastKey string
}

func (s *fakeStorage) Put(_ context.Context, key string, _ []byte, _ string) (string, error) {
	s.puts++
	s.lastKey = key
	return s.PublicURL(key), nil
}

func (s *fakeStorage) PublicURL(key string) string {
	return "https://cdn.test/proofs/" + key
}

type fakeClassifier struct {
	verdict *classifier.Verdict
	err     error
	calls   int
}

func (c *fakeClassifier) Classify(ctx context.Context, _ []byte, _, _ string) (*classifier.Verdict, error) {
	c.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.err != nil {
		return nil, c.err
	}
	return c.verdict, nil
}

func newTestService(repo *fakeRepo, store *fakeStorage, cl *fakeClassifier) services.ProofService {
	logger := &utils.Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	return services.NewProofService(repo, store, cl, logger)
}

func buildProofBody(t *testing.T, filename, contentType string, data []byte) ([]byte, string) {
	t.Helper()

	var buf bytes.Buffer
	w := stdmultipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	return buf.Bytes(), w.FormDataContentType()
}

func TestSubmitProof_Approved(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	store := &fakeStorage{}
	confidence := 0.87
	cl := &fakeClassifier{verdict: &classifier.Verdict{
		Approved:        true,
		MatchedKeywords: []string{"academia", "matrícula"},
		Confidence:      &confidence,
	}}
	svc := newTestService(repo, store, cl)

	body, contentType := buildProofBody(t, "matricula.jpg", "image/jpeg", bytes.Repeat([]byte{0xAB}, 2<<20))

	resp, err := svc.SubmitProof(context.Background(), "user-1", body, contentType)
	require.NoError(t, err)

	assert.Equal(t, models.StatusApproved, resp.Status)
	require.NotNil(t, resp.Reason)
	assert.Contains(t, *resp.Reason, "academia, matrícula")
	assert.Contains(t, *resp.Reason, "87%")
	require.NotNil(t, resp.FileURL)
	assert.True(t, strings.HasPrefix(*resp.FileURL, "https://cdn.test/proofs/user-1/"), "got %s", *resp.FileURL)

	record := repo.records["user-1"]
	require.NotNil(t, record)
	assert.Equal(t, models.StatusApproved, record.Status)
	require.NotNil(t, record.OcrText)
	assert.Equal(t, "academia, matrícula", *record.OcrText)
	assert.Equal(t, 1, store.puts)
	assert.Equal(t, 1, cl.calls)
}

func TestSubmitProof_ResubmissionKeepsOneRecord(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	store := &fakeStorage{}
	cl := &fakeClassifier{verdict: &classifier.Verdict{Approved: false}}
	svc := newTestService(repo, store, cl)

	body, contentType := buildProofBody(t, "a.jpg", "image/jpeg", []byte("first"))
	_, err := svc.SubmitProof(context.Background(), "user-1", body, contentType)
	require.NoError(t, err)

	firstID := repo.records["user-1"].ID

	cl.verdict = &classifier.Verdict{Approved: true}
	body, contentType = buildProofBody(t, "b.jpg", "image/jpeg", []byte("second"))
	resp, err := svc.SubmitProof(context.Background(), "user-1", body, contentType)
	require.NoError(t, err)

	assert.Equal(t, models.StatusApproved, resp.Status)
	assert.Len(t, repo.records, 1)
	assert.Equal(t, firstID, repo.records["user-1"].ID)
	assert.Equal(t, 2, repo.upserts)
}

func TestSubmitProof_ClassifierDisabled(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	cl := &fakeClassifier{err: classifier.ErrDisabled}
	svc := newTestService(repo, &fakeStorage{}, cl)

	body, contentType := buildProofBody(t, "a.jpg", "image/jpeg", []byte("img"))
	resp, err := svc.SubmitProof(context.Background(), "user-1", body, contentType)
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, resp.Status)
	require.NotNil(t, resp.Reason)
	assert.Contains(t, *resp.Reason, "validation is currently disabled")

	record := repo.records["user-1"]
	assert.Equal(t, models.StatusPending, record.Status)
	assert.Equal(t, resp.Reason, record.Reason)
}

func TestSubmitProof_ClassifierFailureDegradesToPending(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	cl := &fakeClassifier{err: errors.New("connection refused")}
	svc := newTestService(repo, &fakeStorage{}, cl)

	body, contentType := buildProofBody(t, "a.jpg", "image/jpeg", []byte("img"))
	resp, err := svc.SubmitProof(context.Background(), "user-1", body, contentType)

	// The submission itself succeeded; the error must not propagate.
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, resp.Status)
	require.NotNil(t, resp.Reason)
	assert.Contains(t, *resp.Reason, "error occurred during automatic validation")

	record := repo.records["user-1"]
	assert.Equal(t, models.StatusPending, record.Status)
}

func TestSubmitProof_PolicyRejectionLeavesNoRecord(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		filename    string
		contentType string
		data        []byte
		wantMessage string
	}{
		{
			name:        "unsupported type",
			filename:    "a.bmp",
			contentType: "image/bmp",
			data:        []byte("bitmap"),
			wantMessage: "unsupported file type",
		},
		{
			name:        "empty file",
			filename:    "a.jpg",
			contentType: "image/jpeg",
			data:        nil,
			wantMessage: "file is empty",
		},
		{
			name:        "oversized file",
			filename:    "a.jpg",
			contentType: "image/jpeg",
			data:        bytes.Repeat([]byte{0x01}, 7<<20),
			wantMessage: "file too large (limit 6MB)",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := newFakeRepo()
			store := &fakeStorage{}
			cl := &fakeClassifier{verdict: &classifier.Verdict{Approved: true}}
			svc := newTestService(repo, store, cl)

			body, contentType := buildProofBody(t, tt.filename, tt.contentType, tt.data)
			_, err := svc.SubmitProof(context.Background(), "user-1", body, contentType)

			var appErr *utils.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, 400, appErr.StatusCode)
			assert.Equal(t, tt.wantMessage, appErr.Message)

			assert.Empty(t, repo.records)
			assert.Zero(t, store.puts)
			assert.Zero(t, cl.calls)
		})
	}
}

func TestSubmitProof_MalformedBody(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	svc := newTestService(repo, &fakeStorage{}, &fakeClassifier{})

	_, err := svc.SubmitProof(context.Background(), "user-1", []byte("not multipart"), "application/json")

	var appErr *utils.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 400, appErr.StatusCode)
	assert.Empty(t, repo.records)
}

func TestSubmitProof_MissingFileField(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	svc := newTestService(repo, &fakeStorage{}, &fakeClassifier{})

	var buf bytes.Buffer
	w := stdmultipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("caption", "no file here"))
	require.NoError(t, w.Close())

	_, err := svc.SubmitProof(context.Background(), "user-1", buf.Bytes(), w.FormDataContentType())

	var appErr *utils.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "missing file field", appErr.Message)
	assert.Empty(t, repo.records)
}

func TestSubmitProof_FinishesWhenCallerDisconnects(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	cl := &fakeClassifier{verdict: &classifier.Verdict{Approved: true}}
	svc := newTestService(repo, &fakeStorage{}, cl)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	body, contentType := buildProofBody(t, "a.jpg", "image/jpeg", []byte("img"))
	resp, err := svc.SubmitProof(ctx, "user-1", body, contentType)

	// The fake classifier fails on a canceled context, so reaching an
	// approved status proves classification ran detached from the request.
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, resp.Status)
	assert.Equal(t, models.StatusApproved, repo.records["user-1"].Status)
}

func TestProofStatus(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	svc := newTestService(repo, &fakeStorage{}, &fakeClassifier{})

	resp, err := svc.ProofStatus(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusNotSubmitted, resp.Status)
	assert.Nil(t, resp.Reason)
	assert.Nil(t, resp.CreatedAt)

	reason := "Matched keywords: academia."
	fileURL := "https://cdn.test/proofs/user-1/x.jpg"
	_, err = repo.UpsertByUser(context.Background(), "user-1", models.ProofFields{
		Status:  models.StatusApproved,
		Reason:  &reason,
		FileURL: &fileURL,
	})
	require.NoError(t, err)

	resp, err = svc.ProofStatus(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, resp.Status)
	require.NotNil(t, resp.Reason)
	assert.Equal(t, reason, *resp.Reason)
	require.NotNil(t, resp.FileURL)
	assert.Equal(t, fileURL, *resp.FileURL)
	require.NotNil(t, resp.UpdatedAt)
}
