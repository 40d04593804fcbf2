package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/LucsL0pes/mini-gymatch/internal/classifier"
	"github.com/LucsL0pes/mini-gymatch/internal/models"
	"github.com/LucsL0pes/mini-gymatch/internal/multipart"
	"github.com/LucsL0pes/mini-gymatch/internal/repository"
	"github.com/LucsL0pes/mini-gymatch/internal/storage"
	"github.com/LucsL0pes/mini-gymatch/internal/upload"
	"github.com/LucsL0pes/mini-gymatch/internal/utils"
)

// FileField is the multipart field carrying the proof image.
const FileField = "file"

const (
	reasonValidationDisabled = "Proof received. Automatic validation is currently disabled; your submission will be reviewed manually soon."
	reasonValidationFailed   = "Proof received, but an error occurred during automatic validation. Our team will review it manually."
)

type ProofService interface {
	// SubmitProof runs the full pipeline: decode, validate, store, classify,
	// finalize. Classification failures never fail the submission.
	SubmitProof(ctx context.Context, userID string, body []byte, contentType string) (*models.ProofResponse, error)
	ProofStatus(ctx context.Context, userID string) (*models.ProofStatusResponse, error)
}

type proofService struct {
	repo       repository.ProofRepository
	storage    storage.Storage
	classifier classifier.Classifier
	logger     *utils.Logger
}

func NewProofService(repo repository.ProofRepository, store storage.Storage, cl classifier.Classifier, logger *utils.Logger) ProofService {
	return &proofService{
		repo:       repo,
		storage:    store,
		classifier: cl,
		logger:     logger,
	}
}

func (s *proofService) SubmitProof(ctx context.Context, userID string, body []byte, contentType string) (*models.ProofResponse, error) {
	form, err := multipart.Decode(body, contentType)
	if err != nil {
		return nil, utils.NewBadRequestError(err.Error())
	}

	file, ok := form.Files[FileField]
	if !ok {
		return nil, utils.NewBadRequestError("missing file field")
	}

	if err := upload.Accept(file); err != nil {
		s.logger.Warn("Proof upload rejected", "user_id", userID, "reason", err.Error(),
			"content_type", file.ContentType, "size", file.Size)
		return nil, utils.NewBadRequestError(err.Error())
	}

	mime := strings.ToLower(file.ContentType)
	key := upload.StorageKey(userID, file.Filename, time.Now())

	publicURL, err := s.storage.Put(ctx, key, file.Data, mime)
	if err != nil {
		s.logger.Error("Failed to store proof file", "error", err, "user_id", userID, "key", key)
		return nil, utils.NewInternalError("Failed to store proof file")
	}

	record, err := s.repo.UpsertByUser(ctx, userID, models.ProofFields{
		Status:  models.StatusPending,
		Reason:  nil,
		FileURL: &publicURL,
		OcrText: nil,
	})
	if err != nil {
		s.logger.Error("Failed to save proof record", "error", err, "user_id", userID)
		return nil, utils.NewInternalError("Failed to save proof record")
	}

	status := record.Status
	reason := record.Reason
	fileURL := record.FileURL
	if fileURL == nil {
		fileURL = &publicURL
	}

	// The submission already succeeded: bytes are stored and the record
	// exists. Classification and the final update run detached from the
	// request context so a client disconnect cannot strand the record in
	// its provisional state.
	finalizeCtx := context.WithoutCancel(ctx)

	verdict, err := s.classifier.Classify(finalizeCtx, file.Data, mime, userID)
	switch {
	case err == nil:
		if verdict.Approved {
			status = models.StatusApproved
		} else {
			status = models.StatusRejected
		}
		reason = SynthesizeReason(verdict)

		var ocrText *string
		if joined := strings.Join(verdict.MatchedKeywords, ", "); joined != "" {
			ocrText = &joined
		}
		s.finalize(finalizeCtx, userID, status, reason, ocrText)

	case errors.Is(err, classifier.ErrDisabled):
		status = models.StatusPending
		disabled := reasonValidationDisabled
		reason = &disabled
		s.finalize(finalizeCtx, userID, status, reason, nil)

	default:
		s.logger.Error("Proof validation failed", "error", err, "user_id", userID)
		status = models.StatusPending
		failed := reasonValidationFailed
		reason = &failed
		s.finalize(finalizeCtx, userID, status, reason, nil)
	}

	return &models.ProofResponse{
		Status:  status,
		Reason:  reason,
		FileURL: fileURL,
	}, nil
}

// finalize persists a classification outcome. A failure here is logged, not
// surfaced: the record stays pending and is picked up by manual review.
func (s *proofService) finalize(ctx context.Context, userID, status string, reason, ocrText *string) {
	if err := s.repo.UpdateDecisionByUser(ctx, userID, status, reason, ocrText); err != nil {
		s.logger.Error("Failed to finalize proof record", "error", err, "user_id", userID, "status", status)
	}
}

func (s *proofService) ProofStatus(ctx context.Context, userID string) (*models.ProofStatusResponse, error) {
	record, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to get proof record", "error", err, "user_id", userID)
		return nil, utils.NewInternalError("Failed to retrieve proof status")
	}
	if record == nil {
		return &models.ProofStatusResponse{Status: models.StatusNotSubmitted}, nil
	}

	return &models.ProofStatusResponse{
		Status:    record.Status,
		Reason:    record.Reason,
		FileURL:   record.FileURL,
		CreatedAt: &record.CreatedAt,
		UpdatedAt: &record.UpdatedAt,
	}, nil
}
