package service

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	apperrors "go-ct-staging/internal/errors"
	"go-ct-staging/internal/logger"
	"go-ct-staging/internal/observer"
	"go-ct-staging/internal/prompt"
	"go-ct-staging/internal/staging"
	"go-ct-staging/internal/storage"
	"go-ct-staging/internal/vision"
	"go-ct-staging/pkg/models"
)

// serviceUnavailableMsg is the caller-facing message for transport-class
// failures. The underlying cause is logged, never surfaced.
const serviceUnavailableMsg = "analysis service unavailable"

// Upload is the intake payload handed to the core: raw image bytes and the
// declared media type. The core owns it only for the duration of Analyze.
type Upload struct {
	Data      []byte
	MediaType string
	RequestID string
}

// StagingAnalyzer is the single logical operation the core exposes.
type StagingAnalyzer interface {
	Analyze(ctx context.Context, up Upload) (*models.StagingResult, error)
}

// ModelInvoker abstracts the retry-wrapped model invocation so the pipeline
// can be exercised with stubbed responses.
type ModelInvoker interface {
	Invoke(ctx context.Context, img vision.Payload, q prompt.ModelQuery) (staging.RawOutput, error)
}

// StagingService runs the staging pipeline for one request at a time per
// call: temp-image acquisition, model invocation, validation, stage
// resolution and result assembly. It holds no case history and no
// cross-request state.
type StagingService struct {
	tempStore *storage.TempStore
	invoker   ModelInvoker
	builder   *prompt.Builder
	publisher observer.Subject
}

// NewStagingService creates a staging service. publisher may be nil when no
// observers are wired.
func NewStagingService(tempStore *storage.TempStore, invoker ModelInvoker, builder *prompt.Builder, publisher observer.Subject) *StagingService {
	return &StagingService{
		tempStore: tempStore,
		invoker:   invoker,
		builder:   builder,
		publisher: publisher,
	}
}

// Analyze stages one chest CT image.
//
// Every failure class except an internal-consistency fault resolves to a
// well-formed non-diagnostic StagingResult with a nil error return; the
// caller never sees a partial payload. The temporary image artifact is
// removed on every exit path.
func (s *StagingService) Analyze(ctx context.Context, up Upload) (*models.StagingResult, error) {
	start := time.Now()
	requestID := up.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	if len(up.Data) == 0 {
		return nil, apperrors.NewValidationError("empty image payload", nil)
	}

	s.notify(ctx, observer.StagingEvent{
		EventType: observer.StagingStarted,
		Timestamp: start,
		RequestID: requestID,
		Success:   true,
	})

	mediaType := storage.SniffMediaType(up.Data, up.MediaType)
	tmp, err := s.tempStore.Write(up.Data, mediaType)
	if err != nil {
		logger.WithError(err).WithField("request_id", requestID).Error("Failed to stage temporary image")
		return s.nonDiagnostic(ctx, requestID, serviceUnavailableMsg, start), nil
	}
	defer func() {
		if err := tmp.Remove(); err != nil {
			logger.WithError(err).WithField("request_id", requestID).Error("Failed to remove temporary image")
		}
	}()

	// The temp file is the request's exclusively owned copy; the upload
	// buffer is not referenced past this point.
	imageBytes, err := os.ReadFile(tmp.Path())
	if err != nil {
		logger.WithError(err).WithField("request_id", requestID).Error("Failed to read temporary image")
		return s.nonDiagnostic(ctx, requestID, serviceUnavailableMsg, start), nil
	}

	raw, err := s.invoker.Invoke(ctx, vision.Payload{Data: imageBytes, MediaType: mediaType}, s.builder.Query())
	s.notify(ctx, observer.StagingEvent{
		EventType:      observer.ModelInvoked,
		Timestamp:      time.Now(),
		RequestID:      requestID,
		ProcessingTime: time.Since(start),
		Success:        err == nil,
	})
	if err != nil {
		return s.modelFailure(ctx, requestID, err, start), nil
	}

	verdict := staging.Validate(raw)
	if !verdict.Diagnostic {
		return s.nonDiagnostic(ctx, requestID, verdict.Reason, start), nil
	}

	stage, err := staging.Resolve(verdict.T, verdict.N, verdict.M)
	if err != nil {
		// The validator's contract was violated; this is a programming
		// defect, not a user-facing condition.
		logger.WithError(err).WithFields(logrus.Fields{
			"request_id": requestID,
			"t":          verdict.T,
			"n":          verdict.N,
			"m":          verdict.M,
		}).Error("Stage resolution outside the AJCC table")
		s.notify(ctx, observer.StagingEvent{
			EventType:      observer.StagingFailed,
			Timestamp:      time.Now(),
			RequestID:      requestID,
			ProcessingTime: time.Since(start),
			ErrorMessage:   err.Error(),
		})
		return nil, apperrors.NewInternalError("internal staging fault", err)
	}

	result := assemble(verdict, stage)
	s.notify(ctx, observer.StagingEvent{
		EventType:      observer.StagingCompleted,
		Timestamp:      time.Now(),
		RequestID:      requestID,
		Stage:          string(stage),
		ProcessingTime: time.Since(start),
		Success:        true,
	})
	return result, nil
}

// modelFailure maps a typed invocation failure to the caller-facing
// non-diagnostic result. Content rejection carries the model's stated reason;
// everything else collapses to the generic service-unavailable message.
func (s *StagingService) modelFailure(ctx context.Context, requestID string, err error, start time.Time) *models.StagingResult {
	if vision.KindOf(err) == vision.FailureContentPolicy {
		msg := "unable to assess the provided image"
		var f *vision.Failure
		if errors.As(err, &f) && f.Message != "" {
			msg = f.Message
		}
		return s.nonDiagnostic(ctx, requestID, msg, start)
	}

	logger.WithError(err).WithFields(logrus.Fields{
		"request_id": requestID,
		"kind":       vision.KindOf(err),
	}).Warn("Model invocation failed")
	return s.nonDiagnostic(ctx, requestID, serviceUnavailableMsg, start)
}

// nonDiagnostic assembles the fully-null result: error set, all stage fields
// nil, all confidences zero.
func (s *StagingService) nonDiagnostic(ctx context.Context, requestID, reason string, start time.Time) *models.StagingResult {
	s.notify(ctx, observer.StagingEvent{
		EventType:      observer.StagingNonDiagnostic,
		Timestamp:      time.Now(),
		RequestID:      requestID,
		ProcessingTime: time.Since(start),
		ErrorMessage:   reason,
	})
	return &models.StagingResult{Error: &reason}
}

// assemble builds the diagnostic result. The overall confidence follows the
// weakest-link policy over the three axes.
func assemble(v staging.Verdict, stage staging.Stage) *models.StagingResult {
	return &models.StagingResult{
		T:     strPtr(string(v.T)),
		N:     strPtr(string(v.N)),
		M:     strPtr(string(v.M)),
		Stage: strPtr(string(stage)),
		Confidences: models.ConfidenceScores{
			T:     v.TConf,
			N:     v.NConf,
			M:     v.MConf,
			Stage: staging.OverallConfidence(v.TConf, v.NConf, v.MConf),
		},
	}
}

func (s *StagingService) notify(ctx context.Context, event observer.StagingEvent) {
	if s.publisher != nil {
		s.publisher.NotifyObservers(ctx, event)
	}
}

func strPtr(s string) *string { return &s }
