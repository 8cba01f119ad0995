package service

import (
	"context"
	"os"
	"testing"

	"go-ct-staging/internal/observer"
	"go-ct-staging/internal/prompt"
	"go-ct-staging/internal/staging"
	"go-ct-staging/internal/storage"
	"go-ct-staging/internal/vision"
	"go-ct-staging/pkg/models"
)

type stubInvoker struct {
	out     staging.RawOutput
	err     error
	called  bool
	payload vision.Payload
}

func (s *stubInvoker) Invoke(ctx context.Context, img vision.Payload, q prompt.ModelQuery) (staging.RawOutput, error) {
	s.called = true
	s.payload = img
	return s.out, s.err
}

func confPtr(v float64) *float64 { return &v }

func newTestService(t *testing.T, invoker ModelInvoker) (*StagingService, string, *observer.MetricsObserver) {
	t.Helper()
	dir := t.TempDir()

	cfg, err := prompt.DefaultGuidelines()
	if err != nil {
		t.Fatalf("DefaultGuidelines failed: %v", err)
	}

	publisher := observer.NewPublisher()
	metrics := observer.NewMetricsObserver()
	publisher.Subscribe(metrics)

	svc := NewStagingService(storage.NewTempStore(dir), invoker, prompt.NewBuilder(cfg), publisher)
	return svc, dir, metrics
}

// assertTempDirEmpty checks that no image artifact outlived the request.
func assertTempDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading temp dir failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("%d temp artifacts left behind after analysis", len(entries))
	}
}

func TestAnalyze_DiagnosticResult(t *testing.T) {
	invoker := &stubInvoker{out: staging.RawOutput{
		TStage: "T2a",
		NStage: "N1",
		MStage: "M0",
		Confidences: staging.RawConfidences{
			T: confPtr(0.9),
			N: confPtr(0.6),
			M: confPtr(0.8),
		},
	}}
	svc, dir, metrics := newTestService(t, invoker)

	result, err := svc.Analyze(context.Background(), Upload{Data: []byte{0xFF, 0xD8, 0x01}, MediaType: "image/jpeg"})
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if result.Error != nil {
		t.Fatalf("result carries error: %q", *result.Error)
	}
	if !result.Diagnostic() {
		t.Fatal("result not diagnostic")
	}

	if *result.T != "T2a" || *result.N != "N1" || *result.M != "M0" || *result.Stage != "II" {
		t.Errorf("result = (%s, %s, %s, %s), want (T2a, N1, M0, II)",
			*result.T, *result.N, *result.M, *result.Stage)
	}
	if result.Confidences.Stage != 0.6 {
		t.Errorf("overall confidence = %v, want the weakest axis 0.6", result.Confidences.Stage)
	}
	if invoker.payload.MediaType != "image/jpeg" {
		t.Errorf("model payload media type = %q, want image/jpeg", invoker.payload.MediaType)
	}

	assertTempDirEmpty(t, dir)
	if metrics.Snapshot()[observer.StagingCompleted] != 1 {
		t.Error("staging_completed event not recorded")
	}
}

func TestAnalyze_EmptyPayloadRejected(t *testing.T) {
	invoker := &stubInvoker{}
	svc, _, _ := newTestService(t, invoker)

	result, err := svc.Analyze(context.Background(), Upload{})
	if err == nil {
		t.Fatal("Analyze accepted an empty payload")
	}
	if result != nil {
		t.Error("result non-nil alongside error")
	}
	if invoker.called {
		t.Error("model invoked for an empty payload")
	}
}

func TestAnalyze_NonDiagnosticOutcomes(t *testing.T) {
	tests := []struct {
		name       string
		invoker    *stubInvoker
		wantReason string
	}{
		{
			name:       "Transport failure hides the cause",
			invoker:    &stubInvoker{err: vision.NewFailure(vision.FailureTransport, "connection refused to api.openai.com", nil)},
			wantReason: "analysis service unavailable",
		},
		{
			name:       "Timeout hides the cause",
			invoker:    &stubInvoker{err: vision.NewFailure(vision.FailureTimeout, "deadline exceeded", nil)},
			wantReason: "analysis service unavailable",
		},
		{
			name:       "Content rejection surfaces the model's reason",
			invoker:    &stubInvoker{err: vision.NewFailure(vision.FailureContentPolicy, "not a medical image", nil)},
			wantReason: "not a medical image",
		},
		{
			name:       "Model declares a non-diagnostic case",
			invoker:    &stubInvoker{out: staging.RawOutput{Error: "image quality insufficient for staging"}},
			wantReason: "image quality insufficient for staging",
		},
		{
			name: "Hallucinated code is rejected",
			invoker: &stubInvoker{out: staging.RawOutput{
				TStage: "T7", NStage: "N0", MStage: "M0",
			}},
			wantReason: `unrecognized T category "T7"`,
		},
		{
			name: "Partial staging yields no partial result",
			invoker: &stubInvoker{out: staging.RawOutput{
				TStage: "T1a", MStage: "M0",
			}},
			wantReason: "incomplete staging output: N category missing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, dir, _ := newTestService(t, tt.invoker)

			result, err := svc.Analyze(context.Background(), Upload{Data: []byte("scan"), MediaType: "application/dicom"})
			if err != nil {
				t.Fatalf("Analyze returned error: %v", err)
			}
			if result.Error == nil {
				t.Fatal("result carries no error message")
			}
			if *result.Error != tt.wantReason {
				t.Errorf("error = %q, want %q", *result.Error, tt.wantReason)
			}

			// Non-diagnostic means fully null: no partial staging payloads.
			if result.T != nil || result.N != nil || result.M != nil || result.Stage != nil {
				t.Error("non-diagnostic result carries staging fields")
			}
			if result.Confidences != (models.ConfidenceScores{}) {
				t.Errorf("non-diagnostic result carries confidences: %+v", result.Confidences)
			}

			assertTempDirEmpty(t, dir)
		})
	}
}

func TestAnalyze_RequestIDGenerated(t *testing.T) {
	invoker := &stubInvoker{out: staging.RawOutput{
		TStage: "T1a", NStage: "N0", MStage: "M0",
		Confidences: staging.RawConfidences{T: confPtr(0.9), N: confPtr(0.9), M: confPtr(0.9)},
	}}
	svc, _, _ := newTestService(t, invoker)

	// No RequestID supplied; the pipeline must still complete.
	if _, err := svc.Analyze(context.Background(), Upload{Data: []byte("scan"), MediaType: "image/png"}); err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
}
