package processor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"emotion-cam-go/internal/integrations/detector"
	"emotion-cam-go/internal/integrations/emotion"
	"emotion-cam-go/internal/integrations/opencv"

	"gocv.io/x/gocv"
)

type fakeAnalyzer struct {
	mu    sync.Mutex
	calls []string
	block chan struct{}
	err   error
}

func (a *fakeAnalyzer) Analyze(ctx context.Context, data []byte, detectorName string, annotate bool) (*Analysis, error) {
	a.mu.Lock()
	a.calls = append(a.calls, detectorName)
	a.mu.Unlock()

	if a.block != nil {
		select {
		case <-a.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if a.err != nil {
		return nil, a.err
	}
	return &Analysis{Detector: detectorName, Result: emotion.Result{Emotion: emotion.Neutral, Confidence: 0.5}}, nil
}

func TestWorkerPoolProcessImage(t *testing.T) {
	pool := NewWorkerPool(&fakeAnalyzer{}, 2)
	defer pool.Shutdown()

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := pool.ProcessImage(context.Background(), []byte("img"), "X", false)
			if err != nil {
				errs <- err
				return
			}
			if a.Detector != "X" || a.Result.Emotion != emotion.Neutral {
				errs <- errors.New("unexpected analysis")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestWorkerPoolPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	pool := NewWorkerPool(&fakeAnalyzer{err: boom}, 1)
	defer pool.Shutdown()

	if _, err := pool.ProcessImage(context.Background(), nil, "", false); !errors.Is(err, boom) {
		t.Errorf("ProcessImage() error = %v, want %v", err, boom)
	}
}

func TestWorkerPoolContextCancel(t *testing.T) {
	analyzer := &fakeAnalyzer{block: make(chan struct{})}
	pool := NewWorkerPool(analyzer, 1)
	defer pool.Shutdown()
	defer close(analyzer.block)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := pool.ProcessImage(ctx, nil, "", false); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("ProcessImage() error = %v, want deadline exceeded", err)
	}
}

func TestWorkerPoolShutdown(t *testing.T) {
	pool := NewWorkerPool(&fakeAnalyzer{}, 1)
	pool.Shutdown()
	pool.Shutdown()

	if _, err := pool.ProcessImage(context.Background(), nil, "", false); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("ProcessImage() after Shutdown = %v, want ErrPoolClosed", err)
	}
}

func TestWorkerPoolSizing(t *testing.T) {
	pool := NewWorkerPool(&fakeAnalyzer{}, 0)
	defer pool.Shutdown()

	if pool.GetWorkerCount() != DefaultWorkerCount() || pool.GetWorkerCount() < 2 {
		t.Errorf("GetWorkerCount() = %d, default %d", pool.GetWorkerCount(), DefaultWorkerCount())
	}
	if pool.GetQueueCapacity() != pool.GetWorkerCount()*2 {
		t.Errorf("GetQueueCapacity() = %d", pool.GetQueueCapacity())
	}
	if pool.ActiveJobCount() != 0 {
		t.Errorf("ActiveJobCount() = %d", pool.ActiveJobCount())
	}
}

func TestImageAnalyzer(t *testing.T) {
	img := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer img.Close()
	data, err := opencv.EncodeJPEG(img)
	if err != nil {
		t.Fatal(err)
	}

	a := NewImageAnalyzer(detector.NewManager(happyDetector("A"), happyDetector("B")))

	t.Run("default detector", func(t *testing.T) {
		got, err := a.Analyze(context.Background(), data, "", false)
		if err != nil {
			t.Fatal(err)
		}
		if got.Detector != "A" || got.Result.Emotion != emotion.Happy || got.Width != 64 || got.Height != 48 {
			t.Errorf("Analyze() = %+v", got)
		}
		if got.Annotated != nil {
			t.Error("annotated image returned without request")
		}
	})

	t.Run("annotated", func(t *testing.T) {
		got, err := a.Analyze(context.Background(), data, "B", true)
		if err != nil {
			t.Fatal(err)
		}
		if got.Detector != "B" || len(got.Annotated) == 0 {
			t.Errorf("Analyze() = detector %q, %d annotated bytes", got.Detector, len(got.Annotated))
		}
	})

	t.Run("unknown detector", func(t *testing.T) {
		got, err := a.Analyze(context.Background(), data, "missing", false)
		if err != nil {
			t.Fatal(err)
		}
		if got.Result.Emotion != emotion.UnknownDetector {
			t.Errorf("emotion = %q, want unknown_detector", got.Result.Emotion)
		}
	})

	t.Run("invalid image", func(t *testing.T) {
		if _, err := a.Analyze(context.Background(), []byte("not an image"), "", false); err == nil {
			t.Error("expected decode error")
		}
	})
}
