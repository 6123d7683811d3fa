package processor

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// ErrPoolClosed wird zurückgegeben, wenn der Pool bereits heruntergefahren ist
var ErrPoolClosed = errors.New("analysis worker pool is shut down")

// WorkerPool verwaltet einen Pool von Worker-Goroutinen für die Analyse von Einzelbildern
type WorkerPool struct {
	analyzer        Analyzer
	jobs            chan *AnalyzeJob
	workerCount     int
	activeJobs      int
	activeJobsMutex sync.Mutex
	shutdown        chan struct{}
	shutdownOnce    sync.Once
	wg              sync.WaitGroup
}

// AnalyzeJob repräsentiert einen Analysejob
type AnalyzeJob struct {
	ctx      context.Context
	data     []byte
	detector string
	annotate bool
	resultCh chan *AnalyzeResult // Individueller Ergebniskanal pro Job
}

// AnalyzeResult enthält das Ergebnis eines Jobs
type AnalyzeResult struct {
	Analysis *Analysis
	Err      error
}

// DefaultWorkerCount verwendet 75% der verfügbaren CPUs, mindestens 2
func DefaultWorkerCount() int {
	return max(2, (runtime.NumCPU()*3)/4)
}

// NewWorkerPool erstellt einen Pool mit workers Goroutinen (0 = automatisch)
func NewWorkerPool(analyzer Analyzer, workers int) *WorkerPool {
	if workers <= 0 {
		workers = DefaultWorkerCount()
	}

	log.Infof("Initializing analysis worker pool with %d workers", workers)

	pool := &WorkerPool{
		analyzer:    analyzer,
		jobs:        make(chan *AnalyzeJob, workers*2),
		workerCount: workers,
		shutdown:    make(chan struct{}),
	}

	pool.startWorkers()
	return pool
}

func (p *WorkerPool) startWorkers() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go func(workerID int) {
			defer p.wg.Done()
			log.Debugf("Worker %d started", workerID)

			for {
				select {
				case job := <-p.jobs:
					p.run(workerID, job)
				case <-p.shutdown:
					log.Debugf("Worker %d received shutdown signal", workerID)
					return
				}
			}
		}(i)
	}
}

func (p *WorkerPool) run(workerID int, job *AnalyzeJob) {
	p.activeJobsMutex.Lock()
	p.activeJobs++
	jobCount := p.activeJobs
	p.activeJobsMutex.Unlock()

	log.Debugf("Worker %d analyzing %d bytes with %q (active jobs: %d)", workerID, len(job.data), job.detector, jobCount)
	startTime := time.Now()

	var result AnalyzeResult
	if err := job.ctx.Err(); err != nil {
		result.Err = err
	} else {
		result.Analysis, result.Err = p.analyzer.Analyze(job.ctx, job.data, job.detector, job.annotate)
	}

	p.activeJobsMutex.Lock()
	p.activeJobs--
	p.activeJobsMutex.Unlock()

	// resultCh ist gepuffert, der Sender blockiert nie
	job.resultCh <- &result

	log.Debugf("Worker %d completed analysis in %v", workerID, time.Since(startTime))
}

// ProcessImage analysiert ein Bild über den Worker-Pool und wartet auf das Ergebnis
func (p *WorkerPool) ProcessImage(ctx context.Context, data []byte, detectorName string, annotate bool) (*Analysis, error) {
	resultCh := make(chan *AnalyzeResult, 1)

	job := &AnalyzeJob{
		ctx:      ctx,
		data:     data,
		detector: detectorName,
		annotate: annotate,
		resultCh: resultCh,
	}

	select {
	case <-p.shutdown:
		return nil, ErrPoolClosed
	default:
	}

	select {
	case p.jobs <- job:
	case <-p.shutdown:
		return nil, ErrPoolClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case result := <-resultCh:
		return result.Analysis, result.Err
	case <-p.shutdown:
		return nil, ErrPoolClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ActiveJobCount gibt die Anzahl der aktuell aktiven Jobs zurück
func (p *WorkerPool) ActiveJobCount() int {
	p.activeJobsMutex.Lock()
	defer p.activeJobsMutex.Unlock()
	return p.activeJobs
}

// GetWorkerCount gibt die Anzahl der Worker im Pool zurück
func (p *WorkerPool) GetWorkerCount() int {
	return p.workerCount
}

// GetQueueCapacity gibt die Kapazität der Job-Queue zurück
func (p *WorkerPool) GetQueueCapacity() int {
	return cap(p.jobs)
}

// Shutdown fährt den Worker-Pool herunter und wartet auf laufende Jobs.
// Jobs, die noch in der Queue liegen, werden nicht mehr bearbeitet.
func (p *WorkerPool) Shutdown() {
	p.shutdownOnce.Do(func() {
		close(p.shutdown)
		p.wg.Wait()
		log.Info("Analysis worker pool stopped")
	})
}
