// Package videojob runs video detection jobs. A job decomposes the uploaded
// video into frames, runs detection on every frame, annotates it, and
// re-assembles an output video that the live feed can stream.
package videojob

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/logs"
	"github.com/sightd/sightd/server/ingest"
	"github.com/sightd/sightd/server/metrics"
	"github.com/sightd/sightd/server/nn"
	"github.com/sightd/sightd/server/pipeline"
	"gorm.io/gorm"
)

const (
	JobQueued  = "queued"
	JobRunning = "running"
	JobDone    = "done"
	JobFailed  = "failed"
)

// SchemaSQL is this package's slice of the database schema
const SchemaSQL = `
CREATE TABLE video_job(
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	created_by TEXT NOT NULL,
	source_file TEXT NOT NULL,
	target_name TEXT NOT NULL,
	run_id TEXT NOT NULL DEFAULT '',
	state TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP,
	started_at TIMESTAMP,
	finished_at TIMESTAMP
);
CREATE INDEX idx_video_job_state ON video_job(state);
`

// VideoJob is one video detection job. State moves queued -> running ->
// done|failed, and never backwards.
type VideoJob struct {
	ID         int64 `gorm:"primaryKey"`
	CreatedBy  string
	SourceFile string
	TargetName string // name of the published artifact in the public dir
	RunID      string
	State      string
	Error      string
	CreatedAt  time.Time
	StartedAt  time.Time
	FinishedAt time.Time
}

// Manager owns the worker pool. Submit never blocks on inference; the
// HTTP layer decides whether to Wait (synchronous mode) or to return
// immediately and let the client poll (async mode).
type Manager struct {
	log      logs.Log
	db       *gorm.DB
	pipe     *pipeline.Pipeline
	fps      int
	queue    chan int64
	workers  sync.WaitGroup
	quit     chan struct{}
	extract  func(src, framesDir string) error
	assemble func(framesDir, dst string, fps int) error

	lock sync.Mutex
	done map[int64]chan struct{}
}

func NewManager(log logs.Log, db *gorm.DB, pipe *pipeline.Pipeline, numWorkers, fps int) *Manager {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if fps <= 0 {
		fps = 30
	}
	m := &Manager{
		log:      log,
		db:       db,
		pipe:     pipe,
		fps:      fps,
		queue:    make(chan int64, 64),
		quit:     make(chan struct{}),
		extract:  extractFrames,
		assemble: assembleVideo,
		done:     make(map[int64]chan struct{}),
	}
	for i := 0; i < numWorkers; i++ {
		m.workers.Add(1)
		go m.worker()
	}
	return m
}

// Close stops accepting work and waits for in-flight jobs to finish
func (m *Manager) Close() {
	close(m.quit)
	m.workers.Wait()
}

// Submit creates a job for an ingested video and queues it
func (m *Manager) Submit(createdBy string, media *ingest.UploadedMedia) (*VideoJob, error) {
	job := &VideoJob{
		CreatedBy:  createdBy,
		SourceFile: media.StoredPath,
		TargetName: media.SanitizedName,
		State:      JobQueued,
		CreatedAt:  time.Now().UTC(),
	}
	if err := m.db.Create(job).Error; err != nil {
		return nil, err
	}
	m.lock.Lock()
	m.done[job.ID] = make(chan struct{})
	m.lock.Unlock()
	select {
	case m.queue <- job.ID:
	default:
		m.finishJob(job, "", fmt.Errorf("Video job queue is full"))
		return job, errors.New("Video job queue is full")
	}
	m.log.Infof("Queued video job %v for %v (%v)", job.ID, createdBy, media.SanitizedName)
	return job, nil
}

// Wait blocks until the job has finished, and returns its final state
func (m *Manager) Wait(jobID int64) (*VideoJob, error) {
	m.lock.Lock()
	ch := m.done[jobID]
	m.lock.Unlock()
	if ch != nil {
		<-ch
	}
	return m.Job(jobID)
}

func (m *Manager) Job(jobID int64) (*VideoJob, error) {
	job := &VideoJob{}
	if err := m.db.First(job, jobID).Error; err != nil {
		return nil, err
	}
	return job, nil
}

// LatestDone returns the most recently finished job, or nil if there is none
func (m *Manager) LatestDone() *VideoJob {
	job := &VideoJob{}
	err := m.db.Where("state = ?", JobDone).Order("finished_at DESC, id DESC").First(job).Error
	if err != nil {
		return nil
	}
	return job
}

func (m *Manager) worker() {
	defer m.workers.Done()
	for {
		select {
		case <-m.quit:
			return
		case jobID := <-m.queue:
			job, err := m.Job(jobID)
			if err != nil {
				m.log.Errorf("Video job %v vanished: %v", jobID, err)
				continue
			}
			job.State = JobRunning
			job.StartedAt = time.Now().UTC()
			m.db.Save(job)

			start := time.Now()
			runID, err := m.runJob(job)
			metrics.VideoJobDuration.Observe(time.Since(start).Seconds())
			m.finishJob(job, runID, err)
		}
	}
}

func (m *Manager) finishJob(job *VideoJob, runID string, err error) {
	job.RunID = runID
	job.FinishedAt = time.Now().UTC()
	if err != nil {
		job.State = JobFailed
		job.Error = err.Error()
		m.log.Errorf("Video job %v failed: %v", job.ID, err)
	} else {
		job.State = JobDone
		m.log.Infof("Video job %v done (run %v)", job.ID, runID)
	}
	m.db.Save(job)
	m.lock.Lock()
	if ch := m.done[job.ID]; ch != nil {
		close(ch)
		delete(m.done, job.ID)
	}
	m.lock.Unlock()
}

// runJob executes the whole video pipeline for one job
func (m *Manager) runJob(job *VideoJob) (string, error) {
	runID, runDir, err := m.pipe.NewRunDir()
	if err != nil {
		return "", err
	}
	framesDir := filepath.Join(runDir, "frames")
	annotatedDir := filepath.Join(runDir, "annotated")
	for _, dir := range []string{framesDir, annotatedDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return runID, err
		}
	}

	if err := m.extract(job.SourceFile, framesDir); err != nil {
		metrics.PipelineFailures.WithLabelValues("video_open").Inc()
		return runID, err
	}
	frames, err := listFrames(framesDir)
	if err != nil {
		return runID, err
	}

	detector := m.pipe.Detector()
	cfg := detector.Config()
	params := nn.NewDetectionParams()
	params.ProbabilityThreshold = m.pipe.Filter().MinConfidence
	for i, frame := range frames {
		img, err := cimg.ReadFile(frame)
		if err != nil {
			return runID, fmt.Errorf("Failed to decode frame %v: %w", frame, err)
		}
		objects, err := detector.DetectObjects(img, params)
		if err != nil {
			metrics.PipelineFailures.WithLabelValues("detect").Inc()
			return runID, err
		}
		out := filepath.Join(annotatedDir, filepath.Base(frame))
		if err := nn.WriteAnnotatedJPEG(img, objects, cfg, out); err != nil {
			return runID, err
		}
		if (i+1)%100 == 0 {
			m.log.Infof("Video job %v: %v/%v frames", job.ID, i+1, len(frames))
		}
	}

	if err := m.assemble(annotatedDir, filepath.Join(runDir, pipeline.AnnotatedVideoName), m.fps); err != nil {
		return runID, err
	}
	if _, err := m.pipe.Publish(runDir, pipeline.AnnotatedVideoName, job.TargetName); err != nil {
		return runID, err
	}
	return runID, nil
}
