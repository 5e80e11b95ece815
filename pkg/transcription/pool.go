// Package transcription runs speech recognition jobs on a fixed number of
// worker slots. Jobs beyond the slot count wait in a FIFO queue.
package transcription

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"vidyabot_backend/pkg/logger"
	"vidyabot_backend/pkg/monitoring"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const tempPrefix = "vidyabot_audio_"

var writeTempAudio = os.WriteFile

// Recognizer turns an audio file into text.
type Recognizer interface {
	Recognize(ctx context.Context, audioPath string) (string, error)
}

// Transcoder converts inputPath into a recognizer-friendly file at outputPath.
type Transcoder func(ctx context.Context, inputPath, outputPath string) error

type Config struct {
	Workers    int
	TempDir    string
	JobTimeout time.Duration
	Transcoder Transcoder
}

type Stats struct {
	Workers int `json:"workers"`
	Running int `json:"running"`
	Queued  int `json:"queued"`
}

type job struct {
	audio  []byte
	handle *Handle
}

type Pool struct {
	cfg        Config
	recognizer Recognizer

	intake chan *job
	work   chan *job
	quit   chan struct{}

	closeOnce sync.Once
	wg        sync.WaitGroup

	running atomic.Int32
	queued  atomic.Int32

	log *zap.Logger
}

// NewPool starts cfg.Workers workers and the dispatcher.
func NewPool(recognizer Recognizer, cfg Config) (*Pool, error) {
	if cfg.Workers <= 0 {
		return nil, fmt.Errorf("transcription pool needs at least one worker, got %d", cfg.Workers)
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = time.Minute
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}

	p := &Pool{
		cfg:        cfg,
		recognizer: recognizer,
		intake:     make(chan *job),
		work:       make(chan *job),
		quit:       make(chan struct{}),
		log:        logger.Named("transcription"),
	}

	p.wg.Add(cfg.Workers + 1)
	go p.dispatch()
	for i := 0; i < cfg.Workers; i++ {
		go p.worker(i)
	}
	return p, nil
}

// Submit enqueues audio for transcription and returns its handle.
func (p *Pool) Submit(ctx context.Context, audio []byte) (*Handle, error) {
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}
	j := &job{audio: audio, handle: newHandle(uuid.New().String())}

	select {
	case p.intake <- j:
		return j.handle, nil
	case <-p.quit:
		return nil, ErrPoolClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Transcribe submits audio and waits for the text.
func (p *Pool) Transcribe(ctx context.Context, audio []byte) (string, error) {
	h, err := p.Submit(ctx, audio)
	if err != nil {
		return "", err
	}
	return h.Wait(ctx)
}

func (p *Pool) Stats() Stats {
	return Stats{
		Workers: p.cfg.Workers,
		Running: int(p.running.Load()),
		Queued:  int(p.queued.Load()),
	}
}

// Close stops accepting jobs, fails every queued job with ErrPoolClosed and
// waits for running jobs to finish.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.quit)
	})
	p.wg.Wait()
}

// dispatch owns the FIFO queue. The head job is offered on the unbuffered
// work channel, so it is handed over only when a worker is idle.
func (p *Pool) dispatch() {
	defer p.wg.Done()

	var queue []*job
	for {
		var out chan *job
		var head *job
		if len(queue) > 0 {
			out = p.work
			head = queue[0]
		}

		select {
		case j := <-p.intake:
			queue = append(queue, j)
			p.setQueued(len(queue))
			p.log.Debug("job queued", zap.String("job", j.handle.id), zap.Int("queued", len(queue)))

		case out <- head:
			queue[0] = nil
			queue = queue[1:]
			p.setQueued(len(queue))

		case <-p.quit:
			for _, j := range queue {
				j.handle.resolve("", ErrPoolClosed)
				monitoring.TranscriptionJobs.WithLabelValues("cancelled").Inc()
			}
			p.setQueued(0)
			return
		}
	}
}

func (p *Pool) worker(slot int) {
	defer p.wg.Done()
	for {
		select {
		case j := <-p.work:
			p.run(slot, j)
		case <-p.quit:
			return
		}
	}
}

func (p *Pool) run(slot int, j *job) {
	j.handle.advance(JobAssigned)
	p.setRunning(p.running.Add(1))
	j.handle.advance(JobRunning)
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.JobTimeout)
	text, err := p.process(ctx, j)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w after %s: %v", ErrJobTimeout, p.cfg.JobTimeout, err)
	}
	cancel()

	// Free the slot before the waiter wakes up.
	p.setRunning(p.running.Add(-1))

	fields := []zap.Field{
		zap.String("job", j.handle.id),
		zap.Int("slot", slot),
		zap.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		monitoring.TranscriptionJobs.WithLabelValues("failed").Inc()
		p.log.Warn("transcription failed", append(fields, zap.Error(err))...)
	} else {
		monitoring.TranscriptionJobs.WithLabelValues("completed").Inc()
		p.log.Info("transcription completed", append(fields, zap.Int("chars", len(text)))...)
	}
	j.handle.resolve(text, err)
}

// process writes the audio to a uniquely named temp file, optionally
// transcodes it and runs the recognizer. Every file it creates is removed
// before it returns.
func (p *Pool) process(ctx context.Context, j *job) (string, error) {
	path := filepath.Join(p.cfg.TempDir, tempPrefix+j.handle.id+".wav")
	defer removeArtifacts(path)
	if err := writeTempAudio(path, j.audio, 0o600); err != nil {
		return "", fmt.Errorf("write temp audio: %w", err)
	}

	input := path
	if p.cfg.Transcoder != nil {
		normalized := strings.TrimSuffix(path, ".wav") + "_16k.wav"
		defer removeArtifacts(normalized)
		if err := p.cfg.Transcoder(ctx, path, normalized); err != nil {
			return "", fmt.Errorf("transcode audio: %w", err)
		}
		input = normalized
	}

	return p.recognizer.Recognize(ctx, input)
}

// removeArtifacts deletes path and the .txt sidecar the recognizer may leave next to it.
func removeArtifacts(path string) {
	os.Remove(path)
	os.Remove(path + ".txt")
}

func (p *Pool) setQueued(n int) {
	p.queued.Store(int32(n))
	monitoring.TranscriptionQueueDepth.Set(float64(n))
}

func (p *Pool) setRunning(n int32) {
	monitoring.TranscriptionBusyWorkers.Set(float64(n))
}
