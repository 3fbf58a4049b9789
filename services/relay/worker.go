package relay

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/kyoden/chatrelay/db/kvdb"
	"github.com/kyoden/chatrelay/logger"
	"github.com/kyoden/chatrelay/services/notify"
)

type JobStatus string

const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

const (
	jobQueueCapacity = 64

	// Answers shorter than this are treated as generation failures and
	// replaced with an apology before delivery.
	minAnswerRunes = 10

	invalidAnswerMessage = "申し訳ありません。有効な回答を生成できませんでした。しばらく経ってから再度お試しください。"
)

// Deliverer posts a finished answer to the chat channel.
type Deliverer interface {
	Deliver(question, answer, searchPath string) notify.Result
}

type job struct {
	id    string
	query string
}

// Pool runs answer generation on a fixed set of workers so a burst of
// webhook requests cannot spawn unbounded goroutines. Job status is
// persisted in the kv store keyed by job ID.
type Pool struct {
	logger    logger.Logger
	client    *Client
	deliverer Deliverer
	searcher  Searcher
	status    kvdb.DB
	jobs      chan job
	wg        sync.WaitGroup
}

// NewPool starts size workers that run until ctx is cancelled. searcher and
// status may be nil; file search and status persistence are then disabled.
func NewPool(ctx context.Context, logger logger.Logger, size int, client *Client, deliverer Deliverer, searcher Searcher, status kvdb.DB) *Pool {
	if size <= 0 {
		size = 4
	}

	p := &Pool{
		logger:    logger,
		client:    client,
		deliverer: deliverer,
		searcher:  searcher,
		status:    status,
		jobs:      make(chan job, jobQueueCapacity),
	}

	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.work(ctx)
	}

	logger.Info("worker pool started", "size", size)
	return p
}

// Submit queues a query for processing and returns the assigned job ID.
// A full queue rejects the job instead of blocking the webhook handler.
func (p *Pool) Submit(rawQuery string) (string, bool) {
	id := uuid.New().String()

	// Record the queued state before the job becomes visible to workers so
	// a fast worker cannot have its final status overwritten.
	p.setStatus(id, JobQueued)

	select {
	case p.jobs <- job{id: id, query: rawQuery}:
		p.logger.Info("job queued", "job_id", id)
		return id, true
	default:
		p.logger.Warn("job queue full, rejecting request", "job_id", id)
		p.setStatus(id, JobFailed)
		return id, false
	}
}

// Wait blocks until all workers have exited after context cancellation.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) work(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case j := <-p.jobs:
			p.process(ctx, j)
		}
	}
}

func (p *Pool) process(ctx context.Context, j job) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker panicked", "job_id", j.id, "panic", fmt.Sprint(r))
			p.setStatus(j.id, JobFailed)
			p.notifyError(j, fmt.Sprintf("エラーが発生しました: %v\n\n詳細はサーバーログを確認してください。", r))
		}
	}()

	p.setStatus(j.id, JobRunning)
	start := time.Now()

	cleanQuery := CleanQuery(j.query)
	answer := p.client.GenerateAnswer(ctx, j.query, p.searcher)

	if utf8.RuneCountInString(strings.TrimSpace(answer)) < minAnswerRunes {
		p.logger.Warn("generated answer too short, substituting apology", "job_id", j.id)
		answer = invalidAnswerMessage
	}

	searchPath := ""
	if p.searcher != nil {
		searchPath = p.searcher.BaseDir()
	}

	result := p.deliverer.Deliver(cleanQuery, answer, searchPath)
	if result.Status == notify.StatusSuccess {
		p.setStatus(j.id, JobDone)
		p.logger.Info("job completed", "job_id", j.id, "format", result.Format, "duration", time.Since(start).String())
		return
	}

	p.setStatus(j.id, JobFailed)
	p.logger.Error("job delivery failed", "job_id", j.id, "code", result.Code, "message", result.Message)
}

// notifyError makes a best-effort attempt to tell the channel that
// processing failed. Its own failure is only logged.
func (p *Pool) notifyError(j job, message string) {
	searchPath := ""
	if p.searcher != nil {
		searchPath = p.searcher.BaseDir()
	}

	result := p.deliverer.Deliver(CleanQuery(j.query), message, searchPath)
	if result.Status != notify.StatusSuccess {
		p.logger.Error("failed to deliver error notification", "job_id", j.id, "code", result.Code)
	}
}

func (p *Pool) setStatus(id string, status JobStatus) {
	if p.status == nil {
		return
	}
	if err := p.status.Set(id, string(status)); err != nil {
		p.logger.Error("failed to persist job status", "job_id", id, "err", err.Error())
	}
}
