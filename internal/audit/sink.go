// Package audit writes chat logs and unanswered questions off the request
// path. Writes are best effort: a full queue or a failing store drops the
// record after logging it.
package audit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ShreyaJV11/support-chatbot/internal/apperr"
	"github.com/ShreyaJV11/support-chatbot/internal/metrics"
	"github.com/ShreyaJV11/support-chatbot/internal/storage/models"
	"github.com/ShreyaJV11/support-chatbot/pkg/logger"
)

type Writer interface {
	InsertChatLog(ctx context.Context, record *models.ChatLogRecord) error
	InsertUnanswered(ctx context.Context, record *models.UnansweredQuestion) error
}

type job struct {
	chat       *models.ChatLogRecord
	unanswered *models.UnansweredQuestion
}

type Sink struct {
	writer       Writer
	queue        chan job
	writeTimeout time.Duration

	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewSink(writer Writer, queueSize, workers int) *Sink {
	if queueSize <= 0 {
		queueSize = 256
	}
	if workers <= 0 {
		workers = 2
	}

	s := &Sink{
		writer:       writer,
		queue:        make(chan job, queueSize),
		writeTimeout: 5 * time.Second,
	}

	s.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go s.run()
	}
	return s
}

func (s *Sink) LogChat(record models.ChatLogRecord) {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	s.enqueue(job{chat: &record}, "chat_log")
}

func (s *Sink) RecordUnanswered(record models.UnansweredQuestion) {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	s.enqueue(job{unanswered: &record}, "unanswered")
}

func (s *Sink) enqueue(j job, kind string) {
	defer func() {
		// send on closed queue after shutdown
		if r := recover(); r != nil {
			metrics.AuditDropped.WithLabelValues(kind).Inc()
		}
	}()

	select {
	case s.queue <- j:
	default:
		metrics.AuditDropped.WithLabelValues(kind).Inc()
		logger.Warn("Audit queue full, dropping record", zap.String("record", kind))
	}
}

func (s *Sink) run() {
	defer s.wg.Done()
	for j := range s.queue {
		s.write(j)
	}
}

func (s *Sink) write(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()

	var (
		err  error
		kind string
	)
	switch {
	case j.chat != nil:
		kind = "chat_log"
		err = s.writer.InsertChatLog(ctx, j.chat)
	case j.unanswered != nil:
		kind = "unanswered"
		err = s.writer.InsertUnanswered(ctx, j.unanswered)
	default:
		return
	}

	if err != nil {
		metrics.AuditDropped.WithLabelValues(kind).Inc()
		logger.Error("Audit write failed",
			zap.String("record", kind),
			zap.Error(apperr.Persistence("write "+kind, err)),
		)
	}
}

// Close stops accepting records and waits for queued ones to be written.
func (s *Sink) Close() {
	s.closeOnce.Do(func() {
		close(s.queue)
	})
	s.wg.Wait()
}
