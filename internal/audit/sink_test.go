package audit

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ShreyaJV11/support-chatbot/internal/storage/models"
)

type recordingWriter struct {
	mu         sync.Mutex
	chats      []models.ChatLogRecord
	unanswered []models.UnansweredQuestion
	err        error
	block      chan struct{}
}

func (w *recordingWriter) InsertChatLog(ctx context.Context, record *models.ChatLogRecord) error {
	if w.block != nil {
		<-w.block
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.chats = append(w.chats, *record)
	return nil
}

func (w *recordingWriter) InsertUnanswered(ctx context.Context, record *models.UnansweredQuestion) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.unanswered = append(w.unanswered, *record)
	return nil
}

func TestSink_WritesOnClose(t *testing.T) {
	w := &recordingWriter{}
	s := NewSink(w, 10, 1)

	s.LogChat(models.ChatLogRecord{SessionID: "s1", Question: "q", ResponseType: "ANSWERED"})
	s.RecordUnanswered(models.UnansweredQuestion{Question: "q2", CaseID: "CASE-1"})
	s.Close()

	assert.Len(t, w.chats, 1)
	assert.False(t, w.chats[0].CreatedAt.IsZero())
	assert.Len(t, w.unanswered, 1)
	assert.Equal(t, "CASE-1", w.unanswered[0].CaseID)
}

func TestSink_SwallowsWriteErrors(t *testing.T) {
	w := &recordingWriter{err: errors.New("disk full")}
	s := NewSink(w, 10, 1)

	assert.NotPanics(t, func() {
		s.LogChat(models.ChatLogRecord{Question: "q"})
		s.Close()
	})
}

func TestSink_DropsWhenFull(t *testing.T) {
	w := &recordingWriter{block: make(chan struct{})}
	s := NewSink(w, 1, 1)

	for i := 0; i < 10; i++ {
		s.LogChat(models.ChatLogRecord{Question: "q"})
	}
	close(w.block)
	s.Close()

	assert.LessOrEqual(t, len(w.chats), 2)
	assert.GreaterOrEqual(t, len(w.chats), 1)
}

func TestSink_AfterCloseDoesNotPanic(t *testing.T) {
	s := NewSink(&recordingWriter{}, 1, 1)
	s.Close()

	assert.NotPanics(t, func() {
		s.LogChat(models.ChatLogRecord{Question: "late"})
	})
}
