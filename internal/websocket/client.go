package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"energypulse/internal/infrastructure"
	"energypulse/internal/operations"
	"energypulse/pkg/contracts/events"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

// JobStream forwards the updates of one import job to a websocket peer
// until the job finishes, the peer goes away or the context ends.
type JobStream struct {
	conn    Connection
	updates <-chan operations.Job
	traceID string
	logger  *slog.Logger

	pingPeriod   time.Duration
	messagesSent int64
}

// NewJobStream creates a stream reading job snapshots from updates
func NewJobStream(conn Connection, updates <-chan operations.Job, traceID string, logger *slog.Logger) *JobStream {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &JobStream{
		conn:       conn,
		updates:    updates,
		traceID:    traceID,
		logger:     logger.With(slog.String("component", "websocket.job_stream"), slog.String("remote_addr", conn.RemoteAddr())),
		pingPeriod: pingPeriod,
	}
}

// Run pumps updates to the peer and closes the connection when done. The
// last job seen is returned.
func (s *JobStream) Run(ctx context.Context) operations.Job {
	ctx = infrastructure.WithTraceID(ctx, s.traceID)
	peerGone := s.readPump()

	ticker := time.NewTicker(s.pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
		s.logger.DebugContext(ctx, "job stream closed", slog.Int64("messages_sent", s.messagesSent))
	}()

	var last operations.Job
	for {
		select {
		case job, ok := <-s.updates:
			if !ok {
				s.close(websocket.CloseNormalClosure, "job finished")
				return last
			}
			last = job
			if err := s.send(events.NewMessage(events.MessageTypeJobSnapshot, s.traceID, job)); err != nil {
				s.logger.WarnContext(ctx, "failed to write job snapshot",
					slog.String("job_id", job.ID),
					slog.String("error", err.Error()))
				return last
			}
			if job.Status.Terminal() {
				s.close(websocket.CloseNormalClosure, string(job.Status))
				return last
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logger.DebugContext(ctx, "failed to send ping", slog.String("error", err.Error()))
				return last
			}

		case <-peerGone:
			return last

		case <-ctx.Done():
			s.close(websocket.CloseGoingAway, "server shutting down")
			return last
		}
	}
}

// SendError writes an error message and closes the connection
func (s *JobStream) SendError(code, message string) {
	s.send(events.NewMessage(events.MessageTypeError, s.traceID, events.ErrorData{Code: code, Message: message}))
	s.close(websocket.ClosePolicyViolation, code)
	s.conn.Close()
}

func (s *JobStream) send(msg events.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	s.messagesSent++
	return nil
}

func (s *JobStream) close(code int, text string) {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, text))
}

// readPump drains peer frames so pongs and close frames are processed. The
// returned channel closes once the peer is gone.
func (s *JobStream) readPump() <-chan struct{} {
	gone := make(chan struct{})

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go func() {
		defer close(gone)
		for {
			if _, _, err := s.conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.logger.Debug("unexpected websocket close", slog.String("error", err.Error()))
				}
				return
			}
		}
	}()
	return gone
}
