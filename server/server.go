package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/xhad/ragdemo/internal/models"
	"github.com/xhad/ragdemo/pkg/logging"
	"go.uber.org/zap"
)

// Message types exchanged over the socket.
const (
	TypeQuestion = "question"
	TypeStream   = "stream"
	TypeContext  = "context"
	TypeResponse = "response"
	TypeDone     = "done"
	TypeError    = "error"
)

type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content"`
	Data    interface{} `json:"data,omitempty"`
}

// Answerer runs the question-answering pipeline.
type Answerer interface {
	Invoke(ctx context.Context, question string) (models.State, error)
	InvokeStream(ctx context.Context, question string, onContext func([]models.Document) error, onChunk func(string) error) (models.State, error)
}

type Config struct {
	Addr      string
	Streaming bool
	Logger    *zap.Logger
}

type WSServer struct {
	config   Config
	pipeline Answerer
	upgrader websocket.Upgrader
	log      *zap.Logger
}

func NewWSServer(config Config, pipeline Answerer) *WSServer {
	if config.Addr == "" {
		config.Addr = ":8080"
	}
	log := logging.OrNop(config.Logger)
	return &WSServer{
		config:   config,
		pipeline: pipeline,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log: log,
	}
}

// Handler exposes /ws and /health.
func (s *WSServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

// ListenAndServe blocks until ctx is canceled or the listener fails.
func (s *WSServer) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("websocket server listening", zap.String("addr", s.config.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *WSServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("read failed", zap.Error(err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			s.sendMessage(conn, TypeError, "invalid message: "+err.Error(), nil)
			continue
		}

		// Questions on one connection are answered in order.
		s.handleMessage(r.Context(), conn, msg)
	}
}

func (s *WSServer) handleMessage(ctx context.Context, conn *websocket.Conn, msg Message) {
	if msg.Type != TypeQuestion {
		s.sendMessage(conn, TypeError, "unsupported message type: "+msg.Type, nil)
		return
	}

	if !s.config.Streaming {
		state, err := s.pipeline.Invoke(ctx, msg.Content)
		if err != nil {
			s.fail(conn, msg.Content, err)
			return
		}
		s.sendMessage(conn, TypeContext, "", state.Context)
		s.sendMessage(conn, TypeResponse, state.Answer, nil)
		return
	}

	// Streaming: context, stream chunks, then done carrying the full answer.
	state, err := s.pipeline.InvokeStream(ctx, msg.Content,
		func(docs []models.Document) error {
			return s.sendMessage(conn, TypeContext, "", docs)
		},
		func(chunk string) error {
			return s.sendMessage(conn, TypeStream, chunk, nil)
		})
	if err != nil {
		s.fail(conn, msg.Content, err)
		return
	}
	s.sendMessage(conn, TypeDone, state.Answer, nil)
}

func (s *WSServer) fail(conn *websocket.Conn, question string, err error) {
	s.log.Warn("question failed", zap.String("question", question), zap.Error(err))
	s.sendMessage(conn, TypeError, err.Error(), nil)
}

func (s *WSServer) sendMessage(conn *websocket.Conn, msgType, content string, data interface{}) error {
	err := conn.WriteJSON(Message{Type: msgType, Content: content, Data: data})
	if err != nil {
		s.log.Debug("write failed", zap.String("type", msgType), zap.Error(err))
	}
	return err
}
