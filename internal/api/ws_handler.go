package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

// NotifyChannel 返回会话的 Redis Pub/Sub 通知频道名。
// API 与 Worker 共用该约定。
func NotifyChannel(sessionKey string) string {
	return fmt.Sprintf("session_notify:%s", sessionKey)
}

// WsHandler 把 Redis Pub/Sub 的导出通知转发给浏览器。
// 客户端建立连接后先发送 {"type":"subscribe","session_key":"..."}。
type WsHandler struct {
	redisClient    *redis.Client
	logger         *slog.Logger
	upgrader       websocket.Upgrader
	allowedOrigins []string
}

// NewWsHandler 构造 WebSocket 处理器。
func NewWsHandler(redisClient *redis.Client, logger *slog.Logger, allowedOrigins []string) *WsHandler {
	h := &WsHandler{
		redisClient:    redisClient,
		logger:         logger,
		allowedOrigins: allowedOrigins,
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if len(h.allowedOrigins) == 0 {
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			}
			for _, allowed := range h.allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			return false
		},
	}
	return h
}

type wsSubscribeMessage struct {
	Type       string `json:"type"`
	SessionKey string `json:"session_key"`
}

// HandleConnection 负责升级连接并启动读写循环。
func (h *WsHandler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("upgrade websocket failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	baseLog := h.logger.With(slog.String("client_ip", c.ClientIP()))

	keyCh := make(chan string, 1)
	errCh := make(chan error, 1)

	go h.readLoop(ctx, conn, keyCh, errCh, cancel)

	var sessionKey string
	select {
	case <-ctx.Done():
		return
	case err := <-errCh:
		if err != nil {
			baseLog.Warn("websocket subscribe failed", slog.Any("error", err))
		}
		return
	case sessionKey = <-keyCh:
	}

	sessionLog := baseLog.With(slog.String("session", sessionKey))
	go h.subscribeLoop(ctx, conn, sessionKey, errCh, cancel, sessionLog)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			sessionLog.Info("websocket connection closed", slog.Any("error", err))
		} else {
			sessionLog.Info("websocket connection closed")
		}
	}
}

func (h *WsHandler) readLoop(
	ctx context.Context,
	conn *websocket.Conn,
	keyCh chan<- string,
	errCh chan<- error,
	cancel context.CancelFunc,
) {
	subscribed := false

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			writeClose(conn, websocket.CloseAbnormalClosure, "read error")
			errCh <- fmt.Errorf("read message: %w", err)
			cancel()
			return
		}

		if !subscribed {
			var sub wsSubscribeMessage
			if err := json.Unmarshal(message, &sub); err != nil {
				writeClose(conn, websocket.ClosePolicyViolation, "invalid subscribe payload")
				errCh <- fmt.Errorf("decode subscribe payload: %w", err)
				cancel()
				return
			}
			key := strings.TrimSpace(sub.SessionKey)
			if sub.Type != "subscribe" || key == "" || len(key) > 64 {
				writeClose(conn, websocket.ClosePolicyViolation, "subscribe required")
				errCh <- fmt.Errorf("invalid subscribe message")
				cancel()
				return
			}

			subscribed = true
			keyCh <- key
			continue
		}

		// 订阅后无需处理额外消息，保持循环以检测客户端断开。
	}
}

func writeClose(conn *websocket.Conn, code int, text string) {
	deadline := time.Now().Add(5 * time.Second)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), deadline)
}

func (h *WsHandler) subscribeLoop(
	ctx context.Context,
	conn *websocket.Conn,
	sessionKey string,
	errCh chan<- error,
	cancel context.CancelFunc,
	log *slog.Logger,
) {
	channel := NotifyChannel(sessionKey)
	pubsub := h.redisClient.Subscribe(ctx, channel)
	defer pubsub.Close()

	log.Info("subscribed to redis channel", slog.String("channel", channel))

	ch := pubsub.Channel()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				errCh <- fmt.Errorf("pubsub channel closed")
				cancel()
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				errCh <- fmt.Errorf("write message: %w", err)
				cancel()
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(5 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), deadline); err != nil {
				errCh <- fmt.Errorf("write ping: %w", err)
				cancel()
				return
			}
		}
	}
}
