package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"medisaga/internal/pkg/logger"
	"medisaga/internal/service/booking/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool { // 简化处理，允许所有跨域
		return true
	},
}

// PushMessage 推送给浏览器的 saga 进度
type PushMessage struct {
	EventID       string           `json:"eventId"`
	CorrelationID string           `json:"correlationId"`
	EventType     domain.EventType `json:"eventType"`
	Status        string           `json:"status"`
	Data          json.RawMessage  `json:"data"`
	Timestamp     time.Time        `json:"timestamp"`
	Terminal      bool             `json:"terminal"`
}

// EventHistory 已持久化的 saga 事件，按时间升序
type EventHistory interface {
	ListByCorrelationID(ctx context.Context, correlationID string) ([]domain.SagaEventRecord, error)
}

// PushHub 按 correlation id 维护 WebSocket 连接，把 saga 事件推送给正在等待结果的客户端。
// 配置了 EventHistory 时，新连接先收到已经发生的事件，再接着收实时事件。
type PushHub struct {
	clients    map[string]map[*pushClient]struct{}
	unregister chan *pushClient
	lock       sync.RWMutex
	done       chan struct{}
	once       sync.Once
	history    EventHistory
}

type pushFrame struct {
	eventID string
	payload []byte
}

type pushClient struct {
	hub           *PushHub
	conn          *websocket.Conn
	send          chan []byte
	correlationID string

	// 以下字段由 mu 保护。补发历史期间到达的实时事件先进 backlog，按事件 id 去重。
	mu        sync.Mutex
	replaying bool
	backlog   []pushFrame
	seen      map[string]struct{}
	closed    bool
}

func NewPushHub() *PushHub {
	return &PushHub{
		clients:    make(map[string]map[*pushClient]struct{}),
		unregister: make(chan *pushClient),
		done:       make(chan struct{}),
	}
}

// WithHistory 启用连接时的历史补发
func (h *PushHub) WithHistory(history EventHistory) *PushHub {
	h.history = history
	return h
}

// Start 启动注销循环，连接在 ServeWS 中直接注册
func (h *PushHub) Start(ctx context.Context) error {
	go h.run(ctx)
	logger.Ctx(ctx).Info().Msg("✅ Push hub started.")
	return nil
}

// Stop 断开所有连接
func (h *PushHub) Stop(ctx context.Context) {
	h.once.Do(func() { close(h.done) })
	h.lock.Lock()
	for cid, set := range h.clients {
		for c := range set {
			c.closeSend()
		}
		delete(h.clients, cid)
	}
	h.lock.Unlock()
	logger.Ctx(ctx).Info().Msg("🛑 Push hub stopped.")
}

func (h *PushHub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.once.Do(func() { close(h.done) })
			return
		case <-h.done:
			return
		case c := <-h.unregister:
			h.lock.Lock()
			if set, ok := h.clients[c.correlationID]; ok {
				if _, ok := set[c]; ok {
					delete(set, c)
					c.closeSend()
				}
				if len(set) == 0 {
					delete(h.clients, c.correlationID)
				}
			}
			h.lock.Unlock()
		}
	}
}

// Subscribers 当前订阅某个预约的连接数
func (h *PushHub) Subscribers(correlationID string) int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.clients[correlationID])
}

// HandleEvent 作为事件处理器订阅到路由上。发送缓冲已满的慢客户端会丢消息，不阻塞 saga。
func (h *PushHub) HandleEvent(ctx context.Context, evt domain.Event) error {
	h.lock.RLock()
	defer h.lock.RUnlock()
	set := h.clients[evt.CorrelationID]
	if len(set) == 0 {
		return nil
	}

	frame, err := newPushFrame(PushMessage{
		EventID:       evt.ID,
		CorrelationID: evt.CorrelationID,
		EventType:     evt.Type,
		Status:        string(evt.Type.Status()),
		Data:          evt.Data,
		Timestamp:     evt.Timestamp,
	})
	if err != nil {
		return err
	}
	for c := range set {
		if !c.offer(frame) {
			logger.Ctx(ctx).Warn().Msg("Push client is too slow, message dropped")
		}
	}
	return nil
}

func newPushFrame(msg PushMessage) (pushFrame, error) {
	msg.Terminal = msg.EventType == domain.EventBookingConfirmed || msg.EventType == domain.EventBookingFailed
	payload, err := json.Marshal(msg)
	if err != nil {
		return pushFrame{}, err
	}
	return pushFrame{eventID: msg.EventID, payload: payload}, nil
}

func (h *PushHub) add(c *pushClient) {
	h.lock.Lock()
	defer h.lock.Unlock()
	set, ok := h.clients[c.correlationID]
	if !ok {
		set = make(map[*pushClient]struct{})
		h.clients[c.correlationID] = set
	}
	set[c] = struct{}{}
}

// replay 在连接注册之后读取历史，保证读取之后落库的事件都会走实时推送
func (h *PushHub) replay(ctx context.Context, c *pushClient) {
	var frames []pushFrame
	if h.history != nil {
		records, err := h.history.ListByCorrelationID(ctx, c.correlationID)
		if err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("correlation_id", c.correlationID).Msg("Load saga history for push failed")
		}
		for _, r := range records {
			frame, err := newPushFrame(PushMessage{
				EventID:       r.EventID,
				CorrelationID: r.CorrelationID,
				EventType:     r.EventType,
				Status:        string(r.Status),
				Data:          r.Data,
				Timestamp:     r.Timestamp,
			})
			if err != nil {
				continue
			}
			frames = append(frames, frame)
		}
	}
	if dropped := c.finishReplay(frames); dropped > 0 {
		logger.Ctx(ctx).Warn().Int("dropped", dropped).Msg("Push client backlog overflowed during replay")
	}
}

// offer 返回 false 表示消息因缓冲已满被丢弃
func (c *pushClient) offer(f pushFrame) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	if c.replaying {
		c.backlog = append(c.backlog, f)
		return true
	}
	return c.enqueue(f)
}

// enqueue 调用方持有 mu
func (c *pushClient) enqueue(f pushFrame) bool {
	if _, dup := c.seen[f.eventID]; dup {
		return true
	}
	select {
	case c.send <- f.payload:
		c.seen[f.eventID] = struct{}{}
		return true
	default:
		return false
	}
}

func (c *pushClient) finishReplay(history []pushFrame) (dropped int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0
	}
	for _, f := range append(history, c.backlog...) {
		if !c.enqueue(f) {
			dropped++
		}
	}
	c.backlog = nil
	c.replaying = false
	return dropped
}

func (c *pushClient) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ServeWS 处理 /ws/booking/{id}
func (h *PushHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	correlationID := strings.TrimSpace(r.PathValue("id"))
	if correlationID == "" {
		http.Error(w, "correlation id is required", http.StatusBadRequest)
		return
	}
	select {
	case <-h.done:
		http.Error(w, "push hub is stopped", http.StatusServiceUnavailable)
		return
	default:
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Ctx(r.Context()).Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	c := &pushClient{
		hub:           h,
		conn:          conn,
		send:          make(chan []byte, sendBufferSize),
		correlationID: correlationID,
		replaying:     true,
		seen:          make(map[string]struct{}),
	}
	select {
	case <-h.done:
		conn.Close()
		return
	default:
	}
	h.add(c)

	go c.writePump()
	go c.readPump()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), writeWait)
	defer cancel()
	h.replay(ctx, c)
}

// readPump 只处理 pong 与关闭，客户端不会发送业务消息
func (c *pushClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *pushClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
