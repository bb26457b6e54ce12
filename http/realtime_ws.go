package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"finassist/market"
	"finassist/market/providers"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second

	// 行情推送间隔
	quotePushInterval = 5 * time.Second
)

// QuoteHub 实时行情推送中心
// 客户端订阅股票代码，按固定间隔收到最新行情
type QuoteHub struct {
	manager  *providers.Manager
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*quoteClient]bool

	stop chan struct{}
	done chan struct{}
}

type quoteClient struct {
	hub  *QuoteHub
	conn *websocket.Conn
	send chan []byte

	mu   sync.RWMutex
	subs map[string]bool
}

// clientMessage 客户端消息
type clientMessage struct {
	Action  string   `json:"action"` // subscribe, unsubscribe, ping
	TsCodes []string `json:"ts_codes,omitempty"`
}

// quotePush 推送给客户端的行情消息
type quotePush struct {
	Type      string        `json:"type"`
	Quote     *market.Quote `json:"quote,omitempty"`
	Timestamp int64         `json:"timestamp"`
}

// NewQuoteHub 创建行情推送中心
func NewQuoteHub(manager *providers.Manager, logger *zap.Logger) *QuoteHub {
	return &QuoteHub{
		manager: manager,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // CORS在中间件层控制
			},
		},
		clients: make(map[*quoteClient]bool),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start 启动推送循环
func (h *QuoteHub) Start() {
	go h.pushLoop()
}

// Stop 停止推送并断开所有客户端
func (h *QuoteHub) Stop() {
	close(h.stop)
	<-h.done

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		client.conn.Close()
	}
	h.clients = make(map[*quoteClient]bool)
}

// HandleWS 处理WebSocket升级请求
func (h *QuoteHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &quoteClient{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 64),
		subs: make(map[string]bool),
	}

	// 支持 ?ts_codes=000001.SZ,600519.SH 直接订阅
	if raw := r.URL.Query().Get("ts_codes"); raw != "" {
		client.subscribe(splitCodes(raw))
	}

	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()

	h.logger.Info("websocket client connected", zap.Int("total", h.ClientCount()))

	go client.writePump()
	go client.readPump()
}

// ClientCount 当前连接数
func (h *QuoteHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// pushLoop 定时拉取已订阅股票的行情并推送
func (h *QuoteHub) pushLoop() {
	defer close(h.done)

	ticker := time.NewTicker(quotePushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			h.pushQuotes()
		}
	}
}

func (h *QuoteHub) pushQuotes() {
	codes := h.subscribedCodes()
	if len(codes) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), quotePushInterval)
	defer cancel()

	for _, tsCode := range codes {
		quote, err := h.manager.GetQuote(ctx, tsCode)
		if err != nil {
			h.logger.Debug("quote push fetch failed",
				zap.String("ts_code", tsCode), zap.Error(err))
			continue
		}

		payload, err := json.Marshal(quotePush{
			Type:      "quote",
			Quote:     quote,
			Timestamp: time.Now().Unix(),
		})
		if err != nil {
			continue
		}
		h.broadcast(tsCode, payload)
	}
}

// subscribedCodes 所有客户端订阅代码的并集
func (h *QuoteHub) subscribedCodes() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	set := make(map[string]bool)
	for client := range h.clients {
		client.mu.RLock()
		for tsCode := range client.subs {
			set[tsCode] = true
		}
		client.mu.RUnlock()
	}

	codes := make([]string, 0, len(set))
	for tsCode := range set {
		codes = append(codes, tsCode)
	}
	return codes
}

// broadcast 推送给订阅了该代码的客户端，发送队列满则丢弃
func (h *QuoteHub) broadcast(tsCode string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if !client.subscribed(tsCode) {
			continue
		}
		select {
		case client.send <- payload:
		default:
		}
	}
}

func (h *QuoteHub) removeClient(client *quoteClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[client] {
		delete(h.clients, client)
		close(client.send)
	}
}

func (c *quoteClient) subscribed(tsCode string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subs[tsCode]
}

func (c *quoteClient) subscribe(tsCodes []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, tsCode := range tsCodes {
		if _, _, err := providers.SplitTsCode(tsCode); err == nil {
			c.subs[tsCode] = true
		}
	}
}

func (c *quoteClient) unsubscribe(tsCodes []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, tsCode := range tsCodes {
		delete(c.subs, tsCode)
	}
}

func (c *quoteClient) readPump() {
	defer func() {
		c.hub.removeClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Action {
		case "subscribe":
			c.subscribe(msg.TsCodes)
		case "unsubscribe":
			c.unsubscribe(msg.TsCodes)
		case "ping":
			pong, _ := json.Marshal(map[string]string{"type": "pong"})
			select {
			case c.send <- pong:
			default:
			}
		}
	}
}

func (c *quoteClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func splitCodes(raw string) []string {
	var codes []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			codes = append(codes, part)
		}
	}
	return codes
}
