package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

// BroadcastAll 订阅全部任务的通配 job id
const BroadcastAll int64 = 0

// Hub 按任务维度管理进度订阅连接
// 同一任务可以有多个连接（多标签页、重连等场景）
type Hub struct {
	clients map[int64]map[*Client]struct{}
	mu      sync.RWMutex
}

// Client 单个 WebSocket 连接，订阅一个任务或全部任务
type Client struct {
	JobID int64
	Conn  *websocket.Conn
	mu    sync.Mutex // 写锁，防止并发写入
}

type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[int64]map[*Client]struct{}),
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.JobID] == nil {
		h.clients[client.JobID] = make(map[*Client]struct{})
	}
	h.clients[client.JobID][client] = struct{}{}

	log.Printf("Progress subscriber connected for job %d, total: %d", client.JobID, h.totalLocked())
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.clients[client.JobID]; ok {
		delete(conns, client)
		if len(conns) == 0 {
			delete(h.clients, client.JobID)
		}
	}
	log.Printf("Progress subscriber disconnected for job %d", client.JobID)
}

// SendToJob 向任务订阅者和通配订阅者推送消息
func (h *Hub) SendToJob(jobID int64, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.mu.RLock()
	// 复制一份引用，避免长时间持锁
	clients := make([]*Client, 0)
	for c := range h.clients[jobID] {
		clients = append(clients, c)
	}
	if jobID != BroadcastAll {
		for c := range h.clients[BroadcastAll] {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.mu.Lock()
		err := c.Conn.WriteMessage(websocket.TextMessage, data)
		c.mu.Unlock()
		if err != nil {
			log.Printf("SendToJob write error for job %d: %v", jobID, err)
		}
	}
	return nil
}

// SubscriberCount 任务的订阅连接数
func (h *Hub) SubscriberCount(jobID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[jobID])
}

// ConnectionCount 在线连接总数
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalLocked()
}

func (h *Hub) totalLocked() int {
	total := 0
	for _, conns := range h.clients {
		total += len(conns)
	}
	return total
}
