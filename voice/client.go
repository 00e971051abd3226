package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// ErrClientDisconnected 客户端正常断开（关闭帧、EOF）
var ErrClientDisconnected = errors.New("voice: client disconnected")

// ClientConn 是会话与客户端之间的双向连接
type ClientConn interface {
	// ReadAudio 阻塞直到收到下一帧二进制音频；客户端断开时返回 ErrClientDisconnected
	ReadAudio(ctx context.Context) ([]byte, error)

	// WriteJSON 发送一条 JSON 消息
	WriteJSON(ctx context.Context, msg ClientMessage) error

	// WriteAudio 发送一块二进制音频
	WriteAudio(ctx context.Context, chunk []byte) error

	// Close 关闭连接，只有第一次调用生效
	Close(reason string) error
}

// WebsocketClient 基于 coder/websocket 的 ClientConn 实现
type WebsocketClient struct {
	conn *websocket.Conn

	closeOnce sync.Once
	closeErr  error
}

// NewWebsocketClient 包装已经完成握手的连接
func NewWebsocketClient(conn *websocket.Conn) *WebsocketClient {
	return &WebsocketClient{conn: conn}
}

// ReadAudio 读取下一帧二进制消息，文本帧被忽略
func (c *WebsocketClient) ReadAudio(ctx context.Context) ([]byte, error) {
	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			return nil, classifyReadError(err)
		}
		if typ == websocket.MessageBinary {
			return data, nil
		}
	}
}

// WriteJSON 发送 JSON 文本帧
func (c *WebsocketClient) WriteJSON(ctx context.Context, msg ClientMessage) error {
	if err := wsjson.Write(ctx, c.conn, msg); err != nil {
		return classifyWriteError(err)
	}
	return nil
}

// WriteAudio 发送二进制帧
func (c *WebsocketClient) WriteAudio(ctx context.Context, chunk []byte) error {
	if err := c.conn.Write(ctx, websocket.MessageBinary, chunk); err != nil {
		return classifyWriteError(err)
	}
	return nil
}

// Close 以正常关闭码关闭连接
func (c *WebsocketClient) Close(reason string) error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close(websocket.StatusNormalClosure, reason)
	})
	return c.closeErr
}

func isDisconnect(err error) bool {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway, websocket.StatusNoStatusRcvd:
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed)
}

func classifyReadError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if isDisconnect(err) {
		return fmt.Errorf("%w: %v", ErrClientDisconnected, err)
	}
	return fmt.Errorf("read client audio: %w", err)
}

func classifyWriteError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if isDisconnect(err) {
		return fmt.Errorf("%w: %v", ErrClientDisconnected, err)
	}
	return fmt.Errorf("write to client: %w", err)
}
