package dap_debugger

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	e "github.com/fansqz/debugview/error"
	"github.com/fansqz/debugview/utils/gosync"
	"github.com/google/go-dap"
	"github.com/sirupsen/logrus"
)

// EventCallback 处理调试适配器发来的事件，在读协程中执行
type EventCallback func(event dap.EventMessage)

// Client 调试适配器的客户端
// 请求按seq和响应对应，事件交给回调处理
type Client struct {
	reader *bufio.Reader
	writer io.WriteCloser

	sendLock sync.Mutex
	seq      int64

	pendingLock sync.Mutex
	pending     map[int]chan dap.ResponseMessage

	onEvent EventCallback

	done      chan struct{}
	closeOnce sync.Once
	err       error
}

// NewClient 创建客户端并启动读协程，r和w通常是适配器进程的stdout和stdin
func NewClient(r io.Reader, w io.WriteCloser, onEvent EventCallback) *Client {
	c := &Client{
		reader:  bufio.NewReader(r),
		writer:  w,
		pending: map[int]chan dap.ResponseMessage{},
		onEvent: onEvent,
		done:    make(chan struct{}),
	}
	gosync.Go(context.Background(), c.receiveLoop)
	return c
}

// Send 发送请求并等待响应，响应success为false时返回错误
func (c *Client) Send(ctx context.Context, request dap.RequestMessage) (dap.ResponseMessage, error) {
	req := request.GetRequest()
	req.Seq = int(atomic.AddInt64(&c.seq, 1))
	req.Type = "request"

	ch := make(chan dap.ResponseMessage, 1)
	c.pendingLock.Lock()
	if c.pending == nil {
		c.pendingLock.Unlock()
		return nil, e.ErrDebuggerIsClosed
	}
	c.pending[req.Seq] = ch
	c.pendingLock.Unlock()
	defer c.removePending(req.Seq)

	logrus.Debugf("[dap] <- %s seq = %d", req.Command, req.Seq)
	c.sendLock.Lock()
	err := dap.WriteProtocolMessage(c.writer, request)
	c.sendLock.Unlock()
	if err != nil {
		return nil, fmt.Errorf("send %s: %w", req.Command, err)
	}

	select {
	case response, ok := <-ch:
		if !ok {
			return nil, e.ErrDebuggerIsClosed
		}
		if !response.GetResponse().Success {
			return response, fmt.Errorf("%s: %s", req.Command, ResponseMessage(response))
		}
		return response, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", req.Command, e.ErrRequestTimeout)
	}
}

func (c *Client) removePending(seq int) {
	c.pendingLock.Lock()
	defer c.pendingLock.Unlock()
	delete(c.pending, seq)
}

// ResponseMessage 取出失败响应的错误描述
func ResponseMessage(response dap.ResponseMessage) string {
	if er, ok := response.(*dap.ErrorResponse); ok && er.Body.Error != nil && er.Body.Error.Format != "" {
		return er.Body.Error.Format
	}
	if msg := response.GetResponse().Message; msg != "" {
		return msg
	}
	return "request failed"
}

// Close 关闭写端，读协程在适配器退出后结束
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.writer.Close()
	})
	return err
}

// Done 读协程结束时关闭
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err 读协程结束的原因
func (c *Client) Err() error {
	<-c.done
	return c.err
}

// receiveLoop 循环读取适配器的消息
func (c *Client) receiveLoop(ctx context.Context) {
	defer close(c.done)
	for {
		message, err := dap.ReadProtocolMessage(c.reader)
		if err != nil {
			var fieldError *dap.DecodeProtocolMessageFieldError
			if errors.As(err, &fieldError) {
				// 不认识的消息，跳过继续读
				logrus.Warnf("[dap] %v", err)
				continue
			}
			if !errors.Is(err, io.EOF) {
				logrus.Errorf("[dap] read message fail, err = %v", err)
			}
			c.err = err
			break
		}
		c.dispatch(message)
	}
	// 唤醒所有等待中的请求
	c.pendingLock.Lock()
	for _, ch := range c.pending {
		close(ch)
	}
	c.pending = nil
	c.pendingLock.Unlock()
}

func (c *Client) dispatch(message dap.Message) {
	switch message := message.(type) {
	case dap.ResponseMessage:
		response := message.GetResponse()
		logrus.Debugf("[dap] -> %s response, request_seq = %d, success = %v",
			response.Command, response.RequestSeq, response.Success)
		c.pendingLock.Lock()
		ch, ok := c.pending[response.RequestSeq]
		if ok {
			delete(c.pending, response.RequestSeq)
		}
		c.pendingLock.Unlock()
		if ok {
			ch <- message
		} else {
			logrus.Warnf("[dap] response without pending request: %s", response.Command)
		}
	case dap.EventMessage:
		logrus.Debugf("[dap] -> %s event", message.GetEvent().Event)
		if c.onEvent != nil {
			c.onEvent(message)
		}
	case dap.RequestMessage:
		// 没有声明支持任何反向请求
		logrus.Warnf("[dap] ignore reverse request %s", message.GetRequest().Command)
	default:
		logrus.Warnf("[dap] unexpected message %T", message)
	}
}
