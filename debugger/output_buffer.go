package debugger

import (
	"bytes"
	"sync"
	"unicode/utf8"
)

// OutputBuffer 被调试程序的输出缓冲
// 读协程写入，界面线程按块非阻塞读取
type OutputBuffer struct {
	lock sync.Mutex
	buf  bytes.Buffer
}

func NewOutputBuffer() *OutputBuffer {
	return &OutputBuffer{}
}

// Write 实现io.Writer
func (o *OutputBuffer) Write(p []byte) (int, error) {
	o.lock.Lock()
	defer o.lock.Unlock()
	return o.buf.Write(p)
}

// WriteString 写入字符串
func (o *OutputBuffer) WriteString(s string) {
	_, _ = o.Write([]byte(s))
}

// Read 读取最多max字节，不会截断一个utf8字符，没有数据时返回空字符串
func (o *OutputBuffer) Read(max int) string {
	o.lock.Lock()
	defer o.lock.Unlock()
	if max <= 0 || o.buf.Len() == 0 {
		return ""
	}
	data := o.buf.Bytes()
	n := max
	if n >= len(data) {
		n = len(data)
	} else {
		// 回退到完整字符的边界
		for n > 0 && !utf8.RuneStart(data[n]) {
			n--
		}
		if n == 0 {
			n = max
		}
	}
	return string(o.buf.Next(n))
}

// Len 缓冲中未读取的字节数
func (o *OutputBuffer) Len() int {
	o.lock.Lock()
	defer o.lock.Unlock()
	return o.buf.Len()
}
