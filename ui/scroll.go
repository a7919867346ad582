package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
)

// scroller 面板的滚动位置，行的裁剪交给viewport
type scroller struct {
	viewport viewport.Model
	// follow 内容变化以后停在最后一行
	follow bool
}

func newScroller(follow bool) *scroller {
	return &scroller{viewport: viewport.New(0, 0), follow: follow}
}

// visible 返回当前能看到的不超过height行
func (s *scroller) visible(lines []string, height int) []string {
	if len(lines) == 0 || height <= 0 {
		return nil
	}
	s.viewport.Height = height
	s.viewport.SetContent(strings.Join(lines, "\n"))
	if s.follow {
		s.viewport.GotoBottom()
	} else {
		// 内容变少或者面板变高以后不能停在最后一行之后
		s.viewport.SetYOffset(s.viewport.YOffset)
	}
	start := s.viewport.YOffset
	end := min(start+height, len(lines))
	return lines[start:end]
}

// Offset 第一行可见内容的序号
func (s *scroller) Offset() int {
	return s.viewport.YOffset
}

func (s *scroller) top() {
	s.viewport.SetYOffset(0)
}

// scroll 处理方向键和翻页键，返回按键是否被处理
func (s *scroller) scroll(key string) bool {
	switch key {
	case "up", "k":
		s.viewport.ScrollUp(1)
	case "down", "j":
		s.viewport.ScrollDown(1)
	case "pgup":
		s.viewport.PageUp()
	case "pgdown":
		s.viewport.PageDown()
	case "home", "g":
		s.viewport.GotoTop()
	case "end", "G":
		s.viewport.GotoBottom()
	default:
		return false
	}
	return true
}

// followScroll 用户滚到最后一行时恢复跟随
func (s *scroller) followScroll(key string) bool {
	if !s.scroll(key) {
		return false
	}
	s.follow = s.viewport.AtBottom()
	return true
}
