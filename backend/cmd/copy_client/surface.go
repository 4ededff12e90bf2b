package main

import (
	"fmt"
	"html"
	"io"
	"sync"

	"copyEditor/backend/internal/editor"
)

// terminalSurface 把界面变化打印到终端，格式命令直接改写整块内容
type terminalSurface struct {
	mu   sync.Mutex
	out  io.Writer
	ctrl *editor.Controller
}

func newTerminalSurface(out io.Writer) *terminalSurface {
	return &terminalSurface{out: out}
}

func (s *terminalSurface) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

func (s *terminalSurface) SetEditable(key string, editable bool) {
	if editable {
		s.printf("[%s] editing\n", key)
	} else {
		s.printf("[%s] closed\n", key)
	}
}

func (s *terminalSurface) SetToolbarVisible(key string, visible bool) {}

func (s *terminalSurface) SetStatus(status string) {
	if status != "" {
		s.printf("status: %s\n", status)
	}
}

func (s *terminalSurface) Render(key, content string) {
	s.printf("[%s] = %q\n", key, content)
}

func (s *terminalSurface) Exec(key string, cmd editor.Command, arg string) error {
	cur, _ := s.ctrl.Registry().Get(key)
	var next string
	switch cmd {
	case editor.CmdBold:
		next = "<b>" + cur + "</b>"
	case editor.CmdItalic:
		next = "<i>" + cur + "</i>"
	case editor.CmdCreateLink:
		next = `<a href="` + html.EscapeString(arg) + `">` + cur + "</a>"
	case editor.CmdRemoveFormat:
		next = editor.StripTags(cur)
	case editor.CmdInsertPlainText:
		next = cur + arg
	default:
		return fmt.Errorf("unsupported command %s", cmd)
	}
	return s.ctrl.Input(key, next)
}
