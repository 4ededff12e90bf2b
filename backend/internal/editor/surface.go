package editor

import (
	"fmt"
	"strings"
)

type Command string

const (
	CmdBold            Command = "bold"
	CmdItalic          Command = "italic"
	CmdCreateLink      Command = "createLink"
	CmdRemoveFormat    Command = "removeFormat"
	CmdInsertPlainText Command = "insertText"
)

func ParseCommand(s string) (Command, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bold", "b":
		return CmdBold, nil
	case "italic", "i":
		return CmdItalic, nil
	case "createlink", "link":
		return CmdCreateLink, nil
	case "removeformat", "clear":
		return CmdRemoveFormat, nil
	case "inserttext", "paste":
		return CmdInsertPlainText, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCommand, s)
}

// Surface 是页面/UI 一侧。控制器只决定何时可编辑、工具栏显隐和状态文字，
// 具体怎么渲染、格式命令怎么作用到内容上都由 Surface 负责。
// Surface 的方法不能同步回调 Controller（Exec 除外）。
type Surface interface {
	SetEditable(key string, editable bool)
	SetToolbarVisible(key string, visible bool)
	SetStatus(status string)
	Render(key, content string)
	// Exec 作用于当前打开的 block；内容变化后由 Surface 调用 Controller.Input 回报
	Exec(key string, cmd Command, arg string) error
}

// NopSurface 用于无界面的场景
type NopSurface struct{}

func (NopSurface) SetEditable(string, bool)           {}
func (NopSurface) SetToolbarVisible(string, bool)     {}
func (NopSurface) SetStatus(string)                   {}
func (NopSurface) Render(string, string)              {}
func (NopSurface) Exec(string, Command, string) error { return nil }
