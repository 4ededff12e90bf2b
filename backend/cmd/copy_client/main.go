package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"copyEditor/backend/config"
	"copyEditor/backend/internal/client"
	"copyEditor/backend/internal/editor"
	"copyEditor/backend/internal/page"
)

func initConfig() (*config.Config, []string, error) {
	fs := pflag.NewFlagSet("copy_client", pflag.ExitOnError)
	path := fs.String("config", "", "path to copyConfig.yaml")
	fs.String("server", "http://localhost:3000", "copy server base URL")
	fs.String("page", "", "HTML page whose [data-block-id] elements are editable")
	fs.String("mode", "rich", "rich | plain")
	fs.Int("quiet-ms", 500, "autosave quiet interval in milliseconds")
	keys := fs.StringSlice("blocks", nil, "block keys to register when no page is given")
	_ = fs.Parse(os.Args[1:])
	cfg, err := config.Load(*path, fs)
	return cfg, *keys, err
}

func loadBlocks(pagePath string, keys []string, plain bool) ([]editor.Block, error) {
	if pagePath == "" {
		out := make([]editor.Block, 0, len(keys))
		for _, k := range keys {
			out = append(out, editor.Block{Key: k})
		}
		return out, nil
	}
	f, err := os.Open(pagePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	found, err := page.Discover(f)
	if err != nil {
		return nil, err
	}
	out := make([]editor.Block, 0, len(found))
	for _, b := range found {
		out = append(out, editor.Block{Key: b.Key, Content: b.Content(plain)})
	}
	return out, nil
}

func main() {
	cfg, keys, err := initConfig()
	if err != nil {
		log.Fatalf("init config failed: %v", err)
	}
	tr, err := editor.TransformFor(cfg.Editor.Mode)
	if err != nil {
		log.Fatalf("editor mode: %v", err)
	}
	list, err := loadBlocks(cfg.Client.Page, keys, tr.Mode() == editor.ModePlain)
	if err != nil {
		log.Fatalf("load page failed: %v", err)
	}
	if len(list) == 0 {
		log.Fatalf("no editable blocks: pass --page or --blocks")
	}

	api := client.New(cfg.Client.Server, time.Duration(cfg.Client.TimeoutMs)*time.Millisecond)
	surface := newTerminalSurface(os.Stdout)
	ctrl := editor.NewController(editor.NewRegistry(list), api, surface, editor.Config{
		Transform:     tr,
		QuietInterval: cfg.Editor.QuietInterval(),
		StatusLinger:  cfg.Editor.StatusLinger(),
		SaveTimeout:   cfg.Editor.SaveTimeout(),
	})
	surface.ctrl = ctrl

	// 回填失败时继续用页面默认内容
	if err := ctrl.Start(context.Background()); err != nil {
		log.Printf("hydrate from %s failed: %v", api.URL(), err)
	}
	fmt.Printf("%d blocks, mode=%s, server=%s. type 'help' for commands\n", len(list), tr.Mode(), api.URL())

	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		if !run(ctrl, surface, strings.TrimSpace(sc.Text())) {
			break
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ctrl.Shutdown(ctx); err != nil {
		log.Printf("pending save not finished: %v", err)
	}
}

const help = `commands:
  open <key>            start editing a block
  type <text>           replace the open block's content (\n for newline)
  append <text>         append to the open block
  close | done          finish editing (schedules autosave)
  key <name> [mods]     keyboard event, e.g. "key Enter", "key b ctrl"
  bold | italic | clear formatting commands
  link <url>            wrap content in a link
  paste <text>          insert plain text
  save                  save now without waiting
  status | blocks       show state
  quit`

// run 执行一行命令，返回 false 表示退出
func run(ctrl *editor.Controller, s *terminalSurface, line string) bool {
	if line == "" {
		return true
	}
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.ReplaceAll(arg, `\n`, "\n")
	var err error
	switch strings.ToLower(cmd) {
	case "help", "?":
		fmt.Println(help)
	case "open":
		err = ctrl.Open(arg)
	case "type":
		_, key := ctrl.State()
		err = ctrl.Input(key, arg)
	case "append":
		_, key := ctrl.State()
		cur, _ := ctrl.Registry().Get(key)
		err = ctrl.Input(key, cur+arg)
	case "close", "done", "cancel", "esc":
		ctrl.Close()
	case "key":
		err = handleKey(ctrl, arg)
	case "link":
		err = ctrl.Format(editor.CmdCreateLink, arg)
	case "paste":
		err = ctrl.Format(editor.CmdInsertPlainText, arg)
	case "save":
		if !ctrl.SaveNow() {
			fmt.Println("nothing pending")
		}
	case "status":
		st, key := ctrl.State()
		fmt.Printf("state=%s block=%q dirty=%v status=%q\n", st, key, ctrl.Dirty(), ctrl.Status())
	case "blocks":
		reg := ctrl.Registry()
		for _, k := range reg.Keys() {
			v, _ := reg.Get(k)
			fmt.Printf("  %-16s %q\n", k, v)
		}
	case "quit", "exit":
		return false
	default:
		var c editor.Command
		if c, err = editor.ParseCommand(cmd); err == nil {
			err = ctrl.Format(c, arg)
		}
	}
	if err != nil {
		fmt.Printf("error: %v\n", err)
	}
	return true
}

func handleKey(ctrl *editor.Controller, arg string) error {
	fields := strings.Fields(arg)
	if len(fields) == 0 {
		return fmt.Errorf("key name required")
	}
	ev := editor.KeyEvent{Key: fields[0]}
	for _, m := range fields[1:] {
		switch strings.ToLower(m) {
		case "shift":
			ev.Shift = true
		case "ctrl":
			ev.Ctrl = true
		case "meta", "cmd":
			ev.Meta = true
		}
	}
	if !ctrl.HandleKey(ev) {
		fmt.Println("(not handled)")
	}
	return nil
}
