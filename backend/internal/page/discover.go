package page

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// BlockAttr 标记可编辑区域的属性
const BlockAttr = "data-block-id"

// Block 是页面标记里的一个可编辑区域及其默认内容
type Block struct {
	Key  string
	HTML string // 元素的 inner HTML
	Text string // 纯文本，<br> 记为换行
}

// Content 按编辑模式返回默认内容
func (b Block) Content(plain bool) string {
	if plain {
		return b.Text
	}
	return b.HTML
}

// Discover 按文档顺序找出所有带 data-block-id 的元素。
// 同一个 key 出现多次时以第一次为准，空 key 忽略。
func Discover(r io.Reader) ([]Block, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	var (
		out  []Block
		seen = map[string]bool{}
	)
	var walk func(n *html.Node) error
	walk = func(n *html.Node) error {
		if n.Type == html.ElementNode {
			if key, ok := attr(n, BlockAttr); ok {
				key = strings.TrimSpace(key)
				if key != "" && !seen[key] {
					seen[key] = true
					inner, err := innerHTML(n)
					if err != nil {
						return err
					}
					out = append(out, Block{Key: key, HTML: inner, Text: innerText(n)})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}
	return out, nil
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func innerHTML(n *html.Node) (string, error) {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", err
		}
	}
	return strings.TrimSpace(buf.String()), nil
}

func innerText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			sb.WriteString(n.Data)
		case n.Type == html.ElementNode && n.DataAtom == atom.Br:
			sb.WriteByte('\n')
		case n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style):
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return strings.TrimSpace(sb.String())
}
