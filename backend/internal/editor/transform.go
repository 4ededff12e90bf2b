package editor

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	ModeRich  = "rich"
	ModePlain = "plain"
)

// Transform 在显示内容与存储内容之间转换，由配置选定
type Transform interface {
	Mode() string
	// ToStorage 保存前调用
	ToStorage(content string) string
	// ToDisplay 回填（hydration）时调用
	ToDisplay(stored string) string
}

// rich：内容就是 HTML，两个方向都原样透传
type RichTransform struct{}

func (RichTransform) Mode() string                    { return ModeRich }
func (RichTransform) ToStorage(content string) string { return content }
func (RichTransform) ToDisplay(stored string) string  { return stored }

// plain：纯文本（保留换行），形如 <...> 的片段一律去掉
type PlainTransform struct{}

func (PlainTransform) Mode() string                    { return ModePlain }
func (PlainTransform) ToStorage(content string) string { return StripTags(content) }
func (PlainTransform) ToDisplay(stored string) string  { return StripTags(stored) }

// 例如 <div>、</p>、<br/>
var tagPattern = regexp.MustCompile(`</?[^>]+>`)

// StripTags 去掉所有标签片段。结果是不动点：再 strip 一次不会变化。
func StripTags(s string) string {
	if !strings.ContainsRune(s, '<') {
		return s
	}
	return tagPattern.ReplaceAllString(s, "")
}

func TransformFor(mode string) (Transform, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", ModeRich, "html":
		return RichTransform{}, nil
	case ModePlain, "text", "linebreaks":
		return PlainTransform{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}
