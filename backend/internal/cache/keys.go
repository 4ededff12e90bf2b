package cache

import "fmt"

// 键语义：
// - documentKey(name): 整份文档的 JSON 快照（String）
// - versionKey(name): 文档版本号（INCR），每次合并后递增
// - updatesChannel(name): 合并成功后的通知频道（Pub/Sub）
//
// {} 包住 hash tag，集群模式下同一文档的键落在同一个 slot，WATCH/MULTI 才能跨键使用

const (
	keyDocumentFmt = "copy:{doc:%s}"
	keyVersionFmt  = "copy:{doc:%s}:ver"
	keyUpdatesFmt  = "copy:updates:{doc:%s}"
)

func documentKey(name string) string    { return fmt.Sprintf(keyDocumentFmt, name) }
func versionKey(name string) string     { return fmt.Sprintf(keyVersionFmt, name) }
func updatesChannel(name string) string { return fmt.Sprintf(keyUpdatesFmt, name) }
