package kafka

import (
	"fmt"
	"strconv"
)

// CanalMessage 定义了 Canal 推送到 Kafka 的 JSON 数据结构
type CanalMessage struct {
	ID       int64    `json:"id"`
	Database string   `json:"database"`
	Table    string   `json:"table"`
	PKNames  []string `json:"pkNames"`
	IsDDL    bool     `json:"isDdl"`
	Type     string   `json:"type"`
	ES       int64    `json:"es"`
	TS       int64    `json:"ts"`

	// Data 存储变更后的数据
	Data []map[string]interface{} `json:"data"`

	// Old 存储变更前的数据
	Old []map[string]interface{} `json:"old"`
}

// StrToUint64 canal 的列值统一序列化为字符串, 兼容数字
func StrToUint64(v interface{}) uint64 {
	switch val := v.(type) {
	case string:
		n, _ := strconv.ParseUint(val, 10, 64)
		return n
	case float64:
		return uint64(val)
	case nil:
		return 0
	default:
		n, _ := strconv.ParseUint(fmt.Sprint(val), 10, 64)
		return n
	}
}
