package render

import (
	"fmt"
	"strconv"
)

// Record 是一份可编辑的扁平字段记录（CV 或求职信），field_name -> 值。
// 渲染期间视为不可变快照；所有更新操作都返回新的副本。
type Record map[string]string

// Get returns the value for key, or the empty string when the key is absent.
func (r Record) Get(key string) string {
	if r == nil {
		return ""
	}
	return r[key]
}

// Merge 返回 base 与 patch 的浅合并副本：patch 中出现的字段覆盖旧值，
// 未出现的字段保留原值。两个入参都不会被修改。
func (r Record) Merge(patch Record) Record {
	merged := make(Record, len(r)+len(patch))
	for k, v := range r {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	return merged
}

// WithField 返回设置了单个字段的新副本，原记录保持不变。
// 编辑器每次按键都通过它产生新的渲染快照。
func (r Record) WithField(key, value string) Record {
	next := make(Record, len(r)+1)
	for k, v := range r {
		next[k] = v
	}
	next[key] = value
	return next
}

// RecordFromJSONMap 把外部负载（JSONB 行、webhook 的 cv_data/cl_data）转为
// Record，并在边界处做一次性防御兜底：null 变空串，数字转十进制字符串。
func RecordFromJSONMap(m map[string]any) Record {
	rec := make(Record, len(m))
	for k, v := range m {
		rec[k] = coerceString(v)
	}
	return rec
}

func coerceString(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(value)
	default:
		return fmt.Sprint(value)
	}
}

// JSONMap 将记录转回 map[string]any，便于写入 JSONB 列。
func (r Record) JSONMap() map[string]any {
	m := make(map[string]any, len(r))
	for k, v := range r {
		m[k] = v
	}
	return m
}
