package store

import "time"

// History 记录条目的审计时间
type History struct {
	CreatedAt      time.Time `json:"createdTimestamp"`
	LastModifiedAt time.Time `json:"lastModifiedTimestamp,omitempty"`
}

// Item 通用条目，(schema_name, id) 唯一
type Item struct {
	Schema    string         `gorm:"column:schema_name;primaryKey;size:64"`
	ID        string         `gorm:"column:id;primaryKey;size:128"`
	Data      map[string]any `gorm:"column:data;serializer:json;type:text"`
	Version   int            `gorm:"column:version;not null;default:1"`
	History   History        `gorm:"column:history;serializer:json;type:text"`
	Seq       int64          `gorm:"column:seq;not null;default:0;index"`
	CreatedAt time.Time      `gorm:"column:created_at"`
	UpdatedAt time.Time      `gorm:"column:updated_at"`
}

// TableName 表名
func (Item) TableName() string {
	return "items"
}

// String 读取字符串字段，缺失或类型不符时返回空串
func (i Item) String(field string) string {
	s, _ := i.Data[field].(string)
	return s
}

// Strings 读取列表字段，兼容 []string 与 JSON 解码出的 []any
func (i Item) Strings(field string) []string {
	out, _ := stringList(i.Data[field])
	return out
}

func stringList(v any) ([]string, bool) {
	switch list := v.(type) {
	case nil:
		return nil, true
	case []string:
		return append([]string(nil), list...), true
	case []any:
		out := make([]string, 0, len(list))
		for _, e := range list {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func copyRecord(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
