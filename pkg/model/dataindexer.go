package model

import (
	"sort"
	"sync"

	"github.com/caidan/caidan/pkg/errors"
)

// 常用的数据键
const (
	KeyPrepMinutes = "prep_minutes"
	KeyCookMinutes = "cook_minutes"
	KeyRestMinutes = "rest_minutes"
	KeyPrice       = "price"
)

// DataIndexer 为食谱的数值属性（营养素、价格、时间等）分配稳定的整数ID
type DataIndexer struct {
	mu   sync.RWMutex
	ids  map[string]int
	keys []string
}

// NewDataIndexer 创建数据索引器
func NewDataIndexer(keys ...string) (*DataIndexer, error) {
	di := &DataIndexer{ids: make(map[string]int)}
	for _, k := range keys {
		if _, err := di.Add(k); err != nil {
			return nil, err
		}
	}
	return di, nil
}

// Add 注册一个数据键并返回其ID，重复注册返回错误
func (di *DataIndexer) Add(key string) (int, error) {
	di.mu.Lock()
	defer di.mu.Unlock()

	if _, ok := di.ids[key]; ok {
		return 0, errors.DuplicateDataKey(key)
	}
	id := len(di.keys)
	di.ids[key] = id
	di.keys = append(di.keys, key)
	return id, nil
}

// Ensure 返回键的ID，不存在时注册
func (di *DataIndexer) Ensure(key string) int {
	di.mu.Lock()
	defer di.mu.Unlock()

	if id, ok := di.ids[key]; ok {
		return id
	}
	id := len(di.keys)
	di.ids[key] = id
	di.keys = append(di.keys, key)
	return id
}

// ID 返回键对应的ID
func (di *DataIndexer) ID(key string) (int, error) {
	di.mu.RLock()
	defer di.mu.RUnlock()

	id, ok := di.ids[key]
	if !ok {
		return 0, errors.UnknownDataKey(key)
	}
	return id, nil
}

// Has 键是否已注册
func (di *DataIndexer) Has(key string) bool {
	di.mu.RLock()
	defer di.mu.RUnlock()
	_, ok := di.ids[key]
	return ok
}

// Key 返回ID对应的键
func (di *DataIndexer) Key(id int) string {
	di.mu.RLock()
	defer di.mu.RUnlock()
	if id < 0 || id >= len(di.keys) {
		return ""
	}
	return di.keys[id]
}

// Len 已注册的键数量
func (di *DataIndexer) Len() int {
	di.mu.RLock()
	defer di.mu.RUnlock()
	return len(di.keys)
}

// Keys 返回按字母排序的键
func (di *DataIndexer) Keys() []string {
	di.mu.RLock()
	defer di.mu.RUnlock()
	keys := make([]string, len(di.keys))
	copy(keys, di.keys)
	sort.Strings(keys)
	return keys
}
