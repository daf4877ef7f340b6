package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/migrationflow/internal/database"
	"github.com/BaSui01/migrationflow/pipeline"
	"github.com/BaSui01/migrationflow/types"
)

// =============================================================================
// 🗃️ 条目存储
// =============================================================================

// Store 基于 GORM 的通用条目存储，写入前按 Registry 校验
type Store struct {
	pool     *database.PoolManager
	registry Registry
	logger   *zap.Logger
	newID    func() string
	now      func() time.Time

	seqMu   sync.Mutex
	lastSeq int64
}

// Option 存储可选项
type Option func(*Store)

// WithRegistry 替换 schema 注册表
func WithRegistry(r Registry) Option {
	return func(s *Store) {
		s.registry = r
	}
}

// WithIDGenerator 替换主键生成函数
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		s.newID = fn
	}
}

// WithClock 替换时间源
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New 创建条目存储
func New(pool *database.PoolManager, logger *zap.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		pool:     pool,
		registry: DefaultRegistry(),
		logger:   logger.With(zap.String("component", "item_store")),
		newID:    uuid.NewString,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) schema(name string) (Schema, error) {
	sc, ok := s.registry[name]
	if !ok {
		return Schema{}, types.NewError(types.ErrInvalidRequest, fmt.Sprintf("unknown schema %q", name))
	}
	return sc, nil
}

// nextSeq 单调递增的写入序号，保证 List 顺序与写入顺序一致
func (s *Store) nextSeq() int64 {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	seq := s.now().UnixNano()
	if seq <= s.lastSeq {
		seq = s.lastSeq + 1
	}
	s.lastSeq = seq
	return seq
}

func existsIn(tx *gorm.DB) existsFunc {
	return func(schema, id string) (bool, error) {
		var n int64
		if err := tx.Model(&Item{}).Where("schema_name = ? AND id = ?", schema, id).Count(&n).Error; err != nil {
			return false, fmt.Errorf("check reference %s/%s: %w", schema, id, err)
		}
		return n > 0, nil
	}
}

// Create 校验并写入记录。记录携带主键属性时为 upsert，否则生成新 id。
// 校验失败时不写入，错误在 CreateResult.ValidationErrors 中返回。
func (s *Store) Create(ctx context.Context, schema string, record map[string]any) (pipeline.CreateResult, error) {
	sc, err := s.schema(schema)
	if err != nil {
		return pipeline.CreateResult{}, err
	}
	data := copyRecord(record)

	var result pipeline.CreateResult
	err = s.pool.WithTransactionRetry(ctx, 3, func(tx *gorm.DB) error {
		problems, err := sc.validate(data, existsIn(tx))
		if err != nil {
			return err
		}
		if len(problems) > 0 {
			result = pipeline.CreateResult{ValidationErrors: problems}
			return nil
		}

		id, _ := data[sc.Key].(string)
		if id == "" {
			id = s.newID()
		}
		data[sc.Key] = id
		now := s.now().UTC()

		var existing Item
		err = tx.Where("schema_name = ? AND id = ?", schema, id).Take(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			item := Item{
				Schema:  schema,
				ID:      id,
				Data:    data,
				Version: 1,
				History: History{CreatedAt: now},
				Seq:     s.nextSeq(),
			}
			if err := tx.Create(&item).Error; err != nil {
				return fmt.Errorf("insert %s/%s: %w", schema, id, err)
			}
		case err != nil:
			return fmt.Errorf("load %s/%s: %w", schema, id, err)
		default:
			existing.Data = data
			existing.Version++
			existing.History.LastModifiedAt = now
			if err := tx.Save(&existing).Error; err != nil {
				return fmt.Errorf("update %s/%s: %w", schema, id, err)
			}
		}

		result = pipeline.CreateResult{ID: id}
		return nil
	})
	if err != nil {
		return pipeline.CreateResult{}, err
	}

	if !result.OK() {
		s.logger.Debug("record rejected",
			zap.String("schema", schema),
			zap.Strings("validation_errors", result.ValidationErrors))
	}
	return result, nil
}

// Update 将 patch 合并到已有记录并重新校验，版本号加一
func (s *Store) Update(ctx context.Context, schema, id string, patch map[string]any) (pipeline.CreateResult, error) {
	sc, err := s.schema(schema)
	if err != nil {
		return pipeline.CreateResult{}, err
	}

	var result pipeline.CreateResult
	err = s.pool.WithTransactionRetry(ctx, 3, func(tx *gorm.DB) error {
		var item Item
		if err := tx.Where("schema_name = ? AND id = ?", schema, id).Take(&item).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound(schema, id)
			}
			return fmt.Errorf("load %s/%s: %w", schema, id, err)
		}

		data := copyRecord(item.Data)
		for k, v := range patch {
			data[k] = v
		}
		data[sc.Key] = id

		problems, err := sc.validate(data, existsIn(tx))
		if err != nil {
			return err
		}
		if len(problems) > 0 {
			result = pipeline.CreateResult{ValidationErrors: problems}
			return nil
		}

		item.Data = data
		item.Version++
		item.History.LastModifiedAt = s.now().UTC()
		if err := tx.Save(&item).Error; err != nil {
			return fmt.Errorf("update %s/%s: %w", schema, id, err)
		}
		result = pipeline.CreateResult{ID: id}
		return nil
	})
	if err != nil {
		return pipeline.CreateResult{}, err
	}
	return result, nil
}

// Delete 删除记录，不存在时返回 NOT_FOUND
func (s *Store) Delete(ctx context.Context, schema, id string) error {
	res := s.pool.DB().WithContext(ctx).Where("schema_name = ? AND id = ?", schema, id).Delete(&Item{})
	if res.Error != nil {
		return fmt.Errorf("delete %s/%s: %w", schema, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound(schema, id)
	}
	s.logger.Debug("record deleted", zap.String("schema", schema), zap.String("id", id))
	return nil
}

// Get 读取单条记录
func (s *Store) Get(ctx context.Context, schema, id string) (Item, error) {
	var item Item
	err := s.pool.DB().WithContext(ctx).Where("schema_name = ? AND id = ?", schema, id).Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Item{}, notFound(schema, id)
	}
	if err != nil {
		return Item{}, fmt.Errorf("load %s/%s: %w", schema, id, err)
	}
	return item, nil
}

// List 按写入顺序列出某 schema 的全部记录
func (s *Store) List(ctx context.Context, schema string) ([]Item, error) {
	var items []Item
	err := s.pool.DB().WithContext(ctx).
		Where("schema_name = ?", schema).
		Order("seq ASC").Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", schema, err)
	}
	return items, nil
}

// ListBy 列出字段值等于 value 的记录
func (s *Store) ListBy(ctx context.Context, schema, field, value string) ([]Item, error) {
	items, err := s.List(ctx, schema)
	if err != nil {
		return nil, err
	}
	out := items[:0]
	for _, it := range items {
		if it.String(field) == value {
			out = append(out, it)
		}
	}
	return out, nil
}

// Records 以字段映射形式列出记录，不含版本与审计信息
func (s *Store) Records(ctx context.Context, schema string) ([]map[string]any, error) {
	items, err := s.List(ctx, schema)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, len(items))
	for i, it := range items {
		out[i] = copyRecord(it.Data)
	}
	return out, nil
}

// Count 统计某 schema 的记录数
func (s *Store) Count(ctx context.Context, schema string) (int64, error) {
	var n int64
	err := s.pool.DB().WithContext(ctx).Model(&Item{}).Where("schema_name = ?", schema).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", schema, err)
	}
	return n, nil
}

func notFound(schema, id string) *types.Error {
	return types.NewError(types.ErrNotFound, fmt.Sprintf("%s %q not found", schema, id)).
		WithHTTPStatus(404)
}
