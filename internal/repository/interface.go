package repository

import (
	"context"

	"gorm.io/gorm"
)

// BaseRepository 基础仓储接口
type BaseRepository interface {
	GetDB() *gorm.DB
}

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Pagination 分页参数，Total 由查询回填
type Pagination struct {
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total"`
}

// NewPagination 创建分页参数，越界值收敛到默认范围
func NewPagination(page, pageSize int) *Pagination {
	if page <= 0 {
		page = 1
	}
	switch {
	case pageSize <= 0:
		pageSize = defaultPageSize
	case pageSize > maxPageSize:
		pageSize = maxPageSize
	}
	return &Pagination{Page: page, PageSize: pageSize}
}

// Offset 计算偏移量
func (p *Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// HasMore 是否还有下一页
func (p *Pagination) HasMore() bool {
	return int64(p.Page*p.PageSize) < p.Total
}

// Paginate 分页查询
func Paginate(p *Pagination) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(p.Offset()).Limit(p.PageSize)
	}
}

// baseRepo 仓储公共部分
type baseRepo struct {
	db *gorm.DB
}

// GetDB 获取数据库实例
func (r *baseRepo) GetDB() *gorm.DB {
	return r.db
}

func (r *baseRepo) conn(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}
