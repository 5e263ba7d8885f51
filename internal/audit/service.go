package audit

import (
	"context"
	"fmt"
)

// Repository provides read access to the audit trail.
type Repository interface {
	ListByInvoice(ctx context.Context, invoiceID int64, offset, limit int) ([]Entry, error)
}

// PagingInfo carries pagination state for timeline pages.
type PagingInfo struct {
	Page     int
	PageSize int
	HasNext  bool
	PrevPage int
	NextPage int
}

// Result wraps one timeline page.
type Result struct {
	Rows   []Entry
	Paging PagingInfo
}

// Service coordinates audit history reads.
type Service struct {
	repo Repository
}

// NewService builds the audit history service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Timeline returns one page of an invoice's history, newest first.
func (s *Service) Timeline(ctx context.Context, invoiceID int64, page, pageSize int) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 50 {
		pageSize = 50
	}
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize
	rows, err := s.repo.ListByInvoice(ctx, invoiceID, offset, pageSize+1)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}
