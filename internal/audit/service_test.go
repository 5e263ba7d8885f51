package audit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	entries    []Entry
	lastOffset int
	lastLimit  int
}

func (s *stubRepo) ListByInvoice(ctx context.Context, invoiceID int64, offset, limit int) ([]Entry, error) {
	s.lastOffset = offset
	s.lastLimit = limit
	if offset >= len(s.entries) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.entries) {
		end = len(s.entries)
	}
	return s.entries[offset:end], nil
}

func entries(n int) []Entry {
	out := make([]Entry, 0, n)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		out = append(out, Entry{
			ID:        int64(i + 1),
			InvoiceID: 7,
			Action:    ActionReminderPostponed,
			ActorName: "system",
			Comment:   fmt.Sprintf("entry %d", i+1),
			At:        base.Add(time.Duration(i) * time.Hour),
		})
	}
	return out
}

func TestTimelinePaging(t *testing.T) {
	repo := &stubRepo{entries: entries(25)}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), 7, 1, 20)
	require.NoError(t, err)
	require.Len(t, result.Rows, 20)
	require.True(t, result.Paging.HasNext)
	require.Equal(t, 2, result.Paging.NextPage)
	require.Zero(t, result.Paging.PrevPage)
	// One extra row is requested to detect the next page.
	require.Equal(t, 21, repo.lastLimit)
	require.Zero(t, repo.lastOffset)

	result, err = svc.Timeline(context.Background(), 7, 2, 20)
	require.NoError(t, err)
	require.Len(t, result.Rows, 5)
	require.False(t, result.Paging.HasNext)
	require.Equal(t, 1, result.Paging.PrevPage)
	require.Zero(t, result.Paging.NextPage)
	require.Equal(t, 20, repo.lastOffset)
}

func TestTimelineClampsPageSize(t *testing.T) {
	repo := &stubRepo{entries: entries(60)}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), 7, 0, 500)
	require.NoError(t, err)
	require.Equal(t, 1, result.Paging.Page)
	require.Equal(t, 50, result.Paging.PageSize)
	require.Len(t, result.Rows, 50)

	result, err = svc.Timeline(context.Background(), 7, 1, -3)
	require.NoError(t, err)
	require.Equal(t, 20, result.Paging.PageSize)
}

func TestTimelineEmptyHistory(t *testing.T) {
	svc := NewService(&stubRepo{})
	result, err := svc.Timeline(context.Background(), 7, 1, 20)
	require.NoError(t, err)
	require.Empty(t, result.Rows)
	require.False(t, result.Paging.HasNext)
}
