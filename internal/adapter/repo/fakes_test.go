package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"guru/internal/infra"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if r.values == nil {
		return pgx.ErrNoRows
	}
	if len(dest) != len(r.values) {
		return fmt.Errorf("scan: got %d dest for %d values", len(dest), len(r.values))
	}
	for i, v := range r.values {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *int:
			*d = v.(int)
		case *int64:
			*d = v.(int64)
		case *time.Time:
			*d = v.(time.Time)
		case **int:
			if v == nil {
				*d = nil
			} else {
				n := v.(int)
				*d = &n
			}
		case **time.Time:
			if v == nil {
				*d = nil
			} else {
				ts := v.(time.Time)
				*d = &ts
			}
		default:
			return fmt.Errorf("scan: unsupported dest %T", dest[i])
		}
	}
	return nil
}

type call struct {
	query string
	args  []any
}

// fakeRunner answers queries from a queue keyed by the sqlinline constant.
type fakeRunner struct {
	rows  map[string][]fakeRow
	tags  map[string]pgconn.CommandTag
	calls []call
	txs   int
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{rows: map[string][]fakeRow{}, tags: map[string]pgconn.CommandTag{}}
}

func (f *fakeRunner) push(query string, row fakeRow) {
	f.rows[query] = append(f.rows[query], row)
}

func (f *fakeRunner) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, call{query: query, args: args})
	if tag, ok := f.tags[query]; ok {
		return tag, nil
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (f *fakeRunner) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	f.calls = append(f.calls, call{query: query, args: args})
	queue := f.rows[query]
	if len(queue) == 0 {
		return fakeRow{}
	}
	f.rows[query] = queue[1:]
	return queue[0]
}

func (f *fakeRunner) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeRunner) InTx(ctx context.Context, fn func(tx infra.SQLExecutor) error) error {
	f.txs++
	return fn(f)
}

func (f *fakeRunner) called(query string) int {
	n := 0
	for _, c := range f.calls {
		if c.query == query {
			n++
		}
	}
	return n
}

var _ infra.TxRunner = (*fakeRunner)(nil)
