package repository

import (
	"context"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	insurance "github.com/goliatone/go-insurance"
)

type rowMeta struct {
	id        *uuid.UUID
	createdAt *time.Time
	updatedAt *time.Time
	unique    []string
}

// memTable keeps the rows of one model keyed by id. Rows are copied on the
// way in and out so callers never share state with the table.
type memTable[T any] struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]*T
	seq  map[uuid.UUID]int
	next int
	now  insurance.Clock
	meta func(*T) rowMeta
}

func newMemTable[T any](now insurance.Clock, meta func(*T) rowMeta) *memTable[T] {
	if now == nil {
		now = time.Now
	}
	return &memTable[T]{
		rows: make(map[uuid.UUID]*T),
		seq:  make(map[uuid.UUID]int),
		now:  now,
		meta: meta,
	}
}

func (t *memTable[T]) get(ctx context.Context, id uuid.UUID) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, insurance.WrapAs(err, insurance.ErrStoreUnavailable)
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	row, ok := t.rows[id]
	if !ok {
		return nil, insurance.ErrRecordNotFound
	}
	out := *row
	return &out, nil
}

func (t *memTable[T]) find(ctx context.Context, match func(*T) bool) (*T, error) {
	rows, err := t.list(ctx, match, false)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, insurance.ErrRecordNotFound
	}
	return rows[0], nil
}

// list returns matching rows in insertion order, or newest first when
// newestFirst is set
func (t *memTable[T]) list(ctx context.Context, match func(*T) bool, newestFirst bool) ([]*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, insurance.WrapAs(err, insurance.ErrStoreUnavailable)
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]uuid.UUID, 0, len(t.rows))
	for id, row := range t.rows {
		if match == nil || match(row) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		if newestFirst {
			return t.seq[ids[i]] > t.seq[ids[j]]
		}
		return t.seq[ids[i]] < t.seq[ids[j]]
	})

	out := make([]*T, 0, len(ids))
	for _, id := range ids {
		row := *t.rows[id]
		out = append(out, &row)
	}
	return out, nil
}

func (t *memTable[T]) insert(ctx context.Context, record *T) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, insurance.WrapAs(err, insurance.ErrStoreUnavailable)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	row := *record
	m := t.meta(&row)
	if *m.id == uuid.Nil {
		*m.id = uuid.New()
	}
	if _, taken := t.rows[*m.id]; taken {
		return nil, insurance.ErrStoreConflict
	}
	if t.conflicts(*m.id, m.unique) {
		return nil, insurance.ErrStoreConflict
	}

	now := t.now().UTC()
	*m.createdAt = now
	*m.updatedAt = now

	t.next++
	t.rows[*m.id] = &row
	t.seq[*m.id] = t.next

	out := row
	return &out, nil
}

// update copies the named columns from record onto the stored row
func (t *memTable[T]) update(ctx context.Context, record *T, columns []string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, insurance.WrapAs(err, insurance.ErrStoreUnavailable)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	id := *t.meta(record).id
	current, ok := t.rows[id]
	if !ok {
		return nil, insurance.ErrRecordNotFound
	}

	next := *current
	copyColumns(&next, record, columns)
	m := t.meta(&next)
	if t.conflicts(id, m.unique) {
		return nil, insurance.ErrStoreConflict
	}
	*m.updatedAt = t.now().UTC()

	t.rows[id] = &next
	out := next
	return &out, nil
}

func (t *memTable[T]) conflicts(self uuid.UUID, unique []string) bool {
	if len(unique) == 0 {
		return false
	}
	for id, row := range t.rows {
		if id == self {
			continue
		}
		if len(lo.Intersect(unique, t.meta(row).unique)) > 0 {
			return true
		}
	}
	return false
}

// copyColumns assigns the struct fields whose bun column name is listed
func copyColumns(dst, src any, columns []string) {
	dv := reflect.ValueOf(dst).Elem()
	sv := reflect.ValueOf(src).Elem()
	typ := dv.Type()
	for i := 0; i < typ.NumField(); i++ {
		name, _, _ := strings.Cut(typ.Field(i).Tag.Get("bun"), ",")
		if name != "" && lo.Contains(columns, name) {
			dv.Field(i).Set(sv.Field(i))
		}
	}
}

type memoryAccounts struct {
	table *memTable[insurance.Account]
}

// NewMemoryAccounts returns an in memory account store
func NewMemoryAccounts(now insurance.Clock) insurance.Accounts {
	return &memoryAccounts{table: newMemTable(now, func(a *insurance.Account) rowMeta {
		return rowMeta{id: &a.ID, createdAt: &a.CreatedAt, updatedAt: &a.UpdatedAt, unique: []string{"email:" + a.Email}}
	})}
}

func (r *memoryAccounts) GetByID(ctx context.Context, id uuid.UUID) (*insurance.Account, error) {
	return r.table.get(ctx, id)
}

func (r *memoryAccounts) GetByEmail(ctx context.Context, email string) (*insurance.Account, error) {
	return r.table.find(ctx, func(a *insurance.Account) bool { return a.Email == email })
}

func (r *memoryAccounts) List(ctx context.Context) ([]*insurance.Account, error) {
	return r.table.list(ctx, nil, false)
}

func (r *memoryAccounts) Create(ctx context.Context, record *insurance.Account) (*insurance.Account, error) {
	return r.table.insert(ctx, record)
}

func (r *memoryAccounts) Update(ctx context.Context, record *insurance.Account, columns ...string) (*insurance.Account, error) {
	return r.table.update(ctx, record, columns)
}

type memoryPolicies struct {
	table *memTable[insurance.Policy]
}

// NewMemoryPolicies returns an in memory policy store
func NewMemoryPolicies(now insurance.Clock) insurance.Policies {
	return &memoryPolicies{table: newMemTable(now, func(p *insurance.Policy) rowMeta {
		return rowMeta{id: &p.ID, createdAt: &p.CreatedAt, updatedAt: &p.UpdatedAt, unique: []string{"number:" + p.PolicyNumber}}
	})}
}

func (r *memoryPolicies) GetByID(ctx context.Context, id uuid.UUID) (*insurance.Policy, error) {
	return r.table.get(ctx, id)
}

func (r *memoryPolicies) NumberExists(ctx context.Context, number string) (bool, error) {
	rows, err := r.table.list(ctx, func(p *insurance.Policy) bool { return p.PolicyNumber == number }, false)
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

func (r *memoryPolicies) List(ctx context.Context, filter insurance.PolicyFilter) ([]*insurance.Policy, error) {
	return r.table.list(ctx, func(p *insurance.Policy) bool {
		if filter.UserID != uuid.Nil && p.UserID != filter.UserID {
			return false
		}
		return filter.PayerProgram == "" || p.PayerProgram == filter.PayerProgram
	}, true)
}

func (r *memoryPolicies) Create(ctx context.Context, record *insurance.Policy) (*insurance.Policy, error) {
	return r.table.insert(ctx, record)
}

func (r *memoryPolicies) Update(ctx context.Context, record *insurance.Policy, columns ...string) (*insurance.Policy, error) {
	return r.table.update(ctx, record, columns)
}

type memoryClaims struct {
	table *memTable[insurance.Claim]
}

// NewMemoryClaims returns an in memory claim store
func NewMemoryClaims(now insurance.Clock) insurance.Claims {
	return &memoryClaims{table: newMemTable(now, func(c *insurance.Claim) rowMeta {
		return rowMeta{id: &c.ID, createdAt: &c.CreatedAt, updatedAt: &c.UpdatedAt, unique: []string{"number:" + c.ClaimNumber}}
	})}
}

func (r *memoryClaims) GetByID(ctx context.Context, id uuid.UUID) (*insurance.Claim, error) {
	return r.table.get(ctx, id)
}

func (r *memoryClaims) NumberExists(ctx context.Context, number string) (bool, error) {
	rows, err := r.table.list(ctx, func(c *insurance.Claim) bool { return c.ClaimNumber == number }, false)
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

func (r *memoryClaims) List(ctx context.Context, filter insurance.ClaimFilter) ([]*insurance.Claim, error) {
	return r.table.list(ctx, func(c *insurance.Claim) bool {
		if filter.UserID != uuid.Nil && c.UserID != filter.UserID {
			return false
		}
		return filter.PolicyID == uuid.Nil || c.PolicyID == filter.PolicyID
	}, true)
}

func (r *memoryClaims) Create(ctx context.Context, record *insurance.Claim) (*insurance.Claim, error) {
	return r.table.insert(ctx, record)
}

func (r *memoryClaims) Update(ctx context.Context, record *insurance.Claim, columns ...string) (*insurance.Claim, error) {
	return r.table.update(ctx, record, columns)
}
