package memory

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"windback-be/internal/entity"
	"windback-be/internal/repository/contract"
	"windback-be/internal/repository/specification"

	"github.com/google/uuid"
)

// ErrDuplicateKey mirrors a unique-constraint violation.
var ErrDuplicateKey = contract.ErrDuplicateKey

type tables struct {
	projects    map[uuid.UUID]entity.Project
	churnEvents map[uuid.UUID]entity.ChurnEvent
	variants    map[uuid.UUID]entity.RecoveryVariant
	templates   map[uuid.UUID]entity.RecoveryTemplate
	failures    map[uuid.UUID]entity.PaymentFailure
	emails      map[uuid.UUID]entity.DunningEmail
	configs     map[uuid.UUID]entity.DunningConfig
	offers      map[uuid.UUID]entity.RetentionOffer
}

func newTables() *tables {
	return &tables{
		projects:    map[uuid.UUID]entity.Project{},
		churnEvents: map[uuid.UUID]entity.ChurnEvent{},
		variants:    map[uuid.UUID]entity.RecoveryVariant{},
		templates:   map[uuid.UUID]entity.RecoveryTemplate{},
		failures:    map[uuid.UUID]entity.PaymentFailure{},
		emails:      map[uuid.UUID]entity.DunningEmail{},
		configs:     map[uuid.UUID]entity.DunningConfig{},
		offers:      map[uuid.UUID]entity.RetentionOffer{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (t *tables) clone() *tables {
	return &tables{
		projects:    cloneMap(t.projects),
		churnEvents: cloneMap(t.churnEvents),
		variants:    cloneMap(t.variants),
		templates:   cloneMap(t.templates),
		failures:    cloneMap(t.failures),
		emails:      cloneMap(t.emails),
		configs:     cloneMap(t.configs),
		offers:      cloneMap(t.offers),
	}
}

// Store is a process-local database. A transaction holds the store lock until
// it commits or rolls back, so transactions are serialised.
type Store struct {
	mu  sync.Mutex
	t   *tables
	now func() time.Time
}

func NewStore() *Store {
	return &Store{t: newTables(), now: time.Now}
}

// WithClock overrides the timestamp source for created_at/updated_at.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

type row map[string]interface{}

type predicate func(row) bool

func timeOrNil(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func stringOrNil(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func sameValue(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func equals(field string, want interface{}) predicate {
	return func(r row) bool {
		return sameValue(r[field], want)
	}
}

func less(a, b interface{}) bool {
	switch x := a.(type) {
	case time.Time:
		y, _ := b.(time.Time)
		return x.Before(y)
	case int:
		y, _ := b.(int)
		return x < y
	case int64:
		y, _ := b.(int64)
		return x < y
	case string:
		y, _ := b.(string)
		return x < y
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

// query filters, orders and pages items the way the gorm specifications do.
// Preload specifications are left to the caller.
func query[T any](items []T, columns func(*T) row, specs ...specification.Specification) ([]T, error) {
	var (
		preds  []predicate
		orders []specification.OrderBy
		page   *specification.Pagination
	)

	for _, spec := range specs {
		switch s := spec.(type) {
		case specification.ByID:
			preds = append(preds, equals("id", s.ID))
		case specification.ByProjectID:
			preds = append(preds, equals("project_id", s.ProjectID))
		case specification.ByChurnEventID:
			preds = append(preds, equals("churn_event_id", s.ChurnEventID))
		case specification.ByPaymentFailureID:
			preds = append(preds, equals("payment_failure_id", s.PaymentFailureID))
		case specification.FilterBy:
			preds = append(preds, equals(s.Field, s.Value))
		case specification.FieldIn:
			field, values := s.Field, s.Values
			preds = append(preds, func(r row) bool {
				for _, v := range values {
					if sameValue(r[field], v) {
						return true
					}
				}
				return false
			})
		case specification.NotNull:
			field := s.Field
			preds = append(preds, func(r row) bool { return r[field] != nil })
		case specification.OrderBy:
			orders = append(orders, s)
		case specification.Pagination:
			p := s
			page = &p
		case specification.WithVariants, specification.WithDunningEmails:
		default:
			return nil, fmt.Errorf("memory: unsupported specification %T", spec)
		}
	}

	type keyed struct {
		item T
		cols row
	}
	matched := make([]keyed, 0, len(items))
outer:
	for i := range items {
		cols := columns(&items[i])
		for _, p := range preds {
			if !p(cols) {
				continue outer
			}
		}
		matched = append(matched, keyed{item: items[i], cols: cols})
	}

	if len(orders) == 0 {
		orders = []specification.OrderBy{{Field: "created_at"}, {Field: "id"}}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		for _, o := range orders {
			a, b := matched[i].cols[o.Field], matched[j].cols[o.Field]
			if sameValue(a, b) {
				continue
			}
			// NULLs sort last ascending, first descending, as in Postgres.
			if a == nil {
				return o.Desc
			}
			if b == nil {
				return !o.Desc
			}
			if o.Desc {
				return less(b, a)
			}
			return less(a, b)
		}
		return false
	})

	if page != nil {
		start := page.Offset
		if start > len(matched) {
			start = len(matched)
		}
		matched = matched[start:]
		if page.Limit > 0 && page.Limit < len(matched) {
			matched = matched[:page.Limit]
		}
	}

	out := make([]T, 0, len(matched))
	for _, m := range matched {
		out = append(out, m.item)
	}
	return out, nil
}

func hasSpec[S specification.Specification](specs []specification.Specification) bool {
	for _, spec := range specs {
		if _, ok := spec.(S); ok {
			return true
		}
	}
	return false
}

func values[K comparable, V any](m map[K]V) []V {
	out := make([]V, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}
