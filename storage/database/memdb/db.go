package memdb

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/tuition/core"
	"github.com/trezcool/tuition/core/admin"
	"github.com/trezcool/tuition/core/enrollment"
	"github.com/trezcool/tuition/core/group"
	"github.com/trezcool/tuition/core/installment"
	"github.com/trezcool/tuition/core/plan"
	"github.com/trezcool/tuition/core/student"
)

type (
	// DB is an in-memory store holding every table. It backs the tests & DEV runs without Postgres.
	DB struct {
		sync.RWMutex
		txMu sync.Mutex
		tables
	}

	tables struct {
		administrators map[string]admin.Administrator
		groups         map[string]group.Group
		groupAdmins    map[groupAdminKey]time.Time
		students       map[string]student.Student
		plans          map[string]plan.Plan
		associations   map[string]enrollment.Association // by student ID
		installments   map[string]installment.Installment
	}

	groupAdminKey struct {
		groupID string
		adminID string
	}
)

func Open() *DB {
	return &DB{tables: newTables()}
}

func newTables() tables {
	return tables{
		administrators: make(map[string]admin.Administrator),
		groups:         make(map[string]group.Group),
		groupAdmins:    make(map[groupAdminKey]time.Time),
		students:       make(map[string]student.Student),
		plans:          make(map[string]plan.Plan),
		associations:   make(map[string]enrollment.Association),
		installments:   make(map[string]installment.Installment),
	}
}

func (t tables) clone() tables {
	c := newTables()
	for k, v := range t.administrators {
		c.administrators[k] = v
	}
	for k, v := range t.groups {
		c.groups[k] = v
	}
	for k, v := range t.groupAdmins {
		c.groupAdmins[k] = v
	}
	for k, v := range t.students {
		c.students[k] = v
	}
	for k, v := range t.plans {
		c.plans[k] = v
	}
	for k, v := range t.associations {
		c.associations[k] = v
	}
	for k, v := range t.installments {
		c.installments[k] = v
	}
	return c
}

// Reset empties every table.
func (db *DB) Reset() {
	db.Lock()
	defer db.Unlock()
	db.tables = newTables()
}

type transactor struct {
	db *DB
}

var _ core.Transactor = (*transactor)(nil) // interface compliance check

// NewTransactor returns a core.Transactor snapshotting the tables before each unit of work
// and restoring them when it fails. Units of work are serialized.
func NewTransactor(db *DB) core.Transactor {
	return &transactor{db: db}
}

func (tx *transactor) InTx(ctx context.Context, fn func(exec core.DBExecutor) error) (err error) {
	tx.db.txMu.Lock()
	defer tx.db.txMu.Unlock()

	if err = ctx.Err(); err != nil {
		return err
	}

	tx.db.RLock()
	snapshot := tx.db.tables.clone()
	tx.db.RUnlock()

	rollback := func() {
		tx.db.Lock()
		tx.db.tables = snapshot
		tx.db.Unlock()
	}
	defer func() {
		if p := recover(); p != nil {
			rollback()
			panic(p)
		}
	}()

	if err = fn(nil); err != nil {
		rollback()
	}
	return err
}

func newID() string {
	return uuid.New().String()
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// inSet reports whether id passes an ID restriction: nil means no restriction.
func inSet(ids []string, id string) bool {
	if ids == nil {
		return true
	}
	for _, i := range ids {
		if i == id {
			return true
		}
	}
	return false
}

// sortBy sorts items following ordering, falling back to byName when ordering holds no known field.
// fields maps an ordering field to a "less" func.
func sortBy(n int, swap func(i, j int), ordering []core.DBOrdering, fields map[string]func(i, j int) bool, fallback string) {
	var lesses []func(i, j int) bool
	for _, ord := range ordering {
		less, ok := fields[ord.Field]
		if !ok {
			continue
		}
		if ord.Ascending {
			lesses = append(lesses, less)
		} else {
			less := less
			lesses = append(lesses, func(i, j int) bool { return less(j, i) })
		}
	}
	if len(lesses) == 0 {
		lesses = append(lesses, fields[fallback])
	}
	sort.Stable(sorter{n: n, swap: swap, less: func(i, j int) bool {
		for _, less := range lesses {
			if less(i, j) {
				return true
			}
			if less(j, i) {
				return false
			}
		}
		return false
	}})
}

type sorter struct {
	n    int
	swap func(i, j int)
	less func(i, j int) bool
}

func (s sorter) Len() int           { return s.n }
func (s sorter) Swap(i, j int)      { s.swap(i, j) }
func (s sorter) Less(i, j int) bool { return s.less(i, j) }
