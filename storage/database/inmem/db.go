// Package inmemdb keeps every table in memory. It backs the tests and the `memory` database engine.
package inmemdb

import (
	"strings"
	"sync"
	"time"

	"github.com/trezcool/paperdesk/core"
	"github.com/trezcool/paperdesk/core/assignment"
	"github.com/trezcool/paperdesk/core/document"
	"github.com/trezcool/paperdesk/core/notification"
	"github.com/trezcool/paperdesk/core/user"
)

// DB guards all tables with a single lock so that cascades stay atomic.
type DB struct {
	mu            sync.RWMutex
	seq           int64 // insertion order, used to break ordering ties
	users         map[string]*userRow
	assignments   map[string]*assignmentRow
	documents     map[string]*documentRow
	notifications map[string]*notificationRow
}

type (
	userRow struct {
		seq int64
		usr user.User
	}
	assignmentRow struct {
		seq int64
		a   assignment.Assignment
	}
	documentRow struct {
		seq int64
		doc document.Document
	}
	notificationRow struct {
		seq int64
		n   notification.Notification
	}
)

func Open() *DB {
	db := new(DB)
	db.Reset()
	return db
}

// Reset drops every row.
func (db *DB) Reset() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.users = make(map[string]*userRow)
	db.assignments = make(map[string]*assignmentRow)
	db.documents = make(map[string]*documentRow)
	db.notifications = make(map[string]*notificationRow)
}

func (db *DB) nextSeq() int64 {
	db.seq++
	return db.seq
}

// compareValues orders strings, times and bools; it returns -1, 0 or 1.
func compareValues(a, b interface{}) int {
	switch av := a.(type) {
	case string:
		return strings.Compare(strings.ToLower(av), strings.ToLower(b.(string)))
	case time.Time:
		bv := b.(time.Time)
		switch {
		case av.Before(bv):
			return -1
		case av.After(bv):
			return 1
		}
	case bool:
		bv := b.(bool)
		if av != bv {
			if !av {
				return -1
			}
			return 1
		}
	}
	return 0
}

// orderedLess compares two rows following ordering; ties keep insertion order.
// col resolves a column of a row, or reports that the field is unknown.
func orderedLess(ordering []core.DBOrdering, colA, colB func(field string) (interface{}, bool), seqA, seqB int64) bool {
	for _, ord := range ordering {
		va, ok := colA(ord.Field)
		if !ok {
			continue
		}
		vb, _ := colB(ord.Field)
		if c := compareValues(va, vb); c != 0 {
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
	}
	return seqA < seqB
}
