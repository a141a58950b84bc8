// Package dummydb provides in-memory repositories for tests.
package dummydb

import (
	"sync"

	"github.com/siwesng/slims/core/logbook"
	"github.com/siwesng/slims/core/session"
	"github.com/siwesng/slims/core/user"
)

type (
	DB struct {
		user    *userTable
		session *sessionTable
		logbook *logbookTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	sessionTable struct {
		sync.RWMutex
		sessions    map[string]*session.Session
		enrollments map[string]*session.Enrollment
	}

	logbookTable struct {
		sync.RWMutex
		entries  map[string]*logbook.Entry
		reviews  map[string]*logbook.ReviewRequest
		comments map[string]*logbook.Comment
		diagrams map[string]*logbook.Diagram
	}
)

func Open() (*DB, error) {
	db := &DB{
		user: &userTable{table: make(map[string]*user.User)},
		session: &sessionTable{
			sessions:    make(map[string]*session.Session),
			enrollments: make(map[string]*session.Enrollment),
		},
		logbook: &logbookTable{
			entries:  make(map[string]*logbook.Entry),
			reviews:  make(map[string]*logbook.ReviewRequest),
			comments: make(map[string]*logbook.Comment),
			diagrams: make(map[string]*logbook.Diagram),
		},
	}
	return db, nil
}
