package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/siwesng/slims/core"
	"github.com/siwesng/slims/core/logbook"
)

type logbookRepository struct {
	db *logbookTable
}

var _ logbook.Repository = (*logbookRepository)(nil) // interface compliance check

func NewLogbookRepository(db *DB) logbook.Repository {
	return &logbookRepository{db: db.logbook}
}

func (repo *logbookRepository) CreateEntry(_ context.Context, e logbook.Entry, _ ...core.DBExecutor) (logbook.Entry, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, orig := range repo.db.entries {
		if orig.StudentID == e.StudentID && orig.SessionID == e.SessionID && orig.WeekNumber == e.WeekNumber {
			return logbook.Entry{}, logbook.ErrEntryExists
		}
	}
	e.ID = uuid.NewString()
	repo.db.entries[e.ID] = &e
	return e, nil
}

func (repo *logbookRepository) GetEntryByID(_ context.Context, id string, _ ...core.DBExecutor) (logbook.Entry, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if e, ok := repo.db.entries[id]; ok {
		return *e, nil
	}
	return logbook.Entry{}, logbook.ErrNotFound
}

func (repo *logbookRepository) GetEntry(_ context.Context, studentID, sessionID string, week int, _ ...core.DBExecutor) (logbook.Entry, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, e := range repo.db.entries {
		if e.StudentID == studentID && e.SessionID == sessionID && e.WeekNumber == week {
			return *e, nil
		}
	}
	return logbook.Entry{}, logbook.ErrNotFound
}

func (repo *logbookRepository) QueryEntries(_ context.Context, studentID, sessionID string, _ ...core.DBExecutor) ([]logbook.Entry, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var entries []logbook.Entry
	for _, e := range repo.db.entries {
		if e.StudentID == studentID && e.SessionID == sessionID {
			entries = append(entries, *e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].WeekNumber < entries[j].WeekNumber })
	return entries, nil
}

func (repo *logbookRepository) UpdateEntryDay(_ context.Context, id string, day logbook.Day, content string, updatedAt time.Time, _ ...core.DBExecutor) (logbook.Entry, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	e, ok := repo.db.entries[id]
	if !ok {
		return logbook.Entry{}, logbook.ErrNotFound
	}
	if e.IsLocked {
		return logbook.Entry{}, logbook.ErrWeekLocked
	}
	e.SetContent(day, content)
	e.UpdatedAt = updatedAt
	return *e, nil
}

func (repo *logbookRepository) SetEntryLock(_ context.Context, id string, fromLocked bool, lock logbook.EntryLock, updatedAt time.Time, _ ...core.DBExecutor) (logbook.Entry, bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	e, ok := repo.db.entries[id]
	if !ok {
		return logbook.Entry{}, false, logbook.ErrNotFound
	}
	if e.IsLocked != fromLocked {
		return logbook.Entry{}, false, nil // lost the swap
	}
	e.IsLocked = lock.IsLocked
	e.LockedBy = lock.LockedBy
	e.LockedAt = lock.LockedAt
	e.UpdatedAt = updatedAt
	return *e, true, nil
}

func (repo *logbookRepository) CreateReviewRequest(_ context.Context, rr logbook.ReviewRequest, _ ...core.DBExecutor) (logbook.ReviewRequest, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, orig := range repo.db.reviews {
		if orig.EntryID == rr.EntryID {
			return logbook.ReviewRequest{}, logbook.ErrDuplicateReviewRequest
		}
	}
	rr.ID = uuid.NewString()
	repo.db.reviews[rr.ID] = &rr
	return rr, nil
}

func (repo *logbookRepository) GetReviewRequestByID(_ context.Context, id string, _ ...core.DBExecutor) (logbook.ReviewRequest, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if rr, ok := repo.db.reviews[id]; ok {
		return *rr, nil
	}
	return logbook.ReviewRequest{}, logbook.ErrReviewRequestNotFound
}

func (repo *logbookRepository) GetReviewRequestByEntry(_ context.Context, entryID string, _ ...core.DBExecutor) (logbook.ReviewRequest, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, rr := range repo.db.reviews {
		if rr.EntryID == entryID {
			return *rr, nil
		}
	}
	return logbook.ReviewRequest{}, logbook.ErrReviewRequestNotFound
}

func (repo *logbookRepository) ReopenReviewRequest(_ context.Context, id string, requestedAt time.Time, _ ...core.DBExecutor) (logbook.ReviewRequest, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	rr, ok := repo.db.reviews[id]
	if !ok {
		return logbook.ReviewRequest{}, logbook.ErrReviewRequestNotFound
	}
	rr.Status = logbook.ReviewPending
	rr.RequestedAt = requestedAt
	rr.ReviewedAt.Valid = false
	rr.ReviewedAt.Time = time.Time{}
	return *rr, nil
}

func (repo *logbookRepository) MarkReviewRequestReviewed(_ context.Context, id string, reviewedAt time.Time, _ ...core.DBExecutor) (logbook.ReviewRequest, bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	rr, ok := repo.db.reviews[id]
	if !ok {
		return logbook.ReviewRequest{}, false, logbook.ErrReviewRequestNotFound
	}
	if rr.Status != logbook.ReviewPending {
		return logbook.ReviewRequest{}, false, nil // lost the swap
	}
	rr.Status = logbook.ReviewReviewed
	rr.ReviewedAt.SetValid(reviewedAt)
	return *rr, true, nil
}

func (repo *logbookRepository) ExpireReviewRequestsBefore(_ context.Context, cutoff time.Time, _ ...core.DBExecutor) (int64, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var n int64
	for _, rr := range repo.db.reviews {
		if rr.Status == logbook.ReviewPending && rr.RequestedAt.Before(cutoff) {
			rr.Status = logbook.ReviewExpired
			n++
		}
	}
	return n, nil
}

func (repo *logbookRepository) QueryReviewRequestsBySupervisor(_ context.Context, supervisorID, status string, _ ...core.DBExecutor) ([]logbook.ReviewRequest, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var rrs []logbook.ReviewRequest
	for _, rr := range repo.db.reviews {
		if rr.IndustrySupervisorID == supervisorID && (status == "" || rr.Status == status) {
			rrs = append(rrs, *rr)
		}
	}
	sortReviewRequests(rrs)
	return rrs, nil
}

func (repo *logbookRepository) QueryReviewRequestsByStudent(_ context.Context, studentID, status string, _ ...core.DBExecutor) ([]logbook.ReviewRequest, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var rrs []logbook.ReviewRequest
	for _, rr := range repo.db.reviews {
		if rr.StudentID == studentID && (status == "" || rr.Status == status) {
			rrs = append(rrs, *rr)
		}
	}
	sortReviewRequests(rrs)
	return rrs, nil
}

func (repo *logbookRepository) CreateComment(_ context.Context, c logbook.Comment, _ ...core.DBExecutor) (logbook.Comment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	c.ID = uuid.NewString()
	repo.db.comments[c.ID] = &c
	return c, nil
}

func (repo *logbookRepository) QueryCommentsByEntry(_ context.Context, entryID string, _ ...core.DBExecutor) ([]logbook.Comment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var comments []logbook.Comment
	for _, c := range repo.db.comments {
		if c.EntryID == entryID {
			comments = append(comments, *c)
		}
	}
	sort.Slice(comments, func(i, j int) bool { return comments[i].CommentedAt.Before(comments[j].CommentedAt) })
	return comments, nil
}

func (repo *logbookRepository) CreateDiagram(_ context.Context, d logbook.Diagram, _ ...core.DBExecutor) (logbook.Diagram, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	d.ID = uuid.NewString()
	repo.db.diagrams[d.ID] = &d
	return d, nil
}

func (repo *logbookRepository) GetDiagramByID(_ context.Context, id string, _ ...core.DBExecutor) (logbook.Diagram, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if d, ok := repo.db.diagrams[id]; ok {
		return *d, nil
	}
	return logbook.Diagram{}, logbook.ErrDiagramNotFound
}

func (repo *logbookRepository) QueryDiagramsByEntry(_ context.Context, entryID string, _ ...core.DBExecutor) ([]logbook.Diagram, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var diagrams []logbook.Diagram
	for _, d := range repo.db.diagrams {
		if d.EntryID == entryID {
			diagrams = append(diagrams, *d)
		}
	}
	sort.Slice(diagrams, func(i, j int) bool { return diagrams[i].UploadedAt.Before(diagrams[j].UploadedAt) })
	return diagrams, nil
}

func (repo *logbookRepository) DeleteDiagram(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	delete(repo.db.diagrams, id)
	return nil
}

func sortReviewRequests(rrs []logbook.ReviewRequest) {
	sort.Slice(rrs, func(i, j int) bool { return rrs[i].RequestedAt.Before(rrs[j].RequestedAt) })
}
