// Package report assembles and exports student logbooks.
package report

import (
	"context"
	"fmt"
	"net/mail"
	"path"
	"time"

	"github.com/pkg/errors"

	"github.com/siwesng/slims/core"
	"github.com/siwesng/slims/core/logbook"
	"github.com/siwesng/slims/core/session"
	"github.com/siwesng/slims/core/user"
)

type (
	Service interface {
		// ExportLogbook builds the full-session PDF, stores it and emails the
		// student a download link. Returns the stored file's URL.
		ExportLogbook(ctx context.Context, studentID, sessionID string) (string, error)
		// CleanupExports removes stored exports older than the configured TTL.
		CleanupExports(ctx context.Context) error
	}

	service struct {
		conf    *core.Config
		lbRepo  logbook.Repository
		sessSvc session.Service
		usrSvc  user.Service
		files   core.FileStorage
		mailSvc core.EmailService
	}
)

var _ Service = (*service)(nil)

func NewService(
	conf *core.Config,
	lbRepo logbook.Repository,
	sessSvc session.Service,
	usrSvc user.Service,
	files core.FileStorage,
	mailSvc core.EmailService,
) Service {
	return &service{
		conf:    conf,
		lbRepo:  lbRepo,
		sessSvc: sessSvc,
		usrSvc:  usrSvc,
		files:   files,
		mailSvc: mailSvc,
	}
}

func (svc *service) ExportLogbook(ctx context.Context, studentID, sessionID string) (string, error) {
	data, err := svc.gather(ctx, studentID, sessionID)
	if err != nil {
		return "", err
	}

	buff, err := BuildLogbookPDF(data)
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("logbook-%s-%d.pdf", sessionID, data.GeneratedAt.Unix())
	url, err := svc.files.Save(ctx, path.Join("exports", studentID, name), buff)
	if err != nil {
		return "", errors.Wrap(err, "storing logbook export")
	}

	svc.sendExportReadyMail(data.Student, data.Session, url)
	return url, nil
}

func (svc *service) CleanupExports(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-svc.conf.Media.ExportTTL)
	return svc.files.DeleteOlderThan(ctx, "exports", cutoff)
}

func (svc *service) gather(ctx context.Context, studentID, sessionID string) (ExportData, error) {
	student, err := svc.usrSvc.GetByID(ctx, studentID)
	if err != nil {
		return ExportData{}, err
	}
	sess, err := svc.sessSvc.GetSessionByID(ctx, sessionID)
	if err != nil {
		return ExportData{}, err
	}
	enr, err := svc.sessSvc.GetEnrollment(ctx, sessionID, studentID)
	if err != nil {
		return ExportData{}, err
	}
	entries, err := svc.lbRepo.QueryEntries(ctx, studentID, sessionID)
	if err != nil {
		return ExportData{}, err
	}

	commentsByWeek := make(map[int][]logbook.Comment, len(entries))
	commenters := make(map[string]user.User)
	for _, e := range entries {
		comments, err := svc.lbRepo.QueryCommentsByEntry(ctx, e.ID)
		if err != nil {
			return ExportData{}, err
		}
		if len(comments) == 0 {
			continue
		}
		commentsByWeek[e.WeekNumber] = comments
		for _, c := range comments {
			if _, ok := commenters[c.CommenterID]; ok {
				continue
			}
			if usr, err := svc.usrSvc.GetByID(ctx, c.CommenterID); err == nil {
				commenters[c.CommenterID] = usr
			}
		}
	}

	return ExportData{
		Student:        student,
		Session:        sess,
		Enrollment:     enr,
		Entries:        entries,
		CommentsByWeek: commentsByWeek,
		Commenters:     commenters,
		GeneratedAt:    time.Now().UTC(),
	}, nil
}

func (svc *service) sendExportReadyMail(student user.User, sess session.Session, url string) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: student.Name, Address: student.Email}},
		Subject:      fmt.Sprintf("Your %s logbook export is ready", sess.Name),
		TemplateName: "export-ready",
		TemplateData: struct {
			StudentName string
			SessionName string
			URL         string
		}{student.Name, sess.Name, url},
	})
}
