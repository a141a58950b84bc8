package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/siwesng/slims/apps/api/echo"
	"github.com/siwesng/slims/core"
	"github.com/siwesng/slims/core/logbook"
	"github.com/siwesng/slims/core/report"
	"github.com/siwesng/slims/core/session"
	"github.com/siwesng/slims/core/user"
	emailsvc "github.com/siwesng/slims/services/email"
	filesvc "github.com/siwesng/slims/services/filestore"
	logsvc "github.com/siwesng/slims/services/logger"
	queuesvc "github.com/siwesng/slims/services/queue"
	"github.com/siwesng/slims/storage/database"
	sqlxrepos "github.com/siwesng/slims/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sql.DB, core.DBExecutor) {
	setUp := func() (*sql.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, db
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newJobQueue(conf *core.Config) core.JobQueue {
	return queuesvc.NewAsynqQueue(conf)
}

func newFileStorage(conf *core.Config) core.FileStorage {
	return filesvc.NewLocalStorage(conf)
}

func newServerOptions(
	conf *core.Config,
	logger core.Logger,
	usrSvc user.Service,
	sessSvc session.Service,
	lbSvc logbook.Service,
) *echoapi.Options {
	return &echoapi.Options{
		Conf:       conf,
		UserSvc:    usrSvc,
		SessionSvc: sessSvc,
		LogbookSvc: lbSvc,
		Logger:     logger,
	}
}

// newContainer returns the dependency injection dig.Container.
func newContainer() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newEmailService))
	must(c.Provide(newJobQueue))
	must(c.Provide(newFileStorage))
	must(c.Provide(sqlxrepos.NewUserRepository, dig.As(new(user.Repository))))
	must(c.Provide(sqlxrepos.NewSessionRepository, dig.As(new(session.Repository))))
	must(c.Provide(sqlxrepos.NewLogbookRepository, dig.As(new(logbook.Repository))))
	must(c.Provide(user.NewService))
	must(c.Provide(session.NewService))
	must(c.Provide(logbook.NewService))
	must(c.Provide(report.NewService))
	must(c.Provide(queuesvc.NewWorker))
	must(c.Provide(newServerOptions))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
