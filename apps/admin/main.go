package main

import (
	"log"
	"os"

	"github.com/siwesng/slims/core"
	"github.com/siwesng/slims/storage/database"
	sqlxrepos "github.com/siwesng/slims/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	defer func() { _ = db.Close() }()
	errAndDie(db.Ping())

	// start CLI
	cli := commandLine{
		conf:     conf,
		db:       db,
		usrRepo:  sqlxrepos.NewUserRepository(db),
		sessRepo: sqlxrepos.NewSessionRepository(db),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
