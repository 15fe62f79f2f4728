package main

import (
	"fmt"
	"log"
	"os"

	"github.com/trezcool/tuition/apps/deps"
	"github.com/trezcool/tuition/core"
	emailsvc "github.com/trezcool/tuition/services/email"
	logsvc "github.com/trezcool/tuition/services/logger"
	"github.com/trezcool/tuition/storage/database"
	"github.com/trezcool/tuition/storage/database/memdb"
)

func main() {
	conf := core.Conf
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	mailer := emailsvc.NewService(logger)

	cli := commandLine{mailer: mailer, out: os.Stdout}
	if conf.Database.Engine == "memory" {
		repos, tx := deps.MemoryRepositories(memdb.Open())
		cli.repos, cli.svcs = repos, deps.NewServices(repos, tx, mailer, conf)
	} else {
		db, err := database.Open(conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
		}
		repos, tx := deps.PostgresRepositories(db)
		cli.db, cli.repos, cli.svcs = db.DB, repos, deps.NewServices(repos, tx, mailer, conf)
	}

	err := cli.run(os.Args)
	if cli.db != nil {
		_ = cli.db.Close()
	}
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %s", err), err)
		}
		os.Exit(1)
	}
}
