package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/daemon"
	_ "github.com/joho/godotenv/autoload" // Loads a .env file into the environment
	"github.com/kardianos/osext"
	_ "github.com/mattn/go-sqlite3" // Just needed for the sqlite driver
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	stagehand "github.com/derWhity/stagehand/internal"
	"github.com/derWhity/stagehand/internal/ctxhelper"
	"github.com/derWhity/stagehand/internal/database"
	"github.com/derWhity/stagehand/internal/folders"
	miniofolders "github.com/derWhity/stagehand/internal/folders/minio"
	s3folders "github.com/derWhity/stagehand/internal/folders/s3"
	"github.com/derWhity/stagehand/internal/log"
	"github.com/derWhity/stagehand/internal/migrate"
	"github.com/derWhity/stagehand/internal/models"
	"github.com/derWhity/stagehand/internal/repos"
	pgrepo "github.com/derWhity/stagehand/internal/repos/performance/postgres"
	sqliterepo "github.com/derWhity/stagehand/internal/repos/performance/sqlite"
	sessionrepo "github.com/derWhity/stagehand/internal/repos/session/inmem"
	userrepo "github.com/derWhity/stagehand/internal/repos/user/inmem"
)

const (
	appName    = "Stagehand"
	appVersion = "0.1.0"
)

// Checks and tries to create the given directory recursively (or exits if this fails)
func checkAndCreateDir(path string, logger *logrus.Entry) {
	logger = logger.WithField(log.FldPath, path)
	fileInfo, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("Directory does not exist - trying to create...")
			if err = os.MkdirAll(path, os.ModePerm); err != nil {
				logger.WithError(err).Fatal("Failed to create directory")
			}
			logger.Info("Directory created successfully")
		} else {
			logger.WithError(err).Fatal("Stat has failed")
		}
	} else if !fileInfo.IsDir() {
		logger.Fatalf("'%s' is not a directory. Remove the plain file if you want to continue", path)
	}
}

// openRecordStore connects to the configured database, runs the pending migrations and returns the performance
// repository together with a function releasing the connections
func openRecordStore(ctx context.Context, conf models.AppConfig, logger *logrus.Entry) (repos.PerformanceRepo, func(), error) {
	logger = logger.WithField(log.FldDriver, conf.Database.Driver)
	switch conf.Database.Driver {
	case models.DriverPostgres:
		pg, err := database.OpenPostgres(ctx, conf.Database, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Performing database migrations...")
		if err := migrate.ExecuteMigrationsOnDb(pg.DB, migrate.DialectPostgres, logger); err != nil {
			pg.Close()
			return nil, nil, err
		}
		return pgrepo.New(pg.Pool, logger), pg.Close, nil
	default:
		checkAndCreateDir(conf.DataDir, logger)
		db, err := database.OpenSQLite(conf.DataDir)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Performing database migrations...")
		if err := migrate.ExecuteMigrationsOnDb(db, migrate.DialectSQLite, logger); err != nil {
			db.Close()
			return nil, nil, err
		}
		return sqliterepo.New(db, logger), func() { db.Close() }, nil
	}
}

// openFolderService connects to the configured folder backend
func openFolderService(ctx context.Context, conf models.FolderConfig, logger *logrus.Entry) (folders.Service, error) {
	logger = logger.WithFields(logrus.Fields{
		log.FldBackend: conf.Backend,
		log.FldBucket:  conf.Bucket,
	})
	switch conf.Backend {
	case models.FolderBackendMinio:
		logger.Info("Using MinIO for performance folders")
		return miniofolders.New(ctx, conf, logger)
	case models.FolderBackendS3:
		logger.Info("Using S3 for performance folders")
		return s3folders.New(ctx, conf, logger)
	default:
		logger.Info("Performance folders are disabled")
		return folders.Disabled{}, nil
	}
}

func main() {
	execDir, err := osext.ExecutableFolder()
	if err != nil {
		panic(err)
	}

	configFile := flag.String(
		"config",
		filepath.Join(execDir, "config.json"),
		"The configuration file to load the application's configuration from",
	)
	flag.Parse()

	ctx := context.Background()

	// Initialize the logger
	logger := logrus.WithField(log.FldVersion, appVersion)
	logger.Infof("%s version %s is starting up...", appName, appVersion)
	ctx = context.WithValue(ctx, ctxhelper.KeyLogger, logger)

	// Load the main configuration file
	cs := stagehand.NewConfigService(*configFile, logger)
	if err := cs.Load(ctx); err != nil {
		logger.WithError(err).Fatal("Cannot load config")
	}
	conf := cs.GetConfig(ctx)
	if level, err := logrus.ParseLevel(conf.LogLevel); err == nil {
		logrus.SetLevel(level)
	} else {
		logger.WithError(err).Warn("Illegal log level - keeping the default")
	}

	performanceRepo, closeStore, err := openRecordStore(ctx, conf, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open the record store. Please check database for consistency and try again.")
	}
	defer closeStore()

	folderService, err := openFolderService(ctx, conf.Folders, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to the folder backend")
	}

	// Prepare the in-memory user repo and fill it with the default user
	userRepo := userrepo.New()
	u := models.User{
		Name:     conf.DefaultUser.Name,
		FullName: conf.DefaultUser.Name,
	}
	if err = u.SetPassword(conf.DefaultUser.Password); err != nil {
		logger.WithError(err).Fatal("Failed to set password for default user")
	}
	if err = userRepo.Create(&u); err != nil {
		logger.WithError(err).Fatal("Failed to create default user")
	}
	logger.WithField(log.FldUser, u.ID).Infof("Created user '%s'", u.Name)

	sessionRepo := sessionrepo.New()
	defer sessionRepo.Close()

	perfServ := stagehand.NewPerformanceService(
		performanceRepo,
		folderService,
		stagehand.PerformanceOptions{CleanupOnFailedInsert: conf.Folders.CleanupOnFailedInsert},
		logger,
	)
	sessServ := stagehand.NewSessionService(sessionRepo, userRepo, logger)

	httpLogger := logger.WithField(log.FldTransport, "HTTP")
	h := stagehand.MakeHTTPHandler(perfServ, sessServ, httpLogger)

	// Start listening
	errs := make(chan error)

	// Listen for stop signals that will end the service
	go func() {
		c := make(chan os.Signal, 2)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		err := fmt.Errorf("%s", <-c)
		logger.Info("Caught signal to stop. Shutting down.")
		errs <- err
	}()

	go func() {
		httpLogger.WithField("addr", conf.ListenAddress).Info("Starting listening port")
		errs <- http.ListenAndServe(conf.ListenAddress, h)
	}()

	// Watchdog for systemd
	go func() {
		interval, err := daemon.SdWatchdogEnabled(false)
		if err != nil || interval == 0 {
			return
		}
		logger.Info("Activating systemd watchdog goroutine")
		port := conf.ListenAddress[strings.LastIndex(conf.ListenAddress, ":")+1:]
		url := fmt.Sprintf("http://127.0.0.1:%s/alive", port)
		for {
			if resp, err := http.Get(url); err == nil {
				resp.Body.Close()
				daemon.SdNotify(false, "WATCHDOG=1")
			}
			time.Sleep(interval / 3)
		}
	}()

	// Notify systemd that we are ready to go (if available)
	daemon.SdNotify(false, "READY=1")

	logger.WithError(<-errs).Error("Shutdown complete")
}
