package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	echoapi "github.com/trezcool/paperdesk/apps/api/echo"
	"github.com/trezcool/paperdesk/apps/api/jobs"
	"github.com/trezcool/paperdesk/core"
	"github.com/trezcool/paperdesk/core/assignment"
	"github.com/trezcool/paperdesk/core/document"
	"github.com/trezcool/paperdesk/core/notification"
	"github.com/trezcool/paperdesk/core/policy"
	"github.com/trezcool/paperdesk/core/user"
	"github.com/trezcool/paperdesk/core/workflow"
	blobsvc "github.com/trezcool/paperdesk/services/blob"
	emailsvc "github.com/trezcool/paperdesk/services/email"
	"github.com/trezcool/paperdesk/services/eventbus"
	logsvc "github.com/trezcool/paperdesk/services/logger"
	"github.com/trezcool/paperdesk/services/ratelimit"
	"github.com/trezcool/paperdesk/storage/database"
	inmemdb "github.com/trezcool/paperdesk/storage/database/inmem"
	sqlxrepos "github.com/trezcool/paperdesk/storage/database/sqlx"
)

type repositories struct {
	users         user.Repository
	assignments   assignment.Repository
	documents     document.Repository
	notifications notification.Repository
	close         func() error
}

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	defer logger.Close()

	if err := run(conf, logger); err != nil {
		logger.Fatal(fmt.Sprintf("%v", err), err)
	}
}

func run(conf *core.Config, logger *logsvc.RollbarLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := conf.Validate(); err != nil {
		return err
	}

	// =========================================================================
	// Set up Dependencies

	repos, err := setUpRepositories(ctx, conf)
	if err != nil {
		return errors.Wrap(err, "setting up database")
	}
	defer func() {
		if err := repos.close(); err != nil {
			logger.Error("closing database", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	blobs, err := blobsvc.New(ctx, conf)
	if err != nil {
		return errors.Wrap(err, "setting up blob store")
	}
	blobs = blobsvc.Instrument(blobs, registry)

	validate, translator := core.NewValidator()
	user.RegisterValidators(validate, translator)

	// events
	var bus core.EventBus = eventbus.NewLocalBus(logger)
	if conf.NATS.URL != "" {
		if bus, err = eventbus.ConnectNATS(conf.NATS.URL, bus, conf.NATS.SubjectPrefix, logger); err != nil {
			return err
		}
	}
	defer func() { _ = bus.Close() }()

	// services
	usrSvc := user.NewService(repos.users)
	ntfOpts := notification.Options{Logger: logger, Validate: validate, Users: usrSvc}
	if conf.Mail.NotifyByEmail {
		ntfOpts.Mailer = newMailer(conf, logger)
	}
	ntfSvc := notification.NewService(repos.notifications, ntfOpts)
	notification.NewDispatcher(ntfSvc, registry).Register(bus)

	pol := policy.New(policy.Options{RestrictTeacherReads: conf.Documents.RestrictTeacherReads})
	wf := workflow.New(workflow.Options{
		Policy:      pol,
		Users:       usrSvc,
		Assignments: assignment.NewService(repos.assignments, usrSvc),
		Documents:   document.NewService(repos.documents, usrSvc),
		Blobs:       blobs,
		Bus:         bus,
		Logger:      logger,
		Validate:    validate,
		MaxFileSize: conf.Uploads.MaxFileSize,
	})

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	admin, created, err := usrSvc.EnsureAdmin(ctx, user.NewUser{
		Name:     conf.DefaultAdmin.Name,
		Username: conf.DefaultAdmin.Username,
		Email:    conf.DefaultAdmin.Email,
		Password: conf.DefaultAdmin.Password,
	})
	if err != nil {
		return errors.Wrap(err, "creating default admin")
	}
	if created {
		logger.Info(fmt.Sprintf("Default admin %q created", admin.Username))
	}

	scheduler, err := jobs.New(conf, ntfSvc, logger)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()
		scheduler.Stop(stopCtx)
	}()

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugAddress, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	opts := &echoapi.Options{
		Conf:           conf,
		Logger:         logger,
		SignalShutdown: stop,
		Validate:       validate,
		Translator:     translator,
		Policy:         pol,
		Users:          usrSvc,
		Notifications:  ntfSvc,
		Workflow:       wf,
		Registry:       registry,
	}
	if conf.Uploads.Backend == "" || conf.Uploads.Backend == "local" {
		opts.UploadsDir = conf.Uploads.Dir
	}
	if conf.Redis.Address != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     conf.Redis.Address,
			Password: conf.Redis.Password,
			DB:       conf.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()
		opts.RateLimitStore = ratelimit.NewRedisStore(rdb, conf.RateLimit.Requests, conf.RateLimit.Window)
	}
	server := echoapi.NewServer(opts)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("API listening on " + conf.Server.Address)
		serverErrors <- server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-serverErrors:
		if errors.Cause(err) != http.ErrServerClosed {
			return errors.Wrap(err, "server error")
		}
		return nil

	case <-ctx.Done():
		logger.Info("Start shutdown...")

		// give outstanding requests a deadline for completion
		shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Stop(shutdownCtx); err != nil {
			return errors.Wrap(err, "could not stop server gracefully")
		}
	}
	return nil
}

// setUpRepositories stores data in PostgreSQL, or in memory when conf.Database.Engine is "memory".
func setUpRepositories(ctx context.Context, conf *core.Config) (*repositories, error) {
	if conf.Database.Engine == "memory" {
		db := inmemdb.Open()
		return &repositories{
			users:         inmemdb.NewUserRepository(db),
			assignments:   inmemdb.NewAssignmentRepository(db),
			documents:     inmemdb.NewDocumentRepository(db),
			notifications: inmemdb.NewNotificationRepository(db),
			close:         func() error { return nil },
		}, nil
	}

	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return nil, err
	}
	db, err := database.Open(ctx, conf)
	if err != nil {
		return nil, err
	}
	if err = database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &repositories{
		users:         sqlxrepos.NewUserRepository(db),
		assignments:   sqlxrepos.NewAssignmentRepository(db),
		documents:     sqlxrepos.NewDocumentRepository(db),
		notifications: sqlxrepos.NewNotificationRepository(db),
		close:         db.Close,
	}, nil
}

func newMailer(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Mail.SendgridAPIKey == "" || conf.Debug {
		return emailsvc.NewConsoleService(log.New(os.Stdout, "MAIL : ", log.LstdFlags), logger, conf)
	}
	return emailsvc.NewSendgridService(logger, conf)
}
