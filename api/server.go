package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kyoden/chatrelay/config"
	"github.com/kyoden/chatrelay/db/kvdb"
	"github.com/kyoden/chatrelay/logger"
	"github.com/kyoden/chatrelay/services/auth"
	"github.com/kyoden/chatrelay/services/extract"
	"github.com/kyoden/chatrelay/services/notify"
	"github.com/kyoden/chatrelay/services/relay"
	"github.com/kyoden/chatrelay/services/search"
	"github.com/kyoden/chatrelay/validation"
)

type server struct {
	router      *gin.Engine
	httpServer  *http.Server
	cfg         *config.Config
	kvdb        kvdb.DB
	validator   *validation.Validator
	verifier    *auth.Verifier
	modelClient *relay.Client
	dispatcher  *notify.Dispatcher
	searcher    relay.Searcher
	pool        *relay.Pool
	logger      logger.Logger
}

func Run(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)

	defer cancel()

	s := &server{
		cfg:    cfg,
		logger: logger.New(cfg.IsDebug()),
	}
	if err := s.setupDependencies(ctx); err != nil {
		return err
	}
	s.setupRouter()
	s.setupHTTPServer()
	s.setupGracefulShutdown(ctx)

	return nil
}

func (s *server) setupDependencies(ctx context.Context) error {
	var err error
	s.kvdb, err = kvdb.New(s.logger, s.cfg.GetJobDBPath())
	if err != nil {
		s.logger.Error("error creating kvDB", "err", err.Error())
		return err
	}
	s.validator, err = validation.New(s.logger)
	if err != nil {
		s.logger.Error("error creating validator", "err", err.Error())
		return err
	}

	s.verifier = auth.New(s.logger)
	s.modelClient = relay.NewClient(s.logger, s.cfg.GetOllamaURL(), s.cfg.GetOllamaModel(), s.cfg.GetOllamaTimeout())
	s.dispatcher = notify.NewDispatcher(s.logger, s.cfg.GetWorkflowURL())

	if err := s.setupSearch(); err != nil {
		return err
	}

	s.pool = relay.NewPool(ctx, s.logger, s.cfg.GetWorkerPoolSize(), s.modelClient, s.dispatcher, s.searcher, s.kvdb)

	return nil
}

// setupSearch wires the file-search service when enabled. A missing or
// invalid search directory disables search instead of failing startup.
func (s *server) setupSearch() error {
	if !s.cfg.IsSearchEnabled() {
		s.logger.Info("file search disabled")
		return nil
	}

	searchDir := s.cfg.GetSearchDir()
	dirCheck := struct {
		Dir string `json:"search_dir" validate:"valid_search_dir"`
	}{Dir: searchDir}
	if searchDir == "" {
		s.logger.Warn("file search enabled but no search directory configured, disabling search")
		return nil
	}
	if err := s.validator.Validate(dirCheck); err != nil {
		s.logger.Warn("search directory invalid, disabling search", "dir", searchDir, "err", err.Error())
		return nil
	}

	extractor := extract.New(s.logger)
	s.searcher = search.New(s.logger, extractor, search.Config{
		BaseDir:    searchDir,
		FileTypes:  s.cfg.GetSearchFileTypes(),
		MaxResults: s.cfg.GetSearchMaxFiles(),
		DateStrict: s.cfg.IsDateStrict(),
	})
	s.logger.Info("file search enabled", "dir", searchDir)

	return nil
}

func (s *server) setupRouter() {
	router := newRouter()

	router.Use(loggingMiddleware(s.logger))

	s.setupRoutes(router)

	s.router = router
}

func (s *server) setupHTTPServer() {

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", s.cfg.GetHost(), s.cfg.GetPort()),
		Handler: s.router.Handler(),
	}
	s.httpServer = httpServer
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()
}

func (s *server) setupGracefulShutdown(ctx context.Context) {

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		s.logger.Info("starting to shut down http server")
		shutdownCtx := context.Background()
		shutdownCtx, cancel := context.WithTimeout(shutdownCtx, 10*time.Second)
		defer cancel()
		s.pool.Wait()
		s.kvdb.Close()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error shutting down http server", "err", err)
			return
		}
		s.logger.Info("shut down http server successfully")
	}()

	wg.Wait()
}
