package echoapi

import (
	"context"
	"net/http"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/siwesng/slims/core"
	"github.com/siwesng/slims/core/logbook"
	"github.com/siwesng/slims/core/session"
	"github.com/siwesng/slims/core/user"
	filesvc "github.com/siwesng/slims/services/filestore"
)

type (
	Options struct {
		Conf           *core.Config
		DisableReqLogs bool
		UserSvc        user.Service
		SessionSvc     session.Service
		LogbookSvc     logbook.Service
		Logger         core.Logger
		// Shutdown signals the app to stop gracefully; wired by main.
		Shutdown func()
	}

	Server interface {
		http.Handler
		Start()
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	if opts.Shutdown == nil {
		opts.Shutdown = func() {}
	}
	s := &server{
		opts: opts,
		app:  echo.New(),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.opts.Conf

	translator := newTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, translator, s.opts.Shutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)
	s.app.GET("/health", health(conf))
	s.app.Static(filesvc.MediaURLPrefix, conf.Media.Root)

	v1 := s.app.Group("/v1")
	jwt := newJWTMiddleware(conf)

	registerUserAPI(v1, jwt, conf, s.opts.UserSvc, validate, translator)
	registerSessionAPI(v1, jwt, s.opts.UserSvc, s.opts.SessionSvc, validate)
	registerLogbookAPI(v1, jwt, s.opts.UserSvc, s.opts.LogbookSvc, validate)
}

func (s *server) Start() {
	s.app.Logger.Fatal(s.app.Start(s.opts.Conf.Server.Addr))
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func newTranslator() ut.Translator {
	enLoc := en.New()
	translator, _ := ut.New(enLoc, enLoc).GetTranslator("en")
	return translator
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to SLIMS API!")
}

func health(conf *core.Config) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		return ctx.JSON(http.StatusOK, echo.Map{"status": "ok", "build": conf.Build})
	}
}
