package session

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"churn/lib/tracer"
	"churn/resource"
	"churn/s3"
	"churn/storage"

	"github.com/google/uuid"
	"github.com/raulk/clock"
	"github.com/samber/mo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type SessionArgs struct {
	s3.S3Args         `json:"s3_._s3_args"`
	tracer.TracerArgs `json:"tracer_._tracer_args"`

	Master      string `arg:"--master,env:CHURN_MASTER" default:"local[*]" help:"compute endpoint: local, local[N] or local[*]" json:"master,omitempty"`
	AppName     string `arg:"--app-name,env:CHURN_APP_NAME" default:"CreditCardCustomers" help:"label of the compute session" json:"app_name,omitempty"`
	Dev         bool   `arg:"--dev,env:CHURN_DEV" help:"human readable development logging" json:"dev,omitempty"`
	PushGateway string `arg:"--pushgateway,env:PUSHGATEWAY_ADDRESS" help:"prometheus pushgateway that receives the run's metrics" json:"pushgateway,omitempty"`
}

/*
Session is the compute session of one scoring run. It owns every resource
the run acquires (storage backends, trace provider, metrics pusher) and
releases them exactly once in Close.
*/
type Session struct {
	ID          uuid.UUID
	AppName     string
	Master      string
	Parallelism int
	Logger      *zap.Logger
	Clock       clock.Clock
	Storage     storage.Resolver
	StartedAt   time.Time
	Args        SessionArgs

	resources []resource.Resource
	closeOnce sync.Once
	closeErr  error
	closed    bool
	mu        sync.Mutex
}

// CreateFromArgs acquires a compute session bound to args.Master and
// args.AppName.
func CreateFromArgs(args *SessionArgs) (*Session, error) {
	master, err := ParseMaster(args.Master)
	if err != nil {
		return nil, err
	}

	// First, create a structured logger that we can then use in other places.
	log.Print("Creating logger")
	var logger *zap.Logger
	if args.Dev {
		logger, err = zap.NewDevelopment()
	} else {
		config := zap.NewProductionConfig()
		config.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
		logger, err = config.Build(
			zap.AddCaller(),
			zap.AddStacktrace(zap.ErrorLevel),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to construct logger: %v", err)
	}
	_ = zap.ReplaceGlobals(logger)

	id := uuid.New()
	logger = logger.With(zap.String("app_name", args.AppName), zap.String("session_id", id.String()))

	sess := &Session{
		ID:          id,
		AppName:     args.AppName,
		Master:      args.Master,
		Parallelism: master.Parallelism,
		Logger:      logger,
		Clock:       clock.New(),
		Args:        *args,
	}
	sess.StartedAt = sess.Clock.Now()

	logger.Info("Creating local store")
	local, err := sess.acquire(storage.LocalConfig{})
	if err != nil {
		return nil, fmt.Errorf("failed to create local store: %v", err)
	}
	sess.Storage = storage.Resolver{Local: local.(storage.Local), S3: mo.None[storage.S3]()}

	if args.Region != "" {
		logger.Info("Creating s3 store", zap.String("region", args.Region))
		s3Store, err := sess.acquire(storage.S3Config{Args: args.S3Args})
		if err != nil {
			_ = sess.Close()
			return nil, fmt.Errorf("failed to create s3 store: %v", err)
		}
		sess.Storage.S3 = mo.Some(s3Store.(storage.S3))
	}

	if args.OtlpEndpoint != "" {
		logger.Info("Creating trace provider", zap.String("endpoint", args.OtlpEndpoint))
		shutdown, err := tracer.InitProvider(context.Background(), args.OtlpEndpoint)
		if err != nil {
			_ = sess.Close()
			return nil, fmt.Errorf("failed to create trace provider: %v", err)
		}
		sess.register(traceProvider{shutdown: func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return shutdown(ctx)
		}})
	}

	if args.PushGateway != "" {
		logger.Info("Creating metrics pusher", zap.String("pushgateway", args.PushGateway))
		if _, err := sess.acquire(PusherConfig{Addr: args.PushGateway, Job: args.AppName, Instance: id.String()}); err != nil {
			_ = sess.Close()
			return nil, fmt.Errorf("failed to create metrics pusher: %v", err)
		}
	}

	logger.Info("Session acquired", zap.String("master", args.Master), zap.Int("parallelism", sess.Parallelism))
	return sess, nil
}

func (s *Session) acquire(config resource.Config) (resource.Resource, error) {
	r, err := config.Materialize()
	if err != nil {
		return nil, err
	}
	s.register(r)
	return r, nil
}

func (s *Session) register(r resource.Resource) {
	s.resources = append(s.resources, r)
}

// Close releases every resource of the session, most recently acquired
// first. Only the first call does any work; later calls return its result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		var errs []string
		for i := len(s.resources) - 1; i >= 0; i-- {
			r := s.resources[i]
			if err := r.Close(); err != nil {
				s.Logger.Warn("failed to release resource", zap.Stringer("resource", r.Type()), zap.Error(err))
				errs = append(errs, fmt.Sprintf("%s: %v", r.Type(), err))
			}
		}
		s.Logger.Info("Session released", zap.Duration("uptime", s.Clock.Since(s.StartedAt)))
		// syncing a console logger fails on some platforms, nothing to do about it
		_ = s.Logger.Sync()
		if len(errs) > 0 {
			s.closeErr = fmt.Errorf("failed to release session: %s", strings.Join(errs, "; "))
		}
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
	})
	return s.closeErr
}

// Closed reports whether Close has run.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
