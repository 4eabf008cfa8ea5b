// Package discovery decide cuándo correr el discovery de tenants:
//
//   - manual: solo por trigger explícito (admin HTTP / CLI).
//   - poll: además, cada Interval.
//   - redis: además, al recibir un mensaje en un canal pub/sub; cualquier
//     instancia puede publicar con Publish.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/tenantdb/internal/observability/logger"
	"github.com/dropDatabas3/tenantdb/internal/provisioner"
)

// Mode política de discovery.
type Mode string

const (
	ModeManual Mode = "manual"
	ModePoll   Mode = "poll"
	ModeRedis  Mode = "redis"
)

// DefaultChannel canal pub/sub por defecto.
const DefaultChannel = "tenantdb:discover"

// ParseMode valida un modo ("" = manual).
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", ModeManual:
		return ModeManual, nil
	case ModePoll, ModeRedis:
		return m, nil
	default:
		return "", fmt.Errorf("discovery: unknown mode %q", s)
	}
}

// Runner es lo que ejecuta una corrida (provisioner.Provisioner).
type Runner interface {
	DiscoverAndRegister(ctx context.Context) (provisioner.Report, error)
}

// Config del servicio.
type Config struct {
	Mode     Mode
	Interval time.Duration // poll
	Channel  string        // redis
	// OnStartup corre una vez al iniciar Run.
	OnStartup bool
	// RunTimeout acota cada corrida (default 30s).
	RunTimeout time.Duration
}

// Service dispara corridas de discovery según la política.
type Service struct {
	runner  Runner
	cfg     Config
	rdb     *redis.Client
	trigger chan struct{}
}

// New crea el servicio. El modo redis requiere rdb.
func New(runner Runner, cfg Config, rdb *redis.Client) (*Service, error) {
	if cfg.Mode == "" {
		cfg.Mode = ModeManual
	}
	switch cfg.Mode {
	case ModeManual:
	case ModePoll:
		if cfg.Interval <= 0 {
			return nil, errors.New("discovery: poll mode requires a positive interval")
		}
	case ModeRedis:
		if rdb == nil {
			return nil, errors.New("discovery: redis mode requires a redis client")
		}
		if cfg.Channel == "" {
			cfg.Channel = DefaultChannel
		}
	default:
		return nil, fmt.Errorf("discovery: unknown mode %q", cfg.Mode)
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 30 * time.Second
	}
	return &Service{runner: runner, cfg: cfg, rdb: rdb, trigger: make(chan struct{}, 1)}, nil
}

// Mode retorna el modo efectivo.
func (s *Service) Mode() Mode { return s.cfg.Mode }

// Trigger pide una corrida. No bloquea: pedidos mientras hay uno pendiente se
// fusionan. Retorna false si se fusionó.
func (s *Service) Trigger() bool {
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Run procesa triggers hasta que ctx se cancele.
func (s *Service) Run(ctx context.Context) error {
	log := logger.From(ctx).With(logger.Component("discovery"), logger.String("mode", string(s.cfg.Mode)))
	log.Info("discovery loop started")
	defer log.Info("discovery loop stopped")

	var tick <-chan time.Time
	if s.cfg.Mode == ModePoll {
		t := time.NewTicker(s.cfg.Interval)
		defer t.Stop()
		tick = t.C
	}

	var msgs <-chan *redis.Message
	if s.cfg.Mode == ModeRedis {
		sub := s.rdb.Subscribe(ctx, s.cfg.Channel)
		defer sub.Close()
		// Receive confirma la suscripción antes de empezar a escuchar
		if _, err := sub.Receive(ctx); err != nil {
			return fmt.Errorf("discovery: subscribe %s: %w", s.cfg.Channel, err)
		}
		msgs = sub.Channel()
	}

	if s.cfg.OnStartup {
		s.runOnce(ctx, "startup")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.trigger:
			s.runOnce(ctx, "trigger")
		case <-tick:
			s.runOnce(ctx, "poll")
		case m, ok := <-msgs:
			if !ok {
				msgs = nil
				log.Warn("redis subscription closed")
				continue
			}
			log.Debug("discovery message", logger.String("payload", m.Payload))
			s.runOnce(ctx, "redis")
		}
	}
}

func (s *Service) runOnce(ctx context.Context, reason string) {
	rctx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	defer cancel()
	rep, err := s.runner.DiscoverAndRegister(rctx)
	log := logger.From(ctx).With(logger.Component("discovery"), logger.String("reason", reason))
	if err != nil {
		log.Warn("discovery run finished with errors", logger.String("summary", rep.String()), logger.Err(err))
		return
	}
	log.Debug("discovery run ok", logger.String("summary", rep.String()))
}

// Publish pide un discovery a todas las instancias suscriptas al canal.
// Retorna cuántos suscriptores recibieron el mensaje.
func Publish(ctx context.Context, rdb *redis.Client, channel, reason string) (int64, error) {
	if channel == "" {
		channel = DefaultChannel
	}
	if reason == "" {
		reason = "manual"
	}
	n, err := rdb.Publish(ctx, channel, reason).Result()
	if err != nil {
		return 0, fmt.Errorf("discovery: publish %s: %w", channel, err)
	}
	return n, nil
}
