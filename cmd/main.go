package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"cosmic-coffee/internal/config"
	"cosmic-coffee/internal/database"
	"cosmic-coffee/internal/fault"
	"cosmic-coffee/internal/logger"
	"cosmic-coffee/internal/messaging"
	"cosmic-coffee/internal/models"
	"cosmic-coffee/internal/server"
	"cosmic-coffee/internal/services/cart"
	"cosmic-coffee/internal/services/loadgen"
	"cosmic-coffee/internal/services/menu"
	mwservice "cosmic-coffee/internal/services/middleware"
	"cosmic-coffee/internal/services/notification"
	"cosmic-coffee/internal/services/order"
	cartclient "cosmic-coffee/internal/services/order/adapter/cart"
	mwclient "cosmic-coffee/internal/services/order/adapter/middleware"
	"cosmic-coffee/internal/services/order/adapter/web"
	"cosmic-coffee/internal/storage/pgstore"
	"cosmic-coffee/internal/storage/redisstore"
)

func main() {
	var (
		mode       = flag.String("mode", "", "Service mode (api, middleware, cart, notification-subscriber, load-generator)")
		configPath = flag.String("config", "config.yaml", "Path to the YAML config file")
		port       = flag.Int("port", 0, "HTTP port, overrides the config for the running mode")
		prefetch   = flag.Int("prefetch", 10, "RabbitMQ prefetch count")
	)
	flag.Parse()

	if *mode == "" {
		fmt.Fprintf(os.Stderr, "Error: --mode flag is required\n")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	log := logger.New(*mode, cfg.Log.Level)
	requestID := logger.GenerateRequestID()

	log.Info("service_started", fmt.Sprintf("Starting %s", *mode), requestID, map[string]interface{}{
		"mode": *mode,
		"port": cfg.PortFor(*mode),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "api":
		err = runAPI(ctx, cfg, log)
	case "middleware":
		err = runMiddleware(ctx, cfg, log)
	case "cart":
		err = runCart(ctx, cfg, log)
	case "notification-subscriber":
		err = runNotificationSubscriber(ctx, cfg, log, *prefetch)
	case "load-generator":
		err = runLoadGenerator(ctx, cfg, log)
	default:
		err = fmt.Errorf("unknown mode: %s", *mode)
	}
	if err != nil {
		log.Error("service_failed", fmt.Sprintf("%s failed", *mode), requestID, err, nil)
		os.Exit(1)
	}

	log.Info("service_stopped", "Service stopped gracefully", requestID, nil)
}

func newFaults(cfg *config.Config) *fault.Injector {
	if !cfg.Faults.Enabled {
		return fault.New(fault.Disabled())
	}
	return fault.New()
}

func newHTTPServer(cfg *config.Config, mode string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.PortFor(mode)),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func newRouter(log *logger.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(server.WithLogging(log))
	return r
}

// runAPI runs the storefront: menu, orders, customers and the cart proxy.
func runAPI(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	requestID := logger.GenerateRequestID()
	faults := newFaults(cfg)

	var (
		rdb    *redis.Client
		store  order.Store
		locker order.Locker
		purge  func(context.Context) (int64, error)
	)

	rdb, err := redisstore.Connect(ctx, cfg.Redis.URL, log)
	if err != nil {
		if cfg.Orders.Backend == config.BackendRedis {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		log.Warn("redis_unavailable", "Running without menu cache and cart leases", requestID, map[string]interface{}{
			"error": err.Error(),
		})
		rdb = nil
	} else {
		defer rdb.Close()
		locker = redisstore.NewLease(rdb)
	}

	switch cfg.Orders.Backend {
	case config.BackendPostgres:
		db, err := database.New(ctx, cfg.DatabaseURL(), log)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close()

		if err := db.RunMigrations(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		pg := pgstore.NewOrderStore(db)
		store, purge = pg, pg.PurgeExpired
	default:
		store = redisstore.NewOrderStore(rdb)
	}

	var events order.Events = order.NopEvents{}
	if cfg.RabbitMQEnabled() {
		conn, err := messaging.New(cfg.RabbitMQURL(), log)
		if err != nil {
			log.Warn("rabbitmq_unavailable", "Order events disabled", requestID, map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			defer conn.Close()
			publisher := messaging.NewPublisher(conn, log)
			defer publisher.Close()
			events = publisher
		}
	}

	catalog := menu.NewService(rdb, cfg.Menu.CacheTTL, faults, cfg.Faults.Menu, log)

	middlewareClient := mwclient.NewClient(cfg.Services.MiddlewareURL, cfg.Middleware.Timeout, log,
		mwclient.WithBreaker(mwclient.NewBreaker(cfg.Middleware.BreakerThreshold, cfg.Middleware.BreakerCooldown)))
	if err := middlewareClient.Ping(ctx); err != nil {
		log.Warn("middleware_unreachable", "Middleware not reachable, orders will use fallback pricing", requestID, map[string]interface{}{
			"url":   cfg.Services.MiddlewareURL,
			"error": err.Error(),
		})
	}

	service := order.NewService(order.Deps{
		Cart:       cartclient.NewClient(cfg.Services.CartURL, cfg.Cart.Timeout),
		Middleware: middlewareClient,
		Catalog:    catalog,
		Store:      store,
		Locker:     locker,
		Events:     events,
		Faults:     faults,
	}, order.Options{
		OrderTTL:        cfg.Orders.TTL,
		LeaseTTL:        cfg.Orders.LeaseTTL,
		StrictStatus:    cfg.Orders.StrictStatus,
		CreatePolicy:    cfg.Faults.OrderCreate,
		ListPolicy:      cfg.Faults.OrdersList,
		CustomersPolicy: cfg.Faults.Customers,
	}, log)

	proxy, err := cart.NewProxy(cfg.Services.CartURL)
	if err != nil {
		return err
	}

	r := newRouter(log)
	r.Get("/health", server.HealthHandler("api", func(r *http.Request) bool {
		return service.HealthCheck(r.Context())
	}))
	menu.NewHandler(catalog, log).Routes(r)
	web.NewOrderHandler(service, log).Routes(r)
	r.Handle("/api/cart", proxy)
	r.Handle("/api/cart/*", proxy)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx, newHTTPServer(cfg, "api", r), cfg.Server.ShutdownTimeout, log)
	})
	if purge != nil {
		g.Go(func() error {
			purgeExpired(gctx, purge, cfg.Orders.PurgeEvery, log)
			return nil
		})
	}
	return g.Wait()
}

// purgeExpired deletes expired orders every interval until ctx is done.
func purgeExpired(ctx context.Context, purge func(context.Context) (int64, error), every time.Duration, log *logger.Logger) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := purge(ctx)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					log.Error("orders_purge_failed", "Failed to purge expired orders", "", err, nil)
				}
				continue
			}
			if n > 0 {
				log.Info("orders_purged", "Purged expired orders", "", map[string]interface{}{"count": n})
			}
		}
	}
}

func runMiddleware(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	rdb, err := redisstore.Connect(ctx, cfg.Redis.URL, log)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer rdb.Close()

	rng := fault.New()
	inventory := mwservice.NewInventory(rdb, rng, log)
	if err := inventory.Seed(ctx, menu.ItemIDs()); err != nil {
		log.Warn("inventory_seed_failed", "Failed to seed inventory", "startup", map[string]interface{}{
			"error": err.Error(),
		})
	}

	r := newRouter(log)
	mwservice.NewHandler(inventory, rng, log).Routes(r)
	return server.Run(ctx, newHTTPServer(cfg, "middleware", r), cfg.Server.ShutdownTimeout, log)
}

func runCart(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	rdb, err := redisstore.Connect(ctx, cfg.Redis.URL, log)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer rdb.Close()

	r := newRouter(log)
	cart.NewHandler(cart.NewStore(rdb, cfg.Cart.TTL), newFaults(cfg), cfg.Faults.CartAddItem, log).Routes(r)
	return server.Run(ctx, newHTTPServer(cfg, "cart", r), cfg.Server.ShutdownTimeout, log)
}

func runNotificationSubscriber(ctx context.Context, cfg *config.Config, log *logger.Logger, prefetch int) error {
	if !cfg.RabbitMQEnabled() {
		return errors.New("notification-subscriber needs rabbitmq configured")
	}

	conn, err := messaging.New(cfg.RabbitMQURL(), log)
	if err != nil {
		return fmt.Errorf("failed to initialize messaging: %w", err)
	}
	defer conn.Close()

	consumer := messaging.NewConsumer(conn, log, models.NotificationsQueue, "notification-subscriber", prefetch)
	return notification.NewSubscriber(consumer, log).Run(ctx)
}

func runLoadGenerator(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	gen := loadgen.New(loadgen.Options{
		BaseURL:       cfg.LoadGen.BaseURL,
		RequestRate:   cfg.LoadGen.RequestRate,
		StatsInterval: cfg.LoadGen.StatsInterval,
		Behavior:      loadgen.DefaultBehavior(),
	}, fault.New(), log)
	return gen.Run(ctx)
}
