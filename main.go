package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"tableside/internal/archive"
	"tableside/internal/config"
	"tableside/internal/database"
	"tableside/internal/events"
	"tableside/internal/handlers"
	"tableside/internal/orderstore"
	"tableside/internal/repository"
	"tableside/internal/session"
	"tableside/internal/ws"
)

func main() {
	config.Load()
	cfg := config.AppEnv
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	plan, err := config.LoadFloorPlan(cfg.FloorPlanFile, cfg.TableCount)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, persist, client := openStore(cfg)
	if client != nil {
		defer client.Disconnect(context.Background())
	}

	publisher, err := openPublisher(cfg)
	if err != nil {
		log.Fatal(err)
	}
	dispatcher := events.NewDispatcher(events.DefaultDispatcherConfig(), publisher)

	orders := orderstore.New(repo, orderstore.Options{
		RetryDelay: cfg.FeedRetryDelay,
		Events:     dispatcher,
	})
	archiver := archive.NewService(repo, dispatcher)

	hub := ws.NewHub()
	bridge := ws.NewBridge(hub, plan)
	detach := bridge.Attach(orders)
	defer detach()

	sessions := session.NewManager(persist, session.ManagerOptions{
		Options: session.Options{
			Duration: cfg.SessionDuration,
			Tick:     cfg.SessionTick,
			Grace:    cfg.SessionGrace,
		},
		OnExpire: bridge.SessionExpired,
		OnReset:  bridge.SessionReset,
	})
	defer sessions.Close()

	r := gin.Default()
	handlers.Register(r, handlers.Deps{
		Repo:              repo,
		Orders:            orders,
		Archive:           archiver,
		Sessions:          sessions,
		Hub:               hub,
		Bridge:            bridge,
		Plan:              plan,
		JWTSecret:         cfg.JWTSecret,
		AccessTokenTTL:    cfg.AccessTokenTTL,
		StaffPasswordHash: cfg.StaffPasswordHash,
		SessionDuration:   cfg.SessionDuration,
		CORSOrigins:       cfg.CORSOrigins,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return orders.Run(gctx) })
	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error {
		log.Println("[SERVER] [INFO] listening on", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Println("[SERVER] [ERROR]", err)
	}
	if err := dispatcher.Close(); err != nil {
		log.Println("[EVENTS] [ERROR] closing publisher:", err)
	}
	log.Println("[SERVER] [INFO] stopped")
}

func openStore(cfg config.Config) (repository.Store, session.Persistence, *mongo.Client) {
	if cfg.StoreDriver == config.DriverMemory {
		log.Println("[STORE] [WARN] using the in-memory store, data is lost on restart")
		return repository.NewMemoryStore(), repository.NewMemorySessionStore(), nil
	}

	client, err := database.Connect(cfg.MongoURI)
	if err != nil {
		log.Fatal(err)
	}
	db := client.Database(cfg.DBName)
	log.Println("MongoDB connected to:", db.Name())

	if err := database.EnsureOrderIndexes(db); err != nil {
		log.Printf("order index warning: %v", err)
	}
	if err := database.EnsureHistoryIndexes(db); err != nil {
		log.Printf("history index warning: %v", err)
	}
	if err := database.EnsureSessionIndexes(db, 2*cfg.SessionDuration); err != nil {
		log.Printf("session index warning: %v", err)
	}

	return repository.NewMongoStore(db), repository.NewMongoSessionStore(db), client
}

func openPublisher(cfg config.Config) (events.Publisher, error) {
	switch cfg.EventsDriver {
	case config.EventsKafka:
		p, err := events.DialKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, err
		}
		log.Println("[EVENTS] [INFO] publishing to kafka topic", cfg.KafkaTopic)
		return p, nil
	case config.EventsRabbitMQ:
		p, err := events.DialRabbitMQ(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if err != nil {
			return nil, err
		}
		log.Println("[EVENTS] [INFO] publishing to rabbitmq exchange", cfg.RabbitMQExchange)
		return p, nil
	default:
		return events.Nop{}, nil
	}
}
