package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"golang.org/x/sync/errgroup"

	"github.com/gatherly/gatherly/config"
	"github.com/gatherly/gatherly/controller"
	"github.com/gatherly/gatherly/middleware"
	"github.com/gatherly/gatherly/realtime"
	"github.com/gatherly/gatherly/repository"
	"github.com/gatherly/gatherly/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	mongoClient, err := mongo.NewClient(options.Client().ApplyURI(cfg.MongoDBURI))
	if err != nil {
		log.Fatal().Err(err).Msg("mongo client")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = mongoClient.Connect(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("mongo connect")
	}
	defer mongoClient.Disconnect(ctx)
	err = mongoClient.Ping(ctx, readpref.Primary())
	if err != nil {
		log.Fatal().Err(err).Msg("mongo ping")
	}

	userRepository := repository.NewUserRepository(mongoClient, cfg.MongoDBName)
	eventRepository := repository.NewEventRepository(mongoClient, cfg.MongoDBName)

	hub := realtime.NewHub()
	uploadService := service.NewUploadService(cfg.ImageUploadURL, cfg.ImageUploadKey)
	userService := service.NewUserService(userRepository, eventRepository)
	eventService := service.NewEventService(eventRepository, userRepository, hub, uploadService)

	auth := middleware.NewAuthMiddleware(cfg.JWTSecret, userService)

	userController := &controller.UserController{
		UserService: userService,
		Auth:        auth,
	}
	eventController := &controller.EventController{
		EventService: eventService,
	}

	r := gin.Default()
	r.Use(middleware.CORS(cfg.AllowedOrigin))

	user := r.Group("/api/user")
	{
		user.POST("/register", userController.Register)
		user.POST("/login", userController.Login)
		user.POST("/guest-login", userController.GuestLogin)
		user.GET("/logout", userController.Logout)
		user.GET("/checkauth", auth.RequireAuth(), userController.CheckAuth)
	}

	events := r.Group("/api/events")
	{
		events.GET("", eventController.List)
		events.GET("/:id", eventController.GetByID)
		events.POST("", auth.RequireAuth(), eventController.Create)
		events.PUT("/:id", auth.RequireAuth(), eventController.Update)
		events.DELETE("/:id", auth.RequireAuth(), eventController.Delete)
		events.POST("/:id/join", auth.RequireAuth(), eventController.Join)
		events.POST("/:id/leave", auth.RequireAuth(), eventController.Leave)
	}

	r.GET("/ws", func(ctx *gin.Context) {
		realtime.ServeWS(hub, cfg.AllowedOrigin, ctx.Writer, ctx.Request)
	})

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	group, groupCtx := errgroup.WithContext(runCtx)

	group.Go(func() error {
		err := hub.Run(groupCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	group.Go(func() error {
		log.Info().Str("port", cfg.Port).Msg("server listening")
		err := server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	group.Go(func() error {
		ticker := time.NewTicker(cfg.GuestSweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				purged, err := userService.PurgeExpiredGuests(time.Now())
				if err != nil {
					log.Error().Err(err).Msg("guest sweep failed")
					continue
				}
				if purged > 0 {
					log.Info().Int("purged", purged).Msg("guest sweep")
				}
			case <-groupCtx.Done():
				return nil
			}
		}
	})

	group.Go(func() error {
		<-groupCtx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
