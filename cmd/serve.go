package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"crewlink/internal/auth"
	"crewlink/internal/config"
	"crewlink/internal/db"
	grpcserver "crewlink/internal/grpc"
	"crewlink/internal/handlers"
	"crewlink/internal/middleware"
	"crewlink/internal/observability"
	"crewlink/internal/rabbitmq"
	"crewlink/internal/repositories"
	"crewlink/internal/services"
	"crewlink/internal/telemetry"
	"crewlink/internal/ws"
)

const (
	auditRoutingKey     = "audit.crewlink"
	healthCheckInterval = 10 * time.Second
	shutdownTimeout     = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP, websocket and gRPC health servers",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("http-port", "8083", "HTTP and websocket listen port")
	_ = v.BindPFlag("http.port", serveCmd.Flags().Lookup("http-port"))

	serveCmd.Flags().String("grpc-port", "9093", "gRPC health listen port")
	_ = v.BindPFlag("grpc.port", serveCmd.Flags().Lookup("grpc-port"))

	serveCmd.Flags().Bool("debug-routes", false, "Expose /debug routes")
	_ = v.BindPFlag("debug.enabled", serveCmd.Flags().Lookup("debug-routes"))

	serveCmd.Flags().String("profile-cpu", "", "Write a CPU profile into this directory")

	rootCmd.AddCommand(serveCmd)
}

// app is the assembled server: routes, realtime hub and the bindings between them.
type app struct {
	router   *gin.Engine
	hub      *ws.Hub
	bindings *services.RealtimeBindings
}

func newApp(cfg config.Config, database *sqlx.DB, publisher rabbitmq.Publisher) *app {
	hub := ws.NewHub()
	emitter := telemetry.NewAuditEmitter(publisher, auditRoutingKey, cfg.OTelServiceName, cfg.Environment)

	profiles := repositories.NewProfileRepo(database)
	presence := services.NewPresenceTracker(cfg.TypingTTL)
	notifications := services.NewNotificationService(
		repositories.NewNotificationRepo(database),
		repositories.NewPreferenceRepo(database),
		profiles,
		hub,
		publisher,
	)
	connections := services.NewConnectionService(repositories.NewConnectionRepo(database), notifications)
	chat := services.NewChatService(
		repositories.NewChatRepo(database),
		repositories.NewMessageRepo(database),
		profiles,
		connections,
		presence,
		hub,
		notifications,
	)
	bindings := services.BindRealtime(hub, hub, presence, chat, connections)

	validator := auth.NewValidator(cfg.JWTSecret)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.OTelServiceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/metrics", observability.MetricsHandler())
	router.GET("/health", func(c *gin.Context) {
		if err := database.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/ws", ws.NewWebSocketHandler(hub, validator, cfg.EventsPerSecond).Handle)

	protected := router.Group("/", middleware.AuthMiddleware(validator))
	handlers.NewChatHandler(chat, presence, emitter).Register(protected)
	handlers.NewConnectionHandler(connections, emitter).Register(protected)
	handlers.NewNotificationHandler(notifications).Register(protected)
	handlers.RegisterDebugRoutes(protected, emitter, hub, cfg.DebugEnabled)

	return &app{router: router, hub: hub, bindings: bindings}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	if dir, _ := cmd.Flags().GetString("profile-cpu"); dir != "" {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(dir), profile.NoShutdownHook).Stop()
	}
	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.OTelEndpoint, cfg.OTelServiceName)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			jww.WARN.Printf("tracing shutdown: %v", err)
		}
	}()

	database, err := db.Connect(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer database.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	jww.INFO.Printf("amqp publisher %s", publisher.Status())

	a := newApp(cfg, database, publisher)
	defer a.bindings.Close()

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return err
	}
	health := grpcserver.NewHealthServer()
	go health.Watch(ctx, healthCheckInterval, database.PingContext)
	go func() {
		if err := health.Serve(lis); err != nil {
			jww.ERROR.Printf("grpc health server: %v", err)
		}
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		jww.INFO.Printf("http listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		jww.INFO.Printf("shutting down")
	case err = <-errCh:
		jww.ERROR.Printf("http server: %v", err)
	}
	stop()

	health.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		jww.WARN.Printf("http shutdown: %v", shutdownErr)
	}
	return err
}
