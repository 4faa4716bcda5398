package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/parasum-digital/sku-registro/internal/api"
	"github.com/parasum-digital/sku-registro/internal/config"
	"github.com/parasum-digital/sku-registro/internal/database"
	"github.com/parasum-digital/sku-registro/internal/flow"
	"github.com/parasum-digital/sku-registro/internal/scanner"
	"github.com/parasum-digital/sku-registro/internal/services"
	"github.com/sirupsen/logrus"
)

func main() {
	// Cargar configuración
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	// Configurar logging
	logger := setupLogger(cfg)
	logger.Info("Starting SKU Registro Service...")

	// Configurar modo de Gin
	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Conectar a la base de datos solo si Supabase está configurado.
	// Sin credenciales el servicio arranca degradado: el dashboard
	// muestra el estado "sin datos" y el alta responde NOT_CONFIGURED.
	var db *database.DB
	if cfg.Supabase.Configured() {
		db, err = database.Connect(cfg)
		if err != nil {
			logger.Warnf("Error connecting to database: %v", err)
			db = nil
		} else {
			defer db.Close()
		}
	} else {
		logger.Warn("Supabase credentials not provided, backend operations will not be available")
	}

	// Conectar a Redis (opcional: cache de historial y sesiones de registro)
	redis, err := database.ConnectRedis(cfg)
	if err != nil {
		logger.Warnf("Error connecting to Redis: %v", err)
		redis = nil
	} else {
		defer redis.Close()
	}

	// Inicializar cliente del storage de Supabase (bucket sku-fotos)
	var supabaseClient *database.SupabaseClient
	if cfg.Supabase.Configured() && cfg.Supabase.StorageConfigured() {
		supabaseClient, err = database.NewSupabaseClient(&cfg.Supabase, logger)
		if err != nil {
			logger.Warnf("Error initializing Supabase storage client: %v", err)
			supabaseClient = nil
		} else {
			if err := supabaseClient.HealthCheck(); err != nil {
				logger.Warnf("Supabase storage health check failed: %v", err)
			} else {
				logger.Info("Supabase storage connection healthy")
			}
		}
	} else {
		logger.Warn("Supabase storage credentials not provided, fotos will not be uploaded")
	}

	// Inicializar servicios
	fotoService := services.NewFotoService(cfg.Registro.FotoMaxLado, cfg.Registro.FotoCalidadJPEG, logger)

	var store services.SKUStore
	var fetcher services.RecentFetcher
	if db != nil {
		repo := database.NewSKURepository(db, logger)
		store = repo
		fetcher = repo
	}

	var uploader services.FotoUploader
	if supabaseClient != nil {
		uploader = supabaseClient
	}

	var cache services.HistorialCache
	var flowStore flow.Store
	if redis != nil {
		cache = redis
		flowStore = flow.NewRedisStore(redis, cfg.Registro.SesionTTL)
	} else {
		flowStore = flow.NewMemoryStore(cfg.Registro.SesionTTL)
	}

	registroService := services.NewRegistroService(store, uploader, fotoService, logger)
	historialService := services.NewHistorialService(fetcher, cache, cfg.Registro.HistorialLimit, cfg.Registro.HistorialTTL, logger)
	scanRegistry := scanner.NewRegistry(cfg.Registro.ScanTTL, logger)

	// Inicializar API
	apiHandler := api.NewAPI(registroService, historialService, scanRegistry, flowStore, logger)

	// Configurar router
	router := setupRouter(apiHandler, cfg)

	// Crear servidor HTTP
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Canal para señales de terminación
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Iniciar servidor en goroutine
	go func() {
		logger.Infof("Server starting on %s:%s", cfg.Server.Host, cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	// Esperar señal de terminación
	<-quit
	logger.Info("Shutting down server...")

	// Contexto con timeout para shutdown graceful
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown graceful del servidor
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// setupLogger configura el logger según la configuración
func setupLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	// Configurar nivel de log
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	// Configurar formato
	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

// setupRouter configura el router principal
func setupRouter(apiHandler *api.API, cfg *config.Config) *gin.Engine {
	router := gin.New()

	// Middleware global
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Middleware de CORS para desarrollo
	if cfg.IsDevelopment() {
		router.Use(func(c *gin.Context) {
			c.Header("Access-Control-Allow-Origin", "*")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization")

			if c.Request.Method == "OPTIONS" {
				c.AbortWithStatus(204)
				return
			}

			c.Next()
		})
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"service":   "sku-registro",
			"version":   "1.0.0",
		})
	})

	// API v1
	v1 := router.Group("/v1")
	{
		// Registro de SKUs y historial del dashboard
		v1.POST("/skus", apiHandler.CreateSKU)
		v1.GET("/skus/recent", apiHandler.GetRecent)

		// Captura de código de barras
		scan := v1.Group("/scan/sessions")
		{
			scan.POST("", apiHandler.OpenScanSession)
			scan.POST("/:id/frames", apiHandler.PushScanFrame)
			scan.DELETE("/:id", apiHandler.CloseScanSession)
		}

		// Navegación del formulario (dashboard/form)
		registro := v1.Group("/registro/sessions")
		{
			registro.POST("", apiHandler.CreateRegistroSession)
			registro.GET("/:id", apiHandler.GetRegistroSession)
			registro.POST("/:id/transition", apiHandler.TransitionRegistro)
			registro.PUT("/:id/draft", apiHandler.PutDraft)
		}
	}

	return router
}
