// cmd/web/main.go
package main

import (
	"context"
	"os"

	"cloud.google.com/go/firestore"
	"github.com/LuisEduardoPedra/emissorNFCe/internal/api/handlers"
	"github.com/LuisEduardoPedra/emissorNFCe/internal/api/middleware"
	"github.com/LuisEduardoPedra/emissorNFCe/internal/api/responses"
	"github.com/LuisEduardoPedra/emissorNFCe/internal/config"
	"github.com/LuisEduardoPedra/emissorNFCe/internal/core/acbr"
	"github.com/LuisEduardoPedra/emissorNFCe/internal/core/document"
	"github.com/LuisEduardoPedra/emissorNFCe/internal/core/emission"
	"github.com/LuisEduardoPedra/emissorNFCe/internal/core/numbering"
	"github.com/LuisEduardoPedra/emissorNFCe/internal/storage/firestoredb"
	"github.com/LuisEduardoPedra/emissorNFCe/internal/storage/memory"
	"github.com/LuisEduardoPedra/emissorNFCe/internal/storage/postgres"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// store reúne o que cada driver de armazenamento precisa oferecer.
type store interface {
	emission.Repository
	emission.RecordFinder
	numbering.Counter
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (store, func() error) {
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		pg, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("Erro ao abrir conexão com o PostgreSQL", zap.Error(err))
		}
		if err := pg.MigrateSchema(ctx); err != nil {
			logger.Fatal("Erro ao criar o schema no PostgreSQL", zap.Error(err))
		}
		logger.Info("Conectado com sucesso ao PostgreSQL")
		return pg, pg.Close
	case config.DriverMemory:
		mem := memory.NewStore()
		file, err := os.Open(cfg.MemorySeedFile)
		if err != nil {
			logger.Fatal("Erro ao abrir seed do armazenamento em memória", zap.Error(err))
		}
		defer file.Close()
		if err := mem.LoadSeed(file); err != nil {
			logger.Fatal("Erro ao carregar seed do armazenamento em memória", zap.Error(err))
		}
		logger.Warn("Usando armazenamento em memória: dados e numeração se perdem ao reiniciar", zap.String("seed", cfg.MemorySeedFile))
		return mem, func() error { return nil }
	default:
		client, err := firestore.NewClientWithDatabase(ctx, cfg.FirestoreProjectID, cfg.FirestoreDatabaseID)
		if err != nil {
			logger.Fatal("Erro ao inicializar cliente Firestore", zap.String("database", cfg.FirestoreDatabaseID), zap.Error(err))
		}
		logger.Info("Conectado com sucesso ao Firestore", zap.String("database", cfg.FirestoreDatabaseID))
		return firestoredb.NewStore(client), client.Close
	}
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := config.LoadEnvFile(".env", logger); err != nil {
		logger.Warn("Falha ao carregar .env", zap.Error(err))
	}
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Configuração inválida", zap.Error(err))
	}
	responses.InitLogger(logger)

	ctx := context.Background()
	db, closeStore := openStore(ctx, cfg, logger)
	defer closeStore()

	client := acbr.NewClient(
		acbr.WithTimeout(cfg.ACBrTimeout),
		acbr.WithMaxInFlight(cfg.ACBrMaxInFlight),
		acbr.WithLogger(logger),
	)
	emissionService := emission.NewService(emission.Deps{
		Repository: db,
		Records:    db,
		Sequencer:  numbering.NewSequencer(db, logger),
		Builder:    document.NewBuilder(),
		Transport:  client,
		Logger:     logger,
	})
	nfceHandler := handlers.NewNFCeHandler(emissionService, cfg.DefaultConfigID)

	router := gin.Default()
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	apiV1 := router.Group("/api/v1")
	{
		protected := apiV1.Group("/nfce")
		protected.Use(middleware.AuthMiddleware([]byte(cfg.JWTSecret)))
		{
			protected.POST("/emitir", nfceHandler.HandleEmitir)
			protected.GET("/status", nfceHandler.HandleStatus)
			protected.POST("/cancelar", middleware.PermissionMiddleware(middleware.PermissionCancel), nfceHandler.HandleCancelar)
		}
	}
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "UP", "service": "emissor-nfce", "storage": cfg.StorageDriver})
	})

	logger.Info("🚀 Servidor iniciado", zap.String("port", cfg.Port))
	if err := router.Run(":" + cfg.Port); err != nil {
		logger.Fatal("Falha ao iniciar o servidor", zap.Error(err))
	}
}
