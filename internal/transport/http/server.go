package http

import (
	"context"

	"github.com/gin-gonic/gin"

	"docmind/internal/bootstrap"
	mysqlClient "docmind/internal/platform/mysql"
	rabbitmqClient "docmind/internal/platform/rabbitmq"
	"docmind/internal/transport/http/handler"
	"docmind/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(middleware.RequestLogger(), gin.Recovery())
	router.MaxMultipartMemory = 8 << 20

	healthHandler := handler.NewHealthHandler(handler.HealthInfo{
		App:            app.Config.App.Name,
		Env:            app.Config.App.Env,
		StartedAt:      app.StartedAt,
		VectorIndex:    app.VectorIndex.Name(),
		EmbeddingModel: app.Embedder.Model(),
		LLMModel:       app.Generator.Model(),
	}, dependencyChecks(app)...)
	router.GET("/healthz", healthHandler.Check)

	documentHandler := handler.NewDocumentHandler(app.Ingest, app.Documents)
	queryHandler := handler.NewQueryHandler(app.Queries)

	v1 := router.Group("/api/v1")
	documents := v1.Group("/documents")
	documents.POST("/upload", documentHandler.Upload)
	documents.GET("", documentHandler.List)
	documents.GET("/:id", documentHandler.Get)
	documents.DELETE("/:id", documentHandler.Delete)

	v1.POST("/embeddings/generate/:id", documentHandler.GenerateEmbeddings)

	query := v1.Group("/query")
	query.POST("/search", queryHandler.Search)
	query.POST("/ask", queryHandler.Ask)
	v1.GET("/queries", queryHandler.Recent)

	router.POST("/hackrx/run",
		middleware.AuthBearer(app.Config.Auth.APIToken, app.Config.Auth.JWTSecret),
		queryHandler.BatchRun,
	)

	return router
}

func dependencyChecks(app *bootstrap.App) []handler.DependencyCheck {
	checks := []handler.DependencyCheck{{
		Name: "mysql",
		Ping: func(ctx context.Context) error { return mysqlClient.Ping(ctx, app.MySQL) },
	}}
	if app.Redis != nil {
		checks = append(checks, handler.DependencyCheck{
			Name:     "redis",
			Optional: true,
			Ping:     func(ctx context.Context) error { return app.Redis.Ping(ctx).Err() },
		})
	}
	if app.MQConn != nil {
		checks = append(checks, handler.DependencyCheck{
			Name:     "rabbitmq",
			Optional: true,
			Ping:     func(context.Context) error { return rabbitmqClient.Ping(app.MQConn) },
		})
	}
	return checks
}
