package routers

import (
	"database/sql"
	"log"
	"os"
	"time"

	"expensesapi/controllers"
	"expensesapi/exchange"
	"expensesapi/middlewares"
	"expensesapi/models"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
)

func Route() *gin.Engine {
	router := gin.Default()
	router.Use(CORS())
	api := controllers.NewAPI()

	api.Db = newDB(nil)
	api.Db.SetConnMaxLifetime(5 * time.Minute)
	api.Rates = &exchange.Converter{Rates: &exchange.PostgresStore{Db: api.Db}}

	redisHost := os.Getenv("REDIS_HOST")
	redisPort := os.Getenv("REDIS_PORT")

	api.Redis = redis.NewClient(&redis.Options{
		Addr: redisHost + ":" + redisPort,
		DB:   0,
	})

	router.POST("/api/login", api.Authenticate)
	router.GET("/api/check-session", middlewares.Auth(api.Redis), api.CheckSession)
	router.GET("/api/refresh-session", middlewares.Auth(api.Redis), api.RefreshSession)
	router.GET("/api/logout", middlewares.Auth(api.Redis), api.Logout)
	router.POST("/api/forgot-password", api.ForgotPassword)
	router.GET("/api/verify-token/:token", api.VerifyTokenReset)
	router.POST("/api/reset-password/:token", api.UpdateUserReset)

	users := router.Group("/api/users")
	users.Use(middlewares.Auth(api.Redis))
	{
		users.POST("", middlewares.RequireRoles(models.Admin), api.Register)
		users.GET("/profile", api.GetUser)
		users.PUT("/profile", api.UpdateUser)
	}

	categories := router.Group("/api/categories")
	categories.Use(middlewares.Auth(api.Redis))
	{
		categories.GET("", api.GetCategories)
		// batch upsert/delete, administration only
		categories.POST("", middlewares.RequireRoles(models.Admin), api.UpsertCategories)
		categories.DELETE("", middlewares.RequireRoles(models.Admin), api.DeleteCategories)
	}

	rules := router.Group("/api/approval-rules")
	rules.Use(middlewares.Auth(api.Redis))
	{
		rules.GET("", api.GetRules)
		rules.POST("", middlewares.RequireRoles(models.Admin), api.UpsertRules)
		rules.DELETE("", middlewares.RequireRoles(models.Admin), api.DeleteRules)
	}

	rates := router.Group("/api/rates")
	rates.Use(middlewares.Auth(api.Redis))
	{
		rates.GET("", api.GetRates)
		rates.GET("/convert", api.ConvertRate)
		// append-only, rows are never updated in place
		rates.POST("", middlewares.RequireRoles(models.Admin), api.UpsertRates)
	}

	expenses := router.Group("/api/expenses")
	expenses.Use(middlewares.Auth(api.Redis))
	{
		expenses.GET("", api.GetExpenses)
		expenses.GET("/report", api.GetExpensesReport)
		expenses.GET("/:id/approvals", api.GetExpenseApprovals)
		// batch upsert/delete of drafts
		expenses.POST("", api.UpsertExpenses)
		expenses.POST("/:id/submit", api.SubmitExpense)
		expenses.DELETE("", api.DeleteExpenses)
	}

	approvals := router.Group("/api/approvals")
	approvals.Use(middlewares.Auth(api.Redis), middlewares.RequireRoles(models.Admin, models.Manager))
	{
		approvals.GET("/pending", api.GetPendingApprovals)
		approvals.GET("/history", api.GetApprovalHistory)
		approvals.GET("/statistics", api.GetApprovalStatistics)
		approvals.POST("/:id/approve", api.ApproveExpense)
		approvals.POST("/:id/reject", api.RejectExpense)
		approvals.POST("/bulk", api.BulkDecisions)
	}

	return router
}

// CORS Cross Origin Resource Sharing
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, "+
			"Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

func newDB(indb *sql.DB) *sql.DB {
	if indb != nil {
		return indb
	}
	connString := os.Getenv("DB_CONNECTION_STRING")
	if connString == "" {
		log.Fatal("Please provide DB_CONNECTION_STRING environment variable")
	}

	log.Println(connString)

	var err error
	conn, err := sql.Open("postgres", connString)
	if err != nil {
		log.Fatalf("Cannot connect to db with connection %s: %v", connString, err)
	}

	err = conn.Ping()
	if err != nil {
		log.Fatal(err)
	}

	return conn
}
