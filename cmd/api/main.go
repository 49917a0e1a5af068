package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"institute/internal/config"
	"institute/internal/docstore"
	"institute/internal/events"
	"institute/internal/httpmiddleware"
	"institute/internal/registry"
	"institute/internal/store"
)

var httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "institute_http_requests_total",
	Help: "HTTP requests by method, route and status.",
}, []string{"method", "route", "status"})

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	ctx := context.Background()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return err
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	docs, err := docstore.New(cfg.UploadDir, cfg.MaxUploadBytes)
	if err != nil {
		return err
	}

	var pub events.Publisher
	if cfg.EventsBackend == "redis" {
		pub = events.NewRedis(redisClient.Client, "institute:events")
	} else {
		pub = events.NewMemory(64)
	}

	repo := registry.NewRepository(db.Pool)
	svc := registry.NewService(repo, docs)

	prometheus.MustRegister(httpRequests)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(requestCounter())
	r.Use(httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).Gin())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		dbHealthy := db.Pool.Ping(c.Request.Context()) == nil
		redisHealthy := redisClient.Healthy(c.Request.Context())
		status := http.StatusOK
		if !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "db": dbHealthy, "redis": redisHealthy})
	})

	api := r.Group("/api")

	api.GET("/classes", func(c *gin.Context) {
		classes, err := svc.ListClasses(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, classes)
	})

	api.POST("/classes", func(c *gin.Context) {
		var req struct {
			Name      string   `json:"name" binding:"required"`
			StartDate string   `json:"start_date" binding:"required"`
			EndDate   string   `json:"end_date" binding:"required"`
			Schedule  string   `json:"schedule"`
			Price     *float64 `json:"price"`
			Trainers  string   `json:"trainers"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		start, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start_date must be YYYY-MM-DD"})
			return
		}
		end, err := time.Parse("2006-01-02", req.EndDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "end_date must be YYYY-MM-DD"})
			return
		}

		created, err := svc.AddClass(c.Request.Context(), registry.ClassInput{
			Name:      req.Name,
			StartDate: start,
			EndDate:   end,
			Schedule:  req.Schedule,
			Price:     req.Price,
			Trainers:  req.Trainers,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		notify(pub, c, "class", created.ID, "created", "Class scheduled successfully")
		c.JSON(http.StatusCreated, created)
	})

	api.DELETE("/classes/:id", func(c *gin.Context) {
		if err := svc.DeleteClass(c.Request.Context(), c.Param("id")); err != nil {
			respondErr(c, err)
			return
		}
		notify(pub, c, "class", c.Param("id"), "deleted", "Class deleted")
		c.JSON(http.StatusOK, gin.H{"message": "Class deleted"})
	})

	api.PUT("/classes/:id/trainers", func(c *gin.Context) {
		var req struct {
			Trainers string `json:"trainers"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		updated, err := svc.UpdateTrainers(c.Request.Context(), c.Param("id"), req.Trainers)
		if err != nil {
			respondErr(c, err)
			return
		}
		notify(pub, c, "class", updated.ID, "updated", "Trainer list updated")
		c.JSON(http.StatusOK, updated)
	})

	api.POST("/classes/:id/certificates", func(c *gin.Context) {
		updated, err := svc.ToggleCertificates(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		notify(pub, c, "class", updated.ID, "updated", "Certificate flag updated")
		c.JSON(http.StatusOK, updated)
	})

	api.GET("/classes/:id/export", func(c *gin.Context) {
		grid, err := svc.ExportClass(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		if c.Query("format") == "csv" {
			data, err := registry.ExportCSV(grid)
			if err != nil {
				respondErr(c, err)
				return
			}
			c.Header("Content-Disposition", `attachment; filename="class_students.csv"`)
			c.Data(http.StatusOK, "text/csv", data)
			return
		}
		c.JSON(http.StatusOK, gin.H{"grid": grid})
	})

	api.GET("/students", func(c *gin.Context) {
		students, err := svc.ListStudents(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, students)
	})

	api.POST("/students", func(c *gin.Context) {
		in, ok := studentForm(c, docs)
		if !ok {
			return
		}
		created, err := svc.EnrollStudent(c.Request.Context(), in)
		if err != nil {
			respondErr(c, err)
			return
		}
		notify(pub, c, "student", created.ID, "enrolled", "Student enrolled successfully")
		c.JSON(http.StatusCreated, created)
	})

	api.PUT("/students/:id", func(c *gin.Context) {
		in, ok := studentForm(c, docs)
		if !ok {
			return
		}
		updated, err := svc.UpdateStudent(c.Request.Context(), c.Param("id"), in)
		if err != nil {
			respondErr(c, err)
			return
		}
		notify(pub, c, "student", updated.ID, "updated", "Student updated successfully")
		c.JSON(http.StatusOK, updated)
	})

	api.DELETE("/students/:id", func(c *gin.Context) {
		if err := svc.DeleteStudent(c.Request.Context(), c.Param("id")); err != nil {
			respondErr(c, err)
			return
		}
		notify(pub, c, "student", c.Param("id"), "deleted", "Student deleted")
		c.JSON(http.StatusOK, gin.H{"message": "Student deleted"})
	})

	api.GET("/events/stream", func(c *gin.Context) {
		var ch <-chan events.Event
		switch p := pub.(type) {
		case *events.Memory:
			ch = p.Subscribe()
		case *events.Redis:
			ch = p.Subscribe(c.Request.Context())
		default:
			c.JSON(http.StatusNotImplemented, gin.H{"error": "event stream unavailable"})
			return
		}
		c.Header("Cache-Control", "no-cache")
		c.Stream(func(w io.Writer) bool {
			select {
			case evt, ok := <-ch:
				if !ok {
					return false
				}
				c.SSEvent("message", evt)
				return true
			case <-c.Request.Context().Done():
				return false
			}
		})
	})

	api.GET("/stats", func(c *gin.Context) {
		stats, err := svc.Stats(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	})

	r.GET("/uploads/:name", func(c *gin.Context) {
		f, err := docs.Open(c.Param("name"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
			return
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "file unreadable"})
			return
		}
		http.ServeContent(c.Writer, c.Request, c.Param("name"), info.ModTime(), f)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// studentForm reads the multipart fields shared by enroll and update. The
// file part is optional here; the service decides whether it is required.
// Oversized uploads are rejected before anything is written.
func studentForm(c *gin.Context, docs *docstore.Store) (registry.StudentInput, bool) {
	in := registry.StudentInput{
		Name:         c.PostForm("name"),
		DOB:          c.PostForm("dob"),
		Organization: c.PostForm("organization"),
		Email:        c.PostForm("email"),
		Phone:        c.PostForm("phone"),
		ClassName:    c.PostForm("className"),
		IDType:       c.PostForm("idType"),
	}

	file, header, err := c.Request.FormFile("idFile")
	if err == nil {
		if header.Size > docs.MaxBytes() {
			file.Close()
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file exceeds maximum upload size"})
			return registry.StudentInput{}, false
		}
		in.File = file
		in.FileName = header.Filename
	}
	return in, true
}

func notify(pub events.Publisher, c *gin.Context, entity, id, action, message string) {
	evt := events.Event{Entity: entity, ID: id, Action: action, Message: message}
	if err := pub.Publish(c.Request.Context(), evt); err != nil {
		log.Printf("event publish failed: %v", err)
	}
}

// respondErr maps the registry error taxonomy onto HTTP statuses.
func respondErr(c *gin.Context, err error) {
	var vErr *registry.ValidationError
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
	case errors.Is(err, registry.ErrInvalidDate):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, registry.ErrIneligibleClass):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "You can only enroll in an Ongoing or Future class"})
	case errors.Is(err, registry.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, registry.ErrDuplicateID):
		c.JSON(http.StatusConflict, gin.H{"error": "id already exists"})
	case errors.Is(err, docstore.ErrTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file exceeds maximum upload size"})
	default:
		log.Printf("request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
	}
}

func requestCounter() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
