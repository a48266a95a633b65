package bootstrap

import (
	fbauth "firebase.google.com/go/v4/auth"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	httpapi "github.com/skillhive-app/skillhive-backend/internal/api/http"
	"github.com/skillhive-app/skillhive-backend/internal/api/http/middleware"
	"github.com/skillhive-app/skillhive-backend/internal/auth"
	"github.com/skillhive-app/skillhive-backend/internal/fetchcache"
	"github.com/skillhive-app/skillhive-backend/internal/listings"
	"github.com/skillhive-app/skillhive-backend/internal/notify"
	"github.com/skillhive-app/skillhive-backend/internal/profiles"
	"github.com/skillhive-app/skillhive-backend/internal/projects"
	"github.com/skillhive-app/skillhive-backend/internal/proposals"
	s3store "github.com/skillhive-app/skillhive-backend/internal/storage/s3"
	"github.com/skillhive-app/skillhive-backend/internal/tutor"
	"github.com/skillhive-app/skillhive-backend/internal/users"
)

type RouterDeps struct {
	ServiceName string
	Version     string
	CORSOrigin  string

	DB    *pgxpool.Pool
	Redis *redis.Client

	// AuthClient == nil switches the guard to dev-header identity.
	AuthClient  *fbauth.Client
	Uploader    *s3store.Uploader
	Notifier    *notify.Notifier
	TutorClient *tutor.Client
	Logger      *zap.Logger
}

// BuildRouter assembles the API from each feature's route table. Auth is
// attached per route by the tables themselves, never by handlers.
func BuildRouter(dep RouterDeps) *gin.Engine {
	r := gin.Default()

	if dep.CORSOrigin != "" {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     []string{dep.CORSOrigin},
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-Id", "X-User-Id", "X-User-Email", "X-User-Name"},
			AllowCredentials: true,
		}))
	}
	r.Use(middleware.RequestID(dep.Logger))

	healthHandler := httpapi.NewHealthHandler(dep.ServiceName, dep.Version, dep.DB, dep.Redis)
	healthHandler.RegisterRoutes(r)

	cache := fetchcache.New(dep.Redis, dep.Logger)
	userRepo := users.NewRepo(dep.DB)
	guard := auth.Guard(dep.AuthClient, userRepo)

	api := r.Group("/api/v1")

	projectsHandler := projects.NewHandler(projects.NewRepo(dep.DB), cache, dep.Redis)
	projectsHandler.Routes().Mount(api.Group("/projects"), guard)

	listingsHandler := listings.NewHandler(listings.NewRepo(dep.DB), cache, dep.Uploader, dep.Redis)
	listingsHandler.Routes().Mount(api.Group("/listings"), guard)

	proposalsHandler := proposals.NewHandler(proposals.NewRepo(dep.DB), userRepo, dep.Notifier)
	proposalsHandler.Routes().Mount(api.Group("/proposals"), guard)

	profilesHandler := profiles.NewHandler(profiles.NewRepo(dep.DB))
	profilesHandler.Routes().Mount(api.Group("/profiles"), guard)

	tutorHandler := tutor.NewHandler(dep.TutorClient, tutor.NewTranscripts(dep.Redis, dep.DB), dep.Logger)
	tutorHandler.Routes().Mount(api.Group("/tutor"), guard)

	return r
}
