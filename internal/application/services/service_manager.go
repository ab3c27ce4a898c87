package services

import (
	"database/sql"
	"log"

	"github.com/promptcrm/backend/internal/infrastructure/persistence"
)

// ServiceManager wires repositories and services together and is the single
// composition point of the application.
type ServiceManager struct {
	db *sql.DB

	AuthService      *AuthService
	ProjectService   *ProjectService
	PipelineService  *PipelineService
	LockService      *LockService
	VersionService   *VersionService
	TraceService     *TraceService
	SchedulerService *SchedulerService
}

// NewServiceManager builds the full service graph on top of an open database
// connection. The model client is the only external collaborator.
func NewServiceManager(db *sql.DB, model ModelClient) *ServiceManager {
	txManager := persistence.NewTransactionManager(db)

	userRepo := persistence.NewUserRepository(db)
	projectRepo := persistence.NewProjectRepository(db)
	lockRepo := persistence.NewLockRepository(db)
	traceRepo := persistence.NewTraceRepository(db)
	versionRepo := persistence.NewVersionRepository(db, txManager)

	traceService := NewTraceService(traceRepo)
	lockService := NewLockService(lockRepo)
	provisioner := NewProvisioner(db)
	versionService := NewVersionService(versionRepo, provisioner, traceService)

	pipeline := NewPipelineService(
		NewQuotaService(traceRepo),
		NewIntentClassifier(),
		NewSchemaGenerator(model),
		NewSchemaValidator(),
		lockService,
		provisioner,
		versionService,
		traceService,
	)

	manager := &ServiceManager{
		db:               db,
		AuthService:      NewAuthService(userRepo),
		ProjectService:   NewProjectService(projectRepo),
		PipelineService:  pipeline,
		LockService:      lockService,
		VersionService:   versionService,
		TraceService:     traceService,
		SchedulerService: NewSchedulerService(lockService),
	}

	log.Println("✅ Service manager initialized")
	return manager
}
