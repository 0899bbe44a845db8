package services

import (
	"construction_reports/reportbase/auth"
	"construction_reports/reportbase/config"
	"construction_reports/reportbase/export"
	"construction_reports/reportbase/storage"
	"construction_reports/utils"
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"
)

type ReportPlatform struct {
	user      UserService
	client    ClientService
	object    ObjectService
	personnel PersonnelService
	report    ReportService

	db *gorm.DB
}

func NewReportPlatform(
	db *gorm.DB, store storage.Storage, userAuth auth.IdentityProvider, catalog *config.WorkCatalog, renderer export.Renderer,
) ReportPlatform {
	return ReportPlatform{
		user:      UserService{db: db, userAuth: userAuth},
		client:    ClientService{db: db, storage: store, userAuth: userAuth},
		object:    ObjectService{db: db, storage: store, userAuth: userAuth},
		personnel: PersonnelService{db: db, userAuth: userAuth},
		report: ReportService{
			db:       db,
			storage:  store,
			catalog:  catalog,
			userAuth: userAuth,
			renderer: renderer,
		},
		db: db,
	}
}

func (p *ReportPlatform) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger: log.New(os.Stderr, "", log.LstdFlags), NoColor: false,
	}))

	r.Mount("/user", p.user.Routes())
	r.Mount("/client", p.client.Routes())
	r.Mount("/object", p.object.Routes())
	r.Mount("/itr", p.personnel.ItrRoutes())
	r.Mount("/worker", p.personnel.WorkerRoutes())
	r.Mount("/equipment", p.personnel.EquipmentRoutes())
	r.Mount("/report", p.report.Routes())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteSuccess(w)
	})

	return r
}
