package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/config"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/device"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/qrcode"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/setting"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	appHTTP "github.com/cmlabs-hris/attendance-engine/internal/handler/http"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/cron"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/keylock"
	"github.com/cmlabs-hris/attendance-engine/internal/repository/memory"
	"github.com/cmlabs-hris/attendance-engine/internal/repository/postgresql"
	attendanceService "github.com/cmlabs-hris/attendance-engine/internal/service/attendance"
	deviceService "github.com/cmlabs-hris/attendance-engine/internal/service/device"
	qrcodeService "github.com/cmlabs-hris/attendance-engine/internal/service/qrcode"
	settingService "github.com/cmlabs-hris/attendance-engine/internal/service/setting"
	shiftService "github.com/cmlabs-hris/attendance-engine/internal/service/shift"
)

// repositories is the store-specific half of the wiring.
type repositories struct {
	tx             database.Transactor
	attendanceRepo attendance.AttendanceRepository
	correctionRepo attendance.CorrectionLogRepository
	shiftRepo      shift.ShiftRepository
	assignmentRepo shift.AssignmentRepository
	settingRepo    setting.Repository
	deviceRepo     device.Repository
	qrCodeRepo     qrcode.Repository
	close          func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error loading config:", err)
		os.Exit(1)
	}

	logger := appHTTP.NewLogger(cfg.App.Env, cfg.LogLevel())
	slog.SetDefault(logger)

	loc, err := cfg.Location()
	if err != nil {
		slog.Error("Invalid timezone", "error", err)
		os.Exit(1)
	}

	repos, err := openRepositories(cfg, loc)
	if err != nil {
		slog.Error("Error opening store", "store", cfg.App.Store, "error", err)
		os.Exit(1)
	}
	defer repos.close()

	JWTService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)

	settingSvc := settingService.NewSettingService(repos.settingRepo)
	shiftSvc := shiftService.NewShiftService(repos.tx, repos.shiftRepo, repos.assignmentRepo, loc)
	calculator := attendanceService.NewMetricsCalculator()
	attendanceSvc := attendanceService.NewAttendanceService(
		repos.tx,
		repos.attendanceRepo,
		repos.correctionRepo,
		settingSvc,
		shiftSvc,
		attendanceService.NewWorkDateResolver(repos.attendanceRepo, repos.shiftRepo, loc),
		qrcodeService.NewValidator(repos.qrCodeRepo, loc),
		deviceService.NewGate(repos.deviceRepo),
		calculator,
		attendanceService.NewCorrectionAuditor(calculator, repos.shiftRepo, shiftSvc, loc),
		keylock.New(),
		loc,
	)

	scheduler := cron.NewScheduler()
	cron.NewQRCodeJobs(repos.qrCodeRepo, loc).RegisterJobs(scheduler, cfg.Cron.QRCodeCleanupInterval)
	scheduler.Start()

	router := appHTTP.NewRouter(
		appHTTP.RouterOptions{
			Logger:         logger,
			AllowedOrigins: cfg.App.AllowedOrigins,
		},
		JWTService,
		appHTTP.NewAttendanceHandler(attendanceSvc, loc),
		appHTTP.NewShiftHandler(shiftSvc),
		appHTTP.NewSettingHandler(settingSvc),
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("Server running", "addr", server.Addr, "store", cfg.App.Store, "timezone", loc.String())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
}

func openRepositories(cfg *config.Config, loc *time.Location) (repositories, error) {
	if cfg.App.Store == config.StoreMemory {
		store := memory.NewStore(loc)
		slog.Warn("Using in-memory store, data is lost on restart")
		return repositories{
			tx:             store.Transactor(),
			attendanceRepo: memory.NewAttendanceRepository(store),
			correctionRepo: memory.NewCorrectionLogRepository(store),
			shiftRepo:      memory.NewShiftRepository(store),
			assignmentRepo: memory.NewAssignmentRepository(store),
			settingRepo:    memory.NewSettingRepository(store),
			deviceRepo:     memory.NewDeviceRepository(store),
			qrCodeRepo:     memory.NewQRCodeRepository(store),
			close:          func() {},
		}, nil
	}

	db, err := database.NewPostgreSQLDB(cfg.DatabaseURL())
	if err != nil {
		return repositories{}, fmt.Errorf("failed to connect to database: %w", err)
	}

	return repositories{
		tx:             postgresql.NewTransactor(db),
		attendanceRepo: postgresql.NewAttendanceRepository(db, loc),
		correctionRepo: postgresql.NewCorrectionLogRepository(db),
		shiftRepo:      postgresql.NewShiftRepository(db),
		assignmentRepo: postgresql.NewAssignmentRepository(db, loc),
		settingRepo:    postgresql.NewSettingRepository(db),
		deviceRepo:     postgresql.NewDeviceRepository(db),
		qrCodeRepo:     postgresql.NewQRCodeRepository(db, loc),
		close:          db.Close,
	}, nil
}
