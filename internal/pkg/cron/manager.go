package cron

import (
	"Mesdo/internal/job"
	log "log/slog"

	"github.com/robfig/cron/v3"
)

type Manager struct {
	engine           *cron.Cron
	presenceSpec     string
	presenceSweepJob *job.PresenceSweepJob
}

func NewCronManager(presenceSpec string, presenceSweepJob *job.PresenceSweepJob) *Manager {
	if presenceSpec == "" {
		presenceSpec = "0 */1 * * * *"
	}
	return &Manager{
		engine:           cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		presenceSpec:     presenceSpec,
		presenceSweepJob: presenceSweepJob,
	}
}

// RegisterJobs 注册定时任务
func (s *Manager) RegisterJobs() error {
	if _, err := s.engine.AddJob(s.presenceSpec, s.presenceSweepJob); err != nil {
		return err
	}
	return nil
}

func (s *Manager) Start() {
	log.Info("Cron 定时任务引擎启动")
	s.engine.Start()
}

func (s *Manager) Stop() {
	log.Info("Cron 定时任务引擎停止")
	<-s.engine.Stop().Done()
}

// InitCron 注册并启动全部定时任务
func InitCron(mgr *Manager) error {
	log.Info("Cron Jobs starting...")
	if err := mgr.RegisterJobs(); err != nil {
		return err
	}
	mgr.Start()
	return nil
}
