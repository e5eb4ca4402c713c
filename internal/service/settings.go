package service

import "timesheet/internal/config"

// Settings is what the client needs to apply the same calendar rules.
type Settings struct {
	config.Timesheet
	Locale string `json:"locale"`
}

type SettingsService struct {
	deps Deps
}

func (s *SettingsService) Get() Settings {
	return Settings{Timesheet: s.deps.Timesheet, Locale: s.deps.Locale.String()}
}
