package cards

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// German card texts. Other locales fall back to English.
var german = []struct{ key, msg string }{
	{"Welcome to %s, %s!", "Willkommen bei %s, %s!"},
	{"I will remind you to fill your timesheet and let you know when your manager reviews it.",
		"Ich erinnere Sie an Ihre Zeiterfassung und informiere Sie, sobald Ihre Führungskraft sie geprüft hat."},
	{"Timesheet reminder", "Erinnerung an die Zeiterfassung"},
	{"You have not filled your timesheet yet.", "Sie haben Ihre Zeiterfassung noch nicht ausgefüllt."},
	{"Date", "Datum"},
	{"Dates", "Daten"},
	{"Hours", "Stunden"},
	{"Comments", "Kommentare"},
	{"Requested by", "Angefragt von"},
	{"Timesheets waiting for approval", "Zeiterfassungen warten auf Freigabe"},
	{"You have %d pending timesheet requests.", "Sie haben %d offene Zeiterfassungsanfragen."},
	{"Timesheet approved", "Zeiterfassung genehmigt"},
	{"Your manager approved your timesheet.", "Ihre Führungskraft hat Ihre Zeiterfassung genehmigt."},
	{"Timesheet rejected", "Zeiterfassung abgelehnt"},
	{"Your manager rejected your timesheet. Please review and resubmit.",
		"Ihre Führungskraft hat Ihre Zeiterfassung abgelehnt. Bitte prüfen und erneut einreichen."},
}

func init() {
	for _, t := range german {
		_ = message.SetString(language.German, t.key, t.msg)
	}
}
