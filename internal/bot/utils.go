package bot

import (
	"fmt"
	"strconv"
	"strings"

	"timesheet/internal/logging"

	"github.com/bwmarrin/discordgo"
)

// formatHours formats hours without trailing zeros, e.g. "7.5h" or "8h".
func formatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64) + "h"
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// discordUserID returns the id of the user behind an interaction, in a
// guild or in a DM.
func discordUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return "unknown"
}

// respondWithError replaces the deferred response with an error message
func respondWithError(s *discordgo.Session, i *discordgo.InteractionCreate, errMsg string) {
	respondWithSuccess(s, i, "Error: "+errMsg)
}

// respondWithSuccess replaces the deferred response with msg
func respondWithSuccess(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) {
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &msg}); err != nil {
		logging.Logger.Errorf("Event ID: BOT_RESPONSE_FAILED, Description: Error responding to interaction: %v", err)
	}
}

// formatTable creates a Discord-friendly table with fixed-width columns
func formatTable(headers []string, rows [][]string) string {
	// Find the maximum width for each column
	widths := make([]int, len(headers))
	for i, header := range headers {
		widths[i] = len(header)
	}
	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var result strings.Builder
	result.WriteString("```\n")
	for i, header := range headers {
		result.WriteString(fmt.Sprintf("%-*s", widths[i]+2, header))
	}
	result.WriteString("\n")

	for _, width := range widths {
		result.WriteString(strings.Repeat("-", width+2))
	}
	result.WriteString("\n")

	for _, row := range rows {
		for i, cell := range row {
			result.WriteString(fmt.Sprintf("%-*s", widths[i]+2, cell))
		}
		result.WriteString("\n")
	}
	result.WriteString("```")

	return result.String()
}
