package api

import (
	"net/http"

	"timesheet/internal/auth"
	"timesheet/internal/bot"
	"timesheet/internal/db/models"
	"timesheet/internal/logging"

	"github.com/google/uuid"
)

// botAuthenticate checks the connector token on incoming activities. Those
// tokens identify the channel, not a user, so no principal is stored.
func botAuthenticate(v *auth.Validator, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := auth.BearerToken(r.Header.Get("Authorization"))
		if !ok {
			http.Error(w, "Authorization header missing", http.StatusUnauthorized)
			return
		}
		if _, err := v.Validate(raw); err != nil {
			logging.Logger.Warnf("Event ID: BOT_INVALID_TOKEN, Description: Rejected activity: %v", err)
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func botAdded(a bot.Activity) bool {
	for _, m := range a.MembersAdded {
		if m.ID == a.Recipient.ID {
			return true
		}
	}
	return false
}

func (h *handler) messages(w http.ResponseWriter, r *http.Request) {
	var activity bot.Activity
	if err := decodeJSON(w, r, &activity); err != nil {
		writeError(w, r, err)
		return
	}

	switch {
	case activity.Type == "conversationUpdate" && botAdded(activity):
		userID, err := uuid.Parse(activity.From.AADObjectID)
		if err != nil {
			writeError(w, r, badRequest("activity sender has no directory id"))
			return
		}
		conversation := models.Conversation{
			UserID:         userID,
			ConversationID: activity.Conversation.ID,
			ServiceURL:     activity.ServiceURL,
		}
		if err := h.services.Notifications.Register(r.Context(), conversation, activity.From.Name, LocaleFromContext(r.Context())); err != nil {
			writeError(w, r, err)
			return
		}
	case activity.Type == "installationUpdate" && activity.Action == "remove":
		if err := h.services.Notifications.RemoveByConversationID(r.Context(), activity.Conversation.ID); err != nil {
			writeError(w, r, err)
			return
		}
	default:
		logging.Logger.Debugf("Event ID: BOT_ACTIVITY_IGNORED, Description: Ignoring %s activity", activity.Type)
	}
	w.WriteHeader(http.StatusOK)
}
