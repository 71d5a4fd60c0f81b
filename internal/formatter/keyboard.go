package formatter

import (
	"encoding/json"

	"github.com/go-telegram/bot/models"

	appmodels "github.com/mixelka/metaleads/pkg/models"
)

// BuildLeadKeyboard creates the inline keyboard for a lead notification.
// A lead that is already handled gets a single button to reopen it.
func BuildLeadKeyboard(leadID int64, status appmodels.LeadStatus) *models.InlineKeyboardMarkup {
	var row []models.InlineKeyboardButton

	if status == appmodels.LeadStatusNew {
		row = append(row,
			models.InlineKeyboardButton{
				Text: "Contacted",
				CallbackData: EncodeCallback(appmodels.CallbackData{
					Action: appmodels.CallbackContacted,
					LeadID: leadID,
				}),
			},
			models.InlineKeyboardButton{
				Text: "Not contacted",
				CallbackData: EncodeCallback(appmodels.CallbackData{
					Action: appmodels.CallbackNotContacted,
					LeadID: leadID,
				}),
			},
		)
	} else {
		row = append(row, models.InlineKeyboardButton{
			Text: "Reopen",
			CallbackData: EncodeCallback(appmodels.CallbackData{
				Action: appmodels.CallbackReset,
				LeadID: leadID,
			}),
		})
	}

	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{row},
	}
}

// StatusForAction maps a callback action to the lead status it sets
func StatusForAction(action appmodels.CallbackAction) (appmodels.LeadStatus, bool) {
	switch action {
	case appmodels.CallbackContacted:
		return appmodels.LeadStatusContacted, true
	case appmodels.CallbackNotContacted:
		return appmodels.LeadStatusNotContacted, true
	case appmodels.CallbackReset:
		return appmodels.LeadStatusNew, true
	}
	return "", false
}

// EncodeCallback encodes callback data to string
func EncodeCallback(data appmodels.CallbackData) string {
	b, _ := json.Marshal(data)
	return string(b)
}

// DecodeCallback decodes callback data from string
func DecodeCallback(data string) (appmodels.CallbackData, error) {
	var cb appmodels.CallbackData
	err := json.Unmarshal([]byte(data), &cb)
	return cb, err
}
