package formatter

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mixelka/metaleads/internal/ingest"
	"github.com/mixelka/metaleads/pkg/models"
)

const (
	dateLayout = "02.01.2006 15:04"

	truncatedMarker = "\n<i>... (truncated)</i>"

	// maxValueLength bounds a single rendered value, in bytes of escaped text
	maxValueLength = 500
	// messageReserve is kept free for the lead message while rendering fields
	messageReserve = 1000
)

// TelegramFormatter formats leads and reports for Telegram
type TelegramFormatter struct {
	maxLength int
}

// NewTelegramFormatter creates a new Telegram formatter
func NewTelegramFormatter() *TelegramFormatter {
	return &TelegramFormatter{
		maxLength: 4000, // Leave room for markup
	}
}

// FormatLead formats a lead notification
func (f *TelegramFormatter) FormatLead(lead *models.Lead) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "<b>New lead #%d</b> for <code>%s</code>\n", lead.ID, f.value(lead.CustomerID))
	fmt.Fprintf(&sb, "<b>Status:</b> %s\n", StatusLabel(lead.Status))
	fmt.Fprintf(&sb, "<b>Subject:</b> %s\n", f.value(lead.EmailSubject))
	fmt.Fprintf(&sb, "<b>Received:</b> %s\n", lead.EmailDate.Format(dateLayout))
	sb.WriteString("\n")

	f.writeValue(&sb, "Name", lead.Info.Name)
	if lead.Info.Email != "" {
		fmt.Fprintf(&sb, "<b>Email:</b> <code>%s</code>\n", f.value(lead.Info.Email))
	}
	if lead.Info.Phone != "" {
		fmt.Fprintf(&sb, "<b>Phone:</b> <code>%s</code>\n", f.value(lead.Info.Phone))
	}

	// room for the "more fields" line
	reserve := len(truncatedMarker) + 32
	if lead.Info.Message != "" {
		reserve += messageReserve
	}
	for i, field := range lead.Info.Fields {
		switch strings.ToLower(field.Key) {
		case "name", "full name", "email", "phone", "phone number":
			continue
		}
		if field.Value == "" {
			continue
		}
		line := fmt.Sprintf("<b>%s:</b> %s\n", f.value(field.Key), f.value(field.Value))
		if !f.fits(&sb, line, reserve) {
			fmt.Fprintf(&sb, "<i>... %d more fields</i>\n", len(lead.Info.Fields)-i)
			break
		}
		sb.WriteString(line)
	}

	if lead.Info.Message != "" {
		sb.WriteString("\n<b>Message:</b>\n")
		msg, clipped := clip(f.escapeHTML(lead.Info.Message), f.maxLength-sb.Len()-len(truncatedMarker))
		sb.WriteString(msg)
		if clipped {
			sb.WriteString(truncatedMarker)
		}
	}

	return sb.String()
}

// FormatLeadList formats a short list of leads
func (f *TelegramFormatter) FormatLeadList(leads []*models.Lead) string {
	if len(leads) == 0 {
		return "No leads yet."
	}

	var sb strings.Builder
	sb.WriteString("<b>Recent leads:</b>\n")
	for _, lead := range leads {
		who := lead.Info.Name
		if who == "" {
			who = lead.Info.Email
		}
		if who == "" {
			who = "unknown"
		}
		line := fmt.Sprintf("#%d %s <code>%s</code> %s (%s)\n",
			lead.ID,
			lead.EmailDate.Format(dateLayout),
			f.value(lead.CustomerID),
			f.value(who),
			StatusLabel(lead.Status),
		)
		if !f.fits(&sb, line, len(truncatedMarker)) {
			sb.WriteString(truncatedMarker)
			break
		}
		sb.WriteString(line)
	}
	return sb.String()
}

// FormatCheckResult formats the outcome of a mailbox check
func (f *TelegramFormatter) FormatCheckResult(res ingest.Result) string {
	if res.Skipped {
		return "A check is already running, try again later."
	}

	var sb strings.Builder
	sb.WriteString("<b>Mailbox check finished</b>\n")
	fmt.Fprintf(&sb, "Emails found: %d\n", res.EmailsFound)
	fmt.Fprintf(&sb, "Emails processed: %d\n", res.EmailsProcessed)
	fmt.Fprintf(&sb, "Leads created: %d\n", res.LeadsCreated)
	fmt.Fprintf(&sb, "Took: %s\n", res.Duration.Round(time.Millisecond))

	if len(res.Errors) > 0 {
		fmt.Fprintf(&sb, "\n<b>Errors (%d):</b>\n", len(res.Errors))
		for i, e := range res.Errors {
			if i == 10 {
				fmt.Fprintf(&sb, "... and %d more\n", len(res.Errors)-i)
				break
			}
			line := fmt.Sprintf("- %s\n", f.value(e))
			if !f.fits(&sb, line, len(truncatedMarker)) {
				sb.WriteString(truncatedMarker)
				break
			}
			sb.WriteString(line)
		}
	}
	return sb.String()
}

// FormatStatus formats the service status
func (f *TelegramFormatter) FormatStatus(st ingest.Status) string {
	var sb strings.Builder

	if st.Monitoring {
		fmt.Fprintf(&sb, "<b>Monitoring:</b> on, every %s, lookback %d day(s)\n", st.Interval, st.LookbackDays)
	} else {
		sb.WriteString("<b>Monitoring:</b> off\n")
	}
	if st.Checking {
		sb.WriteString("A check is running now.\n")
	}

	if st.Last == nil {
		sb.WriteString("No checks yet.")
		return sb.String()
	}
	fmt.Fprintf(&sb, "\n<b>Last check:</b> %s\n", st.Last.StartedAt.Format(dateLayout))
	fmt.Fprintf(&sb, "Found %d, processed %d, created %d, errors %d",
		st.Last.EmailsFound, st.Last.EmailsProcessed, st.Last.LeadsCreated, len(st.Last.Errors))
	return sb.String()
}

// FormatMappings formats the subject mapping table
func (f *TelegramFormatter) FormatMappings(mappings []models.SubjectMapping) string {
	if len(mappings) == 0 {
		return "No subject mappings. Add one with /map &lt;customer_id&gt; &lt;subject&gt;"
	}

	var sb strings.Builder
	sb.WriteString("<b>Subject mappings:</b>\n")
	for _, m := range mappings {
		state := ""
		if !m.IsActive {
			state = " (inactive)"
		}
		line := fmt.Sprintf("%d. <code>%s</code> ← %s%s\n",
			m.ID, f.value(m.CustomerID), f.value(m.EmailSubject), state)
		if !f.fits(&sb, line, len(truncatedMarker)) {
			sb.WriteString(truncatedMarker)
			break
		}
		sb.WriteString(line)
	}
	return sb.String()
}

func (f *TelegramFormatter) writeValue(sb *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(sb, "<b>%s:</b> %s\n", f.value(label), f.value(value))
}

// value escapes s and bounds it to maxValueLength
func (f *TelegramFormatter) value(s string) string {
	v, clipped := clip(f.escapeHTML(s), maxValueLength)
	if clipped {
		v += "..."
	}
	return v
}

// fits reports whether line can be appended and still leave reserve bytes
func (f *TelegramFormatter) fits(sb *strings.Builder, line string, reserve int) bool {
	return sb.Len()+len(line)+reserve <= f.maxLength
}

// StatusLabel returns the human readable form of a lead status
func StatusLabel(s models.LeadStatus) string {
	switch s {
	case models.LeadStatusContacted:
		return "contacted"
	case models.LeadStatusNotContacted:
		return "not contacted"
	default:
		return "new"
	}
}

// Escape escapes user supplied text for HTML messages
func (f *TelegramFormatter) Escape(s string) string {
	return f.escapeHTML(s)
}

// escapeHTML escapes HTML special characters for Telegram
func (f *TelegramFormatter) escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// clip cuts escaped text to at most n bytes without splitting a rune or an
// entity. Lengths are bytes, which never undercount Telegram's character limit.
func clip(s string, n int) (string, bool) {
	if len(s) <= n {
		return s, false
	}
	if n <= 0 {
		return "", true
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	s = s[:cut]
	if amp := strings.LastIndexByte(s, '&'); amp >= 0 && !strings.Contains(s[amp:], ";") {
		s = s[:amp]
	}
	return s, true
}
