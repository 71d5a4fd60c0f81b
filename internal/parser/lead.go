// Package parser turns raw lead notification emails into structured leads.
package parser

import (
	"strings"
	"time"

	"github.com/mixelka/metaleads/pkg/models"
)

// ParsedEmail is a parsed lead email: envelope data plus the extracted lead
type ParsedEmail struct {
	Subject   string
	MessageID string
	From      string
	Date      time.Time
	Info      models.LeadInfo
}

// LeadParser parses raw RFC822 messages into leads
type LeadParser struct{}

// NewLeadParser creates a new lead parser
func NewLeadParser() *LeadParser {
	return &LeadParser{}
}

// Parse parses a raw message. It never fails: fields that cannot be found are
// left empty.
func (p *LeadParser) Parse(raw []byte) *ParsedEmail {
	msg := ParseMessage(raw)
	return &ParsedEmail{
		Subject:   msg.Subject,
		MessageID: msg.MessageID,
		From:      msg.From(),
		Date:      msg.Date,
		Info:      ExtractLeadInfo(msg),
	}
}

// ExtractLeadInfo runs the heuristics pipeline over a parsed message
func ExtractLeadInfo(msg *Message) models.LeadInfo {
	info := models.LeadInfo{Fields: models.Fields{}}

	text := workingText(msg)
	if text == "" {
		return info
	}

	in := &input{text: text, msg: msg}
	info.RawContent = text
	for _, h := range pipeline {
		h(in, &info)
	}

	normalize(&info)
	return info
}

// workingText prefers the plain text body and falls back to the HTML body
func workingText(msg *Message) string {
	if text := cleanText(msg.Text); text != "" {
		return text
	}
	return HTMLToText(msg.HTML)
}

// normalize trims values and drops the ones that fail validation
func normalize(info *models.LeadInfo) {
	info.Name = stripQuotes(info.Name)
	info.Email = stripQuotes(info.Email)
	info.Phone = stripQuotes(info.Phone)
	info.Message = strings.TrimSpace(info.Message)
	info.RawContent = strings.TrimSpace(info.RawContent)

	if info.Email != "" && !IsValidEmail(info.Email) {
		info.Email = ""
	}
	if info.Phone != "" && !IsValidPhone(info.Phone) {
		info.Phone = ""
	}

	fields := info.Fields[:0]
	for _, f := range info.Fields {
		f.Value = strings.TrimSpace(f.Value)
		if f.Key != "" && f.Value != "" {
			fields = append(fields, f)
		}
	}
	info.Fields = fields
}
