package email

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// Known IMAP endpoints of providers clinics commonly route lead ads to
var knownIMAPServers = map[string]string{
	"gmail.com":      "imap.gmail.com:993",
	"googlemail.com": "imap.gmail.com:993",
	"outlook.com":    "outlook.office365.com:993",
	"hotmail.com":    "outlook.office365.com:993",
	"live.com":       "outlook.office365.com:993",
	"yahoo.com":      "imap.mail.yahoo.com:993",
	"icloud.com":     "imap.mail.me.com:993",
	"me.com":         "imap.mail.me.com:993",
	"aol.com":        "imap.aol.com:993",
	"zoho.com":       "imap.zoho.com:993",
	"fastmail.com":   "imap.fastmail.com:993",
}

// Resolver finds the IMAP server for a mailbox address when none is configured
type Resolver struct {
	// Probe reports whether host:port accepts TCP connections
	Probe func(address string) bool
	// LookupMX returns the MX hosts of a domain
	LookupMX func(domain string) ([]*net.MX, error)
}

// NewResolver creates a resolver that probes the network
func NewResolver() *Resolver {
	return &Resolver{
		Probe:    probeTCP,
		LookupMX: net.LookupMX,
	}
}

// ResolveIMAPServer determines host:port of the IMAP server for an address
func (r *Resolver) ResolveIMAPServer(address string) (string, error) {
	domain := DomainOf(address)
	if domain == "" {
		return "", fmt.Errorf("invalid email format: %q", address)
	}

	if server, ok := knownIMAPServers[domain]; ok {
		return server, nil
	}

	for _, host := range []string{"imap." + domain, "mail." + domain, domain} {
		if r.Probe(host + ":993") {
			return host + ":993", nil
		}
	}

	if server, err := r.resolveViaMX(domain); err == nil {
		return server, nil
	}

	return "imap." + domain + ":993", nil
}

// resolveViaMX derives the IMAP host from the primary MX record,
// e.g. mx.example.com -> imap.example.com
func (r *Resolver) resolveViaMX(domain string) (string, error) {
	mxRecords, err := r.LookupMX(domain)
	if err != nil || len(mxRecords) == 0 {
		return "", fmt.Errorf("no MX records found for %s", domain)
	}

	mxHost := strings.TrimSuffix(mxRecords[0].Host, ".")
	parts := strings.SplitN(mxHost, ".", 2)
	if len(parts) == 2 {
		for _, host := range []string{"imap." + parts[1], "mail." + parts[1]} {
			if r.Probe(host + ":993") {
				return host + ":993", nil
			}
		}
	}

	return "", fmt.Errorf("could not determine IMAP server for %s", domain)
}

func probeTCP(address string) bool {
	conn, err := net.DialTimeout("tcp", address, 3*time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// DomainOf returns the lowercase domain of an email address
func DomainOf(address string) string {
	parts := strings.Split(address, "@")
	if len(parts) != 2 || parts[1] == "" {
		return ""
	}
	return strings.ToLower(parts[1])
}
