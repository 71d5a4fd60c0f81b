package database

const schema = `
CREATE TABLE IF NOT EXISTS subject_mappings (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    customer_id TEXT NOT NULL,
    email_subject TEXT NOT NULL,
    email_subject_lower TEXT NOT NULL,
    is_active BOOLEAN DEFAULT true,
    notes TEXT NOT NULL DEFAULT '',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(email_subject)
);

CREATE TABLE IF NOT EXISTS leads (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    customer_id TEXT NOT NULL,
    email_message_id TEXT UNIQUE,
    email_subject TEXT NOT NULL DEFAULT '',
    email_from TEXT NOT NULL DEFAULT '',
    email_date DATETIME,
    lead_name TEXT,
    lead_email TEXT,
    lead_phone TEXT,
    lead_message TEXT,
    raw_content TEXT,
    fields TEXT NOT NULL DEFAULT '{}',
    status TEXT NOT NULL DEFAULT 'new',
    status_reason TEXT,
    contacted_at DATETIME,
    appointment_at DATETIME,
    notes TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_mappings_lower ON subject_mappings(email_subject_lower);
CREATE INDEX IF NOT EXISTS idx_mappings_active ON subject_mappings(is_active);
CREATE INDEX IF NOT EXISTS idx_leads_customer ON leads(customer_id);
CREATE INDEX IF NOT EXISTS idx_leads_email_date ON leads(email_date);
CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
`
