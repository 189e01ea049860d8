package models

// VulnType is the closed set of vulnerability categories a report may claim.
type VulnType string

const (
	VulnXSS             VulnType = "xss"
	VulnSQLi            VulnType = "sqli"
	VulnRCE             VulnType = "rce"
	VulnSSRF            VulnType = "ssrf"
	VulnIDOR            VulnType = "idor"
	VulnAuthBypass      VulnType = "auth_bypass"
	VulnCSRF            VulnType = "csrf"
	VulnInfoDisclosure  VulnType = "info_disclosure"
	VulnPromptInjection VulnType = "prompt_injection"
	VulnBusinessLogic   VulnType = "business_logic"
	VulnOther           VulnType = "other"
)

// Report is a single vulnerability claim against a bounty.
// At most one report exists per (bounty, reporter).
type Report struct {
	ID          string   `gorm:"primaryKey;type:uuid" json:"id"`
	BountyID    string   `gorm:"type:uuid;not null;uniqueIndex:idx_reports_bounty_reporter" json:"bounty_id"`
	ReporterID  string   `gorm:"type:uuid;not null;uniqueIndex:idx_reports_bounty_reporter;index" json:"reporter_id"`
	VulnType    VulnType `gorm:"type:varchar(32);not null" json:"vuln_type"`
	Title       string   `gorm:"not null" json:"title"`
	Description string   `gorm:"type:text;not null" json:"description"`
	PoC         string   `gorm:"column:poc;type:text;not null" json:"poc"`
	Severity    int      `gorm:"not null" json:"severity"`

	// Written only by the verification workflow. IsVerified never reverts.
	IsVerified bool    `gorm:"not null;default:false;index" json:"is_verified"`
	VerifiedBy *string `gorm:"type:uuid" json:"verified_by,omitempty"`

	Timestamps
}
