package domain

import "errors"

var (
	ErrInvalidOrganization     = errors.New("invalid_organization")
	ErrInvalidInvoice          = errors.New("invalid_invoice")
	ErrInvalidAutomation       = errors.New("invalid_automation")
	ErrInvalidSchedule         = errors.New("invalid_schedule")
	ErrInvoiceNotFound         = errors.New("invoice_not_found")
	ErrClientNotFound          = errors.New("client_not_found")
	ErrAutomationNotFound      = errors.New("automation_not_found")
	ErrAutomationAlreadyActive = errors.New("automation_already_active")
	ErrInvoiceNotPayable       = errors.New("invoice_not_payable")
	ErrCannotEscalate          = errors.New("cannot_escalate")
	ErrNotActive               = errors.New("automation_not_active")
	ErrAlreadyClaimed          = errors.New("automation_already_claimed")
	ErrStageMismatch           = errors.New("stage_mismatch")
	ErrMissingNextRun          = errors.New("missing_next_run")
	ErrVersionConflict         = errors.New("version_conflict")
)
