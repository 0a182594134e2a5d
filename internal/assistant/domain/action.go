package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

type ActionType string

const (
	ActionSendReminder     ActionType = "send_reminder"
	ActionMarkPaid         ActionType = "mark_paid"
	ActionAnalyze          ActionType = "analyze"
	ActionScheduleFollowup ActionType = "schedule_followup"
)

// Action is one of SendReminder, MarkPaid, Analyze or ScheduleFollowup.
type Action interface {
	Type() ActionType
	isAction()
}

// SendReminder starts an automation for the invoice, or makes the active one due now.
type SendReminder struct {
	InvoiceID snowflake.ID
	Smart     bool
}

type MarkPaid struct {
	InvoiceID snowflake.ID
}

type Analyze struct {
	ClientID snowflake.ID
}

type ScheduleFollowup struct {
	AutomationID snowflake.ID
	At           time.Time
	Delay        time.Duration
}

// RunAt resolves the follow-up time. An absolute time wins over a delay.
func (a ScheduleFollowup) RunAt(now time.Time) time.Time {
	if !a.At.IsZero() {
		return a.At.UTC()
	}
	return now.Add(a.Delay).UTC()
}

func (SendReminder) Type() ActionType     { return ActionSendReminder }
func (MarkPaid) Type() ActionType         { return ActionMarkPaid }
func (Analyze) Type() ActionType          { return ActionAnalyze }
func (ScheduleFollowup) Type() ActionType { return ActionScheduleFollowup }

func (SendReminder) isAction()     {}
func (MarkPaid) isAction()         {}
func (Analyze) isAction()          {}
func (ScheduleFollowup) isAction() {}

// ParseAction validates a raw action into its typed variant.
func ParseAction(raw RawAction) (Action, error) {
	switch ActionType(strings.ToLower(strings.TrimSpace(raw.Type))) {
	case ActionSendReminder:
		id, err := paramID(raw.Params, "invoice_id")
		if err != nil {
			return nil, err
		}
		smart, _ := raw.Params["smart"].(bool)
		return SendReminder{InvoiceID: id, Smart: smart}, nil
	case ActionMarkPaid:
		id, err := paramID(raw.Params, "invoice_id")
		if err != nil {
			return nil, err
		}
		return MarkPaid{InvoiceID: id}, nil
	case ActionAnalyze:
		id, err := paramID(raw.Params, "client_id")
		if err != nil {
			return nil, err
		}
		return Analyze{ClientID: id}, nil
	case ActionScheduleFollowup:
		id, err := paramID(raw.Params, "automation_id")
		if err != nil {
			return nil, err
		}
		followup := ScheduleFollowup{AutomationID: id}
		if at, ok := raw.Params["at"].(string); ok && at != "" {
			parsed, err := time.Parse(time.RFC3339, at)
			if err != nil {
				return nil, fmt.Errorf("%w: at: %v", ErrInvalidAction, err)
			}
			followup.At = parsed
			return followup, nil
		}
		days, err := paramNumber(raw.Params, "days")
		if err != nil {
			return nil, err
		}
		if days <= 0 {
			return nil, fmt.Errorf("%w: days must be positive", ErrInvalidAction)
		}
		followup.Delay = time.Duration(days * float64(24*time.Hour))
		return followup, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAction, raw.Type)
	}
}

// paramID accepts IDs as strings or JSON numbers. Strings are preferred since
// snowflake IDs exceed float64 precision.
func paramID(params map[string]any, key string) (snowflake.ID, error) {
	var (
		id  int64
		err error
	)
	switch v := params[key].(type) {
	case string:
		id, err = strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	case json.Number:
		id, err = v.Int64()
	case float64:
		id = int64(v)
	case int64:
		id = v
	case int:
		id = int64(v)
	case nil:
		return 0, fmt.Errorf("%w: missing %s", ErrInvalidAction, key)
	default:
		return 0, fmt.Errorf("%w: %s has type %T", ErrInvalidAction, key, v)
	}
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s", ErrInvalidAction, key)
	}
	return snowflake.ID(id), nil
}

func paramNumber(params map[string]any, key string) (float64, error) {
	switch v := params[key].(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: invalid %s", ErrInvalidAction, key)
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: invalid %s", ErrInvalidAction, key)
		}
		return f, nil
	case nil:
		return 0, fmt.Errorf("%w: missing %s", ErrInvalidAction, key)
	default:
		return 0, fmt.Errorf("%w: %s has type %T", ErrInvalidAction, key, v)
	}
}
