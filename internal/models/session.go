package models

// Step enumerates the conversation states.
type Step string

const (
	StepIdle        Step = "idle"
	StepAskName     Step = "ask_name"
	StepAskSite     Step = "ask_site"
	StepAskAccount  Step = "ask_account"
	StepAskPassword Step = "ask_password"
	StepAskExpiry   Step = "ask_expiry"
	StepAskExtra    Step = "ask_extra"
	StepPicking     Step = "picking"
)

// Session is the per-user conversation state. Only the fields valid for
// the current step are populated: the ask_* steps accumulate the pending
// secret, picking carries the id list shown to the user. A stored session
// older than the inactivity window reads back as idle.
type Session struct {
	Step       Step    `json:"step"`
	Name       string  `json:"name,omitempty"`
	Site       string  `json:"site,omitempty"`
	Account    string  `json:"account,omitempty"`
	Password   string  `json:"password,omitempty"`
	ExpiresAt  *string `json:"expiresAt,omitempty"`
	Extra      *string `json:"extra,omitempty"`
	PickingIDs []int64 `json:"pickingIds,omitempty"`
}

// IdleSession is the zero conversation state.
func IdleSession() Session {
	return Session{Step: StepIdle}
}

func (s Session) Idle() bool {
	return s.Step == StepIdle || s.Step == ""
}
