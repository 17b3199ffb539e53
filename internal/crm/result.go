package crm

import "encoding/json"

// State is the normalized integration status.
type State string

const (
	StateOK        State = "ok"
	StateDisabled  State = "disabled"
	StateAuthError State = "auth_error"
	StateError     State = "error"
)

func (s State) String() string { return string(s) }

// Result is the outcome of one status check. Build it with OK, Disabled,
// AuthError or Failed; org and contact count exist only for StateOK.
type Result struct {
	state    State
	org      string
	contacts int
}

// OK is a successful check against org with count contact records.
func OK(org string, count int) Result {
	return Result{state: StateOK, org: org, contacts: count}
}

// Disabled means credentials are missing and the integration is off.
func Disabled() Result { return Result{state: StateDisabled} }

// AuthError means the CRM rejected the credentials.
func AuthError() Result { return Result{state: StateAuthError} }

// Failed covers every other failure: network, parsing, query.
func Failed() Result { return Result{state: StateError} }

// State returns the result's state. The zero Result reports StateError.
func (r Result) State() State {
	if r.state == "" {
		return StateError
	}
	return r.state
}

// Org returns the connected org and true when the state is ok.
func (r Result) Org() (string, bool) {
	return r.org, r.State() == StateOK
}

// ContactsCount returns the contact count and true when the state is ok.
func (r Result) ContactsCount() (int, bool) {
	return r.contacts, r.State() == StateOK
}

type resultJSON struct {
	Org           *string `json:"org"`
	ContactsCount *int    `json:"contacts_count"`
	Status        State   `json:"status"`
}

// MarshalJSON renders {"org": ..., "contacts_count": ..., "status": ...}
// with nulls for anything but an ok result.
func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{Status: r.State()}
	if out.Status == StateOK {
		org, count := r.org, r.contacts
		out.Org = &org
		out.ContactsCount = &count
	}
	return json.Marshal(out)
}
