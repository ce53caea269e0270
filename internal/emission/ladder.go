package emission

// Action is the enforcement outcome of one emission check.
type Action string

const (
	ActionPass    Action = "Pass"
	ActionWarning Action = "Warning"
	ActionFine    Action = "Fine"
	ActionBlocked Action = "Blocked"
)

// fines is indexed by the number of prior violations; index 0 is the warning.
var fines = [...]int{0, 200, 500, 1000, 2000}

// Escalate maps the count of prior violations to the next action and fine.
// Counts past the end of the ladder are terminal.
func Escalate(prior int) (Action, int) {
	switch {
	case prior <= 0:
		return ActionWarning, 0
	case prior < len(fines):
		return ActionFine, fines[prior]
	default:
		return ActionBlocked, 0
	}
}
