package constants

// Condition identifies how a participant's actions are produced.
type Condition string

const (
	// ConditionActive means the participant chooses every sample and final choice.
	ConditionActive Condition = "active"

	// ConditionPassive means actions are replayed from a yoked participant's log.
	ConditionPassive Condition = "passive"
)

// Valid returns true if the condition is a recognized value.
func (c Condition) Valid() bool {
	switch c {
	case ConditionActive, ConditionPassive:
		return true
	}
	return false
}

// String returns the string representation of the condition.
func (c Condition) String() string {
	return string(c)
}
