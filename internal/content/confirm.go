package content

// Confirmer answers a blocking yes/no question before a destructive call.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool {
	if f == nil {
		return false
	}
	return f(prompt)
}

// Confirmed is a Confirmer with a fixed answer, used once a dialog has
// already collected the user's decision.
type Confirmed bool

func (c Confirmed) Confirm(string) bool { return bool(c) }
