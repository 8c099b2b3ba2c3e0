package dialog

type State string

const (
	StateIdle State = "idle"

	// Даты плана
	StateAwaitExpected State = "await_expected" // ввод Expected_Completion
	StateAwaitPlanned  State = "await_planned"  // ввод Planned_Start

	// Not to Transfer
	StateAwaitHoldReason State = "await_hold_reason"
	StateAwaitHoldBrand  State = "await_hold_brand"
)

// Ключи payload
const (
	KeyID     = "id"
	KeyReason = "reason"
)

type Payload map[string]any

type Item struct {
	ChatID  int64
	State   State
	Payload Payload
}
