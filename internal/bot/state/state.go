package state

// User states
const (
	None               = "none"
	WaitingForGlucose  = "waiting_for_glucose"
	WaitingForInsulin  = "waiting_for_insulin"
	WaitingForMealFood = "waiting_for_meal_food"
	WaitingForCarbs    = "waiting_for_carbs"
	WaitingForImport   = "waiting_for_import"
)

// Temp data keys
const (
	KeyMealFood = "meal_food"
)

// StateManager keeps the conversation state of chat users
type StateManager interface {
	SetUserState(userID int64, state string)
	GetUserState(userID int64) string
	SetTempData(userID int64, key string, value string)
	GetTempData(userID int64, key string) (string, bool)
	ClearTempData(userID int64)
}
