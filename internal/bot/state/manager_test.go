package state

import "testing"

func TestManager(t *testing.T) {
	var m StateManager = NewManager()

	if got := m.GetUserState(1); got != None {
		t.Fatalf("initial state = %q", got)
	}
	m.SetUserState(1, WaitingForCarbs)
	if got := m.GetUserState(1); got != WaitingForCarbs {
		t.Fatalf("state = %q", got)
	}
	if got := m.GetUserState(2); got != None {
		t.Fatalf("other user state = %q", got)
	}

	m.SetTempData(1, KeyMealFood, "idli")
	if v, ok := m.GetTempData(1, KeyMealFood); !ok || v != "idli" {
		t.Fatalf("temp = %q %v", v, ok)
	}
	m.ClearTempData(1)
	if _, ok := m.GetTempData(1, KeyMealFood); ok {
		t.Fatal("temp data survived clear")
	}

	m.SetUserState(1, None)
	if got := m.GetUserState(1); got != None {
		t.Fatalf("state after reset = %q", got)
	}
}
