package cameras

import (
	"testing"
	"time"

	"github.com/nerrad567/homeapps/internal/automation"
	"github.com/nerrad567/homeapps/internal/automation/automationtest"
)

func newHarness(t *testing.T, cameraState string) *automationtest.Harness {
	t.Helper()
	h := automationtest.New(t, time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC))
	h.Seed(
		"person.owen", "not_home",
		"person.allison", "not_home",
		"switch.camera_living_room", cameraState,
		"switch.camera_kitchen", cameraState,
		"input_boolean.cameras_on", "off",
	)
	h.Start(New, "cameras", automation.Args{
		"people":     []any{"person.owen", "person.allison"},
		"cameras":    []any{"switch.camera_living_room", "switch.camera_kitchen"},
		"cameras_on": "input_boolean.cameras_on",
		"notify":     "owen",
	})
	return h
}

func TestArrivalTurnsCamerasOff(t *testing.T) {
	h := newHarness(t, "on")
	h.Seed("input_boolean.cameras_on", "on")

	h.Host.Change("person.owen", "home")
	h.ExpectCalls(
		"switch.turn_off switch.camera_living_room",
		"switch.turn_off switch.camera_kitchen",
		"input_boolean.turn_off input_boolean.cameras_on",
	)
	h.ExpectNotified("Cameras turned off.")
}

func TestArrivalWithCamerasAlreadyOff(t *testing.T) {
	h := newHarness(t, "off")

	h.Host.Change("person.owen", "home")
	h.ExpectCalls()
	h.ExpectNotified()
}

func TestArmWhileAway(t *testing.T) {
	h := newHarness(t, "off")

	h.Host.Change("input_boolean.cameras_on", "on")
	h.ExpectCalls(
		"switch.turn_on switch.camera_living_room",
		"switch.turn_on switch.camera_kitchen",
	)
	h.ExpectNotified("Cameras turned on.")
}

func TestArmIgnoredWhileHome(t *testing.T) {
	h := newHarness(t, "off")
	h.Seed("person.allison", "home")

	h.Host.Change("input_boolean.cameras_on", "on")
	h.ExpectCalls()
}
