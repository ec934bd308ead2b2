package realtime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRouter_DispatchByTable(t *testing.T) {
	router := NewRouter("u1")

	var tasks, comments int
	router.Subscribe("tasks", func(ChangeEvent) { tasks++ }, nil)
	router.Subscribe("comments", func(ChangeEvent) { comments++ }, nil)

	router.Dispatch(ChangeEvent{Table: "tasks", Type: EventInsert, New: map[string]any{"id": "t1"}})
	router.Dispatch(ChangeEvent{Table: "tasks", Type: EventUpdate, New: map[string]any{"id": "t1"}})
	router.Dispatch(ChangeEvent{Table: "comments", Type: EventInsert, New: map[string]any{"id": "c1"}})

	require.Equal(t, 2, tasks)
	require.Equal(t, 1, comments)
}

func TestRouter_FilterMatch(t *testing.T) {
	router := NewRouter("u1")

	var hits int
	router.Subscribe("tasks", func(ChangeEvent) { hits++ }, &Filter{Column: "project_id", Value: "p1"})

	router.Dispatch(ChangeEvent{Table: "tasks", Type: EventInsert, New: map[string]any{"project_id": "p1"}})
	router.Dispatch(ChangeEvent{Table: "tasks", Type: EventInsert, New: map[string]any{"project_id": "p2"}})
	router.Dispatch(ChangeEvent{Table: "tasks", Type: EventInsert, New: map[string]any{"title": "no project"}})

	require.Equal(t, 1, hits)
}

func TestRouter_FilterToleratesNumericDrift(t *testing.T) {
	router := NewRouter("u1")

	var hits int
	router.Subscribe("tasks", func(ChangeEvent) { hits++ }, &Filter{Column: "position", Value: 3})

	// JSON decoding yields float64; the filter still matches.
	router.Dispatch(ChangeEvent{Table: "tasks", Type: EventUpdate, New: map[string]any{"position": float64(3)}})
	require.Equal(t, 1, hits)
}

func TestRouter_DeleteUsesOldRow(t *testing.T) {
	router := NewRouter("u1")

	var got map[string]any
	router.Subscribe("tasks", func(evt ChangeEvent) { got = evt.Row() }, &Filter{Column: "project_id", Value: "p1"})

	router.Dispatch(ChangeEvent{
		Table: "tasks",
		Type:  EventDelete,
		Old:   map[string]any{"id": "t1", "project_id": "p1"},
	})

	require.Equal(t, "t1", got["id"])
}

func TestRouter_Unsubscribe(t *testing.T) {
	router := NewRouter("u1")

	var first, second int
	unsub := router.Subscribe("tasks", func(ChangeEvent) { first++ }, nil)
	router.Subscribe("tasks", func(ChangeEvent) { second++ }, nil)
	require.Equal(t, 2, router.HandlerCount("tasks"))

	unsub()
	require.Equal(t, 1, router.HandlerCount("tasks"))

	router.Dispatch(ChangeEvent{Table: "tasks", Type: EventInsert, New: map[string]any{}})
	require.Equal(t, 0, first)
	require.Equal(t, 1, second)

	// Unsubscribing twice is harmless.
	unsub()
	require.Equal(t, 1, router.HandlerCount("tasks"))
}

func TestRouter_PanicIsolation(t *testing.T) {
	router := NewRouter("u1")

	var after int
	router.Subscribe("tasks", func(ChangeEvent) { panic("boom") }, nil)
	router.Subscribe("tasks", func(ChangeEvent) { after++ }, nil)

	require.NotPanics(t, func() {
		router.Dispatch(ChangeEvent{Table: "tasks", Type: EventInsert, New: map[string]any{}})
	})
	require.Equal(t, 1, after)
}

func TestRouter_ConnectedFlagSurvivesRegistrations(t *testing.T) {
	router := NewRouter("u1")
	router.Subscribe("tasks", func(ChangeEvent) {}, nil)

	require.False(t, router.Connected())
	router.SetConnected(true)
	require.True(t, router.Connected())
	router.SetConnected(false)
	require.False(t, router.Connected())
	require.Equal(t, 1, router.HandlerCount("tasks"))
}
