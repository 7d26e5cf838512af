// Package quest provides the domain types for daily museum quests.
//
// A quest is a per-museum, per-calendar-day scavenger-hunt session with a
// fixed list of target cultural objects. The backend owns quest creation and
// uniqueness; this package models what the client holds: the quest identity,
// its lifecycle status, and the set of objects the user has discovered.
//
// The package organizes quest data by ownership:
//
// # Quest (Server Layer)
//
// Identity and targets assigned by the backend: goal id, museum id, target
// object list. The client never invents these; it only caches the goal id to
// skip re-creation within the same day.
//
// # State (Client Layer)
//
// The per-museum view a screen renders: status, goal id, found set, and the
// last error message. Held in memory by the registry for the life of the
// process and rebuilt from the backend on refresh.
package quest
