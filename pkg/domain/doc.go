// Package domain contains the core types shared across the Cadenza engine:
// conversation state, messages, routing decisions, tool descriptors and the
// patch model that governs every state mutation.
//
// The types here are persistence-friendly (plain JSON-tagged structs) and
// carry no behavior beyond construction, cloning and patch application.
package domain
