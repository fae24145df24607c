// Package flow implements the conversational state machine.
//
// Dialogues are declared as data: each Flow lists its states, and a
// Definition maps (flow, state, input class) triples to handlers. The Engine
// is the single generic dispatcher that loads a session, classifies the
// inbound text against the current state's declared input, runs the matching
// handler and persists the resulting session.
package flow
