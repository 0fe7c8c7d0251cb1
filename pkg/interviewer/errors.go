package interviewer

import "errors"

// ErrTurnAborted indicates the tool-call loop hit its iteration cap without
// the model producing a terminal plain-text reply. The turn's partial state
// is discarded, not persisted.
var ErrTurnAborted = errors.New("turn aborted: tool loop cap exceeded")

// apologyMessage is returned verbatim when the model gateway fails mid-turn.
// The session keeps its pre-turn stage and content.
const apologyMessage = "I apologize, but I encountered an issue. Please try again."
