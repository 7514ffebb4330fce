// Package flow implements the conversational state machine in front of the
// trade engine. Each user has at most one flow record and one passkey entry
// in the session store; both expire on their own when abandoned.
//
// The Orchestrator is transport neutral: front-ends (HTTP, MCP, console)
// turn its Replies into messages and buttons.
package flow
