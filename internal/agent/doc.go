// Package agent contains kbagent's core (non-UI) logic.
//
// It wraps the Bedrock Agent runtime and control plane: agent invocation,
// whose chunked response is consumed either as one aggregated string or chunk
// by chunk, knowledge base retrieval, and ingestion jobs.
package agent
