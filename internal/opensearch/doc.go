// Package opensearch manages the vector index of an OpenSearch Serverless
// collection used as a Bedrock knowledge base store.
package opensearch
