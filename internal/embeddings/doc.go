// Package embeddings turns chunk text into vectors.
//
// Three providers sit behind the Provider interface: the OpenAI embeddings
// API (default, text-embedding-3-small), any OpenAI-compatible server such
// as Hugging Face TEI, and local ONNX models through FastEmbed when the
// binary is built with cgo. NewProvider selects one from configuration.
package embeddings
