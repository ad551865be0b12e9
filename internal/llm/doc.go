// Package llm extracts structured expenses from chat text and receipt images
// using a language model. It supports Anthropic and OpenAI, with retries on
// rate limits and server errors.
package llm
