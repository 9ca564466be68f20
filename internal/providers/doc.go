// Package providers implements the Completer interface for each supported
// LLM provider.
//
// Supported providers: Azure OpenAI, OpenAI, Anthropic (Claude), Google
// (Gemini), Mistral, and Ollama / LMStudio for local models.
//
// Every provider makes exactly one attempt per call and reports failures as
// a classified *Error. Retrying is layered on top with [WithRetry], which
// retries only rate-limited calls with exponential back-off. Built-in SDK
// retries are disabled so the two loops never stack.
//
// Use [New] to obtain a Completer from model settings.
package providers
