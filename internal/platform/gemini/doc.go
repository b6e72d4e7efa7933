// Package gemini implements the generation.Invoker interface using
// Google's Gemini API via the google.golang.org/genai client.
package gemini
