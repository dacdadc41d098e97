// Package logger wraps zap to offer:
//   - a global sugared logger writing a console encoding to stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level configuration and parsing utilities,
//   - convenience functions (Infof, WarnKV, etc.).
//
// Services accept a context and extract the logger from it, so every
// message carries the name and fields attached further up the call chain.
// Stdout is left to the console UI.
package logger
