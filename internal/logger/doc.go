// Package logger wraps zap with the conveniences the bundler binaries need:
//   - a global sugared logger with a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing and configuration,
//   - shorthand functions (Infof, ErrorKV, and so on).
//
// Services take a context and log through it, so every build step carries
// the component name it runs under.
package logger
