// Package errors provides the classified error primitives shared by the plugin
// lifecycle engine and the host around it.
//
// Every failure the engine reports carries an ErrorKind. Load-time kinds end up in
// load reports, dispatch-time kinds in command results, host-side kinds in CLI
// exit codes and HTTP status codes (see CLIErrorAdapter and HTTPErrorAdapter).
//
// Example usage:
//
//	err := errors.NewError(errors.KindIncompatibleHost, "host too old").
//		ForPlugin("prompt-engineering-plugin").
//		WithContext("min_cli_version", "2.0.0").
//		Build()
package errors
