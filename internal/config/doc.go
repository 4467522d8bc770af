/*
Package config resolves the settings of a model run.

Settings come from four layers, highest precedence first:

  - command line flags registered with BindFlags, when set explicitly
  - EQ_* environment variables (EQ_WORKERS, EQ_CALACCURACY, ...)
  - an optional YAML file named by --config
  - built-in defaults

Load returns a validated RunConfig. Validation problems are reported
together as a single *interfaces.ConfigurationError.
*/
package config
