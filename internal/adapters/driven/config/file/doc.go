// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data under the lexcheck home directory
// (~/.lexcheck, or $LEXCHECK_HOME).
//
// Adapters:
//   - ConfigStore: TOML-based configuration storage
//   - PromptStore: user-editable prompt templates with built-in defaults
//   - PromptWatcher: reloads the PromptStore when prompt files change
package file
