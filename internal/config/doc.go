// Package config resolves the action inputs of auto-changelog.
//
// Inputs come from one of two places:
//   - github mode: the INPUT_<NAME> environment variables that the Actions
//     runner sets for every input declared in action.yml
//   - local mode: the "with:" block of the changelog step in a workflow
//     YAML file, or a flat JSONC object of inputs, completed interactively
//     for values that cannot be read from the file
//
// Both sources produce raw Values which are layered over Defaults and then
// resolved into typed Inputs.
package config
