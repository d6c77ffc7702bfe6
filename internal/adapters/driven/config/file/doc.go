// Package file provides file-based configuration adapters.
//
// Adapters:
//   - Config: TOML configuration with secrets from DIGEST_* environment variables
//   - LoadKeywordTable: the versioned keyword table, built in or from a file
//   - PromptStore: user-editable LLM prompts
package file
