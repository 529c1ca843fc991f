// Package configs provides files embedded into the rolodex binary.
//
// Files are embedded at build time using Go's //go:embed directive, so they
// are available in every distribution without a working directory:
//   - config.example.yaml: documented configuration with every default
//   - industries.yaml: industry terms → companies, used by the rule-based
//     reasoning provider (internal/reason)
//   - golden.yaml: labeled evaluation queries (internal/eval)
//   - contacts.json: fixture address book the golden queries are labeled
//     against, seeded by `rolodex eval`
//
// Configuration hierarchy (see internal/config Load()):
//  1. Hardcoded defaults (internal/config NewConfig())
//  2. User config (~/.config/rolodex/config.yaml)
//  3. Project config (.rolodex.yaml)
//  4. Environment variables (ROLODEX_*)
package configs

import _ "embed"

// ConfigTemplate is the documented example configuration. Its values
// match internal/config NewConfig().
//
//go:embed config.example.yaml
var ConfigTemplate string

// Industries is the industry expansion table.
//
//go:embed industries.yaml
var Industries []byte

// Golden is the default evaluation query set.
//
//go:embed golden.yaml
var Golden []byte

// Contacts is the fixture address book for evaluation.
//
//go:embed contacts.json
var Contacts []byte
