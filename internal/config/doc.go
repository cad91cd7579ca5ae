// Package config loads torrank.toml.
//
// The file is found via --config, then $TORRANK_CONFIG, then
// ~/.config/torrank/config.toml, then ./torrank.toml. Unknown keys are
// rejected with their line and column. FILTER_RULE and TORRANK_API_TOKEN
// fill in filter.rule and paths.api_token when the file leaves them empty.
//
// filter.rule is only checked for grammar here. Unknown tokens are reported
// when the engine compiles the rule against the stored custom rules.
package config
