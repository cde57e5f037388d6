// Package config loads the scan configuration.
//
// Two layers feed the final Config: an optional declarative Lua file
// (sandboxed, with a read-only platform table injected so one file can
// vary rule sets per host platform), and the environment variables the
// container contract has always used (EVTX_ROOT, SIGMA_DIR, SMTP_HOST and
// friends). Environment values win over file values, so an env-only
// deployment keeps working with no config file at all.
package config
