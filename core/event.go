package core

import "time"

// RawRecord is one unnormalized telemetry row as handed over by a tabular
// reader: string-keyed values in whatever representation the source used.
// The engine never reads RawRecord directly; ingest converts it to an Event.
type RawRecord map[string]interface{}

// Event is the canonical telemetry record every detector reads. All source
// leniency lives in the ingest package; once built, an Event is never
// mutated. Detectors derive their own aggregates and leave the corpus alone.
type Event struct {
	Hostname  string    `json:"hostname"`
	Timestamp time.Time `json:"timestamp"` // zero value = unparseable source timestamp

	PID     int64  `json:"pid"`
	PPID    int64  `json:"ppid"`
	Name    string `json:"name"`
	ExePath string `json:"exe_path"`
	Cmdline string `json:"cmdline"`
	User    string `json:"user"`
	OSType  string `json:"os_type"`

	RemoteIPs      []string `json:"remote_ips"`
	DNSQueries     []string `json:"dns_queries"`
	RegistryWrites []string `json:"registry_writes"`
	ChildProcesses []string `json:"child_processes"`
	LoadedModules  []string `json:"loaded_modules"`

	OutboundBytes       int64 `json:"outbound_bytes"`
	InboundBytes        int64 `json:"inbound_bytes"`
	ConnCount           int64 `json:"conn_count"`
	RWXSegmentsCount    int64 `json:"rwx_segments_count"`
	AnonymousMemSize    int64 `json:"anonymous_mem_size"`
	RemoteMemOperations int64 `json:"remote_mem_operations"`

	ScriptExecution           bool `json:"script_execution"`
	ObfuscatedScript          bool `json:"obfuscated_script"`
	RegistryPersistenceAccess bool `json:"registry_persistence_access"`
	ExeMismatch               bool `json:"exe_mismatch"`
	CredentialAccess          bool `json:"credential_access"`
}

// HasTimestamp reports whether the source timestamp parsed. Events without a
// timestamp are excluded from every time-bounded filter but stay in the
// corpus for non-temporal use.
func (e *Event) HasTimestamp() bool {
	return !e.Timestamp.IsZero()
}

// Day returns the event's calendar date truncated to midnight UTC. Only
// meaningful when HasTimestamp is true.
func (e *Event) Day() time.Time {
	y, m, d := e.Timestamp.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
