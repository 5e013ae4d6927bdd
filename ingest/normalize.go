// Package ingest converts raw heterogeneous telemetry rows into the
// canonical core.Event model. Every coercion rule the detectors rely on
// lives here: detectors downstream operate on a strictly-typed corpus and
// never see a malformed field.
package ingest

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"retrohunt/core"
	"retrohunt/metrics"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// arrayParseCacheSize bounds the memo of raw array encodings. Telemetry
// exports repeat identical encodings (often the literal "[]") across
// thousands of rows, so the hit rate is high even with a small cache.
const arrayParseCacheSize = 1024

// timestampLayouts are tried in order. Sources mix RFC3339 with the
// space-separated export format; anything unparseable yields a null
// timestamp rather than dropping the row.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Normalizer builds canonical Events from raw rows. Safe for reuse across
// files; not safe for concurrent use.
type Normalizer struct {
	logger     *zap.SugaredLogger
	arrayCache *lru.Cache[string, []string]
	validator  *recordValidator
}

// NewNormalizer creates a Normalizer. The logger receives per-field
// diagnostics; pass a nop logger to silence them.
func NewNormalizer(logger *zap.SugaredLogger) *Normalizer {
	cache, _ := lru.New[string, []string](arrayParseCacheSize)
	return &Normalizer{
		logger:     logger,
		arrayCache: cache,
		validator:  newRecordValidator(logger),
	}
}

// Normalize converts raw rows to Events. Comment and header rows (hostname
// beginning with '#' or '--') are dropped. Field-level parse failures are
// always local: the offending field gets its safe default and the rest of
// the row survives.
func (n *Normalizer) Normalize(rows []core.RawRecord) []core.Event {
	events := make([]core.Event, 0, len(rows))
	dropped := 0
	for i, row := range rows {
		hostname := coerceString(row["hostname"])
		if isCommentRow(hostname) {
			dropped++
			continue
		}
		n.validator.check(i, row)
		events = append(events, n.normalizeRow(row, hostname))
	}
	metrics.RowsNormalized.Add(float64(len(events)))
	metrics.RowsDropped.Add(float64(dropped))
	if dropped > 0 {
		n.logger.Debugf("normalize: dropped %d comment/header rows of %d", dropped, len(rows))
	}
	return events
}

func (n *Normalizer) normalizeRow(row core.RawRecord, hostname string) core.Event {
	ev := core.Event{
		Hostname: hostname,
		Name:     coerceString(row["name"]),
		ExePath:  coerceString(row["exe_path"]),
		Cmdline:  coerceString(row["cmdline"]),
		User:     coerceString(row["user"]),
		OSType:   coerceString(row["os_type"]),

		PID:                 coerceInt64(row["pid"]),
		PPID:                coerceInt64(row["ppid"]),
		InboundBytes:        coerceInt64(row["inbound_bytes"]),
		ConnCount:           coerceInt64(row["conn_count"]),
		RWXSegmentsCount:    coerceInt64(row["rwx_segments_count"]),
		AnonymousMemSize:    coerceInt64(row["anonymous_mem_size"]),
		RemoteMemOperations: coerceInt64(row["remote_mem_operations"]),

		RemoteIPs:      n.coerceStringList("remote_ips", row["remote_ips"]),
		DNSQueries:     n.coerceStringList("dns_queries", row["dns_queries"]),
		RegistryWrites: n.coerceStringList("registry_writes", row["registry_writes"]),
		ChildProcesses: n.coerceStringList("child_processes", row["child_processes"]),
		LoadedModules:  n.coerceStringList("loaded_modules", row["loaded_modules"]),

		ScriptExecution:           coerceBool(row["script_execution"]),
		ObfuscatedScript:          coerceBool(row["obfuscated_script"]),
		RegistryPersistenceAccess: coerceBool(row["registry_persistence_access"]),
		ExeMismatch:               coerceBool(row["exe_mismatch"]),
		CredentialAccess:          coerceBool(row["credential_access"]),
	}

	ev.Timestamp = n.coerceTimestamp(row["timestamp"], hostname)
	ev.OutboundBytes = n.coerceOutboundBytes(row["outbound_bytes"])
	return ev
}

// coerceTimestamp parses the source timestamp, returning the zero time on
// failure. Events with a null timestamp are excluded from every lookback
// filter but kept in the corpus.
func (n *Normalizer) coerceTimestamp(v interface{}, hostname string) time.Time {
	switch t := v.(type) {
	case nil:
		return time.Time{}
	case time.Time:
		return t.UTC()
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}
		}
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UTC()
			}
		}
		n.logger.Debugw("unparseable timestamp, excluding event from time-based analysis",
			"hostname", hostname, "value", s)
		metrics.FieldCoercionFailures.WithLabelValues("timestamp").Inc()
		return time.Time{}
	default:
		metrics.FieldCoercionFailures.WithLabelValues("timestamp").Inc()
		return time.Time{}
	}
}

// coerceOutboundBytes handles the dual encoding of outbound_bytes: a scalar
// byte count, or a sequence of counts that reduces to its sum.
func (n *Normalizer) coerceOutboundBytes(v interface{}) int64 {
	switch t := v.(type) {
	case []interface{}:
		var sum int64
		for _, elem := range t {
			sum += coerceInt64(elem)
		}
		return sum
	case string:
		if strings.HasPrefix(strings.TrimSpace(t), "[") {
			var sum int64
			for _, elem := range n.coerceStringList("outbound_bytes", t) {
				sum += coerceInt64(elem)
			}
			return sum
		}
		return coerceInt64(t)
	default:
		return coerceInt64(v)
	}
}

// coerceStringList normalizes an array-valued field to a well-formed string
// sequence. Raw sequences pass through; bracketed strings get a strict JSON
// parse, then a lenient re-parse with single quotes normalized to double
// quotes; anything else defaults to the empty sequence with a diagnostic.
func (n *Normalizer) coerceStringList(field string, v interface{}) []string {
	switch t := v.(type) {
	case nil:
		return []string{}
	case []string:
		return t
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, elem := range t {
			out = append(out, coerceString(elem))
		}
		return out
	case string:
		s := strings.TrimSpace(t)
		if s == "" || s == "[]" {
			return []string{}
		}
		if !strings.HasPrefix(s, "[") {
			// A scalar where a sequence belongs. The canonical model
			// guarantees a sequence, so this degrades to empty.
			metrics.FieldCoercionFailures.WithLabelValues(field).Inc()
			n.logger.Debugw("scalar value in array field, defaulting to empty", "field", field, "value", s)
			return []string{}
		}
		if cached, ok := n.arrayCache.Get(s); ok {
			return cached
		}
		parsed := n.parseArrayString(field, s)
		n.arrayCache.Add(s, parsed)
		return parsed
	default:
		metrics.FieldCoercionFailures.WithLabelValues(field).Inc()
		return []string{}
	}
}

func (n *Normalizer) parseArrayString(field, s string) []string {
	if out, ok := tryParseJSONArray(s); ok {
		return out
	}
	// Lenient re-parse: sources frequently emit Python-style single quotes.
	if out, ok := tryParseJSONArray(strings.ReplaceAll(s, "'", `"`)); ok {
		return out
	}
	metrics.FieldCoercionFailures.WithLabelValues(field).Inc()
	n.logger.Warnw("could not parse array value, defaulting to empty", "field", field, "value", s)
	return []string{}
}

func tryParseJSONArray(s string) ([]string, bool) {
	var raw []interface{}
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, elem := range raw {
		out = append(out, coerceString(elem))
	}
	return out, true
}

func isCommentRow(hostname string) bool {
	return strings.HasPrefix(hostname, "#") || strings.HasPrefix(hostname, "--")
}

// coerceString renders any scalar as a string. Nil and unsupported types
// become the empty string.
func coerceString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case float64:
		// JSON numbers decode as float64; render integral values without
		// a fractional part.
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// coerceInt64 is the best-effort numeric parse: non-numeric values become 0,
// fractional values truncate.
func coerceInt64(v interface{}) int64 {
	switch t := v.(type) {
	case nil:
		return 0
	case int:
		return int64(t)
	case int64:
		return t
	case float64:
		return int64(t)
	case bool:
		if t {
			return 1
		}
		return 0
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(f)
		}
		return 0
	default:
		return 0
	}
}

// coerceBool implements the tri-state indicator convention: 1, "1", and
// true all mean set; everything else means unset.
func coerceBool(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int:
		return t == 1
	case int64:
		return t == 1
	case float64:
		return t == 1
	case string:
		return strings.TrimSpace(t) == "1"
	default:
		return false
	}
}
