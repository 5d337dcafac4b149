package ingest

import (
	"math"
	"strings"
	"time"

	"github.com/valyala/fastjson"

	"github.com/tinytelemetry/logbridge/internal/logparse"
	"github.com/tinytelemetry/logbridge/internal/model"
)

var parserPool fastjson.ParserPool

// Field aliases accepted on inbound JSON records, in priority order.
var (
	nameKeys  = []string{"name", "source", "node", "logger"}
	levelKeys = []string{"level", "severity"}
	msgKeys   = []string{"msg", "message"}
	timeKeys  = []string{"ts", "timestamp"}
)

// ParseRecords decodes one JSON line into records. The line may hold a single
// object or an array of objects. It returns false when the line is not JSON
// or holds nothing record-shaped; defaultName fills in a missing source name.
func ParseRecords(line, defaultName string) ([]model.LogRecord, bool) {
	p := parserPool.Get()
	defer parserPool.Put(p)

	v, err := p.Parse(line)
	if err != nil {
		return nil, false
	}

	switch v.Type() {
	case fastjson.TypeObject:
		rec, ok := recordFromValue(v, defaultName)
		if !ok {
			return nil, false
		}
		return []model.LogRecord{rec}, true
	case fastjson.TypeArray:
		items, _ := v.Array()
		out := make([]model.LogRecord, 0, len(items))
		for _, item := range items {
			if item.Type() != fastjson.TypeObject {
				continue
			}
			if rec, ok := recordFromValue(item, defaultName); ok {
				out = append(out, rec)
			}
		}
		return out, len(out) > 0
	default:
		return nil, false
	}
}

func recordFromValue(v *fastjson.Value, defaultName string) (model.LogRecord, bool) {
	msgVal := firstOf(v, msgKeys)
	if msgVal == nil {
		return model.LogRecord{}, false
	}
	rec := model.LogRecord{
		Name: stringOf(firstOf(v, nameKeys)),
		Msg:  stringOf(msgVal),
	}
	if rec.Name == "" {
		rec.Name = defaultName
	}
	rec.Level = severityOf(firstOf(v, levelKeys), rec.Msg)
	rec.Stamp = stampOf(v)
	return rec, true
}

func firstOf(v *fastjson.Value, keys []string) *fastjson.Value {
	for _, k := range keys {
		if f := v.Get(k); f != nil && f.Type() != fastjson.TypeNull {
			return f
		}
	}
	return nil
}

func stringOf(v *fastjson.Value) string {
	if v == nil {
		return ""
	}
	if v.Type() == fastjson.TypeString {
		return string(v.GetStringBytes())
	}
	return v.String()
}

// severityOf accepts an integer level or a level name. Missing or unknown
// values fall back to the level named in the message text.
func severityOf(v *fastjson.Value, msg string) model.Severity {
	if v != nil {
		switch v.Type() {
		case fastjson.TypeNumber:
			if n, err := v.Int(); err == nil {
				return model.Severity(n)
			}
		case fastjson.TypeString:
			if s, err := logparse.ParseSeverity(string(v.GetStringBytes())); err == nil {
				return s
			}
		}
	}
	return logparse.ExtractSeverityFromText(msg)
}

// stampOf reads {"stamp":{"sec":..,"nanosec":..}} or fractional epoch
// seconds under ts/timestamp, defaulting to the current time.
func stampOf(v *fastjson.Value) model.Stamp {
	if st := v.Get("stamp"); st != nil && st.Type() == fastjson.TypeObject {
		return model.Stamp{
			Sec:     st.GetInt64("sec"),
			Nanosec: uint32(st.GetUint("nanosec")),
		}
	}
	if t := firstOf(v, timeKeys); t != nil {
		switch t.Type() {
		case fastjson.TypeNumber:
			if f, err := t.Float64(); err == nil {
				return stampFromSeconds(f)
			}
		case fastjson.TypeString:
			if ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(string(t.GetStringBytes()))); err == nil {
				return model.StampFromTime(ts)
			}
		}
	}
	return model.StampFromTime(time.Now())
}

func stampFromSeconds(f float64) model.Stamp {
	sec := math.Floor(f)
	ns := math.Round((f - sec) * 1e9)
	if ns >= 1e9 {
		sec++
		ns -= 1e9
	}
	return model.Stamp{Sec: int64(sec), Nanosec: uint32(ns)}
}

// TextRecord builds a record from a plain-text line.
func TextRecord(line, name string) model.LogRecord {
	return model.LogRecord{
		Name:  name,
		Level: logparse.ExtractSeverityFromText(line),
		Stamp: model.StampFromTime(time.Now()),
		Msg:   line,
	}
}
