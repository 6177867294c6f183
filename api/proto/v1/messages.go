// Package sysinfopb holds the sysinfo.v1 wire types described by sysinfo.proto.
//
// The messages are encoded with protowire directly so the binary format stays
// compatible with any client generated from sysinfo.proto.
package sysinfopb

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// SystemInfoRequest is the request for both the unary and the streaming RPC.
type SystemInfoRequest struct {
	// UpdateIntervalMs is the streaming cadence. Values <= 0 select the server default.
	UpdateIntervalMs int32
}

// GetUpdateIntervalMs is nil-safe.
func (x *SystemInfoRequest) GetUpdateIntervalMs() int32 {
	if x != nil {
		return x.UpdateIntervalMs
	}
	return 0
}

// MarshalBinary encodes the request in protobuf wire format.
func (x *SystemInfoRequest) MarshalBinary() ([]byte, error) {
	var b []byte
	if x.UpdateIntervalMs != 0 {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(int64(x.UpdateIntervalMs)))
	}
	return b, nil
}

// UnmarshalBinary decodes a protobuf-encoded request. Unknown fields are skipped.
func (x *SystemInfoRequest) UnmarshalBinary(b []byte) error {
	*x = SystemInfoRequest{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 && typ == protowire.VarintType {
			v, n := protowire.ConsumeVarint(b)
			x.UpdateIntervalMs = int32(v)
			return n, nil
		}
		return skipField, nil
	})
}

// MemoryInfo is the memory block of a snapshot.
type MemoryInfo struct {
	TotalBytes   int64
	UsedBytes    int64
	FreeBytes    int64
	UsagePercent float64
}

func (x *MemoryInfo) GetTotalBytes() int64 {
	if x != nil {
		return x.TotalBytes
	}
	return 0
}

func (x *MemoryInfo) GetUsedBytes() int64 {
	if x != nil {
		return x.UsedBytes
	}
	return 0
}

func (x *MemoryInfo) GetFreeBytes() int64 {
	if x != nil {
		return x.FreeBytes
	}
	return 0
}

func (x *MemoryInfo) GetUsagePercent() float64 {
	if x != nil {
		return x.UsagePercent
	}
	return 0
}

// MarshalBinary encodes the memory block in protobuf wire format.
func (x *MemoryInfo) MarshalBinary() ([]byte, error) {
	var b []byte
	b = appendInt64(b, 1, x.TotalBytes)
	b = appendInt64(b, 2, x.UsedBytes)
	b = appendInt64(b, 3, x.FreeBytes)
	b = appendDouble(b, 4, x.UsagePercent)
	return b, nil
}

// UnmarshalBinary decodes a protobuf-encoded memory block.
func (x *MemoryInfo) UnmarshalBinary(b []byte) error {
	*x = MemoryInfo{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num >= 1 && num <= 3 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			switch num {
			case 1:
				x.TotalBytes = int64(v)
			case 2:
				x.UsedBytes = int64(v)
			case 3:
				x.FreeBytes = int64(v)
			}
			return n, nil
		case num == 4 && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			x.UsagePercent = math.Float64frombits(v)
			return n, nil
		}
		return skipField, nil
	})
}

// SystemInfoResponse is one telemetry snapshot on the wire.
type SystemInfoResponse struct {
	OsName          string
	OsVersion       string
	CpuUsagePercent float64
	MemoryInfo      *MemoryInfo
	UptimeSeconds   int64
	// Timestamp is seconds since the Unix epoch.
	Timestamp int64
}

func (x *SystemInfoResponse) GetOsName() string {
	if x != nil {
		return x.OsName
	}
	return ""
}

func (x *SystemInfoResponse) GetOsVersion() string {
	if x != nil {
		return x.OsVersion
	}
	return ""
}

func (x *SystemInfoResponse) GetCpuUsagePercent() float64 {
	if x != nil {
		return x.CpuUsagePercent
	}
	return 0
}

func (x *SystemInfoResponse) GetMemoryInfo() *MemoryInfo {
	if x != nil {
		return x.MemoryInfo
	}
	return nil
}

func (x *SystemInfoResponse) GetUptimeSeconds() int64 {
	if x != nil {
		return x.UptimeSeconds
	}
	return 0
}

func (x *SystemInfoResponse) GetTimestamp() int64 {
	if x != nil {
		return x.Timestamp
	}
	return 0
}

// MarshalBinary encodes the snapshot in protobuf wire format.
func (x *SystemInfoResponse) MarshalBinary() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, x.OsName)
	b = appendString(b, 2, x.OsVersion)
	b = appendDouble(b, 3, x.CpuUsagePercent)
	if x.MemoryInfo != nil {
		mem, err := x.MemoryInfo.MarshalBinary()
		if err != nil {
			return nil, err
		}
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendBytes(b, mem)
	}
	b = appendInt64(b, 5, x.UptimeSeconds)
	b = appendInt64(b, 6, x.Timestamp)
	return b, nil
}

// UnmarshalBinary decodes a protobuf-encoded snapshot.
func (x *SystemInfoResponse) UnmarshalBinary(b []byte) error {
	*x = SystemInfoResponse{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case (num == 1 || num == 2) && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if num == 1 {
				x.OsName = v
			} else {
				x.OsVersion = v
			}
			return n, nil
		case num == 3 && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			x.CpuUsagePercent = math.Float64frombits(v)
			return n, nil
		case num == 4 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			// Repeated occurrences of a message field merge; last scalar wins.
			if x.MemoryInfo == nil {
				x.MemoryInfo = &MemoryInfo{}
			}
			var mem MemoryInfo
			if err := mem.UnmarshalBinary(v); err != nil {
				return 0, fmt.Errorf("memory_info: %w", err)
			}
			x.MemoryInfo.merge(&mem)
			return n, nil
		case (num == 5 || num == 6) && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if num == 5 {
				x.UptimeSeconds = int64(v)
			} else {
				x.Timestamp = int64(v)
			}
			return n, nil
		}
		return skipField, nil
	})
}

func (x *MemoryInfo) merge(o *MemoryInfo) {
	if o.TotalBytes != 0 {
		x.TotalBytes = o.TotalBytes
	}
	if o.UsedBytes != 0 {
		x.UsedBytes = o.UsedBytes
	}
	if o.FreeBytes != 0 {
		x.FreeBytes = o.FreeBytes
	}
	if math.Float64bits(o.UsagePercent) != 0 {
		x.UsagePercent = o.UsagePercent
	}
}

// --- wire helpers ---

// fieldFunc consumes the value of a known field and returns the number of
// bytes read, or skipField for fields it does not handle.
type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

// skipField is outside the range of protowire error codes.
const skipField = math.MinInt32

func walkFields(b []byte, fn fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		m, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if m == skipField {
			m = protowire.ConsumeFieldValue(num, typ, b)
		}
		if m < 0 {
			return protowire.ParseError(m)
		}
		b = b[m:]
	}
	return nil
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendInt64(b []byte, num protowire.Number, v int64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

// appendDouble skips only +0, matching proto3 presence rules for doubles.
func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	bits := math.Float64bits(v)
	if bits == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, bits)
}
