package agentkit

import (
	"testing"
	"time"
)

func TestToBytes(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"123B", 123},
		{"123 B", 123},
		{"123", 123},
		{"123KiB", 125952},
		{"123 KiB", 125952},
		{"123KB", 123000},
		{"123 MiB", 128974848},
		{"123MB", 123000000},
		{"123 GiB", 132070244352},
		{"123GB", 123000000000},
		{"123 TiB", 135239930216448},
		{"123TB", 123000000000000},
		{"123.5 GiB", 132607115264},
		{"0B", 0},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ToBytes(tt.in)
			if err != nil {
				t.Fatalf("ToBytes(%q) failed: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ToBytes(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestToBytesInvalid(t *testing.T) {
	for _, in := range []string{"", "abc", "12XB", "B", "12 12 B"} {
		if _, err := ToBytes(in); err == nil {
			t.Errorf("ToBytes(%q) succeeded, want error", in)
		}
	}
}

func TestSecondsSinceMidnight(t *testing.T) {
	tests := []struct {
		in   time.Time
		want float64
	}{
		{time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC), 0},
		{time.Date(2024, 5, 17, 1, 0, 0, 0, time.UTC), 3600},
		{time.Date(2024, 5, 17, 23, 59, 59, 0, time.UTC), 86399},
		{time.Date(2024, 5, 17, 12, 30, 15, 500_000_000, time.UTC), 45015.5},
	}

	for _, tt := range tests {
		if got := SecondsSinceMidnight(tt.in); got != tt.want {
			t.Errorf("SecondsSinceMidnight(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
