package utils

import "testing"

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{0, "0 Bytes"},
		{1023, "1023 Bytes"},
		{1024, "1.00 KB"},
		{5 * 1024 * 1024, "5.00 MB"},
		{3 * 1024 * 1024 * 1024 / 2, "1.50 GB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGetSystemStatsWithoutPool(t *testing.T) {
	s := GetSystemStats(nil, nil)
	if s.NumCPU < 1 || s.GoRoutines < 1 || s.MemoryAlloc == 0 {
		t.Errorf("implausible stats: %+v", s)
	}
	if s.WorkerCount != 0 || s.FramesProcessed != 0 {
		t.Errorf("pool fields must be empty without pool: %+v", s)
	}
}
